// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier types for the Matrix
// entities Grange works with: users, rooms, and events.
//
// Each type wraps a string that has passed structural validation, so
// code receiving a ref value can rely on its shape without re-checking.
// The zero value of every type is invalid and reports IsZero() == true;
// construct values through the Parse functions.
//
// All types implement encoding.TextMarshaler and TextUnmarshaler, so
// they validate automatically at JSON, YAML, and CBOR boundaries.
package ref
