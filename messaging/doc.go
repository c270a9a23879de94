// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is a minimal Matrix client covering what the
// lobby service actually touches: login, /sync long-polling, message
// sending and editing, redaction, membership (invite/kick), profiles,
// and power levels.
//
// A Client is the unauthenticated transport; Login or SessionFromToken
// produce a Session for authenticated calls. Server-side failures
// surface as *MatrixError for errors.As inspection.
package messaging
