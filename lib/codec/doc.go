// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used on the admin socket.
//
// Encoding follows RFC 8949 Core Deterministic Encoding: sorted map
// keys, smallest integer forms, no indefinite-length items, so the
// same logical value always produces identical bytes. Decoding accepts
// standard CBOR and ignores unknown fields for forward compatibility.
//
// Types implementing encoding.TextMarshaler (the lib/ref identifier
// types) travel as CBOR text strings in both directions.
package codec
