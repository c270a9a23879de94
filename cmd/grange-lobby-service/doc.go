// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// grange-lobby-service runs the lobby: rental slot pools, scheduled
// events, and member verification, bridged to a Matrix homeserver.
//
// Configuration is a single YAML file named by --config or the
// GRANGE_CONFIG environment variable. Operator queries and manual
// interventions go through a CBOR admin socket.
package main
