// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package steam resolves Steam community profile links to stable
// account identities via the Steam Web API. It understands both
// permanent links (/profiles/<id64>) and vanity links (/id/<name>),
// the latter resolved through ResolveVanityURL.
//
// All API calls share a rate limiter sized for the Web API's
// 100k-calls-per-day budget.
package steam
