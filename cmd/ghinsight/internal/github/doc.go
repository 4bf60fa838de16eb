// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package github talks to the GitHub REST and GraphQL APIs.
//
// It is deliberately narrow: only the endpoints the orchestrator services
// read are exposed, and payloads are returned verbatim (json.RawMessage) so
// the artifact writer can keep them in its raw namespace. Typed views are
// produced separately by the Parse* functions, which never panic and report
// skipped items instead of failing a whole page.
//
// # Request Pipeline
//
//	┌──────────┐   ┌─────────────┐   ┌──────────────┐   ┌──────────────┐
//	│ limiter  │──►│ per-attempt │──►│ oauth2       │──►│ classify     │
//	│ (x/time) │   │ timeout     │   │ transport    │   │ status → Kind│
//	└──────────┘   └─────────────┘   └──────────────┘   └──────────────┘
//	      ▲                                                     │
//	      └──────── backoff/v5 retry (reads, TRANSIENT only) ◄──┘
//
// Reads (GET, GraphQL Query) are retried with exponential backoff while the
// failure is TRANSIENT_NETWORK. Writes (POST, GraphQL Mutate) are attempted
// exactly once.
//
// # Error Mapping
//
//   - 401 → AUTHENTICATION
//   - 403 with X-RateLimit-Remaining: 0, or 429 → RATE_LIMIT
//   - other 403 → PERMISSION (scope from X-Accepted-OAuth-Scopes)
//   - 404 → NOT_FOUND
//   - 400, 422 → VALIDATION
//   - 5xx, timeouts, connection errors → TRANSIENT_NETWORK
//
// # Thread Safety
//
// RESTClient and GraphQLClient are safe for concurrent use.
package github
