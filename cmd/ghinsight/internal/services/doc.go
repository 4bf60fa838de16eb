// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services implements the orchestrator services and their
// composition.
//
// Every service takes typed, validated arguments and returns a complete
// *envelope.Envelope. A service never returns a Go error and never panics
// out: faults are recorded on the envelope with SetError, and failures of
// independent sub-units (one repository out of several) become failed
// actions while the rest of the result stands.
//
// # Lifecycle
//
//	INIT ─► VALIDATE ─► FETCH (bounded fan-out) ─► AGGREGATE ─► WRITE ARTIFACT ─► DONE
//	            │              │                        │
//	            └──────────────┴────────────────────────┴──► FAILED (SetError)
//
// # Construction
//
// There are no package-level clients. The Factory resolves a credential,
// validates it against GitHub, and builds a RunContext holding the clients,
// telemetry and artifact writer for one invocation. Services receive their
// collaborators as constructor arguments, so tests substitute in-memory
// fakes for the consumer-side interfaces declared here.
package services
