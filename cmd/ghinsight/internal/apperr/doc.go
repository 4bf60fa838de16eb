// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apperr implements the typed fault model shared by the GitHub
// clients, the orchestrator services and the result envelope.
//
// Every fault that crosses a service boundary is an [OrchestratorError]:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                   OrchestratorError                      │
//	│  Kind   AUTHENTICATION | NOT_FOUND | PERMISSION | ...    │
//	│  Cause  the underlying error (errors.Is / errors.As)     │
//	│  RecoveryInstructions  ordered, never empty              │
//	│  DebugInfo             {"code": <Code>, ...}             │
//	└──────────────────────────────────────────────────────────┘
//
// # Wrapping
//
// [Wrap] converts an arbitrary error into an OrchestratorError with code
// SERVICE_INITIALIZATION_FAILED. An error that already is (or wraps) an
// OrchestratorError is returned unchanged, so a fault is typed exactly once
// no matter how many boundaries it crosses.
//
// # Recovery Instructions
//
// Each [Kind] has a canonical list of remediation steps (see [Recovery]).
// Constructors such as [RateLimit] and [Validation] extend the canonical
// steps with call-specific detail (reset time, expected input format).
package apperr
