// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package util provides leaf utilities for the ghinsight CLI.
//
// It has no dependencies on other internal packages.
//
// # Overview
//
//   - Command execution: [Runner] runs external tools (git, gh, xz) and
//     reports failures as [CommandError] with trimmed stderr.
//   - Timeouts: [EnforceMinTimeout] and [EnforceDefaultTimeout] keep
//     configured durations within sane bounds.
//   - Panic safety: [RecoverPanic] and [CallSafely] turn panics in worker
//     goroutines into values the caller can report.
//   - Secrets: [Redact] masks credentials before they reach a log line.
//
// # Thread Safety
//
// Every exported function is safe for concurrent use. [ExecRunner] holds no
// mutable state.
package util
