// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package util

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// MinAPITimeout is the floor for a single GitHub API request.
	MinAPITimeout = 1 * time.Second

	// MinUnitTimeout is the floor for one repository unit of work.
	MinUnitTimeout = 5 * time.Second

	// DefaultAPITimeout bounds one GitHub API request.
	DefaultAPITimeout = 30 * time.Second

	// DefaultUnitTimeout bounds one repository fetch-and-aggregate unit.
	DefaultUnitTimeout = 60 * time.Second

	// DefaultProcessTimeout bounds one external command (git, gh, xz).
	DefaultProcessTimeout = 2 * time.Minute
)

// EnforceMinTimeout returns requested, or minimum when requested is zero,
// negative or below minimum.
func EnforceMinTimeout(requested, minimum time.Duration) time.Duration {
	if requested <= 0 || requested < minimum {
		return minimum
	}
	return requested
}

// EnforceDefaultTimeout returns requested, or defaultVal when requested is
// zero or negative.
func EnforceDefaultTimeout(requested, defaultVal time.Duration) time.Duration {
	if requested <= 0 {
		return defaultVal
	}
	return requested
}
