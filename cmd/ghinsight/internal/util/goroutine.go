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

import (
	"fmt"
	"runtime/debug"
)

// =============================================================================
// Panic Recovery
// =============================================================================

// PanicResult holds information about a recovered panic.
type PanicResult struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace captured at recovery.
	Stack string
}

// Error renders the panic as an error message.
func (p PanicResult) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// RecoverPanic returns a function for use with defer that recovers a panic
// and hands it to onPanic.
//
// # Example
//
//	defer util.RecoverPanic(func(p util.PanicResult) {
//	    logger.Error("unit panicked", "panic", p.Value)
//	})()
func RecoverPanic(onPanic func(PanicResult)) func() {
	return func() {
		if r := recover(); r != nil {
			if onPanic != nil {
				onPanic(PanicResult{Value: r, Stack: string(debug.Stack())})
			}
		}
	}
}

// CallSafely runs fn and converts a panic into a returned error of type
// PanicResult.
func CallSafely(fn func() error) (err error) {
	defer RecoverPanic(func(p PanicResult) { err = p })()
	return fn()
}
