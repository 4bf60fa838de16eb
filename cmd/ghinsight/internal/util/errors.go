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
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Command Error Type
// =============================================================================

// CommandError wraps an external tool failure with its stderr.
//
// # Description
//
// Produced by [ExecRunner] when git, gh or xz exits non-zero or cannot be
// started. Supports errors.Is/As through Unwrap.
//
// # Example
//
//	err := NewCommandError("gh auth token", 1, "not logged in", exitErr)
//	fmt.Println(err) // "gh auth token (exit 1): not logged in"
type CommandError struct {
	// Command is the command line that was executed.
	Command string

	// ExitCode is the process exit code (-1 if the process never ran).
	ExitCode int

	// Stderr is the trimmed standard error output.
	Stderr string

	// Wrapped is the underlying error (may be nil).
	Wrapped error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// NotFound reports whether the executable itself was missing.
func (e *CommandError) NotFound() bool {
	return e.ExitCode == -1 && errors.Is(e.Wrapped, ErrExecutableNotFound)
}

var _ error = (*CommandError)(nil)

// ErrExecutableNotFound marks a command whose binary is not on PATH.
var ErrExecutableNotFound = errors.New("executable not found")

// NewCommandError creates a CommandError with trimmed stderr.
func NewCommandError(cmd string, exitCode int, stderr string, wrapped error) *CommandError {
	return &CommandError{
		Command:  cmd,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Wrapped:  wrapped,
	}
}

// WrapCommandError wraps err unless it already is a *CommandError, so
// nested runners do not double-wrap. Returns nil for a nil err.
func WrapCommandError(err error, cmd string, exitCode int, stderr string) *CommandError {
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	return NewCommandError(cmd, exitCode, stderr, err)
}

// ExtractStderr returns the stderr of the first CommandError in err's
// chain, or "" when there is none.
func ExtractStderr(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Stderr
	}
	return ""
}
