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
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// CommandError Tests
// =============================================================================

func TestCommandError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{"stderr", NewCommandError("gh auth token", 1, "  not logged in\n", nil), "gh auth token (exit 1): not logged in"},
		{"wrapped", NewCommandError("xz -z", 2, "", errors.New("boom")), "xz -z (exit 2): boom"},
		{"bare", NewCommandError("git remote", 128, "", nil), "git remote (exit 128)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestWrapCommandError_NoDoubleWrap verifies an existing CommandError is
// returned unchanged, even behind fmt.Errorf wrapping.
func TestWrapCommandError_NoDoubleWrap(t *testing.T) {
	inner := NewCommandError("git", 1, "fatal", nil)
	outer := fmt.Errorf("context: %w", inner)

	if got := WrapCommandError(outer, "other", 2, "x"); got != inner {
		t.Errorf("WrapCommandError re-wrapped: %v", got)
	}
	if WrapCommandError(nil, "x", 0, "") != nil {
		t.Error("nil error should stay nil")
	}
	if got := ExtractStderr(outer); got != "fatal" {
		t.Errorf("ExtractStderr = %q", got)
	}
}

// =============================================================================
// ExecRunner Tests
// =============================================================================

func TestExecRunner_MissingExecutable(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "", "ghinsight-definitely-missing-binary")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %T", err)
	}
	if !cmdErr.NotFound() {
		t.Errorf("NotFound() = false for %v", cmdErr)
	}
}

func TestExecRunner_CapturesStdoutAndExitCode(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), "", "sh", "-c", "echo hello")
	if err != nil {
		t.Skipf("sh unavailable: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("stdout = %q", out)
	}

	_, err = ExecRunner{}.Run(context.Background(), "", "sh", "-c", "echo oops >&2; exit 3")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmdErr.ExitCode != 3 || cmdErr.Stderr != "oops" {
		t.Errorf("got exit=%d stderr=%q", cmdErr.ExitCode, cmdErr.Stderr)
	}
}

// =============================================================================
// Panic Recovery Tests
// =============================================================================

func TestCallSafely(t *testing.T) {
	err := CallSafely(func() error { panic("kaboom") })
	var p PanicResult
	if !errors.As(err, &p) {
		t.Fatalf("expected PanicResult, got %v", err)
	}
	if p.Value != "kaboom" || p.Stack == "" {
		t.Errorf("unexpected panic result %+v", p)
	}

	sentinel := errors.New("plain")
	if err := CallSafely(func() error { return sentinel }); err != sentinel {
		t.Errorf("CallSafely altered a normal error: %v", err)
	}
}

func TestRecoverPanic_NilCallback(t *testing.T) {
	func() {
		defer RecoverPanic(nil)()
		panic("ignored")
	}()
}

// =============================================================================
// Timeout Tests
// =============================================================================

func TestEnforceTimeouts(t *testing.T) {
	if got := EnforceMinTimeout(0, MinAPITimeout); got != MinAPITimeout {
		t.Errorf("zero: got %v", got)
	}
	if got := EnforceMinTimeout(100*time.Millisecond, MinAPITimeout); got != MinAPITimeout {
		t.Errorf("below floor: got %v", got)
	}
	if got := EnforceMinTimeout(10*time.Second, MinAPITimeout); got != 10*time.Second {
		t.Errorf("above floor: got %v", got)
	}
	if got := EnforceDefaultTimeout(-1, DefaultUnitTimeout); got != DefaultUnitTimeout {
		t.Errorf("negative: got %v", got)
	}
}

// =============================================================================
// Redaction Tests
// =============================================================================

func TestRedact(t *testing.T) {
	if Redact("") != "" {
		t.Error("empty secret should stay empty")
	}
	if Redact("short") != "[REDACTED]" {
		t.Error("short secrets are fully masked")
	}
	got := Redact("ghp_abcdefghijklmnop")
	if !strings.HasPrefix(got, "ghp_") || strings.Contains(got, "abcdef") {
		t.Errorf("Redact leaked: %q", got)
	}
}
