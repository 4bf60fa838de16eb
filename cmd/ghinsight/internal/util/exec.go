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
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external command and returns its stdout.
//
// Implementations must return a *CommandError on failure and honour ctx
// cancellation.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	// Timeout bounds each invocation. Zero means DefaultProcessTimeout.
	Timeout time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmdLine := strings.TrimSpace(name + " " + strings.Join(args, " "))

	if _, err := exec.LookPath(name); err != nil {
		return nil, NewCommandError(cmdLine, -1, "", errors.Join(ErrExecutableNotFound, err))
	}

	ctx, cancel := context.WithTimeout(ctx, EnforceDefaultTimeout(r.Timeout, DefaultProcessTimeout))
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return stdout.Bytes(), NewCommandError(cmdLine, exitCode, stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

var _ Runner = ExecRunner{}
