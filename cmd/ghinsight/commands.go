// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

// ExpectedUsage is the recovery hint for command line mistakes.
const ExpectedUsage = "ghinsight <activity|project|detect> [flags]; see ghinsight --help"

// app holds the global flags and the seams tests replace. It is built
// fresh for every execution so nothing leaks between runs.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// --- Global Flags ---
	configPath  string
	token       string
	resultsDir  string
	compression string
	logLevel    string
	deadline    time.Duration

	// --- Seams ---
	getenv     func(string) string
	runner     util.Runner
	httpClient *http.Client
	workDir    string

	args     []string
	exitCode int
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		getenv: os.Getenv,
		runner: util.ExecRunner{},
	}
}

// newRootCmd builds the command tree bound to a.
func (a *app) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ghinsight",
		Short: "Collect GitHub activity and project data for downstream analysis",
		Long: `ghinsight gathers repository activity and ProjectV2 boards from GitHub,
computes summary statistics, writes the full data set to a compressed JSON
artifact, and prints a line-oriented result envelope on stdout.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to config.yaml (default ~/.ghinsight/config.yaml)")
	flags.StringVar(&a.token, "token", "", "GitHub token (default: GITHUB_TOKEN, GH_TOKEN, then the gh CLI)")
	flags.StringVar(&a.resultsDir, "results-dir", "", "Directory for result artifacts")
	flags.StringVar(&a.compression, "compression", "", "Artifact compression: xz, zstd or none")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.DurationVar(&a.deadline, "deadline", 0, "Overall time budget, e.g. 2m; results are partial when it expires")

	rootCmd.AddCommand(a.newActivityCmd())
	rootCmd.AddCommand(a.newProjectCmd())
	rootCmd.AddCommand(a.newDetectCmd())
	return rootCmd
}

// execute runs the command line and returns the process exit code. Every
// failure, including a bad flag, is reported as an envelope on stdout.
func execute(ctx context.Context, args []string, a *app) int {
	a.args = args
	rootCmd := a.newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		env := envelope.New()
		env.SetError(apperr.Validation(ExpectedUsage, err))
		fmt.Fprint(a.stdout, env.Serialize())
		return env.ExitCode()
	}
	return a.exitCode
}

// commandLine renders the invocation for artifact metadata with the token
// value masked.
func commandLine(args []string) string {
	out := make([]string, 0, len(args)+1)
	out = append(out, "ghinsight")
	redactNext := false
	for _, arg := range args {
		switch {
		case redactNext:
			out = append(out, util.Redact(arg))
			redactNext = false
		case arg == "--token":
			out = append(out, arg)
			redactNext = true
		case strings.HasPrefix(arg, "--token="):
			out = append(out, "--token="+util.Redact(strings.TrimPrefix(arg, "--token=")))
		default:
			out = append(out, arg)
		}
	}
	return strings.Join(out, " ")
}
