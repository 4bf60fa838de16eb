// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package auth resolves the GitHub credential for a run.
//
// Priority, first non-empty wins:
//
//  1. explicit (--token flag)
//  2. environment (GITHUB_TOKEN, then GH_TOKEN; a .env file in the
//     working directory is loaded into the environment at startup)
//  3. the GitHub CLI (`gh auth token`)
//  4. none
//
// Tokens never appear in logs or errors; only the Source does.
package auth

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

// Source names where a credential came from.
type Source string

const (
	SourceExplicit    Source = "explicit"
	SourceEnvironment Source = "environment"
	SourceGHCLI       Source = "gh-cli"
	SourceNone        Source = "none"
)

// EnvKeys are consulted in order.
var EnvKeys = []string{"GITHUB_TOKEN", "GH_TOKEN"}

// Credential is a resolved token and its origin.
type Credential struct {
	Token  string
	Source Source
}

// Present reports whether a token was found.
func (c Credential) Present() bool {
	return c.Token != ""
}

// LogValue implements slog.LogValuer so a Credential can be logged safely.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("source", string(c.Source)),
		slog.Bool("token_present", c.Present()),
	)
}

// Resolver finds a credential.
type Resolver struct {
	// Explicit is the --token value.
	Explicit string

	// Getenv reads environment variables. Nil means os.Getenv.
	Getenv func(string) string

	// Runner executes the gh CLI. Nil means util.ExecRunner.
	Runner util.Runner

	// Logger receives the resolution outcome. Nil means slog.Default().
	Logger *slog.Logger
}

// Resolve walks the priority list. It never fails: a missing or broken gh
// CLI simply falls through to SourceNone.
func (r Resolver) Resolve(ctx context.Context) Credential {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	runner := r.Runner
	if runner == nil {
		runner = util.ExecRunner{}
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cred := Credential{Source: SourceNone}
	switch {
	case strings.TrimSpace(r.Explicit) != "":
		cred = Credential{Token: strings.TrimSpace(r.Explicit), Source: SourceExplicit}
	default:
		for _, key := range EnvKeys {
			if v := strings.TrimSpace(getenv(key)); v != "" {
				cred = Credential{Token: v, Source: SourceEnvironment}
				break
			}
		}
		if !cred.Present() {
			out, err := runner.Run(ctx, "", "gh", "auth", "token")
			if err != nil {
				logger.Debug("gh auth token unavailable", "error", util.ExtractStderr(err))
			} else if tok := strings.TrimSpace(string(out)); tok != "" {
				cred = Credential{Token: tok, Source: SourceGHCLI}
			}
		}
	}

	logger.Debug("credential resolved", "credential", cred)
	return cred
}
