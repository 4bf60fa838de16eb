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

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/config"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/auth"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/services"
	"github.com/AleutianAI/ghinsight/pkg/logging"
)

// ExpectedConfig is the recovery hint for configuration failures.
const ExpectedConfig = "a valid config file (~/.ghinsight/config.yaml or --config) and flag values"

// steps builds the composition for a command once the run context exists.
type steps func(rc *services.RunContext) []services.Step

// run is the shared body of every command: load config, build the run
// context, compose the steps under the run deadline, print the envelope.
func (a *app) run(ctx context.Context, build steps) {
	env := a.envelopeFor(ctx, build)
	fmt.Fprint(a.stdout, env.Serialize())
	a.exitCode = env.ExitCode()
}

func (a *app) envelopeFor(ctx context.Context, build steps) *envelope.Envelope {
	cfg, err := a.loadConfig()
	if err != nil {
		return failed(apperr.Validation(ExpectedConfig, err))
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.New(logging.Config{
		Level:  level,
		LogDir: cfg.Logging.Dir,
		JSON:   cfg.Logging.JSON,
		Output: a.stderr,
	})
	defer logger.Close()
	log := logger.Slog()

	factory := &services.Factory{
		Config: cfg,
		Resolver: auth.Resolver{
			Explicit: a.token,
			Getenv:   a.getenv,
			Runner:   a.runner,
			Logger:   log,
		},
		Logger:     log,
		Version:    version,
		Command:    commandLine(a.args),
		WorkDir:    a.workDir,
		Runner:     a.runner,
		HTTPClient: a.httpClient,
	}
	rc, err := factory.NewRunContext(ctx)
	if err != nil {
		log.Error("run setup failed", "error", err)
		return failed(err)
	}
	defer func() {
		if err := rc.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	log.Info("run started", "run_id", rc.RunID, "login", rc.Login, "credential_source", rc.CredentialSource)
	env := services.Compose(ctx, cfg.Run.Deadline, build(rc)...)
	succeeded, failedCount := env.CountActions()
	log.Info("run finished",
		"run_id", rc.RunID,
		"exit_code", env.ExitCode(),
		"actions_succeeded", succeeded,
		"actions_failed", failedCount,
	)
	return env
}

// loadConfig applies flag overrides on top of config.Load and validates
// the result again.
func (a *app) loadConfig() (config.GHInsightConfig, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return cfg, err
	}
	if a.resultsDir != "" {
		cfg.Artifacts.ResultsDir = a.resultsDir
	}
	if a.compression != "" {
		cfg.Artifacts.Compression = a.compression
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.deadline != 0 {
		cfg.Run.Deadline = a.deadline
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func failed(err error) *envelope.Envelope {
	env := envelope.New()
	env.SetError(err)
	return env
}
