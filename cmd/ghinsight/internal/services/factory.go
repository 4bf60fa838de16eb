// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/config"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/artifact"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/auth"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/github"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/gitremote"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/telemetry"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

// PublisherFunc builds the artifact publisher for a bucket. The default is
// artifact.NewGCSPublisher.
type PublisherFunc func(ctx context.Context, bucket, prefix, credentialsFile string) (artifact.Publisher, error)

// Factory builds the per-invocation RunContext.
type Factory struct {
	Config   config.GHInsightConfig
	Resolver auth.Resolver
	Logger   *slog.Logger

	// Version is written to artifact metadata and telemetry.
	Version string

	// Command is the invoked command line, for artifact metadata.
	Command string

	// WorkDir is where the git remote is read. Empty means the process
	// working directory.
	WorkDir string

	// Runner executes git and xz. Nil means util.ExecRunner.
	Runner util.Runner

	// HTTPClient overrides the API transport, mainly for tests.
	HTTPClient *http.Client

	// NewPublisher overrides publisher construction.
	NewPublisher PublisherFunc

	// Now is injectable for tests.
	Now func() time.Time
}

// RunContext holds everything one invocation shares. It replaces global
// state: each run builds its own clients, registry and writer.
type RunContext struct {
	RunID     string
	StartedAt time.Time
	Config    config.GHInsightConfig
	Logger    *slog.Logger

	// Login is the validated account.
	Login            string
	CredentialSource auth.Source

	Telemetry *telemetry.Provider
	REST      *github.RESTClient
	GraphQL   *github.GraphQLClient
	Remote    *gitremote.Inspector
	Writer    *artifact.Writer
	Publisher artifact.Publisher

	command string
	now     func() time.Time
}

// NewRunContext resolves and validates the credential, then builds the
// clients, telemetry and artifact writer.
//
// # Description
//
// No client is handed to a service before the credential has been checked
// against GET /user. A missing token or a rejected one is INVALID_TOKEN.
// Network faults during validation keep their own type. Any other
// construction fault, including a panic, is SERVICE_INITIALIZATION_FAILED.
//
// # Outputs
//
//   - *RunContext: Ready; call Close when done.
//   - error: *apperr.OrchestratorError.
func (f *Factory) NewRunContext(ctx context.Context) (rc *RunContext, err error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := f.Now
	if now == nil {
		now = time.Now
	}

	var tel *telemetry.Provider
	defer func() {
		if err != nil && tel != nil {
			_ = tel.Shutdown(context.WithoutCancel(ctx))
		}
	}()
	defer util.RecoverPanic(func(p util.PanicResult) {
		logger.Error("service construction panicked", "panic", p.Value, "stack", p.Stack)
		rc, err = nil, apperr.Wrap(p)
	})()

	resolver := f.Resolver
	if resolver.Logger == nil {
		resolver.Logger = logger
	}
	cred := resolver.Resolve(ctx)
	if !cred.Present() {
		return nil, apperr.InvalidToken(errors.New("no GitHub token found in --token, GITHUB_TOKEN, GH_TOKEN or gh auth token"))
	}

	cfg := f.Config
	tel, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "ghinsight",
		ServiceVersion: f.version(),
		TraceExporter:  cfg.Telemetry.TraceExporter,
		TraceFile:      cfg.Telemetry.TraceFile,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		MetricExporter: cfg.Telemetry.MetricsExporter,
		MetricsFile:    cfg.Telemetry.MetricsFile,
	})
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("telemetry: %w", err))
	}

	opts := []github.Option{
		github.WithLogger(logger),
		github.WithTimeout(cfg.GitHub.Timeout),
		github.WithMaxRetries(cfg.GitHub.MaxRetries),
		github.WithRateLimit(cfg.GitHub.RequestsPerSecond),
		github.WithMetrics(tel.API),
		github.WithPerPage(cfg.GitHub.PerPage),
		github.WithMaxPages(cfg.GitHub.MaxPages),
	}
	if f.HTTPClient != nil {
		opts = append(opts, github.WithHTTPClient(f.HTTPClient))
	}
	rest := github.NewRESTClient(cred.Token, append(opts, github.WithBaseURL(cfg.GitHub.APIURL))...)

	login, err := validateCredential(ctx, rest)
	if err != nil {
		logger.Warn("credential rejected", "credential", cred, "error_type", errorCode(err))
		return nil, err
	}
	logger.Info("authenticated", "login", login, "credential", cred)

	gql := github.NewGraphQLClient(cred.Token, append(opts, github.WithBaseURL(cfg.GitHub.GraphQLURL))...)

	compressor, err := artifact.NewCompressor(cfg.Artifacts.Compression, cfg.Artifacts.XZCommand, f.Runner)
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	var publisher artifact.Publisher
	if pc := cfg.Artifacts.Publish; pc.GCSBucket != "" {
		newPublisher := f.NewPublisher
		if newPublisher == nil {
			newPublisher = func(ctx context.Context, bucket, prefix, creds string) (artifact.Publisher, error) {
				return artifact.NewGCSPublisher(ctx, bucket, prefix, creds)
			}
		}
		publisher, err = newPublisher(ctx, pc.GCSBucket, pc.GCSPrefix, pc.CredentialsFile)
		if err != nil {
			return nil, apperr.Wrap(fmt.Errorf("artifact publisher: %w", err))
		}
	}

	writer := artifact.NewWriter(artifact.Config{
		Dir:              cfg.Artifacts.ResultsDir,
		Compressor:       compressor,
		KeepUncompressed: cfg.Artifacts.KeepUncompressed,
		Publisher:        publisher,
		QueryTool:        cfg.Artifacts.QueryTool,
		Version:          f.version(),
		Logger:           logger,
		Metrics:          tel.Service,
		Now:              now,
	})

	runID := uuid.NewString()
	return &RunContext{
		RunID:            runID,
		StartedAt:        now(),
		Config:           cfg,
		Logger:           logger.With("run_id", runID),
		Login:            login,
		CredentialSource: cred.Source,
		Telemetry:        tel,
		REST:             rest,
		GraphQL:          gql,
		Remote:           gitremote.NewInspector(f.WorkDir, f.Runner),
		Writer:           writer,
		Publisher:        publisher,
		command:          f.Command,
		now:              now,
	}, nil
}

func (f *Factory) version() string {
	if f.Version == "" {
		return "dev"
	}
	return f.Version
}

// validateCredential checks the token with GET /user and returns the login.
// Only a rejected token (401) or a response without a login is
// INVALID_TOKEN; rate limits, missing scopes and network failures keep their
// own kind so the recovery advice fits.
func validateCredential(ctx context.Context, rest *github.RESTClient) (string, error) {
	doc, err := rest.Viewer(ctx)
	if err != nil {
		typed, ok := apperr.As(err)
		if ok && typed.Kind == apperr.KindAuthentication {
			return "", apperr.InvalidToken(typed.Cause)
		}
		return "", apperr.Wrap(err)
	}
	viewer := github.ParseViewer(doc)
	if !viewer.OK() {
		return "", apperr.InvalidToken(viewer.Err)
	}
	return viewer.Value.Login, nil
}

// deps is the shared service dependency set.
func (rc *RunContext) deps() Deps {
	return Deps{
		Logger:  rc.Logger,
		Metrics: rc.Telemetry.Service,
		Settings: Settings{
			Concurrency:       rc.Config.Activity.Concurrency,
			UnitTimeout:       rc.Config.Activity.UnitTimeout,
			ProjectPageSize:   rc.Config.Project.PageSize,
			ProjectMaxPages:   rc.Config.Project.MaxPages,
			DetectLimit:       rc.Config.Project.DetectLimit,
			DefaultWindowDays: rc.Config.Activity.TimeWindowDays,
		},
		RunID:     rc.RunID,
		Command:   rc.command,
		StartedAt: rc.StartedAt,
		Now:       rc.now,
	}
}

// ActivityService returns an activity service bound to this run.
func (rc *RunContext) ActivityService() *ActivityService {
	return NewActivityService(rc.REST, rc.Writer, rc.deps())
}

// ProjectService returns a project collection service bound to this run.
func (rc *RunContext) ProjectService() *ProjectService {
	return NewProjectService(rc.GraphQL, rc.Writer, rc.deps())
}

// DetectionService returns a detection service bound to this run.
func (rc *RunContext) DetectionService() *DetectionService {
	return NewDetectionService(rc.GraphQL, rc.Remote, rc.deps())
}

// Close flushes telemetry and releases the publisher.
func (rc *RunContext) Close(ctx context.Context) error {
	var errs []error
	if rc.Telemetry != nil {
		errs = append(errs, rc.Telemetry.Shutdown(ctx))
	}
	if c, ok := rc.Publisher.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
