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
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/artifact"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/github"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/gitremote"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/telemetry"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

var tracer = otel.Tracer("ghinsight.services")

// Service names, used for spans, metrics and artifact kinds.
const (
	ServiceActivity = "activity"
	ServiceProject  = "project"
	ServiceDetect   = "detect"
)

// =============================================================================
// Collaborator interfaces
// =============================================================================

// RepositoryReader fetches the REST documents of one repository.
// *github.RESTClient implements it.
type RepositoryReader interface {
	GetRepository(ctx context.Context, owner, repo string) (json.RawMessage, error)
	ListCommits(ctx context.Context, owner, repo string, since time.Time) (github.Listing, error)
	ListIssues(ctx context.Context, owner, repo string, since time.Time) (github.Listing, error)
	ListPulls(ctx context.Context, owner, repo string, since time.Time) (github.Listing, error)
	ListIssueComments(ctx context.Context, owner, repo string, since time.Time) (github.Listing, error)
}

// GraphQLQuerier runs read-only GraphQL queries. *github.GraphQLClient
// implements it.
type GraphQLQuerier interface {
	Query(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error)
}

// RemoteInspector reads the GitHub remote of the working directory.
// *gitremote.Inspector implements it.
type RemoteInspector interface {
	GitHubRemote(ctx context.Context) (gitremote.Remote, error)
}

// ArtifactWriter writes result files. *artifact.Writer implements it.
type ArtifactWriter interface {
	Write(ctx context.Context, req artifact.Request) (*artifact.Result, error)
}

// =============================================================================
// Shared dependencies
// =============================================================================

// Settings are the tunables services read from configuration.
type Settings struct {
	Concurrency       int
	UnitTimeout       time.Duration
	ProjectPageSize   int
	ProjectMaxPages   int
	DetectLimit       int
	DefaultWindowDays int
}

// Deps is what every service shares from the RunContext.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *telemetry.ServiceMetrics
	Settings Settings

	// RunID and Command are written to artifact metadata.
	RunID     string
	Command   string
	StartedAt time.Time

	// Now is injectable for tests. Nil means time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = d.Now()
	}
	if d.Settings.Concurrency <= 0 {
		d.Settings.Concurrency = 4
	}
	d.Settings.UnitTimeout = util.EnforceDefaultTimeout(d.Settings.UnitTimeout, util.DefaultUnitTimeout)
	if d.Settings.ProjectPageSize <= 0 || d.Settings.ProjectPageSize > 100 {
		d.Settings.ProjectPageSize = 100
	}
	if d.Settings.ProjectMaxPages <= 0 {
		d.Settings.ProjectMaxPages = 10
	}
	if d.Settings.DetectLimit <= 0 {
		d.Settings.DetectLimit = 20
	}
	if d.Settings.DefaultWindowDays <= 0 {
		d.Settings.DefaultWindowDays = 30
	}
	return d
}

// begin starts a service span and returns the function that closes it.
// The returned func must be deferred before any panic guard so it observes
// the final envelope.
func (d Deps) begin(ctx context.Context, service string, env *envelope.Envelope) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, service+".Execute")
	return ctx, func() {
		outcome := "success"
		if env.HasError() {
			outcome = "failure"
			telemetry.RecordError(span, env.Err())
		} else {
			telemetry.SetSpanOK(span)
		}
		d.Metrics.RecordExecution(ctx, service, outcome)
		span.End()
	}
}

// guard turns a panic inside a service into an INTERNAL_AGGREGATION error
// on env.
func (d Deps) guard(service string, env *envelope.Envelope) func() {
	return util.RecoverPanic(func(p util.PanicResult) {
		d.Logger.Error("service panicked", "service", service, "panic", p.Value, "stack", p.Stack)
		env.SetError(apperr.InternalAggregation(p).WithDebug("service", service))
	})
}

// timed runs fn and records it as an action on env.
func timed(env *envelope.Envelope, event string, fn func() error) error {
	start := time.Now()
	err := fn()
	result := envelope.ResultSuccess
	if err != nil {
		result = envelope.ResultFailure
	}
	env.AddAction(event, result, envelope.Int64(time.Since(start).Milliseconds()))
	return err
}

// errorCode is the ERROR_TYPE an error renders as.
func errorCode(err error) apperr.Code {
	if err == nil {
		return ""
	}
	return apperr.Wrap(err).Code()
}
