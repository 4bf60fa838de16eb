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
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/artifact"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/github"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/telemetry"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

// Fields kept in the raw namespace, per source.
var (
	rawRepositoryFields = []string{"full_name", "name", "owner.login", "private", "default_branch", "stargazers_count", "forks_count", "open_issues_count", "created_at", "pushed_at"}
	rawCommitFields     = []string{"sha", "author.login", "commit.author.name", "commit.author.date"}
	rawIssueFields      = []string{"number", "state", "user.login", "comments", "created_at", "closed_at"}
	rawPullFields       = []string{"number", "state", "user.login", "draft", "created_at", "closed_at", "merged_at"}
	rawCommentFields    = []string{"id", "user.login", "created_at"}
)

// repoRaw is the trimmed API payload of one repository.
type repoRaw struct {
	Repository json.RawMessage   `json:"repository"`
	Commits    []json.RawMessage `json:"commits"`
	Issues     []json.RawMessage `json:"issues"`
	Pulls      []json.RawMessage `json:"pullRequests"`
	Comments   []json.RawMessage `json:"comments"`
}

// unitResult is one repository's slot in the fan-out.
type unitResult struct {
	activity repoActivity
	raw      repoRaw
	err      error
	duration time.Duration
}

// ActivityService analyses contribution activity across repositories.
type ActivityService struct {
	repos  RepositoryReader
	writer ArtifactWriter
	deps   Deps
}

// NewActivityService wires the service. writer may be nil to skip the
// artifact.
func NewActivityService(repos RepositoryReader, writer ArtifactWriter, deps Deps) *ActivityService {
	return &ActivityService{repos: repos, writer: writer, deps: deps.withDefaults()}
}

// Execute runs one activity analysis.
//
// # Description
//
// Repositories are fetched concurrently (bounded by Settings.Concurrency),
// each under its own Settings.UnitTimeout. A failed repository becomes a
// failed action and a REPO_n_STATUS=failure line; the aggregate covers the
// repositories that succeeded. Only when every repository fails is the
// first failure (in input order) recorded as the envelope error.
//
// # Outputs
//
//   - *envelope.Envelope: Always complete; never nil.
func (s *ActivityService) Execute(ctx context.Context, args ActivityAnalysisArgs) (env *envelope.Envelope) {
	env = envelope.New()
	ctx, end := s.deps.begin(ctx, ServiceActivity, env)
	defer end()
	defer s.deps.guard(ServiceActivity, env)()

	if args.TimeWindowDays == 0 {
		args.TimeWindowDays = s.deps.Settings.DefaultWindowDays
	}
	args, err := args.Validate()
	if err != nil {
		env.SetError(err)
		return env
	}

	until := s.deps.Now().UTC()
	w := window{Since: until.AddDate(0, 0, -args.TimeWindowDays), Until: until}
	logger := s.deps.Logger.With("service", ServiceActivity, "owner", args.Owner)
	logger.Info("activity analysis started", "repositories", len(args.Repositories), "days", args.TimeWindowDays)

	results := s.fetchAll(ctx, args, w)

	var (
		succeeded []repoActivity
		raws      = make(map[string]repoRaw)
		outcomes  = make([]RepositoryOutcome, len(results))
		firstErr  error
	)
	for i, r := range results {
		name := args.Repositories[i]
		event := fmt.Sprintf("fetch %s/%s", args.Owner, name)
		outcomes[i] = RepositoryOutcome{Index: i + 1, Name: name, Err: r.err}
		if r.err != nil {
			env.AddAction(event, envelope.ResultFailure, envelope.Int64(r.duration.Milliseconds()))
			logger.Warn("repository failed", "repository", name, "error_type", errorCode(r.err), "error", r.err)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		env.AddAction(event, envelope.ResultSuccess, envelope.Int64(r.duration.Milliseconds()))
		outcomes[i].Commits = len(r.activity.Commits)
		outcomes[i].Truncated = r.activity.Truncated
		if len(r.activity.Truncated) > 0 {
			logger.Warn("repository listing truncated", "repository", name, "sources", r.activity.Truncated)
		}
		succeeded = append(succeeded, r.activity)
		raws[name] = r.raw
	}

	summary := ActivitySummary{
		Owner:          args.Owner,
		TimeWindowDays: args.TimeWindowDays,
		WindowStart:    w.Since,
		WindowEnd:      w.Until,
		Attempted:      len(results),
		Succeeded:      len(succeeded),
		Failed:         len(results) - len(succeeded),
	}

	if len(succeeded) == 0 {
		env.AddData(string(KeyActivityOwner), summary.Owner)
		env.AddData(string(KeyReposAttempted), summary.Attempted)
		env.AddData(string(KeyReposSucceeded), 0)
		env.AddData(string(KeyReposFailed), summary.Failed)
		for _, o := range outcomes {
			env.AddDataFromDTO(o)
		}
		env.SetError(firstErr)
		return env
	}

	var perRepo map[string]ActivityStats
	err = timed(env, "aggregate activity", func() error {
		return util.CallSafely(func() error {
			summary.Totals = aggregateActivity(succeeded, w)
			perRepo = make(map[string]ActivityStats, len(succeeded))
			for _, r := range succeeded {
				perRepo[r.Name] = aggregateActivity([]repoActivity{r}, w)
			}
			return nil
		})
	})
	if err != nil {
		env.SetError(apperr.InternalAggregation(err))
		return env
	}

	env.AddDataFromDTO(summary)
	for _, o := range outcomes {
		env.AddDataFromDTO(o)
	}
	for _, o := range outcomes {
		if len(o.Truncated) > 0 {
			env.AddInstruction(fmt.Sprintf("%s/%s reached the github.max_pages limit for %s; its totals are lower bounds. Raise github.max_pages or shorten --days for complete counts.",
				args.Owner, o.Name, strings.Join(o.Truncated, ", ")))
		}
	}

	s.writeArtifact(ctx, env, args, summary, perRepo, raws)
	logger.Info("activity analysis finished", "succeeded", summary.Succeeded, "failed", summary.Failed)
	return env
}

// fetchAll fans out one unit per repository and returns the results in
// input order.
func (s *ActivityService) fetchAll(ctx context.Context, args ActivityAnalysisArgs, w window) []unitResult {
	results := make([]unitResult, len(args.Repositories))

	var g errgroup.Group
	g.SetLimit(s.deps.Settings.Concurrency)
	for i, name := range args.Repositories {
		g.Go(func() error {
			start := time.Now()
			defer util.RecoverPanic(func(p util.PanicResult) {
				results[i] = unitResult{
					err:      apperr.InternalAggregation(p).WithDebug("repository", name),
					duration: time.Since(start),
				}
			})()

			unitCtx, cancel := context.WithTimeout(ctx, s.deps.Settings.UnitTimeout)
			defer cancel()

			act, raw, err := s.fetchRepository(unitCtx, args.Owner, name, w)
			if err != nil {
				err = apperr.Wrap(err)
			}
			results[i] = unitResult{activity: act, raw: raw, err: err, duration: time.Since(start)}
			// Units never fail the group; failures stay in their slot.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fetchRepository reads and parses everything for one repository.
func (s *ActivityService) fetchRepository(ctx context.Context, owner, name string, w window) (act repoActivity, raw repoRaw, err error) {
	ctx, span := tracer.Start(ctx, "activity.fetchRepository")
	span.SetAttributes(attribute.String("github.repository", owner+"/"+name))
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetSpanOK(span)
		}
		span.End()
	}()

	act.Name = name

	repoDoc, err := s.repos.GetRepository(ctx, owner, name)
	if err != nil {
		return act, raw, err
	}
	repo := github.ParseRepository(repoDoc)
	if !repo.OK() {
		return act, raw, repo.Err
	}
	act.Repository = repo.Value
	raw.Repository = github.Trim(repoDoc, rawRepositoryFields...)

	commitDocs, err := s.repos.ListCommits(ctx, owner, name, w.Since)
	if err != nil {
		return act, raw, err
	}
	act.noteTruncated(sourceCommits, commitDocs)
	commits := github.ParseCommits(commitDocs.Items)
	act.Commits, act.Skipped = commits.Value, act.Skipped+commits.Skipped
	raw.Commits = github.TrimAll(commitDocs.Items, rawCommitFields...)

	issueDocs, err := s.repos.ListIssues(ctx, owner, name, w.Since)
	if err != nil {
		return act, raw, err
	}
	act.noteTruncated(sourceIssues, issueDocs)
	issues := github.ParseIssues(issueDocs.Items)
	act.Issues, act.Skipped = issues.Value, act.Skipped+issues.Skipped
	raw.Issues = github.TrimAll(withoutPullRequests(issueDocs.Items), rawIssueFields...)

	pullDocs, err := s.repos.ListPulls(ctx, owner, name, w.Since)
	if err != nil {
		return act, raw, err
	}
	act.noteTruncated(sourcePulls, pullDocs)
	pulls := github.ParsePulls(pullDocs.Items)
	act.Pulls, act.Skipped = pulls.Value, act.Skipped+pulls.Skipped
	raw.Pulls = github.TrimAll(pullDocs.Items, rawPullFields...)

	commentDocs, err := s.repos.ListIssueComments(ctx, owner, name, w.Since)
	if err != nil {
		return act, raw, err
	}
	act.noteTruncated(sourceComments, commentDocs)
	comments := github.ParseComments(commentDocs.Items)
	act.Comments, act.Skipped = comments.Value, act.Skipped+comments.Skipped
	raw.Comments = github.TrimAll(commentDocs.Items, rawCommentFields...)

	return act, raw, nil
}

// writeArtifact records the artifact on env. A write failure is a failed
// action; the envelope data already stands on its own.
func (s *ActivityService) writeArtifact(ctx context.Context, env *envelope.Envelope, args ActivityAnalysisArgs, summary ActivitySummary, perRepo map[string]ActivityStats, raws map[string]repoRaw) {
	if s.writer == nil {
		return
	}
	req := artifact.Request{
		Kind:      ServiceActivity,
		Owner:     args.Owner,
		ID:        ActivityID(args.Repositories),
		Command:   s.deps.Command,
		StartedAt: s.deps.StartedAt,
		RunID:     s.deps.RunID,
		Raw:       map[string]any{"repositories": raws},
		Calculated: map[string]any{
			"summary":      summary.Totals,
			"repositories": perRepo,
			"window": map[string]any{
				"since": summary.WindowStart,
				"until": summary.WindowEnd,
				"days":  summary.TimeWindowDays,
			},
			"outcomes": map[string]int{
				"attempted": summary.Attempted,
				"succeeded": summary.Succeeded,
				"failed":    summary.Failed,
			},
		},
	}
	res, err := s.writer.Write(ctx, req)
	if err != nil {
		s.deps.Logger.Error("artifact write failed", "error", err)
		env.AddAction(artifact.EventWrite, envelope.ResultFailure, nil)
		return
	}
	res.Apply(env)
}

// ActivityID names an activity artifact after its repositories: the name
// itself for one, joined with '+' for up to three, otherwise "<n>-repos".
func ActivityID(repos []string) string {
	switch {
	case len(repos) == 0:
		return "none"
	case len(repos) <= 3:
		return strings.Join(repos, "+")
	default:
		return fmt.Sprintf("%d-repos", len(repos))
	}
}

// withoutPullRequests drops issue documents that are pull requests.
func withoutPullRequests(items []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		var doc struct {
			PullRequest json.RawMessage `json:"pull_request"`
		}
		if json.Unmarshal(item, &doc) == nil && len(doc.PullRequest) > 0 && string(doc.PullRequest) != "null" {
			continue
		}
		out = append(out, item)
	}
	return out
}
