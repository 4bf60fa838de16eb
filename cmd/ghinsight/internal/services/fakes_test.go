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
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/artifact"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/github"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/gitremote"
)

var testNow = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func testDeps() Deps {
	return Deps{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Command: "ghinsight test",
		RunID:   "run-test",
		Now:     func() time.Time { return testNow },
	}
}

// =============================================================================
// REST fake
// =============================================================================

// fakeRepo is the canned data of one repository.
type fakeRepo struct {
	commits  []string
	issues   []string
	pulls    []string
	comments []string

	// block makes every call wait for ctx cancellation.
	block bool
	// err fails GetRepository.
	err error
	// panics makes GetRepository panic.
	panics bool
	// truncated marks listings as cut at the page limit, by source name.
	truncated map[string]bool
}

type fakeReader struct {
	repos map[string]fakeRepo
}

func (f *fakeReader) lookup(ctx context.Context, repo string) (fakeRepo, error) {
	r, ok := f.repos[repo]
	if !ok {
		return r, fmt.Errorf("unknown repository %s", repo)
	}
	if r.block {
		<-ctx.Done()
		return r, ctx.Err()
	}
	return r, nil
}

func (f *fakeReader) GetRepository(ctx context.Context, owner, repo string) (json.RawMessage, error) {
	r, err := f.lookup(ctx, repo)
	if err != nil {
		return nil, err
	}
	if r.panics {
		panic("reader exploded")
	}
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(fmt.Sprintf(`{"full_name":"%s/%s","name":"%s","owner":{"login":"%s"},"stargazers_count":3}`, owner, repo, repo, owner)), nil
}

func (f *fakeReader) ListCommits(ctx context.Context, _, repo string, _ time.Time) (github.Listing, error) {
	r, err := f.lookup(ctx, repo)
	return github.Listing{Items: raws(r.commits), Truncated: r.truncated[sourceCommits]}, err
}

func (f *fakeReader) ListIssues(ctx context.Context, _, repo string, _ time.Time) (github.Listing, error) {
	r, err := f.lookup(ctx, repo)
	return github.Listing{Items: raws(r.issues), Truncated: r.truncated[sourceIssues]}, err
}

func (f *fakeReader) ListPulls(ctx context.Context, _, repo string, _ time.Time) (github.Listing, error) {
	r, err := f.lookup(ctx, repo)
	return github.Listing{Items: raws(r.pulls), Truncated: r.truncated[sourcePulls]}, err
}

func (f *fakeReader) ListIssueComments(ctx context.Context, _, repo string, _ time.Time) (github.Listing, error) {
	r, err := f.lookup(ctx, repo)
	return github.Listing{Items: raws(r.comments), Truncated: r.truncated[sourceComments]}, err
}

func raws(docs []string) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d)
	}
	return out
}

func commitDoc(sha, login, date string) string {
	return fmt.Sprintf(`{"sha":"%s","author":{"login":"%s"},"commit":{"author":{"name":"x","date":"%s"}}}`, sha, login, date)
}

func issueDoc(number int, login, created, closed string) string {
	closedJSON := "null"
	if closed != "" {
		closedJSON = `"` + closed + `"`
	}
	return fmt.Sprintf(`{"number":%d,"state":"open","user":{"login":"%s"},"created_at":"%s","closed_at":%s}`, number, login, created, closedJSON)
}

func pullDoc(number int, login, created, merged string) string {
	mergedJSON := "null"
	if merged != "" {
		mergedJSON = `"` + merged + `"`
	}
	return fmt.Sprintf(`{"number":%d,"state":"closed","user":{"login":"%s"},"created_at":"%s","merged_at":%s}`, number, login, created, mergedJSON)
}

// =============================================================================
// GraphQL fake
// =============================================================================

type gqlCall struct {
	query string
	vars  map[string]any
}

// fakeGraphQL answers queries in order from responses.
type fakeGraphQL struct {
	mu        sync.Mutex
	responses []gqlResponse
	calls     []gqlCall
}

type gqlResponse struct {
	data string
	err  error
}

func (f *fakeGraphQL) Query(_ context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, gqlCall{query: query, vars: vars})
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("unexpected query")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.data), nil
}

// =============================================================================
// Writer and remote fakes
// =============================================================================

type fakeWriter struct {
	got *artifact.Request
	err error
}

func (f *fakeWriter) Write(_ context.Context, req artifact.Request) (*artifact.Result, error) {
	f.got = &req
	if f.err != nil {
		return nil, f.err
	}
	return &artifact.Result{
		Path:              "/tmp/results/" + req.Kind + ".json",
		DecompressCommand: "cat",
		QueryTool:         "jq",
		Hints:             []artifact.Hint{{Query: ".metadata", Description: "Run metadata", Scope: artifact.ScopeSingleItem}},
	}, nil
}

type fakeRemote struct {
	remote gitremote.Remote
	err    error
}

func (f fakeRemote) GitHubRemote(context.Context) (gitremote.Remote, error) {
	return f.remote, f.err
}
