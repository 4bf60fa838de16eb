// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
)

// RESTClient reads the GitHub REST API.
//
// # Description
//
// Get and List are idempotent and retried on TRANSIENT_NETWORK failures.
// Post is attempted exactly once. Every error is an
// *apperr.OrchestratorError.
//
// # Example
//
//	c := github.NewRESTClient(token, github.WithTimeout(30*time.Second))
//	commits, err := c.ListCommits(ctx, "octo", "hello", since)
//	if commits.Truncated { ... }
type RESTClient struct {
	baseURL  string
	perPage  int
	maxPages int
	req      *requester
}

// NewRESTClient creates a REST client. An empty token sends unauthenticated
// requests.
func NewRESTClient(token string, opts ...Option) *RESTClient {
	cfg := newClientConfig(DefaultAPIURL, opts)
	return &RESTClient{
		baseURL:  strings.TrimRight(cfg.baseURL, "/"),
		perPage:  cfg.perPage,
		maxPages: cfg.maxPages,
		req:      newRequester("rest", token, cfg),
	}
}

// Get fetches a single JSON document.
func (c *RESTClient) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	resp, err := c.req.do(ctx, "GET", c.url(path, query), nil, true)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.body), nil
}

// Listing is the result of a paginated read. Truncated is set when the page
// limit was reached while the API still offered a next page, so Items is a
// lower bound.
type Listing struct {
	Items     []json.RawMessage
	Truncated bool
}

// List fetches a paginated JSON array.
//
// # Description
//
// Follows the Link rel="next" header up to the configured page limit.
// Each page is retried independently. When stop is non-nil it is called for
// every item in order; the first item for which it returns true and every
// item after it are discarded and pagination ends. Ending on stop is not a
// truncation.
//
// # Outputs
//
//   - Listing: Items in API order (never nil on success) and whether the
//     page limit cut the listing short.
//   - error: Typed error of the first page that failed.
func (c *RESTClient) List(ctx context.Context, path string, query url.Values, stop func(json.RawMessage) bool) (Listing, error) {
	q := cloneValues(query)
	if q.Get("per_page") == "" {
		q.Set("per_page", strconv.Itoa(c.perPage))
	}
	next := c.url(path, q)
	out := Listing{Items: make([]json.RawMessage, 0)}

	for page := 0; next != "" && page < c.maxPages; page++ {
		resp, err := c.req.do(ctx, "GET", next, nil, true)
		if err != nil {
			return Listing{}, err
		}
		var batch []json.RawMessage
		if err := json.Unmarshal(resp.body, &batch); err != nil {
			return Listing{}, apperr.InternalAggregation(fmt.Errorf("decode page %d of %s: %w", page+1, path, err))
		}
		for _, item := range batch {
			if stop != nil && stop(item) {
				return out, nil
			}
			out.Items = append(out.Items, item)
		}
		next = nextLink(resp.header.Get("Link"))
	}
	// The loop only exits with a pending link when the page limit was hit.
	out.Truncated = next != ""
	if out.Truncated {
		c.req.logger.Warn("listing truncated at page limit", "path", path, "max_pages", c.maxPages, "items", len(out.Items))
	}
	return out, nil
}

// Post sends a JSON body. It is never retried.
func (c *RESTClient) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Validation("a JSON-encodable request body", err)
	}
	resp, err := c.req.do(ctx, "POST", c.url(path, nil), data, false)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.body), nil
}

// =============================================================================
// Endpoint helpers
// =============================================================================

// Viewer returns the authenticated user (GET /user).
func (c *RESTClient) Viewer(ctx context.Context) (json.RawMessage, error) {
	return c.Get(ctx, "/user", nil)
}

// GetRepository returns GET /repos/{owner}/{repo}.
func (c *RESTClient) GetRepository(ctx context.Context, owner, repo string) (json.RawMessage, error) {
	return c.Get(ctx, repoPath(owner, repo, ""), nil)
}

// ListCommits returns commits authored since the given time.
func (c *RESTClient) ListCommits(ctx context.Context, owner, repo string, since time.Time) (Listing, error) {
	q := url.Values{"since": {since.UTC().Format(time.RFC3339)}}
	return c.List(ctx, repoPath(owner, repo, "/commits"), q, nil)
}

// ListIssues returns issues and pull requests updated since the given time.
// The REST endpoint mixes both; ParseIssues separates them.
func (c *RESTClient) ListIssues(ctx context.Context, owner, repo string, since time.Time) (Listing, error) {
	q := url.Values{
		"state": {"all"},
		"since": {since.UTC().Format(time.RFC3339)},
		"sort":  {"updated"},
	}
	return c.List(ctx, repoPath(owner, repo, "/issues"), q, nil)
}

// ListPulls returns pull requests updated since the given time. The pulls
// endpoint has no since filter, so results are sorted by update time and
// pagination stops at the first older item.
func (c *RESTClient) ListPulls(ctx context.Context, owner, repo string, since time.Time) (Listing, error) {
	q := url.Values{
		"state":     {"all"},
		"sort":      {"updated"},
		"direction": {"desc"},
	}
	return c.List(ctx, repoPath(owner, repo, "/pulls"), q, updatedBefore(since))
}

// ListIssueComments returns issue and PR conversation comments updated since
// the given time.
func (c *RESTClient) ListIssueComments(ctx context.Context, owner, repo string, since time.Time) (Listing, error) {
	q := url.Values{"since": {since.UTC().Format(time.RFC3339)}}
	return c.List(ctx, repoPath(owner, repo, "/issues/comments"), q, nil)
}

// =============================================================================
// Helpers
// =============================================================================

func (c *RESTClient) url(path string, query url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		u = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func repoPath(owner, repo, suffix string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + suffix
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

var linkNextPattern = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="next"`)

// nextLink extracts the rel="next" target of a Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		if m := linkNextPattern.FindStringSubmatch(part); m != nil {
			return m[1]
		}
	}
	return ""
}

// updatedBefore stops pagination at the first item whose updated_at is
// older than since. Items without a parseable timestamp never stop it.
func updatedBefore(since time.Time) func(json.RawMessage) bool {
	return func(item json.RawMessage) bool {
		var doc struct {
			UpdatedAt time.Time `json:"updated_at"`
		}
		if err := json.Unmarshal(item, &doc); err != nil || doc.UpdatedAt.IsZero() {
			return false
		}
		return doc.UpdatedAt.Before(since)
	}
}
