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
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
)

// apiErrorBody is GitHub's JSON error document.
type apiErrorBody struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

// classifyStatus maps a non-2xx response to a typed error.
func classifyStatus(op string, status int, h http.Header, body []byte, now time.Time) *apperr.OrchestratorError {
	var doc apiErrorBody
	_ = json.Unmarshal(body, &doc)
	msg := doc.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	cause := fmt.Errorf("%s: %d %s", op, status, msg)

	switch {
	case status == http.StatusUnauthorized:
		return apperr.Authentication(cause)

	case status == http.StatusTooManyRequests,
		status == http.StatusForbidden && isRateLimited(h, msg):
		return apperr.RateLimit(rateLimitReset(h, now), cause)

	case status == http.StatusForbidden:
		return apperr.Permission(requiredScope(h), cause)

	case status == http.StatusNotFound, status == http.StatusGone:
		return apperr.NotFound(resourceOf(op), cause)

	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperr.Validation("a request accepted by the GitHub API ("+msg+")", cause)

	case status >= 500:
		return apperr.TransientNetwork(op, cause)

	default:
		return apperr.Validation("a request accepted by the GitHub API", cause).
			WithDebug("status", strconv.Itoa(status))
	}
}

func isRateLimited(h http.Header, msg string) bool {
	if h.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	if h.Get("Retry-After") != "" {
		return true
	}
	return strings.Contains(strings.ToLower(msg), "rate limit")
}

// rateLimitReset prefers Retry-After (seconds) and falls back to
// X-RateLimit-Reset (epoch seconds). Without either it assumes one minute.
func rateLimitReset(h http.Header, now time.Time) time.Time {
	if s := h.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			return now.Add(time.Duration(secs) * time.Second)
		}
	}
	if s := h.Get("X-RateLimit-Reset"); s != "" {
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(epoch, 0).UTC()
		}
	}
	return now.Add(time.Minute)
}

// requiredScope returns the first scope GitHub says the endpoint accepts.
func requiredScope(h http.Header) string {
	accepted := h.Get("X-Accepted-OAuth-Scopes")
	for _, s := range strings.Split(accepted, ",") {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// resourceOf turns "GET https://api.github.com/repos/o/r/commits" into
// "o/r" for repository paths and the bare path otherwise.
func resourceOf(op string) string {
	path := op
	if i := strings.IndexByte(op, ' '); i >= 0 {
		path = op[i+1:]
	}
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			path = rest[j:]
		}
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "repos" {
		return parts[1] + "/" + parts[2]
	}
	return path
}

// =============================================================================
// GraphQL errors
// =============================================================================

// graphQLError is one entry of a GraphQL "errors" array.
type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

// classifyGraphQL maps the first GraphQL error to a typed error.
func classifyGraphQL(op string, errs []graphQLError, h http.Header, now time.Time) *apperr.OrchestratorError {
	first := errs[0]
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	cause := fmt.Errorf("%s: %s", op, strings.Join(msgs, "; "))

	switch first.Type {
	case "NOT_FOUND":
		return apperr.NotFound(pathString(first.Path), cause)
	case "FORBIDDEN", "INSUFFICIENT_SCOPES":
		return apperr.Permission(requiredScope(h), cause)
	case "RATE_LIMITED":
		return apperr.RateLimit(rateLimitReset(h, now), cause)
	default:
		return apperr.New(apperr.KindInternalAggregation, apperr.CodeAggregationFailed, cause).
			WithDebug("graphql_type", first.Type)
	}
}

func pathString(path []any) string {
	if len(path) == 0 {
		return "graphql node"
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ".")
}
