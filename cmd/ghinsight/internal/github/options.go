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
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultAPIURL is the public REST endpoint.
	DefaultAPIURL = "https://api.github.com"

	// DefaultGraphQLURL is the public GraphQL endpoint.
	DefaultGraphQLURL = "https://api.github.com/graphql"

	defaultMaxRetries     = 3
	defaultPerPage        = 100
	defaultMaxPages       = 10
	defaultRPS            = 10
	defaultInitialBackoff = 500 * time.Millisecond
	maxResponseBytes      = 32 << 20
	apiVersion            = "2022-11-28"
	userAgent             = "ghinsight"
)

// MetricsRecorder receives per-request observations.
// *telemetry.APIMetrics satisfies it.
type MetricsRecorder interface {
	ObserveRequest(api, outcome string, d time.Duration)
	IncRetry(api string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, string, time.Duration) {}
func (noopMetrics) IncRetry(string)                              {}

// Option configures a RESTClient or GraphQLClient.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL        string
	httpClient     *http.Client
	logger         *slog.Logger
	timeout        time.Duration
	maxRetries     int
	rps            float64
	metrics        MetricsRecorder
	perPage        int
	maxPages       int
	initialBackoff time.Duration
}

func newClientConfig(baseURL string, opts []Option) clientConfig {
	cfg := clientConfig{
		baseURL:        baseURL,
		logger:         slog.Default(),
		maxRetries:     defaultMaxRetries,
		rps:            defaultRPS,
		metrics:        noopMetrics{},
		perPage:        defaultPerPage,
		maxPages:       defaultMaxPages,
		initialBackoff: defaultInitialBackoff,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithBaseURL overrides the API endpoint (GitHub Enterprise, tests).
func WithBaseURL(u string) Option {
	return func(c *clientConfig) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// with the bearer-token transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = h }
}

// WithLogger sets the logger for request and retry events.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds each request attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithMaxRetries sets how many times a failed read is retried.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative
// disables the limiter.
func WithRateLimit(rps float64) Option {
	return func(c *clientConfig) { c.rps = rps }
}

// WithMetrics sets the request recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *clientConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithPerPage sets the REST page size (1..100).
func WithPerPage(n int) Option {
	return func(c *clientConfig) {
		if n > 0 && n <= 100 {
			c.perPage = n
		}
	}
}

// WithMaxPages bounds pagination per List call.
func WithMaxPages(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithRetryBackoff sets the first retry delay; later delays grow
// exponentially.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.initialBackoff = d
		}
	}
}
