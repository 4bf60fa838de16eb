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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/telemetry"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

var tracer = otel.Tracer("ghinsight.github")

// response is one completed HTTP exchange with a 2xx status.
type response struct {
	body   []byte
	header http.Header
}

// requester is the shared request pipeline behind both clients.
type requester struct {
	api        string
	http       *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    MetricsRecorder
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

func newRequester(api, token string, cfg clientConfig) *requester {
	base := cfg.httpClient
	if base == nil {
		base = &http.Client{}
	}
	hc := base
	if token != "" {
		hc = &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
				Base:   base.Transport,
			},
			CheckRedirect: base.CheckRedirect,
			Jar:           base.Jar,
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.rps), int(math.Max(1, math.Ceil(cfg.rps))))
	}

	return &requester{
		api:        api,
		http:       hc,
		limiter:    limiter,
		logger:     cfg.logger.With("component", "github."+api),
		metrics:    cfg.metrics,
		timeout:    util.EnforceMinTimeout(util.EnforceDefaultTimeout(cfg.timeout, util.DefaultAPITimeout), util.MinAPITimeout),
		maxRetries: cfg.maxRetries,
		backoff:    cfg.initialBackoff,
	}
}

// do performs method on url. Idempotent requests are retried while the
// failure is retryable; every returned error is an *apperr.OrchestratorError.
func (r *requester) do(ctx context.Context, method, url string, body []byte, idempotent bool) (response, error) {
	op := method + " " + redactQuery(url)
	ctx, span := tracer.Start(ctx, "github."+r.api, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", redactQuery(url)),
		attribute.Bool("idempotent", idempotent),
	))
	defer span.End()

	if !idempotent {
		resp, err := r.once(ctx, op, method, url, body)
		if err != nil {
			telemetry.RecordError(span, err)
			return response{}, err
		}
		telemetry.SetSpanOK(span)
		return resp, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.backoff
	b.MaxInterval = 10 * r.backoff

	attempts := 0
	resp, err := backoff.Retry(ctx, func() (response, error) {
		attempts++
		resp, err := r.once(ctx, op, method, url, body)
		if err == nil {
			return resp, nil
		}
		if apperr.KindOf(err).Retryable() {
			return response{}, err
		}
		return response{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.metrics.IncRetry(r.api)
			r.logger.Warn("retrying request", "op", op, "error", err, "next_in", next)
		}),
	)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		typed, ok := apperr.As(err)
		if !ok {
			typed = apperr.TransientNetwork(op, err)
		}
		telemetry.RecordError(span, typed)
		return response{}, typed
	}
	telemetry.SetSpanOK(span)
	return resp, nil
}

// once performs a single attempt.
func (r *requester) once(ctx context.Context, op, method, url string, body []byte) (response, error) {
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return response{}, r.fail(op, start, apperr.TransientNetwork(op, err))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return response{}, r.fail(op, start, apperr.Validation("a well-formed API URL", err))
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return response{}, r.fail(op, start, apperr.TransientNetwork(op, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, r.fail(op, start, apperr.TransientNetwork(op, fmt.Errorf("read body: %w", err)))
	}

	if resp.StatusCode >= 400 {
		return response{}, r.fail(op, start, classifyStatus(op, resp.StatusCode, resp.Header, data, time.Now()))
	}

	r.metrics.ObserveRequest(r.api, "success", time.Since(start))
	r.logger.Debug("request ok", "op", op, "status", resp.StatusCode, "bytes", len(data), "duration", time.Since(start))
	return response{body: data, header: resp.Header}, nil
}

func (r *requester) fail(op string, start time.Time, err *apperr.OrchestratorError) error {
	r.metrics.ObserveRequest(r.api, strings.ToLower(string(err.Kind)), time.Since(start))
	r.logger.Debug("request failed", "op", op, "kind", err.Kind, "error", err.Cause)
	return err
}

// redactQuery drops the query string so cursors and filters stay out of
// span attributes and log lines.
func redactQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
