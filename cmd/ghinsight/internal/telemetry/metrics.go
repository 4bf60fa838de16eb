// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricsNamespace = "ghinsight"
	metricsSubsystem = "api"

	instrumentationName = "github.com/AleutianAI/ghinsight/telemetry"
)

// =============================================================================
// API Metrics (Prometheus)
// =============================================================================

// APIMetrics records GitHub API traffic.
//
// Exposed series:
//   - ghinsight_api_requests_total{api,outcome}
//   - ghinsight_api_retries_total{api}
//   - ghinsight_api_request_duration_seconds{api}
//
// A nil *APIMetrics is valid and records nothing.
type APIMetrics struct {
	requestsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewAPIMetrics creates and registers the API series on reg.
func NewAPIMetrics(reg prometheus.Registerer) (*APIMetrics, error) {
	m := &APIMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "requests_total",
				Help:      "GitHub API requests by API (rest, graphql) and outcome",
			},
			[]string{"api", "outcome"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "retries_total",
				Help:      "Retried GitHub API requests",
			},
			[]string{"api"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "request_duration_seconds",
				Help:      "GitHub API request latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"api"},
		),
	}
	for _, c := range []prometheus.Collector{m.requestsTotal, m.retriesTotal, m.requestDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRequest records one completed request attempt.
func (m *APIMetrics) ObserveRequest(api, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(api, outcome).Inc()
	m.requestDuration.WithLabelValues(api).Observe(d.Seconds())
}

// IncRetry records one retry.
func (m *APIMetrics) IncRetry(api string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(api).Inc()
}

// =============================================================================
// Service Metrics (OpenTelemetry)
// =============================================================================

// ServiceMetrics records orchestrator executions and artifact sizes through
// the otel metric API. A nil *ServiceMetrics is valid and records nothing.
type ServiceMetrics struct {
	executions    metric.Int64Counter
	artifactBytes metric.Int64Histogram
}

// NewServiceMetrics creates the instruments on meter.
func NewServiceMetrics(meter metric.Meter) (*ServiceMetrics, error) {
	m := &ServiceMetrics{}
	var err error

	m.executions, err = meter.Int64Counter(
		"ghinsight.service.executions",
		metric.WithDescription("Orchestrator executions by service and outcome"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create service.executions: %w", err)
	}

	m.artifactBytes, err = meter.Int64Histogram(
		"ghinsight.artifact.size",
		metric.WithDescription("Size of written result artifacts"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1<<10, 1<<14, 1<<17, 1<<20, 1<<23, 1<<26),
	)
	if err != nil {
		return nil, fmt.Errorf("create artifact.size: %w", err)
	}
	return m, nil
}

// RecordExecution counts one service execution.
func (m *ServiceMetrics) RecordExecution(ctx context.Context, service, outcome string) {
	if m == nil {
		return
	}
	m.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("outcome", outcome),
	))
}

// RecordArtifact records the final size of one artifact.
func (m *ServiceMetrics) RecordArtifact(ctx context.Context, compression string, sizeBytes int64) {
	if m == nil {
		return
	}
	m.artifactBytes.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("compression", compression)))
}
