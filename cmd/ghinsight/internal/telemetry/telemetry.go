// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires per-run metrics and tracing for ghinsight.
//
// A CLI run is short-lived, so nothing is scraped or served. Metrics land in
// a per-run Prometheus registry that is written to a textfile at shutdown
// (node_exporter textfile collector format); spans are exported to a file or
// an OTLP endpoint. Everything is optional and off by default.
//
// # Usage
//
//	p, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Shutdown(ctx)
//
//	client := github.NewRESTClient(github.WithMetrics(p.API))
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

// Exporter names accepted by Config.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

var (
	// ErrNilContext is returned when Init is called with a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)

// Config controls telemetry for one run.
type Config struct {
	// ServiceName identifies the binary in spans and target_info.
	ServiceName string

	// ServiceVersion is the build version.
	ServiceVersion string

	// TraceExporter is none, stdout (to TraceFile) or otlp.
	TraceExporter string

	// TraceFile receives stdout-exported spans. Empty means stderr.
	TraceFile string

	// OTLPEndpoint is the host:port of an OTLP/gRPC collector.
	OTLPEndpoint string

	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool

	// MetricExporter is none, prometheus (textfile) or stdout (JSON file).
	MetricExporter string

	// MetricsFile is where metrics are written at shutdown.
	MetricsFile string
}

// DefaultConfig returns a configuration with every exporter disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "ghinsight",
		ServiceVersion: "dev",
		TraceExporter:  ExporterNone,
		OTLPEndpoint:   "localhost:4317",
		OTLPInsecure:   true,
		MetricExporter: ExporterNone,
	}
}

// Provider owns the run's registry, instruments and exporters.
//
// # Thread Safety
//
// Instruments are safe for concurrent use. Shutdown must be called once.
type Provider struct {
	// Registry is the per-run Prometheus registry.
	Registry *prometheus.Registry

	// API records GitHub API traffic.
	API *APIMetrics

	// Service records orchestrator executions and artifacts.
	Service *ServiceMetrics

	cfg       Config
	shutdowns []func(context.Context) error
}

// Init configures metrics and tracing for this run.
//
// # Description
//
// Always creates a fresh registry and instruments, even when every exporter
// is disabled, so callers never need nil checks. When TraceExporter is not
// none the global otel TracerProvider is replaced; when MetricExporter is
// not none the global MeterProvider is replaced.
//
// # Outputs
//
//   - *Provider: Ready to use; call Shutdown to flush.
//   - error: ErrNilContext, ErrUnknownExporter, or exporter setup failure.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ghinsight"
	}

	reg := prometheus.NewRegistry()
	p := &Provider{Registry: reg, cfg: cfg}

	api, err := NewAPIMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register api metrics: %w", err)
	}
	p.API = api

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		attribute.String("ghinsight.component", "cli"),
	)

	if cfg.TraceExporter != "" && cfg.TraceExporter != ExporterNone {
		tp, err := initTracer(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		p.shutdowns = append(p.shutdowns, tp.Shutdown)
	}

	if cfg.MetricExporter != "" && cfg.MetricExporter != ExporterNone {
		mp, err := initMeter(cfg, res, reg)
		if err != nil {
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		p.shutdowns = append(p.shutdowns, mp.Shutdown)
	}

	svc, err := NewServiceMetrics(otel.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("create service metrics: %w", err)
	}
	p.Service = svc

	return p, nil
}

// Shutdown flushes exporters and writes the metrics textfile.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.cfg.MetricExporter == ExporterPrometheus && p.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(p.cfg.MetricsFile, p.Registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	for i := len(p.shutdowns) - 1; i >= 0; i-- {
		if err := p.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent(cfg.ServiceName + "/" + cfg.ServiceVersion)),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)

	case ExporterStdout:
		w := os.Stderr
		if cfg.TraceFile != "" {
			f, ferr := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if ferr != nil {
				return nil, fmt.Errorf("open trace file: %w", ferr)
			}
			w = f
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

func initMeter(cfg Config, res *resource.Resource, reg *prometheus.Registry) (*sdkmetric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case ExporterPrometheus:
		exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		), nil

	case ExporterStdout:
		w := os.Stderr
		if cfg.MetricsFile != "" {
			f, err := os.Create(cfg.MetricsFile)
			if err != nil {
				return nil, fmt.Errorf("open metrics file: %w", err)
			}
			w = f
		}
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}
