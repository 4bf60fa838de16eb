// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

// Environment variables that override file values.
const (
	EnvResultsDir  = "GHINSIGHT_RESULTS_DIR"
	EnvLogLevel    = "GHINSIGHT_LOG_LEVEL"
	EnvCompression = "GHINSIGHT_COMPRESSION"
	EnvDeadline    = "GHINSIGHT_DEADLINE"
	EnvAPIURL      = "GITHUB_API_URL"
	EnvGraphQLURL  = "GITHUB_GRAPHQL_URL"
)

// DefaultPath returns ~/.ghinsight/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".ghinsight", "config.yaml"), nil
}

// Load builds the configuration for one invocation.
//
// # Description
//
// Order of precedence, lowest first: DefaultConfig, the YAML file at path
// (a missing file is not an error), a .env file in the working directory
// (never overriding variables already set), then environment overrides.
// The result is validated and timeouts below their minimum are raised.
//
// # Inputs
//
//   - path: Config file path. Empty means DefaultPath.
//
// # Outputs
//
//   - GHInsightConfig: Ready to use.
//   - error: Unreadable or malformed file, or failed validation.
func Load(path string) (GHInsightConfig, error) {
	cfg := DefaultConfig()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read the config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}

	// .env is optional; godotenv.Load keeps existing variables.
	_ = godotenv.Load()

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.EnforceMinimums()
	return cfg, nil
}

// ApplyEnv overlays the GHINSIGHT_* and GITHUB_*_URL variables.
func (c *GHInsightConfig) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvResultsDir); v != "" {
		c.Artifacts.ResultsDir = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := getenv(EnvCompression); v != "" {
		c.Artifacts.Compression = v
	}
	if v := getenv(EnvDeadline); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDeadline, err)
		}
		c.Run.Deadline = d
	}
	if v := getenv(EnvAPIURL); v != "" {
		c.GitHub.APIURL = v
	}
	if v := getenv(EnvGraphQLURL); v != "" {
		c.GitHub.GraphQLURL = v
	}
	return nil
}

// Validate checks enumerations and ranges.
func (c GHInsightConfig) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(oneOf(c.Artifacts.Compression, "xz", "zstd", "none"), "artifacts.compression %q: want xz, zstd or none", c.Artifacts.Compression)
	check(oneOf(strings.ToLower(c.Logging.Level), "debug", "info", "warn", "warning", "error"), "logging.level %q: want debug, info, warn or error", c.Logging.Level)
	check(oneOf(c.Telemetry.MetricsExporter, "", "none", "prometheus", "stdout"), "telemetry.metrics_exporter %q: want none, prometheus or stdout", c.Telemetry.MetricsExporter)
	check(oneOf(c.Telemetry.TraceExporter, "", "none", "stdout", "otlp"), "telemetry.trace_exporter %q: want none, stdout or otlp", c.Telemetry.TraceExporter)
	check(c.GitHub.PerPage >= 1 && c.GitHub.PerPage <= 100, "github.per_page %d: want 1-100", c.GitHub.PerPage)
	check(c.GitHub.MaxPages >= 1, "github.max_pages %d: want >= 1", c.GitHub.MaxPages)
	check(c.GitHub.MaxRetries >= 0, "github.max_retries %d: want >= 0", c.GitHub.MaxRetries)
	check(c.GitHub.RequestsPerSecond >= 0, "github.requests_per_second %v: want >= 0", c.GitHub.RequestsPerSecond)
	check(c.Activity.TimeWindowDays >= 1 && c.Activity.TimeWindowDays <= 365, "activity.time_window_days %d: want 1-365", c.Activity.TimeWindowDays)
	check(c.Activity.Concurrency >= 1, "activity.concurrency %d: want >= 1", c.Activity.Concurrency)
	check(c.Project.PageSize >= 1 && c.Project.PageSize <= 100, "project.page_size %d: want 1-100", c.Project.PageSize)
	check(c.Project.MaxPages >= 1, "project.max_pages %d: want >= 1", c.Project.MaxPages)
	check(c.Project.DetectLimit >= 1 && c.Project.DetectLimit <= 100, "project.detect_limit %d: want 1-100", c.Project.DetectLimit)
	check(c.Artifacts.ResultsDir != "", "artifacts.results_dir must not be empty")
	check(c.Run.Deadline >= 0, "run.deadline %s: must not be negative", c.Run.Deadline)
	if (c.Telemetry.MetricsExporter == "prometheus" || c.Telemetry.MetricsExporter == "stdout") && c.Telemetry.MetricsFile == "" {
		errs = append(errs, fmt.Errorf("telemetry.metrics_file is required for the %s exporter", c.Telemetry.MetricsExporter))
	}
	if c.Telemetry.TraceExporter == "stdout" && c.Telemetry.TraceFile == "" {
		errs = append(errs, errors.New("telemetry.trace_file is required for the stdout trace exporter"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// EnforceMinimums raises timeouts below their floor.
func (c *GHInsightConfig) EnforceMinimums() {
	c.GitHub.Timeout = util.EnforceMinTimeout(util.EnforceDefaultTimeout(c.GitHub.Timeout, util.DefaultAPITimeout), util.MinAPITimeout)
	c.Activity.UnitTimeout = util.EnforceMinTimeout(util.EnforceDefaultTimeout(c.Activity.UnitTimeout, util.DefaultUnitTimeout), util.MinUnitTimeout)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
