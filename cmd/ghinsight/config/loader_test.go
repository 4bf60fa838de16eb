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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// TestLoad_MissingFileUsesDefaults verifies a first run needs no file.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "xz", cfg.Artifacts.Compression)
	assert.Equal(t, 30, cfg.Activity.TimeWindowDays)
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, "none", cfg.Telemetry.MetricsExporter)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
github:
  timeout: 10s
  per_page: 50
activity:
  time_window_days: 7
  unit_timeout: 90s
artifacts:
  compression: zstd
  results_dir: /tmp/out
  publish:
    gcs_bucket: team-insights
run:
  deadline: 2m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 50, cfg.GitHub.PerPage)
	assert.Equal(t, 3, cfg.GitHub.MaxRetries, "unset keys keep defaults")
	assert.Equal(t, 7, cfg.Activity.TimeWindowDays)
	assert.Equal(t, 90*time.Second, cfg.Activity.UnitTimeout)
	assert.Equal(t, "zstd", cfg.Artifacts.Compression)
	assert.Equal(t, "team-insights", cfg.Artifacts.Publish.GCSBucket)
	assert.Equal(t, 2*time.Minute, cfg.Run.Deadline)
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "github: [not, a, map"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "artifacts:\n  compression: gzip\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifacts.compression")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvCompression, "none")
	t.Setenv(EnvResultsDir, "/data/results")
	t.Setenv(EnvDeadline, "45s")
	t.Setenv(EnvAPIURL, "https://ghe.example.com/api/v3")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Artifacts.Compression)
	assert.Equal(t, "/data/results", cfg.Artifacts.ResultsDir)
	assert.Equal(t, 45*time.Second, cfg.Run.Deadline)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHub.APIURL)
}

func TestApplyEnv_BadDeadline(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(k string) string {
		if k == EnvDeadline {
			return "soon"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GitHub.PerPage = 0
	cfg.Activity.Concurrency = 0
	cfg.Telemetry.MetricsExporter = "prometheus"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "github.per_page")
	assert.Contains(t, err.Error(), "activity.concurrency")
	assert.Contains(t, err.Error(), "telemetry.metrics_file")
}

func TestEnforceMinimums(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GitHub.Timeout = 100 * time.Millisecond
	cfg.Activity.UnitTimeout = 0
	cfg.EnforceMinimums()

	assert.Equal(t, time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Activity.UnitTimeout)
}

// TestDefaultConfig_YAMLKeys guards the documented key names.
func TestDefaultConfig_YAMLKeys(t *testing.T) {
	data, err := yaml.Marshal(DefaultConfig())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	for _, k := range []string{"github", "activity", "project", "artifacts", "logging", "telemetry", "run"} {
		assert.Contains(t, doc, k)
	}
}
