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
	"time"
)

type GHInsightConfig struct {
	// GitHub: API endpoints and client behaviour
	GitHub GitHubConfig `yaml:"github"`

	// Activity: defaults for the activity analysis fan-out
	Activity ActivityConfig `yaml:"activity"`

	// Project: ProjectV2 paging and detection limits
	Project ProjectConfig `yaml:"project"`

	// Artifacts: where result files go and how they are compressed
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Run       RunConfig       `yaml:"run"`
}

type GitHubConfig struct {
	APIURL            string        `yaml:"api_url"`             // e.g. https://api.github.com
	GraphQLURL        string        `yaml:"graphql_url"`         // e.g. https://api.github.com/graphql
	Timeout           time.Duration `yaml:"timeout"`             // per request attempt
	MaxRetries        int           `yaml:"max_retries"`         // idempotent reads only
	MaxPages          int           `yaml:"max_pages"`           // REST pagination bound
	PerPage           int           `yaml:"per_page"`            // 1-100
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 disables the limiter
}

type ActivityConfig struct {
	TimeWindowDays int           `yaml:"time_window_days"`
	Concurrency    int           `yaml:"concurrency"`  // repositories fetched at once
	UnitTimeout    time.Duration `yaml:"unit_timeout"` // per repository
}

type ProjectConfig struct {
	PageSize    int `yaml:"page_size"`    // items per GraphQL page, 1-100
	MaxPages    int `yaml:"max_pages"`    // item pages per board
	DetectLimit int `yaml:"detect_limit"` // boards listed in owner mode
}

type ArtifactsConfig struct {
	ResultsDir       string        `yaml:"results_dir"`
	Compression      string        `yaml:"compression"` // xz, zstd or none
	XZCommand        string        `yaml:"xz_command"`
	QueryTool        string        `yaml:"query_tool"`
	KeepUncompressed bool          `yaml:"keep_uncompressed"`
	Publish          PublishConfig `yaml:"publish"`
}

// PublishConfig enables GCS upload when GCSBucket is set.
type PublishConfig struct {
	GCSBucket       string `yaml:"gcs_bucket"`
	GCSPrefix       string `yaml:"gcs_prefix"`
	CredentialsFile string `yaml:"credentials_file"` // empty uses ADC
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // optional JSON log file directory
	JSON  bool   `yaml:"json"`
}

type TelemetryConfig struct {
	MetricsExporter string `yaml:"metrics_exporter"` // none, prometheus, stdout
	MetricsFile     string `yaml:"metrics_file"`
	TraceExporter   string `yaml:"trace_exporter"` // none, stdout, otlp
	TraceFile       string `yaml:"trace_file"`
	OTLPEndpoint    string `yaml:"otlp_endpoint"`
	OTLPInsecure    bool   `yaml:"otlp_insecure"`
}

type RunConfig struct {
	// Deadline bounds a whole invocation; zero means none.
	Deadline time.Duration `yaml:"deadline"`
}

func DefaultConfig() GHInsightConfig {
	return GHInsightConfig{
		GitHub: GitHubConfig{
			APIURL:            "https://api.github.com",
			GraphQLURL:        "https://api.github.com/graphql",
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			MaxPages:          10,
			PerPage:           100,
			RequestsPerSecond: 10,
		},
		Activity: ActivityConfig{
			TimeWindowDays: 30,
			Concurrency:    4,
			UnitTimeout:    60 * time.Second,
		},
		Project: ProjectConfig{
			PageSize:    100,
			MaxPages:    10,
			DetectLimit: 20,
		},
		Artifacts: ArtifactsConfig{
			ResultsDir:  "./results",
			Compression: "xz",
			XZCommand:   "xz",
			QueryTool:   "jq",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			MetricsExporter: "none",
			TraceExporter:   "none",
			OTLPEndpoint:    "localhost:4317",
			OTLPInsecure:    true,
		},
	}
}
