// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package artifact writes the on-disk result file of a run.
//
// # Document Layout
//
// Every artifact has exactly three top-level members, in this order:
//
//	{
//	  "metadata":   {generatedAt, command, executionTimeMs, version, runId},
//	  "raw":        {<source>: <verbatim trimmed API payload>, ...},
//	  "calculated": {<grouping>: <derived statistics>, ...}
//	}
//
// Map keys are sorted by encoding/json, so the same inputs always produce
// byte-identical files.
//
// # Lifecycle
//
//	write .json ──► compress (xz | zstd | none) ──► retention ──► publish (gcs, optional)
//	                      │ failure
//	                      └──► keep .json, record failed "compress artifact" action
package artifact

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Metadata describes the run that produced an artifact.
type Metadata struct {
	GeneratedAt     time.Time `json:"generatedAt"`
	Command         string    `json:"command"`
	ExecutionTimeMs int64     `json:"executionTimeMs"`
	Version         string    `json:"version"`
	RunID           string    `json:"runId,omitempty"`
}

// Document is the artifact body.
type Document struct {
	Metadata   Metadata       `json:"metadata"`
	Raw        map[string]any `json:"raw"`
	Calculated map[string]any `json:"calculated"`
}

// timestampLayout is ISO 8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName builds "<kind>-<owner>-<id>-<timestamp>.json" where the
// timestamp has ':' and '.' replaced by '-'. Unsafe characters in the
// other parts become '_'.
func FileName(kind, owner, id string, at time.Time) string {
	ts := at.UTC().Format(timestampLayout)
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return fmt.Sprintf("%s-%s-%s-%s.json", sanitize(kind), sanitize(owner), sanitize(id), ts)
}

func sanitize(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "unknown"
	}
	return s
}
