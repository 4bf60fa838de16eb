// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Harness
// =============================================================================

// failingRunner stands in for git and gh; both are "not installed".
type failingRunner struct{}

func (failingRunner) Run(context.Context, string, string, ...string) ([]byte, error) {
	return nil, errors.New("executable file not found in $PATH")
}

type harness struct {
	t          *testing.T
	srv        *httptest.Server
	requests   atomic.Int32
	configPath string
	resultsDir string
	env        map[string]string
}

// newHarness serves a minimal GitHub: GET /user, one repository "octo/api"
// with no activity, 404 for everything else.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, env: map[string]string{}}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/user":
			_, _ = w.Write([]byte(`{"login":"octocat","type":"User"}`))
		case r.URL.Path == "/repos/octo/api":
			_, _ = w.Write([]byte(`{"full_name":"octo/api","name":"api","owner":{"login":"octo"},"default_branch":"main"}`))
		case strings.HasPrefix(r.URL.Path, "/repos/octo/api/"):
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		}
	}))
	t.Cleanup(h.srv.Close)

	dir := t.TempDir()
	h.resultsDir = filepath.Join(dir, "results")
	h.configPath = filepath.Join(dir, "config.yaml")
	cfg := "github:\n" +
		"  api_url: " + h.srv.URL + "\n" +
		"  graphql_url: " + h.srv.URL + "/graphql\n" +
		"  max_retries: 0\n" +
		"artifacts:\n" +
		"  compression: none\n"
	require.NoError(t, os.WriteFile(h.configPath, []byte(cfg), 0o600))
	return h
}

func (h *harness) run(args ...string) (code int, stdout, stderr string) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.getenv = func(k string) string { return h.env[k] }
	a.runner = failingRunner{}
	a.httpClient = h.srv.Client()
	a.workDir = h.t.TempDir()

	full := append([]string{"--config", h.configPath, "--results-dir", h.resultsDir}, args...)
	code = execute(context.Background(), full, a)
	return code, out.String(), errOut.String()
}

// =============================================================================
// Execute Tests
// =============================================================================

func TestExecute_Activity(t *testing.T) {
	h := newHarness(t)

	code, stdout, stderr := h.run("--token", "ghp_cli_secret", "activity", "--owner", "octo", "--repo", "api")

	require.Equal(t, 0, code, "stdout:\n%s\nstderr:\n%s", stdout, stderr)
	assert.True(t, strings.HasPrefix(stdout, "=== DATA ===\n"))
	assert.Contains(t, stdout, "TOTAL_COMMITS=0\n")
	assert.Contains(t, stdout, "REPOSITORIES_SUCCEEDED=1\n")
	assert.Contains(t, stdout, "RESULT_FILE="+h.resultsDir)
	assert.Contains(t, stdout, "EXECUTION_STATUS=SUCCESS\n")
	assert.NotContains(t, stdout, "ghp_cli_secret")
	assert.NotContains(t, stderr, "ghp_cli_secret")

	var artifacts []string
	require.NoError(t, filepath.WalkDir(h.resultsDir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			artifacts = append(artifacts, path)
		}
		return err
	}))
	require.Len(t, artifacts, 1)
	data, err := os.ReadFile(artifacts[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "octo/api")
	assert.NotContains(t, string(data), "ghp_cli_secret")
}

func TestExecute_TokenFromEnvironment(t *testing.T) {
	h := newHarness(t)
	h.env["GITHUB_TOKEN"] = "ghp_env"

	code, stdout, _ := h.run("activity", "--owner", "octo", "--repo", "api", "--days", "7")

	assert.Equal(t, 0, code, stdout)
}

func TestExecute_NoCredential(t *testing.T) {
	h := newHarness(t)

	code, stdout, _ := h.run("activity", "--owner", "octo", "--repo", "api")

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "STOP PROCESSING\n")
	assert.Contains(t, stdout, "ERROR_TYPE=INVALID_TOKEN\n")
	assert.Contains(t, stdout, "=== RECOVERY INSTRUCTIONS ===\n")
	assert.Contains(t, stdout, "EXECUTION_STATUS=FAILURE\n")
	assert.Zero(t, h.requests.Load(), "no API call without a credential")
}

func TestExecute_InvalidArguments(t *testing.T) {
	h := newHarness(t)

	code, stdout, _ := h.run("--token", "ghp_x", "activity", "--owner", "octo")

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "ERROR_TYPE=INVALID_INPUT\n")
}

func TestExecute_UnknownFlag(t *testing.T) {
	h := newHarness(t)

	code, stdout, _ := h.run("activity", "--bogus")

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "ERROR_TYPE=INVALID_INPUT\n")
	assert.Contains(t, stdout, "bogus")
	assert.Zero(t, h.requests.Load())
}

func TestExecute_BadCompressionFlag(t *testing.T) {
	h := newHarness(t)

	code, stdout, _ := h.run("--token", "ghp_x", "--compression", "rar", "activity", "--owner", "octo", "--repo", "api")

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "ERROR_TYPE=INVALID_INPUT\n")
	assert.Contains(t, stdout, "artifacts.compression")
	assert.Zero(t, h.requests.Load())
}

func TestExecute_DetectWithoutInputOrRemote(t *testing.T) {
	h := newHarness(t)

	code, stdout, _ := h.run("--token", "ghp_x", "detect")

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "ERROR_TYPE=INVALID_INPUT\n")
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"plain", []string{"activity", "--owner", "octo"}, "ghinsight activity --owner octo"},
		{"token value", []string{"--token", "ghp_a", "detect"}, "ghinsight --token [REDACTED] detect"},
		{"token equals", []string{"--token=ghp_a", "detect"}, "ghinsight --token=[REDACTED] detect"},
		{"long token keeps prefix", []string{"--token", "ghp_abcdefghijkl"}, "ghinsight --token ghp_…[REDACTED]"},
		{"empty", nil, "ghinsight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandLine(tt.args))
		})
	}
}
