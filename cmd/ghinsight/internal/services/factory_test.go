// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/config"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/artifact"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/auth"
)

// noGH is a runner on which `gh auth token` always fails.
type noGH struct{}

func (noGH) Run(context.Context, string, string, ...string) ([]byte, error) {
	return nil, errors.New("gh: command not found")
}

func noEnv(string) string { return "" }

func testFactory(t *testing.T, h http.HandlerFunc, token string) *Factory {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.GitHub.APIURL = srv.URL
	cfg.GitHub.GraphQLURL = srv.URL + "/graphql"
	cfg.GitHub.MaxRetries = 0
	cfg.Artifacts.Compression = artifact.CompressionNone
	cfg.Artifacts.ResultsDir = t.TempDir()

	return &Factory{
		Config:     cfg,
		Resolver:   auth.Resolver{Explicit: token, Getenv: noEnv, Runner: noGH{}},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Version:    "1.0.0",
		Command:    "ghinsight test",
		Runner:     noGH{},
		HTTPClient: srv.Client(),
		Now:        func() time.Time { return testNow },
	}
}

func TestFactory_NoCredential(t *testing.T) {
	f := testFactory(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected without a token, got %s", r.URL.Path)
	}, "")

	rc, err := f.NewRunContext(context.Background())

	require.Error(t, err)
	assert.Nil(t, rc)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalidToken, typed.Code())
	assert.NotEmpty(t, typed.RecoveryInstructions())
}

func TestFactory_RejectedCredential(t *testing.T) {
	f := testFactory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}, "ghp_bad")

	_, err := f.NewRunContext(context.Background())

	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalidToken, typed.Code())
	_, nested := apperr.As(typed.Cause)
	assert.False(t, nested, "no double wrap")
	assert.NotContains(t, err.Error(), "ghp_bad")
}

func TestFactory_CredentialCheckKeepsNonAuthKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		headers  map[string]string
		wantKind apperr.Kind
	}{
		{
			name:     "rate limited 403",
			status:   http.StatusForbidden,
			headers:  map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": "1710032400"},
			wantKind: apperr.KindRateLimit,
		},
		{
			name:     "secondary rate limit 429",
			status:   http.StatusTooManyRequests,
			headers:  map[string]string{"Retry-After": "30"},
			wantKind: apperr.KindRateLimit,
		},
		{
			name:     "missing scope 403",
			status:   http.StatusForbidden,
			headers:  map[string]string{"X-Accepted-OAuth-Scopes": "read:user"},
			wantKind: apperr.KindPermission,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testFactory(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"Forbidden"}`))
			}, "ghp_limited")

			_, err := f.NewRunContext(context.Background())

			require.Error(t, err)
			typed, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, typed.Kind)
			assert.NotEqual(t, apperr.CodeInvalidToken, typed.Code())
		})
	}
}

func TestFactory_BuildsRunContext(t *testing.T) {
	f := testFactory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		assert.Equal(t, "Bearer ghp_good", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"octocat","type":"User"}`))
	}, "ghp_good")

	rc, err := f.NewRunContext(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close(context.Background()) })

	assert.Equal(t, "octocat", rc.Login)
	assert.Equal(t, auth.SourceExplicit, rc.CredentialSource)
	assert.NotEmpty(t, rc.RunID)
	assert.Equal(t, testNow, rc.StartedAt)
	assert.NotNil(t, rc.Telemetry.Registry)
	assert.Nil(t, rc.Publisher)

	activity := rc.ActivityService()
	assert.Equal(t, rc.RunID, activity.deps.RunID)
	assert.Equal(t, 30, activity.deps.Settings.DefaultWindowDays)
	assert.NotNil(t, rc.ProjectService())
	assert.NotNil(t, rc.DetectionService())
}

func TestFactory_PublisherFailureIsInitializationError(t *testing.T) {
	f := testFactory(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"login":"octocat"}`))
	}, "ghp_good")
	f.Config.Artifacts.Publish.GCSBucket = "bucket"
	f.NewPublisher = func(context.Context, string, string, string) (artifact.Publisher, error) {
		return nil, errors.New("no credentials")
	}

	_, err := f.NewRunContext(context.Background())

	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeServiceInitializationFailed, typed.Code())
	assert.Contains(t, typed.DebugInfo()[apperr.DebugKeyError], "no credentials")
}

func TestFactory_PanicIsInitializationError(t *testing.T) {
	f := testFactory(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"login":"octocat"}`))
	}, "ghp_good")
	f.Config.Artifacts.Publish.GCSBucket = "bucket"
	f.NewPublisher = func(context.Context, string, string, string) (artifact.Publisher, error) {
		panic("publisher constructor bug")
	}

	var err error
	require.NotPanics(t, func() { _, err = f.NewRunContext(context.Background()) })

	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeServiceInitializationFailed, typed.Code())
}
