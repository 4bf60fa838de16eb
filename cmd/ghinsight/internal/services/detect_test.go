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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/github"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/gitremote"
)

const lookupDoc = `{"repositoryOwner":{"__typename":"Organization","login":"ORG","projectV2":{"id":"PVT_org7","title":"Roadmap","number":7,"url":"https://github.com/orgs/ORG/projects/7","closed":false}}}`

func TestParseProjectURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ProjectURL
		ok    bool
	}{
		{"org", "https://github.com/orgs/ORG/projects/7", ProjectURL{OwnerType: "orgs", Owner: "ORG", Number: 7}, true},
		{"user", "https://github.com/users/alice/projects/12", ProjectURL{OwnerType: "users", Owner: "alice", Number: 12}, true},
		{"view", "https://github.com/orgs/ORG/projects/7/views/3", ProjectURL{OwnerType: "orgs", Owner: "ORG", Number: 7}, true},
		{"query", "https://github.com/orgs/ORG/projects/7?pane=issue", ProjectURL{OwnerType: "orgs", Owner: "ORG", Number: 7}, true},
		{"no scheme", "github.com/orgs/ORG/projects/7", ProjectURL{OwnerType: "orgs", Owner: "ORG", Number: 7}, true},
		{"repo url", "https://github.com/ORG/repo", ProjectURL{}, false},
		{"no number", "https://github.com/orgs/ORG/projects/", ProjectURL{}, false},
		{"zero", "https://github.com/orgs/ORG/projects/0", ProjectURL{}, false},
		{"other host", "https://gitlab.com/orgs/ORG/projects/7", ProjectURL{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProjectURL(tt.input)
			if !tt.ok {
				require.Error(t, err)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_URL(t *testing.T) {
	gql := &fakeGraphQL{responses: []gqlResponse{{data: lookupDoc}}}

	env := NewDetectionService(gql, nil, testDeps()).Execute(context.Background(), ProjectDetectionArgs{
		Input: "https://github.com/orgs/ORG/projects/7",
	})

	require.False(t, env.HasError(), "%v", env.Err())
	assert.Equal(t, "ORG", mustGet(t, env, KeyProjectOwner))
	assert.Equal(t, "7", mustGet(t, env, KeyProjectNumber))
	assert.Equal(t, "url", mustGet(t, env, KeyDetectionMode))
	assert.Equal(t, "PVT_org7", mustGet(t, env, KeyProjectID))
	assert.Equal(t, "Organization", mustGet(t, env, KeyProjectOwnerType))
	assert.Equal(t, SourceInput, mustGet(t, env, KeyDetectionSource))

	require.Len(t, gql.calls, 1)
	assert.Equal(t, github.ProjectLookupQuery, gql.calls[0].query)
	assert.Equal(t, 7, gql.calls[0].vars["number"])
}

func TestDetect_MalformedURL(t *testing.T) {
	gql := &fakeGraphQL{}

	env := NewDetectionService(gql, nil, testDeps()).Execute(context.Background(), ProjectDetectionArgs{
		Input: "https://github.com/ORG/not-a-project",
		Mode:  ModeURL,
	})

	require.True(t, env.HasError())
	assert.Equal(t, apperr.KindValidation, env.Err().Kind)
	assert.Contains(t, env.Err().RecoveryInstructions()[0], ExpectedProjectURL)
	assert.Empty(t, gql.calls)
}

func TestDetect_URLLookupNotFoundKeepsParsedFields(t *testing.T) {
	gql := &fakeGraphQL{responses: []gqlResponse{{data: `{"repositoryOwner":{"__typename":"Organization","login":"ORG","projectV2":null}}`}}}

	env := NewDetectionService(gql, nil, testDeps()).Execute(context.Background(), ProjectDetectionArgs{
		Input: "https://github.com/orgs/ORG/projects/99",
	})

	require.True(t, env.HasError())
	assert.Equal(t, apperr.KindNotFound, env.Err().Kind)
	assert.Equal(t, "ORG", mustGet(t, env, KeyProjectOwner))
	assert.Equal(t, "99", mustGet(t, env, KeyProjectNumber))
}

func TestDetect_OwnerMode(t *testing.T) {
	gql := &fakeGraphQL{responses: []gqlResponse{{data: `{"repositoryOwner":{"__typename":"User","login":"alice","projectsV2":{"totalCount":2,"nodes":[
		{"id":"PVT_a1","title":"One","number":1,"url":"u1","closed":false},
		{"id":"PVT_a2","title":"Two","number":2,"url":"u2","closed":true}]}}}`}}}
	deps := testDeps()
	deps.Settings.DetectLimit = 5

	env := NewDetectionService(gql, nil, deps).Execute(context.Background(), ProjectDetectionArgs{Input: "alice"})

	require.False(t, env.HasError())
	assert.Equal(t, "owner", mustGet(t, env, KeyDetectionMode))
	assert.Equal(t, "2", mustGet(t, env, KeyProjectCount))
	assert.Equal(t, "PVT_a2", mustGet(t, env, KeyProjectNID.At(2)))
	assert.Equal(t, "Two", mustGet(t, env, KeyProjectNTitle.At(2)))
	assert.Equal(t, 5, gql.calls[0].vars["first"])
	_, hasID := env.Get(string(KeyProjectID))
	assert.False(t, hasID)
}

func TestDetect_AutoFromGitRemote(t *testing.T) {
	gql := &fakeGraphQL{responses: []gqlResponse{{data: `{"repositoryOwner":{"__typename":"Organization","login":"octo","projectsV2":{"totalCount":0,"nodes":[]}}}`}}}
	remote := fakeRemote{remote: gitremote.Remote{Host: "github.com", Owner: "octo", Repo: "api"}}

	env := NewDetectionService(gql, remote, testDeps()).Execute(context.Background(), ProjectDetectionArgs{})

	require.False(t, env.HasError())
	assert.Equal(t, "octo", mustGet(t, env, KeyProjectOwner))
	assert.Equal(t, SourceGitRemote, mustGet(t, env, KeyDetectionSource))
	assert.Equal(t, "0", mustGet(t, env, KeyProjectCount))
	assert.Equal(t, "octo", gql.calls[0].vars["owner"])
}

func TestDetect_NoInputNoRemote(t *testing.T) {
	remote := fakeRemote{err: errors.New("not a git repository")}

	env := NewDetectionService(&fakeGraphQL{}, remote, testDeps()).Execute(context.Background(), ProjectDetectionArgs{})

	require.True(t, env.HasError())
	assert.Equal(t, apperr.KindValidation, env.Err().Kind)
}

func TestDetect_InvalidMode(t *testing.T) {
	env := NewDetectionService(&fakeGraphQL{}, nil, testDeps()).Execute(context.Background(), ProjectDetectionArgs{Input: "x", Mode: "guess"})

	require.True(t, env.HasError())
	assert.Equal(t, apperr.KindValidation, env.Err().Kind)
}
