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
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/github"
)

// Detection sources reported as DETECTION_SOURCE.
const (
	SourceInput     = "input"
	SourceGitRemote = "git-remote"
)

var projectURLPattern = regexp.MustCompile(`^https?://github\.com/(orgs|users)/([A-Za-z0-9-]+)/projects/(\d+)(?:/views/\d+)?/?(?:[?#].*)?$`)

// ProjectURL is a parsed board URL.
type ProjectURL struct {
	OwnerType string // "orgs" or "users"
	Owner     string
	Number    int
}

// ParseProjectURL parses https://github.com/{orgs|users}/<owner>/projects/<n>.
// A scheme-less "github.com/..." is accepted. Anything else is a
// VALIDATION error carrying ExpectedProjectURL.
func ParseProjectURL(raw string) (ProjectURL, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "github.com/") {
		s = "https://" + s
	}
	m := projectURLPattern.FindStringSubmatch(s)
	if m == nil {
		return ProjectURL{}, apperr.Validation(ExpectedProjectURL, fmt.Errorf("not a project URL: %q", raw))
	}
	n, err := strconv.Atoi(m[3])
	if err != nil || n <= 0 {
		return ProjectURL{}, apperr.Validation(ExpectedProjectURL, fmt.Errorf("invalid project number in %q", raw))
	}
	return ProjectURL{OwnerType: m[1], Owner: m[2], Number: n}, nil
}

// looksLikeURL decides auto mode.
func looksLikeURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "github.com/")
}

// DetectionService finds the board a later collection step works on.
type DetectionService struct {
	gql    GraphQLQuerier
	remote RemoteInspector
	deps   Deps
}

// NewDetectionService wires the service. remote may be nil, in which case
// auto mode requires a non-empty input.
func NewDetectionService(gql GraphQLQuerier, remote RemoteInspector, deps Deps) *DetectionService {
	return &DetectionService{gql: gql, remote: remote, deps: deps.withDefaults()}
}

// Execute resolves args to a board (url mode) or a list of boards (owner
// mode).
//
// # Description
//
// In auto mode a URL-looking input selects url mode, an empty input takes
// the owner from the working directory's GitHub remote, and anything else
// is treated as an owner login.
func (s *DetectionService) Execute(ctx context.Context, args ProjectDetectionArgs) (env *envelope.Envelope) {
	env = envelope.New()
	ctx, end := s.deps.begin(ctx, ServiceDetect, env)
	defer end()
	defer s.deps.guard(ServiceDetect, env)()

	args, err := args.Validate()
	if err != nil {
		env.SetError(err)
		return env
	}

	input, source := args.Input, SourceInput
	mode := args.Mode
	if mode == ModeAuto {
		switch {
		case looksLikeURL(input):
			mode = ModeURL
		default:
			mode = ModeOwner
		}
	}
	if input == "" && mode == ModeOwner {
		owner, err := s.ownerFromRemote(ctx, env)
		if err != nil {
			env.AddData(string(KeyDetectionMode), string(mode))
			env.SetError(err)
			return env
		}
		input, source = owner, SourceGitRemote
	}
	env.AddData(string(KeyDetectionSource), source)

	switch mode {
	case ModeURL:
		s.detectURL(ctx, env, input)
	default:
		s.detectOwner(ctx, env, input)
	}
	return env
}

func (s *DetectionService) ownerFromRemote(ctx context.Context, env *envelope.Envelope) (string, error) {
	if s.remote == nil {
		return "", apperr.Validation("a project URL or owner login", fmt.Errorf("no input and no git remote available"))
	}
	var owner string
	err := timed(env, "read git remote", func() error {
		r, err := s.remote.GitHubRemote(ctx)
		if err != nil {
			return err
		}
		owner = r.Owner
		return nil
	})
	if err != nil {
		return "", apperr.Validation("a project URL or owner login, or run inside a GitHub checkout", err)
	}
	return owner, nil
}

func (s *DetectionService) detectURL(ctx context.Context, env *envelope.Envelope, input string) {
	u, err := ParseProjectURL(input)
	if err != nil {
		env.AddData(string(KeyDetectionMode), string(ModeURL))
		env.SetError(err)
		return
	}
	// Owner and number are known before the lookup; report them even if it
	// fails.
	env.AddData(string(KeyProjectOwner), u.Owner)
	env.AddData(string(KeyProjectNumber), u.Number)
	env.AddData(string(KeyDetectionMode), string(ModeURL))

	var parsed github.Parsed[github.OwnerProjects]
	err = timed(env, fmt.Sprintf("resolve %s project %d", u.Owner, u.Number), func() error {
		data, err := s.gql.Query(ctx, github.ProjectLookupQuery, map[string]any{"owner": u.Owner, "number": u.Number})
		if err != nil {
			return err
		}
		parsed = github.ParseProjectLookup(data, u.Owner, u.Number)
		return parsed.Err
	})
	if err != nil {
		env.SetError(err)
		return
	}

	ref := parsed.Value.Lookup
	env.AddDataFromDTO(DetectionResult{
		Owner:     u.Owner,
		OwnerType: parsed.Value.Type,
		Mode:      ModeURL,
		Project:   &ProjectRefView{ID: ref.ID, Number: ref.Number, Title: ref.Title},
	})
	env.AddData(string(KeyProjectURL), ref.URL)
	s.deps.Logger.Info("project detected", "owner", u.Owner, "number", ref.Number)
}

func (s *DetectionService) detectOwner(ctx context.Context, env *envelope.Envelope, owner string) {
	env.AddData(string(KeyProjectOwner), owner)
	env.AddData(string(KeyDetectionMode), string(ModeOwner))
	if owner == "" || strings.ContainsAny(owner, "/ ") {
		env.SetError(apperr.Validation("an owner login such as my-org", fmt.Errorf("invalid owner %q", owner)))
		return
	}

	var parsed github.Parsed[github.OwnerProjects]
	err := timed(env, "list "+owner+" projects", func() error {
		data, err := s.gql.Query(ctx, github.OwnerProjectsQuery, map[string]any{"owner": owner, "first": s.deps.Settings.DetectLimit})
		if err != nil {
			return err
		}
		parsed = github.ParseProjectList(data, owner)
		return parsed.Err
	})
	if err != nil {
		env.SetError(err)
		return
	}

	res := DetectionResult{Owner: parsed.Value.Login, OwnerType: parsed.Value.Type, Mode: ModeOwner}
	for _, p := range parsed.Value.Projects {
		res.Projects = append(res.Projects, ProjectRefView{ID: p.ID, Number: p.Number, Title: p.Title})
	}
	env.AddDataFromDTO(res)
	if len(res.Projects) == 0 {
		env.AddInstruction(fmt.Sprintf("%s has no visible projects. Check the token's read:project scope.", owner))
	} else if len(res.Projects) > 1 {
		env.AddInstruction("Several projects were found. Re-run with a project URL to select one.")
	}
	s.deps.Logger.Info("owner projects listed", "owner", res.Owner, "count", len(res.Projects))
}
