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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/artifact"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/github"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

// rawProjectFields are the board fields kept in the raw namespace.
var rawProjectFields = []string{"id", "title", "number", "url", "closed", "owner.login", "items.totalCount"}

// ProjectService collects the items of a ProjectV2 board.
type ProjectService struct {
	gql    GraphQLQuerier
	writer ArtifactWriter
	deps   Deps
}

// NewProjectService wires the service. writer may be nil.
func NewProjectService(gql GraphQLQuerier, writer ArtifactWriter, deps Deps) *ProjectService {
	return &ProjectService{gql: gql, writer: writer, deps: deps.withDefaults()}
}

// Execute collects one board.
//
// # Description
//
// Items are paged up to Settings.ProjectMaxPages. A failure on the first
// page is the envelope error. A failure on a later page is a failed action:
// the items already read are aggregated and PROJECT_ITEMS_TRUNCATED is
// true. Running out of pages also truncates.
func (s *ProjectService) Execute(ctx context.Context, args ProjectDataCollectionArgs) (env *envelope.Envelope) {
	env = envelope.New()
	ctx, end := s.deps.begin(ctx, ServiceProject, env)
	defer end()
	defer s.deps.guard(ServiceProject, env)()

	args, err := args.Validate()
	if err != nil {
		env.SetError(err)
		return env
	}
	logger := s.deps.Logger.With("service", ServiceProject, "project_id", args.ProjectID)

	var (
		first      *github.ProjectPage
		rawProject json.RawMessage
		items      []github.ProjectItem
		rawItems   []json.RawMessage
		skipped  int
		cursor   string
		more     = true
		trunc    bool
	)
	for page := 1; more; page++ {
		if page > s.deps.Settings.ProjectMaxPages {
			trunc = true
			logger.Warn("project item limit reached", "pages", page-1)
			break
		}
		var parsed github.Parsed[github.ProjectPage]
		var data json.RawMessage
		err := timed(env, "fetch project items page "+strconv.Itoa(page), func() error {
			vars := map[string]any{"id": args.ProjectID, "first": s.deps.Settings.ProjectPageSize}
			if cursor != "" {
				vars["after"] = cursor
			}
			var qerr error
			data, qerr = s.gql.Query(ctx, github.ProjectItemsQuery, vars)
			if qerr != nil {
				return qerr
			}
			parsed = github.ParseProjectPage(data, args.ProjectID)
			return parsed.Err
		})
		if err != nil {
			if first == nil {
				env.SetError(err)
				return env
			}
			logger.Warn("project page failed, result truncated", "page", page, "error", err)
			trunc = true
			break
		}

		p := parsed.Value
		node, nodes := projectDocument(data)
		if first == nil {
			first = &p
			rawProject = github.Trim(node, rawProjectFields...)
		}
		items = append(items, p.Items...)
		rawItems = append(rawItems, nodes...)
		skipped += parsed.Skipped
		cursor, more = p.EndCursor, p.HasNextPage && p.EndCursor != ""
	}

	var st ProjectStats
	err = timed(env, "aggregate project", func() error {
		return util.CallSafely(func() error {
			st = aggregateProject(items, s.deps.Now().UTC())
			return nil
		})
	})
	if err != nil {
		env.SetError(apperr.InternalAggregation(err))
		return env
	}

	summary := ProjectSummary{
		ID:        first.Project.ID,
		Title:     first.Project.Title,
		Number:    first.Project.Number,
		URL:       first.Project.URL,
		Total:     first.TotalItems,
		Skipped:   skipped,
		Truncated: trunc,
		Stats:     st,
	}
	env.AddDataFromDTO(summary)
	if trunc {
		env.AddInstruction(fmt.Sprintf("Only %d of %d project items were collected; statistics cover the collected items.", st.Items, first.TotalItems))
	}

	if s.writer != nil {
		owner := first.Owner
		res, err := s.writer.Write(ctx, artifact.Request{
			Kind:      ServiceProject,
			Owner:     owner,
			ID:        strconv.Itoa(first.Project.Number),
			Command:   s.deps.Command,
			StartedAt: s.deps.StartedAt,
			RunID:     s.deps.RunID,
			Raw: map[string]any{
				"project": rawProject,
				"items":   rawItems,
			},
			Calculated: map[string]any{"summary": st},
		})
		if err != nil {
			logger.Error("artifact write failed", "error", err)
			env.AddAction(artifact.EventWrite, envelope.ResultFailure, nil)
		} else {
			res.Apply(env)
		}
	}
	logger.Info("project collection finished", "items", st.Items, "truncated", trunc)
	return env
}

// projectDocument splits a ProjectItemsQuery response into the verbatim
// project node and its item nodes.
func projectDocument(data json.RawMessage) (node json.RawMessage, items []json.RawMessage) {
	var doc struct {
		Node json.RawMessage `json:"node"`
	}
	if json.Unmarshal(data, &doc) != nil {
		return nil, nil
	}
	var page struct {
		Items struct {
			Nodes []json.RawMessage `json:"nodes"`
		} `json:"items"`
	}
	if json.Unmarshal(doc.Node, &page) != nil {
		return doc.Node, nil
	}
	return doc.Node, page.Items.Nodes
}
