// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
)

// Parsed is the tagged result of decoding an API payload.
//
// Err is set only when the payload as a whole is unusable. Individual items
// missing required fields are dropped and counted in Skipped.
type Parsed[T any] struct {
	Value   T
	Skipped int
	Err     error
}

// OK reports whether Value is usable.
func (p Parsed[T]) OK() bool { return p.Err == nil }

func decodeFailure[T any](what string, err error) Parsed[T] {
	return Parsed[T]{Err: apperr.InternalAggregation(fmt.Errorf("decode %s: %w", what, err))}
}

// =============================================================================
// REST views
// =============================================================================

// Viewer is the authenticated account.
type Viewer struct {
	Login string
	Type  string
}

// Repository is the subset of a repository document used for aggregation.
type Repository struct {
	FullName      string
	Name          string
	Owner         string
	Private       bool
	DefaultBranch string
	Stars         int
	Forks         int
	OpenIssues    int
	CreatedAt     time.Time
	PushedAt      time.Time
}

// Commit is one commit on the default branch.
type Commit struct {
	SHA        string
	Author     string
	AuthoredAt time.Time
}

// Issue is one issue (pull requests excluded).
type Issue struct {
	Number    int
	State     string
	Author    string
	Comments  int
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// Pull is one pull request.
type Pull struct {
	Number    int
	State     string
	Author    string
	Draft     bool
	CreatedAt time.Time
	ClosedAt  *time.Time
	MergedAt  *time.Time
}

// Comment is one issue or pull request conversation comment.
type Comment struct {
	ID        int64
	Author    string
	CreatedAt time.Time
}

type login struct {
	Login string `json:"login"`
}

// ParseViewer decodes GET /user. A payload without a login is an error.
func ParseViewer(raw json.RawMessage) Parsed[Viewer] {
	var doc struct {
		Login string `json:"login"`
		Type  string `json:"type"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return decodeFailure[Viewer]("viewer", err)
	}
	if doc.Login == "" {
		return decodeFailure[Viewer]("viewer", errors.New("missing login"))
	}
	return Parsed[Viewer]{Value: Viewer{Login: doc.Login, Type: doc.Type}}
}

// ParseRepository decodes GET /repos/{owner}/{repo}.
func ParseRepository(raw json.RawMessage) Parsed[Repository] {
	var doc struct {
		FullName      string    `json:"full_name"`
		Name          string    `json:"name"`
		Owner         login     `json:"owner"`
		Private       bool      `json:"private"`
		DefaultBranch string    `json:"default_branch"`
		Stars         int       `json:"stargazers_count"`
		Forks         int       `json:"forks_count"`
		OpenIssues    int       `json:"open_issues_count"`
		CreatedAt     time.Time `json:"created_at"`
		PushedAt      time.Time `json:"pushed_at"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return decodeFailure[Repository]("repository", err)
	}
	if doc.FullName == "" {
		return decodeFailure[Repository]("repository", errors.New("missing full_name"))
	}
	return Parsed[Repository]{Value: Repository{
		FullName:      doc.FullName,
		Name:          doc.Name,
		Owner:         doc.Owner.Login,
		Private:       doc.Private,
		DefaultBranch: doc.DefaultBranch,
		Stars:         doc.Stars,
		Forks:         doc.Forks,
		OpenIssues:    doc.OpenIssues,
		CreatedAt:     doc.CreatedAt,
		PushedAt:      doc.PushedAt,
	}}
}

// ParseCommits decodes a commit list. The author is the GitHub login when
// linked, else the git author name; commits with neither, or without a
// SHA or author date, are skipped.
func ParseCommits(items []json.RawMessage) Parsed[[]Commit] {
	out := Parsed[[]Commit]{Value: make([]Commit, 0, len(items))}
	for _, item := range items {
		var doc struct {
			SHA    string `json:"sha"`
			Author *login `json:"author"`
			Commit struct {
				Author struct {
					Name string     `json:"name"`
					Date *time.Time `json:"date"`
				} `json:"author"`
			} `json:"commit"`
		}
		if err := json.Unmarshal(item, &doc); err != nil || doc.SHA == "" || doc.Commit.Author.Date == nil {
			out.Skipped++
			continue
		}
		author := doc.Commit.Author.Name
		if doc.Author != nil && doc.Author.Login != "" {
			author = doc.Author.Login
		}
		if author == "" {
			out.Skipped++
			continue
		}
		out.Value = append(out.Value, Commit{SHA: doc.SHA, Author: author, AuthoredAt: doc.Commit.Author.Date.UTC()})
	}
	return out
}

// ParseIssues decodes an issue list, dropping pull requests (which the
// issues endpoint also returns). Dropped pull requests are not counted as
// skipped.
func ParseIssues(items []json.RawMessage) Parsed[[]Issue] {
	out := Parsed[[]Issue]{Value: make([]Issue, 0, len(items))}
	for _, item := range items {
		var doc struct {
			Number      int             `json:"number"`
			State       string          `json:"state"`
			User        *login          `json:"user"`
			Comments    int             `json:"comments"`
			CreatedAt   *time.Time      `json:"created_at"`
			ClosedAt    *time.Time      `json:"closed_at"`
			PullRequest json.RawMessage `json:"pull_request"`
		}
		if err := json.Unmarshal(item, &doc); err != nil || doc.Number == 0 || doc.CreatedAt == nil {
			out.Skipped++
			continue
		}
		if len(doc.PullRequest) > 0 && string(doc.PullRequest) != "null" {
			continue
		}
		out.Value = append(out.Value, Issue{
			Number:    doc.Number,
			State:     doc.State,
			Author:    loginOf(doc.User),
			Comments:  doc.Comments,
			CreatedAt: doc.CreatedAt.UTC(),
			ClosedAt:  utcPtr(doc.ClosedAt),
		})
	}
	return out
}

// ParsePulls decodes a pull request list.
func ParsePulls(items []json.RawMessage) Parsed[[]Pull] {
	out := Parsed[[]Pull]{Value: make([]Pull, 0, len(items))}
	for _, item := range items {
		var doc struct {
			Number    int        `json:"number"`
			State     string     `json:"state"`
			User      *login     `json:"user"`
			Draft     bool       `json:"draft"`
			CreatedAt *time.Time `json:"created_at"`
			ClosedAt  *time.Time `json:"closed_at"`
			MergedAt  *time.Time `json:"merged_at"`
		}
		if err := json.Unmarshal(item, &doc); err != nil || doc.Number == 0 || doc.CreatedAt == nil {
			out.Skipped++
			continue
		}
		out.Value = append(out.Value, Pull{
			Number:    doc.Number,
			State:     doc.State,
			Author:    loginOf(doc.User),
			Draft:     doc.Draft,
			CreatedAt: doc.CreatedAt.UTC(),
			ClosedAt:  utcPtr(doc.ClosedAt),
			MergedAt:  utcPtr(doc.MergedAt),
		})
	}
	return out
}

// ParseComments decodes an issue comment list.
func ParseComments(items []json.RawMessage) Parsed[[]Comment] {
	out := Parsed[[]Comment]{Value: make([]Comment, 0, len(items))}
	for _, item := range items {
		var doc struct {
			ID        int64      `json:"id"`
			User      *login     `json:"user"`
			CreatedAt *time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(item, &doc); err != nil || doc.ID == 0 || doc.CreatedAt == nil {
			out.Skipped++
			continue
		}
		out.Value = append(out.Value, Comment{ID: doc.ID, Author: loginOf(doc.User), CreatedAt: doc.CreatedAt.UTC()})
	}
	return out
}

// =============================================================================
// GraphQL views
// =============================================================================

// ProjectRef identifies a ProjectV2 board.
type ProjectRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Number int    `json:"number"`
	URL    string `json:"url"`
	Closed bool   `json:"closed"`
}

// ProjectItem is one card on a board.
type ProjectItem struct {
	ID          string
	ContentType string
	Title       string
	State       string
	Status      string
	Assignees   []string
	CreatedAt   time.Time
	ClosedAt    *time.Time
	MergedAt    *time.Time
}

// ProjectPage is one page of a board's items.
type ProjectPage struct {
	Project     ProjectRef
	Owner       string
	TotalItems  int
	Items       []ProjectItem
	HasNextPage bool
	EndCursor   string
}

// OwnerProjects is an owner with its boards.
type OwnerProjects struct {
	Login      string
	Type       string
	TotalCount int
	Projects   []ProjectRef
	// Lookup is set by ParseProjectLookup when the requested number exists.
	Lookup *ProjectRef
}

type assigneeNodes struct {
	Nodes []login `json:"nodes"`
}

// ParseProjectPage decodes the "data" of ProjectItemsQuery. A node that is
// missing or not a ProjectV2 yields a NOT_FOUND error for projectID.
func ParseProjectPage(data json.RawMessage, projectID string) Parsed[ProjectPage] {
	var doc struct {
		Node *struct {
			ProjectRef
			Owner *login `json:"owner"`
			Items *struct {
				TotalCount int `json:"totalCount"`
				PageInfo   struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []json.RawMessage `json:"nodes"`
			} `json:"items"`
		} `json:"node"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return decodeFailure[ProjectPage]("project page", err)
	}
	if doc.Node == nil || doc.Node.ID == "" || doc.Node.Items == nil {
		return Parsed[ProjectPage]{Err: apperr.NotFound(projectID, fmt.Errorf("node %q is not a ProjectV2 board", projectID))}
	}

	page := ProjectPage{
		Project:     doc.Node.ProjectRef,
		Owner:       loginOf(doc.Node.Owner),
		TotalItems:  doc.Node.Items.TotalCount,
		Items:       make([]ProjectItem, 0, len(doc.Node.Items.Nodes)),
		HasNextPage: doc.Node.Items.PageInfo.HasNextPage,
		EndCursor:   doc.Node.Items.PageInfo.EndCursor,
	}
	out := Parsed[ProjectPage]{}
	for _, raw := range doc.Node.Items.Nodes {
		item, ok := parseProjectItem(raw)
		if !ok {
			out.Skipped++
			continue
		}
		page.Items = append(page.Items, item)
	}
	out.Value = page
	return out
}

func parseProjectItem(raw json.RawMessage) (ProjectItem, bool) {
	var doc struct {
		ID        string     `json:"id"`
		Type      string     `json:"type"`
		CreatedAt *time.Time `json:"createdAt"`
		Status    *struct {
			Name string `json:"name"`
		} `json:"fieldValueByName"`
		Content *struct {
			Typename  string         `json:"__typename"`
			Title     string         `json:"title"`
			State     string         `json:"state"`
			CreatedAt *time.Time     `json:"createdAt"`
			ClosedAt  *time.Time     `json:"closedAt"`
			MergedAt  *time.Time     `json:"mergedAt"`
			Assignees *assigneeNodes `json:"assignees"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.ID == "" {
		return ProjectItem{}, false
	}
	item := ProjectItem{ID: doc.ID, ContentType: doc.Type}
	if doc.Status != nil {
		item.Status = doc.Status.Name
	}
	created := doc.CreatedAt
	if c := doc.Content; c != nil {
		if c.Typename != "" {
			item.ContentType = c.Typename
		}
		item.Title = c.Title
		item.State = c.State
		item.ClosedAt = utcPtr(c.ClosedAt)
		item.MergedAt = utcPtr(c.MergedAt)
		if c.CreatedAt != nil {
			created = c.CreatedAt
		}
		if c.Assignees != nil {
			for _, a := range c.Assignees.Nodes {
				if a.Login != "" {
					item.Assignees = append(item.Assignees, a.Login)
				}
			}
		}
	}
	if created == nil || item.ContentType == "" {
		return ProjectItem{}, false
	}
	item.CreatedAt = created.UTC()
	return item, true
}

type ownerDoc struct {
	RepositoryOwner *struct {
		Typename  string      `json:"__typename"`
		Login     string      `json:"login"`
		ProjectV2 *ProjectRef `json:"projectV2"`
		Projects  *struct {
			TotalCount int                `json:"totalCount"`
			Nodes      []*json.RawMessage `json:"nodes"`
		} `json:"projectsV2"`
	} `json:"repositoryOwner"`
}

// ParseProjectLookup decodes the "data" of ProjectLookupQuery. A missing
// owner or project number yields NOT_FOUND.
func ParseProjectLookup(data json.RawMessage, owner string, number int) Parsed[OwnerProjects] {
	var doc ownerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return decodeFailure[OwnerProjects]("project lookup", err)
	}
	ro := doc.RepositoryOwner
	if ro == nil {
		return Parsed[OwnerProjects]{Err: apperr.NotFound(owner, fmt.Errorf("no user or organization named %q", owner))}
	}
	resource := fmt.Sprintf("%s project #%d", owner, number)
	if ro.ProjectV2 == nil || ro.ProjectV2.ID == "" {
		return Parsed[OwnerProjects]{Err: apperr.NotFound(resource, fmt.Errorf("%s has no project number %d", owner, number))}
	}
	return Parsed[OwnerProjects]{Value: OwnerProjects{
		Login:  ro.Login,
		Type:   ro.Typename,
		Lookup: ro.ProjectV2,
	}}
}

// ParseProjectList decodes the "data" of OwnerProjectsQuery.
func ParseProjectList(data json.RawMessage, owner string) Parsed[OwnerProjects] {
	var doc ownerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return decodeFailure[OwnerProjects]("project list", err)
	}
	ro := doc.RepositoryOwner
	if ro == nil {
		return Parsed[OwnerProjects]{Err: apperr.NotFound(owner, fmt.Errorf("no user or organization named %q", owner))}
	}
	out := Parsed[OwnerProjects]{Value: OwnerProjects{Login: ro.Login, Type: ro.Typename, Projects: []ProjectRef{}}}
	if ro.Projects == nil {
		return out
	}
	out.Value.TotalCount = ro.Projects.TotalCount
	for _, raw := range ro.Projects.Nodes {
		var ref ProjectRef
		if raw == nil || json.Unmarshal(*raw, &ref) != nil || ref.ID == "" || ref.Number == 0 {
			out.Skipped++
			continue
		}
		out.Value.Projects = append(out.Value.Projects, ref)
	}
	return out
}

func loginOf(l *login) string {
	if l == nil {
		return ""
	}
	return l.Login
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
