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
	"strings"
	"time"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
)

// =============================================================================
// Activity
// =============================================================================

// Activity keys.
const (
	KeyActivityOwner       envelope.Key = "ACTIVITY_OWNER"
	KeyTimeWindowDays      envelope.Key = "TIME_WINDOW_DAYS"
	KeyWindowStart         envelope.Key = "WINDOW_START"
	KeyWindowEnd           envelope.Key = "WINDOW_END"
	KeyReposAttempted      envelope.Key = "REPOSITORIES_ATTEMPTED"
	KeyReposSucceeded      envelope.Key = "REPOSITORIES_SUCCEEDED"
	KeyReposFailed         envelope.Key = "REPOSITORIES_FAILED"
	KeyTotalCommits        envelope.Key = "TOTAL_COMMITS"
	KeyTotalIssues         envelope.Key = "TOTAL_ISSUES"
	KeyTotalPulls          envelope.Key = "TOTAL_PULL_REQUESTS"
	KeyTotalComments       envelope.Key = "TOTAL_COMMENTS"
	KeyUniqueContributors  envelope.Key = "UNIQUE_CONTRIBUTORS"
	KeyCommitsPerDayMean   envelope.Key = "COMMITS_PER_DAY_MEAN"
	KeyCommitsPerDayMedian envelope.Key = "COMMITS_PER_DAY_MEDIAN"
	KeyCommitsPerDayStdDev envelope.Key = "COMMITS_PER_DAY_STDDEV"
	KeyContributionGini    envelope.Key = "CONTRIBUTION_GINI"
	KeyCommitGrowthRate    envelope.Key = "COMMIT_GROWTH_RATE"
	KeyIssueCloseRatePct   envelope.Key = "ISSUE_CLOSE_RATE_PCT"
	KeyPRMergeRatePct      envelope.Key = "PR_MERGE_RATE_PCT"
	KeyTopContributor      envelope.Key = "TOP_CONTRIBUTOR"
	KeySkippedRecords      envelope.Key = "SKIPPED_RECORDS"

	KeyRepoName             envelope.IndexedKey = "REPO_%d_NAME"
	KeyRepoStatus           envelope.IndexedKey = "REPO_%d_STATUS"
	KeyRepoCommits          envelope.IndexedKey = "REPO_%d_COMMITS"
	KeyRepoErrorType        envelope.IndexedKey = "REPO_%d_ERROR_TYPE"
	KeyRepoTruncated        envelope.IndexedKey = "REPO_%d_TRUNCATED"
	KeyRepoTruncatedSources envelope.IndexedKey = "REPO_%d_TRUNCATED_SOURCES"
)

const (
	repoStatusSuccess = "success"
	repoStatusFailure = "failure"
	windowTimeLayout  = time.RFC3339
)

// ActivitySummary is the headline of an activity analysis.
type ActivitySummary struct {
	Owner          string
	TimeWindowDays int
	WindowStart    time.Time
	WindowEnd      time.Time
	Attempted      int
	Succeeded      int
	Failed         int
	Totals         ActivityStats
}

// Fields implements envelope.DTO.
func (s ActivitySummary) Fields() []envelope.Field {
	top := ""
	if len(s.Totals.TopContributors) > 0 {
		top = s.Totals.TopContributors[0].Login
	}
	return []envelope.Field{
		{Key: KeyActivityOwner, Value: s.Owner},
		{Key: KeyTimeWindowDays, Value: s.TimeWindowDays},
		{Key: KeyWindowStart, Value: s.WindowStart.UTC().Format(windowTimeLayout)},
		{Key: KeyWindowEnd, Value: s.WindowEnd.UTC().Format(windowTimeLayout)},
		{Key: KeyReposAttempted, Value: s.Attempted},
		{Key: KeyReposSucceeded, Value: s.Succeeded},
		{Key: KeyReposFailed, Value: s.Failed},
		{Key: KeyTotalCommits, Value: s.Totals.Commits},
		{Key: KeyTotalIssues, Value: s.Totals.IssuesOpened},
		{Key: KeyTotalPulls, Value: s.Totals.PullsOpened},
		{Key: KeyTotalComments, Value: s.Totals.Comments},
		{Key: KeyUniqueContributors, Value: s.Totals.UniqueContributors},
		{Key: KeyCommitsPerDayMean, Value: s.Totals.CommitsPerDay.Mean},
		{Key: KeyCommitsPerDayMedian, Value: s.Totals.CommitsPerDay.Median},
		{Key: KeyCommitsPerDayStdDev, Value: s.Totals.CommitsPerDay.StdDev},
		{Key: KeyContributionGini, Value: s.Totals.ContributionGini},
		{Key: KeyCommitGrowthRate, Value: s.Totals.CommitGrowthRate},
		{Key: KeyIssueCloseRatePct, Value: s.Totals.IssueCloseRatePct},
		{Key: KeyPRMergeRatePct, Value: s.Totals.PRMergeRatePct},
		{Key: KeyTopContributor, Value: top},
		{Key: KeySkippedRecords, Value: s.Totals.SkippedRecords},
	}
}

// RepositoryOutcome is one repository's line in the envelope. Index is
// 1-based input order. Truncated lists the sources that hit the page limit.
type RepositoryOutcome struct {
	Index     int
	Name      string
	Err       error
	Commits   int
	Truncated []string
}

// Fields implements envelope.DTO. REPO_n_COMMITS appears only on success
// and REPO_n_ERROR_TYPE only on failure. REPO_n_TRUNCATED appears only when
// a listing was cut at the page limit.
func (o RepositoryOutcome) Fields() []envelope.Field {
	fields := []envelope.Field{{Key: KeyRepoName.At(o.Index), Value: o.Name}}
	if o.Err != nil {
		return append(fields,
			envelope.Field{Key: KeyRepoStatus.At(o.Index), Value: repoStatusFailure},
			envelope.Field{Key: KeyRepoErrorType.At(o.Index), Value: errorCode(o.Err)},
		)
	}
	fields = append(fields,
		envelope.Field{Key: KeyRepoStatus.At(o.Index), Value: repoStatusSuccess},
		envelope.Field{Key: KeyRepoCommits.At(o.Index), Value: o.Commits},
	)
	if len(o.Truncated) > 0 {
		fields = append(fields,
			envelope.Field{Key: KeyRepoTruncated.At(o.Index), Value: true},
			envelope.Field{Key: KeyRepoTruncatedSources.At(o.Index), Value: strings.Join(o.Truncated, ",")},
		)
	}
	return fields
}

// =============================================================================
// Project data
// =============================================================================

// Project data keys.
const (
	KeyProjectID            envelope.Key = "PROJECT_ID"
	KeyProjectTitle         envelope.Key = "PROJECT_TITLE"
	KeyProjectNumber        envelope.Key = "PROJECT_NUMBER"
	KeyProjectURL           envelope.Key = "PROJECT_URL"
	KeyProjectItemsTotal    envelope.Key = "PROJECT_ITEMS_TOTAL"
	KeyProjectItemsRead     envelope.Key = "PROJECT_ITEMS_COLLECTED"
	KeyProjectItemsSkipped  envelope.Key = "PROJECT_ITEMS_SKIPPED"
	KeyProjectOpenPct       envelope.Key = "PROJECT_OPEN_PCT"
	KeyProjectClosedPct     envelope.Key = "PROJECT_CLOSED_PCT"
	KeyProjectAvgAgeDays    envelope.Key = "PROJECT_AVG_AGE_DAYS"
	KeyProjectMedianToClose envelope.Key = "PROJECT_MEDIAN_DAYS_TO_CLOSE"
	KeyProjectTopStatus     envelope.Key = "PROJECT_TOP_STATUS"
	KeyProjectTruncated     envelope.Key = "PROJECT_ITEMS_TRUNCATED"
)

// ProjectSummary is the headline of a project data collection.
type ProjectSummary struct {
	ID        string
	Title     string
	Number    int
	URL       string
	Total     int
	Skipped   int
	Truncated bool
	Stats     ProjectStats
}

// Fields implements envelope.DTO.
func (s ProjectSummary) Fields() []envelope.Field {
	top := ""
	if len(s.Stats.ByStatus) > 0 {
		top = s.Stats.ByStatus[0].Name
	}
	return []envelope.Field{
		{Key: KeyProjectID, Value: s.ID},
		{Key: KeyProjectTitle, Value: s.Title},
		{Key: KeyProjectNumber, Value: s.Number},
		{Key: KeyProjectURL, Value: s.URL},
		{Key: KeyProjectItemsTotal, Value: s.Total},
		{Key: KeyProjectItemsRead, Value: s.Stats.Items},
		{Key: KeyProjectItemsSkipped, Value: s.Skipped},
		{Key: KeyProjectTruncated, Value: s.Truncated},
		{Key: KeyProjectOpenPct, Value: s.Stats.OpenPct},
		{Key: KeyProjectClosedPct, Value: s.Stats.ClosedPct},
		{Key: KeyProjectAvgAgeDays, Value: s.Stats.AverageAgeDays},
		{Key: KeyProjectMedianToClose, Value: s.Stats.MedianDaysToClose},
		{Key: KeyProjectTopStatus, Value: top},
	}
}

// =============================================================================
// Detection
// =============================================================================

// Detection keys.
const (
	KeyProjectOwner     envelope.Key        = "PROJECT_OWNER"
	KeyProjectOwnerType envelope.Key        = "PROJECT_OWNER_TYPE"
	KeyDetectionMode    envelope.Key        = "DETECTION_MODE"
	KeyProjectCount     envelope.Key        = "PROJECT_COUNT"
	KeyProjectNNumber   envelope.IndexedKey = "PROJECT_%d_NUMBER"
	KeyProjectNTitle    envelope.IndexedKey = "PROJECT_%d_TITLE"
	KeyProjectNID       envelope.IndexedKey = "PROJECT_%d_ID"
	KeyDetectionSource  envelope.Key        = "DETECTION_SOURCE"
)

// DetectionResult is the outcome of project detection. In url mode Project
// is set; in owner mode Projects lists the owner's boards.
type DetectionResult struct {
	Owner     string
	OwnerType string
	Mode      DetectionMode
	Project   *ProjectRefView
	Projects  []ProjectRefView
}

// ProjectRefView is a board reference as reported in the envelope.
type ProjectRefView struct {
	ID     string
	Number int
	Title  string
}

// Fields implements envelope.DTO.
func (d DetectionResult) Fields() []envelope.Field {
	fields := []envelope.Field{
		{Key: KeyProjectOwner, Value: d.Owner},
		{Key: KeyProjectOwnerType, Value: d.OwnerType},
		{Key: KeyDetectionMode, Value: string(d.Mode)},
	}
	if d.Project != nil {
		fields = append(fields,
			envelope.Field{Key: KeyProjectNumber, Value: d.Project.Number},
			envelope.Field{Key: KeyProjectID, Value: d.Project.ID},
			envelope.Field{Key: KeyProjectTitle, Value: d.Project.Title},
		)
		return fields
	}
	fields = append(fields, envelope.Field{Key: KeyProjectCount, Value: len(d.Projects)})
	for i, p := range d.Projects {
		n := i + 1
		fields = append(fields,
			envelope.Field{Key: KeyProjectNNumber.At(n), Value: p.Number},
			envelope.Field{Key: KeyProjectNTitle.At(n), Value: p.Title},
			envelope.Field{Key: KeyProjectNID.At(n), Value: p.ID},
		)
	}
	return fields
}
