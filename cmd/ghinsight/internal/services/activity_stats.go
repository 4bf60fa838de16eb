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
	"sort"
	"time"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/github"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/stats"
)

// topContributorCount is the length of ActivityStats.TopContributors.
const topContributorCount = 5

// repoActivity is everything fetched for one repository.
type repoActivity struct {
	Name       string
	Repository github.Repository
	Commits    []github.Commit
	Issues     []github.Issue
	Pulls      []github.Pull
	Comments   []github.Comment
	Skipped    int
	// Truncated names the sources that hit the page limit.
	Truncated []string
}

// Source names used when a listing is truncated.
const (
	sourceCommits  = "commits"
	sourceIssues   = "issues"
	sourcePulls    = "pullRequests"
	sourceComments = "comments"
)

func (a *repoActivity) noteTruncated(source string, l github.Listing) {
	if l.Truncated {
		a.Truncated = append(a.Truncated, source)
	}
}

// Contributor is one account's contribution count in the window.
type Contributor struct {
	Login    string `json:"login"`
	Commits  int    `json:"commits"`
	Issues   int    `json:"issues"`
	Pulls    int    `json:"pullRequests"`
	Comments int    `json:"comments"`
	Total    int    `json:"total"`
}

// ActivityStats is the calculated view of one repository or of all of them.
type ActivityStats struct {
	Commits                   int                     `json:"commits"`
	IssuesOpened              int                     `json:"issuesOpened"`
	IssuesClosed              int                     `json:"issuesClosed"`
	PullsOpened               int                     `json:"pullRequestsOpened"`
	PullsMerged               int                     `json:"pullRequestsMerged"`
	Comments                  int                     `json:"comments"`
	UniqueContributors        int                     `json:"uniqueContributors"`
	CommitsPerDay             stats.Summary           `json:"commitsPerDay"`
	CommitsPerDayPercentiles  []stats.PercentileValue `json:"commitsPerDayPercentiles"`
	ContributionGini          float64                 `json:"contributionGini"`
	TopContributors           []Contributor           `json:"topContributors"`
	CommitGrowthRate          float64                 `json:"commitGrowthRate"`
	IssueCloseRatePct         float64                 `json:"issueCloseRatePct"`
	PRMergeRatePct            float64                 `json:"prMergeRatePct"`
	AvgIssueCloseHours        float64                 `json:"avgIssueCloseHours"`
	AvgPRMergeHours           float64                 `json:"avgPrMergeHours"`
	MedianPRMergeBusinessDays float64                 `json:"medianPrMergeBusinessDays"`
	WeeklyCommits             []stats.Bin             `json:"weeklyCommits"`
	SkippedRecords            int                     `json:"skippedRecords"`
}

// window is the half-open analysis interval [Since, Until).
type window struct {
	Since time.Time
	Until time.Time
}

func (w window) contains(t time.Time) bool {
	return !t.Before(w.Since) && t.Before(w.Until)
}

func (w window) mid() time.Time {
	return w.Since.Add(w.Until.Sub(w.Since) / 2)
}

// aggregateActivity computes ActivityStats over repos. The inputs are not
// modified.
func aggregateActivity(repos []repoActivity, w window) ActivityStats {
	var (
		out           ActivityStats
		commitTimes   []stats.TimedValue
		firstHalf     float64
		secondHalf    float64
		issueResolved int
		prResolved    int
		closeHours    []float64
		mergeHours    []float64
		mergeDays     []float64
		people        = make(map[string]*Contributor)
	)
	person := func(login string) *Contributor {
		if login == "" {
			return nil
		}
		c, ok := people[login]
		if !ok {
			c = &Contributor{Login: login}
			people[login] = c
		}
		return c
	}

	mid := w.mid()
	for _, r := range repos {
		out.SkippedRecords += r.Skipped

		for _, c := range r.Commits {
			if !w.contains(c.AuthoredAt) {
				continue
			}
			out.Commits++
			commitTimes = append(commitTimes, stats.TimedValue{At: c.AuthoredAt, Value: 1})
			if c.AuthoredAt.Before(mid) {
				firstHalf++
			} else {
				secondHalf++
			}
			if p := person(c.Author); p != nil {
				p.Commits++
			}
		}

		for _, is := range r.Issues {
			if is.ClosedAt != nil && w.contains(*is.ClosedAt) {
				out.IssuesClosed++
				closeHours = append(closeHours, stats.HoursBetween(is.CreatedAt, *is.ClosedAt))
			}
			if !w.contains(is.CreatedAt) {
				continue
			}
			out.IssuesOpened++
			if is.ClosedAt != nil {
				issueResolved++
			}
			if p := person(is.Author); p != nil {
				p.Issues++
			}
		}

		for _, pr := range r.Pulls {
			if pr.MergedAt != nil && w.contains(*pr.MergedAt) {
				out.PullsMerged++
				mergeHours = append(mergeHours, stats.HoursBetween(pr.CreatedAt, *pr.MergedAt))
				mergeDays = append(mergeDays, float64(stats.BusinessDaysBetween(pr.CreatedAt, *pr.MergedAt)))
			}
			if !w.contains(pr.CreatedAt) {
				continue
			}
			out.PullsOpened++
			if pr.MergedAt != nil {
				prResolved++
			}
			if p := person(pr.Author); p != nil {
				p.Pulls++
			}
		}

		for _, cm := range r.Comments {
			if !w.contains(cm.CreatedAt) {
				continue
			}
			out.Comments++
			if p := person(cm.Author); p != nil {
				p.Comments++
			}
		}
	}

	daily := stats.FillBins(stats.TimeBin(commitTimes, stats.GranularityDay), w.Since, w.Until.Add(-time.Nanosecond), stats.GranularityDay)
	perDay := stats.Counts(daily)
	out.CommitsPerDay = stats.Describe(perDay)
	out.CommitsPerDayPercentiles = stats.Percentiles(perDay, 50, 90)
	for i := range out.CommitsPerDayPercentiles {
		out.CommitsPerDayPercentiles[i].Value = stats.Round2(out.CommitsPerDayPercentiles[i].Value)
	}
	out.WeeklyCommits = stats.FillBins(stats.TimeBin(commitTimes, stats.GranularityWeek), w.Since, w.Until.Add(-time.Nanosecond), stats.GranularityWeek)

	contributors := make([]Contributor, 0, len(people))
	for _, c := range people {
		c.Total = c.Commits + c.Issues + c.Pulls + c.Comments
		contributors = append(contributors, *c)
	}
	// Map iteration is random; sort so ties in FindTopN resolve by login.
	sort.Slice(contributors, func(i, j int) bool { return contributors[i].Login < contributors[j].Login })
	totals := make([]float64, len(contributors))
	for i, c := range contributors {
		totals[i] = float64(c.Total)
	}
	out.UniqueContributors = len(contributors)
	out.ContributionGini = stats.GiniCoefficient(totals)
	out.TopContributors = stats.FindTopN(contributors, topContributorCount, func(c Contributor) float64 { return float64(c.Total) })

	out.CommitGrowthRate = stats.Round2(stats.GrowthRate(secondHalf, firstHalf))
	out.IssueCloseRatePct = stats.Percentage(float64(issueResolved), float64(out.IssuesOpened))
	out.PRMergeRatePct = stats.Percentage(float64(prResolved), float64(out.PullsOpened))
	out.AvgIssueCloseHours = stats.Round2(stats.Mean(closeHours))
	out.AvgPRMergeHours = stats.Round2(stats.Mean(mergeHours))
	out.MedianPRMergeBusinessDays = stats.Round2(stats.Median(mergeDays))
	return out
}
