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
	"strings"
	"time"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/github"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/stats"
)

const (
	noStatus         = "No Status"
	topAssigneeCount = 5
)

// NamedCount is one bucket of a categorical breakdown.
type NamedCount struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

// ProjectStats is the calculated view of a board.
type ProjectStats struct {
	Items             int          `json:"items"`
	Open              int          `json:"open"`
	Closed            int          `json:"closed"`
	OpenPct           float64      `json:"openPct"`
	ClosedPct         float64      `json:"closedPct"`
	ByStatus          []NamedCount `json:"byStatus"`
	ByContentType     []NamedCount `json:"byContentType"`
	TopAssignees      []NamedCount `json:"topAssignees"`
	AverageAgeDays    float64      `json:"averageAgeDays"`
	MedianDaysToClose float64      `json:"medianDaysToClose"`
	WeeklyCreated     []stats.Bin  `json:"weeklyCreated"`
}

// itemClosedAt returns when an item was closed or merged, if it was.
func itemClosedAt(it github.ProjectItem) (time.Time, bool) {
	switch {
	case it.MergedAt != nil:
		return *it.MergedAt, true
	case it.ClosedAt != nil:
		return *it.ClosedAt, true
	}
	s := strings.ToUpper(it.State)
	if s == "CLOSED" || s == "MERGED" {
		return time.Time{}, true
	}
	return time.Time{}, false
}

// aggregateProject computes ProjectStats. Open items age until now.
func aggregateProject(items []github.ProjectItem, now time.Time) ProjectStats {
	out := ProjectStats{Items: len(items)}
	byStatus := make(map[string]int)
	byType := make(map[string]int)
	byAssignee := make(map[string]int)
	var (
		ages    []float64
		toClose []float64
		created []stats.TimedValue
	)

	for _, it := range items {
		status := it.Status
		if status == "" {
			status = noStatus
		}
		byStatus[status]++
		byType[it.ContentType]++
		for _, a := range it.Assignees {
			byAssignee[a]++
		}
		created = append(created, stats.TimedValue{At: it.CreatedAt, Value: 1})

		closedAt, closed := itemClosedAt(it)
		if closed {
			out.Closed++
			if !closedAt.IsZero() {
				toClose = append(toClose, stats.DaysBetween(it.CreatedAt, closedAt))
				ages = append(ages, stats.DaysBetween(it.CreatedAt, closedAt))
			}
			continue
		}
		out.Open++
		ages = append(ages, stats.DaysBetween(it.CreatedAt, now))
	}

	out.OpenPct = stats.Percentage(float64(out.Open), float64(out.Items))
	out.ClosedPct = stats.Percentage(float64(out.Closed), float64(out.Items))
	out.ByStatus = rankCounts(byStatus, out.Items, 0)
	out.ByContentType = rankCounts(byType, out.Items, 0)
	out.TopAssignees = rankCounts(byAssignee, out.Items, topAssigneeCount)
	out.AverageAgeDays = stats.Round2(stats.Mean(ages))
	out.MedianDaysToClose = stats.Round2(stats.Median(toClose))
	out.WeeklyCreated = stats.TimeBin(created, stats.GranularityWeek)
	return out
}

// rankCounts orders counts by size, then name. limit <= 0 keeps all.
func rankCounts(counts map[string]int, total, limit int) []NamedCount {
	out := make([]NamedCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, NamedCount{Name: name, Count: n, Pct: stats.Percentage(float64(n), float64(total))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
