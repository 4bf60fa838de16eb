// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"math"
	"sort"
	"time"
)

// Granularity is the bucket width of TimeBin.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// TimedValue is one timestamped observation.
type TimedValue struct {
	At    time.Time
	Value float64
}

// Bin is one aligned bucket of a time series.
type Bin struct {
	Start   time.Time `json:"start"`
	Count   int       `json:"count"`
	Sum     float64   `json:"sum"`
	Average float64   `json:"average"`
}

// BucketStart aligns t to the start of its bucket in UTC. Weeks start on
// Monday 00:00 UTC.
func BucketStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// TimeBin groups series into aligned buckets sorted by start time. Each bin
// carries the count, sum and arithmetic average of its values. Buckets with
// no observations are not emitted; use FillBins for a dense series.
func TimeBin(series []TimedValue, g Granularity) []Bin {
	if len(series) == 0 {
		return []Bin{}
	}
	byStart := make(map[time.Time]*Bin)
	for _, tv := range series {
		start := BucketStart(tv.At, g)
		b, ok := byStart[start]
		if !ok {
			b = &Bin{Start: start}
			byStart[start] = b
		}
		b.Count++
		b.Sum += tv.Value
	}
	bins := make([]Bin, 0, len(byStart))
	for _, b := range byStart {
		b.Average = Round2(b.Sum / float64(b.Count))
		b.Sum = Round2(b.Sum)
		bins = append(bins, *b)
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Start.Before(bins[j].Start) })
	return bins
}

// FillBins returns a dense series covering [from, to] where buckets absent
// from bins appear with zero count.
func FillBins(bins []Bin, from, to time.Time, g Granularity) []Bin {
	if to.Before(from) {
		from, to = to, from
	}
	existing := make(map[time.Time]Bin, len(bins))
	for _, b := range bins {
		existing[b.Start] = b
	}
	var out []Bin
	for cur := BucketStart(from, g); !cur.After(to); cur = nextBucket(cur, g) {
		if b, ok := existing[cur]; ok {
			out = append(out, b)
		} else {
			out = append(out, Bin{Start: cur})
		}
	}
	return out
}

func nextBucket(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityHour:
		return t.Add(time.Hour)
	case GranularityWeek:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Counts extracts bin counts as float64 values for the scalar functions.
func Counts(bins []Bin) []float64 {
	out := make([]float64, len(bins))
	for i, b := range bins {
		out[i] = float64(b.Count)
	}
	return out
}

// DaysBetween returns |end−start| in days, rounded to two decimals.
func DaysBetween(start, end time.Time) float64 {
	return Round2(math.Abs(end.Sub(start).Hours()) / 24)
}

// HoursBetween returns |end−start| in hours, rounded to two decimals.
func HoursBetween(start, end time.Time) float64 {
	return Round2(math.Abs(end.Sub(start).Hours()))
}

// BusinessDaysBetween counts Monday–Friday calendar days (UTC) in the
// half-open range [earlier, later). Argument order does not matter.
func BusinessDaysBetween(start, end time.Time) int {
	if end.Before(start) {
		start, end = end, start
	}
	from := BucketStart(start, GranularityDay)
	to := BucketStart(end, GranularityDay)
	days := int(to.Sub(from).Hours() / 24)

	count := (days / 7) * 5
	cur := from.AddDate(0, 0, (days/7)*7)
	for ; cur.Before(to); cur = cur.AddDate(0, 0, 1) {
		if wd := cur.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}
