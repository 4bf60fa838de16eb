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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalars_CommitSeries(t *testing.T) {
	commits := []float64{5, 10, 15}

	assert.Equal(t, 10.0, Mean(commits))
	assert.Equal(t, 10.0, Median(commits))
	assert.InDelta(t, 16.67, Variance(commits), 0.01)
	assert.InDelta(t, 4.08, StandardDeviation(commits), 0.01)
}

func TestEmptyInputsReturnZero(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 0.0, Variance(nil))
	assert.Equal(t, 0.0, StandardDeviation(nil))
	assert.Equal(t, 0.0, GiniCoefficient(nil))
	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Empty(t, FindTopN([]int(nil), 3, func(int) float64 { return 0 }))
	assert.Empty(t, TimeBin(nil, GranularityDay))
}

func TestMedian_EvenLength(t *testing.T) {
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}

func TestInputsAreNotMutated(t *testing.T) {
	in := []float64{3, 1, 2}
	Median(in)
	Percentile(in, 50)
	GiniCoefficient(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestRatioAndPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Ratio(5, 0))
	assert.Equal(t, 0.33, Ratio(1, 3))
	assert.Equal(t, 0.0, Percentage(5, 0))
	assert.Equal(t, 66.67, Percentage(2, 3))
}

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		name              string
		current, previous float64
		want              float64
	}{
		{"half again", 150, 100, 0.5},
		{"both zero", 0, 0, 0},
		{"from zero", 100, 0, 1},
		{"decline", 50, 100, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GrowthRate(tt.current, tt.previous))
		})
	}
}

func TestGiniCoefficient(t *testing.T) {
	assert.Equal(t, 0.0, GiniCoefficient([]float64{7, 7, 7, 7}))
	assert.Equal(t, 0.0, GiniCoefficient([]float64{42}))
	assert.Equal(t, 0.0, GiniCoefficient([]float64{0, 0, 0}))
	assert.Greater(t, GiniCoefficient([]float64{0, 0, 0, 100}), 0.5)

	g := GiniCoefficient([]float64{1, 2, 3, 4, 10})
	assert.GreaterOrEqual(t, g, 0.0)
	assert.LessOrEqual(t, g, 1.0)
}

func TestPercentile_Interpolates(t *testing.T) {
	values := []float64{10, 20, 30, 40}
	assert.Equal(t, 10.0, Percentile(values, 0))
	assert.Equal(t, 40.0, Percentile(values, 100))
	assert.Equal(t, 25.0, Percentile(values, 50))
	assert.Equal(t, 0.0, Percentile(values, 101))
	assert.Equal(t, 0.0, Percentile(values, -1))
}

func TestPercentiles_DropsOutOfRange(t *testing.T) {
	got := Percentiles([]float64{1, 2, 3, 4, 5}, 50, 150, 90, -3)
	require.Len(t, got, 2)
	assert.Equal(t, PercentileValue{P: 50, Value: 3}, got[0])
	assert.InDelta(t, 4.6, got[1].Value, 1e-9)
}

func TestFindTopN(t *testing.T) {
	type contributor struct {
		Login   string
		Commits int
	}
	in := []contributor{{"a", 3}, {"b", 9}, {"c", 3}, {"d", 1}}
	by := func(c contributor) float64 { return float64(c.Commits) }

	top := FindTopN(in, 3, by)
	require.Len(t, top, 3)
	assert.Equal(t, "b", top[0].Login)
	assert.Equal(t, "a", top[1].Login, "ties keep input order")
	assert.Equal(t, "c", top[2].Login)

	assert.Len(t, FindTopN(in, 10, by), 4)
	assert.Empty(t, FindTopN(in, 0, by))
	assert.Equal(t, "a", in[0].Login)
}

func TestTimeBin_DayAndWeek(t *testing.T) {
	// 2025-01-06 is a Monday.
	mon := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	series := []TimedValue{
		{At: mon, Value: 2},
		{At: mon.Add(3 * time.Hour), Value: 4},
		{At: mon.AddDate(0, 0, 2), Value: 1},
		{At: mon.AddDate(0, 0, 7), Value: 5},
	}

	days := TimeBin(series, GranularityDay)
	require.Len(t, days, 3)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), days[0].Start)
	assert.Equal(t, 2, days[0].Count)
	assert.Equal(t, 6.0, days[0].Sum)
	assert.Equal(t, 3.0, days[0].Average)

	weeks := TimeBin(series, GranularityWeek)
	require.Len(t, weeks, 2)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), weeks[0].Start)
	assert.Equal(t, 3, weeks[0].Count)
	assert.Equal(t, 1, weeks[1].Count)
}

func TestBucketStart_SundayBelongsToPreviousWeek(t *testing.T) {
	sun := time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), BucketStart(sun, GranularityWeek))
}

func TestFillBins(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bins := TimeBin([]TimedValue{{At: start, Value: 1}, {At: start.AddDate(0, 0, 2), Value: 1}}, GranularityDay)
	dense := FillBins(bins, start, start.AddDate(0, 0, 3), GranularityDay)
	require.Len(t, dense, 4)
	assert.Equal(t, []float64{1, 0, 1, 0}, Counts(dense))
}

func TestDurations(t *testing.T) {
	a := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(36 * time.Hour)
	assert.Equal(t, 1.5, DaysBetween(a, b))
	assert.Equal(t, 1.5, DaysBetween(b, a))
	assert.Equal(t, 36.0, HoursBetween(a, b))
}

func TestBusinessDaysBetween(t *testing.T) {
	mon := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 5, BusinessDaysBetween(mon, mon.AddDate(0, 0, 7)))
	assert.Equal(t, 0, BusinessDaysBetween(mon.AddDate(0, 0, 5), mon.AddDate(0, 0, 7)), "weekend only")
	assert.Equal(t, 10, BusinessDaysBetween(mon.AddDate(0, 0, 14), mon))
	assert.Equal(t, 0, BusinessDaysBetween(mon, mon))
}

func TestRound2_NonFinite(t *testing.T) {
	assert.Equal(t, 0.0, Round2(math.NaN()))
	assert.Equal(t, 0.0, Round2(math.Inf(1)))
	assert.Equal(t, 1.23, Round2(1.234))
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{5, 10, 15})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 30.0, s.Sum)
	assert.Equal(t, 5.0, s.Min)
	assert.Equal(t, 15.0, s.Max)
	assert.Equal(t, 10.0, s.Mean)
	assert.Equal(t, 4.08, s.StdDev)
	assert.Equal(t, Summary{}, Describe(nil))
}
