// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats provides the pure statistical functions used to derive
// activity metrics.
//
// # Guarantees
//
//   - Deterministic: the same input always yields the same output.
//   - Non-mutating: slices are copied before sorting.
//   - Total: empty or degenerate input yields 0 (or an empty result),
//     never NaN, Inf or a panic.
//
// # Thread Safety
//
// Every function is stateless and safe for concurrent use.
package stats

import (
	"math"
	"sort"
)

// Round2 rounds x to two decimal places.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Round(x*100) / 100
}

// Ratio returns a/b rounded to two decimals, or 0 when b is 0.
func Ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return Round2(a / b)
}

// Percentage returns part/whole*100 rounded to two decimals, or 0 when
// whole is 0.
func Percentage(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return Round2(part / whole * 100)
}

// Mean returns the arithmetic mean, or 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle order statistic. Even-length input averages
// the two central values. Empty input yields 0.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Variance returns the population variance Σ(x−mean)²/N, or 0 for empty
// input.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

// StandardDeviation returns sqrt(Variance(values)).
func StandardDeviation(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// GrowthRate returns (current−previous)/previous rounded to two decimals.
// When previous is 0 it returns 1 if current is positive, else 0.
func GrowthRate(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 1
		}
		return 0
	}
	return Round2((current - previous) / previous)
}

// GiniCoefficient measures inequality of values (0 = perfectly equal).
//
// # Description
//
// Sorts a copy ascending and computes
// Σ((2·(i+1)−n−1)·vᵢ) / (n²·mean), rounded to two decimals.
//
// # Outputs
//
//   - float64: 0 for fewer than two values or a zero mean.
func GiniCoefficient(values []float64) float64 {
	n := len(values)
	if n <= 1 {
		return 0
	}
	m := Mean(values)
	if m == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	var sum float64
	for i, v := range sorted {
		sum += float64(2*(i+1)-n-1) * v
	}
	return Round2(sum / (float64(n*n) * m))
}

// Percentile returns the p-th percentile (0..100) using linear
// interpolation between adjacent order statistics. Empty input or p
// outside [0,100] yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 || p < 0 || p > 100 || math.IsNaN(p) {
		return 0
	}
	return percentileSorted(sortedCopy(values), p)
}

// PercentileValue pairs a requested percentile with its value.
type PercentileValue struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

// Percentiles computes several percentiles with one sort. Requests outside
// [0,100] are dropped; the remaining results keep request order.
func Percentiles(values []float64, ps ...float64) []PercentileValue {
	out := make([]PercentileValue, 0, len(ps))
	if len(values) == 0 {
		for _, p := range ps {
			if p >= 0 && p <= 100 {
				out = append(out, PercentileValue{P: p})
			}
		}
		return out
	}
	sorted := sortedCopy(values)
	for _, p := range ps {
		if p < 0 || p > 100 || math.IsNaN(p) {
			continue
		}
		out = append(out, PercentileValue{P: p, Value: percentileSorted(sorted, p)})
	}
	return out
}

func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// FindTopN returns the n items with the largest selector values, in
// descending order. Ties keep input order. Empty input or n <= 0 yields an
// empty slice.
func FindTopN[T any](items []T, n int, selector func(T) float64) []T {
	if len(items) == 0 || n <= 0 {
		return []T{}
	}
	cp := make([]T, len(items))
	copy(cp, items)
	sort.SliceStable(cp, func(i, j int) bool {
		return selector(cp[i]) > selector(cp[j])
	})
	if n > len(cp) {
		n = len(cp)
	}
	return cp[:n]
}

func sortedCopy(values []float64) []float64 {
	cp := make([]float64, len(values))
	copy(cp, values)
	sort.Float64s(cp)
	return cp
}
