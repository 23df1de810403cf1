// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mirror

import (
	"math"
	"sort"
)

// fieldStats holds the descriptive statistics for one tracked field's
// numeric values.
type fieldStats struct {
	count int
	mean  float64
	std   float64
	min   float64
	max   float64
	p10   float64
	p90   float64
}

// computeStats returns the descriptive statistics over nums. The
// standard deviation is the population deviation and reads 0 for fewer
// than two values, so degenerate batches never divide by zero in the
// z-score checks.
func computeStats(nums []float64) fieldStats {
	if len(nums) == 0 {
		return fieldStats{}
	}

	var sum float64
	mn, mx := nums[0], nums[0]
	for _, v := range nums {
		sum += v
		mn = math.Min(mn, v)
		mx = math.Max(mx, v)
	}
	mean := sum / float64(len(nums))

	var std float64
	if len(nums) > 1 {
		var sq float64
		for _, v := range nums {
			d := v - mean
			sq += d * d
		}
		std = math.Sqrt(sq / float64(len(nums)))
	}

	sorted := make([]float64, len(nums))
	copy(sorted, nums)
	sort.Float64s(sorted)

	return fieldStats{
		count: len(nums),
		mean:  mean,
		std:   std,
		min:   mn,
		max:   mx,
		p10:   percentile(sorted, 0.10),
		p90:   percentile(sorted, 0.90),
	}
}

// percentile picks the nearest-rank value at fraction p over the
// sorted slice: index round(p * (n-1)), clamped to valid bounds.
// Indices landing exactly on .5 resolve to the even neighbor, so a
// six-element p90 reads index 4, not 5.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	n := len(sorted)
	i := int(math.RoundToEven(p * float64(n-1)))
	if i < 0 {
		i = 0
	}
	if i > n-1 {
		i = n - 1
	}
	return sorted[i]
}

// countOutliers tallies the three per-field outlier classes over nums
// against the declared range and the batch statistics.
func countOutliers(nums []float64, min, max float64, st fieldStats) (outOfRange, z3, aboveP90 int) {
	for _, v := range nums {
		if v < min-rangeEps || v > max+rangeEps {
			outOfRange++
		}
		if st.std > 0 && math.Abs((v-st.mean)/(st.std+rangeEps)) > 3.0 {
			z3++
		}
		if v > st.p90*1.25 {
			aboveP90++
		}
	}
	return outOfRange, z3, aboveP90
}

// round2 and round3 round half to even at 2 and 3 decimals.
func round2(x float64) float64 { return math.RoundToEven(x*100) / 100 }
func round3(x float64) float64 { return math.RoundToEven(x*1000) / 1000 }

// clamp01 clamps x into [0,1].
func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
