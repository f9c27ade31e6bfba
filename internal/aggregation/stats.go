package aggregation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// percentile computes the p-th percentile (0..100) of values using linear
// interpolation on the sorted sample (the standard inclusive method, index
// h = p/100 * (n-1)). Returns 0 for an empty sample.
func percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n == 1 {
		return sorted[0]
	}
	h := p / 100 * float64(n-1)
	lower := int(math.Floor(h))
	if lower >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// latencyStats computes the full latency distribution for a positive-latency
// sample. Stddev is the sample (n-1) standard deviation, 0 for fewer than two
// values.
func latencyStats(latencies []float64) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{}
	}
	std := 0.0
	if len(latencies) > 1 {
		std = stat.StdDev(latencies, nil)
	}
	return LatencyStats{
		Avg: stat.Mean(latencies, nil),
		Min: floats.Min(latencies),
		Max: floats.Max(latencies),
		Std: std,
		P50: percentile(latencies, 50),
		P90: percentile(latencies, 90),
		P95: percentile(latencies, 95),
		P99: percentile(latencies, 99),
	}
}
