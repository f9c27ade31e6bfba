// Package analysis interprets aggregated benchmark results: locating the
// saturation point of a concurrency sweep, classifying the dominant
// bottleneck and comparing runs for regressions.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// SweepPoint is one level of a load sweep: an aggregated summary annotated
// with the swept parameter value (typically concurrency).
type SweepPoint struct {
	X           float64 `json:"x"`
	Throughput  float64 `json:"throughput"`
	P99Latency  float64 `json:"p99_latency_s"`
	P95Latency  float64 `json:"p95_latency_s"`
	AvgLatency  float64 `json:"avg_latency_s"`
	SuccessRate float64 `json:"success_rate"`
}

// KneeResult locates the knee of the p99-latency curve.
type KneeResult struct {
	Found      bool    `json:"found"`
	X          float64 `json:"x,omitempty"`
	P99Latency float64 `json:"p99_latency_s,omitempty"`
	Index      int     `json:"index,omitempty"`
}

// SaturationResult locates where throughput stops scaling.
type SaturationResult struct {
	Found      bool    `json:"found"`
	X          float64 `json:"x,omitempty"`
	Throughput float64 `json:"throughput,omitempty"`
	Efficiency float64 `json:"efficiency,omitempty"`
	Index      int     `json:"index,omitempty"`
}

// SloResult reports the largest sweep value whose p99 latency still meets the
// threshold. Satisfiable false means no point qualified, which is itself a
// finding rather than an absence of one.
type SloResult struct {
	Satisfiable bool    `json:"satisfiable"`
	MaxX        float64 `json:"max_x,omitempty"`
	P99Latency  float64 `json:"p99_latency_s,omitempty"`
	Threshold   float64 `json:"threshold_s"`
	HeadroomPct float64 `json:"headroom_pct,omitempty"`
}

// Recommendation is the suggested operating point for the swept parameter.
type Recommendation struct {
	X         float64  `json:"x,omitempty"`
	Summary   string   `json:"summary"`
	Reasoning []string `json:"reasoning,omitempty"`
}

// SaturationReport is the combined sweep verdict.
type SaturationReport struct {
	Points               []SweepPoint      `json:"points"`
	LatencyKnee          *KneeResult       `json:"latency_knee,omitempty"`
	ThroughputSaturation *SaturationResult `json:"throughput_saturation,omitempty"`
	Slo                  *SloResult        `json:"slo_limit,omitempty"`
	Recommendation       Recommendation    `json:"recommendation"`
}

const kneeEpsilon = 1e-10

// gradient computes discrete first derivatives with central differences on
// interior points and one-sided differences at the edges, assuming unit
// spacing.
func gradient(y []float64) []float64 {
	n := len(y)
	d := make([]float64, n)
	if n < 2 {
		return d
	}
	d[0] = y[1] - y[0]
	d[n-1] = y[n-1] - y[n-2]
	for i := 1; i < n-1; i++ {
		d[i] = (y[i+1] - y[i-1]) / 2
	}
	return d
}

func normalize(v []float64) []float64 {
	lo, hi := v[0], v[0]
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	span := hi - lo + kneeEpsilon
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - lo) / span
	}
	return out
}

// findKneeIndex locates the interior point of maximal curvature on the curve
// after normalizing both axes to [0,1]. Returns -1 when the curve is too
// short to define a knee. No smoothing is applied, so short noisy sweeps
// yield noisy knees.
func findKneeIndex(xs, ys []float64) int {
	n := len(xs)
	if n < 3 {
		return -1
	}
	dx := gradient(normalize(xs))
	dy := gradient(normalize(ys))
	ddx := gradient(dx)
	ddy := gradient(dy)

	best, bestCurvature := -1, 0.0
	for i := 1; i < n-1; i++ {
		num := math.Abs(dx[i]*ddy[i] - dy[i]*ddx[i])
		den := math.Pow(dx[i]*dx[i]+dy[i]*dy[i]+kneeEpsilon, 1.5)
		k := num / den
		if k > bestCurvature || best == -1 {
			best, bestCurvature = i, k
		}
	}
	return best
}

func sortPoints(points []SweepPoint) []SweepPoint {
	sorted := make([]SweepPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].X < sorted[j].X
	})
	return sorted
}

// FindLatencyKnee locates the sweep value where p99 latency starts growing
// sharply. Fewer than three points cannot define a knee.
func FindLatencyKnee(points []SweepPoint) *KneeResult {
	sorted := sortPoints(points)
	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	for i, p := range sorted {
		xs[i] = p.X
		ys[i] = p.P99Latency
	}
	idx := findKneeIndex(xs, ys)
	if idx < 0 {
		return nil
	}
	return &KneeResult{
		Found:      true,
		X:          sorted[idx].X,
		P99Latency: sorted[idx].P99Latency,
		Index:      idx,
	}
}

// FindThroughputSaturation locates the sweep value where throughput stops
// scaling linearly, with per-client efficiency at that point.
func FindThroughputSaturation(points []SweepPoint) *SaturationResult {
	sorted := sortPoints(points)
	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	for i, p := range sorted {
		xs[i] = p.X
		ys[i] = p.Throughput
	}
	idx := findKneeIndex(xs, ys)
	if idx < 0 {
		return nil
	}
	efficiency := 0.0
	if sorted[idx].X > 0 {
		efficiency = sorted[idx].Throughput / sorted[idx].X
	}
	return &SaturationResult{
		Found:      true,
		X:          sorted[idx].X,
		Throughput: sorted[idx].Throughput,
		Efficiency: efficiency,
		Index:      idx,
	}
}

// FindSloLimit returns the largest sweep value whose p99 latency stays within
// the threshold.
func FindSloLimit(points []SweepPoint, threshold float64) SloResult {
	result := SloResult{Threshold: threshold}
	for _, p := range sortPoints(points) {
		if p.P99Latency <= threshold {
			result = SloResult{
				Satisfiable: true,
				MaxX:        p.X,
				P99Latency:  p.P99Latency,
				Threshold:   threshold,
				HeadroomPct: (threshold - p.P99Latency) / threshold * 100,
			}
		}
	}
	return result
}

// AnalyzeSaturation runs the full sweep analysis. sloThreshold <= 0 disables
// the SLO check. The recommended operating point prefers the SLO limit when
// one was supplied and satisfied, otherwise the most conservative of the
// latency-knee and throughput-saturation candidates.
func AnalyzeSaturation(points []SweepPoint, sloThreshold float64) (*SaturationReport, error) {
	if len(points) < 2 {
		return nil, errors.Errorf("need at least 2 sweep points, got %d", len(points))
	}
	sorted := sortPoints(points)
	report := &SaturationReport{
		Points:               sorted,
		LatencyKnee:          FindLatencyKnee(sorted),
		ThroughputSaturation: FindThroughputSaturation(sorted),
	}
	if sloThreshold > 0 {
		slo := FindSloLimit(sorted, sloThreshold)
		report.Slo = &slo
	}
	report.Recommendation = recommend(report)
	return report, nil
}

func recommend(report *SaturationReport) Recommendation {
	rec := Recommendation{}
	if report.Slo != nil && report.Slo.Satisfiable {
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf(
			"SLO limit: x=%g (p99=%.1fms, headroom=%.1f%%)",
			report.Slo.MaxX, report.Slo.P99Latency*1000, report.Slo.HeadroomPct))
	}
	if report.LatencyKnee != nil {
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf(
			"Latency knee: x=%g (p99=%.1fms)",
			report.LatencyKnee.X, report.LatencyKnee.P99Latency*1000))
	}
	if report.ThroughputSaturation != nil {
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf(
			"Throughput saturation: x=%g (%.1f req/s)",
			report.ThroughputSaturation.X, report.ThroughputSaturation.Throughput))
	}

	if report.Slo != nil && report.Slo.Satisfiable {
		rec.X = report.Slo.MaxX
		rec.Summary = fmt.Sprintf("Recommended operating point: x=%g (based on SLO compliance)", rec.X)
		return rec
	}
	candidates := []float64{}
	if report.LatencyKnee != nil {
		candidates = append(candidates, report.LatencyKnee.X)
	}
	if report.ThroughputSaturation != nil {
		candidates = append(candidates, report.ThroughputSaturation.X)
	}
	if len(candidates) == 0 {
		rec.Summary = "Insufficient data for a recommendation, run more sweep levels"
		return rec
	}
	rec.X = candidates[0]
	for _, c := range candidates[1:] {
		rec.X = math.Min(rec.X, c)
	}
	rec.Summary = fmt.Sprintf("Recommended operating point: x=%g (based on saturation analysis)", rec.X)
	return rec
}
