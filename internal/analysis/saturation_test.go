package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sweep(concurrency []float64, throughput, p99 []float64) []SweepPoint {
	points := make([]SweepPoint, len(concurrency))
	for i := range concurrency {
		points[i] = SweepPoint{X: concurrency[i]}
		if throughput != nil {
			points[i].Throughput = throughput[i]
		}
		if p99 != nil {
			points[i].P99Latency = p99[i]
		}
	}
	return points
}

func TestGradient(t *testing.T) {
	d := gradient([]float64{0, 1, 4, 9})
	assert.InDelta(t, 1.0, d[0], 1e-9)
	assert.InDelta(t, 2.0, d[1], 1e-9)
	assert.InDelta(t, 4.0, d[2], 1e-9)
	assert.InDelta(t, 5.0, d[3], 1e-9)
}

func TestGradientShortInputs(t *testing.T) {
	assert.Equal(t, []float64{0}, gradient([]float64{7}))
	d := gradient([]float64{1, 3})
	assert.InDelta(t, 2.0, d[0], 1e-9)
	assert.InDelta(t, 2.0, d[1], 1e-9)
}

func TestThroughputSaturationKnee(t *testing.T) {
	// Throughput flattens after x=8; the detected knee must land within one
	// index of that point.
	points := sweep(
		[]float64{1, 2, 4, 8, 16, 32},
		[]float64{10, 20, 38, 45, 47, 48},
		nil,
	)
	sat := FindThroughputSaturation(points)
	require.NotNil(t, sat)
	expectedIdx := 3 // x=8
	assert.InDelta(t, float64(expectedIdx), float64(sat.Index), 1)
	assert.InDelta(t, sat.Throughput/sat.X, sat.Efficiency, 1e-9)
}

func TestLatencyKneeNeedsThreePoints(t *testing.T) {
	points := sweep([]float64{1, 2}, nil, []float64{0.1, 0.2})
	assert.Nil(t, FindLatencyKnee(points))
}

func TestLatencyKneeOnSharpCurve(t *testing.T) {
	points := sweep(
		[]float64{1, 2, 4, 8, 16},
		nil,
		[]float64{0.05, 0.06, 0.07, 0.5, 2.5},
	)
	knee := FindLatencyKnee(points)
	require.NotNil(t, knee)
	assert.True(t, knee.Found)
	// Without smoothing, the curvature maximum of a flat-then-steep curve
	// sits at the start of the flat stretch, not where latency takes off.
	assert.Equal(t, 1, knee.Index)
	assert.Equal(t, 2.0, knee.X)
	assert.InDelta(t, 0.06, knee.P99Latency, 1e-9)
}

func TestFindSloLimit(t *testing.T) {
	points := sweep(
		[]float64{1, 2, 4, 8, 16},
		nil,
		[]float64{0.05, 0.1, 0.3, 0.9, 2.5},
	)
	slo := FindSloLimit(points, 0.5)
	assert.True(t, slo.Satisfiable)
	assert.Equal(t, 4.0, slo.MaxX)
	assert.InDelta(t, 0.3, slo.P99Latency, 1e-9)
	assert.InDelta(t, 40.0, slo.HeadroomPct, 1e-9)
}

func TestFindSloLimitUnsatisfiable(t *testing.T) {
	points := sweep([]float64{1, 2}, nil, []float64{1.0, 2.0})
	slo := FindSloLimit(points, 0.5)
	assert.False(t, slo.Satisfiable)
	assert.Equal(t, 0.5, slo.Threshold)
}

func TestAnalyzeSaturationPrefersSlo(t *testing.T) {
	points := sweep(
		[]float64{1, 2, 4, 8, 16},
		[]float64{10, 19, 35, 40, 41},
		[]float64{0.05, 0.1, 0.3, 0.9, 2.5},
	)
	report, err := AnalyzeSaturation(points, 0.5)
	require.NoError(t, err)
	require.NotNil(t, report.Slo)
	assert.Equal(t, 4.0, report.Recommendation.X)
	assert.Contains(t, report.Recommendation.Summary, "SLO")
}

func TestAnalyzeSaturationWithoutSloUsesMinimumCandidate(t *testing.T) {
	points := sweep(
		[]float64{1, 2, 4, 8, 16, 32},
		[]float64{10, 20, 38, 45, 47, 48},
		[]float64{0.05, 0.06, 0.07, 0.5, 2.0, 4.0},
	)
	report, err := AnalyzeSaturation(points, 0)
	require.NoError(t, err)
	assert.Nil(t, report.Slo)
	require.NotZero(t, report.Recommendation.X)
	minCandidate := math.Min(report.LatencyKnee.X, report.ThroughputSaturation.X)
	assert.Equal(t, minCandidate, report.Recommendation.X)
}

func TestAnalyzeSaturationRejectsTooFewPoints(t *testing.T) {
	_, err := AnalyzeSaturation(sweep([]float64{1}, nil, nil), 0)
	assert.Error(t, err)
}

func TestAnalyzeSaturationSortsPoints(t *testing.T) {
	points := sweep(
		[]float64{16, 1, 8, 2, 4},
		nil,
		[]float64{2.5, 0.05, 0.9, 0.1, 0.3},
	)
	report, err := AnalyzeSaturation(points, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 4.0, report.Slo.MaxX)
	for i := 1; i < len(report.Points); i++ {
		assert.Less(t, report.Points[i-1].X, report.Points[i].X)
	}
}
