package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/aggregation"
)

func healthySummary() *aggregation.Summary {
	s := aggregation.EmptySummary()
	s.NoData = false
	s.TotalRequests = 100
	s.SuccessfulRequests = 100
	s.SuccessRate = 100
	s.Latency = aggregation.LatencyStats{
		Avg: 0.1, Min: 0.05, Max: 0.3,
		P50: 0.1, P90: 0.12, P95: 0.14, P99: 0.15,
	}
	return s
}

func TestClassifyHealthy(t *testing.T) {
	v := ClassifyBottleneck(healthySummary(), nil)
	assert.Equal(t, CategoryHealthy, v.Classification)
	assert.Equal(t, "high", v.Confidence)
	assert.NotEmpty(t, v.Recommendations)
	assert.Contains(t, v.Summary, "No Significant Bottleneck")
}

func TestClassifyQueueingFromLatencySpread(t *testing.T) {
	s := healthySummary()
	s.Latency.P50 = 0.1
	s.Latency.P99 = 0.9 // spread 9x
	v := ClassifyBottleneck(s, nil)
	assert.Equal(t, CategoryQueueing, v.Classification)
}

func TestClassifyQueueingFromTimeouts(t *testing.T) {
	s := healthySummary()
	s.SuccessRate = 80
	s.FailedRequests = 20
	s.ErrorSummary = map[string]int{"ReadTimeout": 20}
	v := ClassifyBottleneck(s, nil)
	assert.Equal(t, CategoryQueueing, v.Classification)
	assert.Equal(t, 4, v.Scores[CategoryQueueing])
}

func TestClassifyGpuBound(t *testing.T) {
	v := ClassifyBottleneck(healthySummary(), &Telemetry{
		Gpu: &GpuTelemetry{Utilization: 95, MemoryUsedMB: 1000, MemoryTotalMB: 10000},
	})
	assert.Equal(t, CategoryGpuBound, v.Classification)
	assert.Equal(t, 3, v.Scores[CategoryGpuBound])
}

func TestClassifyLowGpuSplitsEvidence(t *testing.T) {
	s := healthySummary()
	s.SuccessRate = 90 // break the healthy bonus
	s.Latency.P99 = 2.1
	v := ClassifyBottleneck(s, &Telemetry{Gpu: &GpuTelemetry{Utilization: 10}})
	assert.Equal(t, 1, v.Scores[CategoryCpuBound])
	assert.Equal(t, 1, v.Scores[CategoryNetworkIo])
}

func TestClassifyMemoryBoundFromJobTelemetry(t *testing.T) {
	s := healthySummary()
	s.SuccessRate = 100
	v := ClassifyBottleneck(s, &Telemetry{
		Job: &JobTelemetry{MaxRssMB: 12000, CpuTimeSeconds: 10, ElapsedSeconds: 100},
	})
	assert.Equal(t, 2, v.Scores[CategoryMemoryBound])
	assert.Equal(t, 0, v.Scores[CategoryCpuBound])
}

func TestClassifyComputeBoundFallback(t *testing.T) {
	s := healthySummary()
	s.Latency = aggregation.LatencyStats{
		Avg: 0.8, Min: 0.7, Max: 1.2,
		P50: 0.8, P90: 0.9, P95: 0.95, P99: 1.1,
	}
	// spread 1.375, avg 0.8: consistent but slow, compute bound proxy
	v := ClassifyBottleneck(s, nil)
	assert.Equal(t, 1, v.Scores[CategoryGpuBound])
	assert.Equal(t, 1, v.Scores[CategoryCpuBound])
	assert.Equal(t, CategoryGpuBound, v.Classification)
	assert.Equal(t, "low", v.Confidence)
}

func TestClassifyUnknownWhenNoRuleFires(t *testing.T) {
	s := aggregation.EmptySummary()
	s.SuccessRate = 96
	s.Latency = aggregation.LatencyStats{Avg: 0.1, P50: 0.5, P99: 1.2}
	v := ClassifyBottleneck(s, nil)
	assert.Equal(t, CategoryUnknown, v.Classification)
	assert.Equal(t, "low", v.Confidence)
}

func TestRecommendationsCapped(t *testing.T) {
	for category := range categoryRecommendations {
		assert.LessOrEqual(t, len(recommendations(category)), maxRecommendations)
	}
}

func TestEvidenceSumsToScores(t *testing.T) {
	s := healthySummary()
	s.SuccessRate = 80
	s.FailedRequests = 20
	s.ErrorSummary = map[string]int{"timeout": 20}
	s.Latency.P99 = 3.0
	v := ClassifyBottleneck(s, nil)
	require.NotEmpty(t, v.Evidence)
	recomputed := map[string]int{}
	for _, e := range v.Evidence {
		recomputed[e.Category] += e.Weight
	}
	for category, score := range v.Scores {
		assert.Equal(t, score, recomputed[category], category)
	}
}
