package analysis

import (
	"fmt"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/aggregation"
)

// RegressionThresholds bound the percent change a metric may move before a
// comparison flags it. Zero fields fall back to the defaults.
type RegressionThresholds struct {
	LatencyPct     float64 `json:"latency_pct" mapstructure:"latencyPct"`
	ThroughputPct  float64 `json:"throughput_pct" mapstructure:"throughputPct"`
	SuccessRatePct float64 `json:"success_rate_pct" mapstructure:"successRatePct"`
}

// DefaultRegressionThresholds returns the stock tolerance bands.
func DefaultRegressionThresholds() RegressionThresholds {
	return RegressionThresholds{
		LatencyPct:     10.0,
		ThroughputPct:  10.0,
		SuccessRatePct: 1.0,
	}
}

func (t RegressionThresholds) withDefaults() RegressionThresholds {
	defaults := DefaultRegressionThresholds()
	if t.LatencyPct == 0 {
		t.LatencyPct = defaults.LatencyPct
	}
	if t.ThroughputPct == 0 {
		t.ThroughputPct = defaults.ThroughputPct
	}
	if t.SuccessRatePct == 0 {
		t.SuccessRatePct = defaults.SuccessRatePct
	}
	return t
}

// MetricComparison is one row of the per-metric comparison table.
type MetricComparison struct {
	Label         string  `json:"label"`
	Baseline      float64 `json:"baseline"`
	Current       float64 `json:"current"`
	Delta         float64 `json:"delta"`
	PercentChange float64 `json:"percent_change"`
	Regression    bool    `json:"regression"`
	Improvement   bool    `json:"improvement"`
	Threshold     float64 `json:"threshold"`
}

// MetricChange is a compact entry in the regressions/improvements lists.
type MetricChange struct {
	Metric string `json:"metric"`
	Change string `json:"change"`
}

// Verdict values for a comparison.
const (
	VerdictPass = "PASS"
	VerdictFail = "FAIL"
)

// RegressionVerdict is the outcome of comparing two runs.
type RegressionVerdict struct {
	BaselineService string                      `json:"baseline"`
	CurrentService  string                      `json:"current"`
	Thresholds      RegressionThresholds        `json:"thresholds"`
	Metrics         map[string]MetricComparison `json:"metrics"`
	Regressions     []MetricChange              `json:"regressions"`
	Improvements    []MetricChange              `json:"improvements"`
	Verdict         string                      `json:"verdict"`
}

type metricKind int

const (
	kindLatency metricKind = iota
	kindThroughput
	kindSuccessRate
)

type trackedMetric struct {
	path  string
	label string
	kind  metricKind
	value func(*aggregation.Summary) float64
}

var trackedMetrics = []trackedMetric{
	{"success_rate", "Success Rate (%)", kindSuccessRate,
		func(s *aggregation.Summary) float64 { return s.SuccessRate }},
	{"latency_s.avg", "Avg Latency (s)", kindLatency,
		func(s *aggregation.Summary) float64 { return s.Latency.Avg }},
	{"latency_s.p95", "P95 Latency (s)", kindLatency,
		func(s *aggregation.Summary) float64 { return s.Latency.P95 }},
	{"latency_s.p99", "P99 Latency (s)", kindLatency,
		func(s *aggregation.Summary) float64 { return s.Latency.P99 }},
	{"requests_per_second", "Throughput (RPS)", kindThroughput,
		func(s *aggregation.Summary) float64 { return s.RequestsPerSecond }},
}

// Compare evaluates the current run against a baseline. For latency metrics
// an increase beyond the threshold is a regression; for throughput and
// success rate a decrease is. The verdict fails iff any metric regressed.
func Compare(baseline, current *aggregation.Summary, thresholds RegressionThresholds) *RegressionVerdict {
	if baseline == nil {
		baseline = aggregation.EmptySummary()
	}
	if current == nil {
		current = aggregation.EmptySummary()
	}
	config := thresholds.withDefaults()
	v := &RegressionVerdict{
		BaselineService: serviceTypeOrUnknown(baseline),
		CurrentService:  serviceTypeOrUnknown(current),
		Thresholds:      config,
		Metrics:         map[string]MetricComparison{},
		Verdict:         VerdictPass,
	}

	for _, m := range trackedMetrics {
		baseVal := m.value(baseline)
		curVal := m.value(current)
		delta := curVal - baseVal
		pctChange := 0.0
		if baseVal != 0 {
			pctChange = delta / baseVal * 100
		}

		var threshold float64
		regression, improvement := false, false
		switch m.kind {
		case kindLatency:
			threshold = config.LatencyPct
			regression = pctChange > threshold
			improvement = pctChange < -threshold
		case kindThroughput:
			threshold = config.ThroughputPct
			regression = pctChange < -threshold
			improvement = pctChange > threshold
		case kindSuccessRate:
			threshold = config.SuccessRatePct
			regression = pctChange < -threshold
			improvement = pctChange > threshold
		}

		v.Metrics[m.path] = MetricComparison{
			Label:         m.label,
			Baseline:      baseVal,
			Current:       curVal,
			Delta:         delta,
			PercentChange: pctChange,
			Regression:    regression,
			Improvement:   improvement,
			Threshold:     threshold,
		}

		if regression {
			v.Regressions = append(v.Regressions, MetricChange{
				Metric: m.label,
				Change: fmt.Sprintf("%+.1f%%", pctChange),
			})
		} else if improvement {
			v.Improvements = append(v.Improvements, MetricChange{
				Metric: m.label,
				Change: fmt.Sprintf("%+.1f%%", pctChange),
			})
		}
	}

	if len(v.Regressions) > 0 {
		v.Verdict = VerdictFail
	}
	return v
}

func serviceTypeOrUnknown(s *aggregation.Summary) string {
	if s == nil || s.ServiceType == "" {
		return "unknown"
	}
	return s.ServiceType
}
