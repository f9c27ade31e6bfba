package analysis

import (
	"fmt"
	"strings"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/aggregation"
)

// Bottleneck categories, in tie-break order.
const (
	CategoryGpuBound    = "gpu_bound"
	CategoryCpuBound    = "cpu_bound"
	CategoryMemoryBound = "memory_bound"
	CategoryQueueing    = "queueing"
	CategoryNetworkIo   = "network_io"
	CategoryHealthy     = "healthy"
	CategoryUnknown     = "unknown"
)

var categoryOrder = []string{
	CategoryGpuBound,
	CategoryCpuBound,
	CategoryMemoryBound,
	CategoryQueueing,
	CategoryNetworkIo,
	CategoryHealthy,
}

var categoryLabels = map[string]string{
	CategoryGpuBound:    "GPU Compute",
	CategoryCpuBound:    "CPU Compute",
	CategoryMemoryBound: "Memory",
	CategoryQueueing:    "Service Queueing/Overload",
	CategoryNetworkIo:   "Network/I/O",
	CategoryHealthy:     "No Significant Bottleneck",
	CategoryUnknown:     "Unable to Determine",
}

// GpuTelemetry carries GPU utilization samples collected alongside a run.
type GpuTelemetry struct {
	Utilization   float64 `json:"gpu_utilization"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
}

// JobTelemetry carries scheduler accounting for the service job.
type JobTelemetry struct {
	MaxRssMB       float64 `json:"max_rss_mb"`
	CpuTimeSeconds float64 `json:"cpu_time_s"`
	ElapsedSeconds float64 `json:"elapsed_s"`
}

// Telemetry is optional hardware/job context for classification. Either
// field may be nil.
type Telemetry struct {
	Gpu *GpuTelemetry `json:"gpu,omitempty"`
	Job *JobTelemetry `json:"job,omitempty"`
}

// Evidence is one triggered classification rule. Each rule contributes a
// fixed weight to one category; the final scores are the evidence summed
// once, so every rule is testable in isolation.
type Evidence struct {
	Category string `json:"category"`
	Weight   int    `json:"weight"`
	Reason   string `json:"reason"`
}

// BottleneckVerdict is the classifier's output.
type BottleneckVerdict struct {
	Classification  string         `json:"classification"`
	Confidence      string         `json:"confidence"`
	Scores          map[string]int `json:"scores"`
	Evidence        []Evidence     `json:"evidence"`
	Recommendations []string       `json:"recommendations"`
	Summary         string         `json:"summary"`
}

// ClassifyBottleneck attributes the dominant performance bottleneck of one
// aggregated run. All rules are evaluated unconditionally; telemetry-based
// rules only fire when their telemetry is present, and the latency-shape
// fallback only fires when no telemetry was supplied at all.
func ClassifyBottleneck(summary *aggregation.Summary, telemetry *Telemetry) *BottleneckVerdict {
	evidence := collectEvidence(summary, telemetry)

	scores := map[string]int{}
	for _, c := range categoryOrder {
		scores[c] = 0
	}
	for _, e := range evidence {
		scores[e.Category] += e.Weight
	}

	classification := classify(scores)
	return &BottleneckVerdict{
		Classification:  classification,
		Confidence:      confidence(scores),
		Scores:          scores,
		Evidence:        evidence,
		Recommendations: recommendations(classification),
		Summary:         verdictSummary(classification, evidence),
	}
}

func collectEvidence(summary *aggregation.Summary, telemetry *Telemetry) []Evidence {
	var evidence []Evidence
	add := func(category string, weight int, reason string) {
		evidence = append(evidence, Evidence{Category: category, Weight: weight, Reason: reason})
	}

	p50 := summary.Latency.P50
	p99 := summary.Latency.P99
	avgLatency := summary.Latency.Avg
	spread := 0.0
	if p50 > 0 {
		spread = p99 / p50
	}

	if spread > 5 {
		add(CategoryQueueing, 3, fmt.Sprintf("High latency spread: P99/P50 = %.1fx (queueing indicator)", spread))
	}
	if summary.SuccessRate < 95 {
		add(CategoryQueueing, 2, fmt.Sprintf("Low success rate: %.1f%% indicates overload", summary.SuccessRate))
	}
	if summary.FailedRequests > 0 && hasTimeoutErrors(summary.ErrorSummary) {
		add(CategoryQueueing, 2, fmt.Sprintf("Timeout errors detected (%d failures)", summary.FailedRequests))
	}

	var gpu *GpuTelemetry
	var job *JobTelemetry
	if telemetry != nil {
		gpu = telemetry.Gpu
		job = telemetry.Job
	}

	if gpu != nil {
		switch {
		case gpu.Utilization > 90:
			add(CategoryGpuBound, 3, fmt.Sprintf("High GPU utilization: %.0f%%", gpu.Utilization))
		case gpu.Utilization > 70:
			add(CategoryGpuBound, 1, fmt.Sprintf("Moderate GPU utilization: %.0f%%", gpu.Utilization))
		case gpu.Utilization < 30:
			reason := fmt.Sprintf("Low GPU utilization: %.0f%% (not GPU-bound)", gpu.Utilization)
			add(CategoryCpuBound, 1, reason)
			add(CategoryNetworkIo, 1, reason)
		}
		if gpu.MemoryTotalMB > 0 {
			memPct := gpu.MemoryUsedMB / gpu.MemoryTotalMB * 100
			if memPct > 90 {
				add(CategoryMemoryBound, 2, fmt.Sprintf("High GPU memory usage: %.0f%%", memPct))
			}
		}
	}

	if job != nil {
		if job.ElapsedSeconds > 0 {
			cpuEfficiency := job.CpuTimeSeconds / job.ElapsedSeconds * 100
			if cpuEfficiency > 90 {
				add(CategoryCpuBound, 2, fmt.Sprintf("High CPU efficiency: %.0f%%", cpuEfficiency))
			}
		}
		if job.MaxRssMB > 8000 {
			add(CategoryMemoryBound, 2, fmt.Sprintf("High memory usage: %.0f MB RSS", job.MaxRssMB))
		}
	}

	// Latency shape is only a proxy; trust it when nothing better exists.
	if gpu == nil && job == nil {
		if p99 > 2.0 {
			add(CategoryQueueing, 2, fmt.Sprintf("High tail latency: P99 = %.2fs", p99))
		}
		if spread > 3 {
			add(CategoryQueueing, 1, fmt.Sprintf("Elevated latency spread: P99/P50 = %.1fx", spread))
		} else if spread > 0 && spread < 1.5 && avgLatency > 0.5 {
			reason := fmt.Sprintf("Consistent latency (%.1fx spread) suggests compute-bound", spread)
			add(CategoryGpuBound, 1, reason)
			add(CategoryCpuBound, 1, reason)
		}
	}

	if summary.SuccessRate >= 99 && spread < 2 && p99 < 1.0 {
		add(CategoryHealthy, 3, "System operating within normal parameters")
	}

	return evidence
}

func hasTimeoutErrors(errorSummary map[string]int) bool {
	for errType := range errorSummary {
		if strings.Contains(strings.ToLower(errType), "timeout") {
			return true
		}
	}
	return false
}

func classify(scores map[string]int) string {
	best, bestScore := CategoryUnknown, 0
	for _, c := range categoryOrder {
		if scores[c] > bestScore {
			best, bestScore = c, scores[c]
		}
	}
	return best
}

func confidence(scores map[string]int) string {
	max1, max2 := 0, 0
	for _, c := range categoryOrder {
		s := scores[c]
		if s > max1 {
			max1, max2 = s, max1
		} else if s > max2 {
			max2 = s
		}
	}
	switch {
	case max1 == 0:
		return "low"
	case max1-max2 >= 2:
		return "high"
	case max1-max2 >= 1:
		return "medium"
	default:
		return "low"
	}
}

var categoryRecommendations = map[string][]string{
	CategoryGpuBound: {
		"Consider using a smaller model or enabling quantization",
		"Increase batch size to improve GPU efficiency",
		"Enable tensor parallelism across multiple GPUs",
		"Check if model fits in GPU memory without swapping",
	},
	CategoryCpuBound: {
		"Profile CPU-intensive operations (tokenization, data loading)",
		"Consider using more CPU cores or faster processors",
		"Optimize data preprocessing pipeline",
		"Check for unnecessary CPU-GPU data transfers",
	},
	CategoryMemoryBound: {
		"Reduce batch size to lower memory pressure",
		"Enable gradient checkpointing for training workloads",
		"Use memory-efficient attention mechanisms",
		"Consider model quantization (INT8/FP16)",
		"Check for memory leaks in long-running services",
	},
	CategoryQueueing: {
		"Reduce concurrency/request rate",
		"Scale horizontally with more service replicas",
		"Implement request queuing with backpressure",
		"Increase service timeout limits",
		"Add request rate limiting at the client",
	},
	CategoryNetworkIo: {
		"Check network bandwidth between client and service",
		"Reduce payload sizes where possible",
		"Enable compression for large responses",
		"Consider co-locating client and service on same node",
	},
	CategoryHealthy: {
		"System is operating well, consider testing higher load",
		"Document current configuration as baseline",
		"Monitor for degradation over time",
	},
	CategoryUnknown: {
		"Collect more detailed metrics (GPU utilization, CPU time)",
		"Run additional tests with varying concurrency",
		"Enable verbose logging to identify slow operations",
	},
}

const maxRecommendations = 5

func recommendations(classification string) []string {
	recs := categoryRecommendations[classification]
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	out := make([]string, len(recs))
	copy(out, recs)
	return out
}

func verdictSummary(classification string, evidence []Evidence) string {
	label := categoryLabels[classification]
	if label == "" {
		label = classification
	}
	if len(evidence) == 0 {
		return fmt.Sprintf("Most likely bottleneck: %s (insufficient data for detailed analysis)", label)
	}
	return fmt.Sprintf("Most likely bottleneck: %s. Primary indicator: %s", label, evidence[0].Reason)
}
