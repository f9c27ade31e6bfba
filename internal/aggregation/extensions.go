package aggregation

import (
	"sort"
	"strings"
)

// Extension enriches a Summary with service-specific metrics. It receives the
// successful records and the effective test duration; new service types
// register here rather than branching inside Aggregate.
type Extension func(successful []RequestRecord, duration float64, s *Summary)

var extensions = map[string]Extension{}

// RegisterExtension installs or replaces the aggregation extension for a
// service type.
func RegisterExtension(serviceType string, ext Extension) {
	extensions[serviceType] = ext
}

func lookupExtension(serviceType string) (Extension, bool) {
	ext, ok := extensions[serviceType]
	return ext, ok
}

func init() {
	RegisterExtension("vllm", generativeExtension)
	RegisterExtension("ollama", generativeExtension)
	RegisterExtension("postgres", relationalExtension)
	RegisterExtension("redis", keyValueExtension)
}

// generativeExtension computes token throughput for LLM inference services.
func generativeExtension(successful []RequestRecord, duration float64, s *Summary) {
	if len(successful) == 0 {
		return
	}
	var totalOutput, totalInput int
	for _, r := range successful {
		totalOutput += r.OutputTokens
		totalInput += r.InputTokens
	}
	if totalOutput == 0 {
		return
	}
	g := &GenerativeMetrics{
		AvgOutputTokens: float64(totalOutput) / float64(len(successful)),
		AvgInputTokens:  float64(totalInput) / float64(len(successful)),
	}
	if duration > 0 {
		g.TokensPerSecond = float64(totalOutput) / duration
	}
	s.Generative = g
}

// relationalExtension breaks latency and throughput down per operation type
// and reports overall transactions per second.
func relationalExtension(successful []RequestRecord, duration float64, s *Summary) {
	byOp := map[string][]float64{}
	for _, r := range successful {
		op := r.OperationType
		if op == "" {
			op = "unknown"
		}
		if r.LatencySeconds > 0 {
			byOp[op] = append(byOp[op], r.LatencySeconds)
		}
	}
	if len(byOp) == 0 {
		return
	}
	ops := map[string]OperationStats{}
	for op, latencies := range byOp {
		stats := latencyStats(latencies)
		o := OperationStats{
			Count:      len(latencies),
			AvgLatency: stats.Avg,
			MinLatency: stats.Min,
			MaxLatency: stats.Max,
			P50Latency: stats.P50,
			P95Latency: stats.P95,
			P99Latency: stats.P99,
		}
		if duration > 0 {
			o.Throughput = float64(len(latencies)) / duration
		}
		ops[op] = o
	}
	s.Operations = ops
	if duration > 0 {
		s.TransactionsPerSecond = float64(len(successful)) / duration
	}
}

// keyValueExtension reports per-command breakdowns with uppercased command
// names and payload size statistics.
func keyValueExtension(successful []RequestRecord, duration float64, s *Summary) {
	byOp := map[string][]float64{}
	payloadTotal := 0
	payloadCount := 0
	sizesSeen := map[int]bool{}
	var sizes []int
	for _, r := range successful {
		op := strings.ToUpper(r.OperationType)
		if op == "" {
			op = "UNKNOWN"
		}
		if r.LatencySeconds > 0 {
			byOp[op] = append(byOp[op], r.LatencySeconds)
		}
		size := r.PayloadSizeBytes
		if size == 0 {
			size = r.DataSize
		}
		if size > 0 {
			payloadTotal += size
			payloadCount++
			if !sizesSeen[size] {
				sizesSeen[size] = true
				sizes = append(sizes, size)
			}
		}
	}
	if len(byOp) > 0 {
		ops := map[string]OperationStats{}
		for op, latencies := range byOp {
			stats := latencyStats(latencies)
			o := OperationStats{
				Count:      len(latencies),
				AvgLatency: stats.Avg,
				MinLatency: stats.Min,
				MaxLatency: stats.Max,
				P50Latency: stats.P50,
				P95Latency: stats.P95,
				P99Latency: stats.P99,
			}
			if duration > 0 {
				o.Throughput = float64(len(latencies)) / duration
			}
			ops[op] = o
		}
		s.Operations = ops
	}
	if payloadCount > 0 {
		sort.Ints(sizes)
		s.AvgPayloadSizeBytes = float64(payloadTotal) / float64(payloadCount)
		s.PayloadSizesUsed = sizes
	}
}
