package aggregation

// LatencyStats is the latency distribution over a campaign's successful
// requests, in seconds. Percentiles are computed with linear interpolation on
// the sorted sample, so p50 <= p90 <= p95 <= p99 <= max always holds.
type LatencyStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Std float64 `json:"std"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// GenerativeMetrics are the extension fields for generative-inference services
// (vllm, ollama).
type GenerativeMetrics struct {
	TokensPerSecond float64 `json:"tokens_per_second"`
	AvgOutputTokens float64 `json:"avg_output_tokens"`
	AvgInputTokens  float64 `json:"avg_input_tokens"`
}

// OperationStats is the per-operation-type breakdown produced for key-value
// and relational services.
type OperationStats struct {
	Count      int     `json:"count"`
	AvgLatency float64 `json:"avg_latency"`
	MinLatency float64 `json:"min_latency"`
	MaxLatency float64 `json:"max_latency"`
	P50Latency float64 `json:"p50_latency"`
	P95Latency float64 `json:"p95_latency"`
	P99Latency float64 `json:"p99_latency"`
	Throughput float64 `json:"throughput"`
}

// Parametric carries the sweep's independent variables, extracted from the
// first record of a campaign. Whatever fields the client reported are kept;
// the rest stay zero and are omitted from the artifact.
type Parametric struct {
	ConcurrentRequests int    `json:"concurrent_requests,omitempty"`
	PayloadSizeBytes   int    `json:"payload_size_bytes,omitempty"`
	PromptLength       int    `json:"prompt_length,omitempty"`
	MaxTokens          int    `json:"max_tokens,omitempty"`
	Model              string `json:"model,omitempty"`
	Pipeline           int    `json:"pipeline,omitempty"`
}

// Summary is the immutable aggregated-metrics artifact for one campaign.
// It is created once per aggregation call; re-aggregating the same records
// yields an identical Summary and overwrites the same artifact.
type Summary struct {
	CampaignID string `json:"benchmark_id,omitempty"`

	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	FailedRequests     int     `json:"failed_requests"`
	SuccessRate        float64 `json:"success_rate"`
	ServiceType        string  `json:"service_type"`

	Latency           LatencyStats   `json:"latency_s"`
	RequestsPerSecond float64        `json:"requests_per_second"`
	ErrorSummary      map[string]int `json:"error_summary"`

	TestDuration  float64 `json:"test_duration_s"`
	TestStartTime float64 `json:"test_start_time,omitempty"`
	TestEndTime   float64 `json:"test_end_time,omitempty"`

	// Service-specific extension output; at most one of these is set,
	// selected by ServiceType through the extension registry.
	Generative            *GenerativeMetrics        `json:"generative_metrics,omitempty"`
	Operations            map[string]OperationStats `json:"operations,omitempty"`
	TransactionsPerSecond float64                   `json:"transactions_per_second,omitempty"`
	AvgPayloadSizeBytes   float64                   `json:"avg_payload_size_bytes,omitempty"`
	PayloadSizesUsed      []int                     `json:"payload_sizes_used,omitempty"`

	Parametric *Parametric `json:"parametric,omitempty"`

	// NoData marks a summary produced from zero usable records, so an
	// all-zero artifact is distinguishable from a legitimately idle run.
	NoData bool `json:"no_data,omitempty"`
}

// EmptySummary returns the documented all-zero Summary produced when a
// campaign yields no usable records.
func EmptySummary() *Summary {
	return &Summary{
		ServiceType:  "unknown",
		ErrorSummary: map[string]int{},
		NoData:       true,
	}
}
