package aggregation

// The aggregation pipeline turns an unordered collection of RequestRecords
// into one Summary:
//
//  1. drop records lacking an identifying field or carrying the unexpanded
//     placeholder campaign id
//  2. partition by the explicit success flag (absent flag means failed)
//  3. latency distribution over successful, positive-latency records
//  4. effective duration = max(timestamp span, max latency, epsilon) - the
//     max-latency floor keeps throughput finite when coarse one-second
//     timestamps collapse the whole run into a zero-length span
//  5. throughput = total / effective duration
//  6. service-specific extension selected by the first record's service_type
//  7. parametric fields extracted from the first record
//  8. error-type histogram over failed records

// durationEpsilon is the last-resort effective-duration floor when a campaign
// has no latency data at all.
const durationEpsilon = 1e-6

// Aggregate computes the Summary for one campaign's records. It never fails:
// malformed input degrades to the empty Summary.
func Aggregate(records []RequestRecord) *Summary {
	actual := filterRecords(records)
	if len(actual) == 0 {
		return EmptySummary()
	}

	var successful, failed []RequestRecord
	for _, r := range actual {
		if r.Success {
			successful = append(successful, r)
		} else {
			failed = append(failed, r)
		}
	}

	var latencies []float64
	for _, r := range successful {
		if r.LatencySeconds > 0 {
			latencies = append(latencies, r.LatencySeconds)
		}
	}
	stats := latencyStats(latencies)

	s := &Summary{
		CampaignID:         actual[0].CampaignID,
		TotalRequests:      len(actual),
		SuccessfulRequests: len(successful),
		FailedRequests:     len(failed),
		SuccessRate:        float64(len(successful)) / float64(len(actual)) * 100,
		ServiceType:        serviceType(actual),
		Latency:            stats,
		ErrorSummary:       errorHistogram(failed),
		Parametric:         parametricFields(actual[0]),
	}

	duration := 0.0
	minStart, maxEnd, haveTimestamps := timeRange(actual)
	if haveTimestamps {
		duration = maxEnd - minStart
		// Sub-second runs recorded with whole-second timestamps collapse to a
		// zero span; floor at the largest single latency observed.
		if len(latencies) > 0 {
			duration = maxFloat(duration, stats.Max)
		} else {
			duration = maxFloat(duration, durationEpsilon)
		}
		s.RequestsPerSecond = float64(len(actual)) / duration
		s.TestDuration = duration
		s.TestStartTime = minStart
		s.TestEndTime = maxEnd
	}

	if ext, ok := lookupExtension(s.ServiceType); ok {
		ext(successful, duration, s)
	}

	return s
}

func filterRecords(records []RequestRecord) []RequestRecord {
	var actual []RequestRecord
	for _, r := range records {
		if r.RequestID == "" && r.OperationType == "" {
			continue
		}
		if r.CampaignID == PlaceholderCampaignID {
			continue
		}
		actual = append(actual, r)
	}
	return actual
}

func serviceType(records []RequestRecord) string {
	if records[0].ServiceType != "" {
		return records[0].ServiceType
	}
	return "unknown"
}

func timeRange(records []RequestRecord) (minStart, maxEnd float64, ok bool) {
	for _, r := range records {
		if r.TimestampStart == 0 {
			continue
		}
		end := r.TimestampEnd
		if end == 0 {
			end = r.TimestampStart
		}
		if !ok {
			minStart, maxEnd, ok = r.TimestampStart, end, true
			continue
		}
		if r.TimestampStart < minStart {
			minStart = r.TimestampStart
		}
		if end > maxEnd {
			maxEnd = end
		}
	}
	return minStart, maxEnd, ok
}

func errorHistogram(failed []RequestRecord) map[string]int {
	histogram := map[string]int{}
	for _, r := range failed {
		errType := r.Error
		if errType == "" {
			errType = "unknown"
		}
		histogram[errType]++
	}
	return histogram
}

func parametricFields(first RequestRecord) *Parametric {
	p := &Parametric{
		PromptLength: first.PromptLength,
		MaxTokens:    first.MaxTokens,
		Model:        first.Model,
		Pipeline:     first.Pipeline,
	}
	if first.ConcurrentRequests > 0 {
		p.ConcurrentRequests = first.ConcurrentRequests
	} else if first.NumClients > 0 {
		p.ConcurrentRequests = first.NumClients
	}
	if first.PayloadSizeBytes > 0 {
		p.PayloadSizeBytes = first.PayloadSizeBytes
	} else if first.DataSize > 0 {
		p.PayloadSizeBytes = first.DataSize
	}
	if *p == (Parametric{}) {
		return nil
	}
	return p
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
