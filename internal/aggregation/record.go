package aggregation

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/pkg/errors"
)

// PlaceholderCampaignID is the literal left behind when a client job script
// fails to expand its environment; records carrying it are dropped during
// aggregation.
const PlaceholderCampaignID = "$BENCHMARK_ID"

// RequestRecord is one per-operation telemetry record emitted by a running
// client. Records are append-only and never mutated once written. Timestamps
// are float64 seconds since the epoch; upstream producers may emit them with
// as little as one-second resolution, which the aggregator's effective-duration
// floor compensates for.
type RequestRecord struct {
	RequestID     string  `json:"request_id,omitempty"`
	OperationType string  `json:"operation_type,omitempty"`
	CampaignID    string  `json:"benchmark_id,omitempty"`
	ClientName    string  `json:"client_name,omitempty"`
	ServiceType   string  `json:"service_type,omitempty"`

	TimestampStart float64 `json:"timestamp_start,omitempty"`
	TimestampEnd   float64 `json:"timestamp_end,omitempty"`
	LatencySeconds float64 `json:"latency_s,omitempty"`
	Success        bool    `json:"success,omitempty"`
	Error          string  `json:"error,omitempty"`

	InputTokens      int `json:"input_tokens,omitempty"`
	OutputTokens     int `json:"output_tokens,omitempty"`
	PayloadSizeBytes int `json:"payload_size_bytes,omitempty"`
	DataSize         int `json:"data_size,omitempty"`

	// Parametric fields: the sweep's independent variables, constant across
	// one campaign's records.
	ConcurrentRequests int    `json:"concurrent_requests,omitempty"`
	NumClients         int    `json:"num_clients,omitempty"`
	PromptLength       int    `json:"prompt_length,omitempty"`
	MaxTokens          int    `json:"max_tokens,omitempty"`
	Model              string `json:"model,omitempty"`
	Pipeline           int    `json:"pipeline,omitempty"`
}

// ReadRecords decodes newline-delimited JSON records from r. Malformed lines
// are skipped with a logged warning; a bad line never aborts aggregation.
func ReadRecords(r io.Reader) ([]RequestRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []RequestRecord
	line := 0
	skipped := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record RequestRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			skipped++
			log.WithError(err).Warnf("skipping malformed request record at line %d", line)
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return records, errors.WithStack(err)
	}
	if skipped > 0 {
		log.Warnf("skipped %d malformed record(s) out of %d line(s)", skipped, line)
	}
	return records, nil
}

// ReadRecordsFile reads records from the requests file at path.
func ReadRecordsFile(path string) ([]RequestRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	return ReadRecords(f)
}
