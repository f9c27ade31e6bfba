package aggregation

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SummaryFileName is the per-campaign aggregate artifact written under the
// campaign's results directory.
const SummaryFileName = "summary.json"

// RecordsFileName is the merged raw-records artifact collectors produce.
const RecordsFileName = "results.jsonl"

// CampaignDir returns the results directory for one campaign.
func CampaignDir(resultsDir, campaignID string) string {
	return filepath.Join(resultsDir, campaignID)
}

// SummaryPath returns the summary artifact path for one campaign.
func SummaryPath(resultsDir, campaignID string) string {
	return filepath.Join(CampaignDir(resultsDir, campaignID), SummaryFileName)
}

// WriteSummary persists the summary as indented JSON, overwriting any
// previous aggregate for the campaign.
func WriteSummary(resultsDir, campaignID string, s *Summary) (string, error) {
	dir := CampaignDir(resultsDir, campaignID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", errors.WithStack(err)
	}
	path := filepath.Join(dir, SummaryFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.WithStack(err)
	}
	return path, nil
}

// ReadSummary loads a previously written aggregate.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s := &Summary{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.Wrapf(err, "malformed summary %s", path)
	}
	return s, nil
}

// AggregateCampaign reads the campaign's merged records file, aggregates it
// and writes summary.json next to it. A missing or empty records file yields
// the empty summary rather than an error, so a campaign that produced no data
// still gets a well-formed artifact.
func AggregateCampaign(resultsDir, campaignID string) (*Summary, error) {
	recordsPath := filepath.Join(CampaignDir(resultsDir, campaignID), RecordsFileName)
	records, err := ReadRecordsFile(recordsPath)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			log.Warnf("no records found for campaign %s, writing empty summary", campaignID)
			records = nil
		} else {
			return nil, err
		}
	}
	s := Aggregate(records)
	s.CampaignID = campaignID
	if _, err := WriteSummary(resultsDir, campaignID, s); err != nil {
		return nil, err
	}
	return s, nil
}
