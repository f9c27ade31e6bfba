package deployment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/logging"
)

// lockFileName is the advisory collection lock. Its presence marks an
// in-progress collection; the store itself does not serialize writers to one
// container, so the lock bounds the campaign to at most one collector at a
// time.
const lockFileName = ".collecting"

// mergedRecordsName matches aggregation.RecordsFileName; the collector
// produces the file the aggregator consumes.
const mergedRecordsName = "results.jsonl"

// Collector downloads a finished campaign's artifacts: the per-client JSONL
// record files, job logs, and late-resolving client hostnames.
type Collector struct {
	manager *Manager
	log     *log.Entry
}

// NewCollector returns a collector bound to the manager's campaign.
func NewCollector(manager *Manager) *Collector {
	return &Collector{
		manager: manager,
		log:     manager.log.WithField("component", "collector"),
	}
}

func (c *Collector) campaignDir() string {
	return filepath.Join(c.manager.resultsDir, c.manager.campaignID)
}

// InProgress reports whether another collector holds the campaign lock.
func (c *Collector) InProgress() bool {
	_, err := os.Stat(filepath.Join(c.campaignDir(), lockFileName))
	return err == nil
}

// acquireLock creates the advisory lock file. Returns false when another
// collection is already in progress.
func (c *Collector) acquireLock() bool {
	dir := c.campaignDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	path := filepath.Join(dir, lockFileName)
	// O_EXCL makes create-if-absent atomic on one filesystem.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	fmt.Fprintln(f, c.manager.clock.Now().Format("2006-01-02 15:04:05"))
	f.Close()
	return true
}

func (c *Collector) releaseLock() {
	_ = os.Remove(filepath.Join(c.campaignDir(), lockFileName))
}

// Collect downloads record files and logs for the campaign under the
// advisory lock. It returns an error when the lock is already held or when
// no artifacts could be retrieved at all; partial downloads are logged and
// tolerated.
func (c *Collector) Collect() error {
	if !c.acquireLock() {
		return errors.Errorf("collection already in progress for campaign %s", c.manager.campaignID)
	}
	defer c.releaseLock()

	dir := c.campaignDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WithStack(err)
	}

	if err := c.downloadRecords(dir); err != nil {
		return err
	}
	if err := MergeRecordFiles(dir, c.manager.campaignID); err != nil {
		return err
	}
	c.downloadLogs(dir)
	c.updateClientHostnames()
	return nil
}

// downloadRecords fetches every JSONL file from the remote metrics
// directory. A campaign with no record files is not an error; the aggregator
// handles the empty case.
func (c *Collector) downloadRecords(dir string) error {
	metricsDir := fmt.Sprintf("%s/metrics", c.manager.workingDir)
	result, err := c.manager.execute(fmt.Sprintf("ls %s/*.jsonl 2>/dev/null || echo NO_FILES", metricsDir))
	if err != nil {
		return err
	}
	if strings.Contains(result.Stdout, "NO_FILES") {
		c.log.Warnf("no record files found under %s", metricsDir)
		return nil
	}
	for _, remote := range splitLines(result.Stdout) {
		local := filepath.Join(dir, filepath.Base(remote))
		if err := c.manager.executor.Download(remote, local); err != nil {
			logging.WithStacktrace(c.log, err).Warnf("failed to download %s", remote)
			continue
		}
		c.log.Infof("downloaded %s", filepath.Base(remote))
	}
	return nil
}

// downloadLogs fetches job stdout/stderr files into <campaign>/logs.
func (c *Collector) downloadLogs(dir string) {
	logsDir := fmt.Sprintf("%s/logs", c.manager.workingDir)
	localLogs := filepath.Join(dir, "logs")
	if err := os.MkdirAll(localLogs, 0o755); err != nil {
		logging.WithStacktrace(c.log, err).Warn("failed to create local logs directory")
		return
	}
	result, err := c.manager.execute(fmt.Sprintf("ls %s/*.out %s/*.err 2>/dev/null || echo NO_FILES", logsDir, logsDir))
	if err != nil || strings.Contains(result.Stdout, "NO_FILES") {
		c.log.Warn("no log files found on cluster")
		return
	}
	for _, remote := range splitLines(result.Stdout) {
		local := filepath.Join(localLogs, simplifyLogName(filepath.Base(remote)))
		if err := c.manager.executor.Download(remote, local); err != nil {
			logging.WithStacktrace(c.log, err).Warnf("failed to download %s", remote)
		}
	}
}

// simplifyLogName strips the scheduler job id from a log filename, e.g.
// "redis-cache_3940121.out" becomes "redis-cache_service.out".
func simplifyLogName(filename string) string {
	idx := strings.LastIndex(filename, "_")
	if idx < 0 {
		return filename
	}
	name := filename[:idx]
	ext := filepath.Ext(filename)
	role := "service"
	if strings.Contains(strings.ToLower(name), "client") {
		role = "client"
	}
	return fmt.Sprintf("%s_%s%s", name, role, ext)
}

// updateClientHostnames backfills hostnames from marker files for clients
// whose records never resolved one while running.
func (c *Collector) updateClientHostnames() {
	for _, client := range c.manager.LoadClients() {
		if client.Hostname != "" {
			continue
		}
		hostname, ok := c.manager.readMarker(client.Name)
		if !ok {
			continue
		}
		client.Hostname = hostname
		client.NodeName = hostname
		c.manager.saveClient(client)
		c.log.Infof("client %s ran on %s", client.Name, hostname)
	}
}

// MergeRecordFiles merges the per-client record files in dir into one
// results.jsonl, dropping records that carry a different campaign id.
// Malformed lines are kept; the aggregator decides how to treat them. The
// individual files are removed after a successful merge, and an existing
// merged file is replaced rather than appended to.
func MergeRecordFiles(dir, campaignID string) error {
	pattern := filepath.Join(dir, "*.jsonl")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.WithStack(err)
	}
	merged := filepath.Join(dir, mergedRecordsName)
	var sources []string
	for _, f := range files {
		if filepath.Base(f) != mergedRecordsName {
			sources = append(sources, f)
		}
	}
	if len(sources) == 0 {
		return nil
	}
	sort.Strings(sources)

	out, err := os.Create(merged)
	if err != nil {
		return errors.WithStack(err)
	}
	defer out.Close()

	kept := 0
	for _, source := range sources {
		n, err := appendRecords(out, source, campaignID)
		if err != nil {
			return err
		}
		kept += n
		if err := os.Remove(source); err != nil {
			return errors.WithStack(err)
		}
	}
	log.Infof("merged %d record files into %s (%d lines)", len(sources), merged, kept)
	return nil
}

func appendRecords(out *os.File, source, campaignID string) (int, error) {
	in, err := os.Open(source)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer in.Close()

	kept := 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var probe struct {
			CampaignID string `json:"benchmark_id"`
		}
		if err := json.Unmarshal([]byte(line), &probe); err == nil {
			if probe.CampaignID != "" && probe.CampaignID != campaignID {
				continue
			}
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return kept, errors.WithStack(err)
		}
		kept++
	}
	return kept, errors.WithStack(scanner.Err())
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// writeJSONFile writes v as indented JSON, creating parent directories.
func writeJSONFile(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0o644))
}
