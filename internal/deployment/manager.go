package deployment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/bencherrors"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/logging"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/util"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/configuration"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/storage"
)

// Manager drives the lifecycle of one campaign's remote jobs: rendering and
// submitting batch scripts, polling scheduler state, resolving endpoints and
// persisting deployment records through the injected store.
//
// All remote interaction goes through the RemoteExecutor; the manager owns
// retry and backoff policy, the executor does not. Polling is sequential and
// blocking. A wait-phase timeout never cancels the underlying job: it returns
// a degraded result and leaves the job in whatever state it is in, only an
// explicit Cancel call changes job state.
type Manager struct {
	campaignID string
	workingDir string
	resultsDir string
	store      storage.EntityStore
	executor   RemoteExecutor
	renderer   ScriptRenderer
	clock      util.Clock
	config     configuration.DeploymentConfig
	log        *log.Entry
}

// NewManager wires a manager for one campaign. renderer may be nil, in which
// case the Slurm renderer is used.
func NewManager(
	campaignID string,
	store storage.EntityStore,
	executor RemoteExecutor,
	renderer ScriptRenderer,
	config configuration.DeploymentConfig,
	resultsDir string,
) (*Manager, error) {
	if campaignID == "" {
		return nil, errors.WithStack(&bencherrors.ErrInvalidArgument{
			Name:    "campaignID",
			Value:   campaignID,
			Message: "campaign id must be non-empty",
		})
	}
	if renderer == nil {
		renderer = &SlurmRenderer{}
	}
	return &Manager{
		campaignID: campaignID,
		workingDir: fmt.Sprintf(config.WorkingDirPattern, campaignID),
		resultsDir: resultsDir,
		store:      store,
		executor:   executor,
		renderer:   renderer,
		clock:      &util.DefaultClock{},
		config:     config,
		log:        log.WithField("campaignId", campaignID),
	}, nil
}

// WithClock replaces the manager's clock; used by tests.
func (m *Manager) WithClock(clock util.Clock) *Manager {
	m.clock = clock
	return m
}

// WorkingDir returns the campaign's remote working directory.
func (m *Manager) WorkingDir() string {
	return m.workingDir
}

// withRetry runs op, retrying on transient connectivity failures only. Any
// other error aborts immediately.
func (m *Manager) withRetry(operation string, op func() error) error {
	attempts := m.config.ConnectivityRetries
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		op,
		retry.Attempts(attempts),
		retry.Delay(m.config.ConnectivityDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(bencherrors.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			m.log.WithError(err).Warnf("retrying %s (attempt %d)", operation, n+1)
		}),
	)
}

func (m *Manager) execute(command string) (CommandResult, error) {
	var result CommandResult
	err := m.withRetry("execute", func() error {
		var err error
		result, err = m.executor.Execute(command, "")
		return err
	})
	return result, err
}

// uploadScript writes content to a local staging file and uploads it to the
// campaign's scripts directory, returning the remote path.
func (m *Manager) uploadScript(name, content string) (string, error) {
	local, err := os.CreateTemp("", fmt.Sprintf("%s_%s_*.sh", name, m.campaignID))
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer os.Remove(local.Name())
	if _, err := local.WriteString(content); err != nil {
		local.Close()
		return "", errors.WithStack(err)
	}
	if err := local.Close(); err != nil {
		return "", errors.WithStack(err)
	}

	remote := fmt.Sprintf("%s/scripts/%s.sh", m.workingDir, name)
	err = m.withRetry("upload", func() error {
		return m.executor.Upload(local.Name(), remote)
	})
	if err != nil {
		return "", err
	}
	return remote, nil
}

func (m *Manager) createWorkingDirs() error {
	for _, sub := range []string{"logs", "scripts", "metrics"} {
		result, err := m.execute(fmt.Sprintf("mkdir -p %s/%s", m.workingDir, sub))
		if err != nil {
			return err
		}
		if !result.Success() {
			return errors.Errorf("failed to create %s/%s: %s", m.workingDir, sub, result.Stderr)
		}
	}
	return nil
}

// DeployService renders and submits the service job, persists its record and,
// when spec.Wait is set, blocks until the job is RUNNING and its endpoint
// marker resolves. A wait timeout returns the deployment as-is with a logged
// warning; the job keeps running.
func (m *Manager) DeployService(spec ServiceSpec) (*ServiceDeployment, error) {
	spec = spec.withDefaults()
	if spec.Name == "" || spec.ContainerImage == "" {
		return nil, errors.WithStack(&bencherrors.ErrInvalidArgument{
			Name:    "spec",
			Value:   spec.Name,
			Message: "service name and container image are required",
		})
	}
	entry := m.log.WithField("service", spec.Name)
	entry.Infof("deploying service %s (image %s)", spec.Name, spec.ContainerImage)

	if err := m.createWorkingDirs(); err != nil {
		deployFailures.WithLabelValues("service").Inc()
		return nil, err
	}

	script, err := m.renderer.RenderService(spec, RenderContext{
		CampaignID: m.campaignID,
		WorkingDir: m.workingDir,
	})
	if err != nil {
		deployFailures.WithLabelValues("service").Inc()
		return nil, err
	}
	remoteScript, err := m.uploadScript(spec.Name, script)
	if err != nil {
		deployFailures.WithLabelValues("service").Inc()
		return nil, err
	}

	var jobID string
	err = m.withRetry("submitJob", func() error {
		var err error
		jobID, err = m.executor.SubmitJob(remoteScript)
		return err
	})
	if err != nil {
		deployFailures.WithLabelValues("service").Inc()
		return nil, err
	}
	jobsSubmitted.WithLabelValues("service").Inc()
	entry.Infof("service job submitted with id %s", jobID)

	now := m.clock.Now()
	service := &ServiceDeployment{
		Name:           spec.Name,
		ContainerImage: spec.ContainerImage,
		Command:        spec.Command,
		ServiceType:    spec.ServiceType,
		JobID:          jobID,
		Port:           spec.Port,
		WorkingDir:     m.workingDir,
		LogFile:        fmt.Sprintf("%s/logs/%s_%s.out", m.workingDir, spec.Name, jobID),
		SubmitTime:     &now,
	}
	m.saveService(service)
	m.writeRunMetadata()

	if spec.Wait {
		running := m.WaitForRunning(jobID, m.config.RunningTimeout)
		if !running {
			entry.Warnf("service job %s did not reach RUNNING within %s; leaving it in place", jobID, m.config.RunningTimeout)
			return service, nil
		}
		started := m.clock.Now()
		service.StartTime = &started

		if hostname, ok := m.WaitForEndpoint(spec.Name, m.config.EndpointTimeout); ok {
			service.Hostname = hostname
			service.NodeName = hostname
			entry.Infof("service running on %s", hostname)
			if m.WaitForReady(spec.ServiceType, hostname, spec.Port, spec.ExpectedModel, m.config.ReadyTimeout) {
				entry.Infof("service %s is ready", spec.Name)
			} else {
				entry.Warnf("service %s is running but not ready yet; clients may need to retry", spec.Name)
			}
		} else {
			entry.Warnf("endpoint marker for %s did not resolve within %s", spec.Name, m.config.EndpointTimeout)
		}
		m.saveService(service)
		m.writeRunMetadata()
	}
	return service, nil
}

// DeployClient submits one client job against an already-deployed service.
// The referenced service must be RUNNING; anything else fails fast without
// submitting.
func (m *Manager) DeployClient(spec ClientSpec) (*ClientDeployment, error) {
	spec = spec.withDefaults()
	if spec.Name == "" || spec.ServiceName == "" {
		return nil, errors.WithStack(&bencherrors.ErrInvalidArgument{
			Name:    "spec",
			Value:   spec.Name,
			Message: "client name and service reference are required",
		})
	}
	entry := m.log.WithField("client", spec.Name)

	service, ok := m.LoadService(spec.ServiceName)
	if !ok {
		return nil, errors.WithStack(&bencherrors.ErrNotFound{
			Type:  storage.KindService,
			Value: spec.ServiceName,
		})
	}
	if service.JobID != "" {
		state, _ := m.Status(service.JobID)
		if state != StateRunning {
			return nil, errors.Errorf("service %q is not running (status %s); refusing to submit client", spec.ServiceName, state)
		}
	}

	hostname := service.Hostname
	if hostname == "" {
		var ok bool
		hostname, ok = m.WaitForEndpoint(spec.ServiceName, m.config.EndpointTimeout)
		if !ok {
			return nil, errors.Errorf("endpoint for service %q did not resolve within %s", spec.ServiceName, m.config.EndpointTimeout)
		}
		service.Hostname = hostname
		service.NodeName = hostname
		m.saveService(service)
	}
	serviceURL := ""
	if hostname != "" && service.Port > 0 {
		serviceURL = fmt.Sprintf("http://%s:%d", hostname, service.Port)
	}

	script, err := m.renderer.RenderClient(spec, RenderContext{
		CampaignID:  m.campaignID,
		WorkingDir:  m.workingDir,
		ServiceHost: hostname,
		ServicePort: service.Port,
		ServiceURL:  serviceURL,
	})
	if err != nil {
		deployFailures.WithLabelValues("client").Inc()
		return nil, err
	}
	remoteScript, err := m.uploadScript(spec.Name, script)
	if err != nil {
		deployFailures.WithLabelValues("client").Inc()
		return nil, err
	}

	var jobID string
	err = m.withRetry("submitJob", func() error {
		var err error
		jobID, err = m.executor.SubmitJob(remoteScript)
		return err
	})
	if err != nil {
		deployFailures.WithLabelValues("client").Inc()
		return nil, err
	}
	jobsSubmitted.WithLabelValues("client").Inc()
	entry.Infof("client job submitted with id %s", jobID)

	now := m.clock.Now()
	client := &ClientDeployment{
		Name:        spec.Name,
		ServiceName: spec.ServiceName,
		Command:     spec.Command,
		JobID:       jobID,
		WorkingDir:  m.workingDir,
		LogFile:     fmt.Sprintf("%s/logs/%s_%s.out", m.workingDir, spec.Name, jobID),
		MetricsFile: fmt.Sprintf("%s/metrics/%s_metrics.jsonl", m.workingDir, spec.Name),
		SubmitTime:  &now,
	}
	m.saveClient(client)
	m.writeRunMetadata()
	return client, nil
}

// DeployOutcome is the per-entity result of a multi-client deploy.
type DeployOutcome struct {
	Name   string
	Client *ClientDeployment
	Err    error
}

// DeployClients submits n clients named <prefix>-1 .. <prefix>-n
// sequentially, collecting per-entity outcomes rather than aborting on first
// failure. The caller can parallelize waiting externally if desired.
func (m *Manager) DeployClients(base ClientSpec, prefix string, n int) []DeployOutcome {
	if prefix == "" {
		prefix = "client"
	}
	outcomes := make([]DeployOutcome, 0, n)
	for i := 1; i <= n; i++ {
		spec := base
		spec.Name = fmt.Sprintf("%s-%d", prefix, i)
		client, err := m.DeployClient(spec)
		if err != nil {
			logging.WithStacktrace(m.log, err).Errorf("failed to deploy client %s", spec.Name)
		}
		outcomes = append(outcomes, DeployOutcome{Name: spec.Name, Client: client, Err: err})
	}
	return outcomes
}

// WaitForRunning polls job status on a fixed interval until the job is
// RUNNING, reaches a terminal state, or maxWait elapses. It returns false on
// timeout or terminal state and never blocks longer than maxWait plus one
// poll interval. It never cancels the job.
func (m *Manager) WaitForRunning(jobID string, maxWait time.Duration) bool {
	deadline := m.clock.Now().Add(maxWait)
	for {
		state, _ := m.Status(jobID)
		switch {
		case state == StateRunning:
			return true
		case state.Terminal():
			m.log.Warnf("job %s reached terminal state %s while waiting for RUNNING", jobID, state)
			return false
		}
		if !m.clock.Now().Before(deadline) {
			return false
		}
		time.Sleep(m.config.PollInterval)
	}
}

// WaitForEndpoint polls the service's hostname marker file with exponential
// backoff (base 1s, capped at 10s per attempt by default) until it has
// content or maxWait elapses. The marker is written by the remote job itself,
// so "job is running" and "endpoint known" resolve through different channels
// with different latencies.
func (m *Manager) WaitForEndpoint(name string, maxWait time.Duration) (string, bool) {
	marker := fmt.Sprintf("%s/%s.hostname", m.workingDir, name)
	deadline := m.clock.Now().Add(maxWait)
	for attempt := 0; ; attempt++ {
		result, err := m.execute(fmt.Sprintf("test -s %s && cat %s", marker, marker))
		if err != nil {
			logging.WithStacktrace(m.log, err).Warnf("endpoint poll for %s failed", name)
		} else if result.Success() {
			if hostname := strings.TrimSpace(result.Stdout); hostname != "" {
				return hostname, true
			}
		}
		if !m.clock.Now().Before(deadline) {
			return "", false
		}
		time.Sleep(util.ExponentialDelay(attempt, m.config.EndpointBackoffBase, m.config.EndpointBackoffCap))
	}
}

// Status returns the scheduler state for a job handle. Unknown handles and
// executor failures degrade to (UNKNOWN, false) rather than an error.
func (m *Manager) Status(jobID string) (JobState, bool) {
	statusPolls.Inc()
	var state JobState
	var known bool
	err := m.withRetry("jobStatus", func() error {
		var err error
		state, known, err = m.executor.JobStatus(jobID)
		return err
	})
	if err != nil {
		logging.WithStacktrace(m.log, err).Warnf("failed to query status of job %s", jobID)
		return StateUnknown, false
	}
	if !known {
		return StateUnknown, false
	}
	return state, true
}

// Cancel cancels a job. This is the only operation that changes job state;
// no timeout path calls it implicitly.
func (m *Manager) Cancel(jobID string) error {
	err := m.withRetry("cancelJob", func() error {
		return m.executor.CancelJob(jobID)
	})
	if err != nil {
		return err
	}
	jobsCancelled.Inc()
	return nil
}

// StoppedJob names one successfully cancelled job.
type StoppedJob struct {
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	JobID string `json:"job_id"`
}

// StopResult is the partial-failure outcome of StopCampaign.
type StopResult struct {
	Stopped []StoppedJob `json:"stopped"`
	Errors  []string     `json:"errors,omitempty"`
}

// StopCampaign cancels every known service and client job of the campaign,
// independently, collecting per-entity outcomes instead of failing atomically
// on the first error. The returned error is a multierror over the individual
// failures, alongside the structured result.
func (m *Manager) StopCampaign() (*StopResult, error) {
	result := &StopResult{}
	var errs *multierror.Error

	for _, service := range m.LoadServices() {
		if service.JobID == "" {
			continue
		}
		if err := m.Cancel(service.JobID); err != nil {
			msg := fmt.Sprintf("failed to cancel service %s (job %s)", service.Name, service.JobID)
			result.Errors = append(result.Errors, msg)
			errs = multierror.Append(errs, errors.Wrap(err, msg))
			continue
		}
		result.Stopped = append(result.Stopped, StoppedJob{Kind: storage.KindService, Name: service.Name, JobID: service.JobID})
	}
	for _, client := range m.LoadClients() {
		if client.JobID == "" {
			continue
		}
		if err := m.Cancel(client.JobID); err != nil {
			msg := fmt.Sprintf("failed to cancel client %s (job %s)", client.Name, client.JobID)
			result.Errors = append(result.Errors, msg)
			errs = multierror.Append(errs, errors.Wrap(err, msg))
			continue
		}
		result.Stopped = append(result.Stopped, StoppedJob{Kind: storage.KindClient, Name: client.Name, JobID: client.JobID})
	}
	return result, errs.ErrorOrNil()
}

// EntityStatus is one row of a campaign status snapshot.
type EntityStatus struct {
	Name     string   `json:"name"`
	JobID    string   `json:"job_id"`
	State    JobState `json:"state"`
	Hostname string   `json:"hostname,omitempty"`
}

// CampaignStatus is the per-entity state snapshot consumed by observability
// collaborators.
type CampaignStatus struct {
	Services []EntityStatus `json:"services"`
	Clients  []EntityStatus `json:"clients"`
}

// Complete reports whether every client has reached a terminal state. A
// campaign with no clients is never complete.
func (s *CampaignStatus) Complete() bool {
	if len(s.Clients) == 0 {
		return false
	}
	for _, c := range s.Clients {
		if !c.State.Terminal() {
			return false
		}
	}
	return true
}

// CampaignStatus polls the current state of every known job in the campaign.
// Running or completed clients missing a hostname are lazily resolved from
// their marker file and persisted.
func (m *Manager) CampaignStatus() *CampaignStatus {
	status := &CampaignStatus{}
	for _, service := range m.LoadServices() {
		state := StateUnknown
		if service.JobID != "" {
			state, _ = m.Status(service.JobID)
		}
		status.Services = append(status.Services, EntityStatus{
			Name:     service.Name,
			JobID:    service.JobID,
			State:    state,
			Hostname: service.Hostname,
		})
	}
	for _, client := range m.LoadClients() {
		state := StateUnknown
		if client.JobID != "" {
			state, _ = m.Status(client.JobID)
		}
		if client.Hostname == "" && (state == StateRunning || state == StateCompleted) {
			if hostname, ok := m.readMarker(client.Name); ok {
				client.Hostname = hostname
				client.NodeName = hostname
				m.saveClient(client)
			}
		}
		status.Clients = append(status.Clients, EntityStatus{
			Name:     client.Name,
			JobID:    client.JobID,
			State:    state,
			Hostname: client.Hostname,
		})
	}
	return status
}

// readMarker reads an entity's hostname marker file once, without waiting.
func (m *Manager) readMarker(name string) (string, bool) {
	marker := fmt.Sprintf("%s/%s.hostname", m.workingDir, name)
	result, err := m.execute(fmt.Sprintf("cat %s 2>/dev/null", marker))
	if err != nil || !result.Success() {
		return "", false
	}
	hostname := strings.TrimSpace(result.Stdout)
	return hostname, hostname != ""
}

// TailLogs fetches the last n lines of every job's stdout log, keyed by
// entity name.
func (m *Manager) TailLogs(n int) map[string]string {
	logs := map[string]string{}
	tail := func(name, jobID string) {
		if jobID == "" {
			return
		}
		path := fmt.Sprintf("%s/logs/%s_%s.out", m.workingDir, name, jobID)
		result, err := m.execute(fmt.Sprintf("tail -n %d %s 2>/dev/null", n, path))
		if err != nil || !result.Success() {
			logs[name] = "(no logs yet)"
			return
		}
		logs[name] = result.Stdout
	}
	for _, service := range m.LoadServices() {
		tail(service.Name, service.JobID)
	}
	for _, client := range m.LoadClients() {
		tail(client.Name, client.JobID)
	}
	return logs
}

// LoadService loads one service record from the store.
func (m *Manager) LoadService(name string) (*ServiceDeployment, bool) {
	attrs, ok := m.store.Load(m.campaignID, storage.KindService, name)
	if !ok {
		return nil, false
	}
	service, err := ServiceFromAttrs(attrs)
	if err != nil {
		logging.WithStacktrace(m.log, err).Warnf("corrupt service record %s", name)
		return nil, false
	}
	return service, true
}

// LoadServices loads every service record of the campaign.
func (m *Manager) LoadServices() []*ServiceDeployment {
	var services []*ServiceDeployment
	for _, attrs := range m.store.LoadAll(m.campaignID, storage.KindService) {
		service, err := ServiceFromAttrs(attrs)
		if err != nil {
			logging.WithStacktrace(m.log, err).Warn("skipping corrupt service record")
			continue
		}
		services = append(services, service)
	}
	return services
}

// LoadClient loads one client record from the store.
func (m *Manager) LoadClient(name string) (*ClientDeployment, bool) {
	attrs, ok := m.store.Load(m.campaignID, storage.KindClient, name)
	if !ok {
		return nil, false
	}
	client, err := ClientFromAttrs(attrs)
	if err != nil {
		logging.WithStacktrace(m.log, err).Warnf("corrupt client record %s", name)
		return nil, false
	}
	return client, true
}

// LoadClients loads every client record of the campaign.
func (m *Manager) LoadClients() []*ClientDeployment {
	var clients []*ClientDeployment
	for _, attrs := range m.store.LoadAll(m.campaignID, storage.KindClient) {
		client, err := ClientFromAttrs(attrs)
		if err != nil {
			logging.WithStacktrace(m.log, err).Warn("skipping corrupt client record")
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

func (m *Manager) saveService(service *ServiceDeployment) {
	attrs, err := service.Attrs()
	if err != nil {
		logging.WithStacktrace(m.log, err).Errorf("failed to encode service %s", service.Name)
		return
	}
	if !m.store.Save(m.campaignID, storage.KindService, service.Name, attrs) {
		m.log.Errorf("failed to persist service %s", service.Name)
	}
}

func (m *Manager) saveClient(client *ClientDeployment) {
	attrs, err := client.Attrs()
	if err != nil {
		logging.WithStacktrace(m.log, err).Errorf("failed to encode client %s", client.Name)
		return
	}
	if !m.store.Save(m.campaignID, storage.KindClient, client.Name, attrs) {
		m.log.Errorf("failed to persist client %s", client.Name)
	}
}

// RunMetadata is the run.json artifact written alongside collected results.
type RunMetadata struct {
	CampaignID string              `json:"campaign_id"`
	Created    time.Time           `json:"created"`
	WorkingDir string              `json:"working_dir"`
	Services   []ServiceDeployment `json:"services"`
	Clients    []ClientDeployment  `json:"clients"`
}

// writeRunMetadata overwrites run.json with the campaign's current
// deployment records. Failure to write metadata never fails a deploy.
func (m *Manager) writeRunMetadata() {
	meta := RunMetadata{
		CampaignID: m.campaignID,
		Created:    m.clock.Now(),
		WorkingDir: m.workingDir,
	}
	for _, s := range m.LoadServices() {
		meta.Services = append(meta.Services, *s)
	}
	for _, c := range m.LoadClients() {
		meta.Clients = append(meta.Clients, *c)
	}
	dir := filepath.Join(m.resultsDir, m.campaignID)
	if err := writeJSONFile(filepath.Join(dir, "run.json"), meta); err != nil {
		logging.WithStacktrace(m.log, err).Warn("failed to write run metadata")
	}
}
