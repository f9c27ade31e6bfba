package deployment

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/bencherrors"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/configuration"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/storage"
)

// fakeExecutor emulates the login node: a flat remote filesystem plus a
// scripted scheduler.
type fakeExecutor struct {
	mu        sync.Mutex
	files     map[string]string
	uploads   []string
	submitted []string
	cancelled []string
	nextJobID int
	// statuses maps a job id to its state sequence; the last entry repeats.
	statuses    map[string][]JobState
	statusCalls map[string]int
	// submitFailures makes the first n SubmitJob calls fail transiently.
	submitFailures int
	// curlResponses maps a URL substring to the stdout a curl command yields.
	curlResponses map[string]string
	// tcpReady makes /dev/tcp probes succeed.
	tcpReady bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		files:       map[string]string{},
		statuses:    map[string][]JobState{},
		statusCalls: map[string]int{},
	}
}

func (f *fakeExecutor) setFile(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
}

func (f *fakeExecutor) Execute(command, cwd string) (CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasPrefix(command, "mkdir -p "):
		return CommandResult{}, nil
	case strings.HasPrefix(command, "test -s "):
		// "test -s <path> && cat <path>"
		path := strings.Fields(command)[2]
		if content, ok := f.files[path]; ok && content != "" {
			return CommandResult{Stdout: content}, nil
		}
		return CommandResult{ExitCode: 1}, nil
	case strings.HasPrefix(command, "cat "):
		path := strings.Fields(command)[1]
		if content, ok := f.files[path]; ok {
			return CommandResult{Stdout: content}, nil
		}
		return CommandResult{ExitCode: 1}, nil
	case strings.HasPrefix(command, "ls "):
		prefix := strings.TrimSuffix(strings.Fields(command)[1], "*.jsonl")
		var matches []string
		for path := range f.files {
			if strings.HasPrefix(path, prefix) && strings.HasSuffix(path, ".jsonl") {
				matches = append(matches, path)
			}
		}
		if len(matches) == 0 {
			return CommandResult{Stdout: "NO_FILES"}, nil
		}
		return CommandResult{Stdout: strings.Join(matches, "\n")}, nil
	case strings.HasPrefix(command, "tail "):
		return CommandResult{Stdout: "log tail"}, nil
	case strings.HasPrefix(command, "curl "):
		for url, response := range f.curlResponses {
			if strings.Contains(command, url) {
				return CommandResult{Stdout: response}, nil
			}
		}
		return CommandResult{ExitCode: 7}, nil
	case strings.Contains(command, "/dev/tcp/"):
		if f.tcpReady {
			return CommandResult{Stdout: "OK"}, nil
		}
		return CommandResult{ExitCode: 1}, nil
	}
	return CommandResult{ExitCode: 127, Stderr: "unhandled: " + command}, nil
}

func (f *fakeExecutor) Upload(localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, remotePath)
	f.files[remotePath] = "uploaded"
	return nil
}

func (f *fakeExecutor) Download(remotePath, localPath string) error {
	return fmt.Errorf("download not supported by this fake")
}

func (f *fakeExecutor) SubmitJob(scriptPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitFailures > 0 {
		f.submitFailures--
		return "", &bencherrors.ErrConnectivity{Operation: "submitJob", Message: "connection reset"}
	}
	f.nextJobID++
	jobID := fmt.Sprintf("job-%d", f.nextJobID)
	f.submitted = append(f.submitted, scriptPath)
	if _, ok := f.statuses[jobID]; !ok {
		f.statuses[jobID] = []JobState{StateRunning}
	}
	return jobID, nil
}

func (f *fakeExecutor) JobStatus(jobID string) (JobState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq, ok := f.statuses[jobID]
	if !ok {
		return StateUnknown, false, nil
	}
	idx := f.statusCalls[jobID]
	f.statusCalls[jobID]++
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return seq[idx], true, nil
}

func (f *fakeExecutor) CancelJob(jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func testConfig() configuration.DeploymentConfig {
	cfg := configuration.DefaultDeploymentConfig()
	cfg.PollInterval = time.Millisecond
	cfg.RunningTimeout = 50 * time.Millisecond
	cfg.EndpointTimeout = 50 * time.Millisecond
	cfg.ReadyTimeout = 50 * time.Millisecond
	cfg.EndpointBackoffBase = time.Millisecond
	cfg.EndpointBackoffCap = 2 * time.Millisecond
	cfg.ConnectivityDelay = time.Millisecond
	return cfg
}

func newTestManager(t *testing.T, executor *fakeExecutor) (*Manager, storage.EntityStore) {
	t.Helper()
	store := storage.NewInMemoryStore()
	m, err := NewManager("c1", store, executor, nil, testConfig(), t.TempDir())
	require.NoError(t, err)
	return m, store
}

func TestDeployServicePersistsAndResolvesEndpoint(t *testing.T) {
	executor := newFakeExecutor()
	m, _ := newTestManager(t, executor)
	executor.setFile(m.WorkingDir()+"/svc.hostname", "node-17\n")

	service, err := m.DeployService(ServiceSpec{
		Name:           "svc",
		ContainerImage: "redis:latest",
		Command:        "redis-server",
		ServiceType:    "redis",
		Port:           6379,
		Wait:           true,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", service.JobID)
	assert.Equal(t, "node-17", service.Hostname)
	require.NotNil(t, service.SubmitTime)
	require.NotNil(t, service.StartTime)

	loaded, ok := m.LoadService("svc")
	require.True(t, ok)
	assert.True(t, service.Equal(loaded))
	assert.Contains(t, executor.uploads[0], "/scripts/svc.sh")
}

func TestDeployServiceRequiresNameAndImage(t *testing.T) {
	m, _ := newTestManager(t, newFakeExecutor())
	_, err := m.DeployService(ServiceSpec{Name: "svc"})
	require.Error(t, err)
	var invalid *bencherrors.ErrInvalidArgument
	assert.ErrorAs(t, err, &invalid)
}

func TestDeployServiceTimeoutDoesNotCancel(t *testing.T) {
	executor := newFakeExecutor()
	executor.statuses["job-1"] = []JobState{StatePending}
	m, _ := newTestManager(t, executor)

	service, err := m.DeployService(ServiceSpec{
		Name:           "svc",
		ContainerImage: "redis:latest",
		Wait:           true,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", service.JobID)
	// The job stays pending; only an explicit Cancel may touch it.
	assert.Empty(t, executor.cancelled)
}

func TestDeployServiceRetriesTransientSubmitFailures(t *testing.T) {
	executor := newFakeExecutor()
	executor.submitFailures = 2
	m, _ := newTestManager(t, executor)

	service, err := m.DeployService(ServiceSpec{Name: "svc", ContainerImage: "redis:latest"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", service.JobID)
}

func TestDeployClientFailsFastWhenServiceNotRunning(t *testing.T) {
	executor := newFakeExecutor()
	m, _ := newTestManager(t, executor)
	_, err := m.DeployService(ServiceSpec{Name: "svc", ContainerImage: "redis:latest"})
	require.NoError(t, err)
	executor.statuses["job-1"] = []JobState{StateFailed}
	executor.statusCalls["job-1"] = 0

	_, err = m.DeployClient(ClientSpec{Name: "client-1", ServiceName: "svc", Command: "bench"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
	assert.Len(t, executor.submitted, 1) // only the service was submitted
}

func TestDeployClientUnknownServiceReturnsNotFound(t *testing.T) {
	m, _ := newTestManager(t, newFakeExecutor())
	_, err := m.DeployClient(ClientSpec{Name: "client-1", ServiceName: "ghost"})
	var notFound *bencherrors.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestDeployClientsCollectsPerEntityOutcomes(t *testing.T) {
	executor := newFakeExecutor()
	m, _ := newTestManager(t, executor)
	executor.setFile(m.WorkingDir()+"/svc.hostname", "node-1")
	_, err := m.DeployService(ServiceSpec{Name: "svc", ContainerImage: "redis:latest", Port: 6379})
	require.NoError(t, err)

	outcomes := m.DeployClients(ClientSpec{ServiceName: "svc", Command: "bench"}, "load", 3)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "load-1", outcomes[0].Name)
	assert.NoError(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err)
	assert.NoError(t, outcomes[2].Err)
	assert.Len(t, m.LoadClients(), 3)
}

func TestWaitForRunningBounded(t *testing.T) {
	executor := newFakeExecutor()
	executor.statuses["job-x"] = []JobState{StatePending}
	m, _ := newTestManager(t, executor)

	start := time.Now()
	ok := m.WaitForRunning("job-x", 20*time.Millisecond)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 20*time.Millisecond+10*m.config.PollInterval)
}

func TestWaitForRunningStopsOnTerminalState(t *testing.T) {
	executor := newFakeExecutor()
	executor.statuses["job-x"] = []JobState{StatePending, StateFailed}
	m, _ := newTestManager(t, executor)
	assert.False(t, m.WaitForRunning("job-x", time.Second))
}

func TestWaitForRunningSucceeds(t *testing.T) {
	executor := newFakeExecutor()
	executor.statuses["job-x"] = []JobState{StatePending, StatePending, StateRunning}
	m, _ := newTestManager(t, executor)
	assert.True(t, m.WaitForRunning("job-x", time.Second))
}

func TestWaitForEndpointReadsMarker(t *testing.T) {
	executor := newFakeExecutor()
	m, _ := newTestManager(t, executor)
	executor.setFile(m.WorkingDir()+"/svc.hostname", "node-3\n")

	hostname, ok := m.WaitForEndpoint("svc", 50*time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, "node-3", hostname)
}

func TestWaitForEndpointTimesOut(t *testing.T) {
	m, _ := newTestManager(t, newFakeExecutor())
	_, ok := m.WaitForEndpoint("svc", 10*time.Millisecond)
	assert.False(t, ok)
}

func TestStatusUnknownJob(t *testing.T) {
	m, _ := newTestManager(t, newFakeExecutor())
	state, known := m.Status("nope")
	assert.Equal(t, StateUnknown, state)
	assert.False(t, known)
}

func TestStopCampaignCancelsEverything(t *testing.T) {
	executor := newFakeExecutor()
	m, _ := newTestManager(t, executor)
	executor.setFile(m.WorkingDir()+"/svc.hostname", "node-1")
	_, err := m.DeployService(ServiceSpec{Name: "svc", ContainerImage: "redis:latest"})
	require.NoError(t, err)
	outcomes := m.DeployClients(ClientSpec{ServiceName: "svc", Command: "bench"}, "client", 2)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
	}

	result, err := m.StopCampaign()
	require.NoError(t, err)
	assert.Len(t, result.Stopped, 3)
	assert.Empty(t, result.Errors)
	assert.Len(t, executor.cancelled, 3)
}

func TestCampaignStatusSnapshot(t *testing.T) {
	executor := newFakeExecutor()
	m, _ := newTestManager(t, executor)
	executor.setFile(m.WorkingDir()+"/svc.hostname", "node-1")
	_, err := m.DeployService(ServiceSpec{Name: "svc", ContainerImage: "redis:latest"})
	require.NoError(t, err)
	outcomes := m.DeployClients(ClientSpec{ServiceName: "svc", Command: "bench"}, "client", 1)
	require.NoError(t, outcomes[0].Err)
	executor.statuses["job-2"] = []JobState{StateCompleted}
	executor.statusCalls["job-2"] = 0

	status := m.CampaignStatus()
	require.Len(t, status.Services, 1)
	require.Len(t, status.Clients, 1)
	assert.Equal(t, StateRunning, status.Services[0].State)
	assert.Equal(t, StateCompleted, status.Clients[0].State)
	assert.True(t, status.Complete())
}

func TestCampaignStatusNotCompleteWithoutClients(t *testing.T) {
	status := &CampaignStatus{}
	assert.False(t, status.Complete())
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []JobState{StateCompleted, StateFailed, StateCancelled, StateTimeout} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []JobState{StateSubmitted, StatePending, StateRunning, StateUnknown} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestEntityAttrsRoundTripThroughStore(t *testing.T) {
	store := storage.NewInMemoryStore()
	now := time.Now().UTC().Truncate(time.Millisecond)
	service := &ServiceDeployment{
		Name:           "svc",
		ContainerImage: "postgres:16",
		JobID:          "4711",
		Hostname:       "node-9",
		Port:           5432,
		WorkingDir:     "~/benchmark_c1",
		SubmitTime:     &now,
	}
	attrs, err := service.Attrs()
	require.NoError(t, err)
	require.True(t, store.Save("c1", storage.KindService, service.Name, attrs))

	stored, ok := store.Load("c1", storage.KindService, "svc")
	require.True(t, ok)
	restored, err := ServiceFromAttrs(stored)
	require.NoError(t, err)
	assert.True(t, service.Equal(restored))
	assert.Nil(t, restored.StartTime)
}
