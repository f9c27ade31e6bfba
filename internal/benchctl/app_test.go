package benchctl

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/aggregation"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/analysis"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/configuration"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/deployment"
)

// stubExecutor answers every remote call successfully: jobs run immediately
// and hostname markers resolve to node-1.
type stubExecutor struct {
	submitted []string
	cancelled []string
}

func (e *stubExecutor) Execute(command, cwd string) (deployment.CommandResult, error) {
	if strings.Contains(command, ".hostname") {
		return deployment.CommandResult{Stdout: "node-1"}, nil
	}
	return deployment.CommandResult{}, nil
}

func (e *stubExecutor) Upload(localPath, remotePath string) error { return nil }

func (e *stubExecutor) Download(remotePath, localPath string) error { return nil }

func (e *stubExecutor) SubmitJob(scriptPath string) (string, error) {
	e.submitted = append(e.submitted, scriptPath)
	return fmt.Sprintf("%d", 1000+len(e.submitted)), nil
}

func (e *stubExecutor) JobStatus(jobID string) (deployment.JobState, bool, error) {
	return deployment.StateRunning, true, nil
}

func (e *stubExecutor) CancelJob(jobID string) error {
	e.cancelled = append(e.cancelled, jobID)
	return nil
}

func testAppConfig(t *testing.T) configuration.BenchctlConfig {
	t.Helper()
	config := configuration.BenchctlConfig{
		Target:     "cluster",
		ResultsDir: t.TempDir(),
		Storage:    configuration.StorageConfig{Backend: "memory"},
		Deployment: configuration.DefaultDeploymentConfig(),
	}
	config.Deployment.PollInterval = 0
	return config
}

func newTestApp(t *testing.T) (*App, *stubExecutor) {
	t.Helper()
	app, cleanup, err := New(testAppConfig(t))
	require.NoError(t, err)
	t.Cleanup(cleanup)
	executor := &stubExecutor{}
	app.newExecutor = func(target string) (deployment.RemoteExecutor, error) {
		return executor, nil
	}
	return app, executor
}

func TestNewRejectsUnknownStorageBackend(t *testing.T) {
	config := testAppConfig(t)
	config.Storage.Backend = "etcd"
	_, _, err := New(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestNewCampaignIDIsFreshAndLowercase(t *testing.T) {
	app, _ := newTestApp(t)
	a, b := app.NewCampaignID(), app.NewCampaignID()
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestDeployRecipeSubmitsServiceAndClients(t *testing.T) {
	app, executor := newTestApp(t)
	wait := false
	recipe := &Recipe{
		Service: RecipeService{
			Name:        "redis-cache",
			Image:       "docker://redis:7",
			ServiceType: "redis",
			Port:        6379,
			Wait:        &wait,
		},
		Clients: RecipeClients{Count: 2, Command: "python3 bench_client.py"},
	}
	require.NoError(t, recipe.Validate())

	report, err := app.Deploy("c1", recipe)
	require.NoError(t, err)
	assert.Equal(t, "c1", report.CampaignID)
	assert.Equal(t, "redis-cache", report.Service.Name)
	require.Len(t, report.Clients, 2)
	for _, outcome := range report.Clients {
		assert.NoError(t, outcome.Err)
	}
	// one service script plus two client scripts
	assert.Len(t, executor.submitted, 3)

	status, err := app.Status("c1", "")
	require.NoError(t, err)
	assert.Len(t, status.Services, 1)
	assert.Len(t, status.Clients, 2)

	assert.Equal(t, []string{"c1"}, app.ListCampaigns())
}

func TestStopCancelsDeployedJobs(t *testing.T) {
	app, executor := newTestApp(t)
	wait := false
	recipe := &Recipe{
		Service: RecipeService{Name: "svc", Image: "img", Wait: &wait},
		Clients: RecipeClients{Count: 1, Command: "run"},
	}
	_, err := app.Deploy("c1", recipe)
	require.NoError(t, err)

	result, err := app.Stop("c1", "")
	require.NoError(t, err)
	assert.Len(t, result.Stopped, 2)
	assert.Len(t, executor.cancelled, 2)
}

func sweepSummary(campaignID string, concurrency int, throughput, p99 float64) *aggregation.Summary {
	return &aggregation.Summary{
		CampaignID:        campaignID,
		TotalRequests:     100,
		SuccessRate:       100,
		RequestsPerSecond: throughput,
		Latency:           aggregation.LatencyStats{Avg: p99 / 2, P95: p99 * 0.9, P99: p99},
		Parametric:        &aggregation.Parametric{ConcurrentRequests: concurrency},
	}
}

func TestSweepPointFromSummary(t *testing.T) {
	point, err := SweepPointFromSummary(sweepSummary("c1", 8, 45, 1.2))
	require.NoError(t, err)
	assert.Equal(t, 8.0, point.X)
	assert.Equal(t, 45.0, point.Throughput)
	assert.Equal(t, 1.2, point.P99Latency)
}

func TestSweepPointRequiresConcurrency(t *testing.T) {
	_, err := SweepPointFromSummary(&aggregation.Summary{CampaignID: "c1"})
	require.Error(t, err)
}

func TestAnalyzeSweepOverStoredSummaries(t *testing.T) {
	app, _ := newTestApp(t)

	concurrency := []int{1, 2, 4, 8, 16, 32}
	throughput := []float64{10, 20, 38, 45, 47, 48}
	p99 := []float64{0.2, 0.25, 0.5, 1.4, 3.0, 6.5}
	ids := make([]string, len(concurrency))
	for i := range concurrency {
		id := fmt.Sprintf("sweep-%d", concurrency[i])
		ids[i] = id
		_, err := aggregation.WriteSummary(app.Config.ResultsDir, id,
			sweepSummary(id, concurrency[i], throughput[i], p99[i]))
		require.NoError(t, err)
	}

	report, err := app.AnalyzeSweep(ids, 1.0)
	require.NoError(t, err)
	require.NotNil(t, report.Slo)
	assert.True(t, report.Slo.Satisfiable)
	assert.Equal(t, 4.0, report.Slo.MaxX)
	assert.NotEmpty(t, report.Recommendation.Summary)
}

func TestClassifyFromStoredSummary(t *testing.T) {
	app, _ := newTestApp(t)
	summary := sweepSummary("c1", 4, 45, 0.5)
	summary.SuccessfulRequests = 100
	summary.Latency = aggregation.LatencyStats{Avg: 0.3, Max: 0.6, P99: 0.5}
	_, err := aggregation.WriteSummary(app.Config.ResultsDir, "c1", summary)
	require.NoError(t, err)

	verdict, err := app.Classify("c1", "")
	require.NoError(t, err)
	assert.Equal(t, analysis.CategoryHealthy, verdict.Classification)
}

func TestCompareUsesConfiguredThresholds(t *testing.T) {
	app, _ := newTestApp(t)
	app.Config.Regression.ThroughputPct = 20

	baseline := sweepSummary("base", 4, 100, 0.5)
	current := sweepSummary("curr", 4, 85, 0.5)
	_, err := aggregation.WriteSummary(app.Config.ResultsDir, "base", baseline)
	require.NoError(t, err)
	_, err = aggregation.WriteSummary(app.Config.ResultsDir, "curr", current)
	require.NoError(t, err)

	// 15% throughput drop is inside the 20% budget.
	verdict, err := app.Compare("base", "curr")
	require.NoError(t, err)
	assert.Equal(t, analysis.VerdictPass, verdict.Verdict)
}

func TestReadSummaryAggregatesWhenArtifactMissing(t *testing.T) {
	app, _ := newTestApp(t)

	summary, err := app.ReadSummary("ghost")
	require.NoError(t, err)
	assert.True(t, summary.NoData)
	assert.Equal(t, "ghost", summary.CampaignID)
}
