// Package benchctl glues configuration, storage and the domain packages
// together for the command-line client. Commands stay thin; everything they
// do goes through an App.
package benchctl

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/aggregation"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/analysis"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/bencherrors"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/util"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/configuration"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/deployment"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/storage"
)

// App owns the entity store and configuration shared by every command.
// Construct with New and release with the returned cleanup function.
type App struct {
	Config configuration.BenchctlConfig
	store  storage.EntityStore

	// newExecutor builds the remote channel for a target; tests swap it for
	// a fake.
	newExecutor func(target string) (deployment.RemoteExecutor, error)
}

// New opens the configured store backend and returns the app plus a cleanup
// function that releases it.
func New(config configuration.BenchctlConfig) (*App, func(), error) {
	store, cleanup, err := openStore(config.Storage)
	if err != nil {
		return nil, nil, err
	}
	app := &App{
		Config: config,
		store:  store,
		newExecutor: func(target string) (deployment.RemoteExecutor, error) {
			return deployment.NewSshExecutor(target)
		},
	}
	return app, cleanup, nil
}

func openStore(config configuration.StorageConfig) (storage.EntityStore, func(), error) {
	switch config.Backend {
	case "", "sqlite":
		path := config.Sqlite.DatabasePath
		if path == "" {
			path = "benchctl.db"
		}
		store, cleanup, err := storage.NewSqliteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return store, cleanup, nil
	case "redis":
		db := redis.NewClient(&redis.Options{
			Addr: config.Redis.Addr,
			DB:   config.Redis.DB,
		})
		return storage.NewRedisStore(db), func() { _ = db.Close() }, nil
	case "memory":
		return storage.NewInMemoryStore(), func() {}, nil
	}
	return nil, nil, errors.WithStack(&bencherrors.ErrInvalidArgument{
		Name:    "storage.backend",
		Value:   config.Backend,
		Message: `must be one of "sqlite", "redis" or "memory"`,
	})
}

// NewCampaignID mints a fresh campaign id.
func (a *App) NewCampaignID() string {
	return util.NewULID()
}

// Manager builds the deployment manager for one campaign. target overrides
// the configured SSH target when non-empty.
func (a *App) Manager(campaignID, target string) (*deployment.Manager, error) {
	if target == "" {
		target = a.Config.Target
	}
	executor, err := a.newExecutor(target)
	if err != nil {
		return nil, err
	}
	return deployment.NewManager(
		campaignID,
		a.store,
		executor,
		nil,
		a.Config.Deployment,
		a.Config.ResultsDir,
	)
}

// DeployReport is the outcome of deploying one recipe.
type DeployReport struct {
	CampaignID string
	Service    *deployment.ServiceDeployment
	Clients    []deployment.DeployOutcome
}

// Deploy runs one recipe end to end: service first, then every client.
// A service failure aborts before any client is submitted.
func (a *App) Deploy(campaignID string, recipe *Recipe) (*DeployReport, error) {
	manager, err := a.Manager(campaignID, recipe.Target)
	if err != nil {
		return nil, err
	}
	service, err := manager.DeployService(recipe.ServiceSpec())
	if err != nil {
		return nil, err
	}
	report := &DeployReport{CampaignID: campaignID, Service: service}
	if recipe.Clients.Count > 0 {
		report.Clients = manager.DeployClients(recipe.ClientSpec(), recipe.ClientPrefix(), recipe.Clients.Count)
	}
	return report, nil
}

// Status returns the live status snapshot for a campaign.
func (a *App) Status(campaignID, target string) (*deployment.CampaignStatus, error) {
	manager, err := a.Manager(campaignID, target)
	if err != nil {
		return nil, err
	}
	return manager.CampaignStatus(), nil
}

// Stop cancels every job of a campaign, reporting partial outcomes.
func (a *App) Stop(campaignID, target string) (*deployment.StopResult, error) {
	manager, err := a.Manager(campaignID, target)
	if err != nil {
		return nil, err
	}
	return manager.StopCampaign()
}

// TailLogs fetches the last n lines of every known job log.
func (a *App) TailLogs(campaignID, target string, n int) (map[string]string, error) {
	manager, err := a.Manager(campaignID, target)
	if err != nil {
		return nil, err
	}
	return manager.TailLogs(n), nil
}

// Collect downloads a campaign's raw records and logs into the results
// directory and merges the per-client record files.
func (a *App) Collect(campaignID, target string) error {
	manager, err := a.Manager(campaignID, target)
	if err != nil {
		return err
	}
	return deployment.NewCollector(manager).Collect()
}

// Aggregate turns a campaign's collected records into its summary artifact.
func (a *App) Aggregate(campaignID string) (*aggregation.Summary, error) {
	return aggregation.AggregateCampaign(a.Config.ResultsDir, campaignID)
}

// ListCampaigns returns every campaign id known to the store.
func (a *App) ListCampaigns() []string {
	ids := a.store.ListCampaigns()
	sort.Strings(ids)
	return ids
}

// ReadSummary loads the summary artifact of a campaign, aggregating it first
// if the artifact does not exist yet.
func (a *App) ReadSummary(campaignID string) (*aggregation.Summary, error) {
	path := aggregation.SummaryPath(a.Config.ResultsDir, campaignID)
	summary, err := aggregation.ReadSummary(path)
	if err == nil {
		return summary, nil
	}
	if !os.IsNotExist(errors.Cause(err)) {
		return nil, err
	}
	log.Infof("no summary artifact for campaign %s yet, aggregating", campaignID)
	return a.Aggregate(campaignID)
}

// SweepPointFromSummary projects a summary onto a sweep point. The swept
// value is the campaign's concurrency; a summary with no recorded
// concurrency cannot take part in a sweep.
func SweepPointFromSummary(s *aggregation.Summary) (analysis.SweepPoint, error) {
	if s.Parametric == nil || s.Parametric.ConcurrentRequests <= 0 {
		return analysis.SweepPoint{}, errors.WithStack(&bencherrors.ErrInvalidArgument{
			Name:    "summary",
			Value:   s.CampaignID,
			Message: "summary records no concurrency; cannot place it on a sweep",
		})
	}
	return analysis.SweepPoint{
		X:           float64(s.Parametric.ConcurrentRequests),
		Throughput:  s.RequestsPerSecond,
		P99Latency:  s.Latency.P99,
		P95Latency:  s.Latency.P95,
		AvgLatency:  s.Latency.Avg,
		SuccessRate: s.SuccessRate,
	}, nil
}

// AnalyzeSweep runs saturation analysis over the summaries of the given
// campaigns. sloThreshold <= 0 disables the SLO check.
func (a *App) AnalyzeSweep(campaignIDs []string, sloThreshold float64) (*analysis.SaturationReport, error) {
	points := make([]analysis.SweepPoint, 0, len(campaignIDs))
	for _, id := range campaignIDs {
		summary, err := a.ReadSummary(id)
		if err != nil {
			return nil, errors.WithMessagef(err, "campaign %s", id)
		}
		point, err := SweepPointFromSummary(summary)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return analysis.AnalyzeSaturation(points, sloThreshold)
}

// Classify attributes the dominant bottleneck of a campaign.
// telemetryPath may be empty; when set it names a JSON file with GPU and job
// accounting context.
func (a *App) Classify(campaignID, telemetryPath string) (*analysis.BottleneckVerdict, error) {
	summary, err := a.ReadSummary(campaignID)
	if err != nil {
		return nil, err
	}
	var telemetry *analysis.Telemetry
	if telemetryPath != "" {
		telemetry, err = readTelemetry(telemetryPath)
		if err != nil {
			return nil, err
		}
	}
	return analysis.ClassifyBottleneck(summary, telemetry), nil
}

func readTelemetry(path string) (*analysis.Telemetry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	telemetry := &analysis.Telemetry{}
	if err := json.Unmarshal(data, telemetry); err != nil {
		return nil, errors.Wrapf(err, "cannot parse telemetry %s", path)
	}
	return telemetry, nil
}

// Compare evaluates a campaign against a baseline campaign using the
// configured regression thresholds.
func (a *App) Compare(baselineID, currentID string) (*analysis.RegressionVerdict, error) {
	baseline, err := a.ReadSummary(baselineID)
	if err != nil {
		return nil, errors.WithMessagef(err, "baseline campaign %s", baselineID)
	}
	current, err := a.ReadSummary(currentID)
	if err != nil {
		return nil, errors.WithMessagef(err, "current campaign %s", currentID)
	}
	thresholds := analysis.RegressionThresholds{
		LatencyPct:     a.Config.Regression.LatencyPct,
		ThroughputPct:  a.Config.Regression.ThroughputPct,
		SuccessRatePct: a.Config.Regression.SuccessRatePct,
	}
	return analysis.Compare(baseline, current, thresholds), nil
}
