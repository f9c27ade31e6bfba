package configuration

import "time"

type BenchctlConfig struct {
	// SSH alias or hostname of the cluster login node.
	Target string
	// Local directory that collected artifacts and summaries are written to.
	ResultsDir string

	Storage    StorageConfig
	Deployment DeploymentConfig
	Regression RegressionConfig
}

type StorageConfig struct {
	// One of "sqlite", "redis" or "memory".
	Backend string
	Sqlite  SqliteConfig
	Redis   RedisConfig
}

type SqliteConfig struct {
	DatabasePath string
}

type RedisConfig struct {
	Addr string
	DB   int
}

type DeploymentConfig struct {
	// Remote working directory pattern; %s is replaced with the campaign id.
	WorkingDirPattern string

	// Fixed interval between job status polls.
	PollInterval time.Duration
	// Maximum wall-clock wait for a submitted job to reach RUNNING.
	RunningTimeout time.Duration
	// Maximum wall-clock wait for the endpoint marker to appear.
	EndpointTimeout time.Duration
	// Maximum wall-clock wait for a service health probe to succeed.
	ReadyTimeout time.Duration

	// Backoff policy for the endpoint marker poll.
	EndpointBackoffBase time.Duration
	EndpointBackoffCap  time.Duration

	// Bounded retry budget for transient executor failures.
	ConnectivityRetries uint
	ConnectivityDelay   time.Duration
}

type RegressionConfig struct {
	LatencyPct     float64
	ThroughputPct  float64
	SuccessRatePct float64
}

func DefaultDeploymentConfig() DeploymentConfig {
	return DeploymentConfig{
		WorkingDirPattern:   "~/benchmark_%s",
		PollInterval:        5 * time.Second,
		RunningTimeout:      5 * time.Minute,
		EndpointTimeout:     2 * time.Minute,
		ReadyTimeout:        5 * time.Minute,
		EndpointBackoffBase: 1 * time.Second,
		EndpointBackoffCap:  10 * time.Second,
		ConnectivityRetries: 3,
		ConnectivityDelay:   2 * time.Second,
	}
}
