package deployment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "benchctl_deployment_"

var jobsSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metricsPrefix + "jobs_submitted_total",
		Help: "Number of jobs submitted to the scheduler, by entity kind.",
	},
	[]string{"kind"},
)

var jobsCancelled = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metricsPrefix + "jobs_cancelled_total",
		Help: "Number of jobs explicitly cancelled.",
	},
)

var statusPolls = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metricsPrefix + "status_polls_total",
		Help: "Number of scheduler status queries issued.",
	},
)

var deployFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metricsPrefix + "deploy_failures_total",
		Help: "Number of failed deploy attempts, by entity kind.",
	},
	[]string{"kind"},
)
