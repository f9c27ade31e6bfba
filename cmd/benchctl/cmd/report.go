package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/aggregation"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report campaignId",
		Short: "Aggregates a campaign's records into its summary artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := app.Aggregate(args[0])
			if err != nil {
				return err
			}
			if summary.NoData {
				log.Warnf("campaign %s produced no usable records", args[0])
			} else {
				log.Infof("%d requests, %.1f%% success, %.2f req/s, p99 %.3fs",
					summary.TotalRequests, summary.SuccessRate,
					summary.RequestsPerSecond, summary.Latency.P99)
			}
			cmd.Println(aggregation.SummaryPath(app.Config.ResultsDir, args[0]))
			return nil
		},
	}
	return cmd
}
