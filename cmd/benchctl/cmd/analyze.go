package cmd

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pkg/errors"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze campaignId...",
		Short: "Finds the saturation point across a sweep of campaigns",
		Long: `Treats the given campaigns as one concurrency sweep and locates the p99
latency knee, the throughput saturation point and, when --slo is given, the
highest concurrency still meeting the latency objective. At least two
campaigns are required; knee detection needs three.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			slo, _ := cmd.Flags().GetFloat64("slo")
			report, err := app.AnalyzeSweep(args, slo)
			if err != nil {
				return err
			}

			log.Info(report.Recommendation.Summary)
			for _, reason := range report.Recommendation.Reasoning {
				log.Infof("  %s", reason)
			}

			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return errors.WithStack(err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
	cmd.Flags().Float64("slo", 0, "p99 latency objective in seconds (0 disables the SLO check)")
	return cmd
}
