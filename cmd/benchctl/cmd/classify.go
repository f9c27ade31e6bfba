package cmd

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pkg/errors"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify campaignId",
		Short: "Attributes the dominant bottleneck of a campaign",
		Long: `Scores the campaign's aggregated metrics, optionally together with GPU and
job-accounting telemetry, against a fixed rule set and reports the most
likely bottleneck with supporting evidence and recommendations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			telemetryPath, _ := cmd.Flags().GetString("telemetry")
			verdict, err := app.Classify(args[0], telemetryPath)
			if err != nil {
				return err
			}

			log.Info(verdict.Summary)
			log.Infof("confidence: %s", verdict.Confidence)
			for _, recommendation := range verdict.Recommendations {
				log.Infof("  - %s", recommendation)
			}

			data, err := json.MarshalIndent(verdict, "", "  ")
			if err != nil {
				return errors.WithStack(err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
	cmd.Flags().String("telemetry", "", "JSON file with GPU and job telemetry for the run")
	return cmd
}
