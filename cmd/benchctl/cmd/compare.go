package cmd

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pkg/errors"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/analysis"
)

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare baselineCampaignId currentCampaignId",
		Short: "Compares two campaigns for performance regressions",
		Long: `Compares the current campaign's summary against a baseline. The command
exits non-zero when any tracked metric regressed beyond its threshold, so it
can gate CI pipelines.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			verdict, err := app.Compare(args[0], args[1])
			if err != nil {
				return err
			}

			for _, change := range verdict.Regressions {
				log.Warnf("regression: %s %s", change.Metric, change.Change)
			}
			for _, change := range verdict.Improvements {
				log.Infof("improvement: %s %s", change.Metric, change.Change)
			}

			data, err := json.MarshalIndent(verdict, "", "  ")
			if err != nil {
				return errors.WithStack(err)
			}
			cmd.Println(string(data))

			if verdict.Verdict == analysis.VerdictFail {
				return errors.Errorf("comparison failed: %d metric(s) regressed", len(verdict.Regressions))
			}
			log.Info("no regressions detected")
			return nil
		},
	}
	return cmd
}
