package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect campaignId",
		Short: "Downloads and merges a campaign's raw results",
		Long: `Downloads the per-client record files and job logs from the cluster into
the local results directory and merges the records into one file per
campaign. At most one collection per campaign runs at a time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			target, _ := cmd.Flags().GetString("target")
			if err := app.Collect(args[0], target); err != nil {
				return err
			}
			log.Infof("collected campaign %s; run `benchctl report %s` to aggregate", args[0], args[0])
			return nil
		},
	}
	return cmd
}
