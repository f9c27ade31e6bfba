package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func stopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop campaignId",
		Short: "Cancels every job of a campaign",
		Long: `Cancels the service and all client jobs of a campaign. Cancellation is
attempted for every job independently; failures are reported per job and do
not stop the remaining cancellations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			target, _ := cmd.Flags().GetString("target")
			result, err := app.Stop(args[0], target)
			if result != nil {
				for _, job := range result.Stopped {
					log.Infof("cancelled %s %s (job %s)", job.Kind, job.Name, job.JobID)
				}
				for _, msg := range result.Errors {
					log.Warn(msg)
				}
			}
			return err
		},
	}
	return cmd
}
