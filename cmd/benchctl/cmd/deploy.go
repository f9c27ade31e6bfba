package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/benchctl"
)

func deployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy recipe.yaml",
		Short: "Deploys a benchmark campaign from a recipe",
		Long: `Deploys the recipe's service as a scheduler job, waits for it to become
reachable, then submits the load clients against it. Prints the campaign id
used by every other command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipe, err := benchctl.LoadRecipe(args[0])
			if err != nil {
				return err
			}
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			campaignID, _ := cmd.Flags().GetString("campaign")
			if campaignID == "" {
				campaignID = app.NewCampaignID()
			}

			report, err := app.Deploy(campaignID, recipe)
			if err != nil {
				return err
			}

			log.Infof("campaign %s", report.CampaignID)
			log.Infof("service %s submitted as job %s", report.Service.Name, report.Service.JobID)
			failed := 0
			for _, outcome := range report.Clients {
				if outcome.Err != nil {
					failed++
					log.Warnf("client %s failed: %v", outcome.Name, outcome.Err)
					continue
				}
				log.Infof("client %s submitted as job %s", outcome.Name, outcome.Client.JobID)
			}
			if failed > 0 {
				log.Warnf("%d of %d clients failed to deploy", failed, len(report.Clients))
			}
			cmd.Println(report.CampaignID)
			return nil
		},
	}
	cmd.Flags().String("campaign", "", "campaign id to deploy into (defaults to a fresh id)")
	return cmd
}
