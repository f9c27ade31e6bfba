package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/deployment"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status campaignId",
		Short: "Shows the live job states of a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			target, _ := cmd.Flags().GetString("target")
			status, err := app.Status(args[0], target)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tNAME\tJOB\tSTATE\tHOSTNAME")
			printEntityRows(w, "service", status.Services)
			printEntityRows(w, "client", status.Clients)
			if err := w.Flush(); err != nil {
				return err
			}
			if status.Complete() {
				cmd.Println("all clients finished; run `benchctl collect` to fetch results")
			}
			return nil
		},
	}
	return cmd
}

func printEntityRows(w *tabwriter.Writer, kind string, rows []deployment.EntityStatus) {
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", kind, row.Name, row.JobID, row.State, row.Hostname)
	}
}
