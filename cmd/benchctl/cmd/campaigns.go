package cmd

import (
	"github.com/spf13/cobra"
)

func campaignsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "Lists every campaign known to the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, id := range app.ListCampaigns() {
				cmd.Println(id)
			}
			return nil
		},
	}
	return cmd
}
