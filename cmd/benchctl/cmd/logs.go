package cmd

import (
	"sort"

	"github.com/spf13/cobra"
)

func logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs campaignId",
		Short: "Tails the job logs of a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := appFromFlags(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			target, _ := cmd.Flags().GetString("target")
			lines, _ := cmd.Flags().GetInt("lines")
			logs, err := app.TailLogs(args[0], target, lines)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(logs))
			for name := range logs {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				cmd.Printf("==> %s <==\n%s\n", name, logs[name])
			}
			return nil
		},
	}
	cmd.Flags().Int("lines", 20, "number of trailing lines per log")
	return cmd
}
