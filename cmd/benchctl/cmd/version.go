package cmd

import (
	"github.com/spf13/cobra"
)

// version is injected at build time via -ldflags.
var version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the benchctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("benchctl %s\n", version)
			return nil
		},
	}
}
