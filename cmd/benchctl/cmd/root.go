package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/benchctl"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/configuration"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "benchctl",
		Short:         "benchctl runs benchmark campaigns against services on an HPC cluster.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String("config", ".", "directory containing config.yaml")
	cmd.PersistentFlags().String("target", "", "SSH alias or hostname of the cluster login node (overrides config)")

	cmd.AddCommand(
		deployCmd(),
		statusCmd(),
		stopCmd(),
		logsCmd(),
		collectCmd(),
		reportCmd(),
		analyzeCmd(),
		classifyCmd(),
		compareCmd(),
		campaignsCmd(),
		versionCmd(),
	)

	return cmd
}

// appFromFlags builds the shared App: defaults, overlaid with config.yaml
// from the --config directory when one exists, overlaid with flag overrides.
func appFromFlags(cmd *cobra.Command) (*benchctl.App, func(), error) {
	configDir, _ := cmd.Flags().GetString("config")

	config := configuration.BenchctlConfig{
		ResultsDir: "results",
		Deployment: configuration.DefaultDeploymentConfig(),
	}
	if _, err := os.Stat(filepath.Join(configDir, "config.yaml")); err == nil {
		common.BindCommandlineArguments(cmd.Flags())
		common.LoadConfig(&config, configDir)
	}
	if target, _ := cmd.Flags().GetString("target"); target != "" {
		config.Target = target
	}
	return benchctl.New(config)
}
