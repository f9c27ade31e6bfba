package main

import (
	"os"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/cmd/benchctl/cmd"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common"
)

func main() {
	common.ConfigureCommandLineLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
