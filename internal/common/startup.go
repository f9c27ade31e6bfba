package common

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/logging"
)

// BindCommandlineArguments merges parsed command line flags into viper so
// that flags take precedence over file configuration.
func BindCommandlineArguments(flags *pflag.FlagSet) {
	if err := viper.BindPFlags(flags); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

// LoadConfig reads application configuration from config.yaml under path and
// unmarshals it into config. Configuration errors are fatal: an orchestrator
// started with a bad config should not limp along.
func LoadConfig(config interface{}, path string) {
	viper.SetConfigName("config")
	viper.AddConfigPath(path)
	if err := viper.ReadInConfig(); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
	if err := viper.Unmarshal(config); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// ConfigureCommandLineLogging strips timestamps and level prefixes; command
// output goes to stdout, log lines to stderr.
func ConfigureCommandLineLogging() {
	log.SetFormatter(&logging.CommandLineFormatter{})
	log.SetOutput(os.Stderr)
}
