package logging

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// CommandLineFormatter prints only the log message, for CLI-facing output
// where timestamps and level prefixes are noise.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s\n", entry.Message)), nil
}
