package utils

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the console-writer zerolog.Logger every command uses,
// mirroring the teacher's log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
// setup. verbose raises the level to debug; ALMA_DEBUG does the same for
// non-interactive/CI invocations where passing -v is inconvenient.
func NewLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose || os.Getenv("ALMA_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
