// Package logging constructs the service-wide structured logger.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds a zerolog logger writing JSON to stderr at the given level.
// Unknown level names fall back to info rather than failing boot over a
// cosmetic setting. The returned logger is also installed as zerolog's
// global logger so packages without an injected logger share the sink.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
