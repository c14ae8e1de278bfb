// Package logger configures the process-wide zerolog logger. Core
// engine packages return errors and never log; daemon surfaces take a
// component logger from here.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var root zerolog.Logger

// Initialize sets up the global logger. Level is one of debug, info,
// warn, error; anything else falls back to info.
func Initialize(level string, console bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if console {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	}
	root = zerolog.New(out).With().Timestamp().Logger()

	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = root
}

// Get returns the root logger.
func Get() *zerolog.Logger { return &root }

// ForComponent returns a logger tagged with a component field.
func ForComponent(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}
