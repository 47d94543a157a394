// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logger fields
const (
	PACKAGE = "pkg"
	EVENT   = "event"
	USER    = "user_id"
	ORDER   = "order_id"
)

// Setup installs the global logger. Development gets a human readable
// console writer, everything else gets JSON lines on stdout.
func Setup(env string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	switch strings.ToLower(env) {
	case "prod", "production":
	default:
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// NewPackageLogger returns a child of the global logger tagged with pkg=name.
func NewPackageLogger(name string) zerolog.Logger {
	return log.With().Str(PACKAGE, name).Logger()
}
