package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger from the environment.
//
// MEETING_LOG_LEVEL selects the level: debug, info, warn, error (default: info).
// MEETING_LOG_FORMAT selects "json" for CloudWatch-friendly output or "console"
// (default) for local development.
func Init() {
	Configure(os.Stderr, os.Getenv("MEETING_LOG_LEVEL"), os.Getenv("MEETING_LOG_FORMAT"))
}

// Configure is Init with explicit inputs. Tests use it to capture output.
func Configure(w io.Writer, level, format string) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}

	// zerolog.Ctx falls back to this when a context carries no logger.
	zerolog.DefaultContextLogger = &log.Logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
