package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the logger of one binary. Production writes JSON lines, other
// environments a console format.
func New(environment, level, component string) zerolog.Logger {
	zerolog.SetGlobalLevel(Level(environment, level))
	return NewWithWriter(os.Stdout, environment, component)
}

func NewWithWriter(out io.Writer, environment, component string) zerolog.Logger {
	if environment != "production" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).With().
		Timestamp().
		Str("env", environment).
		Str("component", component).
		Logger()
}

// Level resolves the configured level. Unknown or empty values fall back to debug
// outside production and info in production.
func Level(environment, level string) zerolog.Level {
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			return parsed
		}
	}
	if environment == "production" {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}
