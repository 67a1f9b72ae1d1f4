// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level maps a -v count to a log level: 0 warn, 1 info, 2 debug, 3+ trace.
func Level(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// Setup sends human-readable logs to w. Colors are used only when w is a
// terminal.
func Setup(verbosity int, w io.Writer) {
	zerolog.SetGlobalLevel(Level(verbosity))

	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(w),
	}
	install(zerolog.New(console), verbosity)
}

// SetupFile appends JSON logs to the file at path, creating its directory.
// It is used while the terminal is owned by the interactive screen.
func SetupFile(verbosity int, path string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	zerolog.SetGlobalLevel(Level(verbosity))
	install(zerolog.New(f), verbosity)
	return f, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func install(l zerolog.Logger, verbosity int) {
	ctx := l.With().Timestamp()
	if verbosity >= 2 {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	log.Debug().Int("verbosity", verbosity).Msg("Logger initialized")
}

// DefaultLogPath returns $XDG_STATE_HOME/inview/inview.log, falling back to
// ~/.local/state.
func DefaultLogPath() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "inview.log"
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "inview", "inview.log")
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
