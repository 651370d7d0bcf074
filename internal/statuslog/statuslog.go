// Package statuslog implements the status/log sink the server and client
// engines report through. It wraps zerolog behind one small seam the
// rest of the module depends on, never zerolog directly.
package statuslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level is the severity of one status message.
type Level int

const (
	LevelLog Level = iota
	LevelError
)

// Sink is the minimal status-log collaborator the server and client
// engines require from their host.
type Sink interface {
	Log(text string, level Level)
}

// Logger adapts a zerolog.Logger to the Sink interface.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger writing human-readable console output to w
// (teacher idiom: a single process-wide logger built once at startup).
func New(w io.Writer, debug bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	zl := zerolog.New(console).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Log records one status message at the given level.
func (l *Logger) Log(text string, level Level) {
	switch level {
	case LevelError:
		l.zl.Error().Msg(text)
	default:
		l.zl.Info().Msg(text)
	}
}

// Zerolog exposes the underlying logger for components that want
// structured fields rather than the plain Sink interface.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// Nop is a Sink that discards everything, used by tests that do not care
// about status output.
type Nop struct{}

func (Nop) Log(string, Level) {}
