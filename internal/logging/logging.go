// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// Pretty selects the human-readable console writer instead of JSON lines.
	Pretty bool
	// File, when set, receives JSON lines through a rotating writer in
	// addition to stderr.
	File string
}

// Setup replaces log.Logger according to opts. The returned closer flushes
// the rotating file, if any.
func Setup(opts Options) io.Closer {
	var console io.Writer = os.Stderr
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if path := strings.TrimSpace(opts.File); path != "" {
		rotating := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
		}
		out = zerolog.MultiLevelWriter(console, rotating)
		closer = rotating
	}

	log.Logger = New(out, opts.Level)
	return closer
}

// New builds a logger writing to w at the named level.
func New(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to zerolog, falling back to info.
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
