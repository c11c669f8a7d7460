// Package logging builds the process logger.
// Console output uses tint for humans or JSON for log shippers; when a log
// directory is configured every line is also written to a rotating file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the handler and destinations.
type Options struct {
	Format string // "text" | "json"
	Level  string // "debug" | "info" | "warn" | "error"
	Dir    string // empty disables the rotating file
	Out    io.Writer
}

// ParseLevel maps a level name to slog.Level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger and a closer for the rotating file (no-op when Dir is
// empty).
func New(opts Options) (*slog.Logger, io.Closer) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(opts.Level)

	var closer io.Closer = nopCloser{}
	var fileHandler slog.Handler
	if opts.Dir != "" {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "vocalis.log"),
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		closer = rotator
		fileHandler = slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level})
	}

	var console slog.Handler
	if opts.Format == "json" {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		console = tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(out),
		})
	}

	if fileHandler == nil {
		return slog.New(console), closer
	}
	return slog.New(slogmulti.Fanout(console, fileHandler)), closer
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
