// Package logger provides structured logging for acclog.
// It wraps the standard log/slog package so every command logs with the same
// handler, level and field names (snake_case).
//
// Logs are written to stderr by default so stdout stays free for records and
// reports. Two formats are supported:
//   - text (default): slog's key=value console output
//   - json: one JSON object per line
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the default logger instance.
var Logger *slog.Logger

// Format selects the handler used by Logger.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	level            = new(slog.LevelVar)
	format           = FormatText
)

func init() {
	level.Set(slog.LevelWarn)
	rebuild()
}

func rebuild() {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		Logger = slog.New(slog.NewJSONHandler(out, opts))
		return
	}
	Logger = slog.New(slog.NewTextHandler(out, opts))
}

// SetLevel configures the logging level.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetFormat switches between text and json output.
func SetFormat(f Format) error {
	switch f {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q (must be text or json)", f)
	}
	mu.Lock()
	defer mu.Unlock()
	format = f
	rebuild()
	return nil
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to a level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (must be debug, info, warn, or error)", s)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// WithSource returns a logger tagged with a log source path.
func WithSource(path string) *slog.Logger {
	return Logger.With("source", path)
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Sources  int
	Lines    int
	Parsed   int
	Skipped  int
	Matched  int
	Duration time.Duration
	// ByKind counts skipped lines per parse error kind.
	ByKind map[string]int
}

// LogIngest logs the outcome of an ingestion run. Skipped lines raise the
// level to warn so they surface at the default level.
func LogIngest(stats IngestStats) {
	attrs := []any{
		slog.Int("sources", stats.Sources),
		slog.Int("lines", stats.Lines),
		slog.Int("parsed", stats.Parsed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("matched", stats.Matched),
		slog.Duration("duration", stats.Duration),
	}
	for kind, n := range stats.ByKind {
		attrs = append(attrs, slog.Int("skipped_"+kind, n))
	}
	if stats.Skipped > 0 {
		Logger.Warn("ingestion finished with skipped lines", attrs...)
		return
	}
	Logger.Info("ingestion finished", attrs...)
}

// LogSkippedLine logs a line that failed to parse.
func LogSkippedLine(source string, line int, kind string, offset int, err error) {
	Logger.Debug("skipped line",
		slog.String("source", source),
		slog.Int("line", line),
		slog.String("kind", kind),
		slog.Int("offset", offset),
		slog.String("error", err.Error()),
	)
}
