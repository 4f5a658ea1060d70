// Package logging adapts log/slog to the es.Logger interface used across the module.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/getpup/pupsourcing/es"
)

// Slog implements es.Logger on top of a *slog.Logger.
type Slog struct {
	logger *slog.Logger
}

// New wraps logger. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

// Debug implements es.Logger.
func (l *Slog) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.logger.DebugContext(ctx, msg, args...)
}

// Info implements es.Logger.
func (l *Slog) Info(ctx context.Context, msg string, args ...interface{}) {
	l.logger.InfoContext(ctx, msg, args...)
}

// Error implements es.Logger.
func (l *Slog) Error(ctx context.Context, msg string, args ...interface{}) {
	l.logger.ErrorContext(ctx, msg, args...)
}

// With returns a logger that adds args to every record.
func (l *Slog) With(args ...interface{}) *Slog {
	return &Slog{logger: l.logger.With(args...)}
}

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// NewHandler builds a JSON or text handler writing to w at the given level.
func NewHandler(format string, level slog.Leveler, w io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "json", "":
		return slog.NewJSONHandler(w, opts), nil
	case "text":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q: expected json or text", format)
	}
}

var _ es.Logger = (*Slog)(nil)
