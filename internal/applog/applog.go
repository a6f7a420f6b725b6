// Package applog configures the structured logger shared by the mxautosave
// supervisor, poll engine, and RPC client. It wraps log/slog with an
// optional syslog mirror, grounded on the -l/-L debug flags of §4.J.
package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
)

// Level mirrors the MX debug-level tiers of §4.J: 0 is quiet (warnings and
// errors), 1 turns on informational messages, 2 adds debug tracing.
// config sets it from -d (1 or >= 2) and forces LevelTrace when -L is
// given; -l only turns on syslog mirroring.
type Level int

const (
	LevelQuiet Level = iota
	LevelInfo
	LevelTrace
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelTrace:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// Options configure New.
type Options struct {
	Level Level
	// Component names the process for log_syslog entries, e.g. "mxautosave".
	Component string
	// Syslog mirrors records to the local syslog daemon in addition to
	// stderr, when true. Best effort: a syslog dial failure is logged to
	// stderr and does not prevent startup.
	Syslog bool
	// Writer overrides the stderr destination (tests use this).
	Writer io.Writer
}

// New builds the process-wide *slog.Logger per Options.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level.slogLevel()}),
	}

	if opts.Syslog {
		if sw, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, opts.Component); err == nil {
			handlers = append(handlers, slog.NewTextHandler(sw, &slog.HandlerOptions{Level: opts.Level.slogLevel()}))
		} else {
			fmt.Fprintf(w, "applog: syslog unavailable, logging to stderr only: %v\n", err)
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &fanout{handlers: handlers}
	}

	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With(slog.String("component", opts.Component))
	}
	return logger
}

// fanout dispatches every record to all of its handlers, used when both a
// stderr handler and a syslog handler are active.
type fanout struct {
	handlers []slog.Handler
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanout{handlers: next}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanout{handlers: next}
}
