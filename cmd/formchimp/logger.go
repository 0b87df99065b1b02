package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/goliatone/go-formchimp/core"
	"github.com/mattn/go-isatty"
)

// slogLogger exposes a slog logger through the service logger contract.
type slogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func newLogger(cfg Logging, out io.Writer) (*slogLogger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	format := cfg.Format
	if format == "" || (format == "console" && !isTerminal(out)) {
		format = "json"
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "console":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", cfg.Format)
	}
	return &slogLogger{logger: slog.New(handler), ctx: context.Background()}, nil
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log level: unsupported value %q", raw)
	}
}

func isTerminal(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (l *slogLogger) Trace(msg string, args ...any) {
	l.logger.Log(l.ctx, slog.LevelDebug-4, msg, args...)
}

func (l *slogLogger) Debug(msg string, args ...any) {
	l.logger.DebugContext(l.ctx, msg, args...)
}

func (l *slogLogger) Info(msg string, args ...any) {
	l.logger.InfoContext(l.ctx, msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...any) {
	l.logger.WarnContext(l.ctx, msg, args...)
}

func (l *slogLogger) Error(msg string, args ...any) {
	l.logger.ErrorContext(l.ctx, msg, args...)
}

// Fatal logs at error level. Commands return errors instead of exiting.
func (l *slogLogger) Fatal(msg string, args ...any) {
	l.logger.ErrorContext(l.ctx, msg, append(args, "fatal", true)...)
}

func (l *slogLogger) WithContext(ctx context.Context) core.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &slogLogger{logger: l.logger, ctx: ctx}
}

// loggerProvider hands out loggers tagged with the requesting component.
type loggerProvider struct {
	root *slogLogger
}

func (p loggerProvider) GetLogger(name string) core.Logger {
	return &slogLogger{logger: p.root.logger.With("component", name), ctx: p.root.ctx}
}

var (
	_ core.Logger         = (*slogLogger)(nil)
	_ core.LoggerProvider = loggerProvider{}
)

// logActivitySink receives activity entries the database could not take and
// writes them to the log instead.
type logActivitySink struct {
	logger core.Logger
}

func (s logActivitySink) Record(_ context.Context, entry core.ActivityEntry) error {
	s.logger.Warn("activity entry not persisted",
		"action", entry.Action,
		"status", string(entry.Status),
		"form_name", entry.FormName,
		"audience_id", entry.AudienceID,
		"message", entry.Message,
	)
	return nil
}

func (logActivitySink) List(context.Context, core.ActivityFilter) (core.ActivityPage, error) {
	return core.ActivityPage{}, nil
}

var _ core.ActivitySink = logActivitySink{}
