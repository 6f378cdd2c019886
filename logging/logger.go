package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger defines the minimal logging interface for auditmesh. Components
// receive a Logger by injection; nothing in the module logs through a
// package-level global.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NoOpLogger discards all log messages. Useful for testing or when logging
// is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// ParseLevel maps a configuration string (debug, info, warn, error) onto the
// matching slog level. Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// AuditLoggerConfig configures construction of an AuditLogger.
type AuditLoggerConfig struct {
	Level     slog.Level
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultAuditLoggerConfig returns a baseline JSON info level configuration.
func DefaultAuditLoggerConfig() *AuditLoggerConfig {
	return &AuditLoggerConfig{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// AuditLogger wraps slog adding contextual cloning helpers and domain
// convenience methods. It is cheap to copy via the With* methods.
type AuditLogger struct {
	logger     *slog.Logger
	component  string
	workflowID string
}

// NewAuditLogger builds an AuditLogger from a config (or defaults if nil).
func NewAuditLogger(cfg *AuditLoggerConfig) *AuditLogger {
	if cfg == nil {
		cfg = DefaultAuditLoggerConfig()
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &AuditLogger{logger: slog.New(handler), component: cfg.Component}
}

// WithComponent sets the logical component (bus, queue, agent, server, ...).
func (l *AuditLogger) WithComponent(c string) *AuditLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithWorkflow attaches a workflow identifier to every entry.
func (l *AuditLogger) WithWorkflow(id string) *AuditLogger {
	nl := *l
	nl.workflowID = id
	return &nl
}

func (l *AuditLogger) attrs(extra []any) []any {
	args := make([]any, 0, len(extra)+4)
	if l.component != "" {
		args = append(args, "component", l.component)
	}
	if l.workflowID != "" {
		args = append(args, "workflow_id", l.workflowID)
	}
	return append(args, extra...)
}

// Debug logs at debug level.
func (l *AuditLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, l.attrs(args)...) }

// Info logs at info level.
func (l *AuditLogger) Info(msg string, args ...any) { l.logger.Info(msg, l.attrs(args)...) }

// Warn logs at warn level.
func (l *AuditLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, l.attrs(args)...) }

// Error logs at error level.
func (l *AuditLogger) Error(msg string, args ...any) { l.logger.Error(msg, l.attrs(args)...) }

// LogAgentRun records execution details for one agent invocation.
func (l *AuditLogger) LogAgentRun(agentID string, dur time.Duration, err error) {
	args := l.attrs([]any{"agent_id", agentID, "duration", dur, "success", err == nil})
	if err != nil {
		args = append(args, "error", err.Error())
		l.logger.LogAttrs(context.Background(), slog.LevelError, "agent run failed", toAttrs(args)...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "agent run completed", toAttrs(args)...)
}

// LogWorkflowRun records aggregate workflow metrics.
func (l *AuditLogger) LogWorkflowRun(pattern string, steps int, dur time.Duration, err error) {
	args := l.attrs([]any{"pattern", pattern, "step_count", steps, "duration", dur, "success", err == nil})
	if err != nil {
		args = append(args, "error", err.Error())
		l.logger.LogAttrs(context.Background(), slog.LevelError, "workflow failed", toAttrs(args)...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "workflow completed", toAttrs(args)...)
}

// LogTaskRetry records a scheduled retry for a failed task.
func (l *AuditLogger) LogTaskRetry(taskID string, attempt, budget int) {
	l.Warn("task retry scheduled", "task_id", taskID, "retry_count", attempt, "max_retries", budget)
}

func toAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
