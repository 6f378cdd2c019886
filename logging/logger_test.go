package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("Warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func auditLoggerWithBuffer(level slog.Level) (*AuditLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultAuditLoggerConfig()
	cfg.Level = level
	cfg.Output = &buf
	return NewAuditLogger(cfg), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestAuditLogger_AttachesComponentAndWorkflow(t *testing.T) {
	logger, buf := auditLoggerWithBuffer(slog.LevelInfo)

	logger.WithComponent("queue").WithWorkflow("wf-42").Info("task enqueued", "task_id", "t-1")

	entry := decodeLine(t, buf)
	assert.Equal(t, "task enqueued", entry["msg"])
	assert.Equal(t, "queue", entry["component"])
	assert.Equal(t, "wf-42", entry["workflow_id"])
	assert.Equal(t, "t-1", entry["task_id"])
}

func TestAuditLogger_LevelFiltering(t *testing.T) {
	logger, buf := auditLoggerWithBuffer(slog.LevelWarn)

	logger.Info("suppressed")
	assert.Zero(t, buf.Len())

	logger.Warn("surfaced")
	entry := decodeLine(t, buf)
	assert.Equal(t, "surfaced", entry["msg"])
}

func TestAuditLogger_LogAgentRun(t *testing.T) {
	logger, buf := auditLoggerWithBuffer(slog.LevelInfo)

	logger.LogAgentRun("scanner-1", 25*time.Millisecond, nil)
	entry := decodeLine(t, buf)
	assert.Equal(t, "agent run completed", entry["msg"])
	assert.Equal(t, "scanner-1", entry["agent_id"])
	assert.Equal(t, true, entry["success"])

	buf.Reset()
	logger.LogAgentRun("scanner-1", 25*time.Millisecond, errors.New("source unreachable"))
	entry = decodeLine(t, buf)
	assert.Equal(t, "agent run failed", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "source unreachable", entry["error"])
}

func TestAuditLogger_SatisfiesLoggerInterface(t *testing.T) {
	var l Logger = NewAuditLogger(nil).WithComponent("server")
	assert.NotNil(t, l)
}
