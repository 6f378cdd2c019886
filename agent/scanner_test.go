package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/auditmesh/bus"
	"github.com/hupe1980/auditmesh/cache"
	"github.com/hupe1980/auditmesh/core"
)

type countingReader struct {
	reads int
}

func (r *countingReader) Read(_ context.Context, source string) ([]Record, error) {
	r.reads++
	return []Record{{ID: source + "-1", Content: "reach me at jane.doe@example.com"}}, nil
}

func TestRiskScanner_DetectsAndClassifies(t *testing.T) {
	scanner := NewRiskScanner()

	result, err := scanner.Process(context.Background(), map[string]any{
		"sources": []string{"database", "file", "api"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result["scan_id"])
	assert.Equal(t, 7, result["items_scanned"])

	risks := result["risks"].([]map[string]any)
	require.NotEmpty(t, risks)

	byType := map[string]map[string]any{}
	for _, r := range risks {
		byType[r["type"].(string)] = r
	}
	require.Contains(t, byType, "email")
	require.Contains(t, byType, "ssn")
	require.Contains(t, byType, "api_key")

	// High-confidence detections are classified high severity.
	assert.Equal(t, "high", byType["email"]["severity"])
	assert.Equal(t, "high", byType["ssn"]["severity"])
	// Lower-confidence ones stay medium.
	assert.Equal(t, "medium", byType["phone"]["severity"])
}

func TestRiskScanner_DefaultsToAllSources(t *testing.T) {
	scanner := NewRiskScanner()

	result, err := scanner.Process(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"database", "file", "api"}, result["sources"])
}

func TestRiskScanner_UnknownSourceFails(t *testing.T) {
	scanner := NewRiskScanner()

	_, err := scanner.Process(context.Background(), map[string]any{
		"sources": []string{"mainframe"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mainframe")
}

func TestRiskScanner_ReportsToCoordinator(t *testing.T) {
	b := bus.New()
	var received []core.Message
	b.Subscribe("coordinator", func(msg core.Message) error {
		received = append(received, msg)
		return nil
	})

	scanner := NewRiskScanner(func(o *ScannerOptions) {
		o.Bus = b
	})

	result, err := scanner.Process(context.Background(), map[string]any{
		"sources":        []string{"database"},
		"correlation_id": "wf-123",
	})
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, core.MessageResult, received[0].Type)
	assert.Equal(t, "wf-123", received[0].CorrelationID)
	assert.Equal(t, result["scan_id"], received[0].Payload["scan_id"])
}

func TestRiskScanner_CacheSkipsRescan(t *testing.T) {
	srv := miniredis.RunT(t)
	c, err := cache.New(context.Background(), srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	reader := &countingReader{}
	scanner := NewRiskScanner(func(o *ScannerOptions) {
		o.Reader = reader
		o.Cache = c
	})

	input := map[string]any{"sources": []string{"database"}}
	first, err := scanner.Process(context.Background(), input)
	require.NoError(t, err)
	second, err := scanner.Process(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1, reader.reads, "second scan must be served from cache")
	assert.Equal(t, first["items_scanned"], second["items_scanned"])
	assert.Len(t, second["risks"].([]map[string]any), 1)
}

type failingReader struct{}

func (failingReader) Read(context.Context, string) ([]Record, error) {
	return nil, errors.New("connection refused")
}

func TestRiskScanner_ReaderFailurePropagates(t *testing.T) {
	scanner := NewRiskScanner(func(o *ScannerOptions) {
		o.Reader = failingReader{}
	})

	_, err := scanner.Process(context.Background(), map[string]any{"sources": []string{"database"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRiskScanner_Identity(t *testing.T) {
	scanner := NewRiskScanner()
	assert.Equal(t, TypeRiskScanner, scanner.Type())
	assert.Contains(t, scanner.ID(), "scanner-")
}

func TestRiskScanner_PropagatesWorkflowID(t *testing.T) {
	scanner := NewRiskScanner()

	result, err := scanner.Process(context.Background(), map[string]any{
		"sources":     []string{"database"},
		"workflow_id": "wf-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "wf-1", result["workflow_id"])

	result, err = scanner.Process(context.Background(), map[string]any{
		"sources": []string{"database"},
	})
	require.NoError(t, err)
	assert.NotContains(t, result, "workflow_id")
}
