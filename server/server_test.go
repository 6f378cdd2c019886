package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/auditmesh/agent"
	"github.com/hupe1980/auditmesh/storage"
)

func testServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)

	coordinator := agent.NewCoordinator()
	coordinator.RegisterAgent(agent.NewRiskScanner())
	coordinator.RegisterAgent(agent.NewPolicyMatcher())
	coordinator.RegisterAgent(agent.NewReportWriter(func(o *agent.WriterOptions) {
		o.OutputDir = t.TempDir()
		o.Store = store
	}))
	coordinator.RegisterAgent(agent.NewCritic())

	return New(coordinator, WithStore(store)), store
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateWorkflow(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/workflows", map[string]any{
		"workflow_type": "full_audit",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp["status"])
	assert.NotEmpty(t, resp["workflow_id"])
}

func TestCreateWorkflow_BadRequest(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/workflows", map[string]any{
		"input": map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateWorkflow_UnknownTypeRejected(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/workflows", map[string]any{
		"workflow_type": "mystery",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetWorkflow(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/workflows", map[string]any{
		"workflow_type": "full_audit",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["workflow_id"].(string)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/workflows/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var wf map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wf))
	assert.Equal(t, id, wf["id"])
	assert.Equal(t, "completed", wf["status"])
}

func TestGetWorkflow_NotFound(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/workflows/wf-nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListWorkflows(t *testing.T) {
	s, _ := testServer(t)

	doJSON(t, s, http.MethodPost, "/api/v1/workflows", map[string]any{"workflow_type": "full_audit"})
	doJSON(t, s, http.MethodPost, "/api/v1/workflows", map[string]any{"workflow_type": "parallel_scan"})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Workflows []map[string]any `json:"workflows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Workflows, 2)
}

func TestReportsEndpoints(t *testing.T) {
	s, store := testServer(t)

	// A full audit persists its report metadata through the writer.
	rec := doJSON(t, s, http.MethodPost, "/api/v1/workflows", map[string]any{
		"workflow_type": "full_audit",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	reports, err := store.Reports(10)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Reports []map[string]any `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Reports, 1)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/reports/"+reports[0].ReportID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/reports/rep-nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReports_WithoutStore(t *testing.T) {
	coordinator := agent.NewCoordinator()
	s := New(coordinator)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/reports", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHealth_WithWatchdog(t *testing.T) {
	coordinator := agent.NewCoordinator()
	wd := agent.NewWatchdog()
	s := New(coordinator, WithWatchdog(wd))

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, false, resp["monitoring"])
	assert.NotEmpty(t, resp["checked_at"])
}
