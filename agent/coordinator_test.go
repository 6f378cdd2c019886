package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/auditmesh/bus"
	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/queue"
	"github.com/hupe1980/auditmesh/state"
	"github.com/hupe1980/auditmesh/workflow"
)

// flakyAgent fails every call; used to exercise workflow failure paths.
type flakyAgent struct {
	id        string
	agentType string
}

func (f *flakyAgent) ID() string   { return f.id }
func (f *flakyAgent) Type() string { return f.agentType }
func (f *flakyAgent) Process(context.Context, map[string]any) (map[string]any, error) {
	return nil, errors.New("source unreachable")
}

func auditCoordinator(t *testing.T, optFns ...func(o *CoordinatorOptions)) *Coordinator {
	t.Helper()
	c := NewCoordinator(optFns...)
	c.RegisterAgent(NewRiskScanner())
	c.RegisterAgent(NewPolicyMatcher())
	c.RegisterAgent(NewReportWriter(func(o *WriterOptions) {
		o.OutputDir = t.TempDir()
	}))
	c.RegisterAgent(NewCritic())
	return c
}

func TestCoordinator_FullAudit(t *testing.T) {
	c := auditCoordinator(t)

	result, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "full_audit",
	})
	require.NoError(t, err)

	assert.Equal(t, WorkflowCompleted, result["status"])

	workflowID := result["workflow_id"].(string)
	wf, ok := c.WorkflowStatus(workflowID)
	require.True(t, ok)
	assert.Equal(t, WorkflowCompleted, wf.Status)
	assert.NotNil(t, wf.CompletedAt)
	assert.Empty(t, wf.Errors)

	results := result["results"].(map[string]any)
	assert.Equal(t, "sequential", results["pattern"])
	assert.Equal(t, 3, results["steps"])

	final := results["final_result"].(map[string]any)
	assert.Contains(t, final, "report_id")
	assert.Contains(t, final, "report")
}

func TestCoordinator_FullAuditSchedulesValidation(t *testing.T) {
	q := queue.New()
	c := auditCoordinator(t, func(o *CoordinatorOptions) {
		o.Queue = q
	})

	_, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "full_audit",
	})
	require.NoError(t, err)

	pending := q.Pending(TypeCritic)
	require.Len(t, pending, 1)
	assert.Equal(t, "validate_report", pending[0].Type)
	assert.Equal(t, core.PriorityHigh, pending[0].Priority)
	assert.Equal(t, TypeReportWriter, pending[0].Payload["agent_type"])
}

func TestCoordinator_ParallelScan(t *testing.T) {
	c := auditCoordinator(t)

	result, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "parallel_scan",
		"sources":       []string{"database", "file"},
	})
	require.NoError(t, err)

	results := result["results"].(map[string]any)
	assert.Equal(t, "parallel", results["pattern"])
	successful := results["successful"].([]workflow.BranchResult)
	require.Len(t, successful, 2)
	assert.Empty(t, results["failed"])
}

func TestCoordinator_ReportRefinement(t *testing.T) {
	c := auditCoordinator(t)

	result, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "report_refinement",
		"findings": []map[string]any{
			{"risk_type": "email", "policy_id": "pol-pii-01", "policy": "encrypt", "relevance": 0.8},
		},
		"gaps": []map[string]any{},
	})
	require.NoError(t, err)

	results := result["results"].(map[string]any)
	assert.Equal(t, "loop", results["pattern"])
	assert.Equal(t, 1, results["iterations"], "a complete report passes on the first pass")
	assert.NotContains(t, results, "warning")
}

func TestCoordinator_FailedWorkflowIsTracked(t *testing.T) {
	c := NewCoordinator()
	c.RegisterAgent(&flakyAgent{id: "scanner-x", agentType: TypeRiskScanner})
	c.RegisterAgent(NewPolicyMatcher())
	c.RegisterAgent(NewReportWriter(func(o *WriterOptions) {
		o.OutputDir = t.TempDir()
	}))

	_, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "full_audit",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source unreachable")

	wfs := c.Workflows()
	require.Len(t, wfs, 1)
	assert.Equal(t, WorkflowFailed, wfs[0].Status)
	require.NotEmpty(t, wfs[0].Errors)
	assert.Contains(t, wfs[0].Errors[0], "source unreachable")
}

func TestCoordinator_MissingAgentFailsWorkflow(t *testing.T) {
	c := NewCoordinator()

	_, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "full_audit",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TypeRiskScanner)
}

func TestCoordinator_UnknownWorkflowType(t *testing.T) {
	c := NewCoordinator()

	_, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "mystery",
	})
	require.Error(t, err)

	wfs := c.Workflows()
	require.Len(t, wfs, 1)
	assert.Equal(t, WorkflowFailed, wfs[0].Status)
}

func TestCoordinator_StatusAction(t *testing.T) {
	c := auditCoordinator(t)

	result, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "full_audit",
	})
	require.NoError(t, err)
	workflowID := result["workflow_id"].(string)

	statusResult, err := c.Process(context.Background(), map[string]any{
		"action":      "status",
		"workflow_id": workflowID,
	})
	require.NoError(t, err)
	wf := statusResult["workflow"].(Workflow)
	assert.Equal(t, workflowID, wf.ID)
	assert.Equal(t, WorkflowCompleted, wf.Status)

	_, err = c.Process(context.Background(), map[string]any{
		"action":      "status",
		"workflow_id": "wf-nope",
	})
	assert.Error(t, err)
}

func TestCoordinator_PublishesCompletionEvent(t *testing.T) {
	b := bus.New()
	var events []core.Message
	b.Subscribe("observer", func(msg core.Message) error {
		if msg.Type == core.MessageEvent {
			events = append(events, msg)
		}
		return nil
	})

	c := auditCoordinator(t, func(o *CoordinatorOptions) {
		o.Bus = b
	})

	result, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "full_audit",
	})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "workflow_completed", events[0].Payload["event"])
	assert.Equal(t, result["workflow_id"], events[0].Payload["workflow_id"])
}

func TestCoordinator_RecordsOutcomeInSharedState(t *testing.T) {
	st := state.New(func(o *state.Options) {
		o.Path = t.TempDir() + "/state.json"
	})

	c := auditCoordinator(t, func(o *CoordinatorOptions) {
		o.State = st
	})

	result, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "full_audit",
	})
	require.NoError(t, err)

	recorded := st.Get("workflow:"+result["workflow_id"].(string), nil)
	require.NotNil(t, recorded)
	assert.Equal(t, WorkflowCompleted, recorded.(map[string]any)["status"])
}

func TestCoordinator_ScanDelegation(t *testing.T) {
	q := queue.New()
	c := NewCoordinator(func(o *CoordinatorOptions) {
		o.Queue = q
	})

	result, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "scan",
		"sources":       []string{"database", "file"},
	})
	require.NoError(t, err)
	assert.Equal(t, WorkflowCompleted, result["status"])

	results := result["results"].(map[string]any)
	assert.Equal(t, true, results["delegated"])
	assert.Len(t, results["task_ids"], 2)

	pending := q.Pending(TypeRiskScanner)
	require.Len(t, pending, 2)
	assert.Equal(t, "scan_sources", pending[0].Type)
	assert.Equal(t, []string{"database"}, pending[0].Payload["sources"])
}

func TestCoordinator_AuditDelegationRunsAsynchronously(t *testing.T) {
	q := queue.New()
	c := auditCoordinator(t, func(o *CoordinatorOptions) {
		o.Queue = q
	})

	result, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "audit",
		"sources":       []string{"database"},
	})
	require.NoError(t, err)
	assert.Equal(t, WorkflowCompleted, result["status"])

	task := q.Dequeue(TypeCoordinator)
	require.NotNil(t, task)
	assert.Equal(t, "run_full_audit", task.Type)
	assert.Equal(t, core.PriorityHigh, task.Priority)

	// A worker hands the task back to the coordinator, which then runs the
	// full sequential pipeline.
	out, err := c.Process(context.Background(), task.Payload)
	require.NoError(t, err)
	assert.Equal(t, WorkflowCompleted, out["status"])
}

func TestCoordinator_ReportDelegation(t *testing.T) {
	q := queue.New()
	c := NewCoordinator(func(o *CoordinatorOptions) {
		o.Queue = q
	})

	_, err := c.Process(context.Background(), map[string]any{
		"workflow_type": "report",
		"findings": []map[string]any{
			{"risk_type": "email", "policy_id": "pol-pii-01"},
		},
	})
	require.NoError(t, err)

	pending := q.Pending(TypeReportWriter)
	require.Len(t, pending, 1)
	assert.Equal(t, "write_report", pending[0].Type)
	assert.Contains(t, pending[0].Payload, "findings")
	assert.NotContains(t, pending[0].Payload, "workflow_type")
}

func TestCoordinator_DelegationRequiresQueue(t *testing.T) {
	c := NewCoordinator()

	for _, workflowType := range []string{"scan", "audit", "report"} {
		_, err := c.Process(context.Background(), map[string]any{
			"workflow_type": workflowType,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "task queue")
	}
}
