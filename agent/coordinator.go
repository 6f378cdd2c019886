package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/queue"
	"github.com/hupe1980/auditmesh/workflow"
)

// TypeCoordinator routes tasks to the coordinator agent.
const TypeCoordinator = "coordinator"

// Workflow statuses.
const (
	WorkflowInProgress = "in_progress"
	WorkflowCompleted  = "completed"
	WorkflowFailed     = "failed"
)

// Workflow tracks one orchestrated run end to end.
type Workflow struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Results     map[string]any `json:"results,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
}

// CoordinatorOptions configures a Coordinator beyond the shared Options.
type CoordinatorOptions struct {
	Options
	// LoopMaxIterations bounds report refinement loops.
	LoopMaxIterations int
	// LoopQualityThreshold is the acceptance bar for refinement loops.
	LoopQualityThreshold float64
}

// Coordinator owns the registry of specialist agents and composes them into
// audit workflows. It listens on the bus under the "coordinator" id so
// specialists can report to it without knowing its instance id.
type Coordinator struct {
	BaseAgent
	loopMaxIterations    int
	loopQualityThreshold float64

	mu        sync.Mutex
	agents    map[string]core.Agent
	workflows map[string]*Workflow
}

// NewCoordinator constructs a coordinator and, when a bus is wired,
// subscribes it under the well-known "coordinator" id.
func NewCoordinator(optFns ...func(o *CoordinatorOptions)) *Coordinator {
	opts := CoordinatorOptions{
		LoopMaxIterations:    workflow.DefaultMaxIterations,
		LoopQualityThreshold: workflow.DefaultQualityThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Coordinator{
		BaseAgent: NewBaseAgent("coordinator", TypeCoordinator,
			WithBus(opts.Bus), WithState(opts.State), WithQueue(opts.Queue), WithLogger(opts.Logger)),
		loopMaxIterations:    opts.LoopMaxIterations,
		loopQualityThreshold: opts.LoopQualityThreshold,
		agents:               make(map[string]core.Agent),
		workflows:            make(map[string]*Workflow),
	}

	if b := c.Bus(); b != nil {
		b.Subscribe("coordinator", func(msg core.Message) error {
			c.Logger().Debug("specialist report received",
				"message_id", msg.ID, "sender", msg.Sender, "type", string(msg.Type))
			return nil
		})
	}

	return c
}

// RegisterAgent makes a specialist available for workflows, keyed by type.
// Registering a second agent of the same type replaces the first.
func (c *Coordinator) RegisterAgent(a core.Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents[a.Type()] = a
	c.Logger().Info("agent registered", "agent_id", a.ID(), "agent_type", a.Type())
}

// Process dispatches on input["workflow_type"]:
//
//	full_audit        sequential scan -> match -> report
//	parallel_scan     concurrent scans of independent sources
//	report_refinement writer/critic loop until the quality bar is met
//	scan              enqueue scan tasks, one per source (fire-and-forget)
//	audit             enqueue a full audit task for async processing
//	report            enqueue a report task for async processing
//
// The delegating types complete as soon as their tasks are queued; the work
// itself happens when a worker consumes the tasks. input["action"] ==
// "status" instead returns the state of the workflow named by
// input["workflow_id"].
func (c *Coordinator) Process(ctx context.Context, input map[string]any) (map[string]any, error) {
	if stringOr(input["action"]) == "status" {
		wf, ok := c.WorkflowStatus(stringOr(input["workflow_id"]))
		if !ok {
			return nil, fmt.Errorf("unknown workflow %q", stringOr(input["workflow_id"]))
		}
		return map[string]any{"workflow": wf}, nil
	}

	workflowType := stringOr(input["workflow_type"])
	wf := c.beginWorkflow(workflowType)

	var results map[string]any
	var err error
	switch workflowType {
	case "full_audit":
		results, err = c.runFullAudit(ctx, wf, input)
	case "parallel_scan":
		results, err = c.runParallelScan(ctx, input)
	case "report_refinement":
		results, err = c.runReportRefinement(ctx, input)
	case "scan":
		results, err = c.delegateScan(input)
	case "audit":
		results, err = c.delegateAudit(input)
	case "report":
		results, err = c.delegateReport(input)
	default:
		err = fmt.Errorf("unknown workflow type %q", workflowType)
	}

	c.finishWorkflow(wf, results, err)
	if err != nil {
		return nil, fmt.Errorf("workflow %s (%s) failed: %w", wf.ID, workflowType, err)
	}

	c.Send(core.MessageEvent, "", map[string]any{
		"event":       "workflow_completed",
		"workflow_id": wf.ID,
		"type":        workflowType,
	}, wf.ID)

	return map[string]any{
		"workflow_id": wf.ID,
		"status":      WorkflowCompleted,
		"results":     results,
	}, nil
}

// runFullAudit chains scanner, matcher and writer sequentially and schedules
// a follow-up validation task for the produced report.
func (c *Coordinator) runFullAudit(ctx context.Context, wf *Workflow, input map[string]any) (map[string]any, error) {
	scanner, err := c.agent(TypeRiskScanner)
	if err != nil {
		return nil, err
	}
	matcher, err := c.agent(TypePolicyMatcher)
	if err != nil {
		return nil, err
	}
	writer, err := c.agent(TypeReportWriter)
	if err != nil {
		return nil, err
	}

	initial := map[string]any{"workflow_id": wf.ID}
	if sources := stringSlice(input["sources"]); len(sources) > 0 {
		initial["sources"] = sources
	}

	res, err := workflow.Sequential(ctx, []workflow.Step{
		{Agent: scanner},
		{Agent: matcher, InputKey: "scan_result"},
		{Agent: writer, InputKey: "match_result"},
	}, initial)
	if err != nil {
		return nil, err
	}

	// Validation of the finished report runs asynchronously; the audit
	// result does not wait for it.
	if q := c.Queue(); q != nil {
		if _, err := c.agent(TypeCritic); err == nil {
			q.Enqueue("validate_report", TypeCritic, map[string]any{
				"agent_output": res.FinalResult,
				"agent_type":   TypeReportWriter,
			}, queue.WithPriority(core.PriorityHigh))
		}
	}

	return map[string]any{
		"pattern":      res.Pattern,
		"steps":        len(res.Steps),
		"final_result": res.FinalResult,
	}, nil
}

// runParallelScan fans one scanner run out per source.
func (c *Coordinator) runParallelScan(ctx context.Context, input map[string]any) (map[string]any, error) {
	scanner, err := c.agent(TypeRiskScanner)
	if err != nil {
		return nil, err
	}

	sources := stringSlice(input["sources"])
	if len(sources) == 0 {
		sources = []string{"database", "file", "api"}
	}

	branches := make([]workflow.Branch, len(sources))
	for i, source := range sources {
		branches[i] = workflow.Branch{
			Agent: scanner,
			Input: map[string]any{"sources": []string{source}},
		}
	}

	res := workflow.Parallel(ctx, branches)
	if len(res.Successful) == 0 && len(res.Failed) > 0 {
		return nil, fmt.Errorf("all %d scan branches failed, first: %s", len(res.Failed), res.Failed[0].Error)
	}

	return map[string]any{
		"pattern":    res.Pattern,
		"successful": res.Successful,
		"failed":     res.Failed,
		"duration":   res.Duration.String(),
	}, nil
}

// runReportRefinement loops the writer against the critic until the report
// meets the quality bar or the iteration budget runs out.
func (c *Coordinator) runReportRefinement(ctx context.Context, input map[string]any) (map[string]any, error) {
	writer, err := c.agent(TypeReportWriter)
	if err != nil {
		return nil, err
	}
	critic, err := c.agent(TypeCritic)
	if err != nil {
		return nil, err
	}

	res, err := workflow.Loop(ctx, writer, critic, input,
		workflow.WithMaxIterations(c.loopMaxIterations),
		workflow.WithQualityThreshold(c.loopQualityThreshold),
	)
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"pattern":       res.Pattern,
		"iterations":    res.Iterations,
		"final_result":  res.FinalResult,
		"final_quality": res.FinalQuality,
	}
	if res.Warning != "" {
		out["warning"] = res.Warning
	}
	return out, nil
}

// delegateScan enqueues one scan task per requested source. The workflow
// completes once the tasks are queued; scanning happens when workers consume
// them.
func (c *Coordinator) delegateScan(input map[string]any) (map[string]any, error) {
	q := c.Queue()
	if q == nil {
		return nil, fmt.Errorf("scan delegation requires a task queue")
	}

	sources := stringSlice(input["sources"])
	if len(sources) == 0 {
		sources = []string{"database", "file", "api"}
	}

	taskIDs := make([]string, 0, len(sources))
	for _, source := range sources {
		taskIDs = append(taskIDs, q.Enqueue("scan_sources", TypeRiskScanner, map[string]any{
			"sources": []string{source},
		}))
	}

	return map[string]any{"delegated": true, "task_ids": taskIDs}, nil
}

// delegateAudit enqueues a single high-priority task that runs the full
// sequential audit when a worker hands it back to the coordinator.
func (c *Coordinator) delegateAudit(input map[string]any) (map[string]any, error) {
	q := c.Queue()
	if q == nil {
		return nil, fmt.Errorf("audit delegation requires a task queue")
	}

	payload := map[string]any{"workflow_type": "full_audit"}
	if sources := stringSlice(input["sources"]); len(sources) > 0 {
		payload["sources"] = sources
	}
	id := q.Enqueue("run_full_audit", TypeCoordinator, payload, queue.WithPriority(core.PriorityHigh))

	return map[string]any{"delegated": true, "task_ids": []string{id}}, nil
}

// delegateReport enqueues a report task for the writer carrying the caller's
// match data.
func (c *Coordinator) delegateReport(input map[string]any) (map[string]any, error) {
	q := c.Queue()
	if q == nil {
		return nil, fmt.Errorf("report delegation requires a task queue")
	}

	payload := make(map[string]any, len(input))
	for k, v := range input {
		if k == "workflow_type" || k == "action" {
			continue
		}
		payload[k] = v
	}
	id := q.Enqueue("write_report", TypeReportWriter, payload)

	return map[string]any{"delegated": true, "task_ids": []string{id}}, nil
}

// WorkflowStatus returns a copy of the tracked workflow.
func (c *Coordinator) WorkflowStatus(id string) (Workflow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wf, ok := c.workflows[id]
	if !ok {
		return Workflow{}, false
	}
	return *wf, true
}

// Workflows returns copies of all tracked workflows.
func (c *Coordinator) Workflows() []Workflow {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Workflow, 0, len(c.workflows))
	for _, wf := range c.workflows {
		out = append(out, *wf)
	}
	return out
}

func (c *Coordinator) agent(agentType string) (core.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.agents[agentType]
	if !ok {
		return nil, fmt.Errorf("no %s agent registered", agentType)
	}
	return a, nil
}

func (c *Coordinator) beginWorkflow(workflowType string) *Workflow {
	wf := &Workflow{
		ID:        "wf-" + core.NewID()[:8],
		Type:      workflowType,
		Status:    WorkflowInProgress,
		StartedAt: time.Now().UTC(),
	}
	c.mu.Lock()
	c.workflows[wf.ID] = wf
	c.mu.Unlock()

	c.Logger().Info("workflow started", "workflow_id", wf.ID, "type", workflowType)
	return wf
}

func (c *Coordinator) finishWorkflow(wf *Workflow, results map[string]any, err error) {
	now := time.Now().UTC()

	c.mu.Lock()
	wf.CompletedAt = &now
	if err != nil {
		wf.Status = WorkflowFailed
		wf.Errors = append(wf.Errors, err.Error())
	} else {
		wf.Status = WorkflowCompleted
		wf.Results = results
	}
	snapshot := *wf
	c.mu.Unlock()

	c.SetShared("workflow:"+wf.ID, map[string]any{
		"type":   snapshot.Type,
		"status": snapshot.Status,
	})

	if err != nil {
		c.Logger().Error("workflow failed", "workflow_id", wf.ID, "error", err.Error())
		return
	}
	c.Logger().Info("workflow completed",
		"workflow_id", wf.ID, "duration", now.Sub(snapshot.StartedAt).String())
}
