// Package queue buffers units of work tagged by target agent type.
//
// The waiting list is kept ordered by (priority desc, enqueue sequence asc),
// so priority is honored globally and equal-priority tasks stay FIFO. Dequeue
// never blocks: it returns nil both when the bounded active set is full and
// when no pending task matches the requested agent type; callers poll or are
// re-triggered. Failed tasks are requeued transparently while their retry
// budget lasts, unless the failure is classified fatal (core.TaskError).
package queue

import (
	"sync"
	"time"

	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/logging"
)

// DefaultMaxConcurrent bounds the number of simultaneously active
// (assigned or in-progress) tasks.
const DefaultMaxConcurrent = 5

// Options configures a Queue.
type Options struct {
	// MaxConcurrent caps the active set.
	MaxConcurrent int
	// Logger receives task lifecycle events.
	Logger logging.Logger
}

// Queue is the task queue. One mutex guards the task table, the waiting list
// and the active set, so the check-capacity → scan → mutate sequence of a
// dequeue is atomic relative to every other queue operation.
type Queue struct {
	mu            sync.Mutex
	tasks         map[string]*core.Task
	waiting       []*core.Task
	active        map[string]*core.Task
	maxConcurrent int
	logger        logging.Logger
}

// New constructs a Queue with optional overrides.
func New(optFns ...func(o *Options)) *Queue {
	opts := Options{
		MaxConcurrent: DefaultMaxConcurrent,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Queue{
		tasks:         make(map[string]*core.Task),
		waiting:       nil,
		active:        make(map[string]*core.Task),
		maxConcurrent: opts.MaxConcurrent,
		logger:        opts.Logger,
	}
}

// EnqueueOptions carries the optional enqueue parameters.
type EnqueueOptions struct {
	Priority   core.TaskPriority
	MaxRetries int
}

// WithPriority overrides the default MEDIUM priority.
func WithPriority(p core.TaskPriority) func(o *EnqueueOptions) {
	return func(o *EnqueueOptions) { o.Priority = p }
}

// WithMaxRetries overrides the default retry budget.
func WithMaxRetries(n int) func(o *EnqueueOptions) {
	return func(o *EnqueueOptions) { o.MaxRetries = n }
}

// Enqueue creates a pending task and inserts it into the waiting list.
// It returns the task id immediately.
func (q *Queue) Enqueue(taskType, agentType string, payload map[string]any, optFns ...func(o *EnqueueOptions)) string {
	opts := EnqueueOptions{Priority: core.PriorityMedium, MaxRetries: core.DefaultMaxRetries}
	for _, fn := range optFns {
		fn(&opts)
	}

	task := core.NewTask(taskType, agentType, payload, opts.Priority, opts.MaxRetries)

	q.mu.Lock()
	q.tasks[task.ID] = task
	q.insertLocked(task)
	q.mu.Unlock()

	q.logger.Info("task enqueued",
		"task_id", task.ID, "task_type", taskType, "agent_type", agentType,
		"priority", task.Priority.String())

	return task.ID
}

// insertLocked places the task after every waiting entry with priority >= its
// own, preserving FIFO order among equal priorities. Caller holds the lock.
func (q *Queue) insertLocked(task *core.Task) {
	i := len(q.waiting)
	for ; i > 0; i-- {
		if q.waiting[i-1].Priority >= task.Priority {
			break
		}
	}
	q.waiting = append(q.waiting, nil)
	copy(q.waiting[i+1:], q.waiting[i:])
	q.waiting[i] = task
}

// Dequeue returns the next pending task for the agent type, or nil when the
// active set is at capacity or no pending task matches. On a match the task
// transitions to ASSIGNED and joins the active set; non-matching entries keep
// their relative order.
func (q *Queue) Dequeue(agentType string) *core.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.active) >= q.maxConcurrent {
		return nil
	}

	for i, task := range q.waiting {
		if task.Status != core.TaskPending || task.AgentType != agentType {
			continue
		}
		q.waiting = append(q.waiting[:i:i], q.waiting[i+1:]...)
		task.Status = core.TaskAssigned
		task.AssignedTo = agentType
		q.active[task.ID] = task
		q.logger.Info("task assigned", "task_id", task.ID, "agent_type", agentType)
		return task.Clone()
	}
	return nil
}

// Start transitions an assigned task to IN_PROGRESS and records the start
// time. It returns false if the task is not currently active.
func (q *Queue) Start(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.active[taskID]
	if !ok {
		return false
	}
	now := time.Now().UTC()
	task.Status = core.TaskInProgress
	task.StartedAt = &now
	q.logger.Info("task started", "task_id", taskID)
	return true
}

// Complete marks an active task COMPLETED, records the result and completion
// time, and frees its concurrency slot. It returns false if the task is not
// currently active.
func (q *Queue) Complete(taskID string, result map[string]any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.active[taskID]
	if !ok {
		return false
	}
	now := time.Now().UTC()
	task.Status = core.TaskCompleted
	task.CompletedAt = &now
	task.Result = result
	delete(q.active, taskID)
	q.logger.Info("task completed", "task_id", taskID)
	return true
}

// Fail records a failure for an active task. The retry count is incremented;
// if the failure is retryable and the budget is not exhausted, the task
// returns to PENDING (assignment cleared) and is re-inserted at its original
// priority. Otherwise it becomes terminally FAILED. Either way the
// concurrency slot is freed. It returns false if the task is not active.
func (q *Queue) Fail(taskID string, taskErr error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.active[taskID]
	if !ok {
		return false
	}

	task.RetryCount++
	if taskErr != nil {
		task.Error = taskErr.Error()
	}
	delete(q.active, taskID)

	if !core.IsFatal(taskErr) && task.RetryCount < task.MaxRetries {
		task.Status = core.TaskPending
		task.AssignedTo = ""
		task.StartedAt = nil
		q.insertLocked(task)
		q.logger.Warn("task retry scheduled",
			"task_id", taskID, "retry_count", task.RetryCount, "max_retries", task.MaxRetries)
		return true
	}

	task.Status = core.TaskFailed
	q.logger.Error("task failed", "task_id", taskID, "error", task.Error)
	return true
}

// Cancel moves a PENDING or ASSIGNED task to the terminal CANCELLED state.
// It returns false for in-progress, terminal or unknown tasks.
func (q *Queue) Cancel(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return false
	}
	switch task.Status {
	case core.TaskPending:
		for i, waiting := range q.waiting {
			if waiting.ID == taskID {
				q.waiting = append(q.waiting[:i:i], q.waiting[i+1:]...)
				break
			}
		}
	case core.TaskAssigned:
		delete(q.active, taskID)
	default:
		return false
	}
	task.Status = core.TaskCancelled
	task.AssignedTo = ""
	q.logger.Info("task cancelled", "task_id", taskID)
	return true
}

// Get returns a snapshot of a task by id.
func (q *Queue) Get(taskID string) (*core.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// Pending returns snapshots of all pending tasks, optionally filtered by
// agent type (empty string matches all), in waiting-list order.
func (q *Queue) Pending(agentType string) []*core.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*core.Task
	for _, task := range q.waiting {
		if task.Status != core.TaskPending {
			continue
		}
		if agentType != "" && task.AgentType != agentType {
			continue
		}
		out = append(out, task.Clone())
	}
	return out
}

// Active returns snapshots of all assigned or in-progress tasks.
func (q *Queue) Active() []*core.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*core.Task, 0, len(q.active))
	for _, task := range q.active {
		out = append(out, task.Clone())
	}
	return out
}
