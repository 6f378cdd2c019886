package core

import (
	"errors"
	"fmt"
	"time"
)

// TaskStatus tracks a task through its lifecycle. Transitions are performed
// only by the task queue: PENDING → ASSIGNED → IN_PROGRESS → COMPLETED, or
// back to PENDING on a retryable failure while the retry budget lasts, FAILED
// once it is exhausted. CANCELLED is reachable from PENDING and ASSIGNED via
// explicit cancellation.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// TaskPriority orders tasks in the waiting queue. Higher values are served
// first; equal priorities keep enqueue order.
type TaskPriority int

const (
	PriorityLow      TaskPriority = 1
	PriorityMedium   TaskPriority = 2
	PriorityHigh     TaskPriority = 3
	PriorityCritical TaskPriority = 4
)

// String returns the lower-case name of the priority level.
func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// DefaultMaxRetries is the retry budget applied when none is specified.
const DefaultMaxRetries = 3

// Task is a unit of work routed to an agent type. Tasks are owned by the
// queue; callers receive defensive clones and interact through queue
// operations keyed by ID.
type Task struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	AgentType   string         `json:"agent_type"`
	Payload     map[string]any `json:"payload"`
	Priority    TaskPriority   `json:"priority"`
	Status      TaskStatus     `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	AssignedTo  string         `json:"assigned_to,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	RetryCount  int            `json:"retry_count"`
	MaxRetries  int            `json:"max_retries"`
}

// NewTask constructs a pending task with a generated id.
func NewTask(taskType, agentType string, payload map[string]any, priority TaskPriority, maxRetries int) *Task {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Task{
		ID:         NewID(),
		Type:       taskType,
		AgentType:  agentType,
		Payload:    payload,
		Priority:   priority,
		Status:     TaskPending,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: maxRetries,
	}
}

// Clone returns a copy safe to hand outside the queue's lock scope. Payload
// and Result maps are shallow-copied; timestamps are copied by value.
func (t *Task) Clone() *Task {
	c := *t
	if t.Payload != nil {
		c.Payload = make(map[string]any, len(t.Payload))
		for k, v := range t.Payload {
			c.Payload[k] = v
		}
	}
	if t.Result != nil {
		c.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			c.Result[k] = v
		}
	}
	if t.StartedAt != nil {
		st := *t.StartedAt
		c.StartedAt = &st
	}
	if t.CompletedAt != nil {
		ct := *t.CompletedAt
		c.CompletedAt = &ct
	}
	return &c
}

// TaskError classifies a task execution failure. Fatal errors skip the retry
// loop and mark the task FAILED immediately; any other error is retryable
// while the retry budget lasts.
type TaskError struct {
	Err   error
	Fatal bool
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.Err == nil {
		return "task error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *TaskError) Unwrap() error { return e.Err }

// FatalError wraps err as a non-retryable task failure.
func FatalError(err error) error { return &TaskError{Err: err, Fatal: true} }

// Fatalf formats a non-retryable task failure.
func Fatalf(format string, args ...any) error {
	return &TaskError{Err: fmt.Errorf(format, args...), Fatal: true}
}

// IsFatal reports whether err carries the fatal classification.
func IsFatal(err error) bool {
	var te *TaskError
	return errors.As(err, &te) && te.Fatal
}
