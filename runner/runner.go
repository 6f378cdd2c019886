package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/logging"
	"github.com/hupe1980/auditmesh/queue"
)

// DefaultPollInterval is how long an idle worker sleeps between queue polls.
const DefaultPollInterval = 50 * time.Millisecond

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// PollInterval is the idle sleep between dequeue attempts.
	PollInterval time.Duration
	// Logger receives worker lifecycle events.
	Logger logging.Logger
}

// WithPollInterval overrides the idle polling cadence.
func WithPollInterval(d time.Duration) func(o *Options) {
	return func(o *Options) { o.PollInterval = d }
}

// WithLogger wires a logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Runner runs one polling worker per registered agent. Each worker claims
// tasks routed to its agent's type, invokes Process and reports the outcome
// back to the queue. Public methods are safe for concurrent use.
type Runner struct {
	queue        *queue.Queue
	pollInterval time.Duration
	logger       logging.Logger

	mu      sync.Mutex
	agents  map[string]core.Agent
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New constructs a Runner with optional overrides.
func New(q *queue.Queue, optFns ...func(o *Options)) *Runner {
	opts := Options{
		PollInterval: DefaultPollInterval,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		queue:        q,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
		agents:       make(map[string]core.Agent),
	}
}

// Register adds an agent to the pool, keyed by its type. Registering a
// second agent of the same type replaces the first. Registration is only
// allowed while the runner is stopped.
func (r *Runner) Register(a core.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("cannot register %s while the runner is running", a.ID())
	}
	r.agents[a.Type()] = a
	return nil
}

// Start launches the workers. It returns an error when already running or
// when no agents are registered.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("runner is already running")
	}
	if len(r.agents) == 0 {
		return fmt.Errorf("no agents registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	var wg sync.WaitGroup
	for _, a := range r.agents {
		wg.Add(1)
		go func(a core.Agent) {
			defer wg.Done()
			r.work(runCtx, a)
		}(a)
	}
	go func(done chan struct{}) {
		wg.Wait()
		close(done)
	}(r.done)

	r.logger.Info("runner started", "workers", len(r.agents))
	return nil
}

// Stop cancels the workers and waits for them to drain.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.running = false
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("runner stopped")
}

// work is one agent's poll loop.
func (r *Runner) work(ctx context.Context, a core.Agent) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task := r.queue.Dequeue(a.Type())
		if task == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.pollInterval):
			}
			continue
		}

		r.execute(ctx, a, task)
	}
}

// execute walks one claimed task through start → process → complete/fail.
func (r *Runner) execute(ctx context.Context, a core.Agent, task *core.Task) {
	if !r.queue.Start(task.ID) {
		r.logger.Warn("claimed task vanished before start", "task_id", task.ID)
		return
	}

	start := time.Now()
	result, err := a.Process(ctx, task.Payload)
	if err != nil {
		r.queue.Fail(task.ID, err)
		r.logger.Warn("task processing failed",
			"task_id", task.ID, "agent_id", a.ID(),
			"fatal", core.IsFatal(err), "error", err.Error())
		return
	}

	r.queue.Complete(task.ID, result)
	r.logger.Info("task processed",
		"task_id", task.ID, "agent_id", a.ID(), "duration", time.Since(start).String())
}
