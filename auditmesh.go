// Package auditmesh provides a high-level façade over the audit
// orchestration core (message bus, task queue, state store, agents and
// runner), enabling rapid construction of compliance-audit pipelines. Most
// applications interact with this package by:
//  1. Creating an AuditMesh via New() (optionally overriding the default
//     in-memory infrastructure)
//  2. Starting the worker pool with Start()
//  3. Running workflows synchronously via RunWorkflow, or enqueueing tasks
//     through Queue() for asynchronous processing
//
// All defaults are safe for local development and testing; production
// deployments typically supply a findings database, a Redis cache, a real
// language model and a structured logger.
package auditmesh

import (
	"context"
	"time"

	"github.com/hupe1980/auditmesh/agent"
	"github.com/hupe1980/auditmesh/bus"
	"github.com/hupe1980/auditmesh/cache"
	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/logging"
	"github.com/hupe1980/auditmesh/model"
	"github.com/hupe1980/auditmesh/queue"
	"github.com/hupe1980/auditmesh/runner"
	"github.com/hupe1980/auditmesh/state"
	"github.com/hupe1980/auditmesh/storage"
)

// Options configures the AuditMesh instance.
type Options struct {
	// MaxConcurrentTasks bounds the queue's active set.
	MaxConcurrentTasks int
	// StatePath is where the shared state snapshot lives.
	StatePath string
	// ReportDir receives report JSON artifacts.
	ReportDir string
	// WatchdogInterval overrides the health monitor's snapshot cadence.
	WatchdogInterval time.Duration

	// Store persists risks, findings and report metadata. Optional.
	Store *storage.Store
	// Cache short-circuits repeated scans. Optional.
	Cache *cache.Cache
	// Model powers semantic analysis in matcher, writer and critic. Optional;
	// agents degrade to heuristics without one.
	Model model.Model

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// AuditMesh is the high-level façade aggregating the orchestration core and
// the specialist agents.
type AuditMesh struct {
	bus         *bus.Bus
	queue       *queue.Queue
	state       *state.Store
	coordinator *agent.Coordinator
	watchdog    *agent.Watchdog
	runner      *runner.Runner
}

// New creates a new AuditMesh instance with optional overrides. The full
// agent set (scanner, matcher, writer, critic, watchdog, coordinator) is
// wired to a shared bus, queue and state store.
func New(optFns ...func(o *Options)) *AuditMesh {
	opts := Options{
		MaxConcurrentTasks: queue.DefaultMaxConcurrent,
		StatePath:          state.DefaultPath,
		ReportDir:          "data/reports",
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	b := bus.New(func(o *bus.Options) {
		o.Logger = opts.Logger
	})
	q := queue.New(func(o *queue.Options) {
		o.MaxConcurrent = opts.MaxConcurrentTasks
		o.Logger = opts.Logger
	})
	st := state.New(func(o *state.Options) {
		o.Path = opts.StatePath
		o.Logger = opts.Logger
	})

	shared := func(o *agent.Options) {
		o.Bus = b
		o.Queue = q
		o.State = st
		o.Logger = opts.Logger
	}

	scanner := agent.NewRiskScanner(func(o *agent.ScannerOptions) {
		shared(&o.Options)
		o.Cache = opts.Cache
		o.Store = opts.Store
	})
	matcher := agent.NewPolicyMatcher(func(o *agent.MatcherOptions) {
		shared(&o.Options)
		o.Model = opts.Model
		o.Store = opts.Store
	})
	writer := agent.NewReportWriter(func(o *agent.WriterOptions) {
		shared(&o.Options)
		o.OutputDir = opts.ReportDir
		o.Store = opts.Store
		o.Model = opts.Model
	})
	critic := agent.NewCritic(func(o *agent.CriticOptions) {
		shared(&o.Options)
		o.Model = opts.Model
	})
	watchdog := agent.NewWatchdog(func(o *agent.WatchdogOptions) {
		shared(&o.Options)
		if opts.WatchdogInterval > 0 {
			o.Interval = opts.WatchdogInterval
		}
	})
	coordinator := agent.NewCoordinator(func(o *agent.CoordinatorOptions) {
		shared(&o.Options)
	})

	coordinator.RegisterAgent(scanner)
	coordinator.RegisterAgent(matcher)
	coordinator.RegisterAgent(writer)
	coordinator.RegisterAgent(critic)
	coordinator.RegisterAgent(watchdog)

	r := runner.New(q, runner.WithLogger(opts.Logger))
	for _, a := range []core.Agent{scanner, matcher, writer, critic, watchdog, coordinator} {
		// Registration on a stopped runner cannot fail.
		_ = r.Register(a)
	}

	return &AuditMesh{
		bus:         b,
		queue:       q,
		state:       st,
		coordinator: coordinator,
		watchdog:    watchdog,
		runner:      r,
	}
}

// Start launches the background worker pool so enqueued tasks are processed.
func (m *AuditMesh) Start(ctx context.Context) error {
	return m.runner.Start(ctx)
}

// Stop drains and stops the worker pool.
func (m *AuditMesh) Stop() {
	m.runner.Stop()
}

// RunWorkflow executes a workflow synchronously through the coordinator.
// input may carry workflow parameters such as "sources".
func (m *AuditMesh) RunWorkflow(ctx context.Context, workflowType string, input map[string]any) (map[string]any, error) {
	req := map[string]any{"workflow_type": workflowType}
	for k, v := range input {
		req[k] = v
	}
	return m.coordinator.Process(ctx, req)
}

// Bus returns the shared message bus.
func (m *AuditMesh) Bus() *bus.Bus { return m.bus }

// Queue returns the shared task queue.
func (m *AuditMesh) Queue() *queue.Queue { return m.queue }

// State returns the shared state store.
func (m *AuditMesh) State() *state.Store { return m.state }

// Coordinator returns the orchestrating agent.
func (m *AuditMesh) Coordinator() *agent.Coordinator { return m.coordinator }

// Watchdog returns the health monitor agent.
func (m *AuditMesh) Watchdog() *agent.Watchdog { return m.watchdog }
