package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/auditmesh/core"
)

// TypeWatchdog routes tasks to watchdog agents.
const TypeWatchdog = "watchdog"

// Watchdog defaults.
const (
	DefaultMonitorInterval  = 30 * time.Second
	DefaultBacklogThreshold = 20
)

// WatchdogOptions configures a Watchdog beyond the shared Options.
type WatchdogOptions struct {
	Options
	// Interval between health snapshots while monitoring.
	Interval time.Duration
	// BacklogThreshold is the pending-task count above which the watchdog
	// asks the coordinator for an audit of the queue.
	BacklogThreshold int
}

// Watchdog periodically snapshots system health, broadcasts it on the bus
// and nudges the coordinator when the task backlog grows suspicious.
type Watchdog struct {
	BaseAgent
	interval         time.Duration
	backlogThreshold int

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// NewWatchdog constructs a watchdog.
func NewWatchdog(optFns ...func(o *WatchdogOptions)) *Watchdog {
	opts := WatchdogOptions{
		Interval:         DefaultMonitorInterval,
		BacklogThreshold: DefaultBacklogThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Watchdog{
		BaseAgent: NewBaseAgent("watchdog", TypeWatchdog,
			WithBus(opts.Bus), WithState(opts.State), WithQueue(opts.Queue), WithLogger(opts.Logger)),
		interval:         opts.Interval,
		backlogThreshold: opts.BacklogThreshold,
	}
}

// Process dispatches on input["action"]: "start" begins periodic monitoring,
// "stop" ends it, "status" returns an immediate health snapshot.
func (a *Watchdog) Process(ctx context.Context, input map[string]any) (map[string]any, error) {
	switch action := stringOr(input["action"]); action {
	case "start":
		return a.start(ctx)
	case "stop":
		return a.stop()
	case "status", "":
		return a.snapshot(), nil
	default:
		return nil, fmt.Errorf("unknown watchdog action %q", action)
	}
}

func (a *Watchdog) start(ctx context.Context) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil, fmt.Errorf("watchdog is already monitoring")
	}

	// Detach from the triggering task's context so monitoring outlives it.
	monitorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.done = make(chan struct{})
	a.started = time.Now().UTC()

	go a.monitor(monitorCtx, a.done)

	a.Logger().Info("watchdog monitoring started", "interval", a.interval.String())
	return map[string]any{"monitoring": true, "interval": a.interval.String()}, nil
}

func (a *Watchdog) stop() (map[string]any, error) {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return nil, fmt.Errorf("watchdog is not monitoring")
	}
	cancel()
	<-done

	a.Logger().Info("watchdog monitoring stopped")
	return map[string]any{"monitoring": false}, nil
}

func (a *Watchdog) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := a.snapshot()
			a.SetContext("last_heartbeat", health["checked_at"])
			a.Send(core.MessageStatus, "", health, "")

			if pending, ok := health["pending_tasks"].(int); ok && pending > a.backlogThreshold {
				a.Logger().Warn("task backlog above threshold",
					"pending", pending, "threshold", a.backlogThreshold)
				a.Send(core.MessageTask, "coordinator", map[string]any{
					"workflow_type": "queue_audit",
					"reason":        fmt.Sprintf("pending backlog %d exceeds threshold %d", pending, a.backlogThreshold),
				}, "")
			}
		}
	}
}

// snapshot assembles the current health view from the wired infrastructure.
func (a *Watchdog) snapshot() map[string]any {
	health := map[string]any{
		"agent_id":   a.ID(),
		"monitoring": a.isMonitoring(),
		"checked_at": time.Now().UTC().Format(time.RFC3339),
	}

	if q := a.Queue(); q != nil {
		health["pending_tasks"] = len(q.Pending(""))
		health["active_tasks"] = len(q.Active())
	}
	if b := a.Bus(); b != nil {
		health["recent_messages"] = len(b.History())
	}

	a.mu.Lock()
	if !a.started.IsZero() && a.cancel != nil {
		health["monitoring_since"] = a.started.Format(time.RFC3339)
	}
	a.mu.Unlock()

	return health
}

func (a *Watchdog) isMonitoring() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}
