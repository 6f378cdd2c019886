package agent

import (
	"github.com/hupe1980/auditmesh/bus"
	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/logging"
	"github.com/hupe1980/auditmesh/queue"
	"github.com/hupe1980/auditmesh/state"
)

// Options bundles the shared infrastructure an agent may be wired to. Every
// field is optional: an agent with a nil bus simply does not publish, one
// with a nil state store does not persist context.
type Options struct {
	Bus    *bus.Bus
	State  *state.Store
	Queue  *queue.Queue
	Logger logging.Logger
}

// WithBus wires the message bus.
func WithBus(b *bus.Bus) func(o *Options) {
	return func(o *Options) { o.Bus = b }
}

// WithState wires the shared state store.
func WithState(s *state.Store) func(o *Options) {
	return func(o *Options) { o.State = s }
}

// WithQueue wires the task queue.
func WithQueue(q *queue.Queue) func(o *Options) {
	return func(o *Options) { o.Queue = q }
}

// WithLogger wires a logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// BaseAgent bundles identity and infrastructure access. Embed it in concrete
// agent implementations and supply Process to satisfy core.Agent.
type BaseAgent struct {
	id        string
	agentType string
	bus       *bus.Bus
	state     *state.Store
	queue     *queue.Queue
	logger    logging.Logger
}

// NewBaseAgent constructs a BaseAgent with a unique id derived from name.
func NewBaseAgent(name, agentType string, optFns ...func(o *Options)) BaseAgent {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return BaseAgent{
		id:        name + "-" + core.NewID()[:8],
		agentType: agentType,
		bus:       opts.Bus,
		state:     opts.State,
		queue:     opts.Queue,
		logger:    opts.Logger,
	}
}

// ID returns the unique agent id.
func (b *BaseAgent) ID() string { return b.id }

// Type returns the agent type used for task routing.
func (b *BaseAgent) Type() string { return b.agentType }

// Logger returns the wired logger (never nil).
func (b *BaseAgent) Logger() logging.Logger { return b.logger }

// Bus returns the wired message bus, or nil.
func (b *BaseAgent) Bus() *bus.Bus { return b.bus }

// Queue returns the wired task queue, or nil.
func (b *BaseAgent) Queue() *queue.Queue { return b.queue }

// Send publishes a message from this agent. It is a no-op without a bus and
// returns the message id otherwise.
func (b *BaseAgent) Send(typ core.MessageType, receiver string, payload map[string]any, correlationID string) string {
	if b.bus == nil {
		return ""
	}
	var optFns []func(o *bus.PublishOptions)
	if receiver != "" {
		optFns = append(optFns, bus.WithReceiver(receiver))
	}
	if correlationID != "" {
		optFns = append(optFns, bus.WithCorrelationID(correlationID))
	}
	return b.bus.Publish(typ, b.id, payload, optFns...)
}

// SetContext stores a value in this agent's private context. No-op without a
// state store.
func (b *BaseAgent) SetContext(key string, value any) {
	if b.state == nil {
		return
	}
	b.state.SetAgentContext(b.id, key, value)
}

// GetContext loads a value from this agent's private context, or def.
func (b *BaseAgent) GetContext(key string, def any) any {
	if b.state == nil {
		return def
	}
	return b.state.GetAgentContext(b.id, key, def)
}

// SetShared stores a value in the global shared state. No-op without a store.
func (b *BaseAgent) SetShared(key string, value any) {
	if b.state == nil {
		return
	}
	b.state.Set(key, value)
}

// GetShared loads a value from the global shared state, or def.
func (b *BaseAgent) GetShared(key string, def any) any {
	if b.state == nil {
		return def
	}
	return b.state.Get(key, def)
}
