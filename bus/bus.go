// Package bus implements the in-process pub/sub channel between agents.
//
// Delivery is keyed by receiver agent id: a publish with a receiver invokes
// only that receiver's handlers, a publish without one fans out to every
// subscribed id. Delivery is fire-and-forget and at-most-once; a failing
// handler is logged and never blocks delivery to the remaining handlers.
// Every published message is retained in a bounded history for auditing.
package bus

import (
	"sync"

	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/logging"
)

// DefaultMaxHistory bounds the retained message history.
const DefaultMaxHistory = 1000

// Handler consumes a delivered message. A returned error is logged per
// handler and does not propagate to the publisher.
type Handler func(msg core.Message) error

// Subscription identifies one registered handler so it can be removed
// individually. Handlers are not comparable in Go, so Subscribe hands out a
// token instead of matching on the function value.
type Subscription struct {
	agentID string
	id      uint64
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Options configures a Bus.
type Options struct {
	// MaxHistory caps the retained message history (oldest evicted first).
	MaxHistory int
	// Logger receives delivery failures and lifecycle events.
	Logger logging.Logger
}

// Bus is the message bus. All mutations of the subscriber table and the
// history buffer happen under a single mutex; handlers run outside it.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]subscriber
	history     []core.Message
	maxHistory  int
	nextSubID   uint64
	logger      logging.Logger
}

// New constructs a Bus with optional overrides.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		MaxHistory: DefaultMaxHistory,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{
		subscribers: make(map[string][]subscriber),
		maxHistory:  opts.MaxHistory,
		logger:      opts.Logger,
	}
}

// Subscribe registers a handler under an agent id. Multiple handlers per id
// are allowed; a single publish invokes them in registration order.
func (b *Bus) Subscribe(agentID string, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSubID++
	sub := Subscription{agentID: agentID, id: b.nextSubID}
	b.subscribers[agentID] = append(b.subscribers[agentID], subscriber{id: sub.id, handler: h})
	b.logger.Debug("agent subscribed", "agent_id", agentID)
	return sub
}

// Unsubscribe removes one previously registered handler. It is a no-op if
// the subscription is unknown or already removed.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[sub.agentID]
	for i, s := range subs {
		if s.id == sub.id {
			b.subscribers[sub.agentID] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subscribers[sub.agentID]) == 0 {
				delete(b.subscribers, sub.agentID)
			}
			b.logger.Debug("agent unsubscribed", "agent_id", sub.agentID)
			return
		}
	}
}

// PublishOptions carries the optional publish parameters.
type PublishOptions struct {
	// Receiver targets a single agent id; empty means broadcast.
	Receiver string
	// CorrelationID links this message to a causal chain.
	CorrelationID string
}

// WithReceiver targets the message at a single agent id.
func WithReceiver(receiver string) func(o *PublishOptions) {
	return func(o *PublishOptions) { o.Receiver = receiver }
}

// WithCorrelationID attaches a correlation identifier.
func WithCorrelationID(id string) func(o *PublishOptions) {
	return func(o *PublishOptions) { o.CorrelationID = id }
}

// Publish constructs a message, appends it to the history and delivers it.
// The message id is returned regardless of delivery outcome.
func (b *Bus) Publish(typ core.MessageType, sender string, payload map[string]any, optFns ...func(o *PublishOptions)) string {
	var opts PublishOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	msg := core.NewMessage(typ, sender, opts.Receiver, payload, opts.CorrelationID)

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
	var targets [][]subscriber
	if opts.Receiver != "" {
		if subs, ok := b.subscribers[opts.Receiver]; ok {
			targets = append(targets, snapshot(subs))
		}
	} else {
		for _, subs := range b.subscribers {
			targets = append(targets, snapshot(subs))
		}
	}
	b.mu.Unlock()

	for _, subs := range targets {
		for _, s := range subs {
			if err := s.handler(msg); err != nil {
				b.logger.Error("message delivery failed",
					"message_id", msg.ID, "sender", sender, "error", err.Error())
			}
		}
	}

	b.logger.Debug("message published",
		"message_id", msg.ID, "sender", sender, "type", string(typ))

	return msg.ID
}

func snapshot(subs []subscriber) []subscriber {
	out := make([]subscriber, len(subs))
	copy(out, subs)
	return out
}

// HistoryOptions filters History results.
type HistoryOptions struct {
	// AgentID keeps messages where the agent is sender or receiver.
	AgentID string
	// Type keeps messages of one message type.
	Type core.MessageType
	// Limit caps the number of returned messages (most recent). Defaults to 100.
	Limit int
}

// WithAgent filters history by sender-or-receiver match.
func WithAgent(agentID string) func(o *HistoryOptions) {
	return func(o *HistoryOptions) { o.AgentID = agentID }
}

// WithType filters history by message type.
func WithType(typ core.MessageType) func(o *HistoryOptions) {
	return func(o *HistoryOptions) { o.Type = typ }
}

// WithLimit caps the number of returned messages.
func WithLimit(n int) func(o *HistoryOptions) {
	return func(o *HistoryOptions) { o.Limit = n }
}

// History returns the most recent retained messages matching the filters.
func (b *Bus) History(optFns ...func(o *HistoryOptions)) []core.Message {
	opts := HistoryOptions{Limit: 100}
	for _, fn := range optFns {
		fn(&opts)
	}

	b.mu.Lock()
	msgs := make([]core.Message, len(b.history))
	copy(msgs, b.history)
	b.mu.Unlock()

	filtered := msgs[:0:0]
	for _, m := range msgs {
		if opts.AgentID != "" && m.Sender != opts.AgentID && m.Receiver != opts.AgentID {
			continue
		}
		if opts.Type != "" && m.Type != opts.Type {
			continue
		}
		filtered = append(filtered, m)
	}
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[len(filtered)-opts.Limit:]
	}
	return filtered
}

// ClearHistory empties the retained history. Live subscriptions are kept.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
	b.logger.Info("message history cleared")
}
