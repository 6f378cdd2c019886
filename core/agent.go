package core

import "context"

// Agent is the contract every auditmesh worker implements.
//
// Agents are named units of execution: the coordinator hands them structured
// input, they perform their work (possibly calling external collaborators,
// publishing messages or enqueueing further tasks) and return a structured
// result. Implementations must respect context cancellation and report
// failures through the returned error; retry classification is expressed with
// TaskError rather than panics.
type Agent interface {
	// ID returns the unique instance identifier (name plus random suffix).
	ID() string
	// Type returns the routing key used by the task queue and registries.
	Type() string
	// Process performs one unit of work.
	Process(ctx context.Context, input map[string]any) (map[string]any, error)
}

// AgentInfo carries identifying details about an agent used in logs and
// registry entries.
type AgentInfo struct{ ID, Type string }
