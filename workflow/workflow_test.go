package workflow

import (
	"context"

	"github.com/hupe1980/auditmesh/core"
)

var _ core.Agent = (*stubAgent)(nil)

// stubAgent implements core.Agent around a plain function.
type stubAgent struct {
	id        string
	agentType string
	fn        func(ctx context.Context, input map[string]any) (map[string]any, error)
}

func newStubAgent(id, agentType string, fn func(ctx context.Context, input map[string]any) (map[string]any, error)) *stubAgent {
	return &stubAgent{id: id, agentType: agentType, fn: fn}
}

func (s *stubAgent) ID() string   { return s.id }
func (s *stubAgent) Type() string { return s.agentType }

func (s *stubAgent) Process(ctx context.Context, input map[string]any) (map[string]any, error) {
	return s.fn(ctx, input)
}
