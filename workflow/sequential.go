package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/auditmesh/core"
)

// Step pairs an agent with the optional key its input is wrapped under.
type Step struct {
	Agent core.Agent
	// InputKey, when set, wraps the previous step's output as
	// {InputKey: output} before handing it to the agent. When empty the
	// output is passed through directly.
	InputKey string
}

// Sequential executes the steps one at a time: each agent's result becomes
// the next agent's input. The n-th agent does not start before the (n-1)-th
// completed. Any agent error aborts the remaining sequence and propagates to
// the caller; no partial envelope is returned, so pipeline failures surface
// instead of being masked.
func Sequential(ctx context.Context, steps []Step, initial map[string]any) (*SequentialResult, error) {
	current := initial
	results := make([]StepResult, 0, len(steps))

	for i, step := range steps {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		input := current
		if step.InputKey != "" {
			input = map[string]any{step.InputKey: current}
		}
		if input == nil {
			input = map[string]any{}
		}

		start := time.Now()
		result, err := step.Agent.Process(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("sequential step %d failed at agent %s: %w", i+1, step.Agent.ID(), err)
		}

		results = append(results, StepResult{
			Agent:    step.Agent.ID(),
			Result:   result,
			Duration: time.Since(start),
		})
		current = result
	}

	return &SequentialResult{
		Pattern:     PatternSequential,
		Steps:       results,
		FinalResult: current,
	}, nil
}
