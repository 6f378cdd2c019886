package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/auditmesh/core"
)

// Branch pairs an agent with its own input for a parallel run.
type Branch struct {
	Agent core.Agent
	Input map[string]any
}

// Parallel launches every branch concurrently and waits for all of them to
// finish, collecting results and errors without letting one failure cancel
// the others. Successes and failures are reported separately in the
// envelope, ordered by branch position; no ordering is guaranteed between
// the branches' executions themselves.
func Parallel(ctx context.Context, branches []Branch) *ParallelResult {
	type outcome struct {
		result map[string]any
		err    error
	}
	outcomes := make([]outcome, len(branches))

	start := time.Now()
	var wg sync.WaitGroup
	for i, branch := range branches {
		wg.Add(1)
		go func(i int, b Branch) {
			defer wg.Done()
			result, err := b.Agent.Process(ctx, b.Input)
			outcomes[i] = outcome{result: result, err: err}
		}(i, branch)
	}
	wg.Wait()
	duration := time.Since(start)

	res := &ParallelResult{Pattern: PatternParallel, Duration: duration}
	for i, o := range outcomes {
		agentID := branches[i].Agent.ID()
		if o.err != nil {
			res.Failed = append(res.Failed, BranchFailure{Agent: agentID, Error: o.err.Error()})
			continue
		}
		res.Successful = append(res.Successful, BranchResult{Agent: agentID, Result: o.result})
	}
	return res
}
