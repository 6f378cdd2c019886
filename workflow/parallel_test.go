package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallel_AllBranchesSucceed(t *testing.T) {
	mk := func(id string) Branch {
		return Branch{
			Agent: newStubAgent(id, "scanner", func(_ context.Context, input map[string]any) (map[string]any, error) {
				return map[string]any{"source": input["source"]}, nil
			}),
			Input: map[string]any{"source": id},
		}
	}

	res := Parallel(context.Background(), []Branch{mk("a"), mk("b"), mk("c")})

	assert.Equal(t, PatternParallel, res.Pattern)
	require.Len(t, res.Successful, 3)
	assert.Empty(t, res.Failed)
	// Results keep branch order even though execution is concurrent.
	assert.Equal(t, "a", res.Successful[0].Agent)
	assert.Equal(t, "b", res.Successful[1].Agent)
	assert.Equal(t, "c", res.Successful[2].Agent)
	assert.Equal(t, "b", res.Successful[1].Result["source"])
}

// One failing branch must not prevent the others from completing.
func TestParallel_FailureIsolated(t *testing.T) {
	var completed atomic.Int32
	ok := func(id string) Branch {
		return Branch{
			Agent: newStubAgent(id, "scanner", func(_ context.Context, _ map[string]any) (map[string]any, error) {
				completed.Add(1)
				return map[string]any{"agent": id}, nil
			}),
		}
	}
	bad := Branch{
		Agent: newStubAgent("broken", "scanner", func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return nil, errors.New("source unreachable")
		}),
	}

	res := Parallel(context.Background(), []Branch{ok("a"), bad, ok("b")})

	assert.Equal(t, int32(2), completed.Load())
	require.Len(t, res.Successful, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "broken", res.Failed[0].Agent)
	assert.Contains(t, res.Failed[0].Error, "source unreachable")
}

func TestParallel_IndependentInputs(t *testing.T) {
	seen := make([]string, 2)
	mk := func(i int, id string) Branch {
		return Branch{
			Agent: newStubAgent(id, "scanner", func(_ context.Context, input map[string]any) (map[string]any, error) {
				seen[i], _ = input["target"].(string)
				return map[string]any{}, nil
			}),
			Input: map[string]any{"target": id + "-target"},
		}
	}

	Parallel(context.Background(), []Branch{mk(0, "a"), mk(1, "b")})

	assert.Equal(t, "a-target", seen[0])
	assert.Equal(t, "b-target", seen[1])
}

func TestParallel_NoBranches(t *testing.T) {
	res := Parallel(context.Background(), nil)
	assert.Empty(t, res.Successful)
	assert.Empty(t, res.Failed)
}
