// Package workflow implements the three composable execution patterns that
// turn a list of agents into a single logical execution: a sequential
// pipeline, a parallel fan-out/gather, and a critic-feedback refinement
// loop. The patterns are pure algorithms: they hold no state beyond the call
// and produce a uniform result envelope.
package workflow

import "time"

// Pattern tags identify the envelope shape.
const (
	PatternSequential = "sequential"
	PatternParallel   = "parallel"
	PatternLoop       = "loop"
)

// StepResult records one executed step of a sequential pipeline.
type StepResult struct {
	Agent    string         `json:"agent"`
	Result   map[string]any `json:"result"`
	Duration time.Duration  `json:"duration"`
}

// SequentialResult is the envelope returned by Sequential.
type SequentialResult struct {
	Pattern     string         `json:"pattern"`
	Steps       []StepResult   `json:"steps"`
	FinalResult map[string]any `json:"final_result"`
}

// BranchResult records one successful parallel branch.
type BranchResult struct {
	Agent  string         `json:"agent"`
	Result map[string]any `json:"result"`
}

// BranchFailure records one failed parallel branch.
type BranchFailure struct {
	Agent string `json:"agent"`
	Error string `json:"error"`
}

// ParallelResult is the envelope returned by Parallel. Duration is wall
// clock from launch to the completion of the slowest branch.
type ParallelResult struct {
	Pattern    string          `json:"pattern"`
	Successful []BranchResult  `json:"successful"`
	Failed     []BranchFailure `json:"failed"`
	Duration   time.Duration   `json:"duration"`
}

// Iteration records one loop pass for audit and debugging.
type Iteration struct {
	Iteration    int            `json:"iteration"`
	AgentResult  map[string]any `json:"agent_result"`
	Validation   map[string]any `json:"validation"`
	QualityScore float64        `json:"quality_score"`
	Valid        bool           `json:"is_valid"`
}

// ExhaustedWarning marks a loop result that never met the quality threshold.
const ExhaustedWarning = "max iterations reached without meeting quality threshold"

// LoopResult is the envelope returned by Loop.
type LoopResult struct {
	Pattern      string         `json:"pattern"`
	Iterations   int            `json:"iterations"`
	FinalResult  map[string]any `json:"final_result"`
	FinalQuality float64        `json:"final_quality"`
	History      []Iteration    `json:"history"`
	Warning      string         `json:"warning,omitempty"`
}

// cloneInput shallow-copies an input map so patterns never mutate caller
// state.
func cloneInput(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
