package workflow

import (
	"context"
	"fmt"

	"github.com/hupe1980/auditmesh/core"
)

// Loop defaults.
const (
	DefaultMaxIterations    = 3
	DefaultQualityThreshold = 0.7
)

// LoopOptions configures the critic-feedback loop.
type LoopOptions struct {
	MaxIterations    int
	QualityThreshold float64
}

// WithMaxIterations overrides the iteration budget.
func WithMaxIterations(n int) func(o *LoopOptions) {
	return func(o *LoopOptions) { o.MaxIterations = n }
}

// WithQualityThreshold overrides the minimum acceptable mean quality score.
func WithQualityThreshold(th float64) func(o *LoopOptions) {
	return func(o *LoopOptions) { o.QualityThreshold = th }
}

// Loop runs the critic-feedback refinement pattern: the primary agent
// produces output, the critic validates it, and while the critic rejects it
// the primary is retried with accumulated feedback. Feedback always merges
// into the ORIGINAL initial input, never the previously modified one, so
// recommendations accumulate additively. When the threshold is never met the
// iteration with the highest quality score is returned, tagged with
// ExhaustedWarning. Every iteration is retained in the history.
func Loop(ctx context.Context, primary, critic core.Agent, initial map[string]any, optFns ...func(o *LoopOptions)) (*LoopResult, error) {
	opts := LoopOptions{
		MaxIterations:    DefaultMaxIterations,
		QualityThreshold: DefaultQualityThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}

	current := initial
	history := make([]Iteration, 0, opts.MaxIterations)

	for iteration := 0; iteration < opts.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		agentResult, err := primary.Process(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("loop iteration %d failed at agent %s: %w", iteration+1, primary.ID(), err)
		}

		criticInput := map[string]any{
			"agent_output": agentResult,
			"agent_type":   primary.Type(),
			"validation_criteria": map[string]any{
				"quality_threshold": opts.QualityThreshold,
			},
		}
		validation, err := critic.Process(ctx, criticInput)
		if err != nil {
			return nil, fmt.Errorf("loop iteration %d failed at critic %s: %w", iteration+1, critic.ID(), err)
		}

		quality := meanQualityScore(validation)
		valid, _ := validation["is_valid"].(bool)

		history = append(history, Iteration{
			Iteration:    iteration + 1,
			AgentResult:  agentResult,
			Validation:   validation,
			QualityScore: quality,
			Valid:        valid,
		})

		if valid && quality >= opts.QualityThreshold {
			return &LoopResult{
				Pattern:      PatternLoop,
				Iterations:   iteration + 1,
				FinalResult:  agentResult,
				FinalQuality: quality,
				History:      history,
			}, nil
		}

		if iteration < opts.MaxIterations-1 {
			next := cloneInput(initial)
			next["feedback"] = recommendations(validation)
			next["previous_attempt"] = agentResult
			current = next
		}
	}

	best := history[0]
	for _, it := range history[1:] {
		if it.QualityScore > best.QualityScore {
			best = it
		}
	}

	return &LoopResult{
		Pattern:      PatternLoop,
		Iterations:   opts.MaxIterations,
		FinalResult:  best.AgentResult,
		FinalQuality: best.QualityScore,
		History:      history,
		Warning:      ExhaustedWarning,
	}, nil
}

// meanQualityScore averages the critic's per-dimension quality scores,
// tolerating both typed and decoded-from-JSON map shapes. A missing or
// empty score map yields 0.
func meanQualityScore(validation map[string]any) float64 {
	var sum float64
	var n int
	switch scores := validation["quality_scores"].(type) {
	case map[string]float64:
		for _, v := range scores {
			sum += v
			n++
		}
	case map[string]any:
		for _, v := range scores {
			if f, ok := toFloat(v); ok {
				sum += f
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func recommendations(validation map[string]any) []string {
	switch recs := validation["recommendations"].(type) {
	case []string:
		return recs
	case []any:
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int:
		return float64(f), true
	}
	return 0, false
}
