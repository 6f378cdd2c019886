package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/auditmesh/model"
)

// TypeCritic routes tasks to critic agents.
const TypeCritic = "critic"

// DefaultQualityThreshold is the minimum mean quality score the critic
// accepts when the caller supplies no validation criteria.
const DefaultQualityThreshold = 0.7

// requiredKeys lists the output keys each agent type must produce for the
// completeness check.
var requiredKeys = map[string][]string{
	TypeRiskScanner:   {"scan_id", "risks", "items_scanned"},
	TypePolicyMatcher: {"findings", "gaps"},
	TypeReportWriter:  {"report_id", "report"},
}

// CriticOptions configures a Critic beyond the shared Options.
type CriticOptions struct {
	Options
	// Model, when set, adds a semantic accuracy dimension. A model failure
	// drops the dimension instead of penalizing the output.
	Model model.Model
}

// Critic validates another agent's output along completeness and consistency
// dimensions and emits per-dimension quality scores plus recommendations.
type Critic struct {
	BaseAgent
	model model.Model
}

// NewCritic constructs a critic.
func NewCritic(optFns ...func(o *CriticOptions)) *Critic {
	opts := CriticOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Critic{
		BaseAgent: NewBaseAgent("critic", TypeCritic,
			WithBus(opts.Bus), WithState(opts.State), WithQueue(opts.Queue), WithLogger(opts.Logger)),
		model: opts.Model,
	}
}

// Process validates input["agent_output"] produced by input["agent_type"].
// The acceptance threshold can be tuned via
// input["validation_criteria"]["quality_threshold"].
func (a *Critic) Process(ctx context.Context, input map[string]any) (map[string]any, error) {
	output, ok := input["agent_output"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("input carries no agent_output to validate")
	}
	agentType := stringOr(input["agent_type"])

	threshold := DefaultQualityThreshold
	if criteria, ok := input["validation_criteria"].(map[string]any); ok {
		if th, ok := criteria["quality_threshold"].(float64); ok {
			threshold = th
		}
	}

	var recommendations []string

	completeness, missing := a.checkCompleteness(output, agentType)
	for _, key := range missing {
		recommendations = append(recommendations, fmt.Sprintf("Add the missing %q field to the output.", key))
	}

	consistency, issues := a.checkConsistency(output, agentType)
	recommendations = append(recommendations, issues...)

	scores := map[string]float64{
		"completeness": completeness,
		"consistency":  consistency,
	}
	if accuracy, ok := a.checkAccuracy(ctx, output, agentType); ok {
		scores["accuracy"] = accuracy
		if accuracy < threshold {
			recommendations = append(recommendations, "Review the output for factual accuracy.")
		}
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	isValid := mean >= threshold && len(missing) == 0

	a.Logger().Debug("validation completed",
		"agent_type", agentType, "mean_score", mean, "is_valid", isValid)

	return map[string]any{
		"quality_scores":  scores,
		"is_valid":        isValid,
		"recommendations": recommendations,
	}, nil
}

// checkCompleteness scores the presence of the keys required for the agent
// type. Unknown agent types only need a non-empty output.
func (a *Critic) checkCompleteness(output map[string]any, agentType string) (float64, []string) {
	required, known := requiredKeys[agentType]
	if !known {
		if len(output) == 0 {
			return 0, []string{"result"}
		}
		return 1, nil
	}

	var missing []string
	for _, key := range required {
		if _, ok := output[key]; !ok {
			missing = append(missing, key)
		}
	}
	return float64(len(required)-len(missing)) / float64(len(required)), missing
}

// checkConsistency applies per-agent-type structural rules.
func (a *Critic) checkConsistency(output map[string]any, agentType string) (float64, []string) {
	var issues []string

	switch agentType {
	case TypeRiskScanner:
		for _, risk := range mapSlice(output["risks"]) {
			if stringOr(risk["type"]) == "" || stringOr(risk["severity"]) == "" {
				issues = append(issues, "Every risk entry needs a type and a severity.")
				break
			}
		}
	case TypePolicyMatcher:
		for _, finding := range mapSlice(output["findings"]) {
			if stringOr(finding["policy_id"]) == "" {
				issues = append(issues, "Every finding must reference the policy it matched.")
				break
			}
		}
	case TypeReportWriter:
		report, ok := output["report"].(map[string]any)
		if ok {
			if _, hasSections := report["sections"].(map[string]any); !hasSections {
				issues = append(issues, "The report needs a sections block.")
			}
		}
	}

	if len(issues) > 0 {
		return 0.5, issues
	}
	return 1, nil
}

// checkAccuracy asks the model to judge the output. The boolean return
// reports whether the dimension applies; it is false without a model or when
// the model call fails, so degraded runs are never penalized.
func (a *Critic) checkAccuracy(ctx context.Context, output map[string]any, agentType string) (float64, bool) {
	if a.model == nil {
		return 0, false
	}

	prompt := fmt.Sprintf(
		"Does this %s output look plausible and internally consistent? Answer yes or no.\n%v",
		agentType, output)
	answer, err := a.model.Generate(ctx, prompt)
	if err != nil {
		a.Logger().Warn("accuracy check skipped", "error", err.Error())
		return 0, false
	}

	if strings.HasPrefix(strings.TrimSpace(strings.ToLower(answer)), "yes") {
		return 1, true
	}
	return 0.4, true
}
