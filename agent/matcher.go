package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/model"
	"github.com/hupe1980/auditmesh/retrieve"
	"github.com/hupe1980/auditmesh/storage"
)

// TypePolicyMatcher routes tasks to policy matcher agents.
const TypePolicyMatcher = "policymatcher"

// DefaultPolicyTopK is how many policy clauses are considered per risk type.
const DefaultPolicyTopK = 3

// MatcherOptions configures a PolicyMatcher beyond the shared Options.
type MatcherOptions struct {
	Options
	Retriever retrieve.Retriever
	// Model, when set, produces a posture summary. Model failures degrade to
	// the heuristic summary instead of failing the match.
	Model model.Model
	// Store, when set, persists findings.
	Store *storage.Store
	TopK  int
}

// PolicyMatcher maps detected risks to the policy clauses that govern them
// and reports risks no policy covers as gaps.
type PolicyMatcher struct {
	BaseAgent
	retriever retrieve.Retriever
	model     model.Model
	store     *storage.Store
	topK      int
}

// NewPolicyMatcher constructs a matcher. Without an explicit retriever an
// in-memory index seeded with the baseline policy set is used.
func NewPolicyMatcher(optFns ...func(o *MatcherOptions)) *PolicyMatcher {
	opts := MatcherOptions{TopK: DefaultPolicyTopK}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Retriever == nil {
		opts.Retriever = baselinePolicies()
	}
	return &PolicyMatcher{
		BaseAgent: NewBaseAgent("matcher", TypePolicyMatcher,
			WithBus(opts.Bus), WithState(opts.State), WithQueue(opts.Queue), WithLogger(opts.Logger)),
		retriever: opts.Retriever,
		model:     opts.Model,
		store:     opts.Store,
		topK:      opts.TopK,
	}
}

// Process matches the risks in input["risks"] (or a nested scan result under
// input["scan_result"]) against the policy index.
func (a *PolicyMatcher) Process(ctx context.Context, input map[string]any) (map[string]any, error) {
	scanID, risks := extractRisks(input)
	if risks == nil {
		return nil, fmt.Errorf("input carries no risks to match")
	}

	var findings []map[string]any
	var gaps []map[string]any
	checked := make(map[string]struct{})

	for _, risk := range risks {
		riskType := stringOr(risk["type"])
		if riskType == "" {
			continue
		}
		if _, done := checked[riskType]; done {
			continue
		}
		checked[riskType] = struct{}{}

		docs, err := a.retriever.Search(ctx, policyQuery(riskType), a.topK)
		if err != nil {
			return nil, fmt.Errorf("policy lookup for %s: %w", riskType, err)
		}
		if len(docs) == 0 {
			gaps = append(gaps, map[string]any{
				"risk_type": riskType,
				"reason":    "no policy clause covers this risk type",
			})
			continue
		}
		for _, doc := range docs {
			findings = append(findings, map[string]any{
				"risk_type": riskType,
				"policy_id": doc.ID,
				"policy":    doc.Text,
				"relevance": 1 - doc.Distance,
			})
		}
	}

	summary := a.summarize(ctx, findings, gaps)
	a.persistFindings(scanID, findings, gaps)
	a.SetContext("last_match", map[string]any{
		"findings": len(findings), "gaps": len(gaps),
	})

	correlationID, _ := input["correlation_id"].(string)
	a.Send(core.MessageResult, "coordinator", map[string]any{
		"findings": len(findings),
		"gaps":     len(gaps),
	}, correlationID)

	result := map[string]any{
		"scan_id":          scanID,
		"findings":         findings,
		"gaps":             gaps,
		"policies_checked": len(checked),
		"summary":          summary,
	}
	if wfID := workflowID(input); wfID != "" {
		result["workflow_id"] = wfID
	}
	return result, nil
}

// summarize asks the model for a posture summary, degrading to a counting
// heuristic when no model is wired or the call fails.
func (a *PolicyMatcher) summarize(ctx context.Context, findings, gaps []map[string]any) string {
	heuristic := fmt.Sprintf("%d policy findings, %d coverage gaps", len(findings), len(gaps))
	if a.model == nil {
		return heuristic
	}

	var sb strings.Builder
	sb.WriteString("Summarize the compliance posture given these policy findings:\n")
	for _, f := range findings {
		fmt.Fprintf(&sb, "- risk %s matched policy %s\n", f["risk_type"], f["policy_id"])
	}
	for _, g := range gaps {
		fmt.Fprintf(&sb, "- risk %s has no covering policy\n", g["risk_type"])
	}

	summary, err := a.model.Generate(ctx, sb.String())
	if err != nil {
		a.Logger().Warn("posture summary degraded to heuristic", "error", err.Error())
		return heuristic
	}
	return summary
}

func (a *PolicyMatcher) persistFindings(scanID string, findings, gaps []map[string]any) {
	if a.store == nil {
		return
	}
	rows := make([]storage.Finding, 0, len(findings)+len(gaps))
	for _, f := range findings {
		relevance, _ := f["relevance"].(float64)
		rows = append(rows, storage.Finding{
			ScanID:    scanID,
			RiskType:  stringOr(f["risk_type"]),
			PolicyID:  stringOr(f["policy_id"]),
			Policy:    stringOr(f["policy"]),
			Relevance: relevance,
		})
	}
	for _, g := range gaps {
		rows = append(rows, storage.Finding{
			ScanID:   scanID,
			RiskType: stringOr(g["risk_type"]),
			Gap:      true,
		})
	}
	if err := a.store.SaveFindings(rows); err != nil {
		a.Logger().Warn("finding persistence failed", "scan_id", scanID, "error", err.Error())
	}
}

// extractRisks pulls the risk list either directly from the input or from a
// nested scan result produced by an upstream pipeline step.
func extractRisks(input map[string]any) (string, []map[string]any) {
	source := input
	if nested, ok := input["scan_result"].(map[string]any); ok {
		source = nested
	}
	scanID := stringOr(source["scan_id"])
	switch risks := source["risks"].(type) {
	case []map[string]any:
		return scanID, risks
	case []any:
		out := make([]map[string]any, 0, len(risks))
		for _, r := range risks {
			if m, ok := r.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return scanID, out
	}
	return scanID, nil
}

// policyQuery widens a bare entity type into retrieval-friendly terms.
func policyQuery(riskType string) string {
	switch riskType {
	case "email":
		return "personal email addresses protection"
	case "ssn":
		return "social security numbers identifiers"
	case "credit_card":
		return "credit card payment data storage"
	case "phone":
		return "phone numbers contact data"
	case "api_key":
		return "credentials secrets api keys"
	default:
		return strings.ReplaceAll(riskType, "_", " ")
	}
}

// baselinePolicies builds the default policy index used when no retriever is
// supplied.
func baselinePolicies() retrieve.Retriever {
	r := retrieve.NewInMemoryRetriever()
	// Seeding an in-memory index cannot fail.
	_ = r.AddDocuments(context.Background(), []retrieve.Document{
		{ID: "pol-pii-01", Text: "Personal email addresses require encryption at rest and in transit", Metadata: map[string]any{"framework": "gdpr"}},
		{ID: "pol-pii-02", Text: "Social security numbers and government identifiers must be masked in all logs", Metadata: map[string]any{"framework": "gdpr"}},
		{ID: "pol-pci-01", Text: "Credit card and payment data storage must be PCI compliant and tokenized", Metadata: map[string]any{"framework": "pci-dss"}},
		{ID: "pol-sec-01", Text: "API keys credentials and secrets must live in a managed vault, never in source or configs", Metadata: map[string]any{"framework": "soc2"}},
	})
	return r
}
