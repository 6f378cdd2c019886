package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/model"
	"github.com/hupe1980/auditmesh/storage"
)

// TypeReportWriter routes tasks to report writer agents.
const TypeReportWriter = "reportwriter"

// WriterOptions configures a ReportWriter beyond the shared Options.
type WriterOptions struct {
	Options
	// OutputDir receives the JSON report artifacts. Defaults to data/reports.
	OutputDir string
	// Store, when set, records report metadata.
	Store *storage.Store
	// Model, when set, writes the executive summary. Failures degrade to a
	// templated summary.
	Model model.Model
}

// ReportWriter assembles audit findings into a structured report, writes the
// JSON artifact to disk and records its metadata.
type ReportWriter struct {
	BaseAgent
	outputDir string
	store     *storage.Store
	model     model.Model
}

// NewReportWriter constructs a writer.
func NewReportWriter(optFns ...func(o *WriterOptions)) *ReportWriter {
	opts := WriterOptions{OutputDir: filepath.Join("data", "reports")}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ReportWriter{
		BaseAgent: NewBaseAgent("writer", TypeReportWriter,
			WithBus(opts.Bus), WithState(opts.State), WithQueue(opts.Queue), WithLogger(opts.Logger)),
		outputDir: opts.OutputDir,
		store:     opts.Store,
		model:     opts.Model,
	}
}

// Process builds a report from the match result in the input (either the
// top-level keys or nested under "match_result"), incorporating critic
// feedback from refinement loops when present.
func (a *ReportWriter) Process(ctx context.Context, input map[string]any) (map[string]any, error) {
	source := input
	if nested, ok := input["match_result"].(map[string]any); ok {
		source = nested
	}

	findings := mapSlice(source["findings"])
	gaps := mapSlice(source["gaps"])
	scanID := stringOr(source["scan_id"])

	reportID := "report-" + core.NewID()[:8]
	generatedAt := time.Now().UTC()

	report := map[string]any{
		"report_id":    reportID,
		"scan_id":      scanID,
		"title":        "Compliance Audit Report",
		"generated_at": generatedAt.Format(time.RFC3339),
		"sections": map[string]any{
			"overview":        a.overview(ctx, findings, gaps),
			"findings":        findings,
			"gaps":            gaps,
			"recommendations": recommendationsFor(findings, gaps),
		},
		"statistics": map[string]any{
			"finding_count": len(findings),
			"gap_count":     len(gaps),
		},
	}

	// Refinement loops feed critic recommendations back in; surface them so
	// reviewers can see what changed between revisions.
	if feedback := stringSliceLoose(input["feedback"]); len(feedback) > 0 {
		report["revision_notes"] = feedback
	}

	path, err := a.writeArtifact(reportID, report)
	if err != nil {
		return nil, err
	}

	a.persistMetadata(reportID, path, findings, gaps, workflowID(input))
	a.SetContext("last_report", reportID)

	correlationID, _ := input["correlation_id"].(string)
	a.Send(core.MessageResult, "coordinator", map[string]any{
		"report_id": reportID,
		"path":      path,
	}, correlationID)

	a.Logger().Info("report written", "report_id", reportID, "path", path)

	return map[string]any{
		"report_id": reportID,
		"path":      path,
		"report":    report,
	}, nil
}

// overview produces the executive summary, via the model when wired.
func (a *ReportWriter) overview(ctx context.Context, findings, gaps []map[string]any) string {
	heuristic := fmt.Sprintf(
		"The audit matched %d policy findings and identified %d coverage gaps.",
		len(findings), len(gaps))
	if a.model == nil {
		return heuristic
	}

	var sb strings.Builder
	sb.WriteString("Write a two-sentence executive summary for a compliance audit with these results:\n")
	for _, f := range findings {
		fmt.Fprintf(&sb, "- finding: risk %s governed by policy %s\n", f["risk_type"], f["policy_id"])
	}
	for _, g := range gaps {
		fmt.Fprintf(&sb, "- gap: risk %s is uncovered\n", g["risk_type"])
	}

	summary, err := a.model.Generate(ctx, sb.String())
	if err != nil {
		a.Logger().Warn("executive summary degraded to heuristic", "error", err.Error())
		return heuristic
	}
	return summary
}

func (a *ReportWriter) writeArtifact(reportID string, report map[string]any) (string, error) {
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	path := filepath.Join(a.outputDir, reportID+".json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report %s: %w", reportID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", reportID, err)
	}
	return path, nil
}

func (a *ReportWriter) persistMetadata(reportID, path string, findings, gaps []map[string]any, workflowID string) {
	if a.store == nil {
		return
	}
	err := a.store.SaveReport(&storage.ReportMetadata{
		ReportID:   reportID,
		WorkflowID: workflowID,
		Title:      "Compliance Audit Report",
		Path:       path,
		RiskCount:  len(findings),
		GapCount:   len(gaps),
	})
	if err != nil {
		a.Logger().Warn("report metadata persistence failed", "report_id", reportID, "error", err.Error())
	}
}

// recommendationsFor derives remediation advice from gaps and high-relevance
// findings.
func recommendationsFor(findings, gaps []map[string]any) []string {
	var recs []string
	for _, g := range gaps {
		recs = append(recs, fmt.Sprintf("Define a policy covering %s data before the next audit cycle.", g["risk_type"]))
	}
	for _, f := range findings {
		if rel, _ := f["relevance"].(float64); rel >= 0.5 {
			recs = append(recs, fmt.Sprintf("Verify %s handling complies with policy %s.", f["risk_type"], f["policy_id"]))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "No remediation required; maintain current controls.")
	}
	return recs
}

func mapSlice(v any) []map[string]any {
	switch vv := v.(type) {
	case []map[string]any:
		return vv
	case []any:
		out := make([]map[string]any, 0, len(vv))
		for _, item := range vv {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func stringSliceLoose(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
