package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/auditmesh/cache"
	"github.com/hupe1980/auditmesh/core"
	"github.com/hupe1980/auditmesh/detect"
	"github.com/hupe1980/auditmesh/storage"
)

// TypeRiskScanner routes tasks to risk scanner agents.
const TypeRiskScanner = "riskscanner"

// severity classification boundary for detection confidence.
const highSeverityScore = 0.8

// Record is one unit of scannable content from a data source.
type Record struct {
	ID      string
	Content string
}

// SourceReader yields the records of a named data source. Production
// deployments plug in database, filesystem or API readers; the default
// simulated reader serves fixtures for the built-in source names.
type SourceReader interface {
	Read(ctx context.Context, source string) ([]Record, error)
}

// ScannerOptions configures a RiskScanner beyond the shared Options.
type ScannerOptions struct {
	Options
	Detector detect.Detector
	Reader   SourceReader
	// Cache, when set, short-circuits rescans of unchanged sources.
	Cache *cache.Cache
	// Store, when set, persists detected risks.
	Store *storage.Store
}

// RiskScanner scans data sources for sensitive entities and classifies each
// hit by severity. Results go to the coordinator over the bus.
type RiskScanner struct {
	BaseAgent
	detector detect.Detector
	reader   SourceReader
	cache    *cache.Cache
	store    *storage.Store
}

// NewRiskScanner constructs a scanner. Without an explicit detector the
// built-in pattern detector is used; without a reader, the simulated sources.
func NewRiskScanner(optFns ...func(o *ScannerOptions)) *RiskScanner {
	opts := ScannerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Detector == nil {
		opts.Detector = detect.NewPatternDetector()
	}
	if opts.Reader == nil {
		opts.Reader = simulatedSources{}
	}
	return &RiskScanner{
		BaseAgent: NewBaseAgent("scanner", TypeRiskScanner,
			WithBus(opts.Bus), WithState(opts.State), WithQueue(opts.Queue), WithLogger(opts.Logger)),
		detector: opts.Detector,
		reader:   opts.Reader,
		cache:    opts.Cache,
		store:    opts.Store,
	}
}

// Process scans the sources named in input["sources"] (all simulated sources
// when absent) and returns the detected risks.
func (a *RiskScanner) Process(ctx context.Context, input map[string]any) (map[string]any, error) {
	sources := stringSlice(input["sources"])
	if len(sources) == 0 {
		sources = []string{"database", "file", "api"}
	}

	scanID := core.NewID()
	var risks []map[string]any
	var itemsScanned int

	for _, source := range sources {
		sourceRisks, scanned, err := a.scanSource(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("scan source %s: %w", source, err)
		}
		risks = append(risks, sourceRisks...)
		itemsScanned += scanned
	}

	a.persistRisks(scanID, risks)
	a.SetContext("last_scan", map[string]any{"scan_id": scanID, "risks_found": len(risks)})

	result := map[string]any{
		"scan_id":       scanID,
		"risks":         risks,
		"items_scanned": itemsScanned,
		"sources":       sources,
	}
	if wfID := workflowID(input); wfID != "" {
		result["workflow_id"] = wfID
	}

	correlationID, _ := input["correlation_id"].(string)
	a.Send(core.MessageResult, "coordinator", map[string]any{
		"scan_id":     scanID,
		"risks_found": len(risks),
	}, correlationID)

	a.Logger().Info("scan completed",
		"scan_id", scanID, "sources", len(sources), "risks_found", len(risks))

	return result, nil
}

// scanSource reads one source and runs detection over its records, serving
// from the cache when a prior scan of the source is still fresh.
func (a *RiskScanner) scanSource(ctx context.Context, source string) ([]map[string]any, int, error) {
	type cachedScan struct {
		Risks   []map[string]any `json:"risks"`
		Scanned int              `json:"scanned"`
	}

	cacheKey := "scan:" + source
	if a.cache != nil {
		var hit cachedScan
		if err := a.cache.Get(ctx, cacheKey, &hit); err == nil {
			a.Logger().Debug("scan cache hit", "source", source)
			return hit.Risks, hit.Scanned, nil
		}
	}

	records, err := a.reader.Read(ctx, source)
	if err != nil {
		return nil, 0, err
	}

	var risks []map[string]any
	for _, rec := range records {
		entities, err := a.detector.Analyze(ctx, rec.Content, "en")
		if err != nil {
			return nil, 0, err
		}
		for _, e := range entities {
			severity := "medium"
			if e.Score > highSeverityScore {
				severity = "high"
			}
			risks = append(risks, map[string]any{
				"type":     e.Type,
				"source":   source,
				"item_id":  rec.ID,
				"severity": severity,
				"score":    e.Score,
				"detail":   rec.Content[e.Start:e.End],
			})
		}
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, cacheKey, cachedScan{Risks: risks, Scanned: len(records)}); err != nil {
			a.Logger().Warn("scan cache write failed", "source", source, "error", err.Error())
		}
	}
	return risks, len(records), nil
}

func (a *RiskScanner) persistRisks(scanID string, risks []map[string]any) {
	if a.store == nil || len(risks) == 0 {
		return
	}
	rows := make([]storage.Risk, 0, len(risks))
	for _, r := range risks {
		score, _ := r["score"].(float64)
		rows = append(rows, storage.Risk{
			ScanID:     scanID,
			Source:     stringOr(r["source"]),
			EntityType: stringOr(r["type"]),
			Severity:   stringOr(r["severity"]),
			Score:      score,
			Detail:     stringOr(r["detail"]),
		})
	}
	if err := a.store.SaveRisks(rows); err != nil {
		a.Logger().Warn("risk persistence failed", "scan_id", scanID, "error", err.Error())
	}
}

// simulatedSources serves fixture records for the built-in source names so
// the full pipeline runs without external systems.
type simulatedSources struct{}

func (simulatedSources) Read(_ context.Context, source string) ([]Record, error) {
	switch source {
	case "database":
		return []Record{
			{ID: "users-1", Content: "customer record: jane.doe@example.com, status active"},
			{ID: "users-2", Content: "payment card 4111 1111 1111 1111 on file"},
			{ID: "users-3", Content: "shipping address: 42 Market Street"},
		}, nil
	case "file":
		return []Record{
			{ID: "hr-roster.csv", Content: "employee ssn 123-45-6789 tier 2"},
			{ID: "notes.txt", Content: "call back at 555-867-5309 re onboarding"},
		}, nil
	case "api":
		return []Record{
			{ID: "config-prod", Content: "service token sk_live4eC39HqLyjWDarjtT1zdp7dc"},
			{ID: "config-dev", Content: "debug logging enabled"},
		}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

func stringSlice(v any) []string {
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

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

// workflowID finds the owning workflow id either at the top level of the
// input or inside a wrapped upstream result, so the id survives pipeline
// steps that nest the previous output under an input key.
func workflowID(input map[string]any) string {
	if id := stringOr(input["workflow_id"]); id != "" {
		return id
	}
	for _, key := range []string{"scan_result", "match_result"} {
		if nested, ok := input[key].(map[string]any); ok {
			if id := stringOr(nested["workflow_id"]); id != "" {
				return id
			}
		}
	}
	return ""
}
