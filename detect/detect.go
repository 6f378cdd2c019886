// Package detect provides pattern-based detection of sensitive entities in
// audit content. The risk scanner uses it to flag personally identifiable
// information and credentials in scanned records.
package detect

import (
	"context"
	"regexp"
	"sort"
)

// Entity is a single detection hit inside a piece of text.
type Entity struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// Detector analyzes text for sensitive entities.
type Detector interface {
	Analyze(ctx context.Context, text, language string) ([]Entity, error)
}

// pattern pairs a compiled expression with its entity type and confidence.
type pattern struct {
	entityType string
	score      float64
	re         *regexp.Regexp
}

// PatternDetector recognizes common sensitive-data shapes with regular
// expressions. It is language-agnostic; the language argument is accepted
// for interface compatibility and ignored.
type PatternDetector struct {
	patterns []pattern
}

// NewPatternDetector constructs a detector with the built-in pattern set:
// email addresses, US phone numbers, social security numbers, credit card
// numbers and API key material.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{
		patterns: []pattern{
			{"email", 0.95, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
			{"ssn", 0.9, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
			{"credit_card", 0.85, regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
			{"phone", 0.7, regexp.MustCompile(`\b(?:\+?1[ .-]?)?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}\b`)},
			{"api_key", 0.8, regexp.MustCompile(`\b(?:sk|pk|api|key)[-_][A-Za-z0-9]{16,}\b`)},
		},
	}
}

// Analyze implements Detector. Matches are returned ordered by start offset.
// Overlapping matches of different types are all reported; the caller decides
// how to weigh them.
func (d *PatternDetector) Analyze(ctx context.Context, text, language string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entities []Entity
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{
				Type:  p.entityType,
				Score: p.score,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Start != entities[j].Start {
			return entities[i].Start < entities[j].Start
		}
		return entities[i].Type < entities[j].Type
	})
	return entities, nil
}
