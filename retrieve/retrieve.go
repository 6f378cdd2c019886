// Package retrieve provides similarity search over policy documents. The
// policy matcher uses it to pull the clauses most relevant to a set of
// detected risks.
package retrieve

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/auditmesh/core"
)

// Document is a policy clause or guideline held in the index.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	// Distance is the dissimilarity to the query, populated on search
	// results only. Lower is closer; 0 is an exact-overlap match.
	Distance float64 `json:"distance,omitempty"`
}

// Retriever indexes documents and answers nearest-neighbour queries.
type Retriever interface {
	AddDocuments(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// InMemoryRetriever ranks documents by token overlap with the query. It is
// the default backend for tests and small policy sets; swap in a vector
// store behind the same interface for production corpora.
type InMemoryRetriever struct {
	mu   sync.RWMutex
	docs []Document
}

// NewInMemoryRetriever constructs an empty index.
func NewInMemoryRetriever() *InMemoryRetriever {
	return &InMemoryRetriever{}
}

// AddDocuments implements Retriever. Documents without an ID are assigned one.
func (r *InMemoryRetriever) AddDocuments(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = core.NewID()
		}
		r.docs = append(r.docs, doc)
	}
	return nil
}

// Search implements Retriever, returning up to k documents ordered by
// ascending distance. Documents sharing no tokens with the query are
// excluded entirely.
func (r *InMemoryRetriever) Search(ctx context.Context, query string, k int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []Document
	for _, doc := range r.docs {
		overlap := overlapRatio(queryTokens, tokenize(doc.Text))
		if overlap == 0 {
			continue
		}
		match := doc
		match.Distance = 1 - overlap
		results = append(results, match)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if len(f) > 2 {
			tokens[f] = struct{}{}
		}
	}
	return tokens
}

// overlapRatio is the share of query tokens present in the document.
func overlapRatio(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	var hits int
	for tok := range query {
		if _, ok := doc[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
