package grounding

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/preceptor/internal/storage"
)

// DocSearcher is the keyword-search surface of the storage layer.
type DocSearcher interface {
	SearchReferenceDocs(terms []string, limit int) ([]storage.ReferenceDoc, error)
}

const maxKeywordTerms = 5

// KeywordProvider is the secondary grounding provider: a term search over the
// stored reference docs.
type KeywordProvider struct {
	store DocSearcher
	limit int
}

// NewKeywordProvider creates a KeywordProvider returning up to limit docs.
func NewKeywordProvider(store DocSearcher, limit int) *KeywordProvider {
	if limit <= 0 {
		limit = 5
	}
	return &KeywordProvider{store: store, limit: limit}
}

func (p *KeywordProvider) Name() string { return "keyword" }

// Fetch splits the query into terms and returns matching reference docs.
func (p *KeywordProvider) Fetch(ctx context.Context, query string) ([]Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) > maxKeywordTerms {
		terms = terms[:maxKeywordTerms]
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty query")
	}

	docs, err := p.store.SearchReferenceDocs(terms, p.limit)
	if err != nil {
		return nil, fmt.Errorf("searching reference docs: %w", err)
	}

	passages := make([]Passage, 0, len(docs))
	for _, d := range docs {
		passages = append(passages, Passage{Source: "keyword", Title: d.Title, Text: d.Content})
	}
	return passages, nil
}
