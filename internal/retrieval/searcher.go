// Package retrieval exposes relevance search over a user's accumulated
// knowledge. The actor treats it as best-effort: a failed search degrades a
// chat turn to plain history, it never fails it.
package retrieval

import (
	"context"
	"strings"

	"github.com/soyeahso/minder/internal/logging"
	"github.com/soyeahso/minder/internal/store"
)

// DefaultTopK bounds how many snippets a search returns by default.
const DefaultTopK = 3

// Searcher finds text snippets relevant to a query.
type Searcher interface {
	Search(ctx context.Context, userID, query string, topK int) ([]string, error)
}

// FTSSearcher implements Searcher over the SQLite FTS5 knowledge index.
type FTSSearcher struct {
	chunks *store.KnowledgeStore
	log    *logging.Logger
}

// NewFTSSearcher creates a full-text searcher over the knowledge store.
func NewFTSSearcher(chunks *store.KnowledgeStore, log *logging.Logger) *FTSSearcher {
	return &FTSSearcher{chunks: chunks, log: log.Sub("retrieval")}
}

// Search returns up to topK snippet texts ranked by relevance.
func (s *FTSSearcher) Search(ctx context.Context, userID, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	query = ftsQuery(query)
	if query == "" {
		return nil, nil
	}

	results, err := s.chunks.Search(userID, query, topK)
	if err != nil {
		return nil, err
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, r.Content)
	}
	return snippets, nil
}

// ftsQuery turns free text into an OR-joined FTS5 match expression. FTS5
// treats bare punctuation as syntax, so each term is quoted.
func ftsQuery(text string) string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'.,!?;:`)
		if f == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, ``)+`"`)
	}
	return strings.Join(terms, " OR ")
}
