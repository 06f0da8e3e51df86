package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/annotateapp/annotate-server/internal/domain"
)

// Result is one page of matching annotations plus the total match count
// across the whole index.
type Result struct {
	Rows  []*domain.Annotation
	Total uint64
}

// Search executes a built query against the index.
//
// Two requests run per call: a paged one for the rows and a size-zero one
// for the total. The total therefore reflects every match, not just the
// returned page. Hits whose stored source cannot be read are skipped.
func (s *Index) Search(ctx context.Context, q Query) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pageRequest := bleve.NewSearchRequestOptions(q.Query, q.Size, q.From, false)
	pageRequest.SortBy(q.sortSpec())
	pageRequest.Fields = []string{"source"}

	pageResult, err := s.index.SearchInContext(ctx, pageRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	rows := make([]*domain.Annotation, 0, len(pageResult.Hits))
	for _, hit := range pageResult.Hits {
		annotation := documentToAnnotation(hit.Fields)
		if annotation == nil {
			s.logger.Warn("skipping hit with unreadable source", "id", hit.ID)
			continue
		}
		rows = append(rows, annotation)
	}

	countRequest := bleve.NewSearchRequestOptions(q.Query, 0, 0, false)
	countResult, err := s.index.SearchInContext(ctx, countRequest)
	if err != nil {
		return nil, fmt.Errorf("execute count: %w", err)
	}

	return &Result{Rows: rows, Total: countResult.Total}, nil
}

// MatchingIDs returns the IDs of every document matching the query.
// Used by maintenance operations such as suppression-flag resync, where
// the caller wants identifiers rather than hydrated rows.
func (s *Index) MatchingIDs(ctx context.Context, q query.Query) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const pageSize = 500

	var ids []string
	for from := 0; ; from += pageSize {
		request := bleve.NewSearchRequestOptions(q, pageSize, from, false)
		result, err := s.index.SearchInContext(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("execute id scan: %w", err)
		}
		for _, hit := range result.Hits {
			ids = append(ids, hit.ID)
		}
		if len(result.Hits) < pageSize {
			return ids, nil
		}
	}
}
