// Package nipsa implements the site-wide visibility policy.
//
// NIPSA ("not in public site areas") is a per-identity suppression flag:
// a flagged user's annotations are hidden from every other viewer's search
// results while remaining visible to the flagged user themselves. The
// package decides suppression state and produces the query-time filter
// clause that enforces the policy; persistence of the flag itself is a
// plain key-set owned by the store.
package nipsa

import (
	"context"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/annotateapp/annotate-server/internal/domain"
)

// SuppressionStore is the key-set the policy reads.
// Presence-only semantics: a user is either flagged or not.
type SuppressionStore interface {
	IsUserFlagged(ctx context.Context, userID string) (bool, error)
	ListFlaggedUsers(ctx context.Context) ([]string, error)
}

// Service answers suppression questions and builds visibility filters.
// Pure reads; the service never mutates the suppression set.
type Service struct {
	store SuppressionStore
}

// NewService creates a visibility policy backed by the given key-set.
func NewService(store SuppressionStore) *Service {
	return &Service{store: store}
}

// IsFlagged reports whether the user's content is globally suppressed.
func (s *Service) IsFlagged(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return s.store.IsUserFlagged(ctx, userID)
}

// FilterQuery returns the visibility filter for a viewer: a record gets
// through when it is not suppressed, or when the viewer authored it.
// A viewer therefore always sees their own annotations even while
// flagged, but never another flagged user's.
//
// The returned clause is a fresh value; callers may embed it freely.
func (s *Service) FilterQuery(viewerID string) query.Query {
	notSuppressed := bleve.NewBooleanQuery()
	notSuppressed.AddMustNot(flaggedClause())

	clauses := []query.Query{notSuppressed}
	if viewerID != "" {
		own := bleve.NewTermQuery(viewerID)
		own.SetField("user")
		clauses = append(clauses, own)
	}

	return bleve.NewDisjunctionQuery(clauses...)
}

// FlaggedQuery matches the given user's suppressed annotations.
// Used to resync the index when a suppression flag is added.
func FlaggedQuery(userID string) query.Query {
	return bleve.NewConjunctionQuery(userClause(userID), flaggedClause())
}

// UnflaggedQuery matches the given user's non-suppressed annotations.
func UnflaggedQuery(userID string) query.Query {
	notFlagged := bleve.NewBooleanQuery()
	notFlagged.AddMustNot(flaggedClause())
	return bleve.NewConjunctionQuery(userClause(userID), notFlagged)
}

func flaggedClause() query.Query {
	q := bleve.NewBoolFieldQuery(true)
	q.SetField(domain.FieldNIPSA)
	return q
}

func userClause(userID string) query.Query {
	q := bleve.NewTermQuery(userID)
	q.SetField("user")
	return q
}
