package service

import (
	"context"
	"log/slog"

	"github.com/annotateapp/annotate-server/internal/domain"
	"github.com/annotateapp/annotate-server/internal/errors"
	"github.com/annotateapp/annotate-server/internal/nipsa"
	"github.com/annotateapp/annotate-server/internal/search"
	"github.com/annotateapp/annotate-server/internal/store"
)

// ModerationService manages the per-user suppression flag.
//
// Flag state lives in two places: the store's key-set, which is the
// source of truth, and the indexed documents, which the visibility
// filter matches against at query time. Toggling a flag therefore
// resyncs every annotation of the affected user in the index.
type ModerationService struct {
	store  *store.Store
	index  *search.Index
	logger *slog.Logger
}

// NewModerationService creates the moderation service.
func NewModerationService(store *store.Store, index *search.Index, logger *slog.Logger) *ModerationService {
	return &ModerationService{
		store:  store,
		index:  index,
		logger: logger,
	}
}

// Flag suppresses a user's content site-wide and resyncs their indexed
// annotations.
func (s *ModerationService) Flag(ctx context.Context, userID string) error {
	if err := s.store.FlagUser(ctx, userID); err != nil {
		return err
	}
	if err := s.resyncUser(ctx, userID, true); err != nil {
		return err
	}

	s.logger.Info("flagged user", "user", userID)
	return nil
}

// Unflag lifts a user's suppression and resyncs their indexed
// annotations. Unflagging a user who was never flagged is not an error.
func (s *ModerationService) Unflag(ctx context.Context, userID string) error {
	if err := s.store.UnflagUser(ctx, userID); err != nil {
		return err
	}
	if err := s.resyncUser(ctx, userID, false); err != nil {
		return err
	}

	s.logger.Info("unflagged user", "user", userID)
	return nil
}

// Flagged lists every currently suppressed user.
func (s *ModerationService) Flagged(ctx context.Context) ([]string, error) {
	return s.store.ListFlaggedUsers(ctx)
}

// resyncUser rewrites the suppression flag on every stale indexed
// annotation of the given user so query-time filtering matches the new
// state. The stale set comes from the index itself: when flagging, the
// user's documents still indexed as unsuppressed; when unflagging, the
// reverse.
func (s *ModerationService) resyncUser(ctx context.Context, userID string, flagged bool) error {
	stale := nipsa.UnflaggedQuery(userID)
	if !flagged {
		stale = nipsa.FlaggedQuery(userID)
	}

	ids, err := s.index.MatchingIDs(ctx, stale)
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "find stale annotations")
	}
	if len(ids) == 0 {
		return nil
	}

	annotations := make([]*domain.Annotation, 0, len(ids))
	for _, annotationID := range ids {
		annotation, err := s.store.GetAnnotation(ctx, annotationID)
		if err != nil {
			// An indexed document with no stored record is leftover
			// from an incomplete delete; skip it rather than fail.
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return err
		}
		annotation.NIPSA = flagged
		if err := s.store.PutAnnotation(ctx, annotation); err != nil {
			return err
		}
		annotations = append(annotations, annotation)
	}

	if err := s.index.IndexAnnotations(annotations); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "resync annotations in index")
	}

	s.logger.Debug("resynced annotations for user",
		"user", userID,
		"flagged", flagged,
		"count", len(annotations),
	)
	return nil
}

// ReindexAll rebuilds the search index from the record store, deriving
// each annotation's suppression flag from the current flag set.
// This is a heavy operation - use sparingly.
func (s *ModerationService) ReindexAll(ctx context.Context) error {
	s.logger.Info("starting full reindex")

	if err := s.index.Rebuild(); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "rebuild index")
	}

	flaggedUsers, err := s.store.ListFlaggedUsers(ctx)
	if err != nil {
		return err
	}
	flagged := make(map[string]bool, len(flaggedUsers))
	for _, user := range flaggedUsers {
		flagged[user] = true
	}

	annotations, err := s.store.ListAnnotations(ctx)
	if err != nil {
		return err
	}

	live := make([]*domain.Annotation, 0, len(annotations))
	for _, annotation := range annotations {
		annotation.NIPSA = flagged[annotation.User]
		live = append(live, annotation)
	}

	if len(live) > 0 {
		if err := s.index.IndexAnnotations(live); err != nil {
			return errors.Wrap(err, errors.CodeUnavailable, "index annotations")
		}
	}

	total, _ := s.index.DocumentCount()
	s.logger.Info("full reindex complete", "total_documents", total)

	return nil
}
