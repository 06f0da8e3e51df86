package service

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/annotateapp/annotate-server/internal/auth"
	"github.com/annotateapp/annotate-server/internal/domain"
	"github.com/annotateapp/annotate-server/internal/errors"
	"github.com/annotateapp/annotate-server/internal/events"
	"github.com/annotateapp/annotate-server/internal/id"
	"github.com/annotateapp/annotate-server/internal/nipsa"
	"github.com/annotateapp/annotate-server/internal/search"
	"github.com/annotateapp/annotate-server/internal/store"
)

// AnnotationService implements the annotation lifecycle: create, read,
// update, delete and search. Every mutation persists to the record store
// and the search index before its event is published, and a rejected
// operation leaves no trace at all, neither stored state nor events.
type AnnotationService struct {
	store      *store.Store
	index      *search.Index
	policy     *nipsa.Service
	authorizer auth.Authorizer
	bus        *events.Bus
	logger     *slog.Logger
}

// NewAnnotationService creates the annotation service.
func NewAnnotationService(
	store *store.Store,
	index *search.Index,
	policy *nipsa.Service,
	authorizer auth.Authorizer,
	bus *events.Bus,
	logger *slog.Logger,
) *AnnotationService {
	return &AnnotationService{
		store:      store,
		index:      index,
		policy:     policy,
		authorizer: authorizer,
		bus:        bus,
		logger:     logger,
	}
}

// Create stores a new annotation from client-supplied fields.
//
// Server-owned fields in the input are silently discarded: identity and
// timestamps always come from the principal and the clock, never from
// the client. The suppression flag is derived from the author's current
// flag state. Requires an authenticated principal.
func (s *AnnotationService) Create(ctx context.Context, principal auth.Principal, fields map[string]any) (*domain.Annotation, error) {
	if principal.Anonymous() {
		return nil, errors.Unauthorized("authentication required to create annotations")
	}

	annotation := domain.New()
	annotation.Apply(domain.StripProtected(fields))

	annotationID, err := id.Generate("ann")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate annotation id")
	}
	annotation.ID = annotationID
	annotation.User = principal.UserID
	annotation.Consumer = principal.ConsumerKey

	now := time.Now().UTC()
	annotation.Created = now
	annotation.Updated = now

	flagged, err := s.policy.IsFlagged(ctx, annotation.User)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "check suppression state")
	}
	annotation.NIPSA = flagged

	// A record born deleted is anonymized like one deleted by update, so
	// a deleted record never carries an author.
	if annotation.Deleted {
		annotation.Anonymize()
	}

	if err := s.persist(ctx, annotation); err != nil {
		return nil, err
	}

	if err := s.publish(ctx, events.ActionCreate, annotation, principal); err != nil {
		return nil, err
	}

	s.logger.Debug("created annotation", "id", annotation.ID, "user", annotation.User)
	return annotation, nil
}

// Read fetches a single annotation by ID, gated on its read permission.
func (s *AnnotationService) Read(ctx context.Context, principal auth.Principal, annotationID string) (*domain.Annotation, error) {
	annotation, err := s.store.GetAnnotation(ctx, annotationID)
	if err != nil {
		return nil, err
	}

	if !s.authorizer.HasPermission(principal, "read", annotation) {
		return nil, errors.Unauthorized("not authorized to read this annotation")
	}

	if err := s.publish(ctx, events.ActionRead, annotation, principal); err != nil {
		return nil, err
	}

	return annotation, nil
}

// Update merges client-supplied fields into an existing annotation.
//
// The update permission gates the operation. Changing the permission
// lists additionally requires the admin permission; such a request is
// rejected whole, with no partial merge and no event. Server-owned
// fields in the input are discarded, the updated timestamp is bumped,
// and an update that marks the annotation deleted anonymizes it.
func (s *AnnotationService) Update(ctx context.Context, principal auth.Principal, annotationID string, fields map[string]any) (*domain.Annotation, error) {
	current, err := s.store.GetAnnotation(ctx, annotationID)
	if err != nil {
		return nil, err
	}

	if !s.authorizer.HasPermission(principal, "update", current) {
		return nil, errors.Unauthorized("not authorized to update this annotation")
	}

	// All changes land on a copy so a rejection further down leaves the
	// stored record untouched.
	updated := current.Clone()
	updated.Apply(domain.StripProtected(fields))

	if !domain.PermissionsEqual(current.Permissions, updated.Permissions) {
		if !s.authorizer.HasPermission(principal, "admin", current) {
			return nil, errors.Unauthorized("not authorized to change permissions on this annotation")
		}
	}

	updated.Updated = time.Now().UTC()

	flagged, err := s.policy.IsFlagged(ctx, updated.User)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "check suppression state")
	}
	updated.NIPSA = flagged

	if updated.Deleted {
		updated.Anonymize()
	}

	if err := s.persist(ctx, updated); err != nil {
		return nil, err
	}

	if err := s.publish(ctx, events.ActionUpdate, updated, principal); err != nil {
		return nil, err
	}

	s.logger.Debug("updated annotation", "id", updated.ID)
	return updated, nil
}

// Delete removes an annotation from the store and the index, gated on
// its delete permission. The published event carries the record's last
// state before removal.
func (s *AnnotationService) Delete(ctx context.Context, principal auth.Principal, annotationID string) (*domain.Annotation, error) {
	annotation, err := s.store.GetAnnotation(ctx, annotationID)
	if err != nil {
		return nil, err
	}

	if !s.authorizer.HasPermission(principal, "delete", annotation) {
		return nil, errors.Unauthorized("not authorized to delete this annotation")
	}

	if err := s.store.DeleteAnnotation(ctx, annotationID); err != nil {
		return nil, err
	}
	if err := s.index.DeleteAnnotation(annotationID); err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "remove annotation from index")
	}

	if err := s.publish(ctx, events.ActionDelete, annotation, principal); err != nil {
		return nil, err
	}

	s.logger.Debug("deleted annotation", "id", annotationID)
	return annotation, nil
}

// Search runs a query scoped to the principal's visibility. The result
// total counts every match in the index, not just the returned page.
func (s *AnnotationService) Search(ctx context.Context, principal auth.Principal, params url.Values) (*search.Result, error) {
	q := search.BuildQuery(params, principal.UserID, s.policy)

	result, err := s.index.Search(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "execute search")
	}
	return result, nil
}

// Recent returns the most recently updated annotations visible to the
// principal. A non-positive limit falls back to the search default.
func (s *AnnotationService) Recent(ctx context.Context, principal auth.Principal, limit int) ([]*domain.Annotation, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	result, err := s.Search(ctx, principal, params)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// Describe returns the static capability document served at the API
// root: the operations this service exposes and how to reach them.
func (s *AnnotationService) Describe(baseURL string) map[string]any {
	return map[string]any{
		"message": "Annotation Store API",
		"links": map[string]any{
			"annotation": map[string]any{
				"create": map[string]any{
					"method": "POST",
					"url":    baseURL + "/annotations",
					"desc":   "Create a new annotation",
				},
				"read": map[string]any{
					"method": "GET",
					"url":    baseURL + "/annotations/:id",
					"desc":   "Get an existing annotation",
				},
				"update": map[string]any{
					"method": "PUT",
					"url":    baseURL + "/annotations/:id",
					"desc":   "Update an existing annotation",
				},
				"delete": map[string]any{
					"method": "DELETE",
					"url":    baseURL + "/annotations/:id",
					"desc":   "Delete an annotation",
				},
			},
			"search": map[string]any{
				"method": "GET",
				"url":    baseURL + "/search",
				"desc":   "Basic search API",
			},
		},
	}
}

// persist writes the annotation to the record store and the search
// index, in that order. The store is the source of truth; an index
// write failure surfaces as unavailability.
func (s *AnnotationService) persist(ctx context.Context, annotation *domain.Annotation) error {
	if err := s.store.PutAnnotation(ctx, annotation); err != nil {
		return err
	}
	if err := s.index.IndexAnnotation(annotation); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "index annotation")
	}
	return nil
}

// publish fans the event out synchronously. Subscribers see the
// annotation after it is durably stored, never before.
func (s *AnnotationService) publish(ctx context.Context, action events.Action, annotation *domain.Annotation, principal auth.Principal) error {
	err := s.bus.Publish(ctx, events.Event{
		Action:     action,
		Annotation: annotation,
		Principal:  principal.UserID,
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "publish event")
	}
	return nil
}
