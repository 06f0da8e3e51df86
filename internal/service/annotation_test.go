package service

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annotateapp/annotate-server/internal/auth"
	"github.com/annotateapp/annotate-server/internal/errors"
	"github.com/annotateapp/annotate-server/internal/events"
	"github.com/annotateapp/annotate-server/internal/nipsa"
	"github.com/annotateapp/annotate-server/internal/search"
	"github.com/annotateapp/annotate-server/internal/store"
)

// eventRecorder captures published events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *eventRecorder) last() *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return &r.events[len(r.events)-1]
}

type testEnv struct {
	annotations *AnnotationService
	moderation  *ModerationService
	store       *store.Store
	index       *search.Index
	recorder    *eventRecorder
}

// setupServiceTest wires a full service stack on temporary storage.
func setupServiceTest(t *testing.T) (*testEnv, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "annotate-service-test-*")
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)

	st, err := store.New(filepath.Join(tmpDir, "db"), logger)
	require.NoError(t, err)

	index, err := search.NewIndex(search.Options{
		DataPath: tmpDir,
		Logger:   logger,
	})
	require.NoError(t, err)

	policy := nipsa.NewService(st)
	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.Subscribe(recorder.record)

	env := &testEnv{
		annotations: NewAnnotationService(st, index, policy, auth.NewAuthorizer(), bus, logger),
		moderation:  NewModerationService(st, index, logger),
		store:       st,
		index:       index,
		recorder:    recorder,
	}

	cleanup := func() {
		_ = index.Close()
		_ = st.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return env, cleanup
}

var (
	alice = auth.Principal{UserID: "acct:alice@example.com", ConsumerKey: "11111111-1111-1111-1111-111111111111"}
	bob   = auth.Principal{UserID: "acct:bob@example.com", ConsumerKey: "11111111-1111-1111-1111-111111111111"}
	anon  = auth.Principal{ConsumerKey: "11111111-1111-1111-1111-111111111111"}
)

func TestAnnotationService_Create(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()

	created, err := env.annotations.Create(ctx, alice, map[string]any{
		"text": "a fine observation",
		"uri":  "http://example.com/article",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, alice.UserID, created.User)
	assert.Equal(t, alice.ConsumerKey, created.Consumer)
	assert.False(t, created.Created.IsZero())
	assert.Equal(t, created.Created, created.Updated)
	assert.Equal(t, "a fine observation", created.Extra["text"])

	// Durable in the store.
	stored, err := env.store.GetAnnotation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)

	// Searchable in the index.
	result, err := env.annotations.Search(ctx, anon, url.Values{"text": {"observation"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)

	// Create event carries the persisted record.
	event := env.recorder.last()
	require.NotNil(t, event)
	assert.Equal(t, events.ActionCreate, event.Action)
	assert.Equal(t, created.ID, event.Annotation.ID)
	assert.Equal(t, alice.UserID, event.Principal)
}

func TestAnnotationService_Create_RequiresAuthentication(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	_, err := env.annotations.Create(context.Background(), anon, map[string]any{"text": "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	assert.Empty(t, env.recorder.all(), "rejected operations publish nothing")
}

func TestAnnotationService_Create_DiscardsServerOwnedFields(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	created, err := env.annotations.Create(context.Background(), alice, map[string]any{
		"id":      "ann-forged",
		"user":    "acct:mallory@example.com",
		"created": "1999-01-01T00:00:00Z",
		"text":    "content survives",
	})
	require.NoError(t, err)

	assert.NotEqual(t, "ann-forged", created.ID)
	assert.Equal(t, alice.UserID, created.User)
	assert.NotEqual(t, 1999, created.Created.Year())
	assert.Equal(t, "content survives", created.Extra["text"])
}

func TestAnnotationService_Create_BornDeletedIsAnonymized(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	created, err := env.annotations.Create(context.Background(), alice, map[string]any{
		"deleted": true,
		"text":    "tombstone",
		"permissions": map[string]any{
			"read": []any{alice.UserID, bob.UserID},
		},
	})
	require.NoError(t, err)

	assert.True(t, created.Deleted)
	assert.Empty(t, created.User, "a deleted record never carries an author")
	assert.Equal(t, []string{bob.UserID}, created.Permissions["read"])

	stored, err := env.store.GetAnnotation(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.User)
}

func TestAnnotationService_Create_FlaggedAuthor(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, env.store.FlagUser(ctx, alice.UserID))

	created, err := env.annotations.Create(ctx, alice, map[string]any{"text": "shadowed"})
	require.NoError(t, err)
	assert.True(t, created.NIPSA)

	// Hidden from everyone else, visible to the author.
	result, err := env.annotations.Search(ctx, bob, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result.Total)

	result, err = env.annotations.Search(ctx, alice, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
}

func TestAnnotationService_Read(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()

	created, err := env.annotations.Create(ctx, alice, map[string]any{
		"text":        "public note",
		"permissions": map[string]any{"read": []any{"group:__world__"}},
	})
	require.NoError(t, err)

	// World-readable: anonymous read succeeds and publishes a read event.
	got, err := env.annotations.Read(ctx, anon, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	event := env.recorder.last()
	require.NotNil(t, event)
	assert.Equal(t, events.ActionRead, event.Action)
}

func TestAnnotationService_Read_Gated(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()

	created, err := env.annotations.Create(ctx, alice, map[string]any{
		"text":        "private note",
		"permissions": map[string]any{"read": []any{alice.UserID}},
	})
	require.NoError(t, err)
	before := len(env.recorder.all())

	_, err = env.annotations.Read(ctx, bob, created.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	assert.Len(t, env.recorder.all(), before, "denied reads publish nothing")

	// The author still gets through.
	_, err = env.annotations.Read(ctx, alice, created.ID)
	require.NoError(t, err)
}

func TestAnnotationService_Read_NotFound(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	_, err := env.annotations.Read(context.Background(), alice, "ann-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAnnotationService_Update(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()

	created, err := env.annotations.Create(ctx, alice, map[string]any{"text": "first draft"})
	require.NoError(t, err)

	updated, err := env.annotations.Update(ctx, alice, created.ID, map[string]any{
		"text": "second draft",
	})
	require.NoError(t, err)

	assert.Equal(t, "second draft", updated.Extra["text"])
	assert.True(t, updated.Updated.After(created.Updated) || updated.Updated.Equal(created.Updated))
	assert.Equal(t, created.Created, updated.Created)

	event := env.recorder.last()
	require.NotNil(t, event)
	assert.Equal(t, events.ActionUpdate, event.Action)
	assert.Equal(t, "second draft", event.Annotation.Extra["text"])
}

func TestAnnotationService_Update_DeniedLeavesNoTrace(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()

	created, err := env.annotations.Create(ctx, alice, map[string]any{"text": "original"})
	require.NoError(t, err)
	before := len(env.recorder.all())

	_, err = env.annotations.Update(ctx, bob, created.ID, map[string]any{"text": "defaced"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	stored, err := env.store.GetAnnotation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", stored.Extra["text"])
	assert.Len(t, env.recorder.all(), before)
}

func TestAnnotationService_Update_PermissionChangeRequiresAdmin(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()

	// Bob may update but holds no admin permission.
	created, err := env.annotations.Create(ctx, alice, map[string]any{
		"text": "shared note",
		"permissions": map[string]any{
			"read":   []any{"group:__world__"},
			"update": []any{alice.UserID, bob.UserID},
			"admin":  []any{alice.UserID},
		},
	})
	require.NoError(t, err)
	before := len(env.recorder.all())

	// Content-only update from Bob is fine.
	_, err = env.annotations.Update(ctx, bob, created.ID, map[string]any{"text": "edited by bob"})
	require.NoError(t, err)

	// An ACL change from Bob is rejected whole.
	_, err = env.annotations.Update(ctx, bob, created.ID, map[string]any{
		"text":        "sneaky",
		"permissions": map[string]any{"update": []any{bob.UserID}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	stored, err := env.store.GetAnnotation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited by bob", stored.Extra["text"])
	assert.Contains(t, stored.Permissions["update"], alice.UserID)
	assert.Len(t, env.recorder.all(), before+1, "only the successful update published")

	// The admin may change the ACL.
	_, err = env.annotations.Update(ctx, alice, created.ID, map[string]any{
		"permissions": map[string]any{"update": []any{alice.UserID}},
	})
	require.NoError(t, err)
}

func TestAnnotationService_Update_DeletedAnonymizes(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()

	created, err := env.annotations.Create(ctx, alice, map[string]any{
		"text": "to be withdrawn",
		"permissions": map[string]any{
			"read":  []any{alice.UserID, "group:__world__"},
			"admin": []any{alice.UserID},
		},
	})
	require.NoError(t, err)

	updated, err := env.annotations.Update(ctx, alice, created.ID, map[string]any{
		"deleted": true,
	})
	require.NoError(t, err)

	assert.True(t, updated.Deleted)
	assert.Empty(t, updated.User)
	for action, list := range updated.Permissions {
		assert.NotContains(t, list, alice.UserID, "author should be scrubbed from %s", action)
	}
}

func TestAnnotationService_Delete(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()

	created, err := env.annotations.Create(ctx, alice, map[string]any{"text": "ephemeral"})
	require.NoError(t, err)

	snapshot, err := env.annotations.Delete(ctx, alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, snapshot.ID)
	assert.Equal(t, "ephemeral", snapshot.Extra["text"])

	_, err = env.store.GetAnnotation(ctx, created.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	result, err := env.annotations.Search(ctx, alice, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result.Total)

	event := env.recorder.last()
	require.NotNil(t, event)
	assert.Equal(t, events.ActionDelete, event.Action)
	assert.Equal(t, "ephemeral", event.Annotation.Extra["text"])
}

func TestAnnotationService_Delete_Gated(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()

	created, err := env.annotations.Create(ctx, alice, map[string]any{"text": "protected"})
	require.NoError(t, err)

	_, err = env.annotations.Delete(ctx, bob, created.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	_, err = env.store.GetAnnotation(ctx, created.ID)
	require.NoError(t, err)
}

func TestAnnotationService_SearchPagination(t *testing.T) {
	env, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := env.annotations.Create(ctx, alice, map[string]any{"text": "note"})
		require.NoError(t, err)
	}

	result, err := env.annotations.Search(ctx, alice, url.Values{"limit": {"2"}})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, uint64(5), result.Total)
}
