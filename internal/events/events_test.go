package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annotateapp/annotate-server/internal/domain"
)

func TestBus_PublishInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(func(_ context.Context, _ Event) error {
		order = append(order, "first")
		return nil
	})
	bus.Subscribe(func(_ context.Context, _ Event) error {
		order = append(order, "second")
		return nil
	})

	err := bus.Publish(context.Background(), Event{Action: ActionCreate})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBus_SubscriberErrorStopsFanout(t *testing.T) {
	bus := NewBus()
	boom := errors.New("subscriber failed")

	reached := false
	bus.Subscribe(func(_ context.Context, _ Event) error {
		return boom
	})
	bus.Subscribe(func(_ context.Context, _ Event) error {
		reached = true
		return nil
	})

	err := bus.Publish(context.Background(), Event{Action: ActionUpdate})
	require.ErrorIs(t, err, boom)
	assert.False(t, reached, "later subscribers should not run after a failure")
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()

	err := bus.Publish(context.Background(), Event{Action: ActionRead})
	require.NoError(t, err)
}

func TestBus_StampsTimestamp(t *testing.T) {
	bus := NewBus()

	var received Event
	bus.Subscribe(func(_ context.Context, event Event) error {
		received = event
		return nil
	})

	annotation := &domain.Annotation{ID: "ann-1", User: "acct:alice@example.com"}
	err := bus.Publish(context.Background(), Event{
		Action:     ActionDelete,
		Annotation: annotation,
		Principal:  "acct:alice@example.com",
	})
	require.NoError(t, err)

	assert.False(t, received.Timestamp.IsZero())
	assert.Equal(t, ActionDelete, received.Action)
	assert.Equal(t, "ann-1", received.Annotation.ID)
}
