// Package events carries annotation lifecycle notifications.
//
// Publication is synchronous: an operation's event is delivered to every
// subscriber before the operation returns, in subscription order. A
// subscriber error aborts delivery to the remaining subscribers and
// surfaces to the publisher.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/annotateapp/annotate-server/internal/domain"
)

// Action identifies the lifecycle stage an event reports.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event is one annotation lifecycle notification. Annotation is the
// record as it stood when the operation completed; for deletions it is
// the last state before removal.
type Event struct {
	Action     Action
	Annotation *domain.Annotation
	Principal  string
	Timestamp  time.Time
}

// Subscriber receives published events. Returning an error stops the
// current fan-out and fails the publishing operation.
type Subscriber func(ctx context.Context, event Event) error

// Bus fans events out to subscribers. Subscription order is delivery
// order. Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a subscriber. There is no unsubscribe; the set of
// listeners is fixed at startup.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish delivers the event to every subscriber in order, stopping at
// the first error. The event's timestamp is stamped here when unset.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subscribers := b.subscribers
	b.mu.RUnlock()

	for _, sub := range subscribers {
		if err := sub(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
