package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/taskpane/app/domain"
)

// EventType classifies session-change notifications.
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event is a session-change notification. Session is nil for EventSignedOut.
type Event struct {
	Type    EventType
	Session *domain.Session
}

// Subscription is a deregistration handle for a session-change listener.
// Cancel is idempotent and must be called on teardown so the subscriber
// slot is released.
type Subscription struct {
	id     string
	events chan Event
	cancel func(id string)
	once   sync.Once
}

// Events yields session-change notifications until Cancel.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Cancel removes the subscriber and closes its channel.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancel(s.id)
	})
}

// broadcaster fans session events out to registered subscribers.
type broadcaster struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[string]chan Event)}
}

func (b *broadcaster) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, 8)
	b.subs[id] = ch
	return &Subscription{id: id, events: ch, cancel: b.unsubscribe}
}

func (b *broadcaster) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// publish delivers the event without blocking; a subscriber that stopped
// draining its channel misses the event.
func (b *broadcaster) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
