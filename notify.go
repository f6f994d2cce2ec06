package settingsgateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies the lifecycle notifications a gateway publishes.
type EventType int

const (
	// EventSync fires after a fetch found a row and patched it onto the
	// entity; once per physical fetch, not once per waiting caller.
	EventSync EventType = iota
	// EventCreate fires after an update persisted a previously absent
	// entity for the first time.
	EventCreate
	// EventUpdate fires after an update persisted changes to an existing
	// entity.
	EventUpdate
	// EventDelete fires after a destroy removed the entity's row.
	EventDelete
)

func (t EventType) String() string {
	switch t {
	case EventSync:
		return "sync"
	case EventCreate:
		return "create"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is one gateway lifecycle notification. Changes is populated for
// create and update events only.
type Event struct {
	ID       string
	Type     EventType
	Gateway  string
	Settings *Settings
	Changes  SettingsUpdateResults
	Time     time.Time
}

// Listener receives gateway events. Delivery is synchronous and in
// subscription order; a slow listener delays the publishing operation.
type Listener func(Event)

// Subscription is an active listener registration.
type Subscription struct {
	id  uint64
	bus *eventBus
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.bus != nil {
		s.bus.unsubscribe(s.id)
	}
}

type eventBus struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
}

func newEventBus() *eventBus {
	return &eventBus{listeners: map[uint64]Listener{}}
}

func (b *eventBus) subscribe(listener Listener) *Subscription {
	if b == nil || listener == nil {
		return &Subscription{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	b.order = append(b.order, id)
	return &Subscription{id: id, bus: b}
}

func (b *eventBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *eventBus) publish(event Event) {
	if b == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		if listener, ok := b.listeners[id]; ok {
			listeners = append(listeners, listener)
		}
	}
	b.mu.RUnlock()

	// Deliver outside the lock so listeners may subscribe or unsubscribe.
	for _, listener := range listeners {
		listener(event)
	}
}
