package settingsgateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ExistenceStatus tracks whether an entity's persisted row is known to exist.
type ExistenceStatus int

const (
	// Unsynchronized is the initial state: storage has not been consulted.
	Unsynchronized ExistenceStatus = iota
	// NotExists means a fetch resolved and found no row.
	NotExists
	// Exists means a fetch resolved and found a row.
	Exists
)

func (s ExistenceStatus) String() string {
	switch s {
	case Unsynchronized:
		return "unsynchronized"
	case NotExists:
		return "not-exists"
	case Exists:
		return "exists"
	default:
		return "unknown"
	}
}

// Settings is one tracked entity: a schema-shaped value tree specialized with
// an identity, its owning gateway, and a synchronization state machine. All
// callers that obtained it from the same gateway share the one instance;
// mutations are visible to every holder unless a caller clones.
//
// The status lifecycle is Unsynchronized -> {Exists, NotExists}, with Exists
// moving to NotExists on destroy. No transition leads back to Unsynchronized.
type Settings struct {
	*SettingsFolder

	id      string
	gateway *Gateway
	target  any

	statusMu sync.RWMutex
	status   ExistenceStatus
}

func newSettings(gateway *Gateway, id string, target any) *Settings {
	return &Settings{
		SettingsFolder: newSettingsFolder(gateway.schema),
		id:             id,
		gateway:        gateway,
		target:         target,
		status:         Unsynchronized,
	}
}

// ID returns the immutable entity identifier.
func (s *Settings) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Gateway returns the owning gateway.
func (s *Settings) Gateway() *Gateway {
	if s == nil {
		return nil
	}
	return s.gateway
}

// Target returns the opaque caller-supplied association, if any. The engine
// never interprets it.
func (s *Settings) Target() any {
	if s == nil {
		return nil
	}
	return s.target
}

// Existence returns the current synchronization status.
func (s *Settings) Existence() ExistenceStatus {
	if s == nil {
		return Unsynchronized
	}
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Settings) setExistence(status ExistenceStatus) {
	s.statusMu.Lock()
	s.status = status
	s.statusMu.Unlock()
}

// Sync reconciles the entity against storage if it has never been resolved.
// Once the status is Exists or NotExists it returns immediately without any
// storage access. Returns the entity for chaining.
func (s *Settings) Sync(ctx context.Context) (*Settings, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	if s.Existence() != Unsynchronized {
		return s, nil
	}
	return s.Refresh(ctx)
}

// Refresh always fetches, even when the entity has already been resolved. The
// fetch is delegated to the gateway's request handler, so concurrent
// refreshes of the same id share one storage call.
func (s *Settings) Refresh(ctx context.Context) (*Settings, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	result, err := s.gateway.requestHandler.Push(ctx, s.id)
	if err != nil {
		return s, err
	}
	if result.Found {
		s.setExistence(Exists)
		s.Patch(result.Row.Data)
		if result.Primary {
			slog.Debug("settings synchronized", "gateway", s.gateway.name, "id", s.id)
			s.gateway.publish(EventSync, s, nil)
		}
	} else {
		s.setExistence(NotExists)
	}
	return s, nil
}

// Destroy removes the entity's row from storage. It first ensures a resolved
// state via Sync; if the row exists it is deleted, observers are notified,
// and the folder is reset to schema defaults with status NotExists. An
// existing row with no configured provider is a fatal gateway
// misconfiguration and surfaces as ErrNoProvider. Returns the entity for
// chaining.
func (s *Settings) Destroy(ctx context.Context) (*Settings, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	if _, err := s.Sync(ctx); err != nil {
		return s, err
	}
	if s.Existence() != Exists {
		return s, nil
	}
	provider := s.gateway.Provider()
	if provider == nil {
		return s, fmt.Errorf("destroy %s/%s: %w", s.gateway.name, s.id, ErrNoProvider)
	}
	if err := provider.Delete(ctx, s.gateway.name, s.id); err != nil {
		return s, err
	}
	slog.Debug("settings destroyed", "gateway", s.gateway.name, "id", s.id)
	s.gateway.publish(EventDelete, s, nil)
	s.reset()
	s.setExistence(NotExists)
	return s, nil
}

// Update mutates one or more paths and writes the changes through to storage
// in a single provider call, creating the row if the entity does not exist
// yet. The returned change records describe exactly which paths changed;
// pairs that match the current value are dropped, and an update reduced to
// nothing skips storage entirely. Later pairs win at the same path.
func (s *Settings) Update(ctx context.Context, pairs ...UpdatePair) (SettingsUpdateResults, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	if _, err := s.Sync(ctx); err != nil {
		return nil, err
	}
	changes, err := s.prepare(pairs)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return changes, nil
	}
	provider := s.gateway.Provider()
	if provider == nil {
		return nil, fmt.Errorf("update %s/%s: %w", s.gateway.name, s.id, ErrNoProvider)
	}

	data := UpdateChanges(changes).Nested()
	if s.Existence() == Exists {
		if err := provider.Update(ctx, s.gateway.name, s.id, data); err != nil {
			return nil, err
		}
		s.commit(changes)
		s.gateway.publish(EventUpdate, s, changes)
		return changes, nil
	}
	if err := provider.Create(ctx, s.gateway.name, s.id, data); err != nil {
		return nil, err
	}
	s.commit(changes)
	s.setExistence(Exists)
	s.gateway.publish(EventCreate, s, changes)
	return changes, nil
}

// Reset updates the named paths back to their schema defaults, writing
// through to storage like Update. With no paths it resets every entry.
func (s *Settings) Reset(ctx context.Context, paths ...string) (SettingsUpdateResults, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	if len(paths) == 0 {
		paths = s.gateway.schema.Paths()
	}
	pairs := make([]UpdatePair, 0, len(paths))
	for _, path := range paths {
		entry, known := s.gateway.schema.Entry(path)
		if !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
		}
		pairs = append(pairs, UpdatePair{Path: path, Value: deepCopyValue(entry.Default)})
	}
	return s.Update(ctx, pairs...)
}

// Clone produces a structurally independent copy sharing the same id, target,
// and gateway binding. The clone starts Unsynchronized and is not entered
// into the gateway's cache; diverging a clone from the cached instance is the
// caller's responsibility.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	clone := newSettings(s.gateway, s.id, s.target)
	clone.Patch(s.Snapshot())
	return clone
}
