package settingsgateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Gateway is the composition root for one logical table: it binds a schema, a
// provider, and a request handler, and owns the canonical cache of live
// Settings instances keyed by id. Callers hold references into the cache, not
// private copies, so everyone sees the same entity for the same id.
type Gateway struct {
	name           string
	schema         *Schema
	provider       Provider
	requestHandler *RequestHandler
	events         *eventBus

	mu    sync.RWMutex
	cache map[string]*Settings
}

// NewGateway binds a schema and provider for the named table. The provider
// may be nil for a cache-only gateway; storage-touching operations then fail
// with ErrNoProvider.
func NewGateway(name string, schema *Schema, provider Provider) (*Gateway, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty gateway name", ErrInvalidInput)
	}
	if schema == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrInvalidInput)
	}
	g := &Gateway{
		name:     name,
		schema:   schema,
		provider: provider,
		events:   newEventBus(),
		cache:    map[string]*Settings{},
	}
	g.requestHandler = newRequestHandler(name, provider)
	return g, nil
}

// Name returns the gateway's table name.
func (g *Gateway) Name() string {
	if g == nil {
		return ""
	}
	return g.name
}

// Schema returns the bound schema.
func (g *Gateway) Schema() *Schema {
	if g == nil {
		return nil
	}
	return g.schema
}

// Provider returns the bound provider, which may be nil.
func (g *Gateway) Provider() Provider {
	if g == nil {
		return nil
	}
	return g.provider
}

// RequestHandler returns the gateway's batching fetch layer.
func (g *Gateway) RequestHandler() *RequestHandler {
	if g == nil {
		return nil
	}
	return g.requestHandler
}

// Init ensures the backing table exists, creating it when missing.
func (g *Gateway) Init(ctx context.Context) error {
	if g == nil {
		return ErrInvalidInput
	}
	if g.provider == nil {
		return fmt.Errorf("init gateway %s: %w", g.name, ErrNoProvider)
	}
	ok, err := g.provider.HasTable(ctx, g.name)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	slog.Debug("creating gateway table", "gateway", g.name)
	return g.provider.CreateTable(ctx, g.name)
}

// Get returns the cached Settings for id, constructing and caching a fresh
// one at schema defaults (status Unsynchronized) if absent. Construction
// never touches storage. An empty id yields nil.
func (g *Gateway) Get(id string) *Settings {
	return g.Acquire(id, nil)
}

// Acquire is Get that also binds an opaque caller association when the entity
// is constructed for the first time. The target of an already-cached entity
// is never replaced.
func (g *Gateway) Acquire(id string, target any) *Settings {
	if g == nil {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	g.mu.RLock()
	settings, ok := g.cache[id]
	g.mu.RUnlock()
	if ok {
		return settings
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if settings, ok := g.cache[id]; ok {
		return settings
	}
	settings = newSettings(g, id, target)
	g.cache[id] = settings
	return settings
}

// Cached reports whether an entity for id is currently in the cache.
func (g *Gateway) Cached(id string) bool {
	if g == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.cache[id]
	return ok
}

// SyncAll synchronizes many entities concurrently. With explicit ids it
// acquires and syncs each; with none it syncs every currently cached entity.
// Distinct unresolved ids collapse into bulk fetches through the request
// handler. The first error cancels the remaining work.
func (g *Gateway) SyncAll(ctx context.Context, ids ...string) error {
	if g == nil {
		return ErrInvalidInput
	}
	if len(ids) == 0 {
		g.mu.RLock()
		ids = make([]string, 0, len(g.cache))
		for id := range g.cache {
			ids = append(ids, id)
		}
		g.mu.RUnlock()
	}
	eg, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			settings := g.Get(id)
			if settings == nil {
				return fmt.Errorf("%w: empty id", ErrInvalidInput)
			}
			_, err := settings.Sync(ctx)
			return err
		})
	}
	return eg.Wait()
}

// Subscribe registers a listener for this gateway's sync, create, update, and
// delete events. The engine works the same with zero subscribers.
func (g *Gateway) Subscribe(listener Listener) *Subscription {
	if g == nil {
		return &Subscription{}
	}
	return g.events.subscribe(listener)
}

// Shutdown retires the bound provider. The gateway itself holds no other
// resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g == nil || g.provider == nil {
		return nil
	}
	return g.provider.Shutdown(ctx)
}

func (g *Gateway) publish(eventType EventType, settings *Settings, changes SettingsUpdateResults) {
	g.events.publish(Event{
		Type:     eventType,
		Gateway:  g.name,
		Settings: settings,
		Changes:  changes,
	})
}
