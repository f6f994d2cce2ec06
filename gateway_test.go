package settingsgateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestNewGatewayValidation(t *testing.T) {
	if _, err := NewGateway("  ", testSchema(), nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
	if _, err := NewGateway("guilds", nil, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for nil schema, got %v", err)
	}
}

func TestGatewayInitCreatesTableOnce(t *testing.T) {
	ctx := context.Background()
	provider := newCountingProvider()
	gateway, err := NewGateway("guilds", testSchema(), provider)
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}

	if err := gateway.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := gateway.Init(ctx); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if calls := atomic.LoadInt32(&provider.createTableCalls); calls != 1 {
		t.Fatalf("expected one table creation, got %d", calls)
	}
	if ok, _ := provider.HasTable(ctx, "guilds"); !ok {
		t.Fatalf("expected table to exist after init")
	}
}

func TestGatewayInitWithoutProvider(t *testing.T) {
	gateway, err := NewGateway("guilds", testSchema(), nil)
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	if err := gateway.Init(context.Background()); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestGatewayAcquireCachesOneInstance(t *testing.T) {
	gateway := newTestGateway(t, newCountingProvider())

	type guild struct{ name string }
	original := &guild{name: "first"}
	settings := gateway.Acquire("g1", original)
	if settings == nil || settings.ID() != "g1" {
		t.Fatalf("unexpected settings: %+v", settings)
	}
	if settings.Target() != original {
		t.Fatalf("expected the target bound at construction")
	}

	// The same id always yields the same instance, and a later target is
	// never bound over the first.
	again := gateway.Acquire("g1", &guild{name: "second"})
	if again != settings {
		t.Fatalf("expected the cached instance")
	}
	if again.Target() != original {
		t.Fatalf("expected the original target to survive re-acquisition")
	}
	if gateway.Get("g1") != settings {
		t.Fatalf("expected Get to serve the cache")
	}
}

func TestGatewayAcquireBlankID(t *testing.T) {
	gateway := newTestGateway(t, newCountingProvider())
	if settings := gateway.Get("  "); settings != nil {
		t.Fatalf("expected nil settings for blank id, got %+v", settings)
	}
}

func TestGatewayCached(t *testing.T) {
	gateway := newTestGateway(t, newCountingProvider())
	if gateway.Cached("g1") {
		t.Fatalf("expected g1 to be absent before acquisition")
	}
	gateway.Get("g1")
	if !gateway.Cached("g1") {
		t.Fatalf("expected g1 to be cached after acquisition")
	}
}

func TestGatewaySyncAll(t *testing.T) {
	ctx := context.Background()
	provider := newCountingProvider()
	gateway := newTestGateway(t, provider)
	for _, id := range []string{"a", "b"} {
		if err := provider.MemoryProvider.Create(ctx, "guilds", id, map[string]any{"prefix": "#" + id}); err != nil {
			t.Fatalf("seed %s failed: %v", id, err)
		}
	}

	if err := gateway.SyncAll(ctx, "a", "b", "missing"); err != nil {
		t.Fatalf("sync all failed: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		settings := gateway.Get(id)
		if settings.Existence() != Exists {
			t.Fatalf("expected %s to exist, got %v", id, settings.Existence())
		}
		if value, _ := settings.Get("prefix"); value != "#"+id {
			t.Fatalf("unexpected prefix for %s: %v", id, value)
		}
	}
	if missing := gateway.Get("missing"); missing.Existence() != NotExists {
		t.Fatalf("expected missing entity to resolve NotExists, got %v", missing.Existence())
	}

	// With no ids, every cached entity is synchronized; all are already
	// resolved so storage stays untouched.
	before := atomic.LoadInt32(&provider.getAllCalls)
	if err := gateway.SyncAll(ctx); err != nil {
		t.Fatalf("cache-wide sync failed: %v", err)
	}
	if after := atomic.LoadInt32(&provider.getAllCalls); after != before {
		t.Fatalf("expected no extra fetches, got %d", after-before)
	}
}

func TestGatewaySubscribeUnsubscribe(t *testing.T) {
	ctx := context.Background()
	gateway := newTestGateway(t, newCountingProvider())

	var delivered int32
	subscription := gateway.Subscribe(func(Event) {
		atomic.AddInt32(&delivered, 1)
	})

	settings := gateway.Get("g1")
	if _, err := settings.Update(ctx, UpdatePair{Path: "prefix", Value: "?"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if atomic.LoadInt32(&delivered) != 1 {
		t.Fatalf("expected one delivered event, got %d", delivered)
	}

	subscription.Unsubscribe()
	subscription.Unsubscribe()
	if _, err := settings.Update(ctx, UpdatePair{Path: "prefix", Value: "$"}); err != nil {
		t.Fatalf("update after unsubscribe failed: %v", err)
	}
	if atomic.LoadInt32(&delivered) != 1 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", delivered)
	}
}

type shutdownProvider struct {
	*MemoryProvider
	shutdowns int32
}

func (p *shutdownProvider) Shutdown(ctx context.Context) error {
	atomic.AddInt32(&p.shutdowns, 1)
	return nil
}

func TestGatewayShutdownRetiresProvider(t *testing.T) {
	provider := &shutdownProvider{MemoryProvider: NewMemoryProvider()}
	gateway, err := NewGateway("guilds", testSchema(), provider)
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	if err := gateway.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if atomic.LoadInt32(&provider.shutdowns) != 1 {
		t.Fatalf("expected provider shutdown to be invoked once")
	}
}
