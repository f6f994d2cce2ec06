package settingsgateway

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// ProviderFactory constructs a provider from a full DSN.
type ProviderFactory func(dsn string) (Provider, error)

var providerRegistry = struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}{
	factories: map[string]ProviderFactory{},
}

// RegisterProviderFactory binds a DSN scheme to a provider factory. The
// shipped file and postgres providers register themselves when the providers
// package is imported; adapters maintained elsewhere hook in the same way.
func RegisterProviderFactory(scheme string, factory ProviderFactory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	providerRegistry.mu.Lock()
	defer providerRegistry.mu.Unlock()
	providerRegistry.factories[scheme] = factory
}

func lookupProviderFactory(scheme string) (ProviderFactory, bool) {
	scheme = normalizeScheme(scheme)
	providerRegistry.mu.RLock()
	defer providerRegistry.mu.RUnlock()
	factory, ok := providerRegistry.factories[scheme]
	return factory, ok
}

// BuildProviderFromDSN constructs a provider from a scheme-prefixed DSN.
// Registered factories take precedence; memory:// is built in.
func BuildProviderFromDSN(dsn string) (Provider, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty provider DSN", ErrInvalidInput)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := normalizeScheme(parsed.Scheme)
	if factory, ok := lookupProviderFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "memory", "mem", "inmem":
		return NewMemoryProvider(), nil
	case "mysql", "sqlite", "mongodb":
		return nil, fmt.Errorf("%w: provider %s", ErrNotImplemented, scheme)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}
