package settingsgateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryProvider is the reference Provider implementation: mutex-guarded
// nested maps, rows deep-copied on the way in and out. It backs tests and
// cache-only deployments; nothing survives the process.
type MemoryProvider struct {
	BaseProvider

	mu     sync.RWMutex
	tables map[string]map[string]map[string]any
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		tables: map[string]map[string]map[string]any{},
	}
}

func (p *MemoryProvider) CreateTable(ctx context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tables[table]; ok {
		return fmt.Errorf("%w: table %q", ErrAlreadyExists, table)
	}
	p.tables[table] = map[string]map[string]any{}
	return nil
}

func (p *MemoryProvider) DeleteTable(ctx context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tables[table]; !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	delete(p.tables, table)
	return nil
}

func (p *MemoryProvider) HasTable(ctx context.Context, table string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.tables[table]
	return ok, nil
}

func (p *MemoryProvider) Create(ctx context.Context, table, id string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows, ok := p.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	if _, ok := rows[id]; ok {
		return fmt.Errorf("%w: row %q in table %q", ErrAlreadyExists, id, table)
	}
	rows[id] = deepCopyMap(data)
	return nil
}

func (p *MemoryProvider) Delete(ctx context.Context, table, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows, ok := p.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	if _, ok := rows[id]; !ok {
		return fmt.Errorf("%w: row %q in table %q", ErrNotFound, id, table)
	}
	delete(rows, id)
	return nil
}

func (p *MemoryProvider) Get(ctx context.Context, table, id string) (Row, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.tables[table][id]
	if !ok {
		return Row{}, false, nil
	}
	return Row{ID: id, Data: deepCopyMap(data)}, true, nil
}

func (p *MemoryProvider) GetAll(ctx context.Context, table string, ids []string) ([]Row, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rows := p.tables[table]
	if ids == nil {
		ids = make([]string, 0, len(rows))
		for id := range rows {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	result := make([]Row, 0, len(ids))
	for _, id := range ids {
		if data, ok := rows[id]; ok {
			result = append(result, Row{ID: id, Data: deepCopyMap(data)})
		}
	}
	return result, nil
}

func (p *MemoryProvider) GetKeys(ctx context.Context, table string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rows := p.tables[table]
	keys := make([]string, 0, len(rows))
	for id := range rows {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys, nil
}

func (p *MemoryProvider) Has(ctx context.Context, table, id string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.tables[table][id]
	return ok, nil
}

func (p *MemoryProvider) Update(ctx context.Context, table, id string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows, ok := p.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	existing, ok := rows[id]
	if !ok {
		return fmt.Errorf("%w: row %q in table %q", ErrNotFound, id, table)
	}
	deepMerge(existing, data)
	return nil
}

func (p *MemoryProvider) Replace(ctx context.Context, table, id string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows, ok := p.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	if _, ok := rows[id]; !ok {
		return fmt.Errorf("%w: row %q in table %q", ErrNotFound, id, table)
	}
	rows[id] = deepCopyMap(data)
	return nil
}
