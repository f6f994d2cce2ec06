package settingsgateway

import (
	"fmt"
	"sync"
)

// UpdatePair names one path to mutate and the value to write there.
type UpdatePair struct {
	Path  string
	Value any
}

// SettingsUpdateResult records one effective change: the schema entry it
// landed on plus the value before and after.
type SettingsUpdateResult struct {
	Entry    *SchemaEntry
	Previous any
	Next     any
}

// SettingsUpdateResults is the ordered change sequence produced by an update
// operation. It doubles as an input form for building provider write
// payloads; see UpdateChanges.
type SettingsUpdateResults []SettingsUpdateResult

// Paths returns the changed paths in order.
func (r SettingsUpdateResults) Paths() []string {
	paths := make([]string, 0, len(r))
	for _, change := range r {
		if change.Entry != nil {
			paths = append(paths, change.Entry.Path)
		}
	}
	return paths
}

// SettingsFolder is a schema-shaped mutable value tree. Every path reachable
// in the bound schema resolves to a value; absent values are filled from the
// schema defaults at construction, and the shape never grows beyond or
// shrinks below the schema's.
type SettingsFolder struct {
	mu     sync.RWMutex
	schema *Schema
	values map[string]any
}

func newSettingsFolder(schema *Schema) *SettingsFolder {
	return &SettingsFolder{
		schema: schema,
		values: schema.Defaults(),
	}
}

// Schema returns the schema the folder is bound to.
func (f *SettingsFolder) Schema() *Schema {
	if f == nil {
		return nil
	}
	return f.schema
}

// Get returns the current value at a schema path.
func (f *SettingsFolder) Get(path string) (any, bool) {
	if f == nil {
		return nil, false
	}
	if _, known := f.schema.Entry(path); !known {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	value, ok := getByPath(f.values, path)
	if !ok {
		return nil, false
	}
	return deepCopyValue(value), true
}

// Snapshot produces a structural copy of the current shape, suitable for
// persistence or cloning. It shares nothing with the live tree.
func (f *SettingsFolder) Snapshot() map[string]any {
	if f == nil {
		return map[string]any{}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return deepCopyMap(f.values)
}

// Patch merges incoming plain data into the folder by path, overwriting only
// the leaves present in data. Paths the schema does not know are dropped so
// the folder's shape stays exactly the schema's; unspecified paths retain
// their current values. Partial and nested fragments are both tolerated.
func (f *SettingsFolder) Patch(data map[string]any) {
	if f == nil || len(data) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchLocked("", data)
}

func (f *SettingsFolder) patchLocked(prefix string, data map[string]any) {
	for key, value := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if _, known := f.schema.Entry(path); known {
			setByPath(f.values, path, deepCopyValue(value))
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			if _, isFolder := f.schema.Folder(path); isFolder {
				f.patchLocked(path, nested)
			}
		}
	}
}

// reset reinitializes every path to its schema default. Used after an entity
// is destroyed.
func (f *SettingsFolder) reset() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = f.schema.Defaults()
}

// prepare resolves a set of update pairs into change records without mutating
// the folder. Pairs whose value already matches the current one are dropped,
// so the result describes exactly which paths would change. Unknown paths are
// an error.
func (f *SettingsFolder) prepare(pairs []UpdatePair) (SettingsUpdateResults, error) {
	if f == nil {
		return nil, ErrInvalidInput
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	changes := make(SettingsUpdateResults, 0, len(pairs))
	// Later pairs win at the same path; track what this batch has already
	// written so the recorded previous value stays accurate.
	staged := map[string]any{}
	for _, pair := range pairs {
		entry, known := f.schema.Entry(pair.Path)
		if !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPath, pair.Path)
		}
		previous, wasStaged := staged[pair.Path]
		if !wasStaged {
			previous, _ = getByPath(f.values, pair.Path)
		}
		if valuesEqual(previous, pair.Value) {
			continue
		}
		changes = append(changes, SettingsUpdateResult{
			Entry:    entry,
			Previous: deepCopyValue(previous),
			Next:     deepCopyValue(pair.Value),
		})
		staged[pair.Path] = pair.Value
	}
	return changes, nil
}

// commit applies previously prepared change records to the folder.
func (f *SettingsFolder) commit(changes SettingsUpdateResults) {
	if f == nil || len(changes) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, change := range changes {
		if change.Entry == nil {
			continue
		}
		setByPath(f.values, change.Entry.Path, deepCopyValue(change.Next))
	}
}
