package settingsgateway

import (
	"context"
	"sort"
)

// Row is one persisted entity: its id plus the nested value data stored for
// it. Absence of a row is a normal result, never an error.
type Row struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Clone returns a structurally independent copy of the row.
func (r Row) Clone() Row {
	return Row{ID: r.ID, Data: deepCopyMap(r.Data)}
}

// Provider is the pluggable storage contract the engine reads and writes
// through. All operations take string table and id arguments; any failure
// from a backend propagates unmodified to the caller, and the engine performs
// no retry or backoff of its own.
//
// The column operations and Shutdown are only meaningful for column-oriented
// backends and lifecycle-aware adapters; BaseProvider supplies no-op
// implementations so row/document backends implement the CRUD set only.
type Provider interface {
	CreateTable(ctx context.Context, table string) error
	DeleteTable(ctx context.Context, table string) error
	HasTable(ctx context.Context, table string) (bool, error)

	Create(ctx context.Context, table, id string, data map[string]any) error
	Delete(ctx context.Context, table, id string) error
	// Get returns the row for id, reporting absence with found=false.
	Get(ctx context.Context, table, id string) (row Row, found bool, err error)
	// GetAll returns the rows for the given ids; nil ids means the whole
	// table. Ids without a backing row are simply missing from the result.
	GetAll(ctx context.Context, table string, ids []string) ([]Row, error)
	GetKeys(ctx context.Context, table string) ([]string, error)
	Has(ctx context.Context, table, id string) (bool, error)
	Update(ctx context.Context, table, id string, data map[string]any) error
	Replace(ctx context.Context, table, id string, data map[string]any) error

	AddColumn(ctx context.Context, table, column string, defaultValue any) error
	RemoveColumn(ctx context.Context, table, column string) error
	UpdateColumn(ctx context.Context, table, column string, defaultValue any) error
	GetColumns(ctx context.Context, table string) ([]string, error)

	// Shutdown is invoked before the provider is retired.
	Shutdown(ctx context.Context) error
}

// BaseProvider implements the optional parts of Provider as no-ops. Embed it
// in row- or document-oriented providers.
type BaseProvider struct{}

func (BaseProvider) AddColumn(ctx context.Context, table, column string, defaultValue any) error {
	return nil
}

func (BaseProvider) RemoveColumn(ctx context.Context, table, column string) error {
	return nil
}

func (BaseProvider) UpdateColumn(ctx context.Context, table, column string, defaultValue any) error {
	return nil
}

func (BaseProvider) GetColumns(ctx context.Context, table string) ([]string, error) {
	return []string{}, nil
}

func (BaseProvider) Shutdown(ctx context.Context) error {
	return nil
}

// UpdateInput is the dual-shaped input accepted when building a provider
// write payload: either a flat path->value mapping or an ordered sequence of
// change records. The shape is fixed at construction, never inspected ad hoc.
type UpdateInput struct {
	flat    map[string]any
	changes SettingsUpdateResults
	record  bool
}

// UpdateData wraps a flat mapping from dot-separated paths to values. Values
// may themselves be nested maps; they are merged at their path.
func UpdateData(data map[string]any) UpdateInput {
	return UpdateInput{flat: data}
}

// UpdateChanges wraps an ordered change-record sequence.
func UpdateChanges(changes SettingsUpdateResults) UpdateInput {
	return UpdateInput{changes: changes, record: true}
}

// Nested merges the input into one freshly-allocated nested object: each
// change lands at its schema path, later entries overwrite earlier ones at
// the same path, and sibling paths are never disturbed.
func (in UpdateInput) Nested() map[string]any {
	result := map[string]any{}
	if in.record {
		for _, change := range in.changes {
			if change.Entry == nil {
				continue
			}
			setByPath(result, change.Entry.Path, deepCopyValue(change.Next))
		}
		return result
	}
	// A map has no inherent order; sort the paths so overlapping writes
	// resolve deterministically.
	paths := make([]string, 0, len(in.flat))
	for path := range in.flat {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		mergeAtPath(result, path, in.flat[path])
	}
	return result
}

// mergeAtPath writes value at path; map values are deep-merged into whatever
// already exists there instead of replacing the parent object.
func mergeAtPath(dst map[string]any, path string, value any) {
	nested, isMap := value.(map[string]any)
	if !isMap {
		setByPath(dst, path, deepCopyValue(value))
		return
	}
	existing, _ := getByPath(dst, path)
	target, ok := existing.(map[string]any)
	if !ok {
		target = map[string]any{}
		setByPath(dst, path, target)
	}
	deepMerge(target, nested)
}

// deepMerge recursively merges src into dst; values in src win, sibling keys
// in dst survive.
func deepMerge(dst, src map[string]any) {
	for key, srcValue := range src {
		srcMap, srcIsMap := srcValue.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = deepCopyValue(srcValue)
	}
}
