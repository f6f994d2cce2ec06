package settingsgateway

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaEntry is a single leaf field in a schema tree: a dot-separated path
// and the default value every entity starts out with at that path.
type SchemaEntry struct {
	Path    string
	Key     string
	Default any
}

// SchemaFolder is a named set of child entries and folders. Folders are
// created implicitly when an entry is registered under a nested path.
type SchemaFolder struct {
	path    string
	entries map[string]*SchemaEntry
	folders map[string]*SchemaFolder
}

// Path returns the folder's dot-separated path; the root folder's path is "".
func (f *SchemaFolder) Path() string {
	if f == nil {
		return ""
	}
	return f.path
}

// Entry returns the direct child entry with the given key.
func (f *SchemaFolder) Entry(key string) (*SchemaEntry, bool) {
	if f == nil {
		return nil, false
	}
	entry, ok := f.entries[key]
	return entry, ok
}

// Folder returns the direct child folder with the given key.
func (f *SchemaFolder) Folder(key string) (*SchemaFolder, bool) {
	if f == nil {
		return nil, false
	}
	folder, ok := f.folders[key]
	return folder, ok
}

// Keys returns the keys of all direct children, sorted.
func (f *SchemaFolder) Keys() []string {
	if f == nil {
		return nil
	}
	keys := make([]string, 0, len(f.entries)+len(f.folders))
	for key := range f.entries {
		keys = append(keys, key)
	}
	for key := range f.folders {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Schema is a tree of typed fields with defaults that shapes every entity's
// value tree. It is consumed read-only by gateways once bound; the authoring
// surface here is intentionally small (register paths with defaults, look
// them up, derive the default value tree).
type Schema struct {
	root    *SchemaFolder
	byPath  map[string]*SchemaEntry
	folders map[string]*SchemaFolder
}

func NewSchema() *Schema {
	root := &SchemaFolder{
		entries: map[string]*SchemaEntry{},
		folders: map[string]*SchemaFolder{},
	}
	return &Schema{
		root:    root,
		byPath:  map[string]*SchemaEntry{},
		folders: map[string]*SchemaFolder{"": root},
	}
}

// Add registers an entry at a dot-separated path with its default value,
// creating intermediate folders as needed. Paths are unique within a schema:
// registering a path twice, or registering a path that collides with an
// existing folder (or vice versa), is an error.
func (s *Schema) Add(path string, defaultValue any) error {
	if s == nil {
		return ErrInvalidInput
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: empty schema path", ErrInvalidInput)
	}
	if _, exists := s.byPath[path]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, path)
	}
	if _, exists := s.folders[path]; exists {
		return fmt.Errorf("%w: %s is a folder", ErrDuplicatePath, path)
	}

	parts := strings.Split(path, ".")
	folder := s.root
	for i := 0; i < len(parts)-1; i++ {
		key := parts[i]
		if key == "" {
			return fmt.Errorf("%w: malformed schema path %q", ErrInvalidInput, path)
		}
		if _, isEntry := folder.entries[key]; isEntry {
			prefix := strings.Join(parts[:i+1], ".")
			return fmt.Errorf("%w: %s is an entry", ErrDuplicatePath, prefix)
		}
		next, ok := folder.folders[key]
		if !ok {
			next = &SchemaFolder{
				path:    strings.Join(parts[:i+1], "."),
				entries: map[string]*SchemaEntry{},
				folders: map[string]*SchemaFolder{},
			}
			folder.folders[key] = next
			s.folders[next.path] = next
		}
		folder = next
	}

	key := parts[len(parts)-1]
	if key == "" {
		return fmt.Errorf("%w: malformed schema path %q", ErrInvalidInput, path)
	}
	entry := &SchemaEntry{
		Path:    path,
		Key:     key,
		Default: defaultValue,
	}
	folder.entries[key] = entry
	s.byPath[path] = entry
	return nil
}

// MustAdd is Add for schema construction at init time; it panics on error and
// returns the schema for chaining.
func (s *Schema) MustAdd(path string, defaultValue any) *Schema {
	if err := s.Add(path, defaultValue); err != nil {
		panic(err)
	}
	return s
}

// Entry returns the entry registered at the given path.
func (s *Schema) Entry(path string) (*SchemaEntry, bool) {
	if s == nil {
		return nil, false
	}
	entry, ok := s.byPath[path]
	return entry, ok
}

// Folder returns the folder at the given path; "" addresses the root.
func (s *Schema) Folder(path string) (*SchemaFolder, bool) {
	if s == nil {
		return nil, false
	}
	folder, ok := s.folders[path]
	return folder, ok
}

// Root returns the root folder.
func (s *Schema) Root() *SchemaFolder {
	if s == nil {
		return nil
	}
	return s.root
}

// Paths returns every registered entry path, sorted.
func (s *Schema) Paths() []string {
	if s == nil {
		return nil
	}
	paths := make([]string, 0, len(s.byPath))
	for path := range s.byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Defaults produces a freshly-allocated nested value tree holding every
// entry's default. Mutating the result never affects the schema.
func (s *Schema) Defaults() map[string]any {
	result := map[string]any{}
	if s == nil {
		return result
	}
	for path, entry := range s.byPath {
		setByPath(result, path, deepCopyValue(entry.Default))
	}
	return result
}
