// Package providers ships the storage providers bundled with the settings
// gateway: a hand-editable JSON file and Postgres. Importing the package
// registers their DSN schemes with the engine's provider registry.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v6"

	settingsgateway "github.com/Favna/settings-gateway"
)

// The persisted document is meant to be edited by hand, so it is validated
// before being trusted: tables of rows of objects, nothing else.
const documentSchemaJSON = `{
	"type": "object",
	"required": ["tables"],
	"properties": {
		"tables": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"additionalProperties": {"type": "object"}
			}
		}
	}
}`

var documentSchema = mustCompileDocumentSchema()

func mustCompileDocumentSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
	if err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("settings-document.json", doc); err != nil {
		panic(err)
	}
	schema, err := compiler.Compile("settings-document.json")
	if err != nil {
		panic(err)
	}
	return schema
}

type document struct {
	Tables map[string]map[string]map[string]any `json:"tables"`
}

// JSONFileOptions configures a JSONFileProvider. Zero value: no watching.
type JSONFileOptions struct {
	// Watch invalidates the in-memory document when the backing file is
	// modified outside this process, so hand edits are picked up by the
	// next operation.
	Watch bool
}

// JSONFileProvider stores every table in one JSON document on disk. Writes
// are atomic (tmp file + rename); the parsed document is cached between
// operations and reloaded after invalidation.
type JSONFileProvider struct {
	settingsgateway.BaseProvider

	path string

	mu  sync.Mutex
	doc *document

	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewJSONFileProvider(path string, opts JSONFileOptions) (*JSONFileProvider, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, settingsgateway.ErrInvalidInput
	}
	p := &JSONFileProvider{
		path: filepath.Clean(path),
		done: make(chan struct{}),
	}
	if opts.Watch {
		if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
			return nil, err
		}
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := watcher.Add(filepath.Dir(p.path)); err != nil {
			_ = watcher.Close()
			return nil, err
		}
		p.watcher = watcher
		p.wg.Add(1)
		go p.watch()
	}
	return p, nil
}

// Path returns the backing file path.
func (p *JSONFileProvider) Path() string {
	if p == nil {
		return ""
	}
	return p.path
}

func (p *JSONFileProvider) watch() {
	defer p.wg.Done()
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				p.invalidate()
			}
		case _, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
		case <-p.done:
			return
		}
	}
}

// invalidate drops the cached document; the next operation rereads the file.
func (p *JSONFileProvider) invalidate() {
	p.mu.Lock()
	p.doc = nil
	p.mu.Unlock()
}

// loadLocked parses and validates the backing file into the cache. A missing
// file is an empty document.
func (p *JSONFileProvider) loadLocked() (*document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.doc = &document{Tables: map[string]map[string]map[string]any{}}
			return p.doc, nil
		}
		return nil, err
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.path, err)
	}
	if err := documentSchema.Validate(value); err != nil {
		return nil, fmt.Errorf("validate %s: %w", p.path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Tables == nil {
		doc.Tables = map[string]map[string]map[string]any{}
	}
	p.doc = &doc
	return p.doc, nil
}

func (p *JSONFileProvider) saveLocked() error {
	data, err := json.MarshalIndent(p.doc, "", "\t")
	if err != nil {
		return err
	}
	dir := filepath.Dir(p.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

func (p *JSONFileProvider) CreateTable(ctx context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return err
	}
	if _, ok := doc.Tables[table]; ok {
		return fmt.Errorf("%w: table %q", settingsgateway.ErrAlreadyExists, table)
	}
	doc.Tables[table] = map[string]map[string]any{}
	return p.saveLocked()
}

func (p *JSONFileProvider) DeleteTable(ctx context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return err
	}
	if _, ok := doc.Tables[table]; !ok {
		return fmt.Errorf("%w: table %q", settingsgateway.ErrNotFound, table)
	}
	delete(doc.Tables, table)
	return p.saveLocked()
}

func (p *JSONFileProvider) HasTable(ctx context.Context, table string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return false, err
	}
	_, ok := doc.Tables[table]
	return ok, nil
}

func (p *JSONFileProvider) Create(ctx context.Context, table, id string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return err
	}
	rows, ok := doc.Tables[table]
	if !ok {
		return fmt.Errorf("%w: table %q", settingsgateway.ErrNotFound, table)
	}
	if _, ok := rows[id]; ok {
		return fmt.Errorf("%w: row %q in table %q", settingsgateway.ErrAlreadyExists, id, table)
	}
	rows[id] = cloneData(data)
	return p.saveLocked()
}

func (p *JSONFileProvider) Delete(ctx context.Context, table, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return err
	}
	rows, ok := doc.Tables[table]
	if !ok {
		return fmt.Errorf("%w: table %q", settingsgateway.ErrNotFound, table)
	}
	if _, ok := rows[id]; !ok {
		return fmt.Errorf("%w: row %q in table %q", settingsgateway.ErrNotFound, id, table)
	}
	delete(rows, id)
	return p.saveLocked()
}

func (p *JSONFileProvider) Get(ctx context.Context, table, id string) (settingsgateway.Row, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return settingsgateway.Row{}, false, err
	}
	data, ok := doc.Tables[table][id]
	if !ok {
		return settingsgateway.Row{}, false, nil
	}
	return settingsgateway.Row{ID: id, Data: cloneData(data)}, true, nil
}

func (p *JSONFileProvider) GetAll(ctx context.Context, table string, ids []string) ([]settingsgateway.Row, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return nil, err
	}
	rows := doc.Tables[table]
	if ids == nil {
		ids = make([]string, 0, len(rows))
		for id := range rows {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	result := make([]settingsgateway.Row, 0, len(ids))
	for _, id := range ids {
		if data, ok := rows[id]; ok {
			result = append(result, settingsgateway.Row{ID: id, Data: cloneData(data)})
		}
	}
	return result, nil
}

func (p *JSONFileProvider) GetKeys(ctx context.Context, table string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return nil, err
	}
	rows := doc.Tables[table]
	keys := make([]string, 0, len(rows))
	for id := range rows {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys, nil
}

func (p *JSONFileProvider) Has(ctx context.Context, table, id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return false, err
	}
	_, ok := doc.Tables[table][id]
	return ok, nil
}

func (p *JSONFileProvider) Update(ctx context.Context, table, id string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return err
	}
	rows, ok := doc.Tables[table]
	if !ok {
		return fmt.Errorf("%w: table %q", settingsgateway.ErrNotFound, table)
	}
	existing, ok := rows[id]
	if !ok {
		return fmt.Errorf("%w: row %q in table %q", settingsgateway.ErrNotFound, id, table)
	}
	mergeData(existing, cloneData(data))
	return p.saveLocked()
}

func (p *JSONFileProvider) Replace(ctx context.Context, table, id string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.loadLocked()
	if err != nil {
		return err
	}
	rows, ok := doc.Tables[table]
	if !ok {
		return fmt.Errorf("%w: table %q", settingsgateway.ErrNotFound, table)
	}
	if _, ok := rows[id]; !ok {
		return fmt.Errorf("%w: row %q in table %q", settingsgateway.ErrNotFound, id, table)
	}
	rows[id] = cloneData(data)
	return p.saveLocked()
}

func (p *JSONFileProvider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		if p.watcher != nil {
			err = p.watcher.Close()
		}
		p.wg.Wait()
	})
	return err
}

// cloneData deep-copies row data through a JSON round trip, the same
// representation it crosses on disk.
func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]any{}
	}
	clone := map[string]any{}
	if err := json.Unmarshal(raw, &clone); err != nil {
		return map[string]any{}
	}
	return clone
}

// mergeData recursively merges src into dst; src wins, sibling keys survive.
func mergeData(dst, src map[string]any) {
	for key, srcValue := range src {
		srcMap, srcIsMap := srcValue.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeData(dstMap, srcMap)
			continue
		}
		dst[key] = srcValue
	}
}
