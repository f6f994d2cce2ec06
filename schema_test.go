package settingsgateway

import (
	"errors"
	"reflect"
	"testing"
)

func TestSchemaAddAndLookup(t *testing.T) {
	schema := NewSchema()
	if err := schema.Add("prefix", "!"); err != nil {
		t.Fatalf("add prefix failed: %v", err)
	}
	if err := schema.Add("roles.admin", ""); err != nil {
		t.Fatalf("add roles.admin failed: %v", err)
	}
	if err := schema.Add("roles.moderator", ""); err != nil {
		t.Fatalf("add roles.moderator failed: %v", err)
	}

	entry, ok := schema.Entry("roles.admin")
	if !ok {
		t.Fatalf("expected roles.admin to be registered")
	}
	if entry.Key != "admin" || entry.Path != "roles.admin" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	folder, ok := schema.Folder("roles")
	if !ok {
		t.Fatalf("expected roles folder to exist")
	}
	if got := folder.Keys(); !reflect.DeepEqual(got, []string{"admin", "moderator"}) {
		t.Fatalf("unexpected folder keys: %v", got)
	}

	if got := schema.Paths(); !reflect.DeepEqual(got, []string{"prefix", "roles.admin", "roles.moderator"}) {
		t.Fatalf("unexpected paths: %v", got)
	}
}

func TestSchemaAddDuplicatePath(t *testing.T) {
	schema := NewSchema()
	if err := schema.Add("prefix", "!"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	err := schema.Add("prefix", "?")
	if !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("expected ErrDuplicatePath, got %v", err)
	}
}

func TestSchemaAddEntryFolderCollision(t *testing.T) {
	schema := NewSchema()
	if err := schema.Add("roles.admin", ""); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := schema.Add("roles", nil); !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("expected ErrDuplicatePath registering entry over folder, got %v", err)
	}
	if err := schema.Add("roles.admin.level", 0); !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("expected ErrDuplicatePath registering under entry, got %v", err)
	}
}

func TestSchemaAddRejectsMalformedPaths(t *testing.T) {
	schema := NewSchema()
	for _, path := range []string{"", "  ", "a..b", ".a", "a."} {
		if err := schema.Add(path, nil); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for path %q, got %v", path, err)
		}
	}
}

func TestSchemaMustAddPanicsOnDuplicate(t *testing.T) {
	schema := NewSchema().MustAdd("prefix", "!")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustAdd to panic on duplicate path")
		}
	}()
	schema.MustAdd("prefix", "?")
}

func TestSchemaDefaultsIsIndependent(t *testing.T) {
	schema := NewSchema().
		MustAdd("prefix", "!").
		MustAdd("limits.daily", 10)

	defaults := schema.Defaults()
	want := map[string]any{
		"prefix": "!",
		"limits": map[string]any{"daily": 10},
	}
	if !reflect.DeepEqual(defaults, want) {
		t.Fatalf("unexpected defaults: %v", defaults)
	}

	defaults["prefix"] = "?"
	defaults["limits"].(map[string]any)["daily"] = 99
	again := schema.Defaults()
	if !reflect.DeepEqual(again, want) {
		t.Fatalf("mutating a defaults tree leaked into the schema: %v", again)
	}
}
