package settingsgateway

import (
	"errors"
	"reflect"
	"testing"
)

func testSchema() *Schema {
	return NewSchema().
		MustAdd("prefix", "!").
		MustAdd("roles.admin", "").
		MustAdd("roles.moderator", "").
		MustAdd("limits.daily", 10)
}

func TestSettingsFolderStartsAtDefaults(t *testing.T) {
	folder := newSettingsFolder(testSchema())
	value, ok := folder.Get("prefix")
	if !ok || value != "!" {
		t.Fatalf("expected default prefix, got %v ok=%v", value, ok)
	}
	if _, ok := folder.Get("unknown"); ok {
		t.Fatalf("expected unknown path to miss")
	}
}

func TestSettingsFolderPatch(t *testing.T) {
	folder := newSettingsFolder(testSchema())
	folder.Patch(map[string]any{
		"prefix": "?",
		"roles":  map[string]any{"admin": "staff"},
		"bogus":  "dropped",
		"limits": map[string]any{"weekly": 70},
	})

	if value, _ := folder.Get("prefix"); value != "?" {
		t.Fatalf("expected patched prefix, got %v", value)
	}
	if value, _ := folder.Get("roles.admin"); value != "staff" {
		t.Fatalf("expected patched roles.admin, got %v", value)
	}
	// Unpatched siblings keep their values.
	if value, _ := folder.Get("roles.moderator"); value != "" {
		t.Fatalf("expected untouched roles.moderator, got %v", value)
	}
	// Paths outside the schema never enter the tree.
	snapshot := folder.Snapshot()
	if _, ok := snapshot["bogus"]; ok {
		t.Fatalf("unknown top-level key survived patch: %v", snapshot)
	}
	if _, ok := snapshot["limits"].(map[string]any)["weekly"]; ok {
		t.Fatalf("unknown nested key survived patch: %v", snapshot)
	}
}

func TestSettingsFolderSnapshotIsIndependent(t *testing.T) {
	folder := newSettingsFolder(testSchema())
	snapshot := folder.Snapshot()
	snapshot["roles"].(map[string]any)["admin"] = "mutated"
	if value, _ := folder.Get("roles.admin"); value != "" {
		t.Fatalf("snapshot mutation leaked into the folder: %v", value)
	}
}

func TestSettingsFolderPrepareDropsNoOps(t *testing.T) {
	folder := newSettingsFolder(testSchema())
	changes, err := folder.prepare([]UpdatePair{
		{Path: "prefix", Value: "!"},
		{Path: "roles.admin", Value: "staff"},
	})
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected the no-op pair to be dropped, got %v", changes)
	}
	if changes[0].Entry.Path != "roles.admin" || changes[0].Previous != "" || changes[0].Next != "staff" {
		t.Fatalf("unexpected change record: %+v", changes[0])
	}
}

func TestSettingsFolderPrepareLaterPairWins(t *testing.T) {
	folder := newSettingsFolder(testSchema())
	changes, err := folder.prepare([]UpdatePair{
		{Path: "prefix", Value: "?"},
		{Path: "prefix", Value: "$"},
	})
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected two records, got %v", changes)
	}
	// The second record's previous value is what the first staged.
	if changes[1].Previous != "?" || changes[1].Next != "$" {
		t.Fatalf("unexpected second record: %+v", changes[1])
	}
}

func TestSettingsFolderPrepareUnknownPath(t *testing.T) {
	folder := newSettingsFolder(testSchema())
	_, err := folder.prepare([]UpdatePair{{Path: "nope", Value: 1}})
	if !errors.Is(err, ErrUnknownPath) {
		t.Fatalf("expected ErrUnknownPath, got %v", err)
	}
}

func TestSettingsFolderPrepareDoesNotMutate(t *testing.T) {
	folder := newSettingsFolder(testSchema())
	if _, err := folder.prepare([]UpdatePair{{Path: "prefix", Value: "?"}}); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if value, _ := folder.Get("prefix"); value != "!" {
		t.Fatalf("prepare mutated the folder: %v", value)
	}
}

func TestSettingsFolderCommitAndReset(t *testing.T) {
	folder := newSettingsFolder(testSchema())
	changes, err := folder.prepare([]UpdatePair{{Path: "limits.daily", Value: 25}})
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	folder.commit(changes)
	if value, _ := folder.Get("limits.daily"); value != 25 {
		t.Fatalf("commit did not apply: %v", value)
	}

	folder.reset()
	want := testSchema().Defaults()
	if got := folder.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("reset did not restore defaults: %v", got)
	}
}
