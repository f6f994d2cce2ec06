package settingsgateway

import (
	"context"
	"reflect"
	"testing"
)

func TestUpdateDataNestedMergesSiblings(t *testing.T) {
	nested := UpdateData(map[string]any{
		"a.b": 1,
		"a.c": 2,
		"d":   "x",
	}).Nested()

	want := map[string]any{
		"a": map[string]any{"b": 1, "c": 2},
		"d": "x",
	}
	if !reflect.DeepEqual(nested, want) {
		t.Fatalf("unexpected nested payload: %v", nested)
	}
}

func TestUpdateDataNestedMergesMapValues(t *testing.T) {
	// A map value at a path merges with what a sibling path already put
	// there instead of replacing the parent object.
	nested := UpdateData(map[string]any{
		"a":   map[string]any{"b": 1},
		"a.c": 2,
	}).Nested()

	want := map[string]any{
		"a": map[string]any{"b": 1, "c": 2},
	}
	if !reflect.DeepEqual(nested, want) {
		t.Fatalf("unexpected nested payload: %v", nested)
	}
}

func TestUpdateChangesNestedLaterWins(t *testing.T) {
	entry := &SchemaEntry{Path: "prefix", Key: "prefix", Default: "!"}
	nested := UpdateChanges(SettingsUpdateResults{
		{Entry: entry, Previous: "!", Next: "?"},
		{Entry: entry, Previous: "?", Next: "$"},
	}).Nested()

	if !reflect.DeepEqual(nested, map[string]any{"prefix": "$"}) {
		t.Fatalf("expected later change to win, got %v", nested)
	}
}

func TestUpdateInputNestedIsIndependent(t *testing.T) {
	source := map[string]any{"a.b": map[string]any{"c": 1}}
	nested := UpdateData(source).Nested()

	nested["a"].(map[string]any)["b"].(map[string]any)["c"] = 99
	if source["a.b"].(map[string]any)["c"] != 1 {
		t.Fatalf("mutating the nested payload leaked into the input")
	}
}

func TestRowCloneIsIndependent(t *testing.T) {
	row := Row{ID: "guild", Data: map[string]any{"roles": map[string]any{"admin": "a"}}}
	clone := row.Clone()
	clone.Data["roles"].(map[string]any)["admin"] = "b"
	if row.Data["roles"].(map[string]any)["admin"] != "a" {
		t.Fatalf("clone shares structure with the original row")
	}
}

func TestBaseProviderNoOps(t *testing.T) {
	ctx := context.Background()
	var base BaseProvider
	if err := base.AddColumn(ctx, "t", "c", nil); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if err := base.RemoveColumn(ctx, "t", "c"); err != nil {
		t.Fatalf("RemoveColumn: %v", err)
	}
	if err := base.UpdateColumn(ctx, "t", "c", nil); err != nil {
		t.Fatalf("UpdateColumn: %v", err)
	}
	columns, err := base.GetColumns(ctx, "t")
	if err != nil {
		t.Fatalf("GetColumns: %v", err)
	}
	if len(columns) != 0 {
		t.Fatalf("expected no columns, got %v", columns)
	}
	if err := base.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
