package patch

import (
	"reflect"
	"testing"
)

func root() map[string]any {
	return map[string]any{
		"name":    "retro board",
		"version": float64(3),
		"meta": map[string]any{
			"owner": "ada",
			"tags":  []any{"retro", "team"},
		},
	}
}

func TestApply_ReplaceIdempotent(t *testing.T) {
	ops := []Operation{{Op: OpReplace, Path: "/name", Value: "renamed"}}

	once, err := Apply(root(), ops)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	twice, err := Apply(once, ops)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("replace is not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
	if twice["name"] != "renamed" {
		t.Errorf("name = %v, want renamed", twice["name"])
	}
}

func TestApply_RemoveIdempotent(t *testing.T) {
	ops := []Operation{{Op: OpRemove, Path: "/meta/owner"}}

	once, err := Apply(root(), ops)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	twice, err := Apply(once, ops)
	if err != nil {
		t.Fatalf("second apply (remove of now-missing path): %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Error("remove is not idempotent")
	}
	if _, ok := twice["meta"].(map[string]any)["owner"]; ok {
		t.Error("owner survived removal")
	}
}

func TestApply_RemoveMissingPathIsNoop(t *testing.T) {
	before := root()
	after, err := Apply(before, []Operation{{Op: OpRemove, Path: "/never/existed"}})
	if err != nil {
		t.Fatalf("remove of missing path errored: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Error("remove of missing path changed the document")
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	before := root()
	if _, err := Apply(before, []Operation{
		{Op: OpReplace, Path: "/name", Value: "x"},
		{Op: OpAdd, Path: "/meta/color", Value: "blue"},
	}); err != nil {
		t.Fatal(err)
	}
	if before["name"] != "retro board" {
		t.Error("Apply mutated the input root")
	}
	if _, ok := before["meta"].(map[string]any)["color"]; ok {
		t.Error("Apply mutated a nested map of the input root")
	}
}

func TestApply_AddCreatesIntermediateMaps(t *testing.T) {
	got, err := Apply(map[string]any{}, []Operation{
		{Op: OpAdd, Path: "/settings/grid/size", Value: float64(16)},
	})
	if err != nil {
		t.Fatal(err)
	}
	size := got["settings"].(map[string]any)["grid"].(map[string]any)["size"]
	if size != float64(16) {
		t.Errorf("size = %v, want 16", size)
	}
}

func TestApply_ArrayElement(t *testing.T) {
	got, err := Apply(root(), []Operation{
		{Op: OpReplace, Path: "/meta/tags/1", Value: "sprint"},
	})
	if err != nil {
		t.Fatal(err)
	}
	tags := got["meta"].(map[string]any)["tags"].([]any)
	if tags[1] != "sprint" {
		t.Errorf("tags = %v", tags)
	}
}

func TestApply_EscapedPointerSegments(t *testing.T) {
	got, err := Apply(map[string]any{"a/b": "old", "t~e": "old"}, []Operation{
		{Op: OpReplace, Path: "/a~1b", Value: "new"},
		{Op: OpReplace, Path: "/t~0e", Value: "new"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got["a/b"] != "new" || got["t~e"] != "new" {
		t.Errorf("escaped segments not applied: %v", got)
	}
}

func TestDiff_ThenApplyConverges(t *testing.T) {
	before := root()
	after := root()
	after["name"] = "planning"
	delete(after["meta"].(map[string]any), "owner")
	after["count"] = float64(2)

	ops, err := Diff(before, after)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(ops) == 0 {
		t.Fatal("diff produced no ops for a real change")
	}

	got, err := Apply(before, ops)
	if err != nil {
		t.Fatalf("apply diff: %v", err)
	}
	if !reflect.DeepEqual(got, after) {
		t.Errorf("apply(diff) did not converge:\ngot:  %v\nwant: %v", got, after)
	}
}

func TestDiff_NoChange(t *testing.T) {
	ops, err := Diff(root(), root())
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Errorf("diff of identical documents = %v, want empty", ops)
	}
}
