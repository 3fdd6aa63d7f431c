package store

import (
	"bytes"
	"context"
	"testing"
)

func testKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, hit, err := kv.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("Get(missing) = hit=%v err=%v, want miss", hit, err)
	}

	if err := kv.Set(ctx, "board:1", []byte(`{"version":3}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, hit, err := kv.Get(ctx, "board:1")
	if err != nil || !hit {
		t.Fatalf("Get after Set = hit=%v err=%v", hit, err)
	}
	if !bytes.Equal(got, []byte(`{"version":3}`)) {
		t.Errorf("Get = %s", got)
	}

	// Overwrite
	if err := kv.Set(ctx, "board:1", []byte(`{"version":4}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = kv.Get(ctx, "board:1")
	if !bytes.Equal(got, []byte(`{"version":4}`)) {
		t.Errorf("after overwrite = %s", got)
	}

	// Remove, twice (idempotent)
	if err := kv.Remove(ctx, "board:1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := kv.Remove(ctx, "board:1"); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
	if _, hit, _ := kv.Get(ctx, "board:1"); hit {
		t.Error("value survived Remove")
	}
}

func TestMemory(t *testing.T) {
	kv := NewMemory()
	defer kv.Close()
	testKV(t, kv)
}

func TestFile(t *testing.T) {
	kv, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	testKV(t, kv)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	kv.Set(ctx, "k", []byte("abc"))

	got, _, _ := kv.Get(ctx, "k")
	got[0] = 'x'

	again, _, _ := kv.Get(ctx, "k")
	if string(again) != "abc" {
		t.Error("mutating a returned value leaked into the store")
	}
}

func TestNull(t *testing.T) {
	ctx := context.Background()
	kv := NewNull()
	if err := kv.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, hit, _ := kv.Get(ctx, "k"); hit {
		t.Error("Null store should never hit")
	}
}

func TestScoped_Isolation(t *testing.T) {
	ctx := context.Background()
	backing := NewMemory()
	a := NewScoped(backing, "board:a:")
	b := NewScoped(backing, "board:b:")

	a.Set(ctx, "state", []byte("A"))
	b.Set(ctx, "state", []byte("B"))

	got, _, _ := a.Get(ctx, "state")
	if string(got) != "A" {
		t.Errorf("scope a = %s, want A", got)
	}
	b.Remove(ctx, "state")
	if _, hit, _ := a.Get(ctx, "state"); !hit {
		t.Error("removing in scope b affected scope a")
	}
}
