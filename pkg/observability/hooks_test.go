package observability

import (
	"context"
	"testing"
)

type countingSyncHooks struct {
	NoopSyncHooks
	merges int
}

func (h *countingSyncHooks) OnMerge(_ context.Context, _ string, _, _ int) { h.merges++ }

func TestSetAndResetHooks(t *testing.T) {
	t.Cleanup(Reset)

	h := &countingSyncHooks{}
	SetSyncHooks(h)

	Sync().OnMerge(context.Background(), "room", 2, 1)
	if h.merges != 1 {
		t.Errorf("merges = %d, want 1", h.merges)
	}

	Reset()
	Sync().OnMerge(context.Background(), "room", 1, 0)
	if h.merges != 1 {
		t.Errorf("custom hook still registered after Reset, merges = %d", h.merges)
	}
}

func TestSetNilKeepsDefault(t *testing.T) {
	t.Cleanup(Reset)

	SetCacheHooks(nil)
	if Cache() == nil {
		t.Fatal("Cache() returned nil after SetCacheHooks(nil)")
	}
	// No-op hooks must be safe to call.
	Cache().OnCacheHit(context.Background(), "shape")
	Flush().OnFlushStart(context.Background(), "b1", 3)
}
