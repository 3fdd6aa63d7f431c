// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about document merges, presence broadcasts,
// shape-cache operations and patch flushes.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This keeps the engine free of observability framework imports while still
// supporting any backend (OpenTelemetry, Prometheus, plain logs).
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetSyncHooks(&mySyncHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Sync().OnMerge(ctx, room, applied, dropped)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Sync Hooks
// =============================================================================

// SyncHooks receives events from the collaboration sync layer.
type SyncHooks interface {
	// OnMerge records a document merge: how many remote element writes were
	// applied and how many lost the last-write-wins comparison.
	OnMerge(ctx context.Context, room string, applied, dropped int)

	// OnBroadcast records one coalesced presence broadcast frame.
	OnBroadcast(ctx context.Context, room string, fields int)

	// OnExpiry records an ephemeral-element sweep.
	OnExpiry(ctx context.Context, room string, removed int)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from shape-cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Flush Hooks
// =============================================================================

// FlushHooks receives events from the patch/persistence bridge.
type FlushHooks interface {
	// OnFlushStart records the beginning of a remote flush.
	OnFlushStart(ctx context.Context, boardID string, ops int)

	// OnFlushComplete records a finished flush, successful or not.
	OnFlushComplete(ctx context.Context, boardID string, ops int, duration time.Duration, err error)

	// OnConflict records an optimistic-concurrency rejection.
	OnConflict(ctx context.Context, boardID string, expected, actual int64)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopSyncHooks is a no-op implementation of SyncHooks.
type NoopSyncHooks struct{}

func (NoopSyncHooks) OnMerge(context.Context, string, int, int) {}
func (NoopSyncHooks) OnBroadcast(context.Context, string, int)  {}
func (NoopSyncHooks) OnExpiry(context.Context, string, int)     {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopFlushHooks is a no-op implementation of FlushHooks.
type NoopFlushHooks struct{}

func (NoopFlushHooks) OnFlushStart(context.Context, string, int)                          {}
func (NoopFlushHooks) OnFlushComplete(context.Context, string, int, time.Duration, error) {}
func (NoopFlushHooks) OnConflict(context.Context, string, int64, int64)                   {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	syncHooks  SyncHooks  = NoopSyncHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	flushHooks FlushHooks = NoopFlushHooks{}
	hooksMu    sync.RWMutex
)

// SetSyncHooks registers custom sync hooks.
// This should be called once at application startup before any sync sessions.
func SetSyncHooks(h SyncHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		syncHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetFlushHooks registers custom flush hooks.
// This should be called once at application startup before any bridge flushes.
func SetFlushHooks(h FlushHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		flushHooks = h
	}
}

// Sync returns the registered sync hooks.
func Sync() SyncHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return syncHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Flush returns the registered flush hooks.
func Flush() FlushHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return flushHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	syncHooks = NoopSyncHooks{}
	cacheHooks = NoopCacheHooks{}
	flushHooks = NoopFlushHooks{}
}
