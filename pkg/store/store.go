// Package store provides the durable local mirror used by the persistence
// bridge: a small key-value contract over serialized board state.
//
// The mirror is best-effort. Callers treat every operation as
// non-critical; a failed write degrades to "unsaved locally" and never blocks
// an interactive flow. Values are opaque versioned blobs with no schema.
//
// Implementations:
//   - memory: process-local map for tests and ephemeral sessions
//   - file: hash-sharded files in a directory for desktop/CLI usage
//   - null: discards everything, for disabling the mirror
package store

import "context"

// KV is the durable local mirror contract.
type KV interface {
	// Get retrieves a value. The second return is false on a miss.
	Get(ctx context.Context, name string) ([]byte, bool, error)

	// Set stores a value, overwriting any previous one.
	Set(ctx context.Context, name string, value []byte) error

	// Remove deletes a value. Removing a missing name is not an error.
	Remove(ctx context.Context, name string) error

	// Close releases any resources held by the store.
	Close() error
}

// Scoped wraps a KV with a name prefix, isolating one board's entries from
// another's inside a shared store.
type Scoped struct {
	inner  KV
	prefix string
}

// NewScoped creates a prefixed view of a store.
func NewScoped(inner KV, prefix string) *Scoped {
	return &Scoped{inner: inner, prefix: prefix}
}

func (s *Scoped) Get(ctx context.Context, name string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+name)
}

func (s *Scoped) Set(ctx context.Context, name string, value []byte) error {
	return s.inner.Set(ctx, s.prefix+name, value)
}

func (s *Scoped) Remove(ctx context.Context, name string) error {
	return s.inner.Remove(ctx, s.prefix+name)
}

func (s *Scoped) Close() error { return s.inner.Close() }

// Ensure Scoped implements KV.
var _ KV = (*Scoped)(nil)
