package store

import (
	"context"
	"sync"
)

// Memory is an in-process KV store. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Get retrieves a value.
func (m *Memory) Get(_ context.Context, name string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores a copy of value.
func (m *Memory) Set(_ context.Context, name string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.mu.Lock()
	m.values[name] = cp
	m.mu.Unlock()
	return nil
}

// Remove deletes a value. Missing names are a no-op.
func (m *Memory) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.values, name)
	m.mu.Unlock()
	return nil
}

// Close does nothing for the memory store.
func (m *Memory) Close() error { return nil }

// Ensure Memory implements KV.
var _ KV = (*Memory)(nil)

// Null discards all writes and always misses.
type Null struct{}

// NewNull creates a null store.
func NewNull() *Null { return &Null{} }

func (*Null) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (*Null) Set(context.Context, string, []byte) error         { return nil }
func (*Null) Remove(context.Context, string) error              { return nil }
func (*Null) Close() error                                      { return nil }

// Ensure Null implements KV.
var _ KV = (*Null)(nil)
