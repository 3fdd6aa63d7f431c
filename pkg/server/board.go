package server

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/boardkit/boardkit/pkg/errors"
	"github.com/boardkit/boardkit/pkg/patch"
)

// Board is the durable form of one board.
type Board struct {
	ID        string         `json:"id" bson:"_id"`
	Name      string         `json:"name,omitempty" bson:"name,omitempty"`
	Version   int64          `json:"version" bson:"version"`
	Data      map[string]any `json:"data" bson:"data"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// BoardStore persists boards. ApplyPatch is the only mutation path clients
// reach: it enforces optimistic concurrency against the expected version and
// returns errors.VersionConflictError when the token is stale.
type BoardStore interface {
	Get(ctx context.Context, id string) (*Board, error)
	Put(ctx context.Context, b *Board) error
	ApplyPatch(ctx context.Context, id string, expected int64, ops []patch.Operation) (*Board, error)
	Close(ctx context.Context) error
}

// MemoryStore is an in-process BoardStore for tests and single-node use.
type MemoryStore struct {
	mu     stdsync.Mutex
	boards map[string]*Board
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{boards: make(map[string]*Board)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeBoardNotFound, "board %s not found", id)
	}
	cp := *b
	cp.Data = deepCopy(b.Data)
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, b *Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	cp.Data = deepCopy(b.Data)
	cp.UpdatedAt = time.Now()
	s.boards[b.ID] = &cp
	return nil
}

func (s *MemoryStore) ApplyPatch(_ context.Context, id string, expected int64, ops []patch.Operation) (*Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeBoardNotFound, "board %s not found", id)
	}
	if b.Version != expected {
		return nil, &errors.VersionConflictError{Expected: expected, Actual: b.Version}
	}
	next, err := patch.Apply(b.Data, ops)
	if err != nil {
		return nil, err
	}
	b.Data = next
	b.Version++
	b.UpdatedAt = time.Now()
	cp := *b
	cp.Data = deepCopy(b.Data)
	return &cp, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			out[k] = deepCopy(t)
		case []any:
			cp := make([]any, len(t))
			copy(cp, t)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
