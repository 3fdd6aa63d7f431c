package shape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/boardkit/boardkit/pkg/board"
	"github.com/boardkit/boardkit/pkg/observability"
)

// Cache memoizes generated shape geometry per (element id, style hash).
//
// Mutators must call Invalidate before the next read of a changed element or
// the cached geometry goes stale; the style hash catches style-only changes
// automatically, but geometry changes (size, points) do not alter the key and
// rely on invalidation.
//
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	logger  *log.Logger
}

type cacheEntry struct {
	hash  string
	paths []Path
}

// NewCache creates an empty shape cache. A nil logger suppresses generation
// failure logging.
func NewCache(logger *log.Logger) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		logger:  logger,
	}
}

// ShapeFor returns the cached geometry for the element, generating it on
// miss. Generation failures degrade to nil: a malformed element renders as
// nothing rather than breaking the whole pass.
func (c *Cache) ShapeFor(e board.Element, style Style) []Path {
	id := e.Base().ID
	hash := styleHash(id, e.Base().Seed, style)
	ctx := context.Background()

	c.mu.Lock()
	if entry, ok := c.entries[id]; ok && entry.hash == hash {
		c.mu.Unlock()
		observability.Cache().OnCacheHit(ctx, "shape")
		return entry.paths
	}
	c.mu.Unlock()
	observability.Cache().OnCacheMiss(ctx, "shape")

	paths := c.generate(e, style)

	c.mu.Lock()
	c.entries[id] = cacheEntry{hash: hash, paths: paths}
	c.mu.Unlock()
	observability.Cache().OnCacheSet(ctx, "shape", len(paths))
	return paths
}

// generate runs the generator with panic containment.
func (c *Cache) generate(e board.Element, style Style) (paths []Path) {
	defer func() {
		if r := recover(); r != nil {
			if c.logger != nil {
				c.logger.Error("shape generation failed", "element", e.Base().ID, "panic", fmt.Sprint(r))
			}
			paths = nil
		}
	}()
	return Generate(e, style)
}

// Invalidate drops the cached geometry for one element. Call it from every
// mutation path before the element is next rendered.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// InvalidateAll empties the cache, e.g. after a full document replacement.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of cached elements.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// styleHash keys the cache on every input of deterministic generation: the
// id and stored seed plus all visual style parameters.
func styleHash(id string, seed uint64, style Style) string {
	data, _ := json.Marshal([]any{id, seed, style})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
