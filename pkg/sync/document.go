package sync

import (
	stdsync "sync"

	"github.com/boardkit/boardkit/pkg/board"
)

// Document is the shared element table. Only the sync layer applies writes;
// everything else reads snapshots and proposes intents through a Session.
//
// Safe for concurrent use.
type Document struct {
	mu       stdsync.RWMutex
	elements map[string]board.Element
	clock    int64
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{elements: make(map[string]board.Element)}
}

// Snapshot returns the live elements (tombstones filtered), deep-copied and
// in deterministic back-to-front render order.
func (d *Document) Snapshot() board.Elements {
	d.mu.RLock()
	out := make(board.Elements, 0, len(d.elements))
	for _, e := range d.elements {
		if !e.Base().Deleted {
			out = append(out, e.Clone())
		}
	}
	d.mu.RUnlock()
	out.SortByZ()
	return out
}

// snapshotAll includes tombstones, for catch-up responses: a late joiner
// must learn about deletions or resurrect stale elements.
func (d *Document) snapshotAll() board.Elements {
	d.mu.RLock()
	out := make(board.Elements, 0, len(d.elements))
	for _, e := range d.elements {
		out = append(out, e.Clone())
	}
	d.mu.RUnlock()
	out.SortByZ()
	return out
}

// get returns the stored element for id, if any.
func (d *Document) get(id string) (board.Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.elements[id]
	return e, ok
}

// Clock returns the document's current lamport time.
func (d *Document) Clock() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.clock
}

// tick advances the lamport clock for a local write.
func (d *Document) tick() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock++
	return d.clock
}

// merge applies writes under last-write-wins. A write is applied when no
// element with its id exists, or when its (version, site) pair wins against
// the stored one. The lamport clock absorbs every observed version so later
// local writes order after everything seen. Returns how many writes were
// applied and how many lost.
func (d *Document) merge(writes board.Elements) (applied, dropped int) {
	// Duplicates inside one batch collapse to the last entry first, so a
	// transiently duplicated batch cannot double-apply.
	writes = writes.Dedupe()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range writes {
		wb := w.Base()
		if wb.ID == "" {
			dropped++
			continue
		}
		if wb.Version > d.clock {
			d.clock = wb.Version
		}
		cur, ok := d.elements[wb.ID]
		if ok && !wins(wb, cur.Base()) {
			dropped++
			continue
		}
		d.elements[wb.ID] = w.Clone()
		applied++
	}
	return applied, dropped
}

// wins reports whether the incoming write beats the stored element.
// Equal (version, site) pairs lose: re-delivery of the same write is a no-op.
func wins(incoming, stored *board.Core) bool {
	if incoming.Version != stored.Version {
		return incoming.Version > stored.Version
	}
	return incoming.Site > stored.Site
}

// Len reports the number of stored elements, tombstones included.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.elements)
}
