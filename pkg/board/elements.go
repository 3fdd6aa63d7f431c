package board

import "slices"

// Elements is an ordered element list. Order is render order after SortByZ.
type Elements []Element

// Dedupe returns the list with duplicate ids removed, keeping the last entry
// per id and the position of its first occurrence. Transient merge states can
// briefly hold duplicates; every consumer of a merged document reads through
// this.
func (els Elements) Dedupe() Elements {
	if len(els) < 2 {
		return els
	}
	last := make(map[string]Element, len(els))
	order := make([]string, 0, len(els))
	for _, e := range els {
		id := e.Base().ID
		if _, seen := last[id]; !seen {
			order = append(order, id)
		}
		last[id] = e
	}
	if len(order) == len(els) {
		return els
	}
	out := make(Elements, 0, len(order))
	for _, id := range order {
		out = append(out, last[id])
	}
	return out
}

// ByID indexes the list by element id. Later duplicates win.
func (els Elements) ByID() map[string]Element {
	m := make(map[string]Element, len(els))
	for _, e := range els {
		m[e.Base().ID] = e
	}
	return m
}

// SortByZ orders the list back-to-front by z-index, ties broken by id so the
// order is identical on every client.
func (els Elements) SortByZ() {
	slices.SortStableFunc(els, func(a, b Element) int {
		ab, bb := a.Base(), b.Base()
		switch {
		case ab.ZIndex < bb.ZIndex:
			return -1
		case ab.ZIndex > bb.ZIndex:
			return 1
		case ab.ID < bb.ID:
			return -1
		case ab.ID > bb.ID:
			return 1
		}
		return 0
	})
}

// Visible filters out hidden elements.
func (els Elements) Visible() Elements {
	out := make(Elements, 0, len(els))
	for _, e := range els {
		if !e.Base().Hidden {
			out = append(out, e)
		}
	}
	return out
}

// Alive filters out deletion tombstones.
func (els Elements) Alive() Elements {
	out := make(Elements, 0, len(els))
	for _, e := range els {
		if !e.Base().Deleted {
			out = append(out, e)
		}
	}
	return out
}

// TopZ returns a z-index above every element in the list.
func (els Elements) TopZ() float64 {
	top := 0.0
	for _, e := range els {
		if z := e.Base().ZIndex; z >= top {
			top = z + 1
		}
	}
	return top
}

// Clone deep-copies the list.
func (els Elements) Clone() Elements {
	out := make(Elements, len(els))
	for i, e := range els {
		out[i] = e.Clone()
	}
	return out
}
