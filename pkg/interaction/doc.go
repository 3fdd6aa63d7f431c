// Package interaction turns pointer and keyboard input into board mutations.
//
// A Machine holds the per-tool state: drawing accumulates a draft element,
// dragging applies snap-adjusted deltas to the selection, resizing and
// rotating transform it around its bounds, the eraser marks elements until
// release, and a parallel sub-state handles text editing. Transient movement
// goes out as presence; only pointer-up commits a mutation intent, and a
// multi-element commit is always a single intent. Escape abandons whatever is
// in progress without touching the document.
package interaction
