// Package board defines the element model shared by every Boardkit subsystem.
//
// A board is a flat collection of elements keyed by id. Each element kind
// (rectangle, ellipse, pen stroke, text, ...) is its own struct embedding a
// shared [Core] record, so code that only cares about position, style or
// identity works uniformly via [Element.Base] while kind-specific payloads
// stay strongly typed.
//
// # Identity and versioning
//
// Element ids are the sole identity used for merging and deduplication.
// Every mutation bumps the element's lamport version; concurrent writes to
// the same id converge to the highest (version, site) pair. See pkg/sync for
// the merge rules.
//
// # Serialization
//
// Elements serialize to JSON with a "type" tag. Use [MarshalElement] and
// [UnmarshalElement] (or the [Elements] slice helpers) rather than
// encoding/json directly, since the concrete type must be recovered from the
// tag on the way in.
package board
