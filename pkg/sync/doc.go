// Package sync implements the collaboration layer: a conflict-resolved
// shared element document plus an ephemeral awareness channel for presence.
//
// # Document merging
//
// The document is a table of elements keyed by id. Merging is whole-element
// last-write-wins: a write is applied when its (version, site) pair exceeds
// the stored one, where version is a lamport stamp and site breaks ties
// between truly concurrent writes. Concurrent edits to different elements
// always both survive; concurrent edits to the same element converge to the
// same winner on every client regardless of arrival order. Deletions
// replicate as tombstoned writes so they participate in the same comparison.
//
// # Awareness
//
// Presence (cursor, viewport, in-progress drawing) travels on a separate
// channel and is never written to the document. Rapid presence updates
// within one frame coalesce into a single broadcast of the latest value.
//
// # Sessions
//
// A [Session] joins a room over a [Transport], wires the document and
// awareness together, runs the ephemeral-element expiry sweep and exposes
// the contract the interaction layer and renderer consume. Use [NewLoopback]
// to connect sessions in-process, or transport/ws for the network path.
package sync
