// Package bridge persists board state outside the live collaboration path.
//
// It queues local document mutations as JSON Patch operations, debounces and
// flushes them to the remote authority under optimistic concurrency, and
// mirrors the latest state into a local key-value store. The mirror is best
// effort and never blocks interactive work; the remote flush retains its
// queue across failures so edits survive a version conflict until the caller
// re-fetches and retries.
package bridge
