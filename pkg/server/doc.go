// Package server hosts the board authority: an HTTP API serving board
// documents and accepting versioned patches, and websocket rooms relaying
// document deltas and presence between participants. An optional broker
// fans room traffic out across server instances.
package server
