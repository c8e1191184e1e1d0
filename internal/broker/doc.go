// Package broker implements multi-client buffer synchronization: a
// single-writer owner/follower protocol over a shared rope, ordered by an
// epoch/sequence logical clock and broadcast to participants as events.
//
// It is the server side of a document shared across editor sessions. A
// Document opened by more than one session elects its first opener as the
// Owner; every other opener is a Follower that receives the owner's edits
// as BufferSyncDelta events. Ownership transfers deterministically to
// participants[0] on owner close or disconnect, or on an explicit
// take-ownership request.
//
// The wire codec and network transport (the IPC frames documented in the
// broker's external interface section) are external collaborators, not
// re-specified here; this package defines the core protocol state machine
// and an EventSink interface that a transport implementation plugs into.
package broker
