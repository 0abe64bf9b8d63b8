// Package remote defines the boundary to the optional real-time document
// store.
//
// A Collaborator is injected at runtime through a Ready signal that is
// raised exactly once. Binding adapts a collaborator collection to one
// entity kind: it normalizes incoming snapshots and shapes outgoing
// payloads.
//
// # Error Taxonomy
//
// Every failure is a *SyncError with a code:
//   - SYNC_UNAVAILABLE: no collaborator or collection, sync never starts
//   - SYNC_DISABLED and OFFLINE: the store degrades to local-only and
//     keeps its optimistic state (IsSyncDisabled)
//   - REMOTE_FAILURE: hard failure, the store rolls back
//
// Snapshot records carry their document id under "id".
package remote
