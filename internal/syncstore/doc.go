// Package syncstore implements the local-first reconciling store.
//
// One Store[T] exists per entity kind. It owns the authoritative,
// always-sorted collection and keeps it consistent with two collaborators:
// local persistence (store.Collection) and, when available, a remote
// collection reached through remote.Binding.
//
// MUTATION PROTOCOL:
//
// 1. Snapshot the current collection
// 2. Apply the change optimistically, sort, persist and emit
// 3. If remote sync is active, forward the change
// 4. On success, wait for the remote snapshot to confirm it
// 5. On a sync-disabled or offline error, stop listening, switch to
//    LocalOnly and keep the optimistic state
// 6. On any other error, restore the snapshot, persist, emit and return
//    the error
//
// RECONCILIATION:
//
// Every remote snapshot replaces the collection wholesale; there is no
// merge with pending local writes, so the remote always wins. Snapshots
// from a listener that has been replaced or stopped are ignored.
//
// CONCURRENCY:
//
// A Store is safe for concurrent use. State changes happen under mu and
// take an Emitter ticket before mu is released, so listeners observe
// collections in the order they were applied while running with no lock
// held. Remote calls run with no lock held either. A rollback restores
// the collection as it was when that mutation started, which can undo a
// concurrent optimistic change made in between. Listeners may read the
// store that is notifying them but must not mutate it.
package syncstore
