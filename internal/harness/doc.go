// Package harness runs YAML scenarios against a sync store and records
// what the store did as a trace.
//
// Each scenario drives one store of the given kind against an in-memory
// scripted collaborator (or no collaborator at all) with a deterministic
// clock and sequential entity ids, so the trace is byte-identical across
// runs and can be compared with a golden file.
//
// # Scenario Format
//
//	name: rollback_on_remote_failure
//	description: "A rejected update restores the previous collection"
//	kind: tasks
//	remote: scripted          # or "none"
//	remote_records:
//	  - { id: a, description: Elegir anillos, createdAt: 20 }
//	steps:
//	  - op: init
//	  - op: fail
//	    remote_op: update
//	    error: failure        # disabled, offline, unavailable, failure
//	  - op: update
//	    id: a
//	    changes: { completed: true }
//	    expect: { outcome: REMOTE_FAILURE }
//	assertions:
//	  - type: final_state
//	    id: a
//	    expect: { completed: false }
//
// Steps are init, add, update, delete, push (another client replaces the
// remote collection), fail (queue a remote error) and destroy.
//
// # Assertion Types
//
//   - emission_count: number of deliveries to the store's subscriber
//   - final_ids: the store's ids, in display order
//   - final_state: one entity matches expect (subset), or is absent
//   - sync_state: the store's final sync state
//   - remote_calls: the ordered remote operations
//   - remote_state: one remote document matches expect, or is absent
//   - persisted: local storage holds exactly the final collection
//
// # Trace
//
// The trace lists step, emit, call and state events in the order they
// happened. The initial delivery made by Subscribe is not recorded.
package harness
