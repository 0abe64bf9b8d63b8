package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wedplan/internal/entity"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func eventsOf(trace []TraceEvent, typ string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestRunAddThenSync(t *testing.T) {
	s := mustParse(t, `
name: add_then_sync
description: "an add on an active store reaches the remote"
kind: tasks
steps:
  - op: init
  - op: add
    record: { description: "Comprar los anillos", priority: alta }
    expect: { outcome: ok, id: id-1 }
assertions:
  - type: remote_calls
    ops: [listen, add]
  - type: remote_state
    id: id-1
    expect: { priority: alta, completed: false }
  - type: final_ids
    ids: [id-1]
  - type: persisted
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	calls := eventsOf(result.Trace, EventCall)
	require.Len(t, calls, 2)
	assert.Equal(t, "add", calls[1].Op)
	assert.Equal(t, "id-1", calls[1].ID)
	assert.NotContains(t, calls[1].Payload, "id", "the id travels as the document key")

	// listen snapshot, optimistic insert, echo of the write
	assert.Len(t, eventsOf(result.Trace, EventEmit), 3)
}

func TestRunDegradeOffline(t *testing.T) {
	s := mustParse(t, `
name: offline
description: "offline writes keep the optimistic change"
kind: venues
remote_records:
  - { id: v1, name: "Finca El Olivar" }
steps:
  - op: init
  - op: fail
    remote_op: delete
    error: offline
  - op: delete
    id: v1
    expect: { outcome: ok }
assertions:
  - type: final_ids
    ids: []
  - type: sync_state
    state: local-only
  - type: remote_state
    id: v1
    expect: { name: "Finca El Olivar" }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	states := eventsOf(result.Trace, EventState)
	require.Len(t, states, 2)
	assert.Equal(t, "remote-active", states[0].State)
	assert.Equal(t, "local-only", states[1].State)

	calls := eventsOf(result.Trace, EventCall)
	require.Len(t, calls, 2)
	assert.Equal(t, "OFFLINE", calls[1].Error)
}

func TestRunReportsFailedExpectations(t *testing.T) {
	s := mustParse(t, `
name: wrong
description: "expectations that do not hold are reported"
kind: milestones
remote: none
steps:
  - op: init
  - op: add
    record: { title: "" }
    expect: { outcome: ok }
assertions:
  - type: emission_count
    count: 5
  - type: sync_state
    state: remote-active
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected outcome ok, got invalid")
	assert.Contains(t, result.Errors[1], "emission_count")
	assert.Contains(t, result.Errors[2], "Expected: remote-active")
}

func TestRunIsDeterministic(t *testing.T) {
	s := mustParse(t, `
name: twice
description: "two runs give the same trace"
kind: budget
steps:
  - op: init
  - op: add
    record: { concept: "Flores", category: decoracion, estimated: "1.250,50" }
  - op: update
    id: id-1
    changes: { paid: true }
assertions:
  - type: final_state
    id: id-1
    expect: { estimated: 1250.5, paid: true }
`)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.True(t, first.Pass, "errors: %v", first.Errors)
	a, err := MarshalTrace(s, first)
	require.NoError(t, err)
	b, err := MarshalTrace(s, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRunDestroyStopsSnapshots(t *testing.T) {
	s := mustParse(t, `
name: destroyed
description: "no snapshots arrive after destroy"
kind: ideas
steps:
  - op: init
  - op: destroy
  - op: push
    records:
      - { id: i1, title: "Centros de mesa" }
assertions:
  - type: final_ids
    ids: []
  - type: emission_count
    count: 1
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunRestoresIDGenerator(t *testing.T) {
	s := mustParse(t, minimalScenario)
	_, err := Run(s)
	require.NoError(t, err)

	id := entity.NewID()
	assert.NotEqual(t, "id-1", id)
	assert.Len(t, id, 36, "UUID ids are back after a run")
}
