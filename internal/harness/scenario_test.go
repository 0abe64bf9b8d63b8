package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "smallest valid scenario"
kind: tasks
steps:
  - op: init
assertions:
  - type: sync_state
    state: remote-active
`

func TestParseScenarioMinimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "tasks", s.Kind)
	assert.True(t, s.scripted(), "remote defaults to scripted")
	assert.True(t, s.echo(), "echo defaults to true")
	require.Len(t, s.Steps, 1)
	assert.Equal(t, OpInit, s.Steps[0].Op)
}

func TestParseScenarioRecords(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: records
description: "records decode as maps"
kind: guests
echo: false
remote_records:
  - { id: g1, name: Lucia, companions: 2 }
steps:
  - op: add
    record: { name: Mateo, side: novio }
  - op: update
    id: g1
    changes: {}
assertions:
  - type: final_ids
    ids: [g1]
`))
	require.NoError(t, err)

	assert.False(t, s.echo())
	require.Len(t, s.RemoteRecords, 1)
	assert.Equal(t, "Lucia", s.RemoteRecords[0]["name"])
	assert.Equal(t, 2, s.RemoteRecords[0]["companions"])
	assert.Equal(t, "novio", s.Steps[0].Record["side"])
	assert.NotNil(t, s.Steps[1].Changes, "an empty change-set is still a change-set")
}

func TestParseScenarioRejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "assertion instead of assertions"
kind: tasks
steps:
  - op: init
assertion:
  - type: sync_state
    state: local-only
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateScenario(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: `
description: d
kind: tasks
steps: [{op: init}]
assertions: [{type: persisted}]`,
			want: "name is required",
		},
		{
			name: "unknown kind",
			yaml: `
name: n
description: d
kind: gifts
steps: [{op: init}]
assertions: [{type: persisted}]`,
			want: `unknown kind "gifts"`,
		},
		{
			name: "unknown op",
			yaml: `
name: n
description: d
kind: tasks
steps: [{op: rename}]
assertions: [{type: persisted}]`,
			want: `steps[0]: unknown op "rename"`,
		},
		{
			name: "update without id",
			yaml: `
name: n
description: d
kind: tasks
steps: [{op: update, changes: {completed: true}}]
assertions: [{type: persisted}]`,
			want: "id is required for update",
		},
		{
			name: "fail without remote",
			yaml: `
name: n
description: d
kind: tasks
remote: none
steps: [{op: fail, remote_op: add, error: offline}]
assertions: [{type: persisted}]`,
			want: "fail requires a scripted remote",
		},
		{
			name: "unknown failure",
			yaml: `
name: n
description: d
kind: tasks
steps: [{op: fail, remote_op: add, error: timeout}]
assertions: [{type: persisted}]`,
			want: `unknown error "timeout"`,
		},
		{
			name: "expect without outcome",
			yaml: `
name: n
description: d
kind: tasks
steps: [{op: init, expect: {id: x}}]
assertions: [{type: persisted}]`,
			want: "expect: outcome is required",
		},
		{
			name: "no assertions",
			yaml: `
name: n
description: d
kind: tasks
steps: [{op: init}]`,
			want: "assertions list is required",
		},
		{
			name: "final_state without expect",
			yaml: `
name: n
description: d
kind: tasks
steps: [{op: init}]
assertions: [{type: final_state, id: a}]`,
			want: "expect or absent is required",
		},
		{
			name: "remote_calls without remote",
			yaml: `
name: n
description: d
kind: tasks
remote: none
steps: [{op: init}]
assertions: [{type: remote_calls, ops: []}]`,
			want: "remote_calls requires a scripted remote",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
