package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: rsvp_confirmed
description: "an rsvp update reaches the remote"
kind: guests
remote_records:
  - { id: g1, name: "Lucía", side: novia }
steps:
  - op: init
  - op: update
    id: g1
    changes: { rsvp: confirmado }
    expect: { outcome: ok }
assertions:
  - type: final_state
    id: g1
    expect: { rsvp: confirmado }
  - type: remote_calls
    ops: [listen, update]
`

const failingScenario = `
name: wrong_count
description: "expects a guest that is never added"
kind: guests
remote: none
steps:
  - op: init
assertions:
  - type: final_ids
    ids: [g1]
`

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, err = runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)
	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandRunsHarnessScenarios(t *testing.T) {
	out, err := runTestCommand(t, "text", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ rollback_on_remote_failure")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "rsvp_confirmed.yaml", passingScenario)
	writeScenario(t, dir, "wrong_count.yaml", failingScenario)

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ rsvp_confirmed")
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")

	out, err = runTestCommand(t, "json", dir)
	require.Error(t, err)
	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, ErrCodeTestFailed, response.Error.Code)
	assert.Equal(t, 2, response.Data.Total)
	require.Len(t, response.Data.Scenarios, 2)
	assert.Equal(t, "guests", response.Data.Scenarios[0].Kind)
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "rsvp_confirmed.yaml", passingScenario)
	golden := filepath.Join(dir, "golden", "rsvp_confirmed.golden")

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "(golden updated)")
	assert.FileExists(t, golden)

	out, err = runTestCommand(t, "text", dir)
	require.NoError(t, err, out)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err = runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: [unclosed")

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestHelpText(t *testing.T) {
	out, err := runTestCommand(t, "text", "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "scripted remote")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "guests")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	for _, name := range []string{"rollback-add.yaml", "rollback-delete.yml", "seed.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "rsvp.yaml"), nil, 0o644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 4)

	files, err = findScenarioFiles(tmpDir, "rollback-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.Contains(t, filepath.Base(f), "rollback-")
	}

	_, err = findScenarioFiles(tmpDir, "[")
	require.Error(t, err)
}
