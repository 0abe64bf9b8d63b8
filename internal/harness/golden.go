package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/wedplan/internal/entity"
)

// TraceSnapshot is what a golden file holds: the trace of a run and the
// collection it left behind.
type TraceSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	Kind         string          `json:"kind"`
	Trace        []TraceEvent    `json:"trace"`
	Final        []entity.Record `json:"final"`
}

// toCanonicalMap keeps only the fields each event type uses. Emit events
// always carry ids, even when the collection is empty.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":  ev.Seq,
			"type": ev.Type,
		}
		switch ev.Type {
		case EventStep:
			m["op"] = ev.Op
			m["outcome"] = ev.Outcome
			if ev.ID != "" {
				m["id"] = ev.ID
			}
			if ev.Args != nil {
				m["args"] = ev.Args
			}
		case EventEmit:
			ids := ev.IDs
			if ids == nil {
				ids = []string{}
			}
			m["ids"] = ids
		case EventCall:
			m["op"] = ev.Op
			if ev.ID != "" {
				m["id"] = ev.ID
			}
			if ev.Payload != nil {
				m["payload"] = ev.Payload
			}
			if ev.Error != "" {
				m["error"] = ev.Error
			}
		case EventState:
			m["state"] = ev.State
		}
		traceList[i] = m
	}

	final := s.Final
	if final == nil {
		final = []entity.Record{}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"kind":          s.Kind,
		"trace":         traceList,
		"final":         final,
	}
}

// MarshalTrace renders the golden form of a run: indented JSON with
// sorted keys and a trailing newline.
func MarshalTrace(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Kind:         scenario.Kind,
		Trace:        result.Trace,
		Final:        result.Final,
	}
	data, err := json.MarshalIndent(snapshot.toCanonicalMap(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	return append(data, '\n'), nil
}

// GoldenPath returns where the golden file of a scenario file lives:
// golden/<name>.golden next to the scenario.
func GoldenPath(scenarioFile string, scenario *Scenario) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenario.Name+".golden")
}

// WriteGolden writes the current trace as the golden file.
func WriteGolden(path string, scenario *Scenario, result *Result) error {
	data, err := MarshalTrace(scenario, result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the trace matches the golden file at path.
func CompareGolden(path string, scenario *Scenario, result *Result) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	current, err := MarshalTrace(scenario, result)
	if err != nil {
		return false, err
	}
	return bytes.Equal(golden, current), nil
}

// RunWithGolden executes a scenario and compares its trace with
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := MarshalTrace(scenario, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
