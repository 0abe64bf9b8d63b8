package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/testutil"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace for context, when relevant
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, describe(ev))
		}
	}
	return buf.String()
}

func describe(ev TraceEvent) string {
	switch ev.Type {
	case EventStep:
		return fmt.Sprintf("step %s %s -> %s", ev.Op, ev.ID, ev.Outcome)
	case EventEmit:
		return fmt.Sprintf("emit %v", ev.IDs)
	case EventCall:
		if ev.Error != "" {
			return fmt.Sprintf("call %s %s -> %s", ev.Op, ev.ID, ev.Error)
		}
		return fmt.Sprintf("call %s %s", ev.Op, ev.ID)
	case EventState:
		return "state " + ev.State
	}
	return ev.Type
}

// AssertionContext gives assertions access to the store and the remote.
type AssertionContext struct {
	Driver driver
	Remote *testutil.ScriptedCollection
}

// EvaluateAssertions evaluates all assertions against the result and
// returns the messages of the failed ones.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertEmissionCount:
			err = assertEmissionCount(result.Trace, a)
		case AssertFinalIDs:
			err = assertFinalIDs(result.Final, a)
		case AssertFinalState:
			err = assertRecord(AssertFinalState, result.Final, a)
		case AssertSyncState:
			err = assertSyncState(actx, a)
		case AssertRemoteCalls:
			err = assertRemoteCalls(actx, result.Trace, a)
		case AssertRemoteState:
			if actx == nil || actx.Remote == nil {
				err = fmt.Errorf("assertion[%d]: remote_state requires a scripted remote", i)
			} else {
				err = assertRecord(AssertRemoteState, actx.Remote.Records(), a)
			}
		case AssertPersisted:
			err = assertPersisted(actx, result.Final)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertEmissionCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == EventEmit {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEmissionCount,
			Expected: fmt.Sprintf("%d emissions", a.Count),
			Actual:   fmt.Sprintf("%d emissions", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalIDs(final []entity.Record, a Assertion) error {
	ids := recordIDs(final)
	want := a.IDs
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(ids, want) {
		return &AssertionError{
			Type:     AssertFinalIDs,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", ids),
		}
	}
	return nil
}

// assertRecord checks one record of records by id with subset semantics.
func assertRecord(kind string, records []entity.Record, a Assertion) error {
	var found entity.Record
	for _, r := range records {
		if id, _ := r["id"].(string); id == a.ID {
			found = r
			break
		}
	}

	if a.Absent {
		if found != nil {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("no record %s", a.ID),
				Actual:   fmt.Sprintf("record %s present", a.ID),
			}
		}
		return nil
	}
	if found == nil {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("record %s", a.ID),
			Actual:   fmt.Sprintf("not found among %v", recordIDs(records)),
		}
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := a.Expect[key]
		actual, exists := found[key]
		if !exists {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s.%s = %v", a.ID, key, expected),
				Actual:   fmt.Sprintf("field %q not present", key),
			}
		}
		if !valuesEqual(actual, expected) {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s.%s = %v (type %T)", a.ID, key, expected, expected),
				Actual:   fmt.Sprintf("%s.%s = %v (type %T)", a.ID, key, actual, actual),
			}
		}
	}
	return nil
}

func assertSyncState(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Driver == nil {
		return fmt.Errorf("sync_state requires a store")
	}
	if state := actx.Driver.State().String(); state != a.State {
		return &AssertionError{
			Type:     AssertSyncState,
			Expected: a.State,
			Actual:   state,
		}
	}
	return nil
}

func assertRemoteCalls(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	if actx == nil || actx.Remote == nil {
		return fmt.Errorf("remote_calls requires a scripted remote")
	}
	calls := actx.Remote.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	want := a.Ops
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(ops, want) {
		return &AssertionError{
			Type:     AssertRemoteCalls,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", ops),
			Trace:    trace,
		}
	}
	return nil
}

func assertPersisted(actx *AssertionContext, final []entity.Record) error {
	if actx == nil || actx.Driver == nil {
		return fmt.Errorf("persisted requires a store")
	}
	persisted := actx.Driver.Persisted()
	if !valuesEqual(persisted, final) {
		return &AssertionError{
			Type:     AssertPersisted,
			Expected: fmt.Sprintf("local storage holds %v", recordIDs(final)),
			Actual:   fmt.Sprintf("local storage holds %v", recordIDs(persisted)),
		}
	}
	return nil
}

func recordIDs(records []entity.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i], _ = r["id"].(string)
	}
	return ids
}

// valuesEqual compares values by their JSON form, so a YAML int matches a
// stored int64 and a decoded float64 alike.
func valuesEqual(actual, expected any) bool {
	a, errA := jsonValue(actual)
	e, errE := jsonValue(expected)
	if errA != nil || errE != nil {
		return reflect.DeepEqual(actual, expected)
	}
	return reflect.DeepEqual(a, e)
}

func jsonValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
