package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/wedplan/internal/entity"
)

// Scenario drives one store through a list of steps and checks the
// outcome with assertions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Kind is the collection under test ("tasks", "guests", ...).
	Kind string `yaml:"kind"`

	// Remote is RemoteScripted (default) or RemoteNone.
	Remote string `yaml:"remote,omitempty"`

	// Echo controls whether remote writes are echoed back as snapshots.
	// Defaults to true.
	Echo *bool `yaml:"echo,omitempty"`

	// SeedRemote pushes local data to an empty remote collection on Init.
	SeedRemote bool `yaml:"seed_remote,omitempty"`

	// IDPrefix prefixes generated entity ids (default "id": id-1, id-2).
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Clock configures the deterministic clock (default start 1000, step 1).
	Clock *ClockSpec `yaml:"clock,omitempty"`

	// Local is the collection already persisted before the store starts.
	Local []entity.Record `yaml:"local,omitempty"`

	// RemoteRecords is the remote collection before the store starts.
	RemoteRecords []entity.Record `yaml:"remote_records,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// ClockSpec configures the deterministic clock.
type ClockSpec struct {
	Start int64 `yaml:"start"`
	Step  int64 `yaml:"step"`
}

// Remote modes.
const (
	RemoteScripted = "scripted"
	RemoteNone     = "none"
)

// Step ops.
const (
	OpInit    = "init"
	OpAdd     = "add"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpPush    = "push"
	OpFail    = "fail"
	OpDestroy = "destroy"
)

// Remote errors a fail step can queue.
const (
	FailDisabled    = "disabled"
	FailOffline     = "offline"
	FailUnavailable = "unavailable"
	FailFailure     = "failure"
)

var (
	stepOps    = []string{OpInit, OpAdd, OpUpdate, OpDelete, OpPush, OpFail, OpDestroy}
	remoteOps  = []string{"listen", "fetch", "add", "update", "delete"}
	failErrors = []string{FailDisabled, FailOffline, FailUnavailable, FailFailure}
)

// Step is one operation of a scenario.
type Step struct {
	Op string `yaml:"op"`

	// ID targets update and delete.
	ID string `yaml:"id,omitempty"`

	// Record is the input of add.
	Record entity.Record `yaml:"record,omitempty"`

	// Changes is the change-set of update.
	Changes entity.Record `yaml:"changes,omitempty"`

	// Records is the new remote collection of push.
	Records []entity.Record `yaml:"records,omitempty"`

	// RemoteOp and Error configure a fail step.
	RemoteOp string `yaml:"remote_op,omitempty"`
	Error    string `yaml:"error,omitempty"`

	// Expect checks the step's outcome. Without it any outcome passes.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies a step's expected outcome.
type Expect struct {
	// Outcome is "ok", "invalid" (add dropped the record) or a sync error
	// code such as "REMOTE_FAILURE".
	Outcome string `yaml:"outcome"`

	// ID, when set, is the id add must have assigned.
	ID string `yaml:"id,omitempty"`
}

// Assertion validates the run once every step has executed.
type Assertion struct {
	Type string `yaml:"type"`

	// Count is used by emission_count.
	Count int `yaml:"count,omitempty"`

	// IDs is used by final_ids.
	IDs []string `yaml:"ids,omitempty"`

	// ID, Expect and Absent are used by final_state and remote_state.
	ID     string         `yaml:"id,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Absent bool           `yaml:"absent,omitempty"`

	// State is used by sync_state.
	State string `yaml:"state,omitempty"`

	// Ops is used by remote_calls.
	Ops []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertEmissionCount = "emission_count"
	AssertFinalIDs      = "final_ids"
	AssertFinalState    = "final_state"
	AssertSyncState     = "sync_state"
	AssertRemoteCalls   = "remote_calls"
	AssertRemoteState   = "remote_state"
	AssertPersisted     = "persisted"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// scripted reports whether the scenario runs against a collaborator.
func (s *Scenario) scripted() bool {
	return s.Remote == "" || s.Remote == RemoteScripted
}

func (s *Scenario) echo() bool {
	return s.Echo == nil || *s.Echo
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, ok := drivers[s.Kind]; !ok {
		return fmt.Errorf("unknown kind %q (want one of %v)", s.Kind, entity.CollectionNames())
	}
	if s.Remote != "" && s.Remote != RemoteScripted && s.Remote != RemoteNone {
		return fmt.Errorf("unknown remote %q", s.Remote)
	}
	if !s.scripted() && len(s.RemoteRecords) > 0 {
		return fmt.Errorf("remote_records requires a scripted remote")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(s, step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(s, a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(s *Scenario, step Step) error {
	if !slices.Contains(stepOps, step.Op) {
		return fmt.Errorf("unknown op %q", step.Op)
	}
	switch step.Op {
	case OpAdd:
		if step.Record == nil {
			return fmt.Errorf("record is required for add")
		}
	case OpUpdate:
		if step.ID == "" {
			return fmt.Errorf("id is required for update")
		}
		if step.Changes == nil {
			return fmt.Errorf("changes is required for update (use {} for none)")
		}
	case OpDelete:
		if step.ID == "" {
			return fmt.Errorf("id is required for delete")
		}
	case OpPush:
		if !s.scripted() {
			return fmt.Errorf("push requires a scripted remote")
		}
	case OpFail:
		if !s.scripted() {
			return fmt.Errorf("fail requires a scripted remote")
		}
		if !slices.Contains(remoteOps, step.RemoteOp) {
			return fmt.Errorf("unknown remote_op %q", step.RemoteOp)
		}
		if !slices.Contains(failErrors, step.Error) {
			return fmt.Errorf("unknown error %q (want one of %v)", step.Error, failErrors)
		}
	}
	if step.Expect != nil && step.Expect.Outcome == "" {
		return fmt.Errorf("expect: outcome is required")
	}
	return nil
}

func validateAssertion(s *Scenario, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertEmissionCount:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for emission_count")
		}
	case AssertFinalIDs, AssertPersisted:
	case AssertFinalState, AssertRemoteState:
		if a.ID == "" {
			return fmt.Errorf("id is required for %s", a.Type)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("expect or absent is required for %s", a.Type)
		}
		if a.Type == AssertRemoteState && !s.scripted() {
			return fmt.Errorf("remote_state requires a scripted remote")
		}
	case AssertSyncState:
		if a.State == "" {
			return fmt.Errorf("state is required for sync_state")
		}
	case AssertRemoteCalls:
		if !s.scripted() {
			return fmt.Errorf("remote_calls requires a scripted remote")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
