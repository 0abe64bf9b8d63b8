package harness

import (
	"sync"

	"github.com/roach88/wedplan/internal/entity"
)

// Trace event types.
const (
	EventStep  = "step"
	EventEmit  = "emit"
	EventCall  = "call"
	EventState = "state"
)

// TraceEvent is one entry of a scenario trace. Which fields are set
// depends on Type.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// Op is the step op ("add") or the remote operation ("update").
	Op string `json:"op,omitempty"`

	// ID is the entity or document id the step or call targeted.
	ID string `json:"id,omitempty"`

	// Args holds a step's input; Payload what a call sent.
	Args    entity.Record `json:"args,omitempty"`
	Payload entity.Record `json:"payload,omitempty"`

	// Outcome is "ok", "invalid" or an error code, for steps.
	Outcome string `json:"outcome,omitempty"`

	// Error is the code of a failed call.
	Error string `json:"error,omitempty"`

	// IDs is the delivered collection of an emit event.
	IDs []string `json:"ids,omitempty"`

	// State is the new sync state of a state event.
	State string `json:"state,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Final is the store's collection after the last step.
	Final []entity.Record `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  []entity.Record{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// tracer numbers events as they happen. Store listeners and the recording
// collaborator append to it from inside store calls.
type tracer struct {
	mu     sync.Mutex
	seq    int64
	events []TraceEvent
}

func (t *tracer) add(ev TraceEvent) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	ev.Seq = t.seq
	t.events = append(t.events, ev)
	return len(t.events) - 1
}

func (t *tracer) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq = 0
	t.events = nil
}

func (t *tracer) update(i int, fn func(*TraceEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.events[i])
}

func (t *tracer) snapshot() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}
