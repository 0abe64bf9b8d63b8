package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/roach88/wedplan/internal/entity"
)

// SequenceIDGenerator returns prefix-1, prefix-2, ... so scenarios that
// create entities produce byte-identical traces.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator. An empty prefix uses "id".
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// PinEntityIDs routes entity.NewID through gen until the test ends.
// Tests that call it must not run in parallel with other id-generating
// tests.
func PinEntityIDs(t testing.TB, gen *SequenceIDGenerator) {
	t.Helper()
	prev := entity.NewID
	entity.NewID = gen.Generate
	t.Cleanup(func() { entity.NewID = prev })
}
