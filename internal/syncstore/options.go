package syncstore

import (
	"log/slog"
	"time"

	"github.com/roach88/wedplan/internal/remote"
	"github.com/roach88/wedplan/internal/store"
)

// Clock supplies epoch milliseconds for createdAt/updatedAt stamps.
// Implemented by SystemClock (production) and testutil.DeterministicClock.
type Clock interface {
	NowMillis() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// NowMillis implements Clock.
func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Metrics receives store events. Implemented by metrics.Collector.
type Metrics interface {
	// ObserveMutation counts one mutation; outcome is "local", "synced",
	// "degraded", "rolled_back" or "rejected".
	ObserveMutation(kind, op, outcome string)

	// ObserveSnapshot records an accepted remote snapshot.
	ObserveSnapshot(kind string, size int)

	// ObserveState records a state transition.
	ObserveState(kind string, state string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveMutation(string, string, string) {}
func (noopMetrics) ObserveSnapshot(string, int)            {}
func (noopMetrics) ObserveState(string, string)            {}

// Option configures a Store.
type Option func(*options)

type options struct {
	kv         store.KV
	ready      *remote.Ready
	logger     *slog.Logger
	clock      Clock
	metrics    Metrics
	seedRemote bool
}

// WithKV persists the collection to kv under the kind's storage key.
// Without it the store is memory-only.
func WithKV(kv store.KV) Option {
	return func(o *options) {
		o.kv = kv
	}
}

// WithReady enables remote sync through the collaborator provided on
// ready.
func WithReady(ready *remote.Ready) Option {
	return func(o *options) {
		o.ready = ready
	}
}

// WithLogger sets the store's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the timestamp source. Default: SystemClock.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithMetrics reports store events to m.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSeedRemote pushes local entities to the remote collection when sync
// starts and the remote collection is empty.
func WithSeedRemote(seed bool) Option {
	return func(o *options) {
		o.seedRemote = seed
	}
}
