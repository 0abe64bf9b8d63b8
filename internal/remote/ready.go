package remote

import (
	"context"
	"sync"
)

// Ready is a one-time broadcast that hands the collaborator to every
// waiting store. It is raised at most once; later Provide calls are
// ignored.
type Ready struct {
	once sync.Once
	done chan struct{}

	mu     sync.RWMutex
	collab Collaborator
}

// NewReady returns a signal that has not been raised.
func NewReady() *Ready {
	return &Ready{done: make(chan struct{})}
}

// Provide raises the signal with c. A nil c raises the signal without a
// collaborator, which leaves every store local-only. Reports whether this
// call raised the signal.
func (r *Ready) Provide(c Collaborator) bool {
	raised := false
	r.once.Do(func() {
		r.mu.Lock()
		r.collab = c
		r.mu.Unlock()
		close(r.done)
		raised = true
	})
	return raised
}

// Current returns the collaborator without blocking.
func (r *Ready) Current() (Collaborator, bool) {
	select {
	case <-r.done:
	default:
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collab, r.collab != nil
}

// Done is closed when the signal is raised.
func (r *Ready) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the signal is raised or ctx ends. The collaborator may
// be nil when the signal was raised without one.
func (r *Ready) Wait(ctx context.Context) (Collaborator, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collab, nil
}
