package syncstore

import (
	"context"
	"errors"

	"github.com/roach88/wedplan/internal/remote"
)

// Init starts remote sync. When the collaborator has not been provided
// yet it waits on the ready signal and retries once. Sync failures are
// logged and leave the store LocalOnly; the only error returned is the
// context's, when the wait is cancelled. Calling Init on a RemoteActive
// store does nothing.
func (s *Store[T]) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state == RemoteActive {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(LocalOnly)
	s.mu.Unlock()

	if s.binding == nil {
		s.logger.Debug("remote sync not configured")
		return nil
	}

	err := s.startRemoteSync(ctx)
	if remote.IsNotReady(err) {
		s.logger.Debug("waiting for collaborator")
		if _, werr := s.binding.Ready().Wait(ctx); werr != nil {
			return werr
		}
		err = s.startRemoteSync(ctx)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
		}
		s.logger.Info("remote sync unavailable, working locally", "error", err)
	}
	return nil
}

// startRemoteSync connects, optionally seeds the remote and attaches a
// fresh listener. The previous listener is detached only once the binding
// is connected, so a failed connection leaves the store as it was.
func (s *Store[T]) startRemoteSync(ctx context.Context) error {
	s.mu.Lock()
	if s.state == RemoteActive && s.unsubscribe != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.binding.Connect(); err != nil {
		return err
	}

	if s.seedRemote {
		if err := s.seed(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	previous := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	s.detach(previous)

	unsubscribe, err := s.binding.Listen(ctx, func(items []T) {
		s.applySnapshot(gen, items)
	})
	if err != nil {
		s.mu.Lock()
		if s.generation == gen && s.state == RemoteActive {
			s.setStateLocked(LocalOnly)
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.destroyed || s.generation != gen {
		s.mu.Unlock()
		s.detach(unsubscribe)
		return nil
	}
	s.unsubscribe = unsubscribe
	s.setStateLocked(RemoteActive)
	s.mu.Unlock()

	s.logger.Info("remote sync active")
	return nil
}

// stopRemoteSync detaches the listener and switches to LocalOnly.
// Snapshots already in flight from the old listener are ignored.
func (s *Store[T]) stopRemoteSync() {
	s.mu.Lock()
	s.generation++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.setStateLocked(LocalOnly)
	s.mu.Unlock()

	s.detach(unsubscribe)
}

// applySnapshot replaces the collection with a remote snapshot from the
// listener of generation gen.
func (s *Store[T]) applySnapshot(gen uint64, items []T) {
	s.mu.Lock()
	if s.destroyed || gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("ignoring snapshot from stale listener", "size", len(items))
		return
	}
	s.metrics.ObserveSnapshot(s.kind.Name, len(items))
	s.replaceLocked(s.kind.Sort(items))
}

// seed pushes local entities when the remote collection is empty.
func (s *Store[T]) seed(ctx context.Context) error {
	existing, err := s.binding.Fetch(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	local := s.Snapshot()
	if len(local) == 0 {
		return nil
	}
	for _, e := range local {
		if err := s.binding.Add(ctx, e); err != nil {
			return err
		}
	}
	s.logger.Info("seeded remote collection from local data", "count", len(local))
	return nil
}

func (s *Store[T]) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.metrics.ObserveState(s.kind.Name, state.String())
}
