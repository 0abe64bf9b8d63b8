package syncstore

import (
	"context"
	"slices"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
)

// mutation is one optimistic change: apply computes the new collection from
// the current one, forward sends the change to the remote.
type mutation[T any] struct {
	op      string
	id      string
	apply   func(items []T) []T
	forward func(ctx context.Context) error
}

// mutate runs the optimistic protocol shared by Add, Update and Delete.
// Only hard remote failures are returned.
func (s *Store[T]) mutate(ctx context.Context, m mutation[T]) error {
	s.mu.Lock()
	before := s.items
	active := s.state == RemoteActive && s.binding != nil
	s.replaceLocked(s.kind.Sort(m.apply(before)))

	if !active {
		s.metrics.ObserveMutation(s.kind.Name, m.op, "local")
		return nil
	}

	err := m.forward(ctx)
	switch {
	case err == nil:
		s.metrics.ObserveMutation(s.kind.Name, m.op, "synced")
		return nil

	case remote.IsSyncDisabled(err):
		s.logger.Warn("remote sync disabled, continuing locally",
			"op", m.op,
			"id", m.id,
			"error", err)
		s.stopRemoteSync()
		s.metrics.ObserveMutation(s.kind.Name, m.op, "degraded")
		return nil
	}

	s.logger.Error("remote write failed, rolling back",
		"op", m.op,
		"id", m.id,
		"error", err)
	s.compensate(before)
	s.metrics.ObserveMutation(s.kind.Name, m.op, "rolled_back")
	return err
}

// compensate restores the collection captured before a failed mutation.
func (s *Store[T]) compensate(before []T) {
	s.mu.Lock()
	s.replaceLocked(before)
}

// Add normalizes rec (assigning an id and timestamps when absent) and
// inserts it, replacing any entity with the same id. ok is false, with a
// nil error, when rec fails validation; nothing changes in that case.
func (s *Store[T]) Add(ctx context.Context, rec entity.Record) (e T, ok bool, err error) {
	e, ok = s.kind.Prepare(rec, s.clock.NowMillis())
	if !ok {
		s.logger.Debug("dropping invalid record", "op", "add")
		s.metrics.ObserveMutation(s.kind.Name, "add", "rejected")
		return e, false, nil
	}
	id := e.EntityID()

	err = s.mutate(ctx, mutation[T]{
		op: "add",
		id: id,
		apply: func(items []T) []T {
			out := make([]T, 0, len(items)+1)
			for _, cur := range items {
				if cur.EntityID() != id {
					out = append(out, cur)
				}
			}
			return append(out, e.Clone())
		},
		forward: func(ctx context.Context) error {
			return s.binding.Add(ctx, e)
		},
	})
	return e.Clone(), true, err
}

// Update merges the sanitized changes into the entity with id and
// refreshes updatedAt. A missing id leaves the local collection as it is
// but is still forwarded, so the remote decides.
func (s *Store[T]) Update(ctx context.Context, id string, changes entity.Record) error {
	now := s.clock.NowMillis()
	return s.mutate(ctx, mutation[T]{
		op: "update",
		id: id,
		apply: func(items []T) []T {
			out := slices.Clone(items)
			for i, cur := range out {
				if cur.EntityID() != id {
					continue
				}
				if next, ok := s.kind.Merge(cur, changes, now); ok {
					out[i] = next
				}
			}
			return out
		},
		forward: func(ctx context.Context) error {
			return s.binding.Update(ctx, id, changes)
		},
	})
}

// Delete removes the entity with id.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, mutation[T]{
		op: "delete",
		id: id,
		apply: func(items []T) []T {
			return slices.DeleteFunc(slices.Clone(items), func(cur T) bool {
				return cur.EntityID() == id
			})
		},
		forward: func(ctx context.Context) error {
			return s.binding.Delete(ctx, id)
		},
	})
}
