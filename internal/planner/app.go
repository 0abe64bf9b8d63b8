package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/wedplan/internal/blob"
	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
	"github.com/roach88/wedplan/internal/store"
	"github.com/roach88/wedplan/internal/syncstore"
)

var (
	// ErrNotFound is returned by per-kind helpers for unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalid is returned for values outside a kind's enums.
	ErrInvalid = errors.New("invalid value")

	// ErrNoBlobStore is returned by AttachImage when no blob store is
	// configured.
	ErrNoBlobStore = errors.New("no blob store configured")
)

// Options wires an App. Every field is optional.
type Options struct {
	KV         store.KV
	Ready      *remote.Ready
	Logger     *slog.Logger
	Clock      syncstore.Clock
	Metrics    syncstore.Metrics
	Blobs      blob.Store
	BlobPrefix string
}

// App owns the planner's stores.
type App struct {
	Tasks      *syncstore.Store[entity.Task]
	Milestones *syncstore.Store[entity.Milestone]
	Guests     *syncstore.Store[entity.Guest]
	Ideas      *syncstore.Store[entity.Idea]
	Venues     *syncstore.Store[entity.Venue]
	Budget     *syncstore.Store[entity.BudgetItem]
	Target     *Target

	blobs      blob.Store
	blobPrefix string
	logger     *slog.Logger
}

// New builds every store. Local data is loaded immediately; remote sync
// starts with Init.
func New(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = syncstore.SystemClock{}
	}
	storeOpts := []syncstore.Option{
		syncstore.WithLogger(opts.Logger),
		syncstore.WithClock(opts.Clock),
		syncstore.WithSeedRemote(true),
	}
	if opts.KV != nil {
		storeOpts = append(storeOpts, syncstore.WithKV(opts.KV))
	}
	if opts.Ready != nil {
		storeOpts = append(storeOpts, syncstore.WithReady(opts.Ready))
	}
	if opts.Metrics != nil {
		storeOpts = append(storeOpts, syncstore.WithMetrics(opts.Metrics))
	}

	return &App{
		Tasks:      syncstore.New(entity.Tasks, storeOpts...),
		Milestones: syncstore.New(entity.Milestones, storeOpts...),
		Guests:     syncstore.New(entity.Guests, storeOpts...),
		Ideas:      syncstore.New(entity.Ideas, storeOpts...),
		Venues:     syncstore.New(entity.Venues, storeOpts...),
		Budget:     syncstore.New(entity.Budget, storeOpts...),
		Target:     newTarget(opts.KV, opts.Ready, opts.Clock, opts.Logger),
		blobs:      opts.Blobs,
		blobPrefix: opts.BlobPrefix,
		logger:     opts.Logger,
	}
}

// Init starts remote sync on every store. Only a cancelled context is
// returned as an error; sync failures leave the stores local-only.
func (a *App) Init(ctx context.Context) error {
	for _, init := range []func(context.Context) error{
		a.Tasks.Init,
		a.Milestones.Init,
		a.Guests.Init,
		a.Ideas.Init,
		a.Venues.Init,
		a.Budget.Init,
		a.Target.Init,
	} {
		if err := init(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Destroy detaches every remote listener. Stores keep working locally.
func (a *App) Destroy() {
	a.Tasks.Destroy()
	a.Milestones.Destroy()
	a.Guests.Destroy()
	a.Ideas.Destroy()
	a.Venues.Destroy()
	a.Budget.Destroy()
	a.Target.Destroy()
}

// States reports the sync state of every kind.
func (a *App) States() map[string]syncstore.State {
	return map[string]syncstore.State{
		entity.Tasks.Name:      a.Tasks.State(),
		entity.Milestones.Name: a.Milestones.State(),
		entity.Guests.Name:     a.Guests.State(),
		entity.Ideas.Name:      a.Ideas.State(),
		entity.Venues.Name:     a.Venues.State(),
		entity.Budget.Name:     a.Budget.State(),
	}
}

// ToggleTask flips a task's completed flag.
func (a *App) ToggleTask(ctx context.Context, id string) error {
	t, ok := a.Tasks.Get(id)
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return a.Tasks.Update(ctx, id, entity.Record{"completed": !t.Completed})
}

// SetRSVP records a guest's answer.
func (a *App) SetRSVP(ctx context.Context, id, rsvp string) error {
	if !entity.GuestRSVPs.Valid(rsvp) {
		return fmt.Errorf("rsvp %q: %w", rsvp, ErrInvalid)
	}
	if _, ok := a.Guests.Get(id); !ok {
		return fmt.Errorf("guest %s: %w", id, ErrNotFound)
	}
	return a.Guests.Update(ctx, id, entity.Record{"rsvp": rsvp})
}

// SetMilestoneStatus moves a milestone along.
func (a *App) SetMilestoneStatus(ctx context.Context, id, status string) error {
	if !entity.MilestoneStatuses.Valid(status) {
		return fmt.Errorf("milestone status %q: %w", status, ErrInvalid)
	}
	if _, ok := a.Milestones.Get(id); !ok {
		return fmt.Errorf("milestone %s: %w", id, ErrNotFound)
	}
	return a.Milestones.Update(ctx, id, entity.Record{"status": status})
}

// SetVenueStatus moves a venue candidate along.
func (a *App) SetVenueStatus(ctx context.Context, id, status string) error {
	if !entity.VenueStatuses.Valid(status) {
		return fmt.Errorf("venue status %q: %w", status, ErrInvalid)
	}
	if _, ok := a.Venues.Get(id); !ok {
		return fmt.Errorf("venue %s: %w", id, ErrNotFound)
	}
	return a.Venues.Update(ctx, id, entity.Record{"status": status})
}

// ToggleFavorite flips an idea's favorite flag.
func (a *App) ToggleFavorite(ctx context.Context, id string) error {
	idea, ok := a.Ideas.Get(id)
	if !ok {
		return fmt.Errorf("idea %s: %w", id, ErrNotFound)
	}
	return a.Ideas.Update(ctx, id, entity.Record{"favorite": !idea.Favorite})
}

// MarkPaid marks a budget line paid, recording the actual amount when
// given.
func (a *App) MarkPaid(ctx context.Context, id string, actual *float64) error {
	if _, ok := a.Budget.Get(id); !ok {
		return fmt.Errorf("budget item %s: %w", id, ErrNotFound)
	}
	changes := entity.Record{"paid": true}
	if actual != nil {
		changes["actual"] = *actual
	}
	return a.Budget.Update(ctx, id, changes)
}
