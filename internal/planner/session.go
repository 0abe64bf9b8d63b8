package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/roach88/wedplan/internal/blob"
	"github.com/roach88/wedplan/internal/config"
	"github.com/roach88/wedplan/internal/docstore"
	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/folderremote"
	"github.com/roach88/wedplan/internal/remote"
	"github.com/roach88/wedplan/internal/store"
	"github.com/roach88/wedplan/internal/syncstore"
	"github.com/roach88/wedplan/internal/wsremote"
)

// DocumentNames lists every collection a collaborator or hub serves.
func DocumentNames() []string {
	return append(entity.CollectionNames(), remote.SettingsCollection)
}

// Session is an App opened from configuration together with the
// resources it holds.
type Session struct {
	*App
	Ready *remote.Ready

	closers []func() error
}

// Open builds a session from cfg: local database, blob store, and the
// collaborator selected by cfg.Remote. A collaborator that cannot be
// reached is logged and the planner works locally. Stores are not
// initialized; call Init.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics syncstore.Metrics) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{Ready: remote.NewReady()}

	kv, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}
	s.closers = append(s.closers, kv.Close)

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		logger.Warn("blob store unavailable, image attachments disabled", "error", err)
		blobs = nil
	}

	collab, closeCollab, err := OpenCollaborator(ctx, cfg, logger)
	if err != nil {
		logger.Warn("remote unavailable, working locally", "mode", cfg.Remote.Mode, "error", err)
		collab = nil
	} else {
		s.closers = append(s.closers, closeCollab)
	}
	s.Ready.Provide(collab)

	opts := Options{
		KV:         kv,
		Ready:      s.Ready,
		Logger:     logger,
		Metrics:    metrics,
		BlobPrefix: cfg.Blob.Prefix,
	}
	if blobs != nil {
		opts.Blobs = blobs
	}
	s.App = New(opts)
	return s, nil
}

// Close detaches every store and releases resources in reverse order.
func (s *Session) Close() error {
	if s.App != nil {
		s.App.Destroy()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenCollaborator connects the collaborator for cfg.Remote.Mode. Mode
// none returns a nil collaborator.
func OpenCollaborator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (remote.Collaborator, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Remote.Mode {
	case "", config.RemoteNone:
		return nil, noop, nil

	case config.RemoteHub:
		c, err := wsremote.Dial(ctx, wsremote.Config{URL: cfg.Remote.URL, Project: cfg.Remote.Project}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil

	case config.RemoteFolder:
		f, err := folderremote.Open(cfg.Remote.Dir, logger, DocumentNames()...)
		if err != nil {
			return nil, noop, err
		}
		return f, f.Close, nil

	case config.RemoteEmbedded:
		backend, err := docstore.OpenSQLite(ctx, filepath.Join(cfg.DataDir, "documents.db"))
		if err != nil {
			return nil, noop, err
		}
		docs := docstore.New(backend, logger, DocumentNames()...)
		return docs, docs.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown remote mode %q", cfg.Remote.Mode)
}

// OpenDocuments opens the hub's document store from cfg.Hub.
func OpenDocuments(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*docstore.Store, error) {
	var backend docstore.Backend
	switch cfg.Hub.Backend {
	case "memory":
		backend = docstore.NewMemoryBackend()
	case "", "sqlite":
		b, err := docstore.OpenSQLite(ctx, filepath.Join(cfg.DataDir, "hub.db"))
		if err != nil {
			return nil, err
		}
		backend = b
	case "postgres":
		b, err := docstore.OpenPostgres(ctx, cfg.Hub.DSN)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unknown hub backend %q", cfg.Hub.Backend)
	}
	docs := docstore.New(backend, logger, DocumentNames()...)
	docs.SetReadOnly(cfg.Hub.ReadOnly)
	return docs, nil
}
