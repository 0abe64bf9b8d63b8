// Package folderremote is a remote.Collaborator backed by a directory of
// JSON files, one per document, laid out as <dir>/<collection>/<id>.json.
//
// Pointing several planners at a folder kept in sync by a file-sync tool
// shares their data. Changes made by other processes are picked up with
// fsnotify and delivered to listeners as fresh snapshots.
package folderremote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
)

// ErrNotFound is returned when updating a document that does not exist.
var ErrNotFound = errors.New("document not found")

const docExt = ".json"

// Folder watches a directory of collections.
type Folder struct {
	dir         string
	logger      *slog.Logger
	watcher     *fsnotify.Watcher
	collections map[string]*collection

	// notifyMu keeps deliveries from writers and the watcher in order.
	notifyMu sync.Mutex

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ remote.Collaborator = (*Folder)(nil)

// Open prepares dir with one subdirectory per collection name and starts
// watching it.
func Open(dir string, logger *slog.Logger, names ...string) (*Folder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(names) == 0 {
		names = append(entity.CollectionNames(), remote.SettingsCollection)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	f := &Folder{
		dir:         dir,
		logger:      logger.With("folder", dir),
		watcher:     watcher,
		collections: make(map[string]*collection, len(names)),
		done:        make(chan struct{}),
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(path, 0o755); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to create collection directory %s: %w", path, err)
		}
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", path, err)
		}
		f.collections[name] = &collection{
			folder:    f,
			name:      name,
			dir:       path,
			listeners: make(map[int]func([]entity.Record)),
		}
	}

	f.wg.Add(1)
	go f.processEvents()
	return f, nil
}

// Collection implements remote.Collaborator.
func (f *Folder) Collection(name string) (remote.Collection, bool) {
	c, ok := f.collections[name]
	if !ok {
		return nil, false
	}
	return c, true
}

// Dir returns the watched root.
func (f *Folder) Dir() string {
	return f.dir
}

// Close stops watching. It blocks until the event loop has exited.
func (f *Folder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		if cerr := f.watcher.Close(); cerr != nil {
			err = fmt.Errorf("failed to close watcher: %w", cerr)
		}
		f.wg.Wait()
	})
	return err
}

func (f *Folder) processEvents() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if c := f.collectionFor(event); c != nil {
				c.refresh()
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("watch error", "error", err)
		}
	}
}

// collectionFor maps an event on <dir>/<collection>/<id>.json to its
// collection. Temporary files and other names are ignored.
func (f *Folder) collectionFor(event fsnotify.Event) *collection {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return nil
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || filepath.Ext(base) != docExt {
		return nil
	}
	return f.collections[filepath.Base(filepath.Dir(event.Name))]
}

// collection is one subdirectory.
type collection struct {
	folder *Folder
	name   string
	dir    string

	mu        sync.Mutex
	listeners map[int]func([]entity.Record)
	nextID    int
	last      []byte // last delivered snapshot, for dropping repeats
}

var _ remote.Collection = (*collection)(nil)

func (c *collection) path(id string) (string, error) {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	return filepath.Join(c.dir, id+docExt), nil
}

// read loads every document, sorted by id. Unreadable files are skipped.
func (c *collection) read() ([]entity.Record, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.dir, err)
	}
	docs := make(map[string]entity.Record, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != docExt {
			continue
		}
		id := strings.TrimSuffix(name, docExt)
		doc, err := readDoc(filepath.Join(c.dir, name))
		if err != nil {
			c.folder.logger.Warn("skipping unreadable document", "collection", c.name, "id", id, "error", err)
			continue
		}
		docs[id] = doc
	}

	out := make([]entity.Record, 0, len(docs))
	for _, id := range slices.Sorted(maps.Keys(docs)) {
		doc := docs[id]
		doc["id"] = id
		out = append(out, doc)
	}
	return out, nil
}

func readDoc(path string) (entity.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc entity.Record
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = entity.Record{}
	}
	return doc, nil
}

// writeDoc replaces path atomically through a hidden temporary file.
func writeDoc(path string, doc entity.Record) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".doc-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// refresh re-reads the directory and delivers the snapshot when it
// differs from the last one delivered.
func (c *collection) refresh() {
	c.folder.notifyMu.Lock()
	defer c.folder.notifyMu.Unlock()

	records, err := c.read()
	if err != nil {
		c.folder.logger.Warn("refresh failed", "collection", c.name, "error", err)
		return
	}
	encoded, err := json.Marshal(records)
	if err != nil {
		return
	}

	c.mu.Lock()
	if bytes.Equal(encoded, c.last) {
		c.mu.Unlock()
		return
	}
	c.last = encoded
	listeners := make([]func([]entity.Record), 0, len(c.listeners))
	for _, k := range slices.Sorted(maps.Keys(c.listeners)) {
		listeners = append(listeners, c.listeners[k])
	}
	c.mu.Unlock()

	for _, l := range listeners {
		copies := make([]entity.Record, len(records))
		for i, r := range records {
			copies[i] = r.Clone()
		}
		l(copies)
	}
}

// Listen implements remote.Collection. The current documents are
// delivered before Listen returns.
func (c *collection) Listen(_ context.Context, onRecords func([]entity.Record)) (func(), error) {
	c.folder.notifyMu.Lock()
	defer c.folder.notifyMu.Unlock()

	records, err := c.read()
	if err != nil {
		return nil, remote.Offline("listen", c.name, err)
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = onRecords
	if encoded, err := json.Marshal(records); err == nil {
		c.last = encoded
	}
	c.mu.Unlock()
	onRecords(records)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}, nil
}

// Fetch implements remote.Collection.
func (c *collection) Fetch(context.Context) ([]entity.Record, error) {
	records, err := c.read()
	if err != nil {
		return nil, remote.Offline("fetch", c.name, err)
	}
	return records, nil
}

// Add implements remote.Collection: it creates or replaces id.
func (c *collection) Add(_ context.Context, id string, payload entity.Record) error {
	path, err := c.path(id)
	if err != nil {
		return err
	}
	doc := payload.Clone()
	if doc == nil {
		doc = entity.Record{}
	}
	delete(doc, "id")
	if err := writeDoc(path, doc); err != nil {
		return fmt.Errorf("add %s/%s: %w", c.name, id, err)
	}
	c.refresh()
	return nil
}

// Update implements remote.Collection.
func (c *collection) Update(_ context.Context, id string, changes entity.Record) error {
	path, err := c.path(id)
	if err != nil {
		return err
	}
	current, err := readDoc(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("update %s/%s: %w", c.name, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}
	doc := current.Merge(changes)
	delete(doc, "id")
	if err := writeDoc(path, doc); err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}
	c.refresh()
	return nil
}

// Delete implements remote.Collection. Deleting a missing document is not
// an error.
func (c *collection) Delete(_ context.Context, id string) error {
	path, err := c.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	c.refresh()
	return nil
}
