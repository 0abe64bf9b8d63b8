package store

import (
	"encoding/json"
	"log/slog"

	"github.com/roach88/wedplan/internal/entity"
)

// Collection persists one entity kind as a JSON array under the kind's
// storage key. Errors never escape: a failed or corrupt read is an empty
// collection and a failed write is logged.
type Collection[T entity.Entity[T]] struct {
	kv     KV
	kind   entity.Kind[T]
	logger *slog.Logger
}

// NewCollection binds kind to kv. A nil logger uses slog.Default().
func NewCollection[T entity.Entity[T]](kv KV, kind entity.Kind[T], logger *slog.Logger) *Collection[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection[T]{kv: kv, kind: kind, logger: logger}
}

// Load reads and normalizes the stored collection. The result is sorted
// with the kind's comparator.
func (c *Collection[T]) Load() []T {
	if c == nil || c.kv == nil {
		return []T{}
	}
	raw, ok, err := c.kv.Get(c.kind.StorageKey)
	if err != nil {
		c.logger.Warn("local storage read failed",
			"kind", c.kind.Name,
			"key", c.kind.StorageKey,
			"error", err)
		return []T{}
	}
	if !ok || raw == "" {
		return []T{}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		c.logger.Warn("local storage holds invalid JSON, starting empty",
			"kind", c.kind.Name,
			"key", c.kind.StorageKey,
			"error", err)
		return []T{}
	}
	// Elements that are not objects are dropped one by one, like records
	// that fail normalization.
	records := make([]entity.Record, 0, len(elems))
	for _, elem := range elems {
		var r entity.Record
		if err := json.Unmarshal(elem, &r); err != nil || r == nil {
			continue
		}
		records = append(records, r)
	}
	return c.kind.Sort(c.kind.NormalizeAll(records))
}

// Save writes items as a JSON array, replacing the stored value.
func (c *Collection[T]) Save(items []T) {
	if c == nil || c.kv == nil {
		return
	}
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		c.logger.Warn("local storage encode failed", "kind", c.kind.Name, "error", err)
		return
	}
	if err := c.kv.Set(c.kind.StorageKey, string(data)); err != nil {
		c.logger.Warn("local storage write failed",
			"kind", c.kind.Name,
			"key", c.kind.StorageKey,
			"error", err)
	}
}

// LoadRecord reads a single JSON object stored under key, or nil.
func LoadRecord(kv KV, key string, logger *slog.Logger) entity.Record {
	if kv == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	raw, ok, err := kv.Get(key)
	if err != nil {
		logger.Warn("local storage read failed", "key", key, "error", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var r entity.Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		logger.Warn("local storage holds invalid JSON", "key", key, "error", err)
		return nil
	}
	return r
}

// SaveRecord writes r as a JSON object under key.
func SaveRecord(kv KV, key string, r entity.Record, logger *slog.Logger) {
	if kv == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	data, err := json.Marshal(r)
	if err != nil {
		logger.Warn("local storage encode failed", "key", key, "error", err)
		return
	}
	if err := kv.Set(key, string(data)); err != nil {
		logger.Warn("local storage write failed", "key", key, "error", err)
	}
}
