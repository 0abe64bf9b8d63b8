// Package store provides local, on-device persistence for the planner.
//
// Persistence is a plain key-value contract (KV) with two implementations:
//   - SQLiteKV: SQLite file with WAL mode, embedded schema and
//     user_version migrations
//   - MemoryKV: map-backed, used in tests and when no data dir is set
//
// Collection layers the per-kind JSON array format on top of a KV. Each
// entity kind owns one key (for example "wedding-checklist-tasks") whose
// value is the JSON array of normalized entities, rewritten on every
// change.
//
// # Failure Semantics
//
// Local I/O failures are logged and swallowed. A missing, unreadable or
// corrupt value loads as an empty collection; a failed write leaves the
// in-memory state untouched. Callers never see a storage error.
//
// SQLiteKV connections run with journal_mode=WAL, synchronous=NORMAL and
// a five second busy timeout.
package store
