package entity

import (
	"slices"
)

// Entity is the method set shared by every normalized kind.
//
// Record must return a complete document (id, all fields and timestamps)
// such that the kind's normalizer maps it back to an identical entity.
type Entity[T any] interface {
	EntityID() string
	Clone() T
	Record() Record
}

// Kind describes one entity collection: how to normalize, order and shape
// its records. A Kind is a value; the six kinds are package-level variables.
type Kind[T Entity[T]] struct {
	// Name is the collection name used by collaborators ("tasks").
	Name string

	// StorageKey is the local key-value key holding the JSON array.
	StorageKey string

	// Normalize maps an untyped record to an entity, or reports false when
	// the identity field is missing.
	Normalize func(Record) (T, bool)

	// Compare orders entities for display. It must be a total order so that
	// sorting is deterministic regardless of arrival order.
	Compare func(a, b T) int

	// Sanitize filters an update change-set down to valid, known fields.
	// Blank identity values and invalid enum values are dropped.
	Sanitize func(changes Record) Record
}

// Sort returns a sorted copy of items.
func (k Kind[T]) Sort(items []T) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, k.Compare)
	return out
}

// NormalizeAll normalizes every record and silently drops invalid ones.
func (k Kind[T]) NormalizeAll(records []Record) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if e, ok := k.Normalize(r); ok {
			out = append(out, e)
		}
	}
	return out
}

// Prepare normalizes a freshly built record for insertion, defaulting both
// timestamps to now when absent.
func (k Kind[T]) Prepare(r Record, now int64) (T, bool) {
	r = r.Clone()
	if r == nil {
		r = Record{}
	}
	if ToTimestamp(r["createdAt"]) == nil {
		r["createdAt"] = now
	}
	if ToTimestamp(r["updatedAt"]) == nil {
		r["updatedAt"] = now
	}
	return k.Normalize(r)
}

// Merge applies a sanitized shallow change-set to current, refreshes
// updatedAt and re-normalizes. The id never changes. When the merged record
// fails normalization current is returned with false.
func (k Kind[T]) Merge(current T, changes Record, now int64) (T, bool) {
	merged := current.Record().Merge(k.Sanitize(changes))
	merged["id"] = current.EntityID()
	merged["updatedAt"] = now
	next, ok := k.Normalize(merged)
	if !ok {
		return current, false
	}
	return next, true
}

// RemotePayload builds the document written to a collaborator on add. The
// id travels separately as the document key; missing timestamps are
// stamped with now.
func (k Kind[T]) RemotePayload(e T, now int64) Record {
	r := e.Record()
	delete(r, "id")
	if r["createdAt"] == nil {
		r["createdAt"] = now
	}
	if r["updatedAt"] == nil {
		r["updatedAt"] = now
	}
	return r
}

// RemoteChanges sanitizes an update change-set for a collaborator and
// stamps updatedAt. It returns nil when nothing valid remains, in which
// case no remote update should be sent.
func (k Kind[T]) RemoteChanges(changes Record, now int64) Record {
	payload := k.Sanitize(changes)
	if len(payload) == 0 {
		return nil
	}
	payload["updatedAt"] = now
	return payload
}

// CloneAll deep-copies a slice of entities.
func CloneAll[T Entity[T]](items []T) []T {
	out := make([]T, len(items))
	for i, e := range items {
		out[i] = e.Clone()
	}
	return out
}

// IDs lists entity ids in order.
func IDs[T Entity[T]](items []T) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.EntityID()
	}
	return out
}

// sanitizer collects the shared change-set filtering rules so each kind
// only declares which fields it owns.
type sanitizer struct {
	in  Record
	out Record
}

func newSanitizer(in Record) *sanitizer {
	return &sanitizer{in: in, out: Record{}}
}

// identity keeps key only when it is a non-blank string.
func (s *sanitizer) identity(key string) *sanitizer {
	if v := Text(s.in[key]); v != "" {
		s.out[key] = v
	}
	return s
}

// text keeps key whenever present, normalized (blank clears the field).
func (s *sanitizer) text(keys ...string) *sanitizer {
	for _, key := range keys {
		if s.in.Has(key) {
			s.out[key] = Text(s.in[key])
		}
	}
	return s
}

func (s *sanitizer) enum(key string, e Enum) *sanitizer {
	if e.Valid(s.in[key]) {
		s.out[key] = s.in[key]
	}
	return s
}

func (s *sanitizer) date(keys ...string) *sanitizer {
	for _, key := range keys {
		if s.in.Has(key) {
			s.out[key] = NormalizeDate(s.in[key])
		}
	}
	return s
}

func (s *sanitizer) clock(key string) *sanitizer {
	if s.in.Has(key) {
		s.out[key] = ClockTime(s.in[key])
	}
	return s
}

func (s *sanitizer) flag(keys ...string) *sanitizer {
	for _, key := range keys {
		if s.in.Has(key) {
			s.out[key] = Truthy(s.in[key])
		}
	}
	return s
}

func (s *sanitizer) count(key string) *sanitizer {
	if s.in.Has(key) {
		s.out[key] = int64(Count(s.in[key]))
	}
	return s
}

// optional keeps key when present; invalid values clear it to nil.
func (s *sanitizer) optional(key string, parse func(any) any) *sanitizer {
	if s.in.Has(key) {
		s.out[key] = parse(s.in[key])
	}
	return s
}

func (s *sanitizer) amount(key string) *sanitizer {
	if s.in.Has(key) {
		s.out[key] = Amount(s.in[key])
	}
	return s
}

// createdAt keeps an explicit creation timestamp when it is numeric.
func (s *sanitizer) createdAt() *sanitizer {
	if ts := ToTimestamp(s.in["createdAt"]); ts != nil {
		if _, isMap := s.in["createdAt"].(map[string]any); !isMap {
			s.out["createdAt"] = *ts
		}
	}
	return s
}

func (s *sanitizer) result() Record {
	return s.out
}

func optionalCountValue(v any) any  { return intValue(OptionalCount(v)) }
func optionalAmountValue(v any) any { return floatValue(OptionalAmount(v)) }
func ratingValue(v any) any         { return intValue(Rating(v)) }

// CollectionNames lists the remote collection of every kind, in the order
// the planner presents them.
func CollectionNames() []string {
	return []string{
		Tasks.Name,
		Milestones.Name,
		Guests.Name,
		Ideas.Name,
		Venues.Name,
		Budget.Name,
	}
}
