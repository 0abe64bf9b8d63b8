package entity

import "maps"

// Record is an untyped document as it comes from storage, a collaborator or
// user input. Values are whatever the decoder produced (float64, string,
// bool, nil, map[string]any, []any) or plain Go scalars.
type Record map[string]any

// Clone returns a shallow copy of the record. Nested maps are copied one
// level deep so a remote timestamp object can be rewritten safely.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		if m, ok := v.(map[string]any); ok {
			v = maps.Clone(m)
		}
		out[k] = v
	}
	return out
}

// Merge returns a copy of r with every key of changes applied on top.
func (r Record) Merge(changes Record) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(changes))
	}
	for k, v := range changes {
		out[k] = v
	}
	return out
}

// Has reports whether key is present, even with a nil value.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

func timestampValue(ts *int64) any {
	if ts == nil {
		return nil
	}
	return *ts
}

func intValue(n *int) any {
	if n == nil {
		return nil
	}
	return int64(*n)
}

func floatValue(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
