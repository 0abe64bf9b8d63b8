package entity

// Option is one allowed value of a closed enum together with its display
// label.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Enum is a closed set of options with a fallback used for missing or
// unknown input.
type Enum struct {
	Options  []Option
	Fallback string
}

// Valid reports whether value is one of the enum's options.
func (e Enum) Valid(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	for _, o := range e.Options {
		if o.Value == s {
			return true
		}
	}
	return false
}

// Normalize returns value when valid, otherwise the fallback.
func (e Enum) Normalize(value any) string {
	if e.Valid(value) {
		return value.(string)
	}
	return e.Fallback
}

// Index returns the declaration position of value, or len(Options) when the
// value is unknown. Used by comparators that order by enum.
func (e Enum) Index(value string) int {
	for i, o := range e.Options {
		if o.Value == value {
			return i
		}
	}
	return len(e.Options)
}

// Label returns the display label for value, or value itself when unknown.
func (e Enum) Label(value string) string {
	for _, o := range e.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// Values lists the option values in declaration order.
func (e Enum) Values() []string {
	out := make([]string, len(e.Options))
	for i, o := range e.Options {
		out[i] = o.Value
	}
	return out
}
