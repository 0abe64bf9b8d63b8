package entity

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// NewID generates a fresh entity id. It is a variable so tests can pin ids.
//
// UUIDv7 keeps ids roughly sortable by creation time, which helps when
// reading raw storage dumps.
var NewID = func() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Millis is implemented by remote timestamp values that can report epoch
// milliseconds directly.
type Millis interface {
	ToMillis() int64
}

var datePattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)

// NormalizeDate returns value as a zero-padded YYYY-MM-DD string when it
// names a real calendar day, and "" otherwise. Dates that do not round-trip
// (2025-02-30, 2025-04-31) are rejected.
func NormalizeDate(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	m := datePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if year == 0 || month == 0 || day == 0 {
		return ""
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return ""
	}
	return d.Format(time.DateOnly)
}

// ToTimestamp converts value to epoch milliseconds. It accepts a finite
// number, a time.Time, a Millis implementation or a remote timestamp object
// with numeric "seconds" and optional "nanoseconds". Anything else is nil.
func ToTimestamp(value any) *int64 {
	switch v := value.(type) {
	case nil:
		return nil
	case Millis:
		ms := v.ToMillis()
		return &ms
	case time.Time:
		if v.IsZero() {
			return nil
		}
		ms := v.UnixMilli()
		return &ms
	case map[string]any:
		secs, ok := number(v["seconds"])
		if !ok {
			return nil
		}
		ms := int64(secs * 1000)
		if nanos, ok := number(v["nanoseconds"]); ok {
			ms += int64(math.Floor(nanos / 1e6))
		}
		return &ms
	case string:
		// Strings are not timestamps, even when numeric.
		return nil
	}

	f, ok := number(value)
	if !ok {
		return nil
	}
	ms := int64(f)
	return &ms
}

// number reads JSON and Go numeric types. Strings are not numbers here.
func number(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseNumber reads a number leniently. Besides numeric types it accepts
// strings using either "." or "," as the decimal separator; when both occur
// the "." is treated as a thousands separator ("1.234,50" is 1234.5).
func ParseNumber(value any) (float64, bool) {
	if f, ok := number(value); ok {
		return f, true
	}
	s, ok := value.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Text trims and NFC-normalizes a string value. Non-strings become "".
func Text(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return norm.NFC.String(strings.TrimSpace(s))
}

// Truthy mirrors loose boolean coercion: bools are themselves, numbers are
// true when non-zero, strings are parsed with strconv.ParseBool and
// otherwise true when non-empty after trimming. "false" and "0" are
// therefore false, so flag text like completed=false keeps its meaning.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		s := strings.TrimSpace(v)
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return s != ""
	}
	if f, ok := number(value); ok {
		return f != 0
	}
	return true
}

// Count parses a non-negative whole number, defaulting to 0.
func Count(value any) int {
	n := OptionalCount(value)
	if n == nil {
		return 0
	}
	return *n
}

// OptionalCount parses a non-negative whole number. Invalid input is nil;
// negative input clamps to 0.
func OptionalCount(value any) *int {
	f, ok := ParseNumber(value)
	if !ok {
		return nil
	}
	n := int(math.Trunc(f))
	if n < 0 {
		n = 0
	}
	return &n
}

// Amount parses a money amount rounded to cents, defaulting to 0.
func Amount(value any) float64 {
	a := OptionalAmount(value)
	if a == nil {
		return 0
	}
	return *a
}

// OptionalAmount parses a money amount rounded to cents. Invalid input is
// nil; negative amounts clamp to 0.
func OptionalAmount(value any) *float64 {
	f, ok := ParseNumber(value)
	if !ok {
		return nil
	}
	if f < 0 {
		f = 0
	}
	f = math.Round(f*100) / 100
	return &f
}

// Rating parses a 0-5 score. Out-of-range values clamp; invalid input is nil.
func Rating(value any) *int {
	n := OptionalCount(value)
	if n == nil {
		return nil
	}
	if *n > 5 {
		*n = 5
	}
	return n
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ClockTime normalizes an HH:MM time of day, or returns "".
func ClockTime(value any) string {
	s := Text(value)
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 23 || minute > 59 {
		return ""
	}
	return strconv.Itoa(100 + h)[1:] + ":" + m[2]
}

// normalizeID returns the record's id as a string, generating one when the
// id is missing or empty. Numeric ids keep their decimal form.
func normalizeID(value any) string {
	switch v := value.(type) {
	case string:
		if v != "" {
			return v
		}
	case nil:
	default:
		if f, ok := number(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return NewID()
}

func copyInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// timestampOrZero treats a missing timestamp as 0 for ordering.
func timestampOrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
