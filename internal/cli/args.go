package cli

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/roach88/wedplan/internal/entity"
)

var errInvalidArgs = errors.New("invalid arguments")

// now is the reference time for natural-language dates.
var now = time.Now

var isoDate = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseFields turns key=value arguments into a record. Values stay
// strings; the kind's normalizer coerces them. Date fields also accept
// phrases like "next friday" or "in 3 weeks".
func parseFields(kind string, args []string) (entity.Record, error) {
	rec := entity.Record{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", errInvalidArgs, arg)
		}
		if key == "id" {
			return nil, fmt.Errorf("%w: id cannot be set", errInvalidArgs)
		}
		if isDateField(kind, key) {
			date, err := parseDate(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", errInvalidArgs, key, err)
			}
			value = date
		}
		rec[key] = value
	}
	return rec, nil
}

// parseDate returns value as YYYY-MM-DD. Empty clears the date.
func parseDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || isoDate.MatchString(value) {
		return value, nil
	}
	r, err := dateParser.Parse(value, now())
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("cannot read %q as a date", value)
	}
	return r.Time.Format(time.DateOnly), nil
}
