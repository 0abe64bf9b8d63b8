package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/planner"
	"github.com/roach88/wedplan/internal/syncstore"
)

// collection is the kind-independent view the generic commands use.
type collection interface {
	Name() string
	Records() []entity.Record
	Has(id string) bool
	Add(ctx context.Context, rec entity.Record) (id string, ok bool, err error)
	Update(ctx context.Context, id string, changes entity.Record) error
	Delete(ctx context.Context, id string) error
	State() syncstore.State
	Subscribe(fn func([]entity.Record)) (unsubscribe func())
	Headers() []string
	Row(rec entity.Record) []string
}

// layout says how a kind is shown and which fields take dates.
type layout struct {
	columns    []string
	dateFields []string
}

var layouts = map[string]layout{
	entity.Tasks.Name: {
		columns:    []string{"id", "description", "category", "priority", "dueDate", "completed"},
		dateFields: []string{"dueDate"},
	},
	entity.Milestones.Name: {
		columns:    []string{"id", "title", "date", "time", "status"},
		dateFields: []string{"date"},
	},
	entity.Guests.Name: {
		columns: []string{"id", "name", "side", "rsvp", "companions", "table"},
	},
	entity.Ideas.Name: {
		columns: []string{"id", "title", "category", "favorite", "imageURL"},
	},
	entity.Venues.Name: {
		columns:    []string{"id", "name", "location", "capacity", "price", "rating", "status", "visitDate"},
		dateFields: []string{"visitDate"},
	},
	entity.Budget.Name: {
		columns:    []string{"id", "concept", "category", "estimated", "actual", "paid", "dueDate"},
		dateFields: []string{"dueDate"},
	},
}

type storeCollection[T entity.Entity[T]] struct {
	store  *syncstore.Store[T]
	layout layout
}

func adapt[T entity.Entity[T]](s *syncstore.Store[T]) collection {
	return &storeCollection[T]{store: s, layout: layouts[s.Kind().Name]}
}

func (c *storeCollection[T]) Name() string { return c.store.Kind().Name }

func (c *storeCollection[T]) Records() []entity.Record {
	return toRecords(c.store.Snapshot())
}

func (c *storeCollection[T]) Has(id string) bool {
	_, ok := c.store.Get(id)
	return ok
}

func (c *storeCollection[T]) Add(ctx context.Context, rec entity.Record) (string, bool, error) {
	e, ok, err := c.store.Add(ctx, rec)
	if !ok {
		return "", false, err
	}
	return e.EntityID(), true, err
}

func (c *storeCollection[T]) Update(ctx context.Context, id string, changes entity.Record) error {
	return c.store.Update(ctx, id, changes)
}

func (c *storeCollection[T]) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

func (c *storeCollection[T]) State() syncstore.State { return c.store.State() }

func (c *storeCollection[T]) Subscribe(fn func([]entity.Record)) func() {
	return c.store.Subscribe(func(items []T) { fn(toRecords(items)) })
}

func (c *storeCollection[T]) Headers() []string { return c.layout.columns }

func (c *storeCollection[T]) Row(rec entity.Record) []string {
	row := make([]string, len(c.layout.columns))
	for i, key := range c.layout.columns {
		row[i] = cell(rec[key])
	}
	return row
}

func toRecords[T entity.Entity[T]](items []T) []entity.Record {
	out := make([]entity.Record, len(items))
	for i, item := range items {
		out[i] = item.Record()
	}
	return out
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// kindNames lists the collections in presentation order.
func kindNames() []string {
	return entity.CollectionNames()
}

// collectionFor resolves a kind name, accepting the singular form too.
func collectionFor(app *planner.App, name string) (collection, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case entity.Tasks.Name, "task":
		return adapt(app.Tasks), nil
	case entity.Milestones.Name, "milestone":
		return adapt(app.Milestones), nil
	case entity.Guests.Name, "guest":
		return adapt(app.Guests), nil
	case entity.Ideas.Name, "idea":
		return adapt(app.Ideas), nil
	case entity.Venues.Name, "venue":
		return adapt(app.Venues), nil
	case entity.Budget.Name, "item":
		return adapt(app.Budget), nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q (one of %s)", errInvalidArgs, name, strings.Join(kindNames(), ", "))
}

func isDateField(kind, field string) bool {
	return slices.Contains(layouts[kind].dateFields, field)
}
