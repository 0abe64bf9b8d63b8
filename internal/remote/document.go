package remote

import (
	"context"

	"github.com/roach88/wedplan/internal/entity"
)

// Document binds a single document in a collection, such as the budget
// target in "settings".
type Document struct {
	ready      *Ready
	collection string
	id         string
}

// NewDocument binds document id of collection.
func NewDocument(ready *Ready, collection, id string) *Document {
	return &Document{ready: ready, collection: collection, id: id}
}

func (d *Document) resolve(op string) (Collection, error) {
	if d.ready == nil {
		return nil, Unavailable(op, d.collection, nil)
	}
	collab, ok := d.ready.Current()
	if !ok {
		return nil, Unavailable(op, d.collection, ErrNotReady)
	}
	coll, ok := collab.Collection(d.collection)
	if !ok || coll == nil {
		return nil, Unavailable(op, d.collection, nil)
	}
	return coll, nil
}

// Listen delivers the document whenever its collection changes. A missing
// document is delivered as nil.
func (d *Document) Listen(ctx context.Context, onRecord func(entity.Record)) (func(), error) {
	coll, err := d.resolve("listen")
	if err != nil {
		return nil, err
	}
	unsubscribe, err := coll.Listen(ctx, func(records []entity.Record) {
		onRecord(d.find(records))
	})
	if err != nil {
		return nil, Wrap("listen", d.collection, err)
	}
	return unsubscribe, nil
}

// Get reads the document once; a missing document is nil.
func (d *Document) Get(ctx context.Context) (entity.Record, error) {
	coll, err := d.resolve("get")
	if err != nil {
		return nil, err
	}
	records, err := coll.Fetch(ctx)
	if err != nil {
		return nil, Wrap("get", d.collection, err)
	}
	return d.find(records), nil
}

// Ready returns the signal the document resolves its collaborator from.
func (d *Document) Ready() *Ready {
	return d.ready
}

// Set creates or replaces the document.
func (d *Document) Set(ctx context.Context, r entity.Record) error {
	coll, err := d.resolve("set")
	if err != nil {
		return err
	}
	return Wrap("set", d.collection, coll.Add(ctx, d.id, r))
}

func (d *Document) find(records []entity.Record) entity.Record {
	for _, r := range records {
		if id, _ := r["id"].(string); id == d.id {
			return r
		}
	}
	return nil
}
