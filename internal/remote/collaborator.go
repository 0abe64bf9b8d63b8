package remote

import (
	"context"

	"github.com/roach88/wedplan/internal/entity"
)

// Collaborator is the external real-time document store. It exposes one
// Collection per entity kind plus "settings"; a missing collection means
// the capability is not available.
type Collaborator interface {
	Collection(name string) (Collection, bool)
}

// Collection is one remote document collection.
//
// Add creates or replaces the document with the given id. Update applies
// a shallow change-set and fails when the document does not exist.
// Listen delivers the full collection every time it changes, starting
// with the current contents; the returned func detaches the listener.
type Collection interface {
	Listen(ctx context.Context, onRecords func([]entity.Record)) (unsubscribe func(), err error)
	Fetch(ctx context.Context) ([]entity.Record, error)
	Add(ctx context.Context, id string, payload entity.Record) error
	Update(ctx context.Context, id string, changes entity.Record) error
	Delete(ctx context.Context, id string) error
}

// SettingsCollection holds singleton documents such as the budget target.
const SettingsCollection = "settings"
