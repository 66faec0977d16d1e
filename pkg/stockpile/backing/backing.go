// Package backing defines the durable snapshot storage used by the entity store.
//
// A backing persists one opaque payload per collection. The store always
// writes a complete snapshot of a collection, so implementations only need
// whole-value replace semantics.
package backing

import (
	"context"
	"errors"
)

// ErrNotFound indicates no snapshot has been saved for a collection yet.
var ErrNotFound = errors.New("snapshot not found")

// Backing is durable storage for collection snapshots.
type Backing interface {
	// Load returns the last saved payload, or ErrNotFound.
	Load(ctx context.Context, collection string) ([]byte, error)
	// Save replaces the payload for collection.
	Save(ctx context.Context, collection string, payload []byte) error
	// Close releases any underlying resources.
	Close() error
}
