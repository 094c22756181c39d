package history

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Fetch when no snapshot has ever been
// published under the requested name. It is the expected outcome of a
// first-ever pipeline run and is not a pipeline failure.
var ErrNotFound = errors.New("history: snapshot not found")

// Store persists named snapshots across pipeline runs.
//
// Publish must be atomic from the consumer's point of view: a reader
// must never Fetch a half-written snapshot as valid. There is no
// versioning beyond latest-wins.
type Store interface {
	// Fetch returns the snapshot published under name, or ErrNotFound.
	Fetch(ctx context.Context, name string) (*Snapshot, error)

	// Publish replaces the snapshot stored under name.
	Publish(ctx context.Context, name string, snap *Snapshot) error
}
