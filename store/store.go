package store

import (
	"context"
	"errors"
	"time"

	"github.com/madshubh27/Crotex/document"
)

// ErrNotFound is returned when no drawing exists for a session id.
var ErrNotFound = errors.New("drawing not found")

// Drawing is the persisted form of a room's document.
type Drawing struct {
	SessionID string            `json:"sessionId"`
	Elements  document.Snapshot `json:"elements"`
	Owner     string            `json:"createdBy,omitempty"`
	Title     string            `json:"title,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Store is the narrow document-store interface the sync engine persists
// through. The concrete engine behind it is interchangeable; this package
// ships Postgres, Mongo and in-memory implementations.
type Store interface {
	// FindBySessionID returns the drawing for a session, or ErrNotFound.
	FindBySessionID(ctx context.Context, sessionID string) (*Drawing, error)

	// Upsert replaces the element data for a session, creating the drawing
	// when absent. An empty owner leaves any existing owner untouched.
	Upsert(ctx context.Context, sessionID string, elements document.Snapshot, owner string) error

	// ListByOwner returns drawings created by owner, most recently updated
	// first.
	ListByOwner(ctx context.Context, owner string) ([]Drawing, error)

	// Delete removes a drawing. Deleting an absent session returns
	// ErrNotFound.
	Delete(ctx context.Context, sessionID string) error

	Close(ctx context.Context) error
}
