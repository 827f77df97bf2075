package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store defines subscription record persistence. UserID is the primary key;
// Upsert must use an on-conflict primitive so concurrent upserts for the
// same user cannot create duplicate rows.
type Store interface {
	// Get retrieves the record for a user.
	// Returns ErrRecordNotFound if none exists.
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)

	// Create inserts a new record. Returns ErrRecordAlreadyExists when the
	// user already has one.
	Create(ctx context.Context, rec *Record) error

	// Update applies a partial patch and returns the updated record.
	Update(ctx context.Context, userID uuid.UUID, patch Patch) (*Record, error)

	// Upsert inserts or replaces the record keyed on UserID. The points
	// fields are preserved on conflict; only the ledger moves them.
	Upsert(ctx context.Context, rec *Record) (*Record, error)
}

// MirrorStore writes the consolidated legacy view kept for
// backward-compatible readers. Sync is best-effort by contract: the manager
// logs failures and never surfaces them.
type MirrorStore interface {
	Sync(ctx context.Context, rec *Record) error
}

// Directory is the identity-store boundary. Exists is consulted defensively
// before usage reads; a missing user means "usage = 0", never an error
// surfaced to the caller.
type Directory interface {
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
}
