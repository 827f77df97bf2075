package credits

import (
	"context"

	"github.com/google/uuid"
)

// Ledger is the credit account contract.
//
// Grant and Spend are the engine's only hard-error path: failures must
// propagate to the caller instead of degrading, because a swallowed error
// here silently loses money-equivalent value.
type Ledger interface {
	// Grant credits the account and appends a transaction. Returns
	// ErrDuplicateGrant when params.ProviderEventID was already granted to
	// the user, and ErrAccountNotFound when no account row exists.
	Grant(ctx context.Context, params GrantParams) (*Transaction, error)

	// Spend debits the account and appends a transaction. Returns
	// ErrInsufficientBalance when the debit would drive the balance
	// negative; the balance is never allowed below zero.
	Spend(ctx context.Context, params SpendParams) (*Transaction, error)

	// Balance returns the derived account state.
	Balance(ctx context.Context, userID uuid.UUID) (Balance, error)

	// History returns up to limit transactions, newest first.
	History(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
}

// IdentityMapper resolves the engine's user id to the external ledger's user
// id. The two systems were provisioned independently, so a mapping row may
// legitimately be missing; callers treat ErrNoIdentityMapping as a
// manual-follow-up condition, not a subscription failure.
type IdentityMapper interface {
	LedgerUserID(ctx context.Context, authUserID uuid.UUID) (uuid.UUID, error)
}
