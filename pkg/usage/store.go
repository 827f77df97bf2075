package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the counter persistence contract.
//
// Implementations must make Increment an atomic increment-or-insert: two
// concurrent increments for the same (identity, day, type) must both be
// counted. MergeSession must be atomic and safe to call twice; the second
// call finds no session counters and is a no-op.
type Store interface {
	// Today returns the counter for the given UTC day, 0 when absent.
	Today(ctx context.Context, id Identity, gt GenerationType, day time.Time) (int64, error)

	// MonthToDate sums all daily counters within day's calendar month,
	// up to and including day.
	MonthToDate(ctx context.Context, id Identity, gt GenerationType, day time.Time) (int64, error)

	// Increment adds amount to the day's counter, creating it when absent,
	// and returns the new count.
	Increment(ctx context.Context, id Identity, gt GenerationType, day time.Time, amount int64) (int64, error)

	// MergeSession folds all of a session's counters into the user's,
	// matching on day and generation type, and removes the session rows.
	MergeSession(ctx context.Context, userID, sessionID uuid.UUID) error
}
