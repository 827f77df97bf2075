package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covergen/meterkit/pkg/pg"
)

// PGStore persists counters in the usage_counters table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("usage: pgxpool is required")
	}
	return &PGStore{pool: pool}
}

func (s *PGStore) Today(ctx context.Context, id Identity, gt GenerationType, day time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT count FROM usage_counters
		WHERE identity_kind = $1 AND identity_id = $2 AND day = $3 AND generation_type = $4`,
		id.Kind, id.ID, DayKey(day), gt,
	).Scan(&count)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return 0, nil
		}
		return 0, errors.Join(ErrFailedToReadUsage, err)
	}
	return count, nil
}

func (s *PGStore) MonthToDate(ctx context.Context, id Identity, gt GenerationType, day time.Time) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(count), 0) FROM usage_counters
		WHERE identity_kind = $1 AND identity_id = $2 AND generation_type = $3
		  AND day >= $4 AND day <= $5`,
		id.Kind, id.ID, gt, MonthStart(day), DayKey(day),
	).Scan(&total)
	if err != nil {
		return 0, errors.Join(ErrFailedToReadUsage, err)
	}
	return total, nil
}

// Increment is a single UPSERT with an additive update clause, so concurrent
// callers serialize on the row instead of racing a read-then-write.
func (s *PGStore) Increment(ctx context.Context, id Identity, gt GenerationType, day time.Time, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var count int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO usage_counters (identity_kind, identity_id, day, generation_type, count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity_kind, identity_id, day, generation_type)
		DO UPDATE SET count = usage_counters.count + EXCLUDED.count, updated_at = now()
		RETURNING count`,
		id.Kind, id.ID, DayKey(day), gt, amount,
	).Scan(&count)
	if err != nil {
		return 0, errors.Join(ErrFailedToIncrementUsage, err)
	}
	return count, nil
}

// MergeSession moves session counters into the user's in one statement:
// the CTE deletes the session rows and the insert folds them into the user
// rows, so a repeated call sees no session rows and changes nothing.
func (s *PGStore) MergeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		WITH moved AS (
			DELETE FROM usage_counters
			WHERE identity_kind = $1 AND identity_id = $2
			RETURNING day, generation_type, count
		)
		INSERT INTO usage_counters (identity_kind, identity_id, day, generation_type, count)
		SELECT $3, $4, day, generation_type, count FROM moved
		ON CONFLICT (identity_kind, identity_id, day, generation_type)
		DO UPDATE SET count = usage_counters.count + EXCLUDED.count, updated_at = now()`,
		IdentitySession, sessionID, IdentityUser, userID,
	)
	if err != nil {
		return errors.Join(ErrFailedToMergeSession, err)
	}
	return nil
}
