package credits

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covergen/meterkit/pkg/pg"
)

// PGIdentityMapper resolves auth user ids to ledger user ids through the
// ledger_identity_map table.
type PGIdentityMapper struct {
	pool *pgxpool.Pool
}

func NewPGIdentityMapper(pool *pgxpool.Pool) *PGIdentityMapper {
	if pool == nil {
		panic("credits: pgxpool is required")
	}
	return &PGIdentityMapper{pool: pool}
}

func (m *PGIdentityMapper) LedgerUserID(ctx context.Context, authUserID uuid.UUID) (uuid.UUID, error) {
	var ledgerID uuid.UUID
	err := m.pool.QueryRow(ctx,
		`SELECT ledger_user_id FROM ledger_identity_map WHERE auth_user_id = $1`,
		authUserID,
	).Scan(&ledgerID)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return uuid.Nil, ErrNoIdentityMapping
		}
		return uuid.Nil, errors.Join(ErrFailedToMapIdentity, err)
	}
	return ledgerID, nil
}
