package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covergen/meterkit/pkg/pg"
)

// PGStore persists subscription records in the subscriptions table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("subscription: pgxpool is required")
	}
	return &PGStore{pool: pool}
}

const recordColumns = `
	user_id, tier, status, billing_cycle, previous_tier,
	provider_customer_id, provider_subscription_id, provider_price_id, provider_payment_method_id,
	current_period_start, current_period_end, trial_started_at, trial_ends_at,
	cancel_at_period_end, cancelled_at,
	points_balance, points_lifetime_earned, points_lifetime_spent,
	upgrade_history, proration_amount, last_proration_date, last_renewed_at,
	metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.UserID, &r.Tier, &r.Status, &r.BillingCycle, &r.PreviousTier,
		&r.ProviderCustomerID, &r.ProviderSubscriptionID, &r.ProviderPriceID, &r.ProviderPaymentMethodID,
		&r.CurrentPeriodStart, &r.CurrentPeriodEnd, &r.TrialStartedAt, &r.TrialEndsAt,
		&r.CancelAtPeriodEnd, &r.CancelledAt,
		&r.PointsBalance, &r.PointsLifetimeEarned, &r.PointsLifetimeSpent,
		&r.UpgradeHistory, &r.ProrationAmount, &r.LastProrationDate, &r.LastRenewedAt,
		&r.Metadata, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+recordColumns+` FROM subscriptions WHERE user_id = $1`, userID)

	rec, err := scanRecord(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Join(ErrFailedToReadRecord, err)
	}
	return rec, nil
}

func (s *PGStore) Create(ctx context.Context, rec *Record) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (`+insertColumns+`)
		VALUES (`+insertPlaceholders+`)
		RETURNING created_at, updated_at`,
		insertArgs(rec)...,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrRecordAlreadyExists
		}
		return errors.Join(ErrFailedToWriteRecord, err)
	}
	return nil
}

// Update runs as a row-locked read-modify-write so concurrent patches for
// the same user serialize instead of interleaving field writes.
func (s *PGStore) Update(ctx context.Context, userID uuid.UUID, patch Patch) (*Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Join(ErrFailedToWriteRecord, err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT`+recordColumns+` FROM subscriptions WHERE user_id = $1 FOR UPDATE`, userID)
	rec, err := scanRecord(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Join(ErrFailedToReadRecord, err)
	}

	patch.apply(rec)

	err = tx.QueryRow(ctx, `
		UPDATE subscriptions SET
			tier = $2, status = $3, billing_cycle = $4, previous_tier = $5,
			provider_customer_id = $6, provider_subscription_id = $7,
			provider_price_id = $8, provider_payment_method_id = $9,
			current_period_start = $10, current_period_end = $11,
			trial_started_at = $12, trial_ends_at = $13,
			cancel_at_period_end = $14, cancelled_at = $15,
			upgrade_history = $16, proration_amount = $17,
			last_proration_date = $18, last_renewed_at = $19,
			metadata = $20, updated_at = now()
		WHERE user_id = $1
		RETURNING updated_at`,
		rec.UserID, rec.Tier, rec.Status, rec.BillingCycle, rec.PreviousTier,
		rec.ProviderCustomerID, rec.ProviderSubscriptionID,
		rec.ProviderPriceID, rec.ProviderPaymentMethodID,
		rec.CurrentPeriodStart, rec.CurrentPeriodEnd,
		rec.TrialStartedAt, rec.TrialEndsAt,
		rec.CancelAtPeriodEnd, rec.CancelledAt,
		rec.UpgradeHistory, rec.ProrationAmount,
		rec.LastProrationDate, rec.LastRenewedAt,
		rec.Metadata,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		return nil, errors.Join(ErrFailedToWriteRecord, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Join(ErrFailedToWriteRecord, err)
	}
	return rec, nil
}

// Upsert is a single on-conflict statement, so duplicate webhook delivery
// for the same user converges on one row. The points columns and created_at
// are preserved on conflict; only the credit ledger moves balances.
func (s *PGStore) Upsert(ctx context.Context, rec *Record) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (`+insertColumns+`)
		VALUES (`+insertPlaceholders+`)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			billing_cycle = EXCLUDED.billing_cycle,
			previous_tier = EXCLUDED.previous_tier,
			provider_customer_id = EXCLUDED.provider_customer_id,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			provider_price_id = EXCLUDED.provider_price_id,
			provider_payment_method_id = EXCLUDED.provider_payment_method_id,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			trial_started_at = EXCLUDED.trial_started_at,
			trial_ends_at = EXCLUDED.trial_ends_at,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			cancelled_at = EXCLUDED.cancelled_at,
			upgrade_history = EXCLUDED.upgrade_history,
			proration_amount = EXCLUDED.proration_amount,
			last_proration_date = EXCLUDED.last_proration_date,
			last_renewed_at = EXCLUDED.last_renewed_at,
			metadata = EXCLUDED.metadata,
			updated_at = now()
		RETURNING`+recordColumns,
		insertArgs(rec)...,
	)

	out, err := scanRecord(row)
	if err != nil {
		return nil, errors.Join(ErrFailedToWriteRecord, err)
	}
	return out, nil
}

const insertColumns = `
	user_id, tier, status, billing_cycle, previous_tier,
	provider_customer_id, provider_subscription_id, provider_price_id, provider_payment_method_id,
	current_period_start, current_period_end, trial_started_at, trial_ends_at,
	cancel_at_period_end, cancelled_at,
	upgrade_history, proration_amount, last_proration_date, last_renewed_at, metadata`

const insertPlaceholders = `
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
	$11, $12, $13, $14, $15, $16, $17, $18, $19, $20`

func insertArgs(rec *Record) []any {
	return []any{
		rec.UserID, rec.Tier, rec.Status, rec.BillingCycle, rec.PreviousTier,
		rec.ProviderCustomerID, rec.ProviderSubscriptionID,
		rec.ProviderPriceID, rec.ProviderPaymentMethodID,
		rec.CurrentPeriodStart, rec.CurrentPeriodEnd,
		rec.TrialStartedAt, rec.TrialEndsAt,
		rec.CancelAtPeriodEnd, rec.CancelledAt,
		rec.UpgradeHistory, rec.ProrationAmount,
		rec.LastProrationDate, rec.LastRenewedAt,
		rec.Metadata,
	}
}

// PGMirrorStore writes the consolidated legacy view.
type PGMirrorStore struct {
	pool *pgxpool.Pool
}

func NewPGMirrorStore(pool *pgxpool.Pool) *PGMirrorStore {
	if pool == nil {
		panic("subscription: pgxpool is required")
	}
	return &PGMirrorStore{pool: pool}
}

func (s *PGMirrorStore) Sync(ctx context.Context, rec *Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions_consolidated
			(user_id, tier, status, billing_cycle, provider_subscription_id,
			 current_period_end, cancel_at_period_end, points_balance, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			billing_cycle = EXCLUDED.billing_cycle,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			points_balance = EXCLUDED.points_balance,
			synced_at = now()`,
		rec.UserID, rec.Tier, rec.Status, rec.BillingCycle, rec.ProviderSubscriptionID,
		rec.CurrentPeriodEnd, rec.CancelAtPeriodEnd, rec.PointsBalance,
	)
	if err != nil {
		return errors.Join(ErrFailedToMirror, err)
	}
	return nil
}

// PGDirectory checks user existence against the users table.
type PGDirectory struct {
	pool *pgxpool.Pool
}

func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	if pool == nil {
		panic("subscription: pgxpool is required")
	}
	return &PGDirectory{pool: pool}
}

func (d *PGDirectory) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Join(ErrFailedToReadRecord, err)
	}
	return exists, nil
}
