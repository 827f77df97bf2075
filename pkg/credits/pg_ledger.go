package credits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covergen/meterkit/pkg/pg"
)

// PGLedger keeps the running balance on the subscriptions row and the
// transaction log in credit_transactions. Both writes happen inside a single
// statement so the balance and the ledger can never drift apart, and a
// unique index on (user_id, provider_event_id) absorbs webhook redelivery.
type PGLedger struct {
	pool *pgxpool.Pool
}

func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	if pool == nil {
		panic("credits: pgxpool is required")
	}
	return &PGLedger{pool: pool}
}

func (l *PGLedger) Grant(ctx context.Context, params GrantParams) (*Transaction, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx := &Transaction{
		ID:              uuid.New(),
		UserID:          params.UserID,
		Amount:          params.Amount,
		Type:            params.Type,
		SubscriptionID:  params.SubscriptionID,
		ProviderEventID: params.ProviderEventID,
		Description:     params.Description,
		Metadata:        params.Metadata,
	}

	// The CTE moves the balance; the insert reads the post-update balance
	// from it. A unique violation on the insert aborts the whole statement,
	// rolling the balance update back with it.
	err := l.pool.QueryRow(ctx, `
		WITH account AS (
			UPDATE subscriptions
			SET points_balance = points_balance + $2,
			    points_lifetime_earned = points_lifetime_earned + $2,
			    updated_at = now()
			WHERE user_id = $1
			RETURNING points_balance
		)
		INSERT INTO credit_transactions
			(id, user_id, amount, balance_after, transaction_type,
			 subscription_id, provider_event_id, description, metadata)
		SELECT $3, $1, $2, account.points_balance, $4, $5, NULLIF($6, ''), $7, $8
		FROM account
		RETURNING balance_after, created_at`,
		params.UserID, params.Amount, tx.ID, params.Type,
		params.SubscriptionID, params.ProviderEventID, params.Description, params.Metadata,
	).Scan(&tx.BalanceAfter, &tx.CreatedAt)
	if err != nil {
		switch {
		case pg.IsDuplicateKeyError(err):
			return nil, ErrDuplicateGrant
		case pg.IsNotFoundError(err):
			return nil, ErrAccountNotFound
		default:
			return nil, errors.Join(ErrFailedToWriteLedger, err)
		}
	}
	return tx, nil
}

func (l *PGLedger) Spend(ctx context.Context, params SpendParams) (*Transaction, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx := &Transaction{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Amount:      -params.Amount,
		Type:        params.Type,
		Description: params.Description,
		Metadata:    params.Metadata,
	}

	// The balance guard lives in the WHERE clause: a concurrent spend that
	// would go negative simply matches no row.
	err := l.pool.QueryRow(ctx, `
		WITH account AS (
			UPDATE subscriptions
			SET points_balance = points_balance - $2,
			    points_lifetime_spent = points_lifetime_spent + $2,
			    updated_at = now()
			WHERE user_id = $1 AND points_balance >= $2
			RETURNING points_balance
		)
		INSERT INTO credit_transactions
			(id, user_id, amount, balance_after, transaction_type, description, metadata)
		SELECT $3, $1, -$2, account.points_balance, $4, $5, $6
		FROM account
		RETURNING balance_after, created_at`,
		params.UserID, params.Amount, tx.ID, params.Type, params.Description, params.Metadata,
	).Scan(&tx.BalanceAfter, &tx.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			// No row matched: either the account doesn't exist or the
			// balance is too low. Disambiguate with a plain read.
			if _, berr := l.Balance(ctx, params.UserID); errors.Is(berr, ErrAccountNotFound) {
				return nil, ErrAccountNotFound
			}
			return nil, ErrInsufficientBalance
		}
		return nil, errors.Join(ErrFailedToWriteLedger, err)
	}
	return tx, nil
}

func (l *PGLedger) Balance(ctx context.Context, userID uuid.UUID) (Balance, error) {
	var b Balance
	err := l.pool.QueryRow(ctx, `
		SELECT points_balance, points_lifetime_earned, points_lifetime_spent
		FROM subscriptions WHERE user_id = $1`,
		userID,
	).Scan(&b.Balance, &b.LifetimeEarned, &b.LifetimeSpent)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return Balance{}, ErrAccountNotFound
		}
		return Balance{}, errors.Join(ErrFailedToReadLedger, err)
	}
	return b, nil
}

func (l *PGLedger) History(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, amount, balance_after, transaction_type,
		       COALESCE(subscription_id, ''), COALESCE(provider_event_id, ''),
		       description, metadata, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, errors.Join(ErrFailedToReadLedger, err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var tx Transaction
		var createdAt time.Time
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.BalanceAfter, &tx.Type,
			&tx.SubscriptionID, &tx.ProviderEventID, &tx.Description, &tx.Metadata, &createdAt); err != nil {
			return nil, errors.Join(ErrFailedToReadLedger, err)
		}
		tx.CreatedAt = createdAt
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToReadLedger, err)
	}
	return out, nil
}
