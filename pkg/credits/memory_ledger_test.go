package credits_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergen/meterkit/pkg/credits"
)

func TestLedgerGrant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("credits the account", func(t *testing.T) {
		t.Parallel()

		ledger := credits.NewMemLedger()
		userID := uuid.New()
		ledger.CreateAccount(userID)

		tx, err := ledger.Grant(ctx, credits.GrantParams{
			UserID: userID,
			Amount: 800,
			Type:   credits.TypeSubscriptionGrant,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(800), tx.Amount)
		assert.Equal(t, int64(800), tx.BalanceAfter)

		bal, err := ledger.Balance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(800), bal.Balance)
		assert.Equal(t, int64(800), bal.LifetimeEarned)
	})

	t.Run("deduplicates provider events", func(t *testing.T) {
		t.Parallel()

		ledger := credits.NewMemLedger()
		userID := uuid.New()
		ledger.CreateAccount(userID)

		params := credits.GrantParams{
			UserID:          userID,
			Amount:          800,
			Type:            credits.TypeSubscriptionGrant,
			ProviderEventID: "evt_123",
		}
		_, err := ledger.Grant(ctx, params)
		require.NoError(t, err)

		_, err = ledger.Grant(ctx, params)
		assert.ErrorIs(t, err, credits.ErrDuplicateGrant)

		bal, err := ledger.Balance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(800), bal.Balance, "redelivered event must not double the grant")
	})

	t.Run("same event id for different users is not a duplicate", func(t *testing.T) {
		t.Parallel()

		ledger := credits.NewMemLedger()
		a, b := uuid.New(), uuid.New()
		ledger.CreateAccount(a)
		ledger.CreateAccount(b)

		_, err := ledger.Grant(ctx, credits.GrantParams{UserID: a, Amount: 100, Type: credits.TypeSubscriptionGrant, ProviderEventID: "evt_1"})
		require.NoError(t, err)
		_, err = ledger.Grant(ctx, credits.GrantParams{UserID: b, Amount: 100, Type: credits.TypeSubscriptionGrant, ProviderEventID: "evt_1"})
		require.NoError(t, err)
	})

	t.Run("rejects unknown accounts and bad amounts", func(t *testing.T) {
		t.Parallel()

		ledger := credits.NewMemLedger()
		userID := uuid.New()

		_, err := ledger.Grant(ctx, credits.GrantParams{UserID: userID, Amount: 10, Type: credits.TypeSignupBonus})
		assert.ErrorIs(t, err, credits.ErrAccountNotFound)

		ledger.CreateAccount(userID)
		_, err = ledger.Grant(ctx, credits.GrantParams{UserID: userID, Amount: 0, Type: credits.TypeSignupBonus})
		assert.ErrorIs(t, err, credits.ErrInvalidAmount)
	})
}

func TestLedgerSpend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("debits and records negative amount", func(t *testing.T) {
		t.Parallel()

		ledger := credits.NewMemLedger()
		userID := uuid.New()
		ledger.CreateAccount(userID)

		_, err := ledger.Grant(ctx, credits.GrantParams{UserID: userID, Amount: 100, Type: credits.TypeSignupBonus})
		require.NoError(t, err)

		tx, err := ledger.Spend(ctx, credits.SpendParams{UserID: userID, Amount: 30, Type: credits.TypeGenerationCost})
		require.NoError(t, err)
		assert.Equal(t, int64(-30), tx.Amount)
		assert.Equal(t, int64(70), tx.BalanceAfter)

		bal, err := ledger.Balance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(70), bal.Balance)
		assert.Equal(t, int64(30), bal.LifetimeSpent)
	})

	t.Run("never drives the balance negative", func(t *testing.T) {
		t.Parallel()

		ledger := credits.NewMemLedger()
		userID := uuid.New()
		ledger.CreateAccount(userID)

		_, err := ledger.Grant(ctx, credits.GrantParams{UserID: userID, Amount: 10, Type: credits.TypeSignupBonus})
		require.NoError(t, err)

		_, err = ledger.Spend(ctx, credits.SpendParams{UserID: userID, Amount: 11, Type: credits.TypeGenerationCost})
		assert.ErrorIs(t, err, credits.ErrInsufficientBalance)

		bal, err := ledger.Balance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), bal.Balance, "failed spend must leave the balance untouched")
	})
}

func TestLedgerHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := credits.NewMemLedger()
	userID := uuid.New()
	ledger.CreateAccount(userID)

	_, err := ledger.Grant(ctx, credits.GrantParams{UserID: userID, Amount: 100, Type: credits.TypeSignupBonus})
	require.NoError(t, err)
	_, err = ledger.Spend(ctx, credits.SpendParams{UserID: userID, Amount: 40, Type: credits.TypeGenerationCost})
	require.NoError(t, err)
	_, err = ledger.Grant(ctx, credits.GrantParams{UserID: userID, Amount: 800, Type: credits.TypeSubscriptionGrant})
	require.NoError(t, err)

	txs, err := ledger.History(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	// Newest first, and BalanceAfter tracks the running sum.
	assert.Equal(t, int64(860), txs[0].BalanceAfter)
	assert.Equal(t, int64(60), txs[1].BalanceAfter)
	assert.Equal(t, int64(100), txs[2].BalanceAfter)

	var sum int64
	for _, tx := range txs {
		sum += tx.Amount
	}
	bal, err := ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, bal.Balance, sum, "ledger amounts must reconcile with the balance")

	// Limit truncates from the newest end.
	txs, err = ledger.History(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(860), txs[0].BalanceAfter)
}
