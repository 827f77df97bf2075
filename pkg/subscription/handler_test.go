package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergen/meterkit/pkg/credits"
	"github.com/covergen/meterkit/pkg/subscription"
	"github.com/covergen/meterkit/pkg/tier"
)

func newHandlerFixture(t *testing.T) (*subscription.Handler, *subscription.MemStore, *credits.MemLedger) {
	t.Helper()

	store := subscription.NewMemStore()
	ledger := credits.NewMemLedger()
	mgr := subscription.NewManager(store, testRegistry(t), subscription.WithLedger(ledger))
	return subscription.NewHandler(mgr), store, ledger
}

func TestHandleEventDropsBadEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h, _, _ := newHandlerFixture(t)

	assert.NoError(t, h.HandleEvent(ctx, nil))

	assert.NoError(t, h.HandleEvent(ctx, &subscription.Event{
		ID:   "evt_1",
		Kind: subscription.EventSubCreated,
		// No UserID: event came without metadata, nothing to attach it to.
	}))

	assert.NoError(t, h.HandleEvent(ctx, &subscription.Event{
		ID:     "evt_2",
		Kind:   subscription.EventUnknown,
		UserID: uuid.New(),
	}))
}

func TestHandleCheckoutCompleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h, store, _ := newHandlerFixture(t)
	userID := uuid.New()

	err := h.HandleEvent(ctx, &subscription.Event{
		ID:             "evt_1",
		Kind:           subscription.EventCheckoutCompleted,
		UserID:         userID,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		PriceID:        "pri_1",
		Tier:           "pro",
		Cycle:          "monthly",
		Status:         "active",
	})
	require.NoError(t, err)

	rec, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, tier.TierPro, rec.Tier)
	assert.Equal(t, tier.CycleMonthly, rec.BillingCycle)
	assert.Equal(t, subscription.StatusActive, rec.Status)
	assert.Equal(t, "cus_1", rec.ProviderCustomerID)
	assert.Equal(t, "sub_1", rec.ProviderSubscriptionID)
	assert.Equal(t, "pri_1", rec.ProviderPriceID)
}

func TestHandleSubscriptionCreated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("builds the full record", func(t *testing.T) {
		t.Parallel()

		h, store, ledger := newHandlerFixture(t)
		userID := uuid.New()
		ledger.CreateAccount(userID)

		start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)

		err := h.HandleEvent(ctx, &subscription.Event{
			ID:             "evt_1",
			Kind:           subscription.EventSubCreated,
			UserID:         userID,
			SubscriptionID: "sub_1",
			Tier:           "pro_plus",
			Cycle:          "yearly",
			Status:         "active",
			PeriodStart:    &start,
			PeriodEnd:      &end,
		})
		require.NoError(t, err)

		rec, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, tier.TierProPlus, rec.Tier)
		assert.Equal(t, tier.CycleYearly, rec.BillingCycle)
		require.NotNil(t, rec.CurrentPeriodEnd)
		assert.True(t, end.Equal(*rec.CurrentPeriodEnd))

		// Paid activation granted the yearly credits.
		bal, err := ledger.Balance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(24000), bal.Balance)
	})

	t.Run("trialing status does not grant", func(t *testing.T) {
		t.Parallel()

		h, store, ledger := newHandlerFixture(t)
		userID := uuid.New()
		ledger.CreateAccount(userID)

		trialEnd := time.Now().UTC().AddDate(0, 0, 7)
		err := h.HandleEvent(ctx, &subscription.Event{
			ID:       "evt_1",
			Kind:     subscription.EventSubCreated,
			UserID:   userID,
			Tier:     "pro",
			Cycle:    "monthly",
			Status:   "on_trial",
			TrialEnd: &trialEnd,
		})
		require.NoError(t, err)

		rec, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialing, rec.Status)

		bal, err := ledger.Balance(ctx, userID)
		require.NoError(t, err)
		assert.Zero(t, bal.Balance, "credits arrive when the trial converts, not when it starts")
	})
}

func TestHandleCancellation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	store := subscription.NewMemStore()
	mgr := subscription.NewManager(store, testRegistry(t))
	h := subscription.NewHandler(mgr,
		subscription.WithHandlerClock(func() time.Time { return now }))

	userID := uuid.New()
	_, err := mgr.Create(ctx, &subscription.Record{
		UserID: userID, Tier: tier.TierPro, Status: subscription.StatusActive,
	})
	require.NoError(t, err)

	periodEnd := now.AddDate(0, 0, 10)
	err = h.HandleEvent(ctx, &subscription.Event{
		ID:                "evt_1",
		Kind:              subscription.EventSubCancelled,
		UserID:            userID,
		CancelAtPeriodEnd: subscription.Ptr(true),
		PeriodEnd:         &periodEnd,
	})
	require.NoError(t, err)

	rec, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, rec.Status)
	require.NotNil(t, rec.CancelledAt)
	assert.True(t, now.Equal(*rec.CancelledAt))
	assert.True(t, rec.CancelAtPeriodEnd)

	// The tier is untouched: access runs until the period elapses.
	assert.Equal(t, tier.TierPro, rec.Tier)
	assert.False(t, rec.PeriodElapsedAt(now))
	assert.True(t, rec.PeriodElapsedAt(periodEnd.Add(time.Hour)))
}

func TestHandleTrialEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("trial_will_end changes nothing", func(t *testing.T) {
		t.Parallel()

		h, store, _ := newHandlerFixture(t)
		userID := uuid.New()
		mgrSeed(t, store, userID, subscription.StatusTrialing)

		err := h.HandleEvent(ctx, &subscription.Event{
			ID: "evt_1", Kind: subscription.EventSubTrialWillEnd, UserID: userID,
		})
		require.NoError(t, err)

		rec, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialing, rec.Status)
	})

	t.Run("trial_ended converts to active", func(t *testing.T) {
		t.Parallel()

		h, store, _ := newHandlerFixture(t)
		userID := uuid.New()
		mgrSeed(t, store, userID, subscription.StatusTrialing)

		err := h.HandleEvent(ctx, &subscription.Event{
			ID: "evt_1", Kind: subscription.EventSubTrialEnded, UserID: userID,
		})
		require.NoError(t, err)

		rec, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, rec.Status)
	})

	t.Run("trial_ended honors an unpaid provider status", func(t *testing.T) {
		t.Parallel()

		h, store, _ := newHandlerFixture(t)
		userID := uuid.New()
		mgrSeed(t, store, userID, subscription.StatusTrialing)

		err := h.HandleEvent(ctx, &subscription.Event{
			ID: "evt_1", Kind: subscription.EventSubTrialEnded, UserID: userID,
			Status: "expired",
		})
		require.NoError(t, err)

		rec, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, rec.Status)
	})
}

func TestHandleSubscriptionPaid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h, store, ledger := newHandlerFixture(t)
	userID := uuid.New()
	ledger.CreateAccount(userID)

	// Active pro subscriber whose monthly invoice just settled.
	require.NoError(t, store.Create(ctx, &subscription.Record{
		UserID: userID, Tier: tier.TierPro, Status: subscription.StatusActive,
		BillingCycle: tier.CycleMonthly,
	}))

	err := h.HandleEvent(ctx, &subscription.Event{
		ID: "inv_1", Kind: subscription.EventSubPaid, UserID: userID,
	})
	require.NoError(t, err)

	rec, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.NotNil(t, rec.LastRenewedAt)

	bal, err := ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), bal.Balance)

	// Same invoice redelivered: no second grant.
	require.NoError(t, h.HandleEvent(ctx, &subscription.Event{
		ID: "inv_1", Kind: subscription.EventSubPaid, UserID: userID,
	}))
	bal, err = ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), bal.Balance)
}

func TestHandleRefundAndDispute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h, store, _ := newHandlerFixture(t)
	userID := uuid.New()
	mgrSeed(t, store, userID, subscription.StatusActive)

	for _, kind := range []subscription.EventKind{
		subscription.EventRefundCreated,
		subscription.EventDisputeCreated,
	} {
		require.NoError(t, h.HandleEvent(ctx, &subscription.Event{
			ID: "evt_1", Kind: kind, UserID: userID,
		}))
	}

	rec, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, rec.Status, "refunds and disputes are log-only")
}

func mgrSeed(t *testing.T, store *subscription.MemStore, userID uuid.UUID, status subscription.Status) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &subscription.Record{
		UserID: userID, Tier: tier.TierPro, Status: status, BillingCycle: tier.CycleMonthly,
	}))
}
