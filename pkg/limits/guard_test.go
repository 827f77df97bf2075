package limits_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergen/meterkit/pkg/limits"
	"github.com/covergen/meterkit/pkg/plan"
	"github.com/covergen/meterkit/pkg/subscription"
	"github.com/covergen/meterkit/pkg/tier"
	"github.com/covergen/meterkit/pkg/usage"
)

type brokenUsageStore struct{ err error }

func (s brokenUsageStore) Today(context.Context, usage.Identity, usage.GenerationType, time.Time) (int64, error) {
	return 0, s.err
}

func (s brokenUsageStore) MonthToDate(context.Context, usage.Identity, usage.GenerationType, time.Time) (int64, error) {
	return 0, s.err
}

func (s brokenUsageStore) Increment(context.Context, usage.Identity, usage.GenerationType, time.Time, int64) (int64, error) {
	return 0, s.err
}

func (s brokenUsageStore) MergeSession(context.Context, uuid.UUID, uuid.UUID) error {
	return s.err
}

type brokenSubStore struct{ err error }

func (s brokenSubStore) Get(context.Context, uuid.UUID) (*subscription.Record, error) {
	return nil, s.err
}

func (s brokenSubStore) Create(context.Context, *subscription.Record) error { return s.err }

func (s brokenSubStore) Update(context.Context, uuid.UUID, subscription.Patch) (*subscription.Record, error) {
	return nil, s.err
}

func (s brokenSubStore) Upsert(context.Context, *subscription.Record) (*subscription.Record, error) {
	return nil, s.err
}

func testGuard(t *testing.T, subStore subscription.Store, usageStore usage.Store) *limits.Guard {
	t.Helper()

	reg, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(plan.Defaults()))
	require.NoError(t, err)

	mgr := subscription.NewManager(subStore, reg)
	return limits.NewGuard(mgr, usage.NewService(usageStore), reg)
}

func TestGuardCanGenerate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("new user gets free limits", func(t *testing.T) {
		t.Parallel()

		g := testGuard(t, subscription.NewMemStore(), usage.NewMemStore())
		d := g.CanGenerate(ctx, uuid.New(), usage.GenerationImage)
		assert.True(t, d.Allowed)
		assert.Equal(t, limits.ReasonAllowed, d.Reason)
		assert.Equal(t, int64(3), d.Remaining)
	})

	t.Run("free user exhausts the day", func(t *testing.T) {
		t.Parallel()

		usageStore := usage.NewMemStore()
		g := testGuard(t, subscription.NewMemStore(), usageStore)
		userID := uuid.New()

		for i := 0; i < 3; i++ {
			_, err := usageStore.Increment(ctx, usage.UserIdentity(userID), usage.GenerationImage, time.Now(), 1)
			require.NoError(t, err)
		}

		d := g.CanGenerate(ctx, userID, usage.GenerationImage)
		assert.False(t, d.Allowed)
		assert.Equal(t, limits.ReasonDailyLimit, d.Reason)
	})

	t.Run("paid user survives a daily burst", func(t *testing.T) {
		t.Parallel()

		subStore := subscription.NewMemStore()
		usageStore := usage.NewMemStore()
		g := testGuard(t, subStore, usageStore)
		userID := uuid.New()

		require.NoError(t, subStore.Create(ctx, &subscription.Record{
			UserID: userID, Tier: tier.TierPro, Status: subscription.StatusActive,
			BillingCycle: tier.CycleMonthly,
		}))
		_, err := usageStore.Increment(ctx, usage.UserIdentity(userID), usage.GenerationImage, time.Now(), 50)
		require.NoError(t, err)

		d := g.CanGenerate(ctx, userID, usage.GenerationImage)
		assert.True(t, d.Allowed)
		assert.Equal(t, int64(70), d.Remaining)
	})

	t.Run("generation types meter separately", func(t *testing.T) {
		t.Parallel()

		usageStore := usage.NewMemStore()
		g := testGuard(t, subscription.NewMemStore(), usageStore)
		userID := uuid.New()

		_, err := usageStore.Increment(ctx, usage.UserIdentity(userID), usage.GenerationImage, time.Now(), 3)
		require.NoError(t, err)

		assert.False(t, g.CanGenerate(ctx, userID, usage.GenerationImage).Allowed)
		assert.True(t, g.CanGenerate(ctx, userID, usage.GenerationVideo).Allowed)
	})
}

func TestGuardFailsOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("subscription store down", func(t *testing.T) {
		t.Parallel()

		g := testGuard(t, brokenSubStore{err: errors.New("connection refused")}, usage.NewMemStore())
		d := g.CanGenerate(ctx, uuid.New(), usage.GenerationImage)
		assert.True(t, d.Allowed, "availability beats enforcement when state is unreadable")
		assert.Equal(t, limits.ReasonDegradedAllow, d.Reason)
	})

	t.Run("usage store down", func(t *testing.T) {
		t.Parallel()

		g := testGuard(t, subscription.NewMemStore(), brokenUsageStore{err: errors.New("connection refused")})
		d := g.CanGenerate(ctx, uuid.New(), usage.GenerationImage)
		assert.True(t, d.Allowed)
		assert.Equal(t, limits.ReasonDegradedAllow, d.Reason)
	})
}

func TestGuardAnonymous(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	usageStore := usage.NewMemStore()
	g := testGuard(t, subscription.NewMemStore(), usageStore)
	sessionID := uuid.New()

	// Sessions meter at free limits without any subscription record.
	d := g.CanGenerateAnonymous(ctx, sessionID, usage.GenerationImage)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(3), d.Remaining)

	_, err := usageStore.Increment(ctx, usage.SessionIdentity(sessionID), usage.GenerationImage, time.Now(), 3)
	require.NoError(t, err)

	d = g.CanGenerateAnonymous(ctx, sessionID, usage.GenerationImage)
	assert.False(t, d.Allowed)
	assert.Equal(t, limits.ReasonDailyLimit, d.Reason)
}
