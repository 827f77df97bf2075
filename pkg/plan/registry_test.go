package plan_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergen/meterkit/pkg/plan"
	"github.com/covergen/meterkit/pkg/tier"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	t.Run("loads defaults", func(t *testing.T) {
		t.Parallel()

		reg, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(plan.Defaults()))
		require.NoError(t, err)

		p, known := reg.Get(tier.TierPro)
		assert.True(t, known)
		assert.Equal(t, tier.TierPro, p.Tier)
		assert.Positive(t, p.CreditsFor(tier.CycleMonthly))
	})

	t.Run("requires free plan fallback", func(t *testing.T) {
		t.Parallel()

		plans := plan.Defaults()
		delete(plans, tier.TierFree)

		_, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(plans))
		assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)
	})

	t.Run("rejects negative trial days", func(t *testing.T) {
		t.Parallel()

		plans := plan.Defaults()
		p := plans[tier.TierPro]
		p.TrialDays = -1
		plans[tier.TierPro] = p

		_, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(plans))
		assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)
	})

	t.Run("unknown tier falls back to free", func(t *testing.T) {
		t.Parallel()

		reg, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(plan.Defaults()))
		require.NoError(t, err)

		p, known := reg.Get(tier.Tier("enterprise"))
		assert.False(t, known)
		assert.Equal(t, tier.TierFree, p.Tier)
	})
}

func TestTrialTotalLimit(t *testing.T) {
	t.Parallel()

	p := plan.Plan{Tier: tier.TierPro, MonthlyLimit: 120, TrialDailyLimit: 5, TrialDays: 7}
	assert.Equal(t, int64(35), p.TrialTotalLimit())

	// No bounded trial window: the regular monthly limit still binds.
	p.TrialDays = 0
	assert.Equal(t, int64(120), p.TrialTotalLimit())

	p = plan.Plan{Tier: tier.TierPro, MonthlyLimit: 120, TrialDailyLimit: plan.Unlimited, TrialDays: 7}
	assert.Equal(t, int64(120), p.TrialTotalLimit())

	free := plan.Defaults()[tier.TierFree]
	assert.Equal(t, free.MonthlyLimit, free.TrialTotalLimit())
}

func TestInMemSourceIsolation(t *testing.T) {
	t.Parallel()

	plans := plan.Defaults()
	src := plan.NewInMemSource(plans)

	// Mutating the original map after construction must not leak through.
	plans[tier.TierPro] = plan.Plan{Tier: tier.TierPro, MonthlyLimit: 1}

	loaded, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, int64(1), loaded[tier.TierPro].MonthlyLimit)
}
