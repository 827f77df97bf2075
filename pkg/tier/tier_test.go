package tier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/covergen/meterkit/pkg/tier"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rawTier   string
		rawCycle  string
		wantTier  tier.Tier
		wantCycle tier.BillingCycle
		wantFlag  bool
	}{
		{"canonical free", "free", "", tier.TierFree, tier.CycleNone, false},
		{"canonical pro monthly", "pro", "monthly", tier.TierPro, tier.CycleMonthly, false},
		{"canonical pro_plus yearly", "pro_plus", "yearly", tier.TierProPlus, tier.CycleYearly, false},
		{"case variant", "Pro", "Monthly", tier.TierPro, tier.CycleMonthly, true},
		{"proplus alias", "proplus", "monthly", tier.TierProPlus, tier.CycleMonthly, true},
		{"plus sign alias", "pro+", "monthly", tier.TierProPlus, tier.CycleMonthly, true},
		{"premium alias", "premium", "", tier.TierPro, tier.CycleNone, true},
		{"cycle embedded in tier", "pro_yearly", "", tier.TierPro, tier.CycleYearly, true},
		{"explicit cycle wins", "pro_yearly", "monthly", tier.TierPro, tier.CycleMonthly, true},
		{"annual alias", "pro", "annual", tier.TierPro, tier.CycleYearly, true},
		{"whitespace", "  pro  ", "monthly", tier.TierPro, tier.CycleMonthly, true},
		{"unknown tier falls back to free", "enterprise", "", tier.TierFree, tier.CycleNone, true},
		{"empty input", "", "", tier.TierFree, tier.CycleNone, true},
		{"free never keeps a cycle", "free", "monthly", tier.TierFree, tier.CycleNone, true},
		{"unknown cycle flagged", "pro", "weekly", tier.TierPro, tier.CycleNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tier.Normalize(tt.rawTier, tt.rawCycle)
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantCycle, got.Cycle)
			assert.Equal(t, tt.wantFlag, got.WasNormalized)
		})
	}
}

// Normalizing a normalized result must be a fixpoint for every input.
func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []struct{ rawTier, rawCycle string }{
		{"free", ""}, {"Pro", "Monthly"}, {"proplus", "annual"},
		{"pro+", "yr"}, {"pro_yearly", ""}, {"enterprise", "weekly"},
		{"", ""}, {"PREMIUM", "MONTH"}, {"  pro plus  ", "year"},
	}

	for _, in := range inputs {
		first := tier.Normalize(in.rawTier, in.rawCycle)
		second := tier.Normalize(string(first.Tier), string(first.Cycle))

		assert.Equal(t, first.Tier, second.Tier, "tier not stable for %q", in.rawTier)
		assert.Equal(t, first.Cycle, second.Cycle, "cycle not stable for %q/%q", in.rawTier, in.rawCycle)
		assert.False(t, second.WasNormalized, "canonical form re-normalized for %q/%q", in.rawTier, in.rawCycle)
	}
}

func TestTierComparisons(t *testing.T) {
	t.Parallel()

	assert.False(t, tier.TierFree.IsPaid())
	assert.True(t, tier.TierPro.IsPaid())
	assert.True(t, tier.TierProPlus.IsPaid())

	assert.True(t, tier.TierProPlus.AtLeast(tier.TierPro))
	assert.True(t, tier.TierPro.AtLeast(tier.TierPro))
	assert.False(t, tier.TierFree.AtLeast(tier.TierPro))
}
