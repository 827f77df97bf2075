package plan

import (
	"maps"

	"github.com/covergen/meterkit/pkg/tier"
)

// Unlimited indicates no limit for a counter (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// Plan describes the limits and credit grant attached to one tier.
type Plan struct {
	Tier tier.Tier

	// DailyLimit and MonthlyLimit bound non-trial usage. For paid tiers only
	// MonthlyLimit is enforced; DailyLimit is kept for display purposes.
	DailyLimit   int64
	MonthlyLimit int64

	// TrialDailyLimit bounds each trial day; the whole trial is additionally
	// capped at TrialDailyLimit * TrialDays.
	TrialDailyLimit int64
	TrialDays       int

	// Credits granted on activation/renewal, keyed by billing cycle.
	// Free plans grant nothing and have no entry.
	Credits map[tier.BillingCycle]int64
}

// TrialTotalLimit returns the hard cap for the whole trial window. Plans
// without a bounded trial fall back to the regular monthly limit, so a
// record stuck in trialing status never escapes its monthly cap.
func (p Plan) TrialTotalLimit() int64 {
	if p.TrialDailyLimit == Unlimited || p.TrialDays <= 0 {
		return p.MonthlyLimit
	}
	return p.TrialDailyLimit * int64(p.TrialDays)
}

// CreditsFor returns the grant amount for a billing cycle, 0 when the plan
// has no grant configured for it.
func (p Plan) CreditsFor(cycle tier.BillingCycle) int64 {
	return p.Credits[cycle]
}

func (p Plan) clone() Plan {
	p.Credits = maps.Clone(p.Credits)
	return p
}
