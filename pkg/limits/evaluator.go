package limits

import (
	"github.com/covergen/meterkit/pkg/plan"
	"github.com/covergen/meterkit/pkg/tier"
)

// Reason explains a limit decision.
type Reason string

const (
	ReasonAllowed       Reason = "allowed"
	ReasonDailyLimit    Reason = "daily_limit_reached"
	ReasonMonthlyLimit  Reason = "monthly_limit_reached"
	ReasonDegradedAllow Reason = "allowed_degraded" // fail-open after an internal error
)

// Decision is the outcome of a limit evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason

	// Limit and Remaining describe the binding constraint: the one that
	// denied, or the tightest one still open when allowed. Remaining is -1
	// when the binding constraint is unlimited.
	Limit     int64
	Remaining int64
}

// Snapshot is the input to an evaluation: the identity's resolved tier
// state plus its current counters.
type Snapshot struct {
	Tier        tier.Tier
	IsTrialing  bool
	Today       int64
	MonthToDate int64
}

// Evaluate applies the decision policy for one generation attempt.
//
// Free and trialing identities are checked against both the daily and the
// monthly limit; paid non-trial tiers against the monthly limit only, no
// matter how large today's count is.
func Evaluate(p plan.Plan, snap Snapshot) Decision {
	daily := p.DailyLimit
	monthly := p.MonthlyLimit
	if snap.IsTrialing {
		daily = p.TrialDailyLimit
		monthly = p.TrialTotalLimit()
	}

	checkDaily := snap.IsTrialing || !snap.Tier.IsPaid()

	if checkDaily && daily != plan.Unlimited && snap.Today >= daily {
		return Decision{Allowed: false, Reason: ReasonDailyLimit, Limit: daily, Remaining: 0}
	}
	if monthly != plan.Unlimited && snap.MonthToDate >= monthly {
		return Decision{Allowed: false, Reason: ReasonMonthlyLimit, Limit: monthly, Remaining: 0}
	}

	d := Decision{Allowed: true, Reason: ReasonAllowed, Limit: plan.Unlimited, Remaining: plan.Unlimited}

	// Report the tightest open constraint for quota displays.
	if checkDaily && daily != plan.Unlimited {
		d.Limit, d.Remaining = daily, daily-snap.Today
	}
	if monthly != plan.Unlimited {
		if remaining := monthly - snap.MonthToDate; d.Remaining == plan.Unlimited || remaining < d.Remaining {
			d.Limit, d.Remaining = monthly, remaining
		}
	}
	return d
}
