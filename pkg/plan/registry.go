package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/covergen/meterkit/pkg/tier"
)

// Registry is the read-only plan lookup used by the limit evaluator and the
// subscription manager. The underlying map is immutable after construction,
// which is what makes concurrent lookups safe.
type Registry struct {
	plans map[tier.Tier]Plan
}

// NewRegistry loads plans from the source and validates them.
func NewRegistry(ctx context.Context, src Source) (*Registry, error) {
	if src == nil {
		panic("plan: Source is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	return &Registry{plans: plans}, nil
}

// Get returns the plan for a tier, falling back to the free plan for any
// tier without configuration. The second result is false on fallback.
func (r *Registry) Get(t tier.Tier) (Plan, bool) {
	if p, ok := r.plans[t]; ok {
		return p, true
	}
	return r.plans[tier.TierFree], false
}

// validatePlans catches configuration mistakes at startup rather than at
// limit-check time.
func validatePlans(plans map[tier.Tier]Plan) error {
	if _, ok := plans[tier.TierFree]; !ok {
		return errors.Join(ErrInvalidPlanConfiguration,
			errors.New("free plan is required as the fallback"))
	}

	for t, p := range plans {
		if p.Tier != t {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan tier mismatch: map key %s != plan.Tier %s", t, p.Tier))
		}
		if p.TrialDays < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative trial days: %d", t, p.TrialDays))
		}
		if p.MonthlyLimit < Unlimited || p.DailyLimit < Unlimited || p.TrialDailyLimit < Unlimited {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has a limit below -1", t))
		}
		for cycle, credits := range p.Credits {
			if credits < 0 {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s grants negative credits for cycle %s", t, cycle))
			}
		}
	}
	return nil
}
