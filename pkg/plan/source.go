package plan

import (
	"context"
	"sync"

	"github.com/covergen/meterkit/pkg/tier"
)

// Source defines how plans are loaded into the registry.
type Source interface {
	Load(ctx context.Context) (map[tier.Tier]Plan, error)
}

// inMemSource implements Source from a static plan map.
type inMemSource struct {
	mu    sync.RWMutex
	plans map[tier.Tier]Plan
}

// NewInMemSource returns an in-memory Source holding a deep copy of the given
// plans so later mutation of the argument cannot leak into the registry.
func NewInMemSource(plans map[tier.Tier]Plan) Source {
	cp := make(map[tier.Tier]Plan, len(plans))
	for t, p := range plans {
		cp[t] = p.clone()
	}
	return &inMemSource{plans: cp}
}

func (s *inMemSource) Load(ctx context.Context) (map[tier.Tier]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := make(map[tier.Tier]Plan, len(s.plans))
	for t, p := range s.plans {
		cp[t] = p.clone()
	}
	return cp, nil
}

// Defaults returns the production limit/credit table.
func Defaults() map[tier.Tier]Plan {
	return map[tier.Tier]Plan{
		tier.TierFree: {
			Tier:            tier.TierFree,
			DailyLimit:      3,
			MonthlyLimit:    10,
			TrialDailyLimit: 3,
			TrialDays:       0,
		},
		tier.TierPro: {
			Tier:            tier.TierPro,
			DailyLimit:      Unlimited,
			MonthlyLimit:    120,
			TrialDailyLimit: 4,
			TrialDays:       7,
			Credits: map[tier.BillingCycle]int64{
				tier.CycleMonthly: 800,
				tier.CycleYearly:  9600,
			},
		},
		tier.TierProPlus: {
			Tier:            tier.TierProPlus,
			DailyLimit:      Unlimited,
			MonthlyLimit:    300,
			TrialDailyLimit: 5,
			TrialDays:       7,
			Credits: map[tier.BillingCycle]int64{
				tier.CycleMonthly: 2000,
				tier.CycleYearly:  24000,
			},
		},
	}
}
