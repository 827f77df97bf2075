package subscription

import (
	"context"

	"github.com/google/uuid"

	"github.com/covergen/meterkit/pkg/usage"
)

// StatusView is the read-model combining the raw record with derived fields
// the application renders from.
type StatusView struct {
	Record *Record

	IsTrialing         bool
	TrialDaysRemaining int

	// Limits applicable right now: trial limits while trialing, the plan's
	// regular limits otherwise.
	DailyLimit   int64
	MonthlyLimit int64

	HasPaymentMethod bool
	// RequiresPaymentSetup is set while trialing without a provider
	// subscription attached yet.
	RequiresPaymentSetup bool

	// UsageToday is today's image generation count. UsageDegraded marks it
	// as a zero fallback after a store error or a missing user row.
	UsageToday    int64
	UsageDegraded bool
}

// GetStatus builds the status view, lazily creating the default free record
// on first access. Usage reads degrade to zero rather than failing the view.
func (m *Manager) GetStatus(ctx context.Context, userID uuid.UUID) (*StatusView, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}

	rec, err := m.ensure(ctx, userID)
	if err != nil {
		return nil, err
	}

	pl, known := m.plans.Get(rec.Tier)
	if !known {
		m.log.WarnContext(ctx, "no plan configured for tier, using free limits",
			"user_id", userID, "tier", rec.Tier)
	}

	view := &StatusView{
		Record:               rec,
		IsTrialing:           rec.IsTrialing(),
		TrialDaysRemaining:   rec.TrialDaysRemainingAt(m.now().UTC()),
		HasPaymentMethod:     rec.ProviderPaymentMethodID != "",
		RequiresPaymentSetup: rec.IsTrialing() && rec.ProviderSubscriptionID == "",
	}

	if view.IsTrialing {
		view.DailyLimit = pl.TrialDailyLimit
		view.MonthlyLimit = pl.TrialTotalLimit()
	} else {
		view.DailyLimit = pl.DailyLimit
		view.MonthlyLimit = pl.MonthlyLimit
	}

	view.UsageToday, view.UsageDegraded = m.usageToday(ctx, userID)
	return view, nil
}

// usageToday reads today's image count fail-open: a missing user row or any
// store error yields 0 with the degraded flag set.
func (m *Manager) usageToday(ctx context.Context, userID uuid.UUID) (int64, bool) {
	if m.usage == nil {
		return 0, false
	}

	if m.directory != nil {
		exists, err := m.directory.Exists(ctx, userID)
		if err != nil {
			m.log.WarnContext(ctx, "user existence check failed, usage degraded to zero",
				"user_id", userID, "error", err)
			return 0, true
		}
		if !exists {
			return 0, true
		}
	}

	return m.usage.Today(ctx, usage.UserIdentity(userID), usage.GenerationImage)
}
