package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/covergen/meterkit/pkg/tier"
)

// Status represents the current state of a subscription.
type Status string

const (
	StatusPending   Status = "pending"
	StatusTrialing  Status = "trialing"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusPaused    Status = "paused"
)

// transitions is the expected lifecycle. Webhooks are authoritative, so an
// out-of-table transition is applied anyway and logged as a data-quality
// warning rather than rejected; the table exists to surface provider
// misbehavior, not to block it.
var transitions = map[Status][]Status{
	StatusPending:   {StatusTrialing, StatusActive},
	StatusTrialing:  {StatusActive, StatusCancelled, StatusExpired, StatusPastDue},
	StatusActive:    {StatusActive, StatusPastDue, StatusCancelled, StatusPaused},
	StatusPastDue:   {StatusActive, StatusCancelled, StatusExpired},
	StatusPaused:    {StatusActive, StatusCancelled},
	StatusCancelled: {},
	StatusExpired:   {},
}

// CanTransition reports whether moving from one status to another follows
// the expected lifecycle.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpgradeEvent is one entry in a record's upgrade history.
type UpgradeEvent struct {
	From tier.Tier `json:"from"`
	To   tier.Tier `json:"to"`
	At   time.Time `json:"at"`
}

// Record is the authoritative per-user subscription row. Exactly one exists
// per user; the points fields are maintained by the credit ledger and must
// never be written directly by callers.
type Record struct {
	UserID       uuid.UUID
	Tier         tier.Tier
	Status       Status
	BillingCycle tier.BillingCycle
	PreviousTier tier.Tier

	// Opaque foreign keys into the payment provider; never interpreted here.
	ProviderCustomerID      string
	ProviderSubscriptionID  string
	ProviderPriceID         string
	ProviderPaymentMethodID string

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialStartedAt     *time.Time
	TrialEndsAt        *time.Time

	CancelAtPeriodEnd bool
	CancelledAt       *time.Time

	PointsBalance        int64
	PointsLifetimeEarned int64
	PointsLifetimeSpent  int64

	UpgradeHistory    []UpgradeEvent
	ProrationAmount   int64
	LastProrationDate *time.Time
	LastRenewedAt     *time.Time

	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) IsTrialing() bool {
	return r.Status == StatusTrialing
}

// IsPaidActive reports whether the record currently entitles the user to
// paid-tier credits and limits.
func (r *Record) IsPaidActive() bool {
	return r.Tier.IsPaid() && r.Status == StatusActive
}

// PeriodElapsedAt reports whether a cancel-at-period-end record has run out.
// There is no background sweep; expiry is evaluated lazily at read time.
func (r *Record) PeriodElapsedAt(now time.Time) bool {
	if !r.CancelAtPeriodEnd || r.CurrentPeriodEnd == nil {
		return false
	}
	return now.After(*r.CurrentPeriodEnd)
}

// TrialDaysRemainingAt returns whole days left in the trial at a fixed time,
// floored at 0. The fixed-time variant exists for tests.
func (r *Record) TrialDaysRemainingAt(now time.Time) int {
	if !r.IsTrialing() || r.TrialEndsAt == nil {
		return 0
	}

	remaining := r.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	days := int(remaining.Hours() / 24)
	if remaining > time.Duration(days)*24*time.Hour {
		days++ // ceil of partial days
	}
	return days
}

// TrialDaysRemaining returns whole days left in the trial, floored at 0.
func (r *Record) TrialDaysRemaining() int {
	return r.TrialDaysRemainingAt(time.Now().UTC())
}
