package subscription

import (
	"time"

	"github.com/covergen/meterkit/pkg/tier"
)

// Patch is a field-level partial update. Only non-nil fields are applied;
// absent fields are left untouched, never overwritten with zero values.
// The points fields are deliberately missing: balances move only through
// the credit ledger.
type Patch struct {
	Tier         *tier.Tier
	Status       *Status
	BillingCycle *tier.BillingCycle
	PreviousTier *tier.Tier

	ProviderCustomerID      *string
	ProviderSubscriptionID  *string
	ProviderPriceID         *string
	ProviderPaymentMethodID *string

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialStartedAt     *time.Time
	TrialEndsAt        *time.Time

	CancelAtPeriodEnd *bool
	CancelledAt       *time.Time

	ProrationAmount   *int64
	LastProrationDate *time.Time
	LastRenewedAt     *time.Time

	Metadata map[string]any // replaced wholesale when non-nil

	// UpgradeHistory replaces the record's history when non-nil. Set by the
	// manager when a tier change is detected, never by external callers.
	UpgradeHistory []UpgradeEvent
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Tier == nil && p.Status == nil && p.BillingCycle == nil &&
		p.PreviousTier == nil &&
		p.ProviderCustomerID == nil && p.ProviderSubscriptionID == nil &&
		p.ProviderPriceID == nil && p.ProviderPaymentMethodID == nil &&
		p.CurrentPeriodStart == nil && p.CurrentPeriodEnd == nil &&
		p.TrialStartedAt == nil && p.TrialEndsAt == nil &&
		p.CancelAtPeriodEnd == nil && p.CancelledAt == nil &&
		p.ProrationAmount == nil && p.LastProrationDate == nil &&
		p.LastRenewedAt == nil && p.Metadata == nil &&
		p.UpgradeHistory == nil
}

// apply copies the patch's present fields onto the record.
func (p Patch) apply(r *Record) {
	if p.Tier != nil {
		r.Tier = *p.Tier
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.BillingCycle != nil {
		r.BillingCycle = *p.BillingCycle
	}
	if p.PreviousTier != nil {
		r.PreviousTier = *p.PreviousTier
	}
	if p.ProviderCustomerID != nil {
		r.ProviderCustomerID = *p.ProviderCustomerID
	}
	if p.ProviderSubscriptionID != nil {
		r.ProviderSubscriptionID = *p.ProviderSubscriptionID
	}
	if p.ProviderPriceID != nil {
		r.ProviderPriceID = *p.ProviderPriceID
	}
	if p.ProviderPaymentMethodID != nil {
		r.ProviderPaymentMethodID = *p.ProviderPaymentMethodID
	}
	if p.CurrentPeriodStart != nil {
		r.CurrentPeriodStart = p.CurrentPeriodStart
	}
	if p.CurrentPeriodEnd != nil {
		r.CurrentPeriodEnd = p.CurrentPeriodEnd
	}
	if p.TrialStartedAt != nil {
		r.TrialStartedAt = p.TrialStartedAt
	}
	if p.TrialEndsAt != nil {
		r.TrialEndsAt = p.TrialEndsAt
	}
	if p.CancelAtPeriodEnd != nil {
		r.CancelAtPeriodEnd = *p.CancelAtPeriodEnd
	}
	if p.CancelledAt != nil {
		r.CancelledAt = p.CancelledAt
	}
	if p.ProrationAmount != nil {
		r.ProrationAmount = *p.ProrationAmount
	}
	if p.LastProrationDate != nil {
		r.LastProrationDate = p.LastProrationDate
	}
	if p.LastRenewedAt != nil {
		r.LastRenewedAt = p.LastRenewedAt
	}
	if p.Metadata != nil {
		r.Metadata = p.Metadata
	}
	if p.UpgradeHistory != nil {
		r.UpgradeHistory = p.UpgradeHistory
	}
}

// Ptr returns a pointer to v; keeps patch construction readable at call sites.
func Ptr[T any](v T) *T {
	return &v
}
