package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind is the normalized billing event type. Each provider adapter maps
// its own event names to these.
type EventKind string

const (
	EventCheckoutCompleted EventKind = "checkout_completed"
	EventSubCreated        EventKind = "subscription_created"
	EventSubUpdated        EventKind = "subscription_updated"
	EventSubCancelled      EventKind = "subscription_cancelled"
	EventSubExpired        EventKind = "subscription_expired"
	EventSubTrialWillEnd   EventKind = "subscription_trial_will_end"
	EventSubTrialEnded     EventKind = "subscription_trial_ended"
	EventSubPaid           EventKind = "subscription_paid"
	EventSubPaused         EventKind = "subscription_paused"
	EventRefundCreated     EventKind = "refund_created"
	EventDisputeCreated    EventKind = "dispute_created"
	EventUnknown           EventKind = "unknown"
)

// Event is a normalized provider webhook event. Fields the provider did not
// send stay zero and the handler tolerates that. Tier, Cycle and Status
// carry the provider's raw strings; normalization happens once, in the
// handler.
type Event struct {
	// ID is the provider's event/invoice id, used as the credit-grant
	// idempotency key. Empty disables dedup for that grant.
	ID            string
	Kind          EventKind
	ProviderEvent string // original provider event name, for logs

	UserID uuid.UUID // from event metadata; uuid.Nil when absent

	CustomerID      string
	SubscriptionID  string
	PriceID         string
	PaymentMethodID string

	Tier   string
	Cycle  string
	Status string

	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	TrialStart        *time.Time
	TrialEnd          *time.Time
	CancelAtPeriodEnd *bool

	Raw map[string]any
}

// Provider validates and parses raw webhook payloads into normalized events.
// Implementations must verify the signature before trusting the payload.
type Provider interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)
}
