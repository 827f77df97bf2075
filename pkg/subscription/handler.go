package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/covergen/meterkit/pkg/tier"
)

// Handler translates normalized provider events into Manager calls. Each
// branch is a pure function of the event payload; no branch assumes it saw
// an earlier event, so duplicate and out-of-order delivery stay harmless.
// Events the engine doesn't act on (trial reminders, refunds, disputes) are
// acknowledged with a log line so the provider stops redelivering them.
type Handler struct {
	manager *Manager
	log     *slog.Logger
	now     func() time.Time
}

type HandlerOption func(*Handler)

func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandler(manager *Manager, opts ...HandlerOption) *Handler {
	if manager == nil {
		panic("subscription: Manager is required")
	}

	h := &Handler{
		manager: manager,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleEvent dispatches one provider event. Unknown kinds and events
// missing a user id are logged and dropped, never errors; the provider
// retrying them would change nothing.
func (h *Handler) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}

	if event.UserID == uuid.Nil {
		h.log.WarnContext(ctx, "webhook event without user id dropped",
			"kind", event.Kind, "provider_event", event.ProviderEvent, "event_id", event.ID)
		return nil
	}

	log := h.log.With("user_id", event.UserID, "kind", event.Kind, "event_id", event.ID)

	switch event.Kind {
	case EventCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)

	case EventSubCreated, EventSubUpdated:
		return h.handleSubscriptionUpsert(ctx, event)

	case EventSubCancelled:
		return h.setStatus(ctx, event, StatusCancelled)

	case EventSubExpired:
		return h.setStatus(ctx, event, StatusExpired)

	case EventSubTrialWillEnd:
		// Notification-only: reminder dispatch belongs to the email
		// collaborator, no state changes here.
		log.InfoContext(ctx, "trial ending soon, no state change")
		return nil

	case EventSubTrialEnded:
		return h.handleTrialEnded(ctx, event)

	case EventSubPaid:
		_, err := h.manager.RecordRenewal(ctx, event.UserID, WithProviderEventID(event.ID))
		return err

	case EventSubPaused:
		return h.setStatus(ctx, event, StatusPaused)

	case EventRefundCreated, EventDisputeCreated:
		// Financial reversal is out of scope; surfaced for humans only.
		log.WarnContext(ctx, "refund/dispute event received, no automatic credit reversal")
		return nil

	default:
		log.InfoContext(ctx, "unhandled webhook event kind ignored",
			"provider_event", event.ProviderEvent)
		return nil
	}
}

// handleCheckoutCompleted attaches the provider linkage and tier chosen at
// checkout. The record may not exist yet for first-time buyers.
func (h *Handler) handleCheckoutCompleted(ctx context.Context, event *Event) error {
	norm := tier.Normalize(event.Tier, event.Cycle)

	rec, err := h.manager.ensure(ctx, event.UserID)
	if err != nil {
		return err
	}

	patch := Patch{
		Tier:                   Ptr(norm.Tier),
		BillingCycle:           Ptr(norm.Cycle),
		ProviderCustomerID:     Ptr(event.CustomerID),
		ProviderSubscriptionID: Ptr(event.SubscriptionID),
	}
	if event.PriceID != "" {
		patch.ProviderPriceID = Ptr(event.PriceID)
	}
	if event.PaymentMethodID != "" {
		patch.ProviderPaymentMethodID = Ptr(event.PaymentMethodID)
	}
	if status := mapEventStatus(event.Status); status != "" {
		patch.Status = Ptr(status)
	}

	_, err = h.manager.Update(ctx, rec.UserID, patch, WithProviderEventID(event.ID))
	return err
}

// handleSubscriptionUpsert rebuilds the full record from the event payload.
func (h *Handler) handleSubscriptionUpsert(ctx context.Context, event *Event) error {
	status := mapEventStatus(event.Status)
	if status == "" {
		status = StatusActive
	}

	rec := &Record{
		UserID:                 event.UserID,
		Tier:                   tier.Tier(event.Tier),
		BillingCycle:           tier.BillingCycle(event.Cycle),
		Status:                 status,
		ProviderCustomerID:     event.CustomerID,
		ProviderSubscriptionID: event.SubscriptionID,
		ProviderPriceID:        event.PriceID,
		CurrentPeriodStart:     event.PeriodStart,
		CurrentPeriodEnd:       event.PeriodEnd,
		TrialStartedAt:         event.TrialStart,
		TrialEndsAt:            event.TrialEnd,
	}
	if event.PaymentMethodID != "" {
		rec.ProviderPaymentMethodID = event.PaymentMethodID
	}
	if event.CancelAtPeriodEnd != nil {
		rec.CancelAtPeriodEnd = *event.CancelAtPeriodEnd
	}
	if event.Raw != nil {
		rec.Metadata = map[string]any{"provider_event": event.ProviderEvent}
	}

	_, err := h.manager.Upsert(ctx, rec, WithProviderEventID(event.ID))
	return err
}

// handleTrialEnded converts a trial: to active when the provider reports a
// healthy status, to expired when it reports the trial lapsed unpaid.
func (h *Handler) handleTrialEnded(ctx context.Context, event *Event) error {
	target := StatusActive
	if s := mapEventStatus(event.Status); s == StatusExpired || s == StatusCancelled || s == StatusPastDue {
		target = s
	}
	return h.setStatus(ctx, event, target)
}

func (h *Handler) setStatus(ctx context.Context, event *Event, status Status) error {
	patch := Patch{Status: Ptr(status)}
	if status == StatusCancelled {
		patch.CancelledAt = Ptr(h.now().UTC())
	}
	if event.CancelAtPeriodEnd != nil {
		patch.CancelAtPeriodEnd = event.CancelAtPeriodEnd
	}
	if event.PeriodEnd != nil {
		patch.CurrentPeriodEnd = event.PeriodEnd
	}

	_, err := h.manager.Update(ctx, event.UserID, patch, WithProviderEventID(event.ID))
	return err
}

// mapEventStatus maps raw provider status strings into the engine's status
// set, returning "" for anything unrecognized so callers pick their own
// default instead of persisting junk.
func mapEventStatus(raw string) Status {
	switch Status(raw) {
	case StatusPending, StatusTrialing, StatusActive, StatusPastDue,
		StatusCancelled, StatusExpired, StatusPaused:
		return Status(raw)
	case "":
		return ""
	}

	switch raw {
	case "canceled":
		return StatusCancelled
	case "on_trial", "in_trial":
		return StatusTrialing
	case "unpaid", "incomplete":
		return StatusPastDue
	default:
		return ""
	}
}
