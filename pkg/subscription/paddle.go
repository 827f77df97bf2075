package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
}

// PaddleProvider verifies and normalizes Paddle webhook payloads. The
// engine never calls Paddle's API; the provider is consumed purely through
// its signed webhooks.
type PaddleProvider struct {
	verifier *paddle.WebhookVerifier
}

func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.WebhookSecret == "" {
		return nil, errors.New("paddle webhook secret is required")
	}
	return &PaddleProvider{verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret)}, nil
}

// ParseWebhook validates the signature and maps the payload into a
// normalized Event. Missing or renamed fields are tolerated: the event is
// returned with whatever could be read, and the handler decides what to do
// with the gaps.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	// The SDK verifier works on http.Request, so wrap the raw payload.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var envelope struct {
		EventID   string         `json:"event_id"`
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	event := &Event{
		ID:            envelope.EventID,
		Kind:          mapPaddleEventKind(envelope.EventType),
		ProviderEvent: envelope.EventType,
		Raw:           envelope.Data,
	}

	data := envelope.Data
	event.SubscriptionID = stringField(data, "id")
	if subID := stringField(data, "subscription_id"); subID != "" {
		// Transaction events reference the subscription indirectly.
		event.SubscriptionID = subID
	}
	event.CustomerID = stringField(data, "customer_id")
	event.Status = stringField(data, "status")

	if custom, ok := data["custom_data"].(map[string]any); ok {
		if raw := stringField(custom, "user_id"); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				event.UserID = id
			}
		}
		event.Tier = stringField(custom, "tier")
		event.Cycle = stringField(custom, "billing_cycle")
	}

	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				event.PriceID = stringField(price, "id")
			}
			if event.PriceID == "" {
				event.PriceID = stringField(item, "price_id")
			}
		}
	}

	if period, ok := data["current_billing_period"].(map[string]any); ok {
		event.PeriodStart = timeField(period, "starts_at")
		event.PeriodEnd = timeField(period, "ends_at")
	}
	if trialDates, ok := data["trial_dates"].(map[string]any); ok {
		event.TrialStart = timeField(trialDates, "starts_at")
		event.TrialEnd = timeField(trialDates, "ends_at")
	}

	if sc, ok := data["scheduled_change"].(map[string]any); ok {
		if action := stringField(sc, "action"); action == "cancel" {
			t := true
			event.CancelAtPeriodEnd = &t
		}
	}

	return event, nil
}

// mapPaddleEventKind maps Paddle event names to normalized kinds. Unmapped
// names come back as EventUnknown, which the handler acknowledges and drops.
func mapPaddleEventKind(name string) EventKind {
	switch name {
	case "transaction.completed":
		return EventCheckoutCompleted
	case "subscription.created":
		return EventSubCreated
	case "subscription.updated", "subscription.resumed":
		return EventSubUpdated
	case "subscription.canceled":
		return EventSubCancelled
	case "subscription.past_due":
		return EventSubUpdated
	case "subscription.paused":
		return EventSubPaused
	case "subscription.trialing":
		return EventSubUpdated
	case "subscription.activated":
		// Paddle has no dedicated trial-completion event; activation is
		// how it signals a trial converting (or a first payment landing).
		return EventSubTrialEnded
	case "transaction.paid", "transaction.payment_succeeded":
		return EventSubPaid
	case "adjustment.created":
		return EventRefundCreated
	default:
		if strings.HasPrefix(name, "subscription.trial") {
			return EventSubTrialWillEnd
		}
		return EventUnknown
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func timeField(m map[string]any, key string) *time.Time {
	raw, _ := m[key].(string)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
