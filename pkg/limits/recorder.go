package limits

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/covergen/meterkit/pkg/credits"
	"github.com/covergen/meterkit/pkg/subscription"
	"github.com/covergen/meterkit/pkg/usage"
)

// DefaultCosts is the credit price per generation type for paid subscribers.
var DefaultCosts = map[usage.GenerationType]int64{
	usage.GenerationImage: 1,
	usage.GenerationVideo: 5,
}

// Recorder completes a successful generation: it counts it in the usage
// store and, for paid-active subscribers, debits the generation's credit
// cost from the ledger. Everything here is best-effort: the generation
// already happened, so a metering or billing failure is logged for
// reconciliation instead of being surfaced as if the generation failed.
// Quota gates future generations through Guard; the ledger never does.
type Recorder struct {
	subs   *subscription.Manager
	usage  *usage.Service
	ledger credits.Ledger
	mapper credits.IdentityMapper
	costs  map[usage.GenerationType]int64
	log    *slog.Logger
}

type RecorderOption func(*Recorder)

func WithRecorderLogger(log *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if log != nil {
			r.log = log
		}
	}
}

// WithCosts overrides the per-type credit prices.
func WithCosts(costs map[usage.GenerationType]int64) RecorderOption {
	return func(r *Recorder) {
		if costs != nil {
			r.costs = costs
		}
	}
}

// WithRecorderIdentityMapper routes debits through the cross-system id
// mapping, matching how the manager routes grants.
func WithRecorderIdentityMapper(m credits.IdentityMapper) RecorderOption {
	return func(r *Recorder) { r.mapper = m }
}

func NewRecorder(subs *subscription.Manager, usageSvc *usage.Service, ledger credits.Ledger, opts ...RecorderOption) *Recorder {
	if subs == nil {
		panic("limits: subscription.Manager is required")
	}
	if usageSvc == nil {
		panic("limits: usage.Service is required")
	}
	if ledger == nil {
		panic("limits: credits.Ledger is required")
	}

	r := &Recorder{
		subs:   subs,
		usage:  usageSvc,
		ledger: ledger,
		costs:  DefaultCosts,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record registers one completed generation for a user and reports whether
// the usage counter took it. The debit half runs regardless of counter
// success: free and trialing records owe nothing, paid-active records owe
// the type's cost.
func (r *Recorder) Record(ctx context.Context, userID uuid.UUID, gt usage.GenerationType) bool {
	if userID == uuid.Nil {
		return false
	}

	counted := true
	if _, err := r.usage.Record(ctx, usage.UserIdentity(userID), gt); err != nil {
		counted = false
		r.log.ErrorContext(ctx, "generation not counted, quota may under-enforce",
			"user_id", userID, "type", gt, "error", err)
	}

	r.debit(ctx, userID, gt)
	return counted
}

// RecordAnonymous counts a pre-signup session generation. Sessions have no
// ledger account, so there is nothing to debit.
func (r *Recorder) RecordAnonymous(ctx context.Context, sessionID uuid.UUID, gt usage.GenerationType) bool {
	if sessionID == uuid.Nil {
		return false
	}

	if _, err := r.usage.Record(ctx, usage.SessionIdentity(sessionID), gt); err != nil {
		r.log.ErrorContext(ctx, "session generation not counted",
			"session_id", sessionID, "type", gt, "error", err)
		return false
	}
	return true
}

func (r *Recorder) debit(ctx context.Context, userID uuid.UUID, gt usage.GenerationType) {
	rec, err := r.subs.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, subscription.ErrRecordNotFound) {
			// No record yet means free tier; nothing owed.
			return
		}
		r.log.WarnContext(ctx, "subscription unavailable, generation not billed",
			"user_id", userID, "type", gt, "error", err)
		return
	}
	if !rec.IsPaidActive() {
		return
	}

	cost := r.costs[gt]
	if cost <= 0 {
		return
	}

	ledgerUserID := userID
	if r.mapper != nil {
		mapped, err := r.mapper.LedgerUserID(ctx, userID)
		if err != nil {
			r.log.ErrorContext(ctx, "MANUAL FIX REQUIRED: cannot resolve ledger identity for generation debit",
				"user_id", userID, "type", gt, "cost", cost, "error", err)
			return
		}
		ledgerUserID = mapped
	}

	_, err = r.ledger.Spend(ctx, credits.SpendParams{
		UserID:      ledgerUserID,
		Amount:      cost,
		Type:        credits.TypeGenerationCost,
		Description: "generation cost",
		Metadata:    map[string]any{"generation_type": string(gt)},
	})
	switch {
	case err == nil:
	case errors.Is(err, credits.ErrInsufficientBalance):
		// Quota, not balance, gates generation; an empty account just
		// stops accruing debt.
		r.log.WarnContext(ctx, "generation not debited, balance exhausted",
			"user_id", userID, "type", gt, "cost", cost)
	default:
		r.log.ErrorContext(ctx, "MANUAL FIX REQUIRED: generation debit failed",
			"user_id", userID, "type", gt, "cost", cost, "error", err)
	}
}
