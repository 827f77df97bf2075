package subscription

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/covergen/meterkit/pkg/credits"
	"github.com/covergen/meterkit/pkg/plan"
	"github.com/covergen/meterkit/pkg/tier"
	"github.com/covergen/meterkit/pkg/usage"
)

// Manager owns subscription records: lazy creation, partial updates,
// webhook-driven upserts, the derived status view and the automatic credit
// grant on paid activation.
type Manager struct {
	store     Store
	mirror    MirrorStore
	ledger    credits.Ledger
	mapper    credits.IdentityMapper
	plans     *plan.Registry
	usage     *usage.Service
	directory Directory
	log       *slog.Logger
	now       func() time.Time
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*Manager)

// WithMirror enables the best-effort consolidated-view sync after upserts.
func WithMirror(m MirrorStore) ManagerOption {
	return func(mgr *Manager) { mgr.mirror = m }
}

// WithLedger enables automatic credit grants on paid activation/renewal.
func WithLedger(l credits.Ledger) ManagerOption {
	return func(mgr *Manager) { mgr.ledger = l }
}

// WithIdentityMapper routes grants through the cross-system id mapping.
// Without it the engine's user id is used as the ledger user id directly.
func WithIdentityMapper(m credits.IdentityMapper) ManagerOption {
	return func(mgr *Manager) { mgr.mapper = m }
}

// WithUsage enables the usageToday field on the status view.
func WithUsage(u *usage.Service) ManagerOption {
	return func(mgr *Manager) { mgr.usage = u }
}

// WithDirectory enables the defensive user-existence check before usage
// reads in the status view.
func WithDirectory(d Directory) ManagerOption {
	return func(mgr *Manager) { mgr.directory = d }
}

func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(mgr *Manager) {
		if log != nil {
			mgr.log = log
		}
	}
}

// WithManagerClock overrides the time source for tests.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(mgr *Manager) {
		if now != nil {
			mgr.now = now
		}
	}
}

func NewManager(store Store, plans *plan.Registry, opts ...ManagerOption) *Manager {
	if store == nil {
		panic("subscription: Store is required")
	}
	if plans == nil {
		panic("subscription: plan.Registry is required")
	}

	m := &Manager{
		store: store,
		plans: plans,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindByUserID returns the user's record or ErrRecordNotFound.
func (m *Manager) FindByUserID(ctx context.Context, userID uuid.UUID) (*Record, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	return m.store.Get(ctx, userID)
}

// Create inserts a record, defaulting to a free active subscription when
// tier or status are unset.
func (m *Manager) Create(ctx context.Context, rec *Record) (*Record, error) {
	if rec.UserID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if rec.Tier == "" {
		rec.Tier = tier.TierFree
	}
	if rec.Status == "" {
		rec.Status = StatusActive
	}

	if err := m.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ensure returns the user's record, lazily creating the free/active default.
// Concurrent first access races are resolved by re-reading on duplicate.
func (m *Manager) ensure(ctx context.Context, userID uuid.UUID) (*Record, error) {
	rec, err := m.store.Get(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	rec = &Record{UserID: userID, Tier: tier.TierFree, Status: StatusActive}
	if err := m.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrRecordAlreadyExists) {
			return m.store.Get(ctx, userID)
		}
		return nil, err
	}
	return rec, nil
}

// WriteOption annotates Update/Upsert calls with webhook context.
type WriteOption func(*writeOpts)

type writeOpts struct {
	providerEventID string
}

// WithProviderEventID attaches the provider's event or invoice id, which
// becomes the idempotency key for any credit grant the write triggers.
func WithProviderEventID(id string) WriteOption {
	return func(o *writeOpts) { o.providerEventID = id }
}

// Update applies a partial patch. Tier changes are audited into the upgrade
// history, and a transition onto a paid active subscription grants credits.
func (m *Manager) Update(ctx context.Context, userID uuid.UUID, patch Patch, opts ...WriteOption) (*Record, error) {
	var wo writeOpts
	for _, opt := range opts {
		opt(&wo)
	}

	prior, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.Tier != nil {
		norm := tier.Normalize(string(*patch.Tier), "")
		if norm.WasNormalized {
			m.log.WarnContext(ctx, "non-canonical tier in update patch",
				"user_id", userID, "raw_tier", *patch.Tier, "tier", norm.Tier)
		}
		patch.Tier = Ptr(norm.Tier)

		if *patch.Tier != prior.Tier {
			patch.PreviousTier = Ptr(prior.Tier)
			history := slices.Clone(prior.UpgradeHistory)
			patch.UpgradeHistory = append(history, UpgradeEvent{
				From: prior.Tier, To: *patch.Tier, At: m.now().UTC(),
			})
		}
	}

	if patch.Status != nil && !CanTransition(prior.Status, *patch.Status) {
		m.log.WarnContext(ctx, "unexpected subscription status transition",
			"user_id", userID, "from", prior.Status, "to", *patch.Status)
	}

	rec, err := m.store.Update(ctx, userID, patch)
	if err != nil {
		return nil, err
	}

	m.maybeGrant(ctx, prior, rec, wo.providerEventID, false)
	return rec, nil
}

// Upsert inserts or replaces the record, normalizing tier and cycle on the
// way in. Used by the webhook handler; duplicate delivery converges on the
// same row and, via the grant idempotency key, on a single grant.
func (m *Manager) Upsert(ctx context.Context, rec *Record, opts ...WriteOption) (*Record, error) {
	if rec.UserID == uuid.Nil {
		return nil, ErrEmptyUserID
	}

	var wo writeOpts
	for _, opt := range opts {
		opt(&wo)
	}

	norm := tier.Normalize(string(rec.Tier), string(rec.BillingCycle))
	if norm.WasNormalized {
		m.log.WarnContext(ctx, "non-canonical tier/cycle in upsert",
			"user_id", rec.UserID, "raw_tier", rec.Tier, "raw_cycle", rec.BillingCycle,
			"tier", norm.Tier, "cycle", norm.Cycle)
	}
	rec.Tier = norm.Tier
	rec.BillingCycle = norm.Cycle

	prior, err := m.store.Get(ctx, rec.UserID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	if prior != nil && prior.Tier != rec.Tier {
		rec.PreviousTier = prior.Tier
		rec.UpgradeHistory = append(slices.Clone(prior.UpgradeHistory), UpgradeEvent{
			From: prior.Tier, To: rec.Tier, At: m.now().UTC(),
		})
	} else if prior != nil && rec.UpgradeHistory == nil {
		rec.UpgradeHistory = prior.UpgradeHistory
	}

	out, err := m.store.Upsert(ctx, rec)
	if err != nil {
		return nil, err
	}

	// The consolidated view is a legacy read path; failing to refresh it
	// must not fail the upsert.
	if m.mirror != nil {
		if err := m.mirror.Sync(ctx, out); err != nil {
			m.log.ErrorContext(ctx, "subscription mirror sync failed",
				"user_id", out.UserID, "error", err)
		}
	}

	m.maybeGrant(ctx, prior, out, wo.providerEventID, false)
	return out, nil
}

// RecordRenewal marks a paid invoice: bumps lastRenewedAt and grants the
// period's credits, deduplicated on the provider event id.
func (m *Manager) RecordRenewal(ctx context.Context, userID uuid.UUID, opts ...WriteOption) (*Record, error) {
	var wo writeOpts
	for _, opt := range opts {
		opt(&wo)
	}

	rec, err := m.store.Update(ctx, userID, Patch{LastRenewedAt: Ptr(m.now().UTC())})
	if err != nil {
		return nil, err
	}

	m.maybeGrant(ctx, nil, rec, wo.providerEventID, true)
	return rec, nil
}

// maybeGrant runs the automatic credit grant after a write. Renewals grant
// on every invoice; other writes grant only when the record newly became
// paid and active. Every failure path here logs and returns: a grant
// problem is reconciled out-of-band, never by failing the subscription
// write that triggered it.
func (m *Manager) maybeGrant(ctx context.Context, prior, rec *Record, providerEventID string, renewal bool) {
	if m.ledger == nil || !rec.IsPaidActive() {
		return
	}
	if !renewal && prior != nil && prior.IsPaidActive() && prior.Tier == rec.Tier {
		return
	}

	pl, _ := m.plans.Get(rec.Tier)
	cycle := rec.BillingCycle
	if cycle == tier.CycleNone {
		m.log.WarnContext(ctx, "paid subscription without billing cycle, assuming monthly",
			"user_id", rec.UserID, "tier", rec.Tier)
		cycle = tier.CycleMonthly
	}

	amount := pl.CreditsFor(cycle)
	if amount <= 0 {
		m.log.WarnContext(ctx, "no credit grant configured for tier/cycle",
			"user_id", rec.UserID, "tier", rec.Tier, "cycle", cycle)
		return
	}

	ledgerUserID := rec.UserID
	if m.mapper != nil {
		mapped, err := m.mapper.LedgerUserID(ctx, rec.UserID)
		if err != nil {
			// Manual follow-up: the subscription write already succeeded
			// and must stay that way.
			m.log.ErrorContext(ctx, "MANUAL FIX REQUIRED: cannot resolve ledger identity for credit grant",
				"user_id", rec.UserID, "tier", rec.Tier, "cycle", cycle,
				"amount", amount, "provider_event_id", providerEventID, "error", err)
			return
		}
		ledgerUserID = mapped
	}

	grantType := credits.TypeSubscriptionGrant
	description := "subscription activation"
	if renewal {
		description = "subscription renewal"
	}

	_, err := m.ledger.Grant(ctx, credits.GrantParams{
		UserID:          ledgerUserID,
		Amount:          amount,
		Type:            grantType,
		Description:     description,
		SubscriptionID:  rec.ProviderSubscriptionID,
		ProviderEventID: providerEventID,
		Metadata: map[string]any{
			"tier":  string(rec.Tier),
			"cycle": string(cycle),
		},
	})
	switch {
	case err == nil:
		m.log.InfoContext(ctx, "subscription credits granted",
			"user_id", rec.UserID, "tier", rec.Tier, "cycle", cycle, "amount", amount)
	case errors.Is(err, credits.ErrDuplicateGrant):
		// Redelivered webhook; the first delivery already granted.
		m.log.InfoContext(ctx, "duplicate credit grant suppressed",
			"user_id", rec.UserID, "provider_event_id", providerEventID)
	default:
		m.log.ErrorContext(ctx, "MANUAL FIX REQUIRED: credit grant failed after paid activation",
			"user_id", rec.UserID, "tier", rec.Tier, "cycle", cycle,
			"amount", amount, "provider_event_id", providerEventID, "error", err)
	}
}
