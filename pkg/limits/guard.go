package limits

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/covergen/meterkit/pkg/plan"
	"github.com/covergen/meterkit/pkg/subscription"
	"github.com/covergen/meterkit/pkg/tier"
	"github.com/covergen/meterkit/pkg/usage"
)

// Guard answers "can this identity generate right now". It reads the
// subscription state and usage counters and runs the evaluator, failing
// open on every internal error: quota enforcement is best-effort by policy,
// availability wins.
type Guard struct {
	subs  *subscription.Manager
	usage *usage.Service
	plans *plan.Registry
	log   *slog.Logger
}

type GuardOption func(*Guard)

func WithGuardLogger(log *slog.Logger) GuardOption {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

func NewGuard(subs *subscription.Manager, usageSvc *usage.Service, plans *plan.Registry, opts ...GuardOption) *Guard {
	if subs == nil {
		panic("limits: subscription.Manager is required")
	}
	if usageSvc == nil {
		panic("limits: usage.Service is required")
	}
	if plans == nil {
		panic("limits: plan.Registry is required")
	}

	g := &Guard{
		subs:  subs,
		usage: usageSvc,
		plans: plans,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanGenerate evaluates a user's quota for one generation attempt. Any
// failure to resolve the subscription degrades to an allow with a logged
// warning; the decision carries ReasonDegradedAllow so tests and callers
// can tell a real allow from a fail-open one.
func (g *Guard) CanGenerate(ctx context.Context, userID uuid.UUID, gt usage.GenerationType) Decision {
	view, err := g.subs.GetStatus(ctx, userID)
	if err != nil {
		g.log.WarnContext(ctx, "limit check degraded to allow: subscription unavailable",
			"user_id", userID, "type", gt, "error", err)
		return Decision{Allowed: true, Reason: ReasonDegradedAllow, Limit: plan.Unlimited, Remaining: plan.Unlimited}
	}

	return g.evaluate(ctx, usage.UserIdentity(userID), view.Record.Tier, view.IsTrialing, gt)
}

// CanGenerateAnonymous evaluates a pre-signup session, which always meters
// at free-tier limits.
func (g *Guard) CanGenerateAnonymous(ctx context.Context, sessionID uuid.UUID, gt usage.GenerationType) Decision {
	return g.evaluate(ctx, usage.SessionIdentity(sessionID), tier.TierFree, false, gt)
}

func (g *Guard) evaluate(ctx context.Context, id usage.Identity, t tier.Tier, trialing bool, gt usage.GenerationType) Decision {
	pl, known := g.plans.Get(t)
	if !known {
		g.log.WarnContext(ctx, "unknown tier evaluated with free limits",
			"identity", id.ID, "tier", t)
	}

	today, todayDegraded := g.usage.Today(ctx, id, gt)
	month, monthDegraded := g.usage.MonthToDate(ctx, id, gt)

	d := Evaluate(pl, Snapshot{
		Tier:        t,
		IsTrialing:  trialing,
		Today:       today,
		MonthToDate: month,
	})

	// A degraded counter read means the evaluation ran on zeros; mark the
	// allow as fail-open rather than pretending the quota was verified.
	if d.Allowed && (todayDegraded || monthDegraded) {
		d.Reason = ReasonDegradedAllow
	}
	return d
}
