package tier

import "strings"

// Tier represents a canonical subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierProPlus Tier = "pro_plus"
)

// BillingCycle represents the recurrence of a paid subscription.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
	// CycleNone is used for free subscriptions and for records where the
	// cycle was never stored.
	CycleNone BillingCycle = ""
)

// Normalized is the result of normalizing a raw tier/cycle pair.
type Normalized struct {
	Tier  Tier
	Cycle BillingCycle

	// WasNormalized is true when the input was not already in canonical
	// form, including the unrecognized-input fallback to TierFree.
	WasNormalized bool
}

// rank orders tiers for comparison. Higher rank means more entitlements.
var rank = map[Tier]int{
	TierFree:    0,
	TierPro:     1,
	TierProPlus: 2,
}

// IsPaid returns true for tiers that carry a credit grant and a billing cycle.
func (t Tier) IsPaid() bool {
	return t == TierPro || t == TierProPlus
}

// AtLeast reports whether t grants at least the entitlements of other.
func (t Tier) AtLeast(other Tier) bool {
	return rank[t] >= rank[other]
}

// tierAliases maps every known historical spelling to its canonical tier.
// Keys are lower-cased with spaces, dashes and plus signs stripped.
var tierAliases = map[string]Tier{
	"free":       TierFree,
	"basic":      TierFree,
	"trial":      TierFree,
	"pro":        TierPro,
	"premium":    TierPro,
	"proplus":    TierProPlus,
	"pro_plus":   TierProPlus,
	"platinum":   TierProPlus,
	"pro_yearly": TierPro,
}

var cycleAliases = map[string]BillingCycle{
	"monthly": CycleMonthly,
	"month":   CycleMonthly,
	"mo":      CycleMonthly,
	"yearly":  CycleYearly,
	"annual":  CycleYearly,
	"year":    CycleYearly,
	"yr":      CycleYearly,
}

// Normalize maps a raw stored tier string and optional billing-cycle hint to
// the canonical pair. It never fails: anything unrecognized degrades to
// TierFree/CycleNone with WasNormalized set.
//
// Idempotence holds by construction: canonical values are their own aliases.
func Normalize(rawTier, rawCycle string) Normalized {
	out := Normalized{Tier: TierFree, Cycle: CycleNone}

	key := foldKey(rawTier)
	if t, ok := tierAliases[key]; ok {
		out.Tier = t
		if string(t) != rawTier {
			out.WasNormalized = true
		}
	} else {
		out.WasNormalized = true
	}

	// Some legacy rows encoded the cycle inside the tier string
	// ("pro_yearly"); an explicit cycle hint wins over that.
	if strings.Contains(key, "yearly") || strings.Contains(key, "annual") {
		out.Cycle = CycleYearly
	}

	if rawCycle != "" {
		ck := foldKey(rawCycle)
		if c, ok := cycleAliases[ck]; ok {
			out.Cycle = c
			if string(c) != rawCycle {
				out.WasNormalized = true
			}
		} else {
			out.WasNormalized = true
		}
	}

	// Free subscriptions never carry a cycle.
	if !out.Tier.IsPaid() && out.Cycle != CycleNone {
		out.Cycle = CycleNone
		out.WasNormalized = true
	}

	return out
}

// foldKey collapses case, whitespace and separator variants so alias lookup
// only needs one spelling per tier.
func foldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "+", "plus")
	return s
}
