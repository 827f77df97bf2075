// Package tier defines the canonical subscription tiers and billing cycles
// and the single normalization point for raw tier strings.
//
// Stored tier values accumulated legacy spellings over time ("proplus",
// "pro+", case variants). Every component that needs to compare tiers must
// go through Normalize and compare the resulting Tier values; raw string
// comparison elsewhere is a bug.
//
// Normalize is pure, idempotent and never fails: unrecognized input maps to
// TierFree with the normalized flag set so callers can log a data-quality
// warning.
package tier
