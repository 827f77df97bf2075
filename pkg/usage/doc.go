// Package usage meters generations per identity, day and generation type.
//
// An identity is either a permanent user or an ephemeral pre-signup session;
// counters are keyed the same way for both so session usage can be folded
// into the user's counters at signup with a single atomic merge.
//
// Counters are best-effort by policy: reads degrade to zero on store errors
// (the Service surfaces that with an explicit degraded flag rather than
// hiding it), while writes go through an atomic increment-or-insert
// primitive so concurrent generations cannot lose increments.
package usage
