// Package plan holds the static configuration table mapping a subscription
// tier and billing cycle to its generation limits and credit grant.
//
// The engine never computes these numbers; it only looks them up. Plans are
// loaded once at startup through a Source and validated; lookups for unknown
// tiers fall back to the free plan so a bad row can never unlock paid limits.
package plan
