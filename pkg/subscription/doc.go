// Package subscription owns the per-user subscription record and the
// lifecycle transitions driven by payment-provider webhooks.
//
// Each user has exactly one record, keyed on user id and created lazily on
// first access. Writes come from two directions: partial updates from the
// application (only fields present in the patch are touched) and full
// upserts from the webhook handler (insert-or-replace on conflict, so
// duplicate delivery cannot produce duplicate rows).
//
// A transition to a paid tier with active status triggers an automatic
// credit grant through the ledger. The grant is idempotent per provider
// event and its failure never fails the subscription write; it is logged at
// the manual-follow-up severity instead, because a half-applied subscription
// is worse than credits reconciled out-of-band.
//
// After every upsert the record is mirrored into a consolidated legacy view.
// The mirror is best-effort: failures are logged and swallowed.
package subscription
