// Package credits implements the append-only credit ledger.
//
// Credits are money-equivalent, so this is the one place in the engine where
// lost updates are unacceptable: Grant and Spend execute as single
// database-level statements that move the balance and append the ledger row
// together. Everything the caller sees is derived from the ledger; balances
// are never set directly.
//
// Grants carry an optional provider event id. When set, a unique index makes
// redelivered webhooks collapse into ErrDuplicateGrant instead of a second
// grant.
package credits
