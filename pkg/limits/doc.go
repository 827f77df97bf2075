// Package limits decides whether a generation may proceed.
//
// The decision policy is deliberately asymmetric: free-tier and trialing
// identities must pass both the daily and the monthly check, while paid
// non-trial subscriptions are bounded only by the monthly cumulative count.
// Unknown tiers evaluate with free-tier limits.
//
// The Guard composes the evaluator with the subscription manager and usage
// service under the engine's fail-open policy: any internal error yields
// "allowed" with a logged warning, never a hard error to the end user.
package limits
