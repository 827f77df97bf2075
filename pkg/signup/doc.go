// Package signup holds the one-time reconciliation that runs when an
// anonymous session becomes a user: the session's usage counters are folded
// into the new user's. The merge can never block a signup.
package signup
