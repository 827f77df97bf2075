package credits

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TypeSignupBonus       TransactionType = "signup_bonus"
	TypeSubscriptionGrant TransactionType = "subscription_grant"
	TypeGenerationCost    TransactionType = "generation_cost"
	TypeRefund            TransactionType = "refund"
	TypeManualAdjustment  TransactionType = "manual_adjustment"
)

// Transaction is one append-only ledger entry. Amount is signed: positive
// for grants, negative for spends. BalanceAfter is computed by the store in
// the same statement that moves the balance, so the sequence of BalanceAfter
// values always equals the running sum of Amount.
type Transaction struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Amount          int64
	BalanceAfter    int64
	Type            TransactionType
	SubscriptionID  string // provider subscription id, when the entry is tied to one
	ProviderEventID string // idempotency key for webhook-driven grants, empty otherwise
	Description     string
	Metadata        map[string]any
	CreatedAt       time.Time
}

// Balance is the derived account state for one user.
type Balance struct {
	Balance        int64
	LifetimeEarned int64
	LifetimeSpent  int64
}

// GrantParams describes a credit grant.
type GrantParams struct {
	UserID          uuid.UUID
	Amount          int64 // must be positive
	Type            TransactionType
	Description     string
	SubscriptionID  string
	ProviderEventID string // optional; enables duplicate-delivery dedup
	Metadata        map[string]any
}

// SpendParams describes a credit debit.
type SpendParams struct {
	UserID      uuid.UUID
	Amount      int64 // must be positive; recorded as a negative ledger amount
	Type        TransactionType
	Description string
	Metadata    map[string]any
}
