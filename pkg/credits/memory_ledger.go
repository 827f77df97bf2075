package credits

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemLedger is an in-memory Ledger for tests. It enforces the same contract
// as PGLedger: atomic balance+log mutation under one lock, no negative
// balances, provider-event dedup.
type MemLedger struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Balance
	ledger   map[uuid.UUID][]Transaction
	events   map[uuid.UUID]map[string]struct{}
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		accounts: make(map[uuid.UUID]*Balance),
		ledger:   make(map[uuid.UUID][]Transaction),
		events:   make(map[uuid.UUID]map[string]struct{}),
	}
}

// CreateAccount provisions a zero-balance account, mirroring the subscription
// row the PG ledger rides on.
func (l *MemLedger) CreateAccount(userID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[userID]; !ok {
		l.accounts[userID] = &Balance{}
	}
}

func (l *MemLedger) Grant(ctx context.Context, params GrantParams) (*Transaction, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[params.UserID]
	if !ok {
		return nil, ErrAccountNotFound
	}

	if params.ProviderEventID != "" {
		seen := l.events[params.UserID]
		if seen == nil {
			seen = make(map[string]struct{})
			l.events[params.UserID] = seen
		}
		if _, dup := seen[params.ProviderEventID]; dup {
			return nil, ErrDuplicateGrant
		}
		seen[params.ProviderEventID] = struct{}{}
	}

	acc.Balance += params.Amount
	acc.LifetimeEarned += params.Amount

	tx := Transaction{
		ID:              uuid.New(),
		UserID:          params.UserID,
		Amount:          params.Amount,
		BalanceAfter:    acc.Balance,
		Type:            params.Type,
		SubscriptionID:  params.SubscriptionID,
		ProviderEventID: params.ProviderEventID,
		Description:     params.Description,
		Metadata:        params.Metadata,
		CreatedAt:       time.Now().UTC(),
	}
	l.ledger[params.UserID] = append(l.ledger[params.UserID], tx)
	return &tx, nil
}

func (l *MemLedger) Spend(ctx context.Context, params SpendParams) (*Transaction, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[params.UserID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if acc.Balance < params.Amount {
		return nil, ErrInsufficientBalance
	}

	acc.Balance -= params.Amount
	acc.LifetimeSpent += params.Amount

	tx := Transaction{
		ID:           uuid.New(),
		UserID:       params.UserID,
		Amount:       -params.Amount,
		BalanceAfter: acc.Balance,
		Type:         params.Type,
		Description:  params.Description,
		Metadata:     params.Metadata,
		CreatedAt:    time.Now().UTC(),
	}
	l.ledger[params.UserID] = append(l.ledger[params.UserID], tx)
	return &tx, nil
}

func (l *MemLedger) Balance(ctx context.Context, userID uuid.UUID) (Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[userID]
	if !ok {
		return Balance{}, ErrAccountNotFound
	}
	return *acc, nil
}

func (l *MemLedger) History(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	txs := slices.Clone(l.ledger[userID])
	slices.Reverse(txs)
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}
