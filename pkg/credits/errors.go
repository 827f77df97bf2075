package credits

import "errors"

var (
	ErrInvalidAmount       = errors.New("credit amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	ErrDuplicateGrant      = errors.New("credit grant already recorded for this provider event")
	ErrAccountNotFound     = errors.New("credit account not found for user")
	ErrNoIdentityMapping   = errors.New("no ledger identity mapping for user")
	ErrFailedToReadLedger  = errors.New("failed to read credit ledger")
	ErrFailedToWriteLedger = errors.New("failed to write credit ledger")
	ErrFailedToMapIdentity = errors.New("failed to resolve ledger identity mapping")
)
