package usage

import "errors"

var (
	ErrFailedToReadUsage      = errors.New("failed to read usage counter")
	ErrFailedToIncrementUsage = errors.New("failed to increment usage counter")
	ErrFailedToMergeSession   = errors.New("failed to merge session usage")
	ErrInvalidAmount          = errors.New("usage increment amount must be positive")
)
