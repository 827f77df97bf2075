package plan

import "errors"

var (
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrPlanNotFound             = errors.New("subscription plan not found")
)
