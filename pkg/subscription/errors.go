package subscription

import "errors"

var (
	ErrRecordNotFound      = errors.New("subscription record not found")
	ErrRecordAlreadyExists = errors.New("subscription record already exists")
	ErrEmptyUserID         = errors.New("subscription user id is required")

	ErrFailedToReadRecord  = errors.New("failed to read subscription record")
	ErrFailedToWriteRecord = errors.New("failed to write subscription record")
	ErrFailedToMirror      = errors.New("failed to mirror subscription record")

	ErrMissingWebhookUser        = errors.New("webhook event carries no user id")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
)
