package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapPaddleEventKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		want EventKind
	}{
		{"transaction.completed", EventCheckoutCompleted},
		{"subscription.created", EventSubCreated},
		{"subscription.updated", EventSubUpdated},
		{"subscription.resumed", EventSubUpdated},
		{"subscription.canceled", EventSubCancelled},
		{"subscription.past_due", EventSubUpdated},
		{"subscription.paused", EventSubPaused},
		{"subscription.trialing", EventSubUpdated},
		// Activation is Paddle's trial-conversion signal; it must reach
		// the trial-ended branch of the handler.
		{"subscription.activated", EventSubTrialEnded},
		{"transaction.paid", EventSubPaid},
		{"transaction.payment_succeeded", EventSubPaid},
		{"adjustment.created", EventRefundCreated},
		{"address.created", EventUnknown},
		{"", EventUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapPaddleEventKind(tc.name), tc.name)
	}
}

func TestMapEventStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusCancelled, mapEventStatus("canceled"))
	assert.Equal(t, StatusTrialing, mapEventStatus("on_trial"))
	assert.Equal(t, StatusPastDue, mapEventStatus("unpaid"))
	assert.Equal(t, StatusActive, mapEventStatus("active"))
	assert.Equal(t, Status(""), mapEventStatus("garbage"))
	assert.Equal(t, Status(""), mapEventStatus(""))
}
