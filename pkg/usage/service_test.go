package usage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergen/meterkit/pkg/usage"
)

type failingStore struct{ err error }

func (f failingStore) Today(context.Context, usage.Identity, usage.GenerationType, time.Time) (int64, error) {
	return 0, f.err
}

func (f failingStore) MonthToDate(context.Context, usage.Identity, usage.GenerationType, time.Time) (int64, error) {
	return 0, f.err
}

func (f failingStore) Increment(context.Context, usage.Identity, usage.GenerationType, time.Time, int64) (int64, error) {
	return 0, f.err
}

func (f failingStore) MergeSession(context.Context, uuid.UUID, uuid.UUID) error {
	return f.err
}

func TestServiceReads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	id := usage.UserIdentity(uuid.New())

	t.Run("healthy store", func(t *testing.T) {
		t.Parallel()

		store := usage.NewMemStore()
		svc := usage.NewService(store)

		_, err := svc.Record(ctx, id, usage.GenerationImage)
		require.NoError(t, err)
		_, err = svc.Record(ctx, id, usage.GenerationImage)
		require.NoError(t, err)

		n, degraded := svc.Today(ctx, id, usage.GenerationImage)
		assert.Equal(t, int64(2), n)
		assert.False(t, degraded)

		n, degraded = svc.MonthToDate(ctx, id, usage.GenerationImage)
		assert.Equal(t, int64(2), n)
		assert.False(t, degraded)
	})

	t.Run("failing store degrades to zero", func(t *testing.T) {
		t.Parallel()

		svc := usage.NewService(failingStore{err: errors.New("connection refused")})

		n, degraded := svc.Today(ctx, id, usage.GenerationImage)
		assert.Zero(t, n)
		assert.True(t, degraded, "reads must flag degradation instead of erroring")

		n, degraded = svc.MonthToDate(ctx, id, usage.GenerationImage)
		assert.Zero(t, n)
		assert.True(t, degraded)
	})

	t.Run("record propagates store errors", func(t *testing.T) {
		t.Parallel()

		storeErr := errors.New("connection refused")
		svc := usage.NewService(failingStore{err: storeErr})

		_, err := svc.Record(ctx, id, usage.GenerationImage)
		assert.ErrorIs(t, err, storeErr)
	})
}

func TestServiceClock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	id := usage.UserIdentity(uuid.New())
	store := usage.NewMemStore()

	day1 := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	now := day1
	svc := usage.NewService(store, usage.WithClock(func() time.Time { return now }))

	_, err := svc.Record(ctx, id, usage.GenerationImage)
	require.NoError(t, err)

	// Advance past midnight: the daily counter resets, the month total holds.
	now = day1.AddDate(0, 0, 1)

	n, degraded := svc.Today(ctx, id, usage.GenerationImage)
	require.False(t, degraded)
	assert.Zero(t, n)

	n, degraded = svc.MonthToDate(ctx, id, usage.GenerationImage)
	require.False(t, degraded)
	assert.Equal(t, int64(1), n)
}

func TestNewServicePanicsWithoutStore(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { usage.NewService(nil) })
}
