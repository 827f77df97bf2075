package usage

import (
	"context"
	"log/slog"
	"time"
)

// Service wraps a Store with the engine's degradation policy: reads never
// propagate store errors, they return zero plus a degraded flag (and a log
// line) so metering failures can't block a user from generating.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, mainly for tests pinning the day.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("usage: Store is required")
	}

	s := &Service{
		store: store,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns today's count. degraded is true when the store failed and
// the zero value is a fallback, not a real reading.
func (s *Service) Today(ctx context.Context, id Identity, gt GenerationType) (count int64, degraded bool) {
	count, err := s.store.Today(ctx, id, gt, s.now())
	if err != nil {
		s.log.WarnContext(ctx, "usage read degraded to zero",
			"identity", id.ID, "kind", id.Kind, "type", gt, "error", err)
		return 0, true
	}
	return count, false
}

// MonthToDate returns the month's cumulative count with the same degradation
// contract as Today.
func (s *Service) MonthToDate(ctx context.Context, id Identity, gt GenerationType) (count int64, degraded bool) {
	count, err := s.store.MonthToDate(ctx, id, gt, s.now())
	if err != nil {
		s.log.WarnContext(ctx, "usage month read degraded to zero",
			"identity", id.ID, "kind", id.Kind, "type", gt, "error", err)
		return 0, true
	}
	return count, false
}

// Record counts one generation. Unlike reads, the error is returned: callers
// decide whether a metering failure should fail their operation (it usually
// shouldn't, but they log it with their own context).
func (s *Service) Record(ctx context.Context, id Identity, gt GenerationType) (int64, error) {
	return s.store.Increment(ctx, id, gt, s.now(), 1)
}
