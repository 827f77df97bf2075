package signup

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/covergen/meterkit/pkg/usage"
)

// Merger moves anonymous-session usage into a freshly created user.
type Merger struct {
	store usage.Store
	log   *slog.Logger
}

type MergerOption func(*Merger)

func WithLogger(log *slog.Logger) MergerOption {
	return func(m *Merger) {
		if log != nil {
			m.log = log
		}
	}
}

func NewMerger(store usage.Store, opts ...MergerOption) *Merger {
	if store == nil {
		panic("signup: usage.Store is required")
	}

	m := &Merger{store: store, log: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge folds the session's counters into the user's and reports whether it
// succeeded. The store primitive is atomic and zeroes the session counters,
// so calling Merge twice cannot double-count. Failure is logged and
// swallowed: the user proceeds with whatever usage state results.
func (m *Merger) Merge(ctx context.Context, userID, sessionID uuid.UUID) bool {
	if userID == uuid.Nil || sessionID == uuid.Nil {
		return false
	}

	if err := m.store.MergeSession(ctx, userID, sessionID); err != nil {
		m.log.ErrorContext(ctx, "session usage merge failed, continuing signup",
			"user_id", userID, "session_id", sessionID, "error", err)
		return false
	}

	m.log.InfoContext(ctx, "session usage merged into user",
		"user_id", userID, "session_id", sessionID)
	return true
}
