package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type counterKeyMem struct {
	kind IdentityKind
	id   uuid.UUID
	gt   GenerationType
	day  time.Time
}

// MemStore is an in-memory Store for tests and local development.
type MemStore struct {
	mu       sync.Mutex
	counters map[counterKeyMem]int64
}

func NewMemStore() *MemStore {
	return &MemStore{counters: make(map[counterKeyMem]int64)}
}

func (s *MemStore) key(id Identity, gt GenerationType, day time.Time) counterKeyMem {
	return counterKeyMem{kind: id.Kind, id: id.ID, gt: gt, day: DayKey(day)}
}

func (s *MemStore) Today(ctx context.Context, id Identity, gt GenerationType, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[s.key(id, gt, day)], nil
}

func (s *MemStore) MonthToDate(ctx context.Context, id Identity, gt GenerationType, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, end := MonthStart(day), DayKey(day)
	var total int64
	for k, n := range s.counters {
		if k.kind == id.Kind && k.id == id.ID && k.gt == gt &&
			!k.day.Before(start) && !k.day.After(end) {
			total += n
		}
	}
	return total, nil
}

func (s *MemStore) Increment(ctx context.Context, id Identity, gt GenerationType, day time.Time, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(id, gt, day)
	s.counters[k] += amount
	return s.counters[k], nil
}

func (s *MemStore) MergeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, n := range s.counters {
		if k.kind != IdentitySession || k.id != sessionID {
			continue
		}
		target := counterKeyMem{kind: IdentityUser, id: userID, gt: k.gt, day: k.day}
		s.counters[target] += n
		delete(s.counters, k)
	}
	return nil
}
