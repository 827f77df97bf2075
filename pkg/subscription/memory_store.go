package subscription

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[uuid.UUID]*Record)}
}

func cloneRecord(r *Record) *Record {
	cp := *r
	cp.UpgradeHistory = slices.Clone(r.UpgradeHistory)
	cp.Metadata = maps.Clone(r.Metadata)
	return &cp
}

func (s *MemStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.UserID]; ok {
		return ErrRecordAlreadyExists
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.UserID] = cloneRecord(rec)
	return nil
}

func (s *MemStore) Update(ctx context.Context, userID uuid.UUID, patch Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}

	patch.apply(rec)
	rec.UpdatedAt = time.Now().UTC()
	return cloneRecord(rec), nil
}

func (s *MemStore) Upsert(ctx context.Context, rec *Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if prior, ok := s.records[rec.UserID]; ok {
		// Points and created_at survive the replace, like the SQL upsert.
		rec.PointsBalance = prior.PointsBalance
		rec.PointsLifetimeEarned = prior.PointsLifetimeEarned
		rec.PointsLifetimeSpent = prior.PointsLifetimeSpent
		rec.CreatedAt = prior.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	s.records[rec.UserID] = cloneRecord(rec)
	return cloneRecord(rec), nil
}

// MemMirror records mirror syncs for tests; failures can be injected.
type MemMirror struct {
	mu     sync.Mutex
	Synced []uuid.UUID
	Err    error
}

func (m *MemMirror) Sync(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Synced = append(m.Synced, rec.UserID)
	return nil
}
