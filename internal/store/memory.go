package store

import (
	"context"
	"sync"

	"github.com/evermark/curation-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]*accountLedger
}

// accountLedger keeps insertion order alongside the dedup index.
type accountLedger struct {
	records []model.DelegationRecord
	seen    map[string]bool // sourceEventID → present
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers: make(map[string]*accountLedger),
	}
}

func (s *MemoryStore) PutRecord(_ context.Context, accountID string, rec model.DelegationRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(accountID, rec), nil
}

func (s *MemoryStore) PutRecords(ctx context.Context, accountID string, recs []model.DelegationRecord) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := make([]bool, 0, len(recs))
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		inserted = append(inserted, s.putLocked(accountID, rec))
	}
	return inserted, nil
}

// putLocked performs the insert-or-noop. Caller holds s.mu.
func (s *MemoryStore) putLocked(accountID string, rec model.DelegationRecord) bool {
	led, ok := s.ledgers[accountID]
	if !ok {
		led = &accountLedger{seen: make(map[string]bool)}
		s.ledgers[accountID] = led
	}
	if led.seen[rec.SourceEventID] {
		return false
	}
	led.seen[rec.SourceEventID] = true
	led.records = append(led.records, rec)
	return true
}

func (s *MemoryStore) GetLedger(_ context.Context, accountID string) ([]model.DelegationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	led, ok := s.ledgers[accountID]
	if !ok {
		return nil, nil
	}
	// Copy to avoid external mutation.
	out := make([]model.DelegationRecord, len(led.records))
	copy(out, led.records)
	return out, nil
}

func (s *MemoryStore) RefreshLedger(ctx context.Context, accountID string) ([]model.DelegationRecord, error) {
	return s.GetLedger(ctx, accountID)
}

func (s *MemoryStore) ClearLedger(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.ledgers, accountID)
	return nil
}
