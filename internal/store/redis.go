package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evermark/curation-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache over whole per-account ledgers. Writes go to the primary store and
// invalidate the cache before returning, so a read that follows a reported
// insert always observes it (read-your-writes within a process).
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) PutRecord(ctx context.Context, accountID string, rec model.DelegationRecord) (bool, error) {
	inserted, err := s.primary.PutRecord(ctx, accountID, rec)
	if err != nil {
		return inserted, err
	}
	if inserted {
		s.rdb.Del(ctx, ledgerKey(accountID))
	}
	return inserted, nil
}

func (s *CachedStore) PutRecords(ctx context.Context, accountID string, recs []model.DelegationRecord) ([]bool, error) {
	inserted, err := s.primary.PutRecords(ctx, accountID, recs)
	// Invalidate even on partial failure; some records may have landed.
	for _, ok := range inserted {
		if ok {
			s.rdb.Del(ctx, ledgerKey(accountID))
			break
		}
	}
	return inserted, err
}

func (s *CachedStore) ClearLedger(ctx context.Context, accountID string) error {
	if err := s.primary.ClearLedger(ctx, accountID); err != nil {
		return err
	}
	s.rdb.Del(ctx, ledgerKey(accountID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetLedger(ctx context.Context, accountID string) ([]model.DelegationRecord, error) {
	data, err := s.rdb.Get(ctx, ledgerKey(accountID)).Bytes()
	if err == nil {
		var records []model.DelegationRecord
		if json.Unmarshal(data, &records) == nil {
			return records, nil
		}
	}

	// Cache miss: read from primary and re-populate.
	records, err := s.primary.GetLedger(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.cacheLedger(ctx, accountID, records)
	return records, nil
}

// RefreshLedger drops the cached ledger and reads the primary directly.
func (s *CachedStore) RefreshLedger(ctx context.Context, accountID string) ([]model.DelegationRecord, error) {
	s.rdb.Del(ctx, ledgerKey(accountID))

	records, err := s.primary.RefreshLedger(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.cacheLedger(ctx, accountID, records)
	return records, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheLedger(ctx context.Context, accountID string, records []model.DelegationRecord) {
	if data, err := json.Marshal(records); err == nil {
		s.rdb.Set(ctx, ledgerKey(accountID), data, s.ttl)
	}
}

func ledgerKey(accountID string) string { return fmt.Sprintf("ledger:%s", accountID) }
