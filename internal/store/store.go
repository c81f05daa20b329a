// Package store defines the persistence interface for per-account
// delegation ledgers. Implementations include PostgreSQL (source of
// truth), Redis (read-through cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/evermark/curation-engine/internal/model"
)

// Store is the durable ledger interface. Every implementation must provide
// atomic insert-or-noop semantics keyed on (accountID, sourceEventID):
// re-inserting a record that is already present is a no-op, reported as
// such, never an error.
type Store interface {
	// PutRecord appends a record to an account's ledger. Returns true if
	// the record was inserted, false if a record with the same
	// SourceEventID was already present.
	PutRecord(ctx context.Context, accountID string, rec model.DelegationRecord) (bool, error)

	// PutRecords appends a batch in one round-trip where the backend
	// supports it. inserted[i] reports whether recs[i] was new. The
	// returned slice covers every record that reached the store, even
	// when err is non-nil (partial progress is retained, never rolled
	// back).
	PutRecords(ctx context.Context, accountID string, recs []model.DelegationRecord) ([]bool, error)

	// GetLedger returns the full ledger for an account in insertion
	// order. Insertion order is not chronological order: late-arriving
	// historical backfills are legal.
	GetLedger(ctx context.Context, accountID string) ([]model.DelegationRecord, error)

	// RefreshLedger is GetLedger bypassing any cache layer.
	RefreshLedger(ctx context.Context, accountID string) ([]model.DelegationRecord, error)

	// ClearLedger deletes an account's entire ledger. Explicit,
	// user-triggered, irreversible. Never invoked automatically.
	ClearLedger(ctx context.Context, accountID string) error
}
