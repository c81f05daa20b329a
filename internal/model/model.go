// Package model defines the core domain types shared across the curation
// engine. All token amounts use shopspring/decimal — never float64 for
// smallest-unit token values.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the sign of a delegation event.
type Direction string

const (
	// DirectionDelegate increases the net position on an Evermark.
	DirectionDelegate Direction = "DELEGATE"
	// DirectionUndelegate decreases the net position on an Evermark.
	DirectionUndelegate Direction = "UNDELEGATE"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionDelegate || d == DirectionUndelegate
}

// RawEvent is a delegate/undelegate notification as delivered by the chain
// event source, before normalization. Fields may be zero-valued when the
// upstream payload is malformed or incomplete.
type RawEvent struct {
	Account        string          `json:"account"`
	ItemID         string          `json:"item_id"`
	Amount         decimal.Decimal `json:"amount"`
	Cycle          int64           `json:"cycle"`
	Direction      string          `json:"direction"`
	TxHash         string          `json:"tx_hash"`
	BlockTimestamp int64           `json:"block_timestamp"` // unix seconds
}

// DelegationRecord is an immutable fact in an account's ledger. Once
// inserted, these are never modified; the ledger only grows, except for an
// explicit user-initiated reset.
//
// SourceEventID is the dedup key: unique within one account's ledger.
// Cycle is assigned by the contract at emission time and is never
// recomputed locally.
type DelegationRecord struct {
	AccountID     string          `json:"account_id" db:"account_id"`
	ItemID        string          `json:"item_id" db:"item_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"` // always > 0
	Cycle         int64           `json:"cycle" db:"cycle"`
	Direction     Direction       `json:"direction" db:"direction"`
	ObservedAt    time.Time       `json:"observed_at" db:"observed_at"`
	SourceEventID string          `json:"source_event_id" db:"source_event_id"`
}

// ReconcileSummary reports the outcome of one reconcile call. Duplicates
// are not errors; rejections are counted but never halt the batch.
type ReconcileSummary struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}

// RewardStats is derived on demand and never persisted. Percentage and
// multiplier come from the externally supplied authoritative totals; only
// the consistency lookback reads the local ledger.
type RewardStats struct {
	TotalDelegated       decimal.Decimal `json:"total_delegated"`
	TotalAvailable       decimal.Decimal `json:"total_available"`
	DelegationPercentage decimal.Decimal `json:"delegation_percentage"`
	RewardMultiplier     decimal.Decimal `json:"reward_multiplier"`
	ConsistencyWeeks     int             `json:"consistency_weeks"`
	ConsistencyBonus     decimal.Decimal `json:"consistency_bonus"`
	EffectiveMultiplier  decimal.Decimal `json:"effective_multiplier"` // multiplier + bonus
}
