// Package normalize converts raw delegate/undelegate notifications from
// the chain event source into canonical DelegationRecords, rejecting
// malformed payloads without halting the surrounding batch.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evermark/curation-engine/internal/model"
)

var (
	// ErrMissingAccount is returned when the event carries no account.
	ErrMissingAccount = errors.New("normalize: missing account")

	// ErrNonPositiveAmount is returned when amount is absent, zero, or
	// negative.
	ErrNonPositiveAmount = errors.New("normalize: amount must be positive")

	// ErrInvalidDirection is returned when direction is neither
	// DELEGATE nor UNDELEGATE.
	ErrInvalidDirection = errors.New("normalize: invalid direction")

	// ErrNegativeCycle is returned when the contract-assigned cycle is
	// negative, which the upstream contract never emits.
	ErrNegativeCycle = errors.New("normalize: cycle must be non-negative")
)

// maxSyntheticIDLen bounds the fallback dedup key so store keys stay small
// regardless of upstream field sizes.
const maxSyntheticIDLen = 96

// Normalize validates a raw event and produces the canonical record.
// Rejections are non-fatal to callers processing a batch: count them and
// move on.
//
// The dedup key is the transaction hash when the upstream supplies one.
// When it does not (historical backfill exports sometimes omit it), a
// composite of the event's fields is synthesized instead. Two textually
// identical legitimate events then collapse into one — a documented
// limitation of the fallback, accepted for best-effort dedup.
func Normalize(ev model.RawEvent) (model.DelegationRecord, error) {
	if strings.TrimSpace(ev.Account) == "" {
		return model.DelegationRecord{}, ErrMissingAccount
	}
	if ev.Amount.LessThanOrEqual(decimal.Zero) {
		return model.DelegationRecord{}, fmt.Errorf("%w: got %s", ErrNonPositiveAmount, ev.Amount)
	}
	if ev.Cycle < 0 {
		return model.DelegationRecord{}, fmt.Errorf("%w: got %d", ErrNegativeCycle, ev.Cycle)
	}

	direction := model.Direction(strings.ToUpper(strings.TrimSpace(ev.Direction)))
	if !direction.Valid() {
		return model.DelegationRecord{}, fmt.Errorf("%w: %q", ErrInvalidDirection, ev.Direction)
	}

	observedAt := time.Now().UTC()
	if ev.BlockTimestamp > 0 {
		observedAt = time.Unix(ev.BlockTimestamp, 0).UTC()
	}

	sourceEventID := ev.TxHash
	if sourceEventID == "" {
		sourceEventID = syntheticID(ev.Account, ev.ItemID, ev.Amount, ev.Cycle, direction)
	}

	return model.DelegationRecord{
		AccountID:     ev.Account,
		ItemID:        ev.ItemID,
		Amount:        ev.Amount,
		Cycle:         ev.Cycle,
		Direction:     direction,
		ObservedAt:    observedAt,
		SourceEventID: sourceEventID,
	}, nil
}

// syntheticID builds the fallback dedup key from the event's identifying
// fields, truncated to a bounded length.
func syntheticID(account, itemID string, amount decimal.Decimal, cycle int64, direction model.Direction) string {
	id := fmt.Sprintf("synth:%s:%s:%s:%d:%s", account, itemID, amount.String(), cycle, direction)
	if len(id) > maxSyntheticIDLen {
		id = id[:maxSyntheticIDLen]
	}
	return id
}
