// Package position folds an account's delegation ledger into derived
// views: net per-item balances, cycle slices, and the supported set.
//
// Everything here is pure and O(ledger size); callers should cache results
// per request rather than recomputing on every access for large ledgers.
package position

import (
	"github.com/shopspring/decimal"

	"github.com/evermark/curation-engine/internal/model"
)

// NetPositions folds the ledger once into a map of itemID → signed net
// delegated amount, then drops entries that netted to zero or below.
// A fully unwound delegation is an expected end state, not an error; it
// simply leaves the map.
//
// Addition is commutative, so the result is independent of record order.
// Callers must not rely on any iteration order of the returned map.
func NetPositions(ledger []model.DelegationRecord) map[string]decimal.Decimal {
	nets := make(map[string]decimal.Decimal)
	for _, rec := range ledger {
		switch rec.Direction {
		case model.DirectionDelegate:
			nets[rec.ItemID] = nets[rec.ItemID].Add(rec.Amount)
		case model.DirectionUndelegate:
			nets[rec.ItemID] = nets[rec.ItemID].Sub(rec.Amount)
		}
	}

	for itemID, net := range nets {
		if net.LessThanOrEqual(decimal.Zero) {
			delete(nets, itemID)
		}
	}
	return nets
}

// SupportedItems returns the itemIDs whose net position is strictly
// positive.
func SupportedItems(ledger []model.DelegationRecord) []string {
	nets := NetPositions(ledger)
	items := make([]string, 0, len(nets))
	for itemID := range nets {
		items = append(items, itemID)
	}
	return items
}

// CycleSlice returns the subset of records whose contract-assigned cycle
// equals the requested value, preserving ledger order.
func CycleSlice(ledger []model.DelegationRecord, cycle int64) []model.DelegationRecord {
	var slice []model.DelegationRecord
	for _, rec := range ledger {
		if rec.Cycle == cycle {
			slice = append(slice, rec)
		}
	}
	return slice
}
