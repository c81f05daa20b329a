package reward

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/evermark/curation-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func delegateIn(cycle int64) model.DelegationRecord {
	return model.DelegationRecord{
		AccountID: "acct",
		ItemID:    "item",
		Amount:    d(10),
		Cycle:     cycle,
		Direction: model.DirectionDelegate,
	}
}

func undelegateIn(cycle int64) model.DelegationRecord {
	return model.DelegationRecord{
		AccountID: "acct",
		ItemID:    "item",
		Amount:    d(10),
		Cycle:     cycle,
		Direction: model.DirectionUndelegate,
	}
}

func TestScore_MultiplierTiers(t *testing.T) {
	tests := []struct {
		delegated      float64
		available      float64
		wantPercent    float64
		wantMultiplier string
	}{
		{100, 100, 100, "2.00"}, // exactly 100% → top tier
		{150, 100, 150, "2.00"}, // over-delegation stays top tier
		{75, 100, 75, "1.50"},   // exactly 75%
		{74, 100, 74, "1.25"},   // falls to the 50% tier, not 75%
		{50, 100, 50, "1.25"},   // exactly 50%
		{49, 100, 49, "1.00"},   // below all tiers
		{0, 100, 0, "1.00"},
	}

	for _, tc := range tests {
		stats := Score(d(tc.delegated), d(tc.available), nil, 0)

		if !stats.DelegationPercentage.Equal(d(tc.wantPercent)) {
			t.Errorf("delegated=%v: expected percentage %v, got %s",
				tc.delegated, tc.wantPercent, stats.DelegationPercentage)
		}
		want := decimal.RequireFromString(tc.wantMultiplier)
		if !stats.RewardMultiplier.Equal(want) {
			t.Errorf("delegated=%v: expected multiplier %s, got %s",
				tc.delegated, tc.wantMultiplier, stats.RewardMultiplier)
		}
	}
}

func TestScore_ZeroPowerSafety(t *testing.T) {
	stats := Score(d(500), decimal.Zero, nil, 3)

	if !stats.DelegationPercentage.IsZero() {
		t.Errorf("expected percentage 0 with zero voting power, got %s", stats.DelegationPercentage)
	}
	if !stats.RewardMultiplier.Equal(d(1.00)) {
		t.Errorf("expected base multiplier, got %s", stats.RewardMultiplier)
	}
}

func TestScore_ConsistencyFourWeeks(t *testing.T) {
	ledger := []model.DelegationRecord{
		delegateIn(10), delegateIn(9), delegateIn(8), delegateIn(7),
	}

	stats := Score(d(0), d(100), ledger, 10)

	if stats.ConsistencyWeeks != 4 {
		t.Errorf("expected 4 weeks, got %d", stats.ConsistencyWeeks)
	}
	if !stats.ConsistencyBonus.Equal(d(0.20)) {
		t.Errorf("expected bonus 0.20, got %s", stats.ConsistencyBonus)
	}
}

func TestScore_UndelegateOnlyCycleDoesNotCount(t *testing.T) {
	// Cycle 8 has only an undelegate; it must not count.
	ledger := []model.DelegationRecord{
		delegateIn(10), delegateIn(9), undelegateIn(8), delegateIn(7),
	}

	stats := Score(d(0), d(100), ledger, 10)

	if stats.ConsistencyWeeks != 3 {
		t.Errorf("expected 3 weeks, got %d", stats.ConsistencyWeeks)
	}
	if !stats.ConsistencyBonus.Equal(d(0.10)) {
		t.Errorf("expected bonus 0.10, got %s", stats.ConsistencyBonus)
	}
}

func TestScore_BonusTiers(t *testing.T) {
	tests := []struct {
		cycles    []int64
		wantWeeks int
		wantBonus float64
	}{
		{[]int64{10, 9, 8, 7}, 4, 0.20},
		{[]int64{10, 9, 8}, 3, 0.10},
		{[]int64{10, 9}, 2, 0.05},
		{[]int64{10}, 1, 0},
		{nil, 0, 0},
		// Activity outside the 4-cycle window does not count.
		{[]int64{6, 5, 4, 3}, 0, 0},
		// Duplicate activity in one cycle counts once.
		{[]int64{10, 10, 10}, 1, 0},
	}

	for _, tc := range tests {
		var ledger []model.DelegationRecord
		for _, c := range tc.cycles {
			ledger = append(ledger, delegateIn(c))
		}

		stats := Score(d(0), d(100), ledger, 10)

		if stats.ConsistencyWeeks != tc.wantWeeks {
			t.Errorf("cycles=%v: expected %d weeks, got %d", tc.cycles, tc.wantWeeks, stats.ConsistencyWeeks)
		}
		if !stats.ConsistencyBonus.Equal(d(tc.wantBonus)) {
			t.Errorf("cycles=%v: expected bonus %v, got %s", tc.cycles, tc.wantBonus, stats.ConsistencyBonus)
		}
	}
}

func TestScore_WindowStopsAtCycleZero(t *testing.T) {
	// currentCycle=1: the window is cycles 1 and 0 only.
	ledger := []model.DelegationRecord{
		delegateIn(1), delegateIn(0),
	}

	stats := Score(d(0), d(100), ledger, 1)

	if stats.ConsistencyWeeks != 2 {
		t.Errorf("expected 2 weeks, got %d", stats.ConsistencyWeeks)
	}
}

func TestScore_EffectiveMultiplierIsAdditive(t *testing.T) {
	ledger := []model.DelegationRecord{
		delegateIn(10), delegateIn(9), delegateIn(8), delegateIn(7),
	}

	stats := Score(d(100), d(100), ledger, 10)

	// 2.00 multiplier + 0.20 bonus.
	if !stats.EffectiveMultiplier.Equal(d(2.20)) {
		t.Errorf("expected effective 2.20, got %s", stats.EffectiveMultiplier)
	}
}

func TestScore_EmptyEverything(t *testing.T) {
	stats := Score(decimal.Zero, decimal.Zero, nil, 0)

	if stats.ConsistencyWeeks != 0 || !stats.ConsistencyBonus.IsZero() {
		t.Error("empty inputs must yield zero consistency")
	}
	if !stats.DelegationPercentage.IsZero() {
		t.Error("empty inputs must yield zero percentage")
	}
	if !stats.EffectiveMultiplier.Equal(d(1.00)) {
		t.Errorf("expected effective 1.00, got %s", stats.EffectiveMultiplier)
	}
}
