// Package reward derives reward-affecting metrics from an account's
// delegation activity: percentage of voting power used, the tiered reward
// multiplier, and the rolling consistency bonus.
//
// The product semantics are step functions, not continuous curves, so the
// tiers are explicit tables — never interpolated.
package reward

import (
	"github.com/shopspring/decimal"

	"github.com/evermark/curation-engine/internal/model"
)

// consistencyWindow is how many recent cycles (ending at the current one,
// inclusive) the lookback examines.
const consistencyWindow = 4

// multiplierTiers maps delegation percentage to reward multiplier.
// Inclusive lower bounds; highest applicable tier wins.
var multiplierTiers = []struct {
	minPercent decimal.Decimal
	multiplier decimal.Decimal
}{
	{decimal.NewFromInt(100), decimal.RequireFromString("2.00")},
	{decimal.NewFromInt(75), decimal.RequireFromString("1.50")},
	{decimal.NewFromInt(50), decimal.RequireFromString("1.25")},
}

var baseMultiplier = decimal.RequireFromString("1.00")

// bonusTiers maps consistencyWeeks to the additive consistency bonus.
var bonusTiers = map[int]decimal.Decimal{
	4: decimal.RequireFromString("0.20"),
	3: decimal.RequireFromString("0.10"),
	2: decimal.RequireFromString("0.05"),
}

// Score derives RewardStats.
//
// currentCycleNetDelegated and totalVotingPower are the authoritative
// numbers fetched fresh from the contract; the local ledger is a
// possibly-incomplete reconstruction and feeds only the consistency
// lookback. An empty ledger or zero voting power yields zero-valued
// stats, never a fault — "no activity yet" is an expected state.
func Score(currentCycleNetDelegated, totalVotingPower decimal.Decimal, ledger []model.DelegationRecord, currentCycle int64) model.RewardStats {
	percentage := decimal.Zero
	if totalVotingPower.IsPositive() {
		percentage = currentCycleNetDelegated.
			Mul(decimal.NewFromInt(100)).
			Div(totalVotingPower)
	}

	multiplier := multiplierFor(percentage)
	weeks := consistencyWeeks(ledger, currentCycle)
	bonus := bonusFor(weeks)

	return model.RewardStats{
		TotalDelegated:       currentCycleNetDelegated,
		TotalAvailable:       totalVotingPower,
		DelegationPercentage: percentage,
		RewardMultiplier:     multiplier,
		ConsistencyWeeks:     weeks,
		ConsistencyBonus:     bonus,
		EffectiveMultiplier:  multiplier.Add(bonus),
	}
}

// multiplierFor walks the tier table top-down and returns the first tier
// the percentage clears.
func multiplierFor(percentage decimal.Decimal) decimal.Decimal {
	for _, tier := range multiplierTiers {
		if percentage.GreaterThanOrEqual(tier.minPercent) {
			return tier.multiplier
		}
	}
	return baseMultiplier
}

// consistencyWeeks counts how many of the last consistencyWindow cycles
// (currentCycle inclusive, counting down) contain at least one
// Delegate-direction record. Undelegate-only activity in a cycle does not
// count.
func consistencyWeeks(ledger []model.DelegationRecord, currentCycle int64) int {
	delegated := make(map[int64]bool)
	for _, rec := range ledger {
		if rec.Direction == model.DirectionDelegate {
			delegated[rec.Cycle] = true
		}
	}

	weeks := 0
	for i := int64(0); i < consistencyWindow; i++ {
		cycle := currentCycle - i
		if cycle < 0 {
			break
		}
		if delegated[cycle] {
			weeks++
		}
	}
	return weeks
}

// bonusFor returns the additive bonus for a consistency streak. Combined
// by callers as rewardMultiplier + consistencyBonus.
func bonusFor(weeks int) decimal.Decimal {
	if bonus, ok := bonusTiers[weeks]; ok {
		return bonus
	}
	return decimal.Zero
}
