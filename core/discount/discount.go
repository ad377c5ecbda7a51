package discount

import (
	"math/big"

	"nftminter/core/types"
)

// SecondsPerDay is the pro-rating unit for subscription pricing.
const SecondsPerDay = 86400

// Intent describes the subscription purchase being quoted.
type Intent struct {
	Renewal   bool
	StartTime int64
	Duration  uint64
}

// Result is the outcome of evaluating a rule set. Amount is expressed in token
// base units and may be fractional.
type Result struct {
	Rule    *types.DiscountRule
	Amount  *big.Rat
	Applied bool
}

// RuleID returns the identifier passed to the contract, zero when no rule
// applies.
func (r Result) RuleID() uint64 {
	if !r.Applied || r.Rule == nil {
		return 0
	}
	return r.Rule.ID
}

// Evaluate picks the eligible rule with the strictly greatest positive discount
// for the intent. Ties keep the earlier rule. Evaluate has no side effects.
func Evaluate(rules []types.DiscountRule, intent Intent, price *big.Int, priceDuration uint64) Result {
	none := Result{Amount: new(big.Rat)}
	if len(rules) == 0 || price == nil || priceDuration == 0 || intent.Duration == 0 {
		return none
	}
	best := none
	for i := range rules {
		rule := rules[i]
		if !Eligible(rule, intent) {
			continue
		}
		amount := ruleAmount(rule, price, priceDuration, intent.Duration)
		if amount.Sign() <= 0 {
			continue
		}
		if !best.Applied || amount.Cmp(best.Amount) > 0 {
			best = Result{Rule: &rule, Amount: amount, Applied: true}
		}
	}
	return best
}

// Eligible applies the mode, time window and minimum duration filters.
func Eligible(rule types.DiscountRule, intent Intent) bool {
	if !rule.Application.Covers(intent.Renewal) {
		return false
	}
	if rule.StartTime > 0 && intent.StartTime < rule.StartTime {
		return false
	}
	if rule.EndTime > 0 && intent.StartTime > rule.EndTime {
		return false
	}
	return rule.MinDuration <= intent.Duration
}

// DiscountedPrice returns the per-period price after the rule: the fixed price
// when set, else the percentage reduction, else the undiscounted price.
func DiscountedPrice(rule types.DiscountRule, price *big.Int) *big.Rat {
	full := new(big.Rat).SetInt(price)
	if rule.FixedPrice != nil && rule.FixedPrice.Sign() > 0 {
		return new(big.Rat).SetInt(rule.FixedPrice)
	}
	if rule.DiscountPercentage != nil && rule.DiscountPercentage.Sign() > 0 {
		factor := new(big.Rat).Quo(rule.DiscountPercentage, big.NewRat(100, 1))
		factor.Sub(big.NewRat(1, 1), factor)
		return full.Mul(full, factor)
	}
	return full
}

func ruleAmount(rule types.DiscountRule, price *big.Int, priceDuration, duration uint64) *big.Rat {
	delta := new(big.Rat).Sub(new(big.Rat).SetInt(price), DiscountedPrice(rule, price))
	return delta.Mul(delta, proRate(priceDuration, duration))
}

// proRate returns (duration/86400) / (priceDuration/86400).
func proRate(priceDuration, duration uint64) *big.Rat {
	days := new(big.Rat).SetFrac(new(big.Int).SetUint64(duration), big.NewInt(SecondsPerDay))
	periodDays := new(big.Rat).SetFrac(new(big.Int).SetUint64(priceDuration), big.NewInt(SecondsPerDay))
	return days.Quo(days, periodDays)
}

// SubscriptionCost returns the amount due for duration seconds of a product
// priced per priceDuration seconds, minus the applied discount, rounded up to
// a whole base unit.
func SubscriptionCost(price *big.Int, priceDuration, duration uint64, applied Result) *big.Int {
	if price == nil || priceDuration == 0 || duration == 0 {
		return big.NewInt(0)
	}
	cost := new(big.Rat).Mul(new(big.Rat).SetInt(price), proRate(priceDuration, duration))
	if applied.Applied && applied.Amount != nil {
		cost.Sub(cost, applied.Amount)
	}
	if cost.Sign() <= 0 {
		return big.NewInt(0)
	}
	q, r := new(big.Int).QuoRem(cost.Num(), cost.Denom(), new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
