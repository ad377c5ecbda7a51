package types

import "math/big"

// DiscountApplication selects which purchases a discount rule covers.
type DiscountApplication uint8

const (
	DiscountNewOnly     DiscountApplication = 0
	DiscountRenewalOnly DiscountApplication = 1
	DiscountBoth        DiscountApplication = 2
)

// Covers reports whether the rule applies to a renewal (true) or a new
// subscription (false).
func (a DiscountApplication) Covers(renewal bool) bool {
	switch a {
	case DiscountNewOnly:
		return !renewal
	case DiscountRenewalOnly:
		return renewal
	default:
		return true
	}
}

// DiscountRule is a time and duration gated price adjustment for a
// subscription product. Zero StartTime/EndTime mean unbounded.
type DiscountRule struct {
	ID                 uint64
	Application        DiscountApplication
	StartTime          int64
	EndTime            int64
	MinDuration        uint64
	DiscountPercentage *big.Rat
	FixedPrice         *big.Int
}
