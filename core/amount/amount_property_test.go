package amount

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"nftminter/core/types"
)

// Property: BaseAmount(p, q) == p*q for p > 0 and == q for p == 0.
func TestBaseAmountProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("priced amounts multiply", prop.ForAll(
		func(price, quantity uint64) bool {
			p := new(big.Int).SetUint64(price)
			q := new(big.Int).SetUint64(quantity)
			want := new(big.Int).Mul(p, q)
			return BaseAmount(p, q).Cmp(want) == 0
		},
		gen.UInt64Range(1, 1<<40),
		gen.UInt64Range(0, 1<<20),
	))

	properties.Property("zero price passes quantity through", prop.ForAll(
		func(quantity uint64) bool {
			q := new(big.Int).SetUint64(quantity)
			return BaseAmount(big.NewInt(0), q).Cmp(q) == 0
		},
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

// Property: for base divisible by 100 and shares in whole percent summing to s,
// AmountIn == base*(1+s) and the split sums to base*s.
func TestProxyAmountProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("amount in equals base times one plus shares", prop.ForAll(
		func(units uint64, a, b uint64) bool {
			base := new(big.Int).SetUint64(units * 100)
			if a+b > 100 {
				b = 100 - a
			}
			list := []types.CommissionInfo{
				{ChainID: 1, Share: fmt.Sprintf("0.%02d", a)},
				{ChainID: 1, Share: fmt.Sprintf("0.%02d", b)},
			}
			split, err := SplitCommissions(base, list)
			if err != nil {
				return false
			}
			s := new(big.Int).SetUint64(a + b)
			wantCommission := new(big.Int).Div(new(big.Int).Mul(base, s), big.NewInt(100))
			wantIn := new(big.Int).Add(base, wantCommission)
			return split.Total.Cmp(wantCommission) == 0 && split.AmountIn.Cmp(wantIn) == 0
		},
		gen.UInt64Range(0, 1<<30),
		gen.UInt64Range(0, 99),
		gen.UInt64Range(0, 99),
	))

	properties.Property("commission total never exceeds base times shares", prop.ForAll(
		func(base uint64, a uint64) bool {
			b := new(big.Int).SetUint64(base)
			split, err := SplitCommissions(b, []types.CommissionInfo{{Share: fmt.Sprintf("0.%03d", a)}})
			if err != nil {
				return false
			}
			limit := new(big.Rat).Mul(new(big.Rat).SetInt(b), big.NewRat(int64(a), 1000))
			return new(big.Rat).SetInt(split.Total).Cmp(limit) <= 0
		},
		gen.UInt64Range(0, 1<<40),
		gen.UInt64Range(0, 999),
	))

	properties.TestingRun(t)
}
