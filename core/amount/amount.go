package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"nftminter/core/types"
)

// Split summarises a payment divided between the base transfer and the
// commission recipients. All amounts are token base units.
type Split struct {
	Base        *big.Int
	Commissions []types.Commission
	Total       *big.Int
	AmountIn    *big.Int
}

// HasCommission reports whether any commission amount is owed.
func (s Split) HasCommission() bool {
	return s.Total != nil && s.Total.Sign() > 0
}

// BaseAmount returns price × quantity. A zero price is a sentinel meaning the
// quantity already is the amount (donation style).
func BaseAmount(price, quantity *big.Int) *big.Int {
	if quantity == nil {
		return big.NewInt(0)
	}
	if price == nil || price.Sign() == 0 {
		return new(big.Int).Set(quantity)
	}
	return new(big.Int).Mul(price, quantity)
}

// SplitCommissions computes floor(base × share) for every entry. The caller is
// expected to have filtered the list to the active chain.
func SplitCommissions(base *big.Int, commissions []types.CommissionInfo) (Split, error) {
	split := Split{Total: big.NewInt(0)}
	if base == nil {
		split.Base = big.NewInt(0)
	} else {
		split.Base = new(big.Int).Set(base)
	}
	if len(commissions) > 0 {
		split.Commissions = make([]types.Commission, 0, len(commissions))
	}
	baseRat := new(big.Rat).SetInt(split.Base)
	for _, entry := range commissions {
		share, err := entry.ShareRat()
		if err != nil {
			return Split{}, err
		}
		product := new(big.Rat).Mul(baseRat, share)
		owed := new(big.Int).Quo(product.Num(), product.Denom())
		split.Commissions = append(split.Commissions, types.Commission{To: entry.WalletAddress, Amount: owed})
		split.Total.Add(split.Total, owed)
	}
	split.AmountIn = new(big.Int).Add(split.Base, split.Total)
	return split, nil
}

// ProxyTokenAmountIn returns the amount a payer must authorise, including the
// commission surcharge, as a base-10 string.
func ProxyTokenAmountIn(price, quantity *big.Int, commissions []types.CommissionInfo) (string, error) {
	split, err := SplitCommissions(BaseAmount(price, quantity), commissions)
	if err != nil {
		return "", err
	}
	return split.AmountIn.String(), nil
}

// ApplyFeeDisplay adds the embedder fee fraction to amount. The result is only
// ever displayed; it is not part of the authorised transfer.
func ApplyFeeDisplay(amount *big.Rat, fee string) (*big.Rat, error) {
	if amount == nil {
		amount = new(big.Rat)
	}
	raw := strings.TrimSpace(fee)
	if raw == "" {
		return new(big.Rat).Set(amount), nil
	}
	frac, ok := new(big.Rat).SetString(raw)
	if !ok {
		return nil, fmt.Errorf("invalid fee %q", fee)
	}
	if frac.Sign() < 0 {
		return nil, fmt.Errorf("fee must be non-negative")
	}
	surcharge := new(big.Rat).Mul(amount, frac)
	return surcharge.Add(surcharge, amount), nil
}

// FitsUint256 reports whether amount can be passed to a contract as uint256.
func FitsUint256(amount *big.Int) bool {
	if amount == nil || amount.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(amount)
	return !overflow
}
