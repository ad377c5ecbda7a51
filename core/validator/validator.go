// Package validator runs the ordered purchase preconditions. The first
// failing check stops evaluation and is reported as a validation error with
// its own code.
package validator

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"nftminter/core/amount"
	coreerrors "nftminter/core/errors"
	"nftminter/core/router"
	"nftminter/core/types"
)

// StockReader re-reads the remaining stock of a product.
type StockReader interface {
	Stock(ctx context.Context, productID *big.Int) (*big.Int, error)
}

// BalanceReader reads the payer's balance of a token.
type BalanceReader interface {
	Balance(ctx context.Context, token types.Token) (*big.Int, error)
}

// Input is a purchase request as entered by the buyer.
type Input struct {
	Product types.Product
	// Token is the selected payment token. Donations require one; other
	// products pay in the product token when it is nil.
	Token *types.Token
	// Quantity is the raw quantity entry for buy products.
	Quantity string
	// Amount is the base amount in token base units for donations and
	// subscriptions; nil when nothing was entered.
	Amount      *big.Int
	StartTime   int64
	Duration    string
	Commissions []types.CommissionInfo
}

// Result describes a purchase that passed every check.
type Result struct {
	Token    types.Token
	Quantity *big.Int
	Base     *big.Int
	Split    amount.Split
	Balance  *big.Int
	Duration uint64
}

// Validator checks purchases against live stock and balances.
type Validator struct {
	router   *router.Router
	stock    StockReader
	balances BalanceReader
	logger   *slog.Logger
}

// Option customises the validator.
type Option func(*Validator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// New creates a validator. r computes the commission surcharge for the
// active chain.
func New(r *router.Router, stock StockReader, balances BalanceReader, opts ...Option) *Validator {
	v := &Validator{router: r, stock: stock, balances: balances}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) log() *slog.Logger {
	if v != nil && v.logger != nil {
		return v.logger
	}
	return slog.Default()
}

// Validate reports the first failed precondition, or nil.
func (v *Validator) Validate(ctx context.Context, in Input) error {
	_, err := v.Check(ctx, in)
	return err
}

// Check runs every precondition and returns the amounts of a valid purchase.
func (v *Validator) Check(ctx context.Context, in Input) (Result, error) {
	if in.Product == nil {
		return Result{}, coreerrors.ErrUnsupportedProduct
	}
	kind := in.Product.Kind()
	if kind.IsDonation() && in.Token == nil {
		return Result{}, coreerrors.ErrTokenRequired
	}
	token := in.Product.Base().Token
	if in.Token != nil {
		token = *in.Token
	}
	res := Result{Token: token, Quantity: big.NewInt(1)}

	switch product := in.Product.(type) {
	case types.BuyProduct:
		quantity, err := v.checkQuantity(ctx, product, in.Quantity)
		if err != nil {
			return Result{}, err
		}
		res.Quantity = quantity
		res.Base = amount.BaseAmount(product.Price, quantity)
	case types.DonationProduct:
		if in.Amount == nil || in.Amount.Sign() <= 0 {
			return Result{}, coreerrors.ErrAmountRequired
		}
		res.Base = new(big.Int).Set(in.Amount)
	default:
		res.Base = big.NewInt(0)
		if in.Amount != nil {
			res.Base = new(big.Int).Set(in.Amount)
		}
	}

	split, err := v.split(res.Base, in.Commissions)
	if err != nil {
		return Result{}, err
	}
	res.Split = split
	res.Balance = v.balance(ctx, token)
	if res.Balance.Cmp(split.AmountIn) < 0 {
		return Result{}, coreerrors.InsufficientBalance(token.Symbol)
	}

	if kind == types.ProductTypeSubscription {
		if in.StartTime <= 0 {
			return Result{}, coreerrors.ErrStartDateRequired
		}
		duration, err := parseDuration(in.Duration)
		if err != nil {
			return Result{}, err
		}
		res.Duration = duration
	}
	return res, nil
}

// checkQuantity runs the stock-limited product checks in order and returns
// the requested quantity.
func (v *Validator) checkQuantity(ctx context.Context, product types.BuyProduct, raw string) (*big.Int, error) {
	maxQuantity := product.MaxQuantity
	if maxQuantity == nil {
		maxQuantity = big.NewInt(0)
	}
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if entered, ok := new(big.Rat).SetString(raw); ok && entered.Cmp(new(big.Rat).SetInt(maxQuantity)) > 0 {
			return nil, coreerrors.ErrQuantityGreaterThanMax
		}
	}
	multi := maxQuantity.Cmp(big.NewInt(1)) > 0
	requested := big.NewInt(1)
	if multi {
		quantity, ok := amount.ParseInteger(raw)
		if !ok || quantity.Sign() == 0 {
			return nil, coreerrors.ErrInvalidQuantity
		}
		requested = quantity
	}

	if v.stock != nil {
		remaining, err := v.stock.Stock(ctx, product.ID)
		if err != nil {
			v.log().Warn("stock refresh failed", "product", product.ID.String(), "error", err)
			return nil, coreerrors.ErrOutOfStock
		}
		if remaining.Cmp(requested) < 0 {
			return nil, coreerrors.ErrOutOfStock
		}
	} else if product.Quantity == nil || product.Quantity.Cmp(requested) < 0 {
		return nil, coreerrors.ErrOutOfStock
	}

	if new(big.Int).Sub(maxQuantity, requested).Sign() < 0 {
		return nil, coreerrors.ErrOverMaximumOrderQuantity
	}
	return requested, nil
}

func (v *Validator) split(base *big.Int, commissions []types.CommissionInfo) (amount.Split, error) {
	if v.router == nil {
		return amount.SplitCommissions(base, nil)
	}
	split, err := v.router.Split(base, commissions)
	if err != nil {
		return amount.Split{}, coreerrors.New(coreerrors.KindValidation, coreerrors.CodeInvalidCommission, err)
	}
	return split, nil
}

// balance degrades an unreadable balance to zero.
func (v *Validator) balance(ctx context.Context, token types.Token) *big.Int {
	if v.balances == nil {
		return big.NewInt(0)
	}
	balance, err := v.balances.Balance(ctx, token)
	if err != nil || balance == nil {
		v.log().Warn("balance lookup failed", "token", token.Address.Hex(), "error", err)
		return big.NewInt(0)
	}
	return balance
}

func parseDuration(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, coreerrors.ErrDurationRequired
	}
	duration, ok := amount.ParseInteger(raw)
	if !ok || duration.Sign() <= 0 || !duration.IsUint64() {
		return 0, coreerrors.ErrInvalidDuration
	}
	return duration.Uint64(), nil
}
