package validator

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "nftminter/core/errors"
	"nftminter/core/router"
	"nftminter/core/types"
)

var (
	productAddr = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	proxyAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	usdt        = types.Token{ChainID: 97, Address: common.HexToAddress("0x0000000000000000000000000000000000000a03"), Symbol: "USDT", Decimals: 18}
)

type fixedStock struct {
	remaining *big.Int
	err       error
	calls     int
}

func (s *fixedStock) Stock(context.Context, *big.Int) (*big.Int, error) {
	s.calls++
	return s.remaining, s.err
}

type fixedBalance struct {
	balance *big.Int
	err     error
}

func (b fixedBalance) Balance(context.Context, types.Token) (*big.Int, error) {
	return b.balance, b.err
}

func buyProduct(maxQuantity int64) types.BuyProduct {
	return types.BuyProduct{
		ProductBase: types.ProductBase{ID: big.NewInt(1), Price: big.NewInt(100), Token: usdt},
		Quantity:    big.NewInt(10),
		MaxQuantity: big.NewInt(maxQuantity),
	}
}

func newValidator(stock int64, balance int64) (*Validator, *fixedStock) {
	s := &fixedStock{remaining: big.NewInt(stock)}
	return New(router.New(97, productAddr, proxyAddr), s, fixedBalance{balance: big.NewInt(balance)}), s
}

func TestOutOfStockStopsBeforeBalance(t *testing.T) {
	v, stock := newValidator(3, 0)
	err := v.Validate(context.Background(), Input{Product: buyProduct(10), Quantity: "5"})
	if !errors.Is(err, coreerrors.ErrOutOfStock) {
		t.Fatalf("expected out_of_stock, got %v", err)
	}
	if stock.calls != 1 {
		t.Fatalf("stock must be re-read once, got %d", stock.calls)
	}
}

func TestQuantityChecksInOrder(t *testing.T) {
	cases := []struct {
		name        string
		maxQuantity int64
		stock       int64
		quantity    string
		want        error
	}{
		{"greater than max wins over stock", 10, 0, "11", coreerrors.ErrQuantityGreaterThanMax},
		{"missing quantity", 10, 10, "", coreerrors.ErrInvalidQuantity},
		{"fractional quantity", 10, 10, "1.5", coreerrors.ErrInvalidQuantity},
		{"zero quantity", 10, 10, "0", coreerrors.ErrInvalidQuantity},
		{"garbage quantity", 10, 10, "two", coreerrors.ErrInvalidQuantity},
		{"single item sold out", 1, 0, "", coreerrors.ErrOutOfStock},
		{"no order quantity", 0, 5, "", coreerrors.ErrOverMaximumOrderQuantity},
	}
	for _, tc := range cases {
		v, _ := newValidator(tc.stock, 1_000_000)
		err := v.Validate(context.Background(), Input{Product: buyProduct(tc.maxQuantity), Quantity: tc.quantity})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if !coreerrors.IsKind(err, coreerrors.KindValidation) {
			t.Fatalf("%s: expected validation kind, got %v", tc.name, err)
		}
	}
}

func TestSingleItemProductIgnoresQuantityEntry(t *testing.T) {
	v, _ := newValidator(1, 100)
	res, err := v.Check(context.Background(), Input{Product: buyProduct(1), Quantity: ""})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Quantity.Int64() != 1 || res.Base.Int64() != 100 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStockReadFailureIsOutOfStock(t *testing.T) {
	s := &fixedStock{err: errors.New("rpc down")}
	v := New(router.New(97, productAddr, proxyAddr), s, fixedBalance{balance: big.NewInt(1000)})
	if err := v.Validate(context.Background(), Input{Product: buyProduct(10), Quantity: "1"}); !errors.Is(err, coreerrors.ErrOutOfStock) {
		t.Fatalf("expected out_of_stock, got %v", err)
	}
}

func TestBalanceIncludesCommissions(t *testing.T) {
	commissions := []types.CommissionInfo{{ChainID: 97, WalletAddress: common.HexToAddress("0x0c01"), Share: "0.05"}}

	short, _ := newValidator(10, 200)
	err := short.Validate(context.Background(), Input{Product: buyProduct(10), Quantity: "2", Commissions: commissions})
	if !errors.Is(err, coreerrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	var classified *coreerrors.Error
	if !errors.As(err, &classified) || classified.Message != "Insufficient USDT Balance" {
		t.Fatalf("expected message naming the symbol, got %v", err)
	}

	exact, _ := newValidator(10, 210)
	res, err := exact.Check(context.Background(), Input{Product: buyProduct(10), Quantity: "2", Commissions: commissions})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Split.AmountIn.Int64() != 210 || res.Quantity.Int64() != 2 {
		t.Fatalf("unexpected result amount=%s qty=%s", res.Split.AmountIn, res.Quantity)
	}
}

func TestUnreadableBalanceIsZero(t *testing.T) {
	v := New(router.New(97, productAddr, proxyAddr), &fixedStock{remaining: big.NewInt(5)}, fixedBalance{err: errors.New("rpc down")})
	if err := v.Validate(context.Background(), Input{Product: buyProduct(10), Quantity: "1"}); !errors.Is(err, coreerrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestDonationChecks(t *testing.T) {
	v, _ := newValidator(0, 1000)
	donation := types.DonationProduct{ProductBase: types.ProductBase{ID: big.NewInt(2), Price: big.NewInt(0), Token: usdt}}
	if err := v.Validate(context.Background(), Input{Product: donation, Amount: big.NewInt(5)}); !errors.Is(err, coreerrors.ErrTokenRequired) {
		t.Fatalf("expected token_required, got %v", err)
	}
	token := usdt
	if err := v.Validate(context.Background(), Input{Product: donation, Token: &token}); !errors.Is(err, coreerrors.ErrAmountRequired) {
		t.Fatalf("expected amount_required, got %v", err)
	}
	if err := v.Validate(context.Background(), Input{Product: donation, Token: &token, Amount: big.NewInt(1001)}); !errors.Is(err, coreerrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	res, err := v.Check(context.Background(), Input{Product: donation, Token: &token, Amount: big.NewInt(1000)})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Base.Int64() != 1000 {
		t.Fatalf("unexpected base %s", res.Base)
	}
}

func TestSubscriptionChecks(t *testing.T) {
	v, _ := newValidator(0, 1000)
	sub := types.SubscriptionProduct{ProductBase: types.ProductBase{ID: big.NewInt(3), Price: big.NewInt(300), Token: usdt}, PriceDuration: 30 * 86400}
	cases := []struct {
		name     string
		start    int64
		duration string
		want     error
	}{
		{"no start date", 0, "30", coreerrors.ErrStartDateRequired},
		{"no duration", 1700000000, "", coreerrors.ErrDurationRequired},
		{"zero duration", 1700000000, "0", coreerrors.ErrInvalidDuration},
		{"fractional duration", 1700000000, "1.5", coreerrors.ErrInvalidDuration},
		{"negative duration", 1700000000, "-3", coreerrors.ErrInvalidDuration},
	}
	for _, tc := range cases {
		err := v.Validate(context.Background(), Input{Product: sub, Amount: big.NewInt(300), StartTime: tc.start, Duration: tc.duration})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	res, err := v.Check(context.Background(), Input{Product: sub, Amount: big.NewInt(300), StartTime: 1700000000, Duration: "30"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Duration != 30 {
		t.Fatalf("unexpected duration %d", res.Duration)
	}
}

func TestNoProduct(t *testing.T) {
	v, _ := newValidator(0, 0)
	if err := v.Validate(context.Background(), Input{}); !errors.Is(err, coreerrors.ErrUnsupportedProduct) {
		t.Fatalf("expected unsupported product, got %v", err)
	}
}
