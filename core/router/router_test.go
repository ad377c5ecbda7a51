package router

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftminter/core/types"
)

var (
	productAddr = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	proxyAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	tokenAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a03")
	payer       = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	referrer    = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	wallet1     = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	wallet2     = common.HexToAddress("0x0000000000000000000000000000000000000c02")
)

func selector(sig string) []byte { return gethcrypto.Keccak256([]byte(sig))[:4] }

func buyProduct(token common.Address) types.BuyProduct {
	return types.BuyProduct{
		ProductBase: types.ProductBase{
			ID:    big.NewInt(1),
			Price: big.NewInt(100),
			Token: types.Token{ChainID: 97, Address: token, Symbol: "USDT", Decimals: 18},
		},
		Quantity:    big.NewInt(10),
		MaxQuantity: big.NewInt(10),
	}
}

func TestRouteDirectWithoutCommissions(t *testing.T) {
	r := New(97, productAddr, proxyAddr)
	route, err := r.Route(Request{Action: ActionBuy, Product: buyProduct(tokenAddr), Payer: payer, Quantity: big.NewInt(2)})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.Path != PathDirect || route.To != productAddr || route.Spender != productAddr {
		t.Fatalf("unexpected route %+v", route)
	}
	if route.AmountIn.Int64() != 200 || route.Value.Sign() != 0 {
		t.Fatalf("unexpected amounts in=%s value=%s", route.AmountIn, route.Value)
	}
	if !bytes.Equal(route.Data[:4], selector("buy(uint256,uint256,uint256,address)")) {
		t.Fatalf("expected buy selector, got %x", route.Data[:4])
	}
}

func TestRouteIgnoresZeroAndForeignCommissions(t *testing.T) {
	r := New(97, productAddr, proxyAddr)
	cases := map[string][]types.CommissionInfo{
		"zero share":     {{ChainID: 97, WalletAddress: wallet1, Share: "0"}},
		"other chain":    {{ChainID: 56, WalletAddress: wallet1, Share: "0.1"}},
		"floors to zero": {{ChainID: 97, WalletAddress: wallet1, Share: "0.001"}},
	}
	for name, commissions := range cases {
		route, err := r.Route(Request{Action: ActionBuy, Product: buyProduct(tokenAddr), Payer: payer, Quantity: big.NewInt(2), Commissions: commissions})
		if err != nil {
			t.Fatalf("%s: route: %v", name, err)
		}
		if route.Path != PathDirect {
			t.Fatalf("%s: expected direct route, got %s", name, route.Path)
		}
	}
}

func TestRouteProxyForTokenWithCommission(t *testing.T) {
	r := New(97, productAddr, proxyAddr)
	route, err := r.Route(Request{
		Action:      ActionBuy,
		Product:     buyProduct(tokenAddr),
		Payer:       payer,
		Quantity:    big.NewInt(2),
		Commissions: []types.CommissionInfo{{ChainID: 97, WalletAddress: wallet1, Share: "0.05"}},
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.Path != PathProxy || route.To != proxyAddr || route.Spender != proxyAddr {
		t.Fatalf("unexpected route %+v", route)
	}
	if route.AmountIn.Int64() != 210 || route.Split.Total.Int64() != 10 {
		t.Fatalf("expected 210 with 10 commission, got %s / %s", route.AmountIn, route.Split.Total)
	}
	if !bytes.Equal(route.Data[:4], selector("tokenIn(address,(address,uint256,bool,(address,uint256)[]),bytes)")) {
		t.Fatalf("expected tokenIn selector, got %x", route.Data[:4])
	}
	if !bytes.Equal(route.Inner[:4], selector("buy(uint256,uint256,uint256,address)")) {
		t.Fatalf("inner call should be buy, got %x", route.Inner[:4])
	}
	if !bytes.Contains(route.Data, route.Inner) {
		t.Fatalf("proxy payload must embed the inner call")
	}
}

func TestRouteProxyManyEntriesSameDecision(t *testing.T) {
	r := New(97, productAddr, proxyAddr)
	route, err := r.Route(Request{
		Action:   ActionBuy,
		Product:  buyProduct(tokenAddr),
		Payer:    payer,
		Quantity: big.NewInt(2),
		Commissions: []types.CommissionInfo{
			{ChainID: 97, WalletAddress: wallet1, Share: "0"},
			{ChainID: 97, WalletAddress: wallet2, Share: "0.01"},
		},
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.Path != PathProxy || len(route.Split.Commissions) != 2 {
		t.Fatalf("expected proxy with both entries, got %s / %d", route.Path, len(route.Split.Commissions))
	}
}

func TestRouteNative(t *testing.T) {
	r := New(97, productAddr, proxyAddr)
	direct, err := r.Route(Request{Action: ActionBuy, Product: buyProduct(common.Address{}), Payer: payer, Quantity: big.NewInt(3)})
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	if !direct.Native() || direct.Value.Int64() != 300 || !bytes.Equal(direct.Data[:4], selector("buyEth(uint256,uint256,address)")) {
		t.Fatalf("unexpected native direct route %+v", direct)
	}

	proxied, err := r.Route(Request{
		Action:      ActionBuy,
		Product:     buyProduct(common.Address{}),
		Payer:       payer,
		Quantity:    big.NewInt(3),
		Commissions: []types.CommissionInfo{{ChainID: 97, WalletAddress: wallet1, Share: "0.1"}},
	})
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	if proxied.Value.Int64() != 330 || !bytes.Equal(proxied.Data[:4], selector("ethIn(address,(address,uint256)[],bytes)")) {
		t.Fatalf("unexpected native proxy route value=%s selector=%x", proxied.Value, proxied.Data[:4])
	}
}

func TestRouteDonation(t *testing.T) {
	r := New(97, productAddr, proxyAddr)
	product := types.DonationProduct{ProductBase: types.ProductBase{ID: big.NewInt(4), Price: big.NewInt(0),
		Token: types.Token{ChainID: 97, Address: tokenAddr}}, ToEveryone: true}
	route, err := r.Route(Request{Action: ActionDonate, Product: product, Payer: payer, Recipient: wallet2, Amount: big.NewInt(50)})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.AmountIn.Int64() != 50 || !bytes.Equal(route.Data[:4], selector("donate(address,address,uint256,uint256)")) {
		t.Fatalf("unexpected donation route %+v", route)
	}
}

func TestRouteSubscriptionCarriesRuleID(t *testing.T) {
	r := New(97, productAddr, proxyAddr)
	product := types.SubscriptionProduct{ProductBase: types.ProductBase{ID: big.NewInt(5), Price: big.NewInt(300),
		Token: types.Token{ChainID: 97, Address: tokenAddr}}, PriceDuration: 30 * 86400}
	sub, err := r.Route(Request{Action: ActionSubscribe, Product: product, Payer: payer, Referrer: referrer,
		Amount: big.NewInt(135), StartTime: 1000, Duration: 15 * 86400, DiscountRuleID: 3})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !bytes.Equal(sub.Data[:4], selector("subscribe(address,address,uint256,uint256,uint256,uint256)")) {
		t.Fatalf("unexpected selector %x", sub.Data[:4])
	}
	if new(big.Int).SetBytes(sub.Data[len(sub.Data)-32:]).Uint64() != 3 {
		t.Fatalf("discount rule id not encoded last")
	}
	renew, err := r.Route(Request{Action: ActionRenew, Product: product, Payer: payer, Amount: big.NewInt(135), Duration: 86400})
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if !bytes.Equal(renew.Data[:4], selector("renewSubscription(address,uint256,uint256,uint256)")) {
		t.Fatalf("unexpected selector %x", renew.Data[:4])
	}
}

func TestRouteErrors(t *testing.T) {
	if _, err := New(97, productAddr, proxyAddr).Route(Request{Action: ActionBuy}); !errors.Is(err, ErrProductRequired) {
		t.Fatalf("expected ErrProductRequired, got %v", err)
	}
	noProxy := New(97, productAddr, common.Address{})
	_, err := noProxy.Route(Request{Action: ActionBuy, Product: buyProduct(tokenAddr), Quantity: big.NewInt(1),
		Commissions: []types.CommissionInfo{{ChainID: 97, WalletAddress: wallet1, Share: "0.5"}}})
	if !errors.Is(err, ErrProxyNotConfigured) {
		t.Fatalf("expected ErrProxyNotConfigured, got %v", err)
	}
	if _, err := New(97, productAddr, proxyAddr).Route(Request{Action: "gift", Product: buyProduct(tokenAddr)}); err == nil {
		t.Fatalf("expected unsupported action error")
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 256)
	product := buyProduct(tokenAddr)
	product.Price = huge
	if _, err := New(97, productAddr, proxyAddr).Route(Request{Action: ActionBuy, Product: product, Quantity: big.NewInt(1)}); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
}

func TestSpenderFollowsSplit(t *testing.T) {
	r := New(97, productAddr, proxyAddr)
	none, _ := r.Split(big.NewInt(200), nil)
	if r.Spender(none) != productAddr {
		t.Fatalf("expected product contract as spender")
	}
	some, _ := r.Split(big.NewInt(200), []types.CommissionInfo{{ChainID: 97, WalletAddress: wallet1, Share: "0.05"}})
	if r.Spender(some) != proxyAddr {
		t.Fatalf("expected proxy as spender")
	}
}

func TestActionFor(t *testing.T) {
	if ActionFor(types.ProductTypeBuy, false) != ActionBuy ||
		ActionFor(types.ProductTypeSubscription, false) != ActionSubscribe ||
		ActionFor(types.ProductTypeSubscription, true) != ActionRenew ||
		ActionFor(types.ProductTypeDonateToOwner, false) != ActionDonate {
		t.Fatalf("unexpected action mapping")
	}
}
