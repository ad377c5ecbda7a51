package contracts

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"nftminter/core/types"
)

type stubCaller struct {
	responses map[string][]byte
	calls     []ethereum.CallMsg
}

func (s *stubCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	s.calls = append(s.calls, msg)
	return s.responses[hex.EncodeToString(msg.Data[:4])], nil
}

func respond(t *testing.T, s *stubCaller, contract abi.ABI, method string, values ...any) {
	t.Helper()
	out, err := contract.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	if s.responses == nil {
		s.responses = make(map[string][]byte)
	}
	s.responses[hex.EncodeToString(contract.Methods[method].ID)] = out
}

func TestProductsNarrowsTuple(t *testing.T) {
	caller := &stubCaller{}
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	respond(t, caller, productInfoABI, "products",
		uint8(0), big.NewInt(7), "ipfs://x", big.NewInt(3), big.NewInt(100),
		big.NewInt(10), big.NewInt(0), token, uint8(1), big.NewInt(0))

	info := NewProductInfo(common.HexToAddress("0x01"), caller)
	raw, err := info.Products(context.Background(), 97, big.NewInt(7))
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	product, err := raw.Narrow()
	if err != nil {
		t.Fatalf("narrow: %v", err)
	}
	buy, ok := product.(types.BuyProduct)
	if !ok {
		t.Fatalf("expected buy product, got %T", product)
	}
	if buy.Quantity.Int64() != 3 || buy.MaxQuantity.Int64() != 10 || buy.Price.Int64() != 100 {
		t.Fatalf("unexpected product %+v", buy)
	}
	if buy.Token.Address != token || buy.Token.ChainID != 97 {
		t.Fatalf("unexpected token %+v", buy.Token)
	}
	if len(caller.calls) != 1 || *caller.calls[0].To != info.Address() {
		t.Fatalf("expected one call to the product contract")
	}
}

func TestDiscountRulesConvertsTuples(t *testing.T) {
	caller := &stubCaller{}
	rules := []discountRuleTuple{
		{Id: big.NewInt(1), DiscountApplication: 2, StartTime: big.NewInt(0), EndTime: big.NewInt(0),
			MinDuration: big.NewInt(86400), DiscountPercentage: big.NewInt(10), FixedPrice: big.NewInt(0)},
		{Id: big.NewInt(2), DiscountApplication: 1, StartTime: big.NewInt(5), EndTime: big.NewInt(50),
			MinDuration: big.NewInt(0), DiscountPercentage: big.NewInt(0), FixedPrice: big.NewInt(90)},
	}
	respond(t, caller, productInfoABI, "getDiscountRules", rules)

	got, err := NewProductInfo(common.HexToAddress("0x01"), caller).DiscountRules(context.Background(), big.NewInt(1))
	if err != nil {
		t.Fatalf("discount rules: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(got))
	}
	if got[0].ID != 1 || got[0].Application != types.DiscountBoth || got[0].MinDuration != 86400 {
		t.Fatalf("unexpected first rule %+v", got[0])
	}
	if got[0].DiscountPercentage.Cmp(big.NewRat(10, 1)) != 0 {
		t.Fatalf("unexpected percentage %s", got[0].DiscountPercentage)
	}
	if got[1].Application != types.DiscountRenewalOnly || got[1].FixedPrice.Int64() != 90 || got[1].EndTime != 50 {
		t.Fatalf("unexpected second rule %+v", got[1])
	}
}

func TestCallWithoutCallerFails(t *testing.T) {
	if _, err := NewERC20(common.HexToAddress("0x02"), nil).BalanceOf(context.Background(), common.Address{}); err == nil {
		t.Fatalf("expected error without caller")
	}
}

func TestERC20Reads(t *testing.T) {
	caller := &stubCaller{}
	respond(t, caller, erc20ABI, "balanceOf", big.NewInt(210))
	respond(t, caller, erc20ABI, "allowance", big.NewInt(5))
	respond(t, caller, erc20ABI, "symbol", "USDT")
	respond(t, caller, erc20ABI, "decimals", uint8(18))

	token := NewERC20(common.HexToAddress("0x02"), caller)
	ctx := context.Background()
	if bal, err := token.BalanceOf(ctx, common.Address{}); err != nil || bal.Int64() != 210 {
		t.Fatalf("balance: %v %v", bal, err)
	}
	if allowance, err := token.Allowance(ctx, common.Address{}, common.Address{}); err != nil || allowance.Int64() != 5 {
		t.Fatalf("allowance: %v %v", allowance, err)
	}
	if sym, err := token.Symbol(ctx); err != nil || sym != "USDT" {
		t.Fatalf("symbol: %q %v", sym, err)
	}
	if dec, err := token.Decimals(ctx); err != nil || dec != 18 {
		t.Fatalf("decimals: %d %v", dec, err)
	}
}

func TestPackTokenInRoundTrip(t *testing.T) {
	proxy := NewProxy(common.HexToAddress("0x03"))
	target := common.HexToAddress("0x01")
	in := TokensIn{
		Token:  common.HexToAddress("0x02"),
		Amount: big.NewInt(210),
		Commissions: Tuples([]types.Commission{
			{To: common.HexToAddress("0x04"), Amount: big.NewInt(10)},
		}),
	}
	inner := []byte{0xde, 0xad, 0xbe, 0xef}
	data, err := proxy.PackTokenIn(target, in, inner)
	if err != nil {
		t.Fatalf("pack tokenIn: %v", err)
	}
	method := proxyABI.Methods["tokenIn"]
	if !bytes.Equal(data[:4], method.ID) {
		t.Fatalf("unexpected selector %x", data[:4])
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if values[0].(common.Address) != target {
		t.Fatalf("unexpected target %v", values[0])
	}
	decoded := reflect.ValueOf(values[1])
	if decoded.FieldByName("Amount").Interface().(*big.Int).Int64() != 210 || decoded.FieldByName("DirectTransfer").Bool() {
		t.Fatalf("unexpected tokensIn %+v", values[1])
	}
	commissions := decoded.FieldByName("Commissions")
	if commissions.Len() != 1 || commissions.Index(0).FieldByName("Amount").Interface().(*big.Int).Int64() != 10 {
		t.Fatalf("unexpected commissions %+v", commissions.Interface())
	}
	if !bytes.Equal(values[2].([]byte), inner) {
		t.Fatalf("inner call data not preserved")
	}
}

func TestPackEthInAcceptsEmptyCommissions(t *testing.T) {
	if _, err := NewProxy(common.HexToAddress("0x03")).PackEthIn(common.HexToAddress("0x01"), nil, nil); err != nil {
		t.Fatalf("pack ethIn: %v", err)
	}
}

func TestProxySelectors(t *testing.T) {
	product := NewProductInfo(common.HexToAddress("0x00000000000000000000000000000000000000AB"), nil)
	selectors, err := ProxySelectors(product)
	if err != nil {
		t.Fatalf("selectors: %v", err)
	}
	if len(selectors) != len(ProxiedFunctions) {
		t.Fatalf("expected %d selectors, got %d", len(ProxiedFunctions), len(selectors))
	}
	for i, sel := range selectors {
		if !strings.HasPrefix(sel, "0x00000000000000000000000000000000000000ab") {
			t.Fatalf("selector %d missing lower-case address prefix: %s", i, sel)
		}
		if len(sel) != 42+8 {
			t.Fatalf("selector %d has length %d", i, len(sel))
		}
		want := hex.EncodeToString(productInfoABI.Methods[ProxiedFunctions[i]].ID)
		if !strings.HasSuffix(sel, want) {
			t.Fatalf("selector %d: want suffix %s got %s", i, want, sel)
		}
	}
}

func TestParseNewProduct(t *testing.T) {
	address := common.HexToAddress("0x01")
	info := NewProductInfo(address, nil)
	event := productInfoABI.Events["NewProduct"].ID
	receipt := &gethtypes.Receipt{Logs: []*gethtypes.Log{
		{Address: address, Topics: []common.Hash{event, common.BigToHash(big.NewInt(42)), common.Hash{}}},
		{Address: common.HexToAddress("0x09"), Topics: []common.Hash{event, common.BigToHash(big.NewInt(1))}},
		{Address: address, Topics: []common.Hash{common.Hash{1}, common.BigToHash(big.NewInt(2))}},
	}}
	ids := info.ParseNewProduct(receipt)
	if len(ids) != 1 || ids[0].Int64() != 42 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if info.ParseNewProduct(nil) != nil {
		t.Fatalf("nil receipt should yield no ids")
	}
}

func TestPackSubscribeEncodesRuleID(t *testing.T) {
	info := NewProductInfo(common.HexToAddress("0x01"), nil)
	data, err := info.PackSubscribe(common.HexToAddress("0x05"), common.Address{}, big.NewInt(3), 1000, 86400, 4)
	if err != nil {
		t.Fatalf("pack subscribe: %v", err)
	}
	values, err := productInfoABI.Methods["subscribe"].Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if values[5].(*big.Int).Int64() != 4 || values[4].(*big.Int).Int64() != 86400 {
		t.Fatalf("unexpected values %v", values)
	}
}

func TestTrollNFTReads(t *testing.T) {
	caller := &stubCaller{}
	stake := common.HexToAddress("0x0c")
	respond(t, caller, trollNFTABI, "cap", big.NewInt(4))
	respond(t, caller, trollNFTABI, "minimumStake", big.NewInt(1000))
	respond(t, caller, trollNFTABI, "stakeToken", stake)

	nft := NewTrollNFT(common.HexToAddress("0x0b"), caller)
	ctx := context.Background()
	if c, err := nft.Cap(ctx); err != nil || c.Int64() != 4 {
		t.Fatalf("cap: %v %v", c, err)
	}
	if p, err := nft.Price(ctx); err != nil || p.Int64() != 1000 {
		t.Fatalf("price: %v %v", p, err)
	}
	if tok, err := nft.StakeToken(ctx); err != nil || tok != stake {
		t.Fatalf("stake token: %v %v", tok, err)
	}
}
