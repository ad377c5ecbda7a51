package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"nftminter/core/types"
)

// ProductInfo binds the product contract.
type ProductInfo struct {
	boundContract
}

// NewProductInfo binds the product contract deployed at address.
func NewProductInfo(address common.Address, caller Caller) *ProductInfo {
	return &ProductInfo{boundContract{address: address, abi: productInfoABI, caller: caller}}
}

// Products reads the product tuple. The returned token only carries the chain
// id and address; callers resolve metadata through the token registry.
func (p *ProductInfo) Products(ctx context.Context, chainID uint64, productID *big.Int) (types.RawProduct, error) {
	values, err := p.call(ctx, "products", productID)
	if err != nil {
		return types.RawProduct{}, err
	}
	if len(values) != 10 {
		return types.RawProduct{}, fmt.Errorf("products: unexpected output arity %d", len(values))
	}
	raw := types.RawProduct{}
	var ok bool
	if raw.ProductType, ok = values[0].(uint8); !ok {
		return raw, fmt.Errorf("products: productType type %T", values[0])
	}
	if raw.ProductID, ok = values[1].(*big.Int); !ok {
		return raw, fmt.Errorf("products: productId type %T", values[1])
	}
	raw.URI, _ = values[2].(string)
	raw.Quantity, _ = values[3].(*big.Int)
	raw.Price, _ = values[4].(*big.Int)
	raw.MaxQuantity, _ = values[5].(*big.Int)
	raw.MaxPrice, _ = values[6].(*big.Int)
	tokenAddr, ok := values[7].(common.Address)
	if !ok {
		return raw, fmt.Errorf("products: token type %T", values[7])
	}
	raw.Token = types.Token{ChainID: chainID, Address: tokenAddr}
	raw.Status, _ = values[8].(uint8)
	raw.PriceDuration, _ = values[9].(*big.Int)
	return raw, nil
}

type discountRuleTuple struct {
	Id                  *big.Int
	DiscountApplication uint8
	StartTime           *big.Int
	EndTime             *big.Int
	MinDuration         *big.Int
	DiscountPercentage  *big.Int
	FixedPrice          *big.Int
}

// DiscountRules reads the discount rules attached to a subscription product.
func (p *ProductInfo) DiscountRules(ctx context.Context, productID *big.Int) ([]types.DiscountRule, error) {
	values, err := p.call(ctx, "getDiscountRules", productID)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getDiscountRules: unexpected output arity %d", len(values))
	}
	tuples := *abi.ConvertType(values[0], new([]discountRuleTuple)).(*[]discountRuleTuple)
	rules := make([]types.DiscountRule, 0, len(tuples))
	for _, tuple := range tuples {
		rules = append(rules, types.DiscountRule{
			ID:                 uint64OrZero(tuple.Id),
			Application:        types.DiscountApplication(tuple.DiscountApplication),
			StartTime:          int64(uint64OrZero(tuple.StartTime)),
			EndTime:            int64(uint64OrZero(tuple.EndTime)),
			MinDuration:        uint64OrZero(tuple.MinDuration),
			DiscountPercentage: ratOrZero(tuple.DiscountPercentage),
			FixedPrice:         intOrZero(tuple.FixedPrice),
		})
	}
	return rules, nil
}

// PackBuy encodes buy(productId, quantity, amountIn, to).
func (p *ProductInfo) PackBuy(productID, quantity, amountIn *big.Int, to common.Address) ([]byte, error) {
	return p.abi.Pack("buy", productID, quantity, amountIn, to)
}

// PackBuyEth encodes buyEth(productId, quantity, to).
func (p *ProductInfo) PackBuyEth(productID, quantity *big.Int, to common.Address) ([]byte, error) {
	return p.abi.Pack("buyEth", productID, quantity, to)
}

// PackDonate encodes donate(donor, donee, productId, amountIn).
func (p *ProductInfo) PackDonate(donor, donee common.Address, productID, amountIn *big.Int) ([]byte, error) {
	return p.abi.Pack("donate", donor, donee, productID, amountIn)
}

// PackDonateEth encodes donateEth(donor, donee, productId).
func (p *ProductInfo) PackDonateEth(donor, donee common.Address, productID *big.Int) ([]byte, error) {
	return p.abi.Pack("donateEth", donor, donee, productID)
}

// PackSubscribe encodes subscribe(to, referrer, productId, startTime, duration, discountRuleId).
func (p *ProductInfo) PackSubscribe(to, referrer common.Address, productID *big.Int, startTime, duration, discountRuleID uint64) ([]byte, error) {
	return p.abi.Pack("subscribe", to, referrer, productID,
		new(big.Int).SetUint64(startTime), new(big.Int).SetUint64(duration), new(big.Int).SetUint64(discountRuleID))
}

// PackRenewSubscription encodes renewSubscription(to, productId, duration, discountRuleId).
func (p *ProductInfo) PackRenewSubscription(to common.Address, productID *big.Int, duration, discountRuleID uint64) ([]byte, error) {
	return p.abi.Pack("renewSubscription", to, productID, new(big.Int).SetUint64(duration), new(big.Int).SetUint64(discountRuleID))
}

// NewProductParams describes a product to create.
type NewProductParams struct {
	Type        types.ProductType
	URI         string
	Quantity    *big.Int
	MaxQuantity *big.Int
	MaxPrice    *big.Int
	Price       *big.Int
	Token       common.Address
}

// PackNewProduct encodes newProduct for the supplied parameters.
func (p *ProductInfo) PackNewProduct(params NewProductParams) ([]byte, error) {
	return p.abi.Pack("newProduct", params.Type.Code(), params.URI,
		intOrZero(params.Quantity), intOrZero(params.MaxQuantity), intOrZero(params.MaxPrice),
		intOrZero(params.Price), params.Token)
}

// ParseNewProduct extracts the created product ids from a receipt.
func (p *ProductInfo) ParseNewProduct(receipt *gethtypes.Receipt) []*big.Int {
	return p.indexedIDs(receipt, "NewProduct", 1)
}

// ParseBuy extracts the purchased product ids from a receipt.
func (p *ProductInfo) ParseBuy(receipt *gethtypes.Receipt) []*big.Int {
	return p.indexedIDs(receipt, "Buy", 3)
}

func (p *ProductInfo) indexedIDs(receipt *gethtypes.Receipt, event string, topic int) []*big.Int {
	if receipt == nil {
		return nil
	}
	signature := p.abi.Events[event].ID
	var ids []*big.Int
	for _, log := range receipt.Logs {
		if log == nil || log.Address != p.address {
			continue
		}
		if len(log.Topics) <= topic || log.Topics[0] != signature {
			continue
		}
		ids = append(ids, new(big.Int).SetBytes(log.Topics[topic].Bytes()))
	}
	return ids
}

// Selector returns the 4-byte selector of a product contract method.
func (p *ProductInfo) Selector(method string) ([]byte, error) {
	m, ok := p.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown method %s", method)
	}
	return m.ID, nil
}

func uint64OrZero(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

func intOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func ratOrZero(v *big.Int) *big.Rat {
	if v == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetInt(v)
}
