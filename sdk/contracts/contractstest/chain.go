// Package contractstest serves product, token and NFT contract reads from
// memory for tests that drive the purchase flow without a node.
package contractstest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"nftminter/core/types"
	"nftminter/sdk/contracts"
)

// Token is the ERC20 metadata served for a token address.
type Token struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// Troll is the state served for a stake-to-mint NFT contract.
type Troll struct {
	Cap        *big.Int
	Price      *big.Int
	StakeToken common.Address
	Balances   map[common.Address]*big.Int
}

// DiscountRuleTuple mirrors the discount rule tuple for ABI packing.
type DiscountRuleTuple struct {
	Id                  *big.Int
	DiscountApplication uint8
	StartTime           *big.Int
	EndTime             *big.Int
	MinDuration         *big.Int
	DiscountPercentage  *big.Int
	FixedPrice          *big.Int
}

// Chain answers eth_call requests for one product contract plus any number
// of ERC20 tokens and NFT contracts.
type Chain struct {
	Product common.Address

	mu       sync.Mutex
	products map[string]types.RawProduct
	rules    map[string][]DiscountRuleTuple
	tokens   map[common.Address]Token
	trolls   map[common.Address]*Troll
	calls    int
}

// NewChain creates a chain with the product contract at product.
func NewChain(product common.Address) *Chain {
	return &Chain{
		Product:  product,
		products: make(map[string]types.RawProduct),
		rules:    make(map[string][]DiscountRuleTuple),
		tokens:   make(map[common.Address]Token),
		trolls:   make(map[common.Address]*Troll),
	}
}

// SetProduct stores raw under its product id.
func (c *Chain) SetProduct(raw types.RawProduct) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[raw.ProductID.String()] = raw
}

// SetStock overwrites the remaining quantity of a product.
func (c *Chain) SetStock(id *big.Int, quantity int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw := c.products[id.String()]
	raw.Quantity = big.NewInt(quantity)
	c.products[id.String()] = raw
}

// SetDiscountRules stores the discount rules of a product.
func (c *Chain) SetDiscountRules(id *big.Int, rules []types.DiscountRule) {
	tuples := make([]DiscountRuleTuple, 0, len(rules))
	for _, rule := range rules {
		pct := big.NewInt(0)
		if rule.DiscountPercentage != nil {
			pct = new(big.Int).Quo(rule.DiscountPercentage.Num(), rule.DiscountPercentage.Denom())
		}
		fixed := big.NewInt(0)
		if rule.FixedPrice != nil {
			fixed = new(big.Int).Set(rule.FixedPrice)
		}
		tuples = append(tuples, DiscountRuleTuple{
			Id:                  new(big.Int).SetUint64(rule.ID),
			DiscountApplication: uint8(rule.Application),
			StartTime:           big.NewInt(rule.StartTime),
			EndTime:             big.NewInt(rule.EndTime),
			MinDuration:         new(big.Int).SetUint64(rule.MinDuration),
			DiscountPercentage:  pct,
			FixedPrice:          fixed,
		})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[id.String()] = tuples
}

// SetToken registers ERC20 metadata for address.
func (c *Chain) SetToken(address common.Address, token Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[address] = token
}

// SetTroll registers an NFT contract at address.
func (c *Chain) SetTroll(address common.Address, troll *Troll) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if troll.Balances == nil {
		troll.Balances = make(map[common.Address]*big.Int)
	}
	c.trolls[address] = troll
}

// Calls returns how many reads were served.
func (c *Chain) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Call serves an eth_call against to with calldata data.
func (c *Chain) Call(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("contractstest: short calldata")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	switch {
	case to == c.Product:
		return c.productCall(data)
	case c.trolls[to] != nil:
		return c.trollCall(c.trolls[to], data)
	default:
		if token, ok := c.tokens[to]; ok {
			return tokenCall(token, data)
		}
	}
	return nil, fmt.Errorf("contractstest: no contract at %s", to.Hex())
}

func (c *Chain) productCall(data []byte) ([]byte, error) {
	method, args, err := decode(contracts.ProductInfoABI(), data)
	if err != nil {
		return nil, err
	}
	id, _ := args[0].(*big.Int)
	if id == nil {
		return nil, fmt.Errorf("contractstest: %s without product id", method.Name)
	}
	switch method.Name {
	case "products":
		raw, ok := c.products[id.String()]
		if !ok {
			return nil, fmt.Errorf("execution reverted: product %s not found", id)
		}
		return method.Outputs.Pack(raw.ProductType, raw.ProductID, raw.URI, orZero(raw.Quantity), orZero(raw.Price),
			orZero(raw.MaxQuantity), orZero(raw.MaxPrice), raw.Token.Address, raw.Status, orZero(raw.PriceDuration))
	case "getDiscountRules":
		rules := c.rules[id.String()]
		if rules == nil {
			rules = []DiscountRuleTuple{}
		}
		return method.Outputs.Pack(rules)
	}
	return nil, fmt.Errorf("contractstest: unsupported product call %s", method.Name)
}

func (c *Chain) trollCall(troll *Troll, data []byte) ([]byte, error) {
	method, args, err := decode(contracts.TrollNFTABI(), data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "cap":
		return method.Outputs.Pack(orZero(troll.Cap))
	case "minimumStake":
		return method.Outputs.Pack(orZero(troll.Price))
	case "stakeToken":
		return method.Outputs.Pack(troll.StakeToken)
	case "balanceOf":
		owner, _ := args[0].(common.Address)
		return method.Outputs.Pack(orZero(troll.Balances[owner]))
	}
	return nil, fmt.Errorf("contractstest: unsupported nft call %s", method.Name)
}

func tokenCall(token Token, data []byte) ([]byte, error) {
	method, _, err := decode(contracts.ERC20ABI(), data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "symbol":
		return method.Outputs.Pack(token.Symbol)
	case "name":
		return method.Outputs.Pack(token.Name)
	case "decimals":
		return method.Outputs.Pack(token.Decimals)
	}
	return nil, fmt.Errorf("contractstest: unsupported token call %s", method.Name)
}

func decode(contract abi.ABI, data []byte) (*abi.Method, []any, error) {
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("contractstest: unpack %s: %w", method.Name, err)
	}
	return method, args, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
