package router

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"nftminter/core/amount"
	"nftminter/core/types"
	"nftminter/sdk/contracts"
)

var (
	// ErrProductRequired is returned when no product snapshot is supplied.
	ErrProductRequired = errors.New("router: product required")
	// ErrAmountOverflow is returned when an amount exceeds uint256.
	ErrAmountOverflow = errors.New("router: amount exceeds uint256")
	// ErrProxyNotConfigured is returned when commissions apply but no proxy is deployed.
	ErrProxyNotConfigured = errors.New("router: proxy contract not configured")
)

// Action names the product contract entry point family.
type Action string

const (
	ActionBuy       Action = "buy"
	ActionDonate    Action = "donate"
	ActionSubscribe Action = "subscribe"
	ActionRenew     Action = "renew"
)

// ActionFor returns the default action for a product kind.
func ActionFor(kind types.ProductType, renewal bool) Action {
	switch {
	case kind == types.ProductTypeBuy:
		return ActionBuy
	case kind == types.ProductTypeSubscription && renewal:
		return ActionRenew
	case kind == types.ProductTypeSubscription:
		return ActionSubscribe
	default:
		return ActionDonate
	}
}

// Path identifies the contract that receives the transaction.
type Path string

const (
	PathDirect Path = "direct"
	PathProxy  Path = "proxy"
)

// Request carries everything needed to assemble a purchase transaction.
// Amount is the base amount for donations and subscriptions; buys derive it
// from the product price and Quantity.
type Request struct {
	Action         Action
	Product        types.Product
	Token          types.Token
	Payer          common.Address
	Quantity       *big.Int
	Amount         *big.Int
	Recipient      common.Address
	Referrer       common.Address
	StartTime      int64
	Duration       uint64
	DiscountRuleID uint64
	Commissions    []types.CommissionInfo
}

// Route is the assembled transaction and the amounts behind it.
type Route struct {
	Path     Path
	To       common.Address
	Spender  common.Address
	Data     []byte
	Inner    []byte
	Value    *big.Int
	AmountIn *big.Int
	Split    amount.Split
}

// Native reports whether the route pays in the native currency.
func (r Route) Native() bool {
	return r.Value != nil && r.Value.Sign() > 0
}

// Router assembles direct or proxied purchase calls for one chain.
type Router struct {
	chainID uint64
	product *contracts.ProductInfo
	proxy   *contracts.Proxy
}

// New binds the router to the product and proxy contracts on chainID. The
// proxy address may be zero when commissions are never used.
func New(chainID uint64, productAddr, proxyAddr common.Address) *Router {
	r := &Router{chainID: chainID, product: contracts.NewProductInfo(productAddr, nil)}
	if proxyAddr != (common.Address{}) {
		r.proxy = contracts.NewProxy(proxyAddr)
	}
	return r
}

// ChainID returns the chain the router targets.
func (r *Router) ChainID() uint64 { return r.chainID }

// ProductContract returns the product contract address.
func (r *Router) ProductContract() common.Address { return r.product.Address() }

// Spender returns the contract that pulls tokens for split: the proxy when
// any commission is owed, else the product contract.
func (r *Router) Spender(split amount.Split) common.Address {
	if split.HasCommission() && r.proxy != nil {
		return r.proxy.Address()
	}
	return r.product.Address()
}

// Split computes the commission split of base for the router's chain.
func (r *Router) Split(base *big.Int, commissions []types.CommissionInfo) (amount.Split, error) {
	return amount.SplitCommissions(base, types.FilterCommissions(commissions, r.chainID))
}

// BaseAmount returns the pre-commission amount of req.
func BaseAmount(req Request) (*big.Int, error) {
	if req.Product == nil {
		return nil, ErrProductRequired
	}
	if req.Action == ActionBuy {
		quantity := req.Quantity
		if quantity == nil {
			quantity = big.NewInt(1)
		}
		return amount.BaseAmount(req.Product.Base().Price, quantity), nil
	}
	if req.Amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(req.Amount), nil
}

// Route assembles the transaction for req.
func (r *Router) Route(req Request) (Route, error) {
	base, err := BaseAmount(req)
	if err != nil {
		return Route{}, err
	}
	split, err := r.Split(base, req.Commissions)
	if err != nil {
		return Route{}, fmt.Errorf("router: %w", err)
	}
	if !amount.FitsUint256(split.AmountIn) {
		return Route{}, ErrAmountOverflow
	}
	token := req.Token
	if token == (types.Token{}) {
		token = req.Product.Base().Token
	}
	native := token.IsNative()

	inner, err := r.inner(req, base, native)
	if err != nil {
		return Route{}, err
	}
	route := Route{
		Inner:    inner,
		AmountIn: new(big.Int).Set(split.AmountIn),
		Split:    split,
		Value:    big.NewInt(0),
	}
	if !split.HasCommission() {
		route.Path = PathDirect
		route.To = r.product.Address()
		route.Spender = r.product.Address()
		route.Data = inner
		if native {
			route.Value = new(big.Int).Set(base)
		}
		return route, nil
	}
	if r.proxy == nil {
		return Route{}, ErrProxyNotConfigured
	}
	route.Path = PathProxy
	route.To = r.proxy.Address()
	route.Spender = r.proxy.Address()
	tuples := contracts.Tuples(split.Commissions)
	if native {
		route.Data, err = r.proxy.PackEthIn(r.product.Address(), tuples, inner)
		route.Value = new(big.Int).Set(split.AmountIn)
	} else {
		route.Data, err = r.proxy.PackTokenIn(r.product.Address(), contracts.TokensIn{
			Token:          token.Address,
			Amount:         new(big.Int).Set(split.AmountIn),
			DirectTransfer: false,
			Commissions:    tuples,
		}, inner)
	}
	if err != nil {
		return Route{}, fmt.Errorf("router: pack proxy call: %w", err)
	}
	return route, nil
}

func (r *Router) inner(req Request, base *big.Int, native bool) ([]byte, error) {
	id := req.Product.Base().ID
	to := req.Recipient
	if to == (common.Address{}) {
		to = req.Payer
	}
	var (
		data []byte
		err  error
	)
	switch req.Action {
	case ActionBuy:
		quantity := req.Quantity
		if quantity == nil {
			quantity = big.NewInt(1)
		}
		if native {
			data, err = r.product.PackBuyEth(id, quantity, to)
		} else {
			data, err = r.product.PackBuy(id, quantity, base, to)
		}
	case ActionDonate:
		if native {
			data, err = r.product.PackDonateEth(req.Payer, to, id)
		} else {
			data, err = r.product.PackDonate(req.Payer, to, id, base)
		}
	case ActionSubscribe:
		data, err = r.product.PackSubscribe(to, req.Referrer, id, uint64(max(req.StartTime, 0)), req.Duration, req.DiscountRuleID)
	case ActionRenew:
		data, err = r.product.PackRenewSubscription(to, id, req.Duration, req.DiscountRuleID)
	default:
		return nil, fmt.Errorf("router: unsupported action %q", req.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("router: pack %s: %w", req.Action, err)
	}
	return data, nil
}
