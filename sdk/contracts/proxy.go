package contracts

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"nftminter/core/types"
)

// ProxiedFunctions lists the product contract entry points the commission
// proxy is permitted to forward.
var ProxiedFunctions = []string{"buy", "buyEth", "donate", "donateEth", "subscribe", "renewSubscription"}

// CommissionTuple is the (to, amount) pair consumed by the proxy.
type CommissionTuple struct {
	To     common.Address
	Amount *big.Int
}

// TokensIn is the ERC20 envelope for tokenIn.
type TokensIn struct {
	Token          common.Address
	Amount         *big.Int
	DirectTransfer bool
	Commissions    []CommissionTuple
}

// Proxy binds the commission proxy contract.
type Proxy struct {
	boundContract
}

// NewProxy binds the proxy deployed at address.
func NewProxy(address common.Address) *Proxy {
	return &Proxy{boundContract{address: address, abi: proxyABI}}
}

// PackTokenIn encodes tokenIn(target, tokensIn, data).
func (p *Proxy) PackTokenIn(target common.Address, in TokensIn, data []byte) ([]byte, error) {
	if in.Commissions == nil {
		in.Commissions = []CommissionTuple{}
	}
	return p.abi.Pack("tokenIn", target, in, data)
}

// PackEthIn encodes ethIn(target, commissions, data). The amount including
// commissions travels as transaction value.
func (p *Proxy) PackEthIn(target common.Address, commissions []CommissionTuple, data []byte) ([]byte, error) {
	if commissions == nil {
		commissions = []CommissionTuple{}
	}
	return p.abi.Pack("ethIn", target, commissions, data)
}

// Tuples converts computed commissions into the proxy representation.
func Tuples(commissions []types.Commission) []CommissionTuple {
	out := make([]CommissionTuple, 0, len(commissions))
	for _, c := range commissions {
		amount := c.Amount
		if amount == nil {
			amount = big.NewInt(0)
		}
		out = append(out, CommissionTuple{To: c.To, Amount: new(big.Int).Set(amount)})
	}
	return out
}

// ProxySelectors returns the target+selector strings the proxy must whitelist
// for a product contract: the lower-case contract address followed by the
// method selector without 0x.
func ProxySelectors(product *ProductInfo) ([]string, error) {
	prefix := strings.ToLower(product.Address().Hex())
	selectors := make([]string, 0, len(ProxiedFunctions))
	for _, name := range ProxiedFunctions {
		id, err := product.Selector(name)
		if err != nil {
			return nil, err
		}
		selectors = append(selectors, prefix+hex.EncodeToString(id))
	}
	return selectors, nil
}
