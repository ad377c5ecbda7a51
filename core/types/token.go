package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes a payment asset on a specific chain. The zero address denotes
// the chain's native currency.
type Token struct {
	ChainID  uint64         `json:"chainId" yaml:"chain_id"`
	Address  common.Address `json:"address" yaml:"address"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Name     string         `json:"name" yaml:"name"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
}

// IsNative reports whether the token is paid as transaction value rather than
// through an ERC20 transfer.
func (t Token) IsNative() bool {
	return t.Address == (common.Address{})
}

// DisplaySymbol returns the upper-cased symbol or an empty string.
func (t Token) DisplaySymbol() string {
	return strings.ToUpper(strings.TrimSpace(t.Symbol))
}

// SameAs reports whether both descriptors point at the same asset.
func (t Token) SameAs(other Token) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}
