package tokens

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"nftminter/core/types"
	"nftminter/sdk/contracts"
)

// NativeSymbols maps chain ids to the native currency symbol.
var NativeSymbols = map[uint64]string{
	1:     "ETH",
	56:    "BNB",
	97:    "BNB",
	137:   "MATIC",
	43113: "AVAX",
	43114: "AVAX",
}

type fileEntry struct {
	ChainID  uint64 `yaml:"chain_id"`
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals *uint8 `yaml:"decimals"`
}

type tokenFile struct {
	Tokens []fileEntry `yaml:"tokens"`
}

type key struct {
	chain   uint64
	address common.Address
}

// Registry resolves token metadata per chain. Tokens missing from the list are
// looked up on-chain and cached.
type Registry struct {
	mu     sync.RWMutex
	tokens map[key]types.Token
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[key]types.Token)}
}

// LoadFile reads a YAML token list.
func LoadFile(path string) (*Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token list: %w", err)
	}
	defer file.Close()
	return Load(file)
}

// Load decodes a YAML token list.
func Load(r io.Reader) (*Registry, error) {
	var list tokenFile
	if err := yaml.NewDecoder(r).Decode(&list); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode token list: %w", err)
	}
	reg := NewRegistry()
	for i, entry := range list.Tokens {
		token, err := entry.token()
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		reg.Add(token)
	}
	return reg, nil
}

func (e fileEntry) token() (types.Token, error) {
	if e.ChainID == 0 {
		return types.Token{}, fmt.Errorf("chain_id required")
	}
	addr := strings.TrimSpace(e.Address)
	token := types.Token{ChainID: e.ChainID, Symbol: strings.TrimSpace(e.Symbol), Name: strings.TrimSpace(e.Name), Decimals: 18}
	if addr != "" {
		if !common.IsHexAddress(addr) {
			return types.Token{}, fmt.Errorf("invalid address %q", e.Address)
		}
		token.Address = common.HexToAddress(addr)
	}
	if e.Decimals != nil {
		token.Decimals = *e.Decimals
	}
	if token.Symbol == "" {
		return types.Token{}, fmt.Errorf("symbol required")
	}
	return token, nil
}

// Add registers token, replacing any previous entry for the same asset.
func (r *Registry) Add(token types.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[key{chain: token.ChainID, address: token.Address}] = token
}

// Lookup returns the listed token.
func (r *Registry) Lookup(chainID uint64, address common.Address) (types.Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.tokens[key{chain: chainID, address: address}]
	return token, ok
}

// List returns the tokens registered for chainID.
func (r *Registry) List(chainID uint64) []types.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.Token
	for k, token := range r.tokens {
		if k.chain == chainID {
			out = append(out, token)
		}
	}
	return out
}

// Resolve returns metadata for address on chainID. The zero address resolves
// to the native currency; unknown ERC20s are read through caller.
func (r *Registry) Resolve(ctx context.Context, caller contracts.Caller, chainID uint64, address common.Address) (types.Token, error) {
	if token, ok := r.Lookup(chainID, address); ok {
		return token, nil
	}
	if address == (common.Address{}) {
		symbol := NativeSymbols[chainID]
		if symbol == "" {
			symbol = "ETH"
		}
		token := types.Token{ChainID: chainID, Symbol: symbol, Name: symbol, Decimals: 18}
		r.Add(token)
		return token, nil
	}
	if caller == nil {
		return types.Token{}, fmt.Errorf("token %s not listed on chain %d", address.Hex(), chainID)
	}
	erc20 := contracts.NewERC20(address, caller)
	symbol, err := erc20.Symbol(ctx)
	if err != nil {
		return types.Token{}, fmt.Errorf("resolve token symbol: %w", err)
	}
	decimals, err := erc20.Decimals(ctx)
	if err != nil {
		return types.Token{}, fmt.Errorf("resolve token decimals: %w", err)
	}
	name, err := erc20.Name(ctx)
	if err != nil {
		name = symbol
	}
	token := types.Token{ChainID: chainID, Address: address, Symbol: symbol, Name: name, Decimals: decimals}
	r.Add(token)
	return token, nil
}
