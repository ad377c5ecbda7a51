package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CommissionInfo assigns a fractional share of a payment to a wallet on one
// chain. Share is a decimal string between 0 and 1.
type CommissionInfo struct {
	ChainID       uint64         `json:"chainId" toml:"ChainID"`
	WalletAddress common.Address `json:"walletAddress" toml:"WalletAddress"`
	Share         string         `json:"share" toml:"Share"`
}

// ShareRat parses the share into an exact rational in [0, 1].
func (c CommissionInfo) ShareRat() (*big.Rat, error) {
	raw := strings.TrimSpace(c.Share)
	if raw == "" {
		return new(big.Rat), nil
	}
	share, ok := new(big.Rat).SetString(raw)
	if !ok {
		return nil, fmt.Errorf("invalid commission share %q", c.Share)
	}
	if share.Sign() < 0 || share.Cmp(big.NewRat(1, 1)) > 0 {
		return nil, fmt.Errorf("commission share %q outside [0,1]", c.Share)
	}
	return share, nil
}

// Commission is a computed split entry in token base units.
type Commission struct {
	To     common.Address
	Amount *big.Int
}

// FilterCommissions keeps the entries configured for chainID. The input is not
// de-duplicated by wallet.
func FilterCommissions(list []CommissionInfo, chainID uint64) []CommissionInfo {
	if len(list) == 0 {
		return nil
	}
	out := make([]CommissionInfo, 0, len(list))
	for _, entry := range list {
		if entry.ChainID == chainID {
			out = append(out, entry)
		}
	}
	return out
}

// DuplicateWallets returns the wallets that appear more than once in list.
func DuplicateWallets(list []CommissionInfo) []common.Address {
	seen := make(map[common.Address]int, len(list))
	var dups []common.Address
	for _, entry := range list {
		seen[entry.WalletAddress]++
		if seen[entry.WalletAddress] == 2 {
			dups = append(dups, entry.WalletAddress)
		}
	}
	return dups
}
