package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TrollNFT binds the stake-to-mint ERC721 contract.
type TrollNFT struct {
	boundContract
}

// NewTrollNFT binds the NFT contract at address.
func NewTrollNFT(address common.Address, caller Caller) *TrollNFT {
	return &TrollNFT{boundContract{address: address, abi: trollNFTABI, caller: caller}}
}

// Cap returns the remaining mintable supply.
func (n *TrollNFT) Cap(ctx context.Context) (*big.Int, error) {
	return n.callBig(ctx, "cap")
}

// Price returns the stake required to mint one NFT.
func (n *TrollNFT) Price(ctx context.Context) (*big.Int, error) {
	return n.callBig(ctx, "minimumStake")
}

// StakeToken returns the token staked to mint.
func (n *TrollNFT) StakeToken(ctx context.Context) (common.Address, error) {
	values, err := n.call(ctx, "stakeToken")
	if err != nil {
		return common.Address{}, err
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("stakeToken: unexpected output arity %d", len(values))
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("stakeToken: unexpected output type %T", values[0])
	}
	return addr, nil
}

// BalanceOf returns how many NFTs owner holds.
func (n *TrollNFT) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return n.callBig(ctx, "balanceOf", owner)
}

// PackStake encodes stake(amount).
func (n *TrollNFT) PackStake(amount *big.Int) ([]byte, error) {
	return n.abi.Pack("stake", amount)
}
