package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC20 binds a fungible token contract.
type ERC20 struct {
	boundContract
}

// NewERC20 binds the token at address.
func NewERC20(address common.Address, caller Caller) *ERC20 {
	return &ERC20{boundContract{address: address, abi: erc20ABI, caller: caller}}
}

// BalanceOf returns the owner's balance in base units.
func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", owner)
}

// Allowance returns how much spender may move on behalf of owner.
func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(ctx, "allowance", owner, spender)
}

// Symbol returns the token symbol.
func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	return t.callString(ctx, "symbol")
}

// Name returns the token name.
func (t *ERC20) Name(ctx context.Context) (string, error) {
	return t.callString(ctx, "name")
}

// Decimals returns the token decimals.
func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	values, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decimals: unexpected output arity %d", len(values))
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected output type %T", values[0])
	}
	return d, nil
}

// PackApprove encodes approve(spender, amount).
func (t *ERC20) PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return t.abi.Pack("approve", spender, amount)
}

func (t *ERC20) callString(ctx context.Context, method string) (string, error) {
	values, err := t.call(ctx, method)
	if err != nil {
		return "", err
	}
	if len(values) != 1 {
		return "", fmt.Errorf("%s: unexpected output arity %d", method, len(values))
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: unexpected output type %T", method, values[0])
	}
	return s, nil
}
