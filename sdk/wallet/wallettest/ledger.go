// Package wallettest provides an in-memory wallet for exercising the purchase
// flow without a node.
package wallettest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"nftminter/core/types"
	"nftminter/sdk/wallet"
)

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// Approval records an approve request.
type Approval struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

// Ledger is a wallet.Client backed by maps. Approvals take effect when their
// pending transaction confirms.
type Ledger struct {
	Chain   uint64
	Account common.Address

	// CallFunc serves eth_call requests.
	CallFunc func(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	// OnSend runs when a sent transaction confirms.
	OnSend func(call wallet.Call)
	// Logs, when set, supplies the receipt logs of a confirmed send.
	Logs func(call wallet.Call) []*gethtypes.Log
	// Hold, when set, blocks confirmations until it is closed.
	Hold chan struct{}

	FailApprove   error
	FailSend      error
	FailBalance   error
	FailAllowance error

	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
	sent       []wallet.Call
	approvals  []Approval
	nonce      uint64
}

// NewLedger creates an empty ledger for account on chain.
func NewLedger(chain uint64, account common.Address) *Ledger {
	return &Ledger{
		Chain:      chain,
		Account:    account,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

// SetBalance sets the account balance of token.
func (l *Ledger) SetBalance(token common.Address, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[token] = big.NewInt(amount)
}

// SetAllowance sets the allowance granted by the account to spender.
func (l *Ledger) SetAllowance(token, spender common.Address, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{token: token, owner: l.Account, spender: spender}] = big.NewInt(amount)
}

// Sent returns the confirmed and pending sends in submission order.
func (l *Ledger) Sent() []wallet.Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]wallet.Call(nil), l.sent...)
}

// Approvals returns the approve requests in submission order.
func (l *Ledger) Approvals() []Approval {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Approval(nil), l.approvals...)
}

func (l *Ledger) ChainID() uint64         { return l.Chain }
func (l *Ledger) Address() common.Address { return l.Account }

func (l *Ledger) Balance(_ context.Context, token types.Token) (*big.Int, error) {
	if l.FailBalance != nil {
		return nil, l.FailBalance
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.balances[token.Address]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (l *Ledger) Allowance(_ context.Context, token types.Token, owner, spender common.Address) (*big.Int, error) {
	if l.FailAllowance != nil {
		return nil, l.FailAllowance
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.allowances[allowanceKey{token: token.Address, owner: owner, spender: spender}]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (l *Ledger) Approve(_ context.Context, token types.Token, spender common.Address, amount *big.Int) (*wallet.Pending, error) {
	if l.FailApprove != nil {
		return nil, l.FailApprove
	}
	l.mu.Lock()
	l.approvals = append(l.approvals, Approval{Token: token.Address, Spender: spender, Amount: new(big.Int).Set(amount)})
	hash := l.nextHashLocked()
	l.mu.Unlock()
	return wallet.NewPending(hash, func(ctx context.Context) (*gethtypes.Receipt, error) {
		if err := l.hold(ctx); err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.allowances[allowanceKey{token: token.Address, owner: l.Account, spender: spender}] = new(big.Int).Set(amount)
		l.mu.Unlock()
		return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, TxHash: hash}, nil
	}), nil
}

func (l *Ledger) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if l.CallFunc == nil {
		return nil, fmt.Errorf("wallettest: no call handler")
	}
	return l.CallFunc(ctx, to, data)
}

func (l *Ledger) Send(_ context.Context, call wallet.Call) (*wallet.Pending, error) {
	if l.FailSend != nil {
		return nil, l.FailSend
	}
	l.mu.Lock()
	l.sent = append(l.sent, call)
	hash := l.nextHashLocked()
	l.mu.Unlock()
	return wallet.NewPending(hash, func(ctx context.Context) (*gethtypes.Receipt, error) {
		if err := l.hold(ctx); err != nil {
			return nil, err
		}
		if l.OnSend != nil {
			l.OnSend(call)
		}
		receipt := &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, TxHash: hash}
		if l.Logs != nil {
			receipt.Logs = l.Logs(call)
		}
		return receipt, nil
	}), nil
}

func (l *Ledger) hold(ctx context.Context) error {
	if l.Hold == nil {
		return nil
	}
	select {
	case <-l.Hold:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Ledger) nextHashLocked() common.Hash {
	l.nonce++
	return common.BigToHash(new(big.Int).SetUint64(l.nonce))
}
