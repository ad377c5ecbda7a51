package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"nftminter/core/types"
	"nftminter/sdk/contracts"
)

// Call describes a state-changing contract invocation. Value is the native
// currency attached to the call and may be nil.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Client captures the wallet operations required by the purchase flow.
type Client interface {
	ChainID() uint64
	Address() common.Address
	Balance(ctx context.Context, token types.Token) (*big.Int, error)
	Allowance(ctx context.Context, token types.Token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token types.Token, spender common.Address, amount *big.Int) (*Pending, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Send(ctx context.Context, call Call) (*Pending, error)
}

// FuncClient adapts callback functions to the Client interface. Unset
// callbacks return zero values.
type FuncClient struct {
	Chain         uint64
	Account       common.Address
	BalanceFunc   func(ctx context.Context, token types.Token) (*big.Int, error)
	AllowanceFunc func(ctx context.Context, token types.Token, owner, spender common.Address) (*big.Int, error)
	ApproveFunc   func(ctx context.Context, token types.Token, spender common.Address, amount *big.Int) (*Pending, error)
	CallFunc      func(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendFunc      func(ctx context.Context, call Call) (*Pending, error)
}

// ChainID returns the configured chain.
func (c FuncClient) ChainID() uint64 { return c.Chain }

// Address returns the configured account.
func (c FuncClient) Address() common.Address { return c.Account }

// Balance delegates to the configured callback.
func (c FuncClient) Balance(ctx context.Context, token types.Token) (*big.Int, error) {
	if c.BalanceFunc == nil {
		return big.NewInt(0), nil
	}
	return c.BalanceFunc(ctx, token)
}

// Allowance delegates to the configured callback.
func (c FuncClient) Allowance(ctx context.Context, token types.Token, owner, spender common.Address) (*big.Int, error) {
	if c.AllowanceFunc == nil {
		return big.NewInt(0), nil
	}
	return c.AllowanceFunc(ctx, token, owner, spender)
}

// Approve delegates to the configured callback.
func (c FuncClient) Approve(ctx context.Context, token types.Token, spender common.Address, amount *big.Int) (*Pending, error) {
	if c.ApproveFunc == nil {
		return nil, fmt.Errorf("wallet: approve not supported")
	}
	return c.ApproveFunc(ctx, token, spender, amount)
}

// Call delegates to the configured callback.
func (c FuncClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if c.CallFunc == nil {
		return nil, fmt.Errorf("wallet: call not supported")
	}
	return c.CallFunc(ctx, to, data)
}

// Send delegates to the configured callback.
func (c FuncClient) Send(ctx context.Context, call Call) (*Pending, error) {
	if c.SendFunc == nil {
		return nil, fmt.Errorf("wallet: send not supported")
	}
	return c.SendFunc(ctx, call)
}

// Caller exposes a Client as the read-only RPC used by contract bindings.
func Caller(client Client) contracts.Caller {
	return callerAdapter{client: client}
}

type callerAdapter struct {
	client Client
}

func (a callerAdapter) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if a.client == nil {
		return nil, ErrNoClient
	}
	if msg.To == nil {
		return nil, fmt.Errorf("wallet: call target required")
	}
	return a.client.Call(ctx, *msg.To, msg.Data)
}

// SessionCaller resolves the session's current client on every call, so
// bindings built once keep working across wallet switches.
func SessionCaller(session *Session) contracts.Caller {
	return sessionCaller{session: session}
}

type sessionCaller struct {
	session *Session
}

func (s sessionCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if s.session == nil {
		return nil, ErrNoClient
	}
	return callerAdapter{client: s.session.Client()}.CallContract(ctx, msg, blockNumber)
}
