package wallet

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNoClient is returned when no wallet is bound to the session.
	ErrNoClient = errors.New("wallet: no client bound")
	// ErrConsumed is reported when a pending transaction is observed twice.
	ErrConsumed = errors.New("wallet: pending transaction already consumed")
	// ErrReverted is wrapped by failures caused by an unsuccessful receipt.
	ErrReverted = errors.New("wallet: transaction reverted")
)

// TxEventKind enumerates the transaction lifecycle stages.
type TxEventKind uint8

const (
	TxSubmitted TxEventKind = iota + 1
	TxConfirmed
	TxFailed
)

func (k TxEventKind) String() string {
	switch k {
	case TxSubmitted:
		return "submitted"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TxEvent is a single lifecycle observation.
type TxEvent struct {
	Kind    TxEventKind
	Hash    common.Hash
	Receipt *gethtypes.Receipt
	Err     error
}

// WaitFunc blocks until the transaction is mined.
type WaitFunc func(ctx context.Context) (*gethtypes.Receipt, error)

// Pending is a submitted transaction whose outcome is not yet known. Its
// lifecycle can be observed exactly once, either through Events or Wait.
type Pending struct {
	hash     common.Hash
	wait     WaitFunc
	consumed atomic.Bool
}

// NewPending wraps a submitted transaction.
func NewPending(hash common.Hash, wait WaitFunc) *Pending {
	return &Pending{hash: hash, wait: wait}
}

// Confirmed returns a pending transaction that resolves to receipt.
func Confirmed(hash common.Hash, receipt *gethtypes.Receipt) *Pending {
	return NewPending(hash, func(context.Context) (*gethtypes.Receipt, error) { return receipt, nil })
}

// Failed returns a pending transaction that resolves to err.
func Failed(hash common.Hash, err error) *Pending {
	return NewPending(hash, func(context.Context) (*gethtypes.Receipt, error) { return nil, err })
}

// Hash returns the transaction hash.
func (p *Pending) Hash() common.Hash {
	if p == nil {
		return common.Hash{}
	}
	return p.hash
}

// Events yields TxSubmitted followed by exactly one of TxConfirmed or
// TxFailed. A second iteration yields a single TxFailed carrying ErrConsumed.
func (p *Pending) Events(ctx context.Context) iter.Seq[TxEvent] {
	return func(yield func(TxEvent) bool) {
		if p == nil {
			yield(TxEvent{Kind: TxFailed, Err: fmt.Errorf("wallet: nil pending transaction")})
			return
		}
		if !p.consumed.CompareAndSwap(false, true) {
			yield(TxEvent{Kind: TxFailed, Hash: p.hash, Err: ErrConsumed})
			return
		}
		if !yield(TxEvent{Kind: TxSubmitted, Hash: p.hash}) {
			return
		}
		yield(p.resolve(ctx))
	}
}

func (p *Pending) resolve(ctx context.Context) TxEvent {
	if p.wait == nil {
		return TxEvent{Kind: TxFailed, Hash: p.hash, Err: fmt.Errorf("wallet: no confirmation source")}
	}
	receipt, err := p.wait(ctx)
	if err != nil {
		return TxEvent{Kind: TxFailed, Hash: p.hash, Err: err}
	}
	if receipt != nil && receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return TxEvent{Kind: TxFailed, Hash: p.hash, Receipt: receipt, Err: fmt.Errorf("%w: %s", ErrReverted, p.hash.Hex())}
	}
	return TxEvent{Kind: TxConfirmed, Hash: p.hash, Receipt: receipt}
}

// Handlers receive lifecycle callbacks from Wait. Nil handlers are skipped.
type Handlers struct {
	OnSubmitted func(hash common.Hash)
	OnConfirmed func(receipt *gethtypes.Receipt)
	OnFailed    func(err error)
}

// Wait drains the lifecycle, dispatching to handlers, and returns the final
// receipt or error.
func (p *Pending) Wait(ctx context.Context, handlers Handlers) (*gethtypes.Receipt, error) {
	var (
		receipt *gethtypes.Receipt
		err     error
	)
	for event := range p.Events(ctx) {
		switch event.Kind {
		case TxSubmitted:
			if handlers.OnSubmitted != nil {
				handlers.OnSubmitted(event.Hash)
			}
		case TxConfirmed:
			receipt = event.Receipt
			if handlers.OnConfirmed != nil {
				handlers.OnConfirmed(event.Receipt)
			}
		case TxFailed:
			err = event.Err
			if handlers.OnFailed != nil {
				handlers.OnFailed(event.Err)
			}
		}
	}
	return receipt, err
}
