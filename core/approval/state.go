package approval

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"nftminter/core/types"
)

// State is a position in the approve-then-pay lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateCheckingAllowance
	StateNeedsApproval
	StateApproving
	StateApproved
	StatePaying
	StatePaid
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingAllowance:
		return "checking_allowance"
	case StateNeedsApproval:
		return "needs_approval"
	case StateApproving:
		return "approving"
	case StateApproved:
		return "approved"
	case StatePaying:
		return "paying"
	case StatePaid:
		return "paid"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// inFlight reports whether a transaction for the binding is outstanding.
func (s State) inFlight() bool {
	return s == StateApproving || s == StatePaying
}

// Binding is the (owner, spender, token) identity the machine serves.
type Binding struct {
	ChainID uint64
	Owner   common.Address
	Spender common.Address
	Token   types.Token
}

func (b Binding) equal(other Binding) bool {
	return b.ChainID == other.ChainID && b.Owner == other.Owner && b.Spender == other.Spender && b.Token.SameAs(other.Token)
}

// Callbacks receive lifecycle notifications. Nil callbacks are skipped.
// Callbacks run without the machine lock held.
type Callbacks struct {
	OnToBeApproved   func(token types.Token)
	OnApproving      func(token types.Token, txHash common.Hash)
	OnApproved       func(token types.Token)
	OnApprovingError func(token types.Token, err error)
	OnToBePaid       func(token types.Token)
	OnPaying         func(txHash common.Hash)
	OnPaid           func(receipt *gethtypes.Receipt)
	OnPayingError    func(err error)
	// OnTransition observes every state change.
	OnTransition func(from, to State)
}

// Status is a point-in-time view of the machine.
type Status struct {
	State      State
	Binding    Binding
	Amount     *big.Int
	Generation uint64
}
