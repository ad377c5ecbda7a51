package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"nftminter/core/types"
)

const (
	// TypeApprovalRequired is emitted when the allowance does not cover the
	// amount to pay.
	TypeApprovalRequired = "approval.required"
	// TypeApprovalSubmitted is emitted once the approve transaction is broadcast.
	TypeApprovalSubmitted = "approval.submitted"
	// TypeApprovalConfirmed is emitted when the spender is authorised.
	TypeApprovalConfirmed = "approval.confirmed"
	// TypeApprovalFailed is emitted when an approval is rejected or reverts.
	TypeApprovalFailed = "approval.failed"
)

// ApprovalRequired records an allowance shortfall.
type ApprovalRequired struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

// EventType satisfies the events.Event interface.
func (ApprovalRequired) EventType() string { return TypeApprovalRequired }

// Event converts the payload into its attribute form.
func (e ApprovalRequired) Event() *types.Event {
	return &types.Event{Type: TypeApprovalRequired, Attributes: map[string]string{
		"token":   e.Token.Hex(),
		"spender": e.Spender.Hex(),
		"amount":  amountString(e.Amount),
	}}
}

// ApprovalSubmitted records a broadcast approve transaction.
type ApprovalSubmitted struct {
	Token   common.Address
	Spender common.Address
	TxHash  common.Hash
}

// EventType satisfies the events.Event interface.
func (ApprovalSubmitted) EventType() string { return TypeApprovalSubmitted }

// Event converts the payload into its attribute form.
func (e ApprovalSubmitted) Event() *types.Event {
	attrs := map[string]string{"token": e.Token.Hex(), "spender": e.Spender.Hex()}
	setIfPresent(attrs, "txHash", hashString(e.TxHash))
	return &types.Event{Type: TypeApprovalSubmitted, Attributes: attrs}
}

// ApprovalConfirmed records a mined approval.
type ApprovalConfirmed struct {
	Token   common.Address
	Spender common.Address
	TxHash  common.Hash
}

// EventType satisfies the events.Event interface.
func (ApprovalConfirmed) EventType() string { return TypeApprovalConfirmed }

// Event converts the payload into its attribute form.
func (e ApprovalConfirmed) Event() *types.Event {
	attrs := map[string]string{"token": e.Token.Hex(), "spender": e.Spender.Hex()}
	setIfPresent(attrs, "txHash", hashString(e.TxHash))
	return &types.Event{Type: TypeApprovalConfirmed, Attributes: attrs}
}

// ApprovalFailed records a rejected or reverted approval.
type ApprovalFailed struct {
	Token   common.Address
	Spender common.Address
	TxHash  common.Hash
	Code    string
}

// EventType satisfies the events.Event interface.
func (ApprovalFailed) EventType() string { return TypeApprovalFailed }

// Event converts the payload into its attribute form.
func (e ApprovalFailed) Event() *types.Event {
	attrs := map[string]string{"token": e.Token.Hex(), "spender": e.Spender.Hex()}
	setIfPresent(attrs, "txHash", hashString(e.TxHash))
	setIfPresent(attrs, "code", e.Code)
	return &types.Event{Type: TypeApprovalFailed, Attributes: attrs}
}
