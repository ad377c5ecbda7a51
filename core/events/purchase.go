package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"nftminter/core/types"
)

const (
	// TypePaymentSubmitted is emitted once a purchase transaction is broadcast.
	TypePaymentSubmitted = "payment.submitted"
	// TypePaymentConfirmed is emitted when the purchase transaction is mined.
	TypePaymentConfirmed = "payment.confirmed"
	// TypePaymentFailed is emitted when the purchase is rejected or reverts.
	TypePaymentFailed = "payment.failed"
	// TypePurchaseRejected is emitted when validation stops a purchase before
	// any transaction is built.
	TypePurchaseRejected = "purchase.rejected"
	// TypeProductCreated is emitted for every NewProduct log observed.
	TypeProductCreated = "product.created"
	// TypeNftMinted is emitted when a stake-to-mint NFT is minted.
	TypeNftMinted = "nft.minted"
)

// PaymentSubmitted records a broadcast purchase.
type PaymentSubmitted struct {
	ProductID *big.Int
	Action    string
	Path      string
	To        common.Address
	AmountIn  *big.Int
	TxHash    common.Hash
}

// EventType satisfies the events.Event interface.
func (PaymentSubmitted) EventType() string { return TypePaymentSubmitted }

// Event converts the payload into its attribute form.
func (e PaymentSubmitted) Event() *types.Event {
	attrs := map[string]string{
		"productId": amountString(e.ProductID),
		"action":    e.Action,
		"path":      e.Path,
		"to":        e.To.Hex(),
		"amountIn":  amountString(e.AmountIn),
	}
	setIfPresent(attrs, "txHash", hashString(e.TxHash))
	return &types.Event{Type: TypePaymentSubmitted, Attributes: attrs}
}

// PaymentConfirmed records a mined purchase.
type PaymentConfirmed struct {
	ProductID *big.Int
	Action    string
	AmountIn  *big.Int
	TxHash    common.Hash
}

// EventType satisfies the events.Event interface.
func (PaymentConfirmed) EventType() string { return TypePaymentConfirmed }

// Event converts the payload into its attribute form.
func (e PaymentConfirmed) Event() *types.Event {
	attrs := map[string]string{
		"productId": amountString(e.ProductID),
		"action":    e.Action,
		"amountIn":  amountString(e.AmountIn),
	}
	setIfPresent(attrs, "txHash", hashString(e.TxHash))
	return &types.Event{Type: TypePaymentConfirmed, Attributes: attrs}
}

// PaymentFailed records a purchase that did not complete.
type PaymentFailed struct {
	ProductID *big.Int
	Action    string
	TxHash    common.Hash
	Code      string
}

// EventType satisfies the events.Event interface.
func (PaymentFailed) EventType() string { return TypePaymentFailed }

// Event converts the payload into its attribute form.
func (e PaymentFailed) Event() *types.Event {
	attrs := map[string]string{"productId": amountString(e.ProductID), "action": e.Action}
	setIfPresent(attrs, "txHash", hashString(e.TxHash))
	setIfPresent(attrs, "code", e.Code)
	return &types.Event{Type: TypePaymentFailed, Attributes: attrs}
}

// PurchaseRejected records a validation failure.
type PurchaseRejected struct {
	ProductID *big.Int
	Code      string
	Message   string
}

// EventType satisfies the events.Event interface.
func (PurchaseRejected) EventType() string { return TypePurchaseRejected }

// Event converts the payload into its attribute form.
func (e PurchaseRejected) Event() *types.Event {
	attrs := map[string]string{"productId": amountString(e.ProductID), "code": e.Code}
	setIfPresent(attrs, "message", e.Message)
	return &types.Event{Type: TypePurchaseRejected, Attributes: attrs}
}

// ProductCreated records a product created through newProduct.
type ProductCreated struct {
	ProductID *big.Int
	TxHash    common.Hash
}

// EventType satisfies the events.Event interface.
func (ProductCreated) EventType() string { return TypeProductCreated }

// Event converts the payload into its attribute form.
func (e ProductCreated) Event() *types.Event {
	if e.ProductID == nil {
		return nil
	}
	attrs := map[string]string{"productId": e.ProductID.String()}
	setIfPresent(attrs, "txHash", hashString(e.TxHash))
	return &types.Event{Type: TypeProductCreated, Attributes: attrs}
}

// NftMinted records a stake-to-mint NFT mint.
type NftMinted struct {
	Contract  common.Address
	TxHash    common.Hash
	Remaining *big.Int
}

// EventType satisfies the events.Event interface.
func (NftMinted) EventType() string { return TypeNftMinted }

// Event converts the payload into its attribute form.
func (e NftMinted) Event() *types.Event {
	attrs := map[string]string{"contract": e.Contract.Hex(), "remaining": amountString(e.Remaining)}
	setIfPresent(attrs, "txHash", hashString(e.TxHash))
	return &types.Event{Type: TypeNftMinted, Attributes: attrs}
}
