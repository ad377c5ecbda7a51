package minter

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"nftminter/core/approval"
	"nftminter/core/types"
)

// StatusKind classifies a status message shown to the buyer.
type StatusKind string

const (
	StatusWarning StatusKind = "warning"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// NftInfo describes a stake-to-mint NFT contract.
type NftInfo struct {
	Address common.Address
	Cap     *big.Int
	Price   *big.Int
	Token   types.Token
	// Balance is how many NFTs the connected account holds.
	Balance *big.Int
}

// Hooks receive UI notifications. Nil hooks are skipped.
type Hooks struct {
	UpdateSubmitButton func(submitting bool)
	ShowStatus         func(kind StatusKind, message string)
	CloseStatus        func()
	OnBoughtProduct    func(product types.Product)
	OnDonated          func()
	OnSubscribed       func(product types.Product)
	OnMintedNft        func(info NftInfo)

	// Approval receives the approve-then-pay lifecycle callbacks.
	Approval approval.Callbacks
}

func (h Hooks) submitting(on bool) {
	if h.UpdateSubmitButton != nil {
		h.UpdateSubmitButton(on)
	}
}

func (h Hooks) status(kind StatusKind, message string) {
	if h.ShowStatus != nil {
		h.ShowStatus(kind, message)
	}
}

func (h Hooks) closeStatus() {
	if h.CloseStatus != nil {
		h.CloseStatus()
	}
}

// NftType selects the purchase flow for a configuration.
type NftType string

const (
	NftERC1155 NftType = "ERC1155"
	NftERC721  NftType = "ERC721"
)

// ParseNftType normalises a configured NFT type, defaulting to ERC1155.
func ParseNftType(raw string) NftType {
	if strings.EqualFold(strings.TrimSpace(raw), string(NftERC721)) {
		return NftERC721
	}
	return NftERC1155
}

// Config is the embedder's purchase configuration.
type Config struct {
	ProductID   *big.Int
	NftType     NftType
	NftAddress  common.Address
	Recipient   common.Address
	Referrer    common.Address
	Commissions []types.CommissionInfo
	// Renewal routes subscriptions to renewSubscription.
	Renewal bool
}

func (c Config) mintsERC721() bool {
	return c.NftType == NftERC721 && c.ProductID == nil
}

// DurationUnit scales a subscription duration entry into days.
type DurationUnit string

const (
	UnitDays   DurationUnit = "days"
	UnitWeeks  DurationUnit = "weeks"
	UnitMonths DurationUnit = "months"
	UnitYears  DurationUnit = "years"
)

// Days returns the length of one unit in days. Months count 30 days and
// years 365.
func (u DurationUnit) Days() uint64 {
	switch u {
	case UnitWeeks:
		return 7
	case UnitMonths:
		return 30
	case UnitYears:
		return 365
	default:
		return 1
	}
}

// FormInput is what the buyer entered for one purchase.
type FormInput struct {
	// Token is the selected payment token; donations require it.
	Token *types.Token
	// Quantity is the raw quantity entry for buy products.
	Quantity string
	// Amount is the donation amount in human units of Token.
	Amount    string
	StartTime int64
	// Duration is the number of Units to subscribe for.
	Duration  string
	Unit      DurationUnit
	Recipient common.Address
}
