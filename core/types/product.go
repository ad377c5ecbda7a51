package types

import (
	"fmt"
	"math/big"
	"strings"
)

// ProductType enumerates the purchase modes supported by the product contract.
type ProductType string

const (
	ProductTypeBuy              ProductType = "Buy"
	ProductTypeDonateToOwner    ProductType = "DonateToOwner"
	ProductTypeDonateToEveryone ProductType = "DonateToEveryone"
	ProductTypeSubscription     ProductType = "Subscription"
)

// ProductTypeFromCode maps the on-chain product type code to its name.
func ProductTypeFromCode(code uint8) (ProductType, error) {
	switch code {
	case 0:
		return ProductTypeBuy, nil
	case 1:
		return ProductTypeDonateToOwner, nil
	case 2:
		return ProductTypeDonateToEveryone, nil
	case 3:
		return ProductTypeSubscription, nil
	default:
		return "", fmt.Errorf("unknown product type code %d", code)
	}
}

// ParseProductType normalises a configured product type name.
func ParseProductType(raw string) (ProductType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "buy":
		return ProductTypeBuy, nil
	case "donatetoowner":
		return ProductTypeDonateToOwner, nil
	case "donatetoeveryone":
		return ProductTypeDonateToEveryone, nil
	case "subscription":
		return ProductTypeSubscription, nil
	default:
		return "", fmt.Errorf("unknown product type %q", raw)
	}
}

// Code returns the on-chain code for the product type.
func (t ProductType) Code() uint8 {
	switch t {
	case ProductTypeDonateToOwner:
		return 1
	case ProductTypeDonateToEveryone:
		return 2
	case ProductTypeSubscription:
		return 3
	default:
		return 0
	}
}

// IsDonation reports whether the type is one of the donation flows.
func (t ProductType) IsDonation() bool {
	return t == ProductTypeDonateToOwner || t == ProductTypeDonateToEveryone
}

// ProductBase carries the fields shared by every product variant.
type ProductBase struct {
	ID     *big.Int
	Price  *big.Int
	Token  Token
	Status uint8
	URI    string
}

// Product is an immutable snapshot of an on-chain offer. Each variant carries
// only the fields relevant to its purchase mode.
type Product interface {
	Kind() ProductType
	Base() ProductBase
}

// BuyProduct is a stock-limited product purchased by quantity.
type BuyProduct struct {
	ProductBase
	Quantity    *big.Int
	MaxQuantity *big.Int
	MaxPrice    *big.Int
}

func (BuyProduct) Kind() ProductType { return ProductTypeBuy }
func (p BuyProduct) Base() ProductBase { return p.ProductBase }

// DonationProduct accepts a free-form amount donated to the owner or to a
// chosen donee.
type DonationProduct struct {
	ProductBase
	ToEveryone bool
	MaxPrice   *big.Int
}

func (p DonationProduct) Kind() ProductType {
	if p.ToEveryone {
		return ProductTypeDonateToEveryone
	}
	return ProductTypeDonateToOwner
}

func (p DonationProduct) Base() ProductBase { return p.ProductBase }

// SubscriptionProduct is billed per PriceDuration seconds.
type SubscriptionProduct struct {
	ProductBase
	PriceDuration uint64
}

func (SubscriptionProduct) Kind() ProductType { return ProductTypeSubscription }
func (p SubscriptionProduct) Base() ProductBase { return p.ProductBase }

// RawProduct mirrors the tuple returned by the product contract before it is
// narrowed into a variant.
type RawProduct struct {
	ProductType   uint8
	ProductID     *big.Int
	URI           string
	Quantity      *big.Int
	Price         *big.Int
	MaxQuantity   *big.Int
	MaxPrice      *big.Int
	Token         Token
	Status        uint8
	PriceDuration *big.Int
}

// Narrow converts the contract tuple into the matching product variant.
func (r RawProduct) Narrow() (Product, error) {
	kind, err := ProductTypeFromCode(r.ProductType)
	if err != nil {
		return nil, err
	}
	base := ProductBase{
		ID:     cloneInt(r.ProductID),
		Price:  cloneInt(r.Price),
		Token:  r.Token,
		Status: r.Status,
		URI:    r.URI,
	}
	switch kind {
	case ProductTypeBuy:
		return BuyProduct{
			ProductBase: base,
			Quantity:    cloneInt(r.Quantity),
			MaxQuantity: cloneInt(r.MaxQuantity),
			MaxPrice:    cloneInt(r.MaxPrice),
		}, nil
	case ProductTypeSubscription:
		var duration uint64
		if r.PriceDuration != nil {
			if !r.PriceDuration.IsUint64() {
				return nil, fmt.Errorf("price duration %s overflows", r.PriceDuration)
			}
			duration = r.PriceDuration.Uint64()
		}
		return SubscriptionProduct{ProductBase: base, PriceDuration: duration}, nil
	default:
		return DonationProduct{
			ProductBase: base,
			ToEveryone:  kind == ProductTypeDonateToEveryone,
			MaxPrice:    cloneInt(r.MaxPrice),
		}, nil
	}
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
