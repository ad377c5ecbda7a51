// Package catalog reads product snapshots and subscription discount rules
// from the product contract and resolves their payment tokens.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "nftminter/core/errors"
	"nftminter/core/types"
	"nftminter/sdk/contracts"
	"nftminter/sdk/tokens"
)

// Catalog fetches products from one product contract.
type Catalog struct {
	chainID  uint64
	caller   contracts.Caller
	product  *contracts.ProductInfo
	registry *tokens.Registry
	logger   *slog.Logger
}

// Option customises the catalog.
type Option func(*Catalog)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// WithRegistry resolves token metadata through registry instead of an empty
// one.
func WithRegistry(registry *tokens.Registry) Option {
	return func(c *Catalog) { c.registry = registry }
}

// New binds the catalog to the product contract at productAddr on chainID.
func New(chainID uint64, productAddr common.Address, caller contracts.Caller, opts ...Option) *Catalog {
	c := &Catalog{
		chainID: chainID,
		caller:  caller,
		product: contracts.NewProductInfo(productAddr, caller),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = tokens.NewRegistry()
	}
	return c
}

func (c *Catalog) log() *slog.Logger {
	if c != nil && c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// ChainID returns the chain the catalog reads from.
func (c *Catalog) ChainID() uint64 { return c.chainID }

// Contract returns the product contract binding.
func (c *Catalog) Contract() *contracts.ProductInfo { return c.product }

// Product returns the current snapshot of productID. Any read or decode
// failure is reported as an unsupported product.
func (c *Catalog) Product(ctx context.Context, productID *big.Int) (types.Product, error) {
	if productID == nil {
		return nil, unsupported(fmt.Errorf("product id required"))
	}
	raw, err := c.product.Products(ctx, c.chainID, productID)
	if err != nil {
		c.log().Warn("product fetch failed", "product", productID.String(), "error", err)
		return nil, unsupported(err)
	}
	token, err := c.registry.Resolve(ctx, c.caller, c.chainID, raw.Token.Address)
	if err != nil {
		c.log().Warn("product token unresolved", "product", productID.String(), "token", raw.Token.Address.Hex(), "error", err)
		return nil, unsupported(err)
	}
	raw.Token = token
	product, err := raw.Narrow()
	if err != nil {
		return nil, unsupported(err)
	}
	return product, nil
}

// DiscountRules returns the discount rules configured for productID.
func (c *Catalog) DiscountRules(ctx context.Context, productID *big.Int) ([]types.DiscountRule, error) {
	rules, err := c.product.DiscountRules(ctx, productID)
	if err != nil {
		return nil, coreerrors.New(coreerrors.KindFetch, coreerrors.CodeTransport, fmt.Errorf("discount rules: %w", err))
	}
	return rules, nil
}

// Stock re-reads the remaining quantity of productID. Products without a
// stock limit report zero.
func (c *Catalog) Stock(ctx context.Context, productID *big.Int) (*big.Int, error) {
	product, err := c.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	buy, ok := product.(types.BuyProduct)
	if !ok || buy.Quantity == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(buy.Quantity), nil
}

// Token resolves payment token metadata for address.
func (c *Catalog) Token(ctx context.Context, address common.Address) (types.Token, error) {
	token, err := c.registry.Resolve(ctx, c.caller, c.chainID, address)
	if err != nil {
		return types.Token{}, coreerrors.New(coreerrors.KindFetch, coreerrors.CodeTransport, err)
	}
	return token, nil
}

func unsupported(err error) *coreerrors.Error {
	return &coreerrors.Error{
		Kind:    coreerrors.KindFetch,
		Code:    coreerrors.CodeUnsupportedProduct,
		Message: coreerrors.ErrUnsupportedProduct.Message,
		Err:     err,
	}
}
