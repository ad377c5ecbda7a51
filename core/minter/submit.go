package minter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftminter/core/amount"
	"nftminter/core/approval"
	"nftminter/core/discount"
	coreerrors "nftminter/core/errors"
	"nftminter/core/events"
	"nftminter/core/router"
	"nftminter/core/types"
	"nftminter/core/validator"
	"nftminter/sdk/contracts"
	"nftminter/sdk/wallet"
)

// ApproveAction asks the wallet to approve the quoted amount for the current
// spender.
func (m *Minter) ApproveAction(ctx context.Context) error {
	err := m.machine.Approve(ctx)
	if err != nil && !errors.Is(err, approval.ErrSuperseded) {
		m.hooks.status(StatusError, message(err))
	}
	return err
}

// PayAction validates and submits in once the spender is approved. The
// approval machine observes the payment lifecycle.
func (m *Minter) PayAction(ctx context.Context, in FormInput) error {
	cfg := m.Config()
	if !cfg.mintsERC721() {
		if err := m.coveredByApproval(ctx, cfg, in); err != nil {
			m.hooks.status(StatusError, message(err))
			return err
		}
	}
	return m.machine.Pay(ctx, func(ctx context.Context, handlers wallet.Handlers) error {
		return m.submit(ctx, cfg, in, handlers)
	})
}

// coveredByApproval makes sure the approved binding pays for in: same spender
// and token, and an amount no larger than the one the allowance was checked
// for. Otherwise the allowance is checked again for in and the payment only
// proceeds if that check approves it.
func (m *Minter) coveredByApproval(ctx context.Context, cfg Config, in FormInput) error {
	status := m.machine.Status()
	if status.State != approval.StateApproved {
		return nil
	}
	m.mu.Lock()
	q, err := QuoteFor(m.router, m.product, m.rules, cfg, in)
	m.mu.Unlock()
	if errors.Is(err, coreerrors.ErrUnsupportedProduct) {
		return nil
	}
	if err != nil {
		return coreerrors.Classify(err, coreerrors.KindValidation)
	}
	if status.Binding.Spender == m.router.Spender(q.Split) &&
		status.Binding.Token.SameAs(q.Token) &&
		q.Split.AmountIn.Cmp(status.Amount) <= 0 {
		return nil
	}
	m.log().Info("payment differs from approved amount, checking allowance again",
		"approved", status.Amount.String(), "amount_in", q.Split.AmountIn.String())
	if _, err := m.ComputeAmount(ctx, in); err != nil {
		return coreerrors.Classify(err, coreerrors.KindApproval)
	}
	if m.machine.State() != approval.StateApproved {
		return coreerrors.ErrApprovalRequired
	}
	return nil
}

// ValidateAndSubmit checks in against cfg, routes the payment, submits it and
// waits for confirmation. Every failure is reported through the status hook
// and returned classified.
func (m *Minter) ValidateAndSubmit(ctx context.Context, cfg Config, in FormInput) error {
	return m.submit(ctx, cfg, in, wallet.Handlers{})
}

func (m *Minter) submit(ctx context.Context, cfg Config, in FormInput, handlers wallet.Handlers) (err error) {
	if cfg.ProductID == nil && !cfg.mintsERC721() {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			m.log().Error("purchase panicked", "panic", r)
			err = coreerrors.New(coreerrors.KindPayment, coreerrors.CodeTransport, fmt.Errorf("minter: %v", r))
			m.hooks.status(StatusError, message(err))
		}
	}()
	m.hooks.submitting(true)
	defer m.hooks.submitting(false)

	ctx, span := m.tracer.Start(ctx, "minter.submit")
	defer span.End()

	if err = m.checkChain(); err != nil {
		err = m.reject(cfg.ProductID, err)
	} else if cfg.mintsERC721() {
		err = m.mint(ctx, cfg.NftAddress, handlers)
	} else {
		err = m.purchase(ctx, span, cfg, in, handlers)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "submitted")
	return nil
}

func (m *Minter) purchase(ctx context.Context, span trace.Span, cfg Config, in FormInput, handlers wallet.Handlers) error {
	client := m.session.Client()
	if client == nil {
		return m.fail(nil, "", common.Hash{}, coreerrors.Classify(wallet.ErrNoClient, coreerrors.KindPayment))
	}
	product, rules, err := m.snapshotFor(ctx, cfg.ProductID)
	if err != nil {
		return m.reject(cfg.ProductID, err)
	}

	vin := validator.Input{
		Product:     product,
		Quantity:    in.Quantity,
		StartTime:   in.StartTime,
		Duration:    in.Duration,
		Commissions: cfg.Commissions,
	}
	var applied discount.Result
	switch p := product.(type) {
	case types.DonationProduct:
		vin.Token = in.Token
		if in.Token != nil {
			if value, err := amount.ToBaseUnits(in.Amount, in.Token.Decimals); err == nil && value.Sign() > 0 {
				vin.Amount = value
			}
		}
	case types.SubscriptionProduct:
		seconds, ok := durationSeconds(in)
		if ok && in.StartTime > 0 {
			intent := discount.Intent{Renewal: cfg.Renewal, StartTime: in.StartTime, Duration: seconds}
			applied = discount.Evaluate(rules, intent, p.Price, p.PriceDuration)
			vin.Amount = discount.SubscriptionCost(p.Price, p.PriceDuration, seconds, applied)
		}
	}
	checked, err := m.validator.Check(ctx, vin)
	if err != nil {
		return m.reject(cfg.ProductID, err)
	}

	recipient := in.Recipient
	if recipient == (common.Address{}) {
		recipient = cfg.Recipient
	}
	seconds, ok := durationSeconds(in)
	if product.Kind() == types.ProductTypeSubscription && !ok {
		return m.reject(cfg.ProductID, coreerrors.ErrInvalidDuration)
	}
	req := router.Request{
		Action:         router.ActionFor(product.Kind(), cfg.Renewal),
		Product:        product,
		Token:          checked.Token,
		Payer:          client.Address(),
		Quantity:       checked.Quantity,
		Amount:         checked.Base,
		Recipient:      recipient,
		Referrer:       cfg.Referrer,
		StartTime:      in.StartTime,
		Duration:       seconds,
		DiscountRuleID: applied.RuleID(),
		Commissions:    cfg.Commissions,
	}
	route, err := m.router.Route(req)
	if err != nil {
		return m.fail(cfg.ProductID, string(req.Action), common.Hash{}, coreerrors.Classify(err, coreerrors.KindPayment))
	}
	span.SetAttributes(
		attribute.String("action", string(req.Action)),
		attribute.String("path", string(route.Path)),
		attribute.String("amount_in", route.AmountIn.String()),
	)

	pending, err := client.Send(ctx, wallet.Call{To: route.To, Data: route.Data, Value: route.Value})
	if err != nil {
		m.metrics.ObserveSubmission(string(req.Action), string(route.Path), 0, err)
		return m.fail(cfg.ProductID, string(req.Action), common.Hash{}, coreerrors.Classify(err, coreerrors.KindPayment))
	}
	started := time.Now()
	receipt, err := pending.Wait(ctx, wallet.Handlers{
		OnSubmitted: func(hash common.Hash) {
			m.log().Info("purchase submitted", "product", cfg.ProductID.String(), "action", string(req.Action), "path", string(route.Path), "tx", hash.Hex())
			m.emitter.Emit(events.PaymentSubmitted{
				ProductID: cfg.ProductID, Action: string(req.Action), Path: string(route.Path),
				To: route.To, AmountIn: route.AmountIn, TxHash: hash,
			})
			m.hooks.status(StatusWarning, "Transaction submitted: "+hash.Hex())
			if handlers.OnSubmitted != nil {
				handlers.OnSubmitted(hash)
			}
		},
		OnConfirmed: handlers.OnConfirmed,
		OnFailed:    handlers.OnFailed,
	})
	m.metrics.ObserveSubmission(string(req.Action), string(route.Path), time.Since(started), err)
	if err != nil {
		return m.fail(cfg.ProductID, string(req.Action), pending.Hash(), coreerrors.Classify(err, coreerrors.KindPayment))
	}
	m.emitter.Emit(events.PaymentConfirmed{ProductID: cfg.ProductID, Action: string(req.Action), AmountIn: route.AmountIn, TxHash: receiptHash(receipt, pending)})
	m.completed(ctx, cfg, product)
	m.hooks.closeStatus()
	return nil
}

// snapshotFor returns the product to validate against, reusing the loaded
// snapshot when it matches productID.
func (m *Minter) snapshotFor(ctx context.Context, productID *big.Int) (types.Product, []types.DiscountRule, error) {
	m.mu.Lock()
	product, rules := m.product, append([]types.DiscountRule(nil), m.rules...)
	m.mu.Unlock()
	if product != nil && sameID(product.Base().ID, productID) {
		return product, rules, nil
	}
	product, err := m.catalog.Product(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if product.Kind() == types.ProductTypeSubscription {
		if rules, err = m.catalog.DiscountRules(ctx, productID); err != nil {
			m.log().Warn("discount rules unavailable", "product", productID.String(), "error", err)
		}
	}
	return product, rules, nil
}

// completed refreshes the product after a confirmed purchase and fires the
// completion hook for its type.
func (m *Minter) completed(ctx context.Context, cfg Config, product types.Product) {
	switch product.Kind() {
	case types.ProductTypeBuy:
		refreshed := m.refreshProduct(ctx, cfg.ProductID)
		if refreshed == nil {
			refreshed = product
		}
		if m.hooks.OnBoughtProduct != nil {
			m.hooks.OnBoughtProduct(refreshed)
		}
	case types.ProductTypeSubscription:
		refreshed := m.refreshProduct(ctx, cfg.ProductID)
		if refreshed == nil {
			refreshed = product
		}
		if m.hooks.OnSubscribed != nil {
			m.hooks.OnSubscribed(refreshed)
		}
	default:
		if m.hooks.OnDonated != nil {
			m.hooks.OnDonated()
		}
	}
}

// reject reports a purchase stopped before any transaction was built.
func (m *Minter) reject(productID *big.Int, err error) error {
	classified := coreerrors.Classify(err, coreerrors.KindValidation)
	m.metrics.RecordRejection(string(classified.Code))
	m.log().Info("purchase rejected", "code", string(classified.Code), "error", err)
	m.emitter.Emit(events.PurchaseRejected{ProductID: productID, Code: string(classified.Code), Message: message(classified)})
	m.hooks.status(StatusError, message(classified))
	return classified
}

// fail reports a purchase whose transaction could not be built, sent or
// confirmed.
func (m *Minter) fail(productID *big.Int, action string, hash common.Hash, classified *coreerrors.Error) error {
	m.log().Warn("purchase failed", "action", action, "code", string(classified.Code), "tx", hash.Hex(), "error", classified.Err)
	m.emitter.Emit(events.PaymentFailed{ProductID: productID, Action: action, TxHash: hash, Code: string(classified.Code)})
	m.hooks.status(StatusError, message(classified))
	return classified
}

// CreateProduct submits newProduct and returns the id of the created
// product.
func (m *Minter) CreateProduct(ctx context.Context, params contracts.NewProductParams) (*big.Int, error) {
	client := m.session.Client()
	if client == nil {
		return nil, coreerrors.Classify(wallet.ErrNoClient, coreerrors.KindPayment)
	}
	contract := m.catalog.Contract()
	data, err := contract.PackNewProduct(params)
	if err != nil {
		return nil, fmt.Errorf("minter: pack newProduct: %w", err)
	}
	pending, err := client.Send(ctx, wallet.Call{To: contract.Address(), Data: data})
	if err != nil {
		return nil, coreerrors.Classify(err, coreerrors.KindPayment)
	}
	receipt, err := pending.Wait(ctx, wallet.Handlers{})
	if err != nil {
		return nil, coreerrors.Classify(err, coreerrors.KindPayment)
	}
	ids := contract.ParseNewProduct(receipt)
	if len(ids) == 0 {
		return nil, fmt.Errorf("minter: no NewProduct event in %s", pending.Hash().Hex())
	}
	m.emitter.Emit(events.ProductCreated{ProductID: ids[0], TxHash: receiptHash(receipt, pending)})
	return ids[0], nil
}

func receiptHash(receipt *gethtypes.Receipt, pending *wallet.Pending) common.Hash {
	if receipt != nil && receipt.TxHash != (common.Hash{}) {
		return receipt.TxHash
	}
	return pending.Hash()
}

// message is the buyer-facing text of err.
func message(err error) string {
	var classified *coreerrors.Error
	if errors.As(err, &classified) && classified.Message != "" {
		return classified.Message
	}
	return err.Error()
}
