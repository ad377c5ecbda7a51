// Package minter orchestrates product purchases: it keeps the quoted amount
// and allowance in sync with the buyer's input, validates and routes the
// payment and reports its lifecycle to the embedding UI.
package minter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"nftminter/core/amount"
	"nftminter/core/approval"
	"nftminter/core/catalog"
	"nftminter/core/discount"
	coreerrors "nftminter/core/errors"
	"nftminter/core/events"
	"nftminter/core/router"
	"nftminter/core/types"
	"nftminter/core/validator"
	"nftminter/observability"
	"nftminter/observability/logging"
	"nftminter/sdk/wallet"
)

// ErrStale is returned when a fetch finished after the wallet or the
// configuration changed; its result was discarded.
var ErrStale = errors.New("minter: result superseded by a wallet or configuration change")

// Minter drives purchases for one embedded product.
type Minter struct {
	session   *wallet.Session
	catalog   *catalog.Catalog
	router    *router.Router
	validator *validator.Validator
	machine   *approval.Machine
	hooks     Hooks
	emitter   events.Emitter
	metrics   *observability.MinterMetrics
	logger    *slog.Logger
	tracer    trace.Tracer
	fee       string

	unsubscribe func()

	mu       sync.Mutex
	config   Config
	version  uint64
	product  types.Product
	rules    []types.DiscountRule
	discount discount.Result
	amountIn *big.Int
	last     *FormInput
	nft      *NftInfo
}

// Option customises the minter.
type Option func(*Minter)

// WithEmitter publishes purchase and approval events.
func WithEmitter(emitter events.Emitter) Option {
	return func(m *Minter) { m.emitter = emitter }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Minter) { m.logger = logger }
}

// WithMetrics records submissions in metrics.
func WithMetrics(metrics *observability.MinterMetrics) Option {
	return func(m *Minter) { m.metrics = metrics }
}

// WithEmbedderFee sets the fee fraction shown on top of quoted amounts. It is
// never charged.
func WithEmbedderFee(fee string) Option {
	return func(m *Minter) { m.fee = fee }
}

// New wires a minter to session. cat and r must target the session's chain.
func New(session *wallet.Session, cat *catalog.Catalog, r *router.Router, hooks Hooks, opts ...Option) *Minter {
	m := &Minter{
		session:  session,
		catalog:  cat,
		router:   r,
		hooks:    hooks,
		emitter:  events.NoopEmitter{},
		tracer:   otel.Tracer("nftminter/minter"),
		amountIn: big.NewInt(0),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.emitter == nil {
		m.emitter = events.NoopEmitter{}
	}
	m.validator = validator.New(r, cat, sessionBalances{session: session}, validator.WithLogger(m.log()))
	m.machine = approval.New(session, m.approvalCallbacks(), approval.WithEmitter(m.emitter), approval.WithLogger(m.log()))
	if session != nil {
		m.unsubscribe = session.Subscribe(func(wallet.Snapshot) { m.dropQuote() })
	}
	return m
}

// Close detaches the minter and its approval machine from the session.
func (m *Minter) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.machine.Close()
}

func (m *Minter) log() *slog.Logger {
	if m != nil && m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

func (m *Minter) approvalCallbacks() approval.Callbacks {
	cb := m.hooks.Approval
	approved := cb.OnApproved
	failed := cb.OnApprovingError
	cb.OnApproved = func(token types.Token) {
		m.metrics.RecordApproval(nil)
		if approved != nil {
			approved(token)
		}
	}
	cb.OnApprovingError = func(token types.Token, err error) {
		m.metrics.RecordApproval(err)
		if failed != nil {
			failed(token, err)
		}
	}
	return cb
}

// Approval exposes the approval machine driven by the minter.
func (m *Minter) Approval() *approval.Machine { return m.machine }

// dropQuote forgets the amounts computed for the previous wallet.
func (m *Minter) dropQuote() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amountIn = big.NewInt(0)
	m.nft = nil
}

// SetConfig replaces the purchase configuration. Results of fetches started
// under the previous configuration are discarded.
func (m *Minter) SetConfig(cfg Config) {
	m.mu.Lock()
	if !sameID(m.config.ProductID, cfg.ProductID) {
		m.product = nil
		m.rules = nil
		m.discount = discount.Result{}
	}
	m.config = cfg
	m.version++
	m.warnDuplicatesLocked()
	m.mu.Unlock()
	m.rebind()
}

// Config returns the current configuration.
func (m *Minter) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// UpdateCommissions replaces the commission list.
func (m *Minter) UpdateCommissions(commissions []types.CommissionInfo) {
	m.mu.Lock()
	m.config.Commissions = append([]types.CommissionInfo(nil), commissions...)
	m.version++
	m.warnDuplicatesLocked()
	m.mu.Unlock()
	m.rebind()
}

func (m *Minter) warnDuplicatesLocked() {
	active := types.FilterCommissions(m.config.Commissions, m.router.ChainID())
	for _, addr := range types.DuplicateWallets(active) {
		m.log().Warn("commission wallet listed more than once", logging.MaskAddress("wallet", addr))
	}
}

// SetRenewal switches subscriptions between subscribe and renewSubscription.
func (m *Minter) SetRenewal(renewal bool) {
	m.mu.Lock()
	changed := m.config.Renewal != renewal
	if changed {
		m.config.Renewal = renewal
		m.version++
	}
	m.mu.Unlock()
	if changed {
		m.rebind()
	}
}

// rebind points the approval machine at the spender the current
// configuration implies for the last quoted entry. A different spender or
// token returns the machine to Idle, so the allowance is checked again before
// anything can be paid. Without a quote to price the machine is reset.
func (m *Minter) rebind() {
	status := m.machine.Status()
	if status.Binding.Owner == (common.Address{}) {
		return
	}
	m.mu.Lock()
	var (
		q   Quote
		err error
	)
	if m.last == nil {
		err = coreerrors.ErrUnsupportedProduct
	} else {
		q, err = QuoteFor(m.router, m.product, m.rules, m.config, *m.last)
	}
	if err != nil {
		m.amountIn = big.NewInt(0)
	} else {
		m.amountIn = new(big.Int).Set(q.Split.AmountIn)
	}
	m.mu.Unlock()

	if err != nil {
		m.machine.Reset()
		return
	}
	binding := status.Binding
	binding.Spender = m.router.Spender(q.Split)
	binding.Token = q.Token
	if m.machine.Bind(binding) {
		m.log().Info("approval rebound after configuration change", logging.MaskAddress("spender", binding.Spender))
	}
}

// checkChain rejects a wallet connected to a chain other than the router's.
// No wallet is not an error; quotes work without one.
func (m *Minter) checkChain() error {
	if m.session == nil {
		return nil
	}
	snap := m.session.Snapshot()
	if snap.ChainID == 0 || snap.ChainID == m.router.ChainID() {
		return nil
	}
	m.log().Warn("wallet on unsupported chain", "wallet_chain", snap.ChainID, "chain", m.router.ChainID())
	return coreerrors.ErrUnsupportedChain
}

// Product returns the current product snapshot or nil.
func (m *Minter) Product() types.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.product
}

// DiscountRules returns the loaded discount rules.
func (m *Minter) DiscountRules() []types.DiscountRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.DiscountRule(nil), m.rules...)
}

// Discount returns the discount applied to the last quote.
func (m *Minter) Discount() discount.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discount
}

// TokenAmountIn returns the last quoted amount in base units.
func (m *Minter) TokenAmountIn() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.amountIn.String()
}

// stamp captures the state a fetch result must still match.
type stamp struct {
	epoch   uint64
	version uint64
}

func (m *Minter) stamp() stamp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return stamp{epoch: m.session.Snapshot().Epoch, version: m.version}
}

func (m *Minter) currentLocked(s stamp) bool {
	return s.version == m.version && m.session.Current(s.epoch)
}

// SetProduct loads productID, and for subscriptions its discount rules, as
// the current product. A result that arrives after a wallet or configuration
// change is dropped with ErrStale.
func (m *Minter) SetProduct(ctx context.Context, productID *big.Int) (types.Product, error) {
	if err := m.checkChain(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if !sameID(m.config.ProductID, productID) {
		m.config.ProductID = cloneID(productID)
		m.product = nil
		m.rules = nil
		m.discount = discount.Result{}
		m.version++
	}
	m.mu.Unlock()

	s := m.stamp()
	product, err := m.catalog.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	var rules []types.DiscountRule
	if product.Kind() == types.ProductTypeSubscription {
		rules, err = m.catalog.DiscountRules(ctx, productID)
		if err != nil {
			m.log().Warn("discount rules unavailable", "product", productID.String(), "error", err)
			rules = nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(s) {
		m.metrics.RecordStale("product")
		return nil, ErrStale
	}
	m.product = product
	m.rules = rules
	return product, nil
}

// refreshProduct replaces the snapshot after a confirmed purchase.
func (m *Minter) refreshProduct(ctx context.Context, productID *big.Int) types.Product {
	s := m.stamp()
	product, err := m.catalog.Product(ctx, productID)
	if err != nil {
		m.log().Warn("product refresh failed", "product", productID.String(), "error", err)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(s) || !sameID(m.config.ProductID, productID) {
		m.metrics.RecordStale("product_refresh")
		return product
	}
	m.product = product
	return product
}

// UpdateDiscount evaluates the discount rules for a subscription entry and
// remembers the result for the next submission.
func (m *Minter) UpdateDiscount(in FormInput) discount.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discount = m.evaluateLocked(in)
	return m.discount
}

func (m *Minter) evaluateLocked(in FormInput) discount.Result {
	none := discount.Result{Amount: new(big.Rat)}
	sub, ok := m.product.(types.SubscriptionProduct)
	if !ok || len(m.rules) == 0 || in.StartTime <= 0 {
		return none
	}
	seconds, ok := durationSeconds(in)
	if !ok {
		return none
	}
	intent := discount.Intent{Renewal: m.config.Renewal, StartTime: in.StartTime, Duration: seconds}
	return discount.Evaluate(m.rules, intent, sub.Price, sub.PriceDuration)
}

// Quote is the amount owed for one form entry.
type Quote struct {
	Product  types.Product
	Token    types.Token
	Base     *big.Int
	Split    amount.Split
	Discount discount.Result
}

// QuoteFor prices in against product without touching any wallet. Missing or
// malformed entries quote zero.
func QuoteFor(r *router.Router, product types.Product, rules []types.DiscountRule, cfg Config, in FormInput) (Quote, error) {
	if product == nil {
		return Quote{}, coreerrors.ErrUnsupportedProduct
	}
	q := Quote{Product: product, Token: product.Base().Token, Base: big.NewInt(0), Discount: discount.Result{Amount: new(big.Rat)}}
	switch p := product.(type) {
	case types.BuyProduct:
		if quantity, ok := amount.ParseInteger(in.Quantity); ok {
			q.Base = amount.BaseAmount(p.Price, quantity)
		}
	case types.DonationProduct:
		if in.Token != nil {
			q.Token = *in.Token
		}
		if value, err := amount.ToBaseUnits(in.Amount, q.Token.Decimals); err == nil {
			q.Base = value
		}
	case types.SubscriptionProduct:
		if seconds, ok := durationSeconds(in); ok {
			if len(rules) > 0 && in.StartTime > 0 {
				intent := discount.Intent{Renewal: cfg.Renewal, StartTime: in.StartTime, Duration: seconds}
				q.Discount = discount.Evaluate(rules, intent, p.Price, p.PriceDuration)
			}
			q.Base = discount.SubscriptionCost(p.Price, p.PriceDuration, seconds, q.Discount)
		}
	}
	split, err := r.Split(q.Base, cfg.Commissions)
	if err != nil {
		return Quote{}, coreerrors.New(coreerrors.KindValidation, coreerrors.CodeInvalidCommission, err)
	}
	q.Split = split
	return q, nil
}

// ComputeAmount recomputes the amount to authorise for in, including
// commissions, and re-checks the allowance of the spender it implies. The
// amount is returned in base units.
func (m *Minter) ComputeAmount(ctx context.Context, in FormInput) (string, error) {
	if err := m.checkChain(); err != nil {
		m.mu.Lock()
		m.amountIn = big.NewInt(0)
		m.mu.Unlock()
		return "0", err
	}
	m.mu.Lock()
	last := in
	m.last = &last
	q, err := QuoteFor(m.router, m.product, m.rules, m.config, in)
	if err != nil {
		m.amountIn = big.NewInt(0)
		m.mu.Unlock()
		return "0", err
	}
	m.amountIn = new(big.Int).Set(q.Split.AmountIn)
	if _, ok := q.Product.(types.SubscriptionProduct); ok {
		m.discount = q.Discount
	}
	m.mu.Unlock()

	if err := m.checkAllowance(ctx, q.Token, q.Split); err != nil {
		return q.Split.AmountIn.String(), err
	}
	return q.Split.AmountIn.String(), nil
}

func (m *Minter) checkAllowance(ctx context.Context, token types.Token, split amount.Split) error {
	snap := m.session.Snapshot()
	if snap.Account == (common.Address{}) {
		return nil
	}
	m.machine.Bind(approval.Binding{
		ChainID: m.router.ChainID(),
		Owner:   snap.Account,
		Spender: m.router.Spender(split),
		Token:   token,
	})
	err := m.machine.CheckAllowance(ctx, split.AmountIn)
	if errors.Is(err, approval.ErrSuperseded) {
		return nil
	}
	return err
}

// DisplayAmount renders the last quote in human units with the embedder fee
// added for display.
func (m *Minter) DisplayAmount() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	decimals := uint8(18)
	if m.product != nil {
		decimals = m.product.Base().Token.Decimals
	}
	human := new(big.Rat).SetFrac(m.amountIn, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	shown, err := amount.ApplyFeeDisplay(human, m.fee)
	if err != nil {
		return "", fmt.Errorf("minter: %w", err)
	}
	return amount.FormatRat(shown, int(decimals)), nil
}

// durationSeconds converts a duration entry into seconds. Entries that are
// missing, zero or too long to fit in a uint64 are rejected.
func durationSeconds(in FormInput) (uint64, bool) {
	count, ok := amount.ParseInteger(in.Duration)
	if !ok || count.Sign() == 0 || !count.IsUint64() {
		return 0, false
	}
	perUnit := in.Unit.Days() * discount.SecondsPerDay
	if count.Uint64() > math.MaxUint64/perUnit {
		return 0, false
	}
	return count.Uint64() * perUnit, true
}

func sameID(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

func cloneID(id *big.Int) *big.Int {
	if id == nil {
		return nil
	}
	return new(big.Int).Set(id)
}

// sessionBalances reads balances through whichever wallet is connected.
type sessionBalances struct {
	session *wallet.Session
}

func (b sessionBalances) Balance(ctx context.Context, token types.Token) (*big.Int, error) {
	if b.session == nil {
		return nil, wallet.ErrNoClient
	}
	client := b.session.Client()
	if client == nil {
		return nil, wallet.ErrNoClient
	}
	return client.Balance(ctx, token)
}
