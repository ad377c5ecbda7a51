package routes

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"nftminter/core/amount"
	"nftminter/core/minter"
	"nftminter/core/router"
	"nftminter/core/types"
)

type tokenView struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Native   bool   `json:"native"`
}

type productView struct {
	ID            string    `json:"id"`
	ChainID       uint64    `json:"chainId"`
	Type          string    `json:"type"`
	URI           string    `json:"uri,omitempty"`
	Price         string    `json:"price"`
	Token         tokenView `json:"token"`
	Remaining     string    `json:"remaining,omitempty"`
	MaxQuantity   string    `json:"maxQuantity,omitempty"`
	PriceDuration uint64    `json:"priceDuration,omitempty"`
}

type commissionView struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type discountView struct {
	RuleID uint64 `json:"ruleId"`
	Amount string `json:"amount"`
}

type quoteView struct {
	ProductID       string           `json:"productId"`
	ChainID         uint64           `json:"chainId"`
	Type            string           `json:"type"`
	Token           tokenView        `json:"token"`
	Base            string           `json:"base"`
	AmountIn        string           `json:"amountIn"`
	CommissionTotal string           `json:"commissionTotal"`
	Commissions     []commissionView `json:"commissions,omitempty"`
	Path            string           `json:"path"`
	Spender         string           `json:"spender"`
	Discount        *discountView    `json:"discount,omitempty"`
	Display         string           `json:"display"`
}

func viewToken(token types.Token) tokenView {
	return tokenView{Address: token.Address.Hex(), Symbol: token.Symbol, Decimals: token.Decimals, Native: token.IsNative()}
}

// chainFor resolves the chainId query parameter.
func (s *server) chainFor(r *http.Request) (uint64, Chain, bool) {
	chainID := s.cfg.DefaultChainID
	if raw := strings.TrimSpace(r.URL.Query().Get("chainId")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, Chain{}, false
		}
		chainID = parsed
	}
	chain, ok := s.cfg.Chains[chainID]
	return chainID, chain, ok
}

func productID(r *http.Request) (*big.Int, bool) {
	id, ok := new(big.Int).SetString(chi.URLParam(r, "id"), 10)
	if !ok || id.Sign() < 0 {
		return nil, false
	}
	return id, true
}

func (s *server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a non-negative integer")
		return
	}
	chainID, chain, ok := s.chainFor(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported_chain", "chain is not configured")
		return
	}
	product, err := chain.Catalog.Product(r.Context(), id)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	base := product.Base()
	view := productView{
		ID:      base.ID.String(),
		ChainID: chainID,
		Type:    string(product.Kind()),
		URI:     base.URI,
		Price:   base.Price.String(),
		Token:   viewToken(base.Token),
	}
	switch p := product.(type) {
	case types.BuyProduct:
		view.Remaining = p.Quantity.String()
		view.MaxQuantity = p.MaxQuantity.String()
	case types.SubscriptionProduct:
		view.PriceDuration = p.PriceDuration
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *server) getQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a non-negative integer")
		return
	}
	chainID, chain, ok := s.chainFor(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported_chain", "chain is not configured")
		return
	}
	ctx := r.Context()
	query := r.URL.Query()

	product, err := chain.Catalog.Product(ctx, id)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	var rules []types.DiscountRule
	if product.Kind() == types.ProductTypeSubscription {
		if rules, err = chain.Catalog.DiscountRules(ctx, id); err != nil {
			s.logger.Warn("discount rules unavailable", "product", id.String(), "error", err)
			rules = nil
		}
	}

	in := minter.FormInput{
		Quantity: query.Get("quantity"),
		Amount:   query.Get("amount"),
		Duration: query.Get("duration"),
		Unit:     minter.DurationUnit(strings.ToLower(query.Get("unit"))),
	}
	if raw := query.Get("startTime"); raw != "" {
		start, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "startTime must be a unix timestamp")
			return
		}
		in.StartTime = start
	}
	if raw := query.Get("token"); raw != "" {
		if !common.IsHexAddress(raw) {
			writeError(w, http.StatusBadRequest, "invalid_token", "token must be an address")
			return
		}
		token, err := chain.Catalog.Token(ctx, common.HexToAddress(raw))
		if err != nil {
			s.writeCoreError(w, err)
			return
		}
		in.Token = &token
	}
	renewal, _ := strconv.ParseBool(query.Get("renewal"))

	q, err := minter.QuoteFor(chain.Router, product, rules, minter.Config{Commissions: s.cfg.Commissions, Renewal: renewal}, in)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	display, err := displayAmount(q.Split.AmountIn, q.Token.Decimals, s.cfg.EmbedderFee)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invalid_fee", err.Error())
		return
	}

	view := quoteView{
		ProductID:       id.String(),
		ChainID:         chainID,
		Type:            string(product.Kind()),
		Token:           viewToken(q.Token),
		Base:            q.Split.Base.String(),
		AmountIn:        q.Split.AmountIn.String(),
		CommissionTotal: q.Split.Total.String(),
		Path:            string(router.PathDirect),
		Spender:         chain.Router.Spender(q.Split).Hex(),
		Display:         display,
	}
	if q.Split.HasCommission() {
		view.Path = string(router.PathProxy)
	}
	for _, c := range q.Split.Commissions {
		view.Commissions = append(view.Commissions, commissionView{To: c.To.Hex(), Amount: c.Amount.String()})
	}
	if q.Discount.Applied {
		view.Discount = &discountView{RuleID: q.Discount.RuleID(), Amount: q.Discount.Amount.FloatString(int(q.Token.Decimals))}
	}
	writeJSON(w, http.StatusOK, view)
}

func displayAmount(value *big.Int, decimals uint8, fee string) (string, error) {
	human := new(big.Rat).SetFrac(value, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	shown, err := amount.ApplyFeeDisplay(human, fee)
	if err != nil {
		return "", err
	}
	return amount.FormatRat(shown, int(decimals)), nil
}
