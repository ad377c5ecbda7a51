package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"nftminter/core/amount"
	"nftminter/core/approval"
	"nftminter/core/minter"
	"nftminter/core/types"
	"nftminter/sdk/contracts"
)

type command struct {
	journal bool
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"quote":          {run: runQuote},
	"pay":            {journal: true, run: runPay},
	"approve":        {journal: true, run: runApprove},
	"mint":           {journal: true, run: runMint},
	"create-product": {journal: true, run: runCreateProduct},
	"pending":        {journal: true, run: runPending},
}

// form collects the purchase flags shared by quote, pay and approve.
type form struct {
	product   string
	quantity  string
	amount    string
	token     string
	startTime int64
	duration  string
	unit      string
	renewal   bool
}

func (f *form) register(fs *flag.FlagSet) {
	fs.StringVar(&f.product, "product", "", "product id (defaults to Product.ID)")
	fs.StringVar(&f.quantity, "quantity", "1", "quantity for buy products")
	fs.StringVar(&f.amount, "amount", "", "donation amount in token units")
	fs.StringVar(&f.token, "token", "", "donation token address")
	fs.Int64Var(&f.startTime, "start", 0, "subscription start (unix seconds)")
	fs.StringVar(&f.duration, "duration", "", "subscription length in -unit")
	fs.StringVar(&f.unit, "unit", string(minter.UnitDays), "days, weeks, months or years")
	fs.BoolVar(&f.renewal, "renewal", false, "renew an existing subscription")
}

func (f *form) config(e *env) (minter.Config, error) {
	cfg, err := e.minterConfig()
	if err != nil {
		return cfg, err
	}
	if raw := strings.TrimSpace(f.product); raw != "" {
		id, ok := new(big.Int).SetString(raw, 10)
		if !ok || id.Sign() < 0 {
			return cfg, fmt.Errorf("invalid product id %q", raw)
		}
		cfg.ProductID = id
	}
	if f.renewal {
		cfg.Renewal = true
	}
	return cfg, nil
}

func (f *form) input(ctx context.Context, e *env) (minter.FormInput, error) {
	in := minter.FormInput{
		Quantity:  f.quantity,
		Amount:    f.amount,
		StartTime: f.startTime,
		Duration:  f.duration,
		Unit:      minter.DurationUnit(strings.ToLower(strings.TrimSpace(f.unit))),
	}
	if raw := strings.TrimSpace(f.token); raw != "" {
		addr, err := parseAddress("token", raw)
		if err != nil {
			return in, err
		}
		token, err := e.deployment.Catalog.Token(ctx, addr)
		if err != nil {
			return in, err
		}
		in.Token = &token
	}
	return in, nil
}

func runQuote(ctx context.Context, e *env, args []string) error {
	var f form
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := f.config(e)
	if err != nil {
		return err
	}
	if cfg.ProductID == nil {
		return fmt.Errorf("a product id is required")
	}
	in, err := f.input(ctx, e)
	if err != nil {
		return err
	}
	product, err := e.deployment.Catalog.Product(ctx, cfg.ProductID)
	if err != nil {
		return err
	}
	var rules []types.DiscountRule
	if product.Kind() == types.ProductTypeSubscription {
		if rules, err = e.deployment.Catalog.DiscountRules(ctx, cfg.ProductID); err != nil {
			e.logger.Warn("discount rules unavailable", "error", err)
		}
	}
	q, err := minter.QuoteFor(e.deployment.Router, product, rules, cfg, in)
	if err != nil {
		return err
	}
	fmt.Printf("Product:     %s (%s)\n", cfg.ProductID, product.Kind())
	fmt.Printf("Token:       %s %s\n", q.Token.DisplaySymbol(), q.Token.Address.Hex())
	fmt.Printf("Base:        %s\n", q.Split.Base)
	for _, c := range q.Split.Commissions {
		fmt.Printf("Commission:  %s -> %s\n", c.Amount, c.To.Hex())
	}
	fmt.Printf("Amount in:   %s\n", q.Split.AmountIn)
	fmt.Printf("Spender:     %s\n", e.deployment.Router.Spender(q.Split).Hex())
	if q.Discount.Applied {
		fmt.Printf("Discount:    rule %d saves %s\n", q.Discount.RuleID(), q.Discount.Amount.FloatString(int(q.Token.Decimals)))
	}
	human := new(big.Rat).SetFrac(q.Split.AmountIn, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(q.Token.Decimals)), nil))
	shown, err := amount.ApplyFeeDisplay(human, e.cfg.EmbedderFee)
	if err != nil {
		return err
	}
	fmt.Printf("Display:     %s %s\n", amount.FormatRat(shown, int(q.Token.Decimals)), q.Token.DisplaySymbol())
	return nil
}

// prepare binds a minter to the product and quotes in, leaving the approval
// machine bound to the spender.
func prepare(ctx context.Context, e *env, name string, args []string, extra func(fs *flag.FlagSet)) (*minter.Minter, minter.FormInput, error) {
	var f form
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	f.register(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, minter.FormInput{}, err
	}
	cfg, err := f.config(e)
	if err != nil {
		return nil, minter.FormInput{}, err
	}
	if cfg.ProductID == nil {
		return nil, minter.FormInput{}, fmt.Errorf("a product id is required")
	}
	m, err := e.signedMinter(cliHooks())
	if err != nil {
		return nil, minter.FormInput{}, err
	}
	m.SetConfig(cfg)
	if _, err := m.SetProduct(ctx, cfg.ProductID); err != nil {
		return nil, minter.FormInput{}, err
	}
	in, err := f.input(ctx, e)
	if err != nil {
		return nil, minter.FormInput{}, err
	}
	quoted, err := m.ComputeAmount(ctx, in)
	if err != nil {
		return nil, minter.FormInput{}, err
	}
	display, _ := m.DisplayAmount()
	fmt.Printf("Amount in: %s (%s)\n", quoted, display)
	return m, in, nil
}

func runApprove(ctx context.Context, e *env, args []string) error {
	m, _, err := prepare(ctx, e, "approve", args, nil)
	if err != nil {
		return err
	}
	if m.Approval().State() != approval.StateNeedsApproval {
		fmt.Println("Allowance already covers the amount.")
		return nil
	}
	return m.ApproveAction(ctx)
}

func runPay(ctx context.Context, e *env, args []string) error {
	autoApprove := true
	m, in, err := prepare(ctx, e, "pay", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&autoApprove, "approve", true, "approve the spender first when the allowance is short")
	})
	if err != nil {
		return err
	}
	if m.Approval().State() == approval.StateNeedsApproval {
		if !autoApprove {
			return fmt.Errorf("allowance too low; run approve first or pass -approve")
		}
		if err := m.ApproveAction(ctx); err != nil {
			return err
		}
	}
	return m.PayAction(ctx, in)
}

func runMint(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	nft := fs.String("nft", "", "troll NFT contract (defaults to Product.NftAddress)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr := e.cfg.Product.NftAddress
	if *nft != "" {
		parsed, err := parseAddress("nft", *nft)
		if err != nil {
			return err
		}
		addr = parsed
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("an NFT contract address is required")
	}
	m, err := e.signedMinter(cliHooks())
	if err != nil {
		return err
	}
	info, err := m.FetchNftInfo(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Printf("Remaining: %s  Price: %s %s  Held: %s\n", info.Cap, info.Price, info.Token.DisplaySymbol(), info.Balance)
	return m.MintNft(ctx, addr)
}

func runCreateProduct(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("create-product", flag.ContinueOnError)
	kind := fs.String("type", "buy", "buy, donateToOwner, donateToEveryone or subscription")
	uri := fs.String("uri", "", "metadata URI")
	quantity := fs.String("quantity", "0", "initial stock")
	maxQuantity := fs.String("max-quantity", "0", "maximum per purchase")
	maxPrice := fs.String("max-price", "0", "maximum price in base units")
	price := fs.String("price", "0", "price in base units")
	token := fs.String("token", "", "payment token (empty for native)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	productType, err := types.ParseProductType(*kind)
	if err != nil {
		return err
	}
	params := contracts.NewProductParams{Type: productType, URI: *uri}
	for _, field := range []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"quantity", *quantity, &params.Quantity},
		{"max-quantity", *maxQuantity, &params.MaxQuantity},
		{"max-price", *maxPrice, &params.MaxPrice},
		{"price", *price, &params.Price},
	} {
		value, ok := new(big.Int).SetString(strings.TrimSpace(field.raw), 10)
		if !ok || value.Sign() < 0 {
			return fmt.Errorf("invalid -%s %q", field.name, field.raw)
		}
		*field.dst = value
	}
	if *token != "" {
		if params.Token, err = parseAddress("token", *token); err != nil {
			return err
		}
	}
	m, err := e.signedMinter(cliHooks())
	if err != nil {
		return err
	}
	id, err := m.CreateProduct(ctx, params)
	if err != nil {
		return err
	}
	fmt.Printf("Created product %s\n", id)
	return nil
}

func runPending(_ context.Context, e *env, _ []string) error {
	if e.journal == nil {
		return fmt.Errorf("journal unavailable at %s", e.cfg.JournalPath)
	}
	pending, err := e.journal.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No pending transactions.")
		return nil
	}
	for _, tx := range pending {
		fmt.Printf("%s  %-8s product=%s action=%s amountIn=%s since %s\n",
			tx.Hash, tx.Kind, tx.ProductID, tx.Action, tx.AmountIn, tx.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func cliHooks() minter.Hooks {
	return minter.Hooks{
		ShowStatus: func(kind minter.StatusKind, message string) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", kind, message)
		},
		OnBoughtProduct: func(product types.Product) {
			fmt.Printf("Bought product %s\n", product.Base().ID)
		},
		OnDonated: func() { fmt.Println("Donation confirmed.") },
		OnSubscribed: func(product types.Product) {
			fmt.Printf("Subscribed to product %s\n", product.Base().ID)
		},
		OnMintedNft: func(info minter.NftInfo) {
			fmt.Printf("Minted; %s remaining, %s held\n", info.Cap, info.Balance)
		},
		Approval: approval.Callbacks{
			OnApproving: func(token types.Token, txHash common.Hash) {
				fmt.Printf("Approving %s: %s\n", token.DisplaySymbol(), txHash.Hex())
			},
			OnApproved: func(token types.Token) {
				fmt.Printf("Approved %s\n", token.DisplaySymbol())
			},
			OnPaying: func(txHash common.Hash) {
				fmt.Printf("Payment submitted: %s\n", txHash.Hex())
			},
			OnPaid: func(receipt *gethtypes.Receipt) {
				fmt.Printf("Payment confirmed in block %s\n", receipt.BlockNumber)
			},
		},
	}
}

func parseAddress(name, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid -%s address %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}
