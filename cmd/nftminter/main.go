package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"nftminter/cmd/internal/bootstrap"
	"nftminter/cmd/internal/signer"
	"nftminter/config"
	"nftminter/core/events"
	"nftminter/core/minter"
	"nftminter/observability"
	"nftminter/sdk/wallet"
	"nftminter/storage/journal"
)

var errUsage = errors.New("usage")

func main() {
	var cfgPath string
	var chainID uint64
	flag.StringVar(&cfgPath, "config", "./nftminter.toml", "path to nftminter configuration")
	flag.Uint64Var(&chainID, "chain", 0, "chain id to use (defaults to DefaultChainID)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, cfgPath, chainID, flag.Arg(0), flag.Args()[1:])
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: nftminter [-config path] [-chain id] <command> [flags]

Commands:
  quote           Price a purchase including commissions
  pay             Approve if needed, then buy, donate or subscribe
  approve         Approve the quoted amount for the payment spender
  mint            Stake to mint from an ERC721 troll contract
  create-product  Register a product on the ProductInfo contract
  pending         List journalled transactions awaiting confirmation`)
}

// env is the runtime shared by every command.
type env struct {
	cfg        *config.Config
	logger     *slog.Logger
	deployment bootstrap.Deployment
	journal    *journal.Journal
	closers    []func()
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func run(ctx context.Context, cfgPath string, chainID uint64, command string, args []string) error {
	cmd, ok := commands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger, shutdown, err := bootstrap.Observe(ctx, cfg, "cli")
	if err != nil {
		return err
	}
	e := &env{cfg: cfg, logger: logger, closers: []func(){func() { _ = shutdown(context.Background()) }}}
	defer e.close()

	if chainID == 0 {
		chainID = cfg.DefaultChainID
	}
	chain, ok := cfg.Chain(chainID)
	if !ok {
		return fmt.Errorf("chain %d is not configured", chainID)
	}
	single := *cfg
	single.Chains = []config.Chain{chain}
	deployments, closeChains, err := bootstrap.Connect(&single, logger)
	if err != nil {
		return err
	}
	e.closers = append(e.closers, closeChains)
	e.deployment = deployments[chainID]

	if cmd.journal {
		if err := e.openJournal(); err != nil {
			logger.Warn("journal unavailable", "path", cfg.JournalPath, "error", err)
		}
	}
	return cmd.run(ctx, e, args)
}

func (e *env) openJournal() error {
	if err := os.MkdirAll(filepath.Dir(e.cfg.JournalPath), 0o755); err != nil {
		return err
	}
	store, err := journal.Open(e.cfg.JournalPath, nil, journal.WithLogger(e.logger))
	if err != nil {
		return err
	}
	e.journal = store
	e.closers = append(e.closers, func() { _ = store.Close() })
	return nil
}

// minterConfig maps the configured product onto the purchase configuration.
func (e *env) minterConfig() (minter.Config, error) {
	id, err := e.cfg.ProductID()
	if err != nil {
		return minter.Config{}, err
	}
	p := e.cfg.Product
	return minter.Config{
		ProductID:   id,
		NftType:     minter.ParseNftType(p.NftType),
		NftAddress:  p.NftAddress,
		Recipient:   p.Recipient,
		Referrer:    p.Referrer,
		Commissions: e.cfg.ActiveCommissions(e.deployment.ChainID),
		Renewal:     p.Renewal,
	}, nil
}

// signedMinter builds a minter around an EVM client for the configured
// signer.
func (e *env) signedMinter(hooks minter.Hooks) (*minter.Minter, error) {
	key, err := signer.NewSource(e.cfg.SignerKeyEnv, e.cfg.SignerKey).Key()
	if err != nil {
		return nil, err
	}
	client, err := wallet.NewEVMClient(e.deployment.Backend, key, e.deployment.ChainID,
		wallet.WithRateLimit(e.cfg.RPC.RateLimit, e.cfg.RPC.Burst),
		wallet.WithPollInterval(e.cfg.RPC.PollInterval),
		wallet.WithGasMargin(e.cfg.RPC.GasMarginPercent),
		wallet.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}
	emitter := events.Multi{observability.Events()}
	if e.journal != nil {
		emitter = append(emitter, e.journal)
	}
	m := minter.New(wallet.NewSession(client), e.deployment.Catalog, e.deployment.Router, hooks,
		minter.WithEmitter(emitter),
		minter.WithLogger(e.logger),
		minter.WithMetrics(observability.Minter()),
		minter.WithEmbedderFee(e.cfg.EmbedderFee),
	)
	e.closers = append(e.closers, m.Close)
	return m, nil
}
