// Package bootstrap wires configuration into the runtime pieces shared by the
// nftminter binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"

	"nftminter/config"
	"nftminter/core/catalog"
	"nftminter/core/router"
	"nftminter/observability/logging"
	telemetry "nftminter/observability/otel"
	"nftminter/sdk/tokens"
	"nftminter/sdk/wallet"
)

// Deployment is the connected read path for one configured chain.
type Deployment struct {
	ChainID uint64
	Backend *ethclient.Client
	Catalog *catalog.Catalog
	Router  *router.Router
}

// Observe installs the structured logger and OTLP providers for component.
func Observe(ctx context.Context, cfg *config.Config, component string) (*slog.Logger, telemetry.Shutdown, error) {
	service := cfg.ServiceName
	if component != "" {
		service += "-" + component
	}
	logger := logging.Setup(service, cfg.Environment, cfg.LogOptions())
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: service,
		Environment: cfg.Environment,
		Endpoint:    strings.TrimSpace(cfg.Telemetry.Endpoint),
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return logger, nil, fmt.Errorf("bootstrap: telemetry: %w", err)
	}
	return logger, shutdown, nil
}

// Registry loads the optional token list.
func Registry(cfg *config.Config) (*tokens.Registry, error) {
	if strings.TrimSpace(cfg.TokenList) == "" {
		return nil, nil
	}
	registry, err := tokens.LoadFile(cfg.TokenList)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: token list: %w", err)
	}
	return registry, nil
}

// Connect dials every configured chain. The returned close func releases the
// RPC clients.
func Connect(cfg *config.Config, logger *slog.Logger) (map[uint64]Deployment, func(), error) {
	registry, err := Registry(cfg)
	if err != nil {
		return nil, nil, err
	}
	deployments := make(map[uint64]Deployment, len(cfg.Chains))
	closeAll := func() {
		for _, d := range deployments {
			d.Backend.Close()
		}
	}
	for _, chain := range cfg.Chains {
		d, err := connect(chain, registry, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		deployments[chain.ChainID] = d
	}
	return deployments, closeAll, nil
}

func connect(chain config.Chain, registry *tokens.Registry, logger *slog.Logger) (Deployment, error) {
	backend, err := wallet.Dial(chain.RPCURL)
	if err != nil {
		return Deployment{}, fmt.Errorf("bootstrap: dial chain %d: %w", chain.ChainID, err)
	}
	logger.Info("chain connected", "chain", chain.ChainID, logging.MaskURL("rpc", chain.RPCURL))
	opts := []catalog.Option{catalog.WithLogger(logger.With("chain", chain.ChainID))}
	if registry != nil {
		opts = append(opts, catalog.WithRegistry(registry))
	}
	return Deployment{
		ChainID: chain.ChainID,
		Backend: backend,
		Catalog: catalog.New(chain.ChainID, chain.ProductInfo, backend, opts...),
		Router:  router.New(chain.ChainID, chain.ProductInfo, chain.Proxy),
	}, nil
}
