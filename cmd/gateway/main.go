package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nftminter/cmd/internal/bootstrap"
	"nftminter/config"
	"nftminter/gateway/middleware"
	"nftminter/gateway/routes"
	"nftminter/storage/journal"
)

func main() {
	var cfgPath string
	var withJournal bool
	flag.StringVar(&cfgPath, "config", "./nftminter.toml", "path to nftminter configuration")
	flag.BoolVar(&withJournal, "journal", true, "serve the purchase journal read-only")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger, shutdownTelemetry, err := bootstrap.Observe(context.Background(), cfg, "gateway")
	if err != nil {
		logger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	deployments, closeChains, err := bootstrap.Connect(cfg, logger)
	if err != nil {
		logger.Error("connect chains", "error", err)
		os.Exit(1)
	}
	defer closeChains()

	chains := make(map[uint64]routes.Chain, len(deployments))
	for id, d := range deployments {
		chains[id] = routes.Chain{Catalog: d.Catalog, Router: d.Router}
	}

	var store routes.JournalReader
	if withJournal {
		store = journal.NewReader(cfg.JournalPath, time.Second)
	}

	var limiter *middleware.RateLimiter
	if cfg.Gateway.RatePerSecond > 0 {
		limit := middleware.RateLimit{RatePerSecond: cfg.Gateway.RatePerSecond, Burst: cfg.Gateway.Burst}
		limiter = middleware.NewRateLimiter(map[string]middleware.RateLimit{"quotes": limit, "journal": limit}, logger)
	}

	handler, err := routes.New(routes.Config{
		Chains:         chains,
		DefaultChainID: cfg.DefaultChainID,
		Commissions:    cfg.Commissions,
		EmbedderFee:    cfg.EmbedderFee,
		Journal:        store,
		RateLimiter:    limiter,
		Observability:  middleware.NewObservability(logger, cfg.Gateway.LogRequests),
		CORS:           middleware.CORSConfig{AllowedOrigins: cfg.Gateway.AllowedOrigins},
		Logger:         logger,
	})
	if err != nil {
		logger.Error("build routes", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
		IdleTimeout:  cfg.Gateway.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("listen", "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gateway listening", "address", listener.Addr().String(), "chains", len(chains))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
}
