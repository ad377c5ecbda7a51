package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"nftminter/core/types"
	"nftminter/observability/logging"
)

var levels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate checks cross-field constraints after defaults are applied.
func Validate(cfg *Config) error {
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("config: at least one chain required")
	}
	seen := make(map[uint64]bool, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		if chain.ChainID == 0 {
			return fmt.Errorf("config: chain id must be set")
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("config: chain %d listed twice", chain.ChainID)
		}
		seen[chain.ChainID] = true
	}
	if _, ok := cfg.Chain(cfg.DefaultChainID); !ok {
		return fmt.Errorf("config: DefaultChainID %d has no chain entry", cfg.DefaultChainID)
	}

	if raw := strings.TrimSpace(cfg.EmbedderFee); raw != "" {
		fee, ok := new(big.Rat).SetString(raw)
		if !ok || fee.Sign() < 0 || fee.Cmp(big.NewRat(1, 1)) >= 0 {
			return fmt.Errorf("config: EmbedderFee %q must be a fraction in [0,1)", cfg.EmbedderFee)
		}
	}

	totals := make(map[uint64]*big.Rat)
	for i, commission := range cfg.Commissions {
		share, err := commission.ShareRat()
		if err != nil {
			return fmt.Errorf("config: commission %d: %w", i, err)
		}
		if commission.WalletAddress == (common.Address{}) {
			return fmt.Errorf("config: commission %d: wallet address required", i)
		}
		chain, ok := cfg.Chain(commission.ChainID)
		if !ok {
			return fmt.Errorf("config: commission %d: chain %d not configured", i, commission.ChainID)
		}
		if share.Sign() > 0 && chain.Proxy == (common.Address{}) {
			return fmt.Errorf("config: commission %d: chain %d has no proxy", i, commission.ChainID)
		}
		if totals[commission.ChainID] == nil {
			totals[commission.ChainID] = new(big.Rat)
		}
		totals[commission.ChainID].Add(totals[commission.ChainID], share)
	}
	for chainID, total := range totals {
		if total.Cmp(big.NewRat(1, 1)) > 0 {
			return fmt.Errorf("config: commissions on chain %d exceed 100%%", chainID)
		}
	}

	if _, err := cfg.ProductID(); err != nil {
		return err
	}
	switch strings.ToUpper(strings.TrimSpace(cfg.Product.NftType)) {
	case "ERC1155", "ERC721":
	default:
		return fmt.Errorf("config: unsupported NftType %q", cfg.Product.NftType)
	}
	if strings.EqualFold(cfg.Product.NftType, "ERC721") && cfg.Product.ID == "" && cfg.Product.NftAddress == (common.Address{}) {
		return fmt.Errorf("config: ERC721 minting requires Product.NftAddress")
	}

	if !levels[strings.ToLower(strings.TrimSpace(cfg.Logging.Level))] {
		return fmt.Errorf("config: unknown log level %q", cfg.Logging.Level)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("config: Telemetry.SampleRatio must be within [0,1]")
	}
	if cfg.Gateway.RatePerSecond < 0 {
		return fmt.Errorf("config: Gateway.RatePerSecond must not be negative")
	}
	return nil
}

// ActiveCommissions returns the commissions configured for chainID.
func (c *Config) ActiveCommissions(chainID uint64) []types.CommissionInfo {
	return types.FilterCommissions(c.Commissions, chainID)
}

// LogOptions converts the logging section for logging.Setup.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		Level:      logging.ParseLevel(c.Logging.Level),
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}
