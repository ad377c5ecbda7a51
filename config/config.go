package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultSignerKeyEnv is read when SignerKeyEnv is empty.
const DefaultSignerKeyEnv = "NFTMINTER_SIGNER_KEY"

// Load loads the configuration from the given path. A missing file is
// created with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown key %s in %s", undecoded[0], path)
	}
	applyDefaults(cfg)
	cfg.SignerKey = strings.TrimSpace(os.Getenv(cfg.SignerKeyEnv))
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "nftminter"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8090"
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = "./nftminter-data/journal.db"
	}
	if cfg.SignerKeyEnv == "" {
		cfg.SignerKeyEnv = DefaultSignerKeyEnv
	}
	if cfg.DefaultChainID == 0 && len(cfg.Chains) == 1 {
		cfg.DefaultChainID = cfg.Chains[0].ChainID
	}
	if cfg.RPC.RateLimit <= 0 {
		cfg.RPC.RateLimit = 10
	}
	if cfg.RPC.Burst <= 0 {
		cfg.RPC.Burst = 20
	}
	if cfg.RPC.PollInterval <= 0 {
		cfg.RPC.PollInterval = 2 * time.Second
	}
	if cfg.RPC.GasMarginPercent == 0 {
		cfg.RPC.GasMarginPercent = 20
	}
	if cfg.Gateway.Burst <= 0 && cfg.Gateway.RatePerSecond > 0 {
		cfg.Gateway.Burst = int(cfg.Gateway.RatePerSecond) + 1
	}
	if cfg.Gateway.ReadTimeout <= 0 {
		cfg.Gateway.ReadTimeout = 10 * time.Second
	}
	if cfg.Gateway.WriteTimeout <= 0 {
		cfg.Gateway.WriteTimeout = 15 * time.Second
	}
	if cfg.Gateway.IdleTimeout <= 0 {
		cfg.Gateway.IdleTimeout = 60 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Product.NftType == "" {
		cfg.Product.NftType = "ERC1155"
	}
}

// Chain returns the deployment for chainID.
func (c *Config) Chain(chainID uint64) (Chain, bool) {
	for _, chain := range c.Chains {
		if chain.ChainID == chainID {
			return chain, true
		}
	}
	return Chain{}, false
}

// ProductID parses the configured product id; nil when none is set.
func (c *Config) ProductID() (*big.Int, error) {
	raw := strings.TrimSpace(c.Product.ID)
	if raw == "" {
		return nil, nil
	}
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid Product.ID %q", c.Product.ID)
	}
	return id, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Chains: []Chain{{ChainID: 97, RPCURL: "https://data-seed-prebsc-1-s1.binance.org:8545"}},
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.SignerKey = strings.TrimSpace(os.Getenv(cfg.SignerKeyEnv))
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
