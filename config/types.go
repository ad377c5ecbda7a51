package config

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"nftminter/core/types"
)

// Config is the nftminter service configuration.
type Config struct {
	ServiceName   string `toml:"ServiceName"`
	Environment   string `toml:"Environment"`
	ListenAddress string `toml:"ListenAddress"`
	JournalPath   string `toml:"JournalPath"`
	// TokenList is an optional YAML token list.
	TokenList string `toml:"TokenList"`
	// EmbedderFee is a display-only fee fraction, e.g. "0.01".
	EmbedderFee    string `toml:"EmbedderFee"`
	DefaultChainID uint64 `toml:"DefaultChainID"`
	// SignerKeyEnv names the environment variable holding the hex signer key.
	SignerKeyEnv string `toml:"SignerKeyEnv"`
	SignerKey    string `toml:"-"`

	Chains      []Chain                `toml:"Chains"`
	Commissions []types.CommissionInfo `toml:"Commissions"`
	Product     Product                `toml:"Product"`
	RPC         RPC                    `toml:"RPC"`
	Gateway     Gateway                `toml:"Gateway"`
	Logging     Logging                `toml:"Logging"`
	Telemetry   Telemetry              `toml:"Telemetry"`
}

// Chain holds the contract deployment on one chain.
type Chain struct {
	ChainID     uint64         `toml:"ChainID"`
	RPCURL      string         `toml:"RPCURL"`
	ProductInfo common.Address `toml:"ProductInfo"`
	// Proxy is the commission proxy; zero disables commissions on the chain.
	Proxy common.Address `toml:"Proxy"`
}

// Product is the embedded purchase configuration.
type Product struct {
	ID         string         `toml:"ID"`
	NftType    string         `toml:"NftType"`
	NftAddress common.Address `toml:"NftAddress"`
	Recipient  common.Address `toml:"Recipient"`
	Referrer   common.Address `toml:"Referrer"`
	Renewal    bool           `toml:"Renewal"`
}

// RPC tunes the EVM client.
type RPC struct {
	RateLimit        float64       `toml:"RateLimit"`
	Burst            int           `toml:"Burst"`
	PollInterval     time.Duration `toml:"PollInterval"`
	GasMarginPercent uint64        `toml:"GasMarginPercent"`
}

// Gateway tunes the read-only quote API.
type Gateway struct {
	RatePerSecond  float64       `toml:"RatePerSecond"`
	Burst          int           `toml:"Burst"`
	AllowedOrigins []string      `toml:"AllowedOrigins"`
	LogRequests    bool          `toml:"LogRequests"`
	ReadTimeout    time.Duration `toml:"ReadTimeout"`
	WriteTimeout   time.Duration `toml:"WriteTimeout"`
	IdleTimeout    time.Duration `toml:"IdleTimeout"`
}

// Logging configures the slog handler and optional rotated log file.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Metrics     bool    `toml:"Metrics"`
	Traces      bool    `toml:"Traces"`
	SampleRatio float64 `toml:"SampleRatio"`
}
