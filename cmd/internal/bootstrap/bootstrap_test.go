package bootstrap

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"nftminter/config"
)

func TestRegistryOptional(t *testing.T) {
	registry, err := Registry(&config.Config{})
	require.NoError(t, err)
	require.Nil(t, registry)
}

func TestRegistryLoadsList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	list := "tokens:\n  - chain_id: 97\n    address: \"0x0000000000000000000000000000000000000a03\"\n    symbol: USDT\n    decimals: 6\n"
	require.NoError(t, os.WriteFile(path, []byte(list), 0o600))

	registry, err := Registry(&config.Config{TokenList: path})
	require.NoError(t, err)
	token, ok := registry.Lookup(97, common.HexToAddress("0x0a03"))
	require.True(t, ok)
	require.Equal(t, uint8(6), token.Decimals)
}

func TestConnectBuildsDeployments(t *testing.T) {
	cfg := &config.Config{Chains: []config.Chain{{
		ChainID:     97,
		RPCURL:      "http://127.0.0.1:8545",
		ProductInfo: common.HexToAddress("0x0a01"),
		Proxy:       common.HexToAddress("0x0a02"),
	}}}
	deployments, closeAll, err := Connect(cfg, slog.Default())
	require.NoError(t, err)
	defer closeAll()
	d, ok := deployments[97]
	require.True(t, ok)
	require.Equal(t, uint64(97), d.Router.ChainID())
	require.Equal(t, uint64(97), d.Catalog.ChainID())
	require.Equal(t, common.HexToAddress("0x0a01"), d.Router.ProductContract())
}

func TestConnectRejectsMissingEndpoint(t *testing.T) {
	_, _, err := Connect(&config.Config{Chains: []config.Chain{{ChainID: 97}}}, slog.Default())
	require.Error(t, err)
}
