package routes

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"nftminter/core/catalog"
	"nftminter/core/events"
	"nftminter/core/router"
	"nftminter/core/types"
	"nftminter/gateway/middleware"
	"nftminter/sdk/contracts/contractstest"
	"nftminter/sdk/wallet"
	"nftminter/sdk/wallet/wallettest"
	"nftminter/storage/journal"
)

var (
	productAddr = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	proxyAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	tokenAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a03")
	partner     = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

func newServer(t *testing.T, j *journal.Journal) http.Handler {
	t.Helper()
	chain := contractstest.NewChain(productAddr)
	chain.SetToken(tokenAddr, contractstest.Token{Symbol: "USDT", Name: "Tether", Decimals: 2})
	chain.SetProduct(types.RawProduct{
		ProductType: 0, ProductID: big.NewInt(1), Quantity: big.NewInt(10),
		Price: big.NewInt(100), MaxQuantity: big.NewInt(10), Token: types.Token{Address: tokenAddr},
	})
	chain.SetProduct(types.RawProduct{
		ProductType: 3, ProductID: big.NewInt(3), Price: big.NewInt(300),
		PriceDuration: big.NewInt(30 * 86400), Token: types.Token{Address: tokenAddr},
	})
	ledger := wallettest.NewLedger(97, common.Address{})
	ledger.CallFunc = chain.Call

	cfg := Config{
		Chains: map[uint64]Chain{97: {
			Catalog: catalog.New(97, productAddr, wallet.Caller(ledger)),
			Router:  router.New(97, productAddr, proxyAddr),
		}},
		DefaultChainID: 97,
		Commissions:    []types.CommissionInfo{{ChainID: 97, WalletAddress: partner, Share: "0.05"}},
		EmbedderFee:    "0.1",
		Observability:  middleware.NewObservability(nil, false),
	}
	if j != nil {
		cfg.Journal = j
	}
	handler, err := New(cfg)
	require.NoError(t, err)
	return handler
}

func get(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	body := map[string]any{}
	if res.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	}
	return res, body
}

func TestQuoteIncludesCommissions(t *testing.T) {
	handler := newServer(t, nil)
	res, body := get(t, handler, "/v1/products/1/quote?quantity=2")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "200", body["base"])
	require.Equal(t, "210", body["amountIn"])
	require.Equal(t, "10", body["commissionTotal"])
	require.Equal(t, "proxy", body["path"])
	require.Equal(t, proxyAddr.Hex(), body["spender"])
	require.Equal(t, "2.31", body["display"])
}

func TestSubscriptionQuote(t *testing.T) {
	handler := newServer(t, nil)
	res, body := get(t, handler, "/v1/products/3/quote?startTime=1700000000&duration=2&unit=months")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "600", body["base"])
	require.Equal(t, "630", body["amountIn"])
	require.Nil(t, body["discount"])
}

func TestProductView(t *testing.T) {
	handler := newServer(t, nil)
	res, body := get(t, handler, "/v1/products/1")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "Buy", body["type"])
	require.Equal(t, "10", body["remaining"])
	token := body["token"].(map[string]any)
	require.Equal(t, "USDT", token["symbol"])
}

func TestUnknownProductIsNotFound(t *testing.T) {
	handler := newServer(t, nil)
	res, body := get(t, handler, "/v1/products/99/quote")
	require.Equal(t, http.StatusNotFound, res.Code)
	require.Equal(t, "unsupported_product", body["error"])
}

func TestBadRequests(t *testing.T) {
	handler := newServer(t, nil)
	for _, path := range []string{
		"/v1/products/abc/quote",
		"/v1/products/1/quote?chainId=56",
		"/v1/products/1/quote?startTime=soon",
		"/v1/products/1/quote?token=nope",
	} {
		res, _ := get(t, handler, path)
		require.Equal(t, http.StatusBadRequest, res.Code, path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	handler := newServer(t, nil)
	res, _ := get(t, handler, "/healthz")
	require.Equal(t, http.StatusOK, res.Code)
	get(t, handler, "/v1/products/1/quote?quantity=1")
	res, _ = get(t, handler, "/metrics")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "nftminter_gateway_requests_total")
}

func TestJournalEndpoints(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	hash := common.HexToHash("0x0f")
	j.Emit(events.PaymentSubmitted{ProductID: big.NewInt(1), Action: "buy", Path: "proxy", AmountIn: big.NewInt(210), TxHash: hash})

	handler := newServer(t, j)
	res, body := get(t, handler, "/v1/journal/transactions/"+hash.Hex())
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "submitted", body["status"])

	res, body = get(t, handler, "/v1/journal/events?limit=10")
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, body["events"], 1)

	res, _ = get(t, handler, "/v1/journal/transactions/0x00")
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestJournalRoutesAbsentWithoutJournal(t *testing.T) {
	handler := newServer(t, nil)
	res, _ := get(t, handler, "/v1/journal/events")
	require.Equal(t, http.StatusNotFound, res.Code)
}
