package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"nftminter/core/types"
	"nftminter/observability/logging"
	"nftminter/sdk/contracts"
)

// Backend defines the subset of the Ethereum RPC used by EVMClient.
// *ethclient.Client satisfies it.
type Backend interface {
	contracts.Caller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Dial initialises an Ethereum RPC client for the provided endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("wallet: rpc endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// ParseKey decodes a hex encoded secp256k1 private key.
func ParseKey(raw string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("wallet: signer key required")
	}
	key, err := gethcrypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse signer key: %w", err)
	}
	return key, nil
}

// EVMClient signs and submits dynamic fee transactions with a local key.
type EVMClient struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	from         common.Address
	chainID      uint64
	limiter      *rate.Limiter
	pollInterval time.Duration
	gasMargin    uint64
	logger       *slog.Logger
}

// EVMOption customises the client.
type EVMOption func(*EVMClient)

// WithRateLimit throttles RPC requests to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) EVMOption {
	return func(c *EVMClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithPollInterval configures the receipt polling cadence.
func WithPollInterval(interval time.Duration) EVMOption {
	return func(c *EVMClient) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithGasMargin adds percent on top of the estimated gas limit.
func WithGasMargin(percent uint64) EVMOption {
	return func(c *EVMClient) { c.gasMargin = percent }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EVMOption {
	return func(c *EVMClient) { c.logger = logger }
}

// NewEVMClient binds key to backend on chainID.
func NewEVMClient(backend Backend, key *ecdsa.PrivateKey, chainID uint64, opts ...EVMOption) (*EVMClient, error) {
	if backend == nil {
		return nil, fmt.Errorf("wallet: backend required")
	}
	if key == nil {
		return nil, fmt.Errorf("wallet: signer key required")
	}
	if chainID == 0 {
		return nil, fmt.Errorf("wallet: chain id required")
	}
	client := &EVMClient{
		backend:      backend,
		key:          key,
		from:         gethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		pollInterval: 3 * time.Second,
		gasMargin:    20,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ChainID returns the bound chain.
func (c *EVMClient) ChainID() uint64 { return c.chainID }

// Address returns the signer address.
func (c *EVMClient) Address() common.Address { return c.from }

func (c *EVMClient) log() *slog.Logger {
	if c != nil && c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

func (c *EVMClient) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// CallContract performs a throttled eth_call.
func (c *EVMClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	return c.backend.CallContract(ctx, msg, blockNumber)
}

// Call performs an eth_call from the signer address.
func (c *EVMClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data}, nil)
}

// Balance returns the signer's balance of token in base units.
func (c *EVMClient) Balance(ctx context.Context, token types.Token) (*big.Int, error) {
	if token.IsNative() {
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
		return c.backend.BalanceAt(ctx, c.from, nil)
	}
	return contracts.NewERC20(token.Address, c).BalanceOf(ctx, c.from)
}

// Allowance returns the ERC20 allowance granted by owner to spender.
func (c *EVMClient) Allowance(ctx context.Context, token types.Token, owner, spender common.Address) (*big.Int, error) {
	if token.IsNative() {
		return nil, fmt.Errorf("wallet: native currency has no allowance")
	}
	return contracts.NewERC20(token.Address, c).Allowance(ctx, owner, spender)
}

// Approve grants spender an allowance of amount.
func (c *EVMClient) Approve(ctx context.Context, token types.Token, spender common.Address, amount *big.Int) (*Pending, error) {
	if token.IsNative() {
		return nil, fmt.Errorf("wallet: native currency cannot be approved")
	}
	data, err := contracts.NewERC20(token.Address, c).PackApprove(spender, amount)
	if err != nil {
		return nil, fmt.Errorf("wallet: pack approve: %w", err)
	}
	return c.Send(ctx, Call{To: token.Address, Data: data})
}

// Send signs and broadcasts call as a dynamic fee transaction.
func (c *EVMClient) Send(ctx context.Context, call Call) (*Pending, error) {
	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("wallet: fetch nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet: suggest tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet: fetch head: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head != nil && head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	to := call.To
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Value: value, Data: call.Data})
	if err != nil {
		return nil, fmt.Errorf("wallet: estimate gas: %w", err)
	}
	gas += gas * c.gasMargin / 100

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(c.chainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	})
	signer := gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(c.chainID))
	signed, err := gethtypes.SignTx(tx, signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("wallet: send transaction: %w", err)
	}
	hash := signed.Hash()
	c.log().Info("transaction submitted", "tx", hash.Hex(), "to", to.Hex(), logging.MaskAddress("from", c.from), "nonce", nonce)
	return NewPending(hash, func(ctx context.Context) (*gethtypes.Receipt, error) {
		return c.waitReceipt(ctx, hash)
	}), nil
}

func (c *EVMClient) waitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("wallet: fetch receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
