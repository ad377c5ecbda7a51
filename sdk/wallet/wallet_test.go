package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftminter/core/types"
)

func TestPendingEventsOrder(t *testing.T) {
	hash := common.HexToHash("0x01")
	pending := Confirmed(hash, &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful})
	var kinds []TxEventKind
	for event := range pending.Events(context.Background()) {
		if event.Hash != hash {
			t.Fatalf("unexpected hash %s", event.Hash)
		}
		kinds = append(kinds, event.Kind)
	}
	if len(kinds) != 2 || kinds[0] != TxSubmitted || kinds[1] != TxConfirmed {
		t.Fatalf("unexpected lifecycle %v", kinds)
	}
}

func TestPendingIsSingleUse(t *testing.T) {
	pending := Confirmed(common.HexToHash("0x01"), &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful})
	if _, err := pending.Wait(context.Background(), Handlers{}); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if _, err := pending.Wait(context.Background(), Handlers{}); !errors.Is(err, ErrConsumed) {
		t.Fatalf("expected ErrConsumed, got %v", err)
	}
}

func TestPendingRevertedReceiptFails(t *testing.T) {
	pending := Confirmed(common.HexToHash("0x02"), &gethtypes.Receipt{Status: gethtypes.ReceiptStatusFailed})
	var failed error
	_, err := pending.Wait(context.Background(), Handlers{OnFailed: func(err error) { failed = err }})
	if !errors.Is(err, ErrReverted) || !errors.Is(failed, ErrReverted) {
		t.Fatalf("expected revert, got %v / %v", err, failed)
	}
}

func TestPendingWaitDispatchesHandlers(t *testing.T) {
	boom := errors.New("boom")
	var submitted common.Hash
	var confirmed bool
	_, err := Failed(common.HexToHash("0x03"), boom).Wait(context.Background(), Handlers{
		OnSubmitted: func(hash common.Hash) { submitted = hash },
		OnConfirmed: func(*gethtypes.Receipt) { confirmed = true },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if submitted != common.HexToHash("0x03") || confirmed {
		t.Fatalf("unexpected handler dispatch: submitted=%s confirmed=%v", submitted, confirmed)
	}
}

func TestPendingEarlyBreakStopsWaiting(t *testing.T) {
	waited := false
	pending := NewPending(common.HexToHash("0x04"), func(context.Context) (*gethtypes.Receipt, error) {
		waited = true
		return nil, nil
	})
	for event := range pending.Events(context.Background()) {
		if event.Kind == TxSubmitted {
			break
		}
	}
	if waited {
		t.Fatalf("confirmation should not be awaited after the consumer stops")
	}
}

func TestSessionSwitchBumpsEpochAndNotifies(t *testing.T) {
	first := FuncClient{Chain: 56, Account: common.HexToAddress("0x0a")}
	session := NewSession(first)
	initial := session.Snapshot()
	if initial.ChainID != 56 || initial.Account != first.Account || initial.ID == "" {
		t.Fatalf("unexpected snapshot %+v", initial)
	}

	var seen []Snapshot
	cancel := session.Subscribe(func(s Snapshot) { seen = append(seen, s) })
	next := session.Switch(FuncClient{Chain: 97, Account: common.HexToAddress("0x0b")})
	if next.Epoch != initial.Epoch+1 || next.ChainID != 97 {
		t.Fatalf("unexpected snapshot after switch %+v", next)
	}
	if session.Current(initial.Epoch) || !session.Current(next.Epoch) {
		t.Fatalf("epoch tracking broken")
	}
	if len(seen) != 1 || seen[0] != next {
		t.Fatalf("listener not notified: %+v", seen)
	}

	cancel()
	session.Switch(nil)
	if len(seen) != 1 {
		t.Fatalf("cancelled listener still notified")
	}
	if session.Client() != nil || session.Snapshot().ChainID != 0 {
		t.Fatalf("expected unbound session")
	}
}

func TestCallerAdapterRoutesThroughClient(t *testing.T) {
	target := common.HexToAddress("0x0c")
	client := FuncClient{CallFunc: func(_ context.Context, to common.Address, data []byte) ([]byte, error) {
		if to != target || len(data) != 1 {
			t.Fatalf("unexpected call to %s with %x", to, data)
		}
		return []byte{0x01}, nil
	}}
	out, err := Caller(client).CallContract(context.Background(), ethereum.CallMsg{To: &target, Data: []byte{0xff}}, nil)
	if err != nil || len(out) != 1 {
		t.Fatalf("call: %v %x", err, out)
	}
	if _, err := Caller(client).CallContract(context.Background(), ethereum.CallMsg{}, nil); err == nil {
		t.Fatalf("expected error without target")
	}
}

type fakeBackend struct {
	mu       sync.Mutex
	sent     []*gethtypes.Transaction
	receipts map[common.Hash]*gethtypes.Receipt
	polls    int
}

func (b *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (b *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(500), nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 7, nil }

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(2), nil }

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{BaseFee: big.NewInt(10)}, nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 100000, nil }

func (b *fakeBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls++
	if b.polls < 2 {
		return nil, ethereum.NotFound
	}
	return b.receipts[hash], nil
}

func TestEVMClientSendSignsDynamicFeeTx(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	backend := &fakeBackend{receipts: make(map[common.Hash]*gethtypes.Receipt)}
	client, err := NewEVMClient(backend, key, 97, WithPollInterval(time.Millisecond), WithRateLimit(1000, 10))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	target := common.HexToAddress("0x0d")
	pending, err := client.Send(context.Background(), Call{To: target, Data: []byte{0x01}, Value: big.NewInt(210)})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Type() != gethtypes.DynamicFeeTxType || tx.ChainId().Uint64() != 97 || tx.Nonce() != 7 {
		t.Fatalf("unexpected tx type=%d chain=%s nonce=%d", tx.Type(), tx.ChainId(), tx.Nonce())
	}
	if tx.Gas() != 120000 || tx.GasFeeCap().Int64() != 22 || tx.Value().Int64() != 210 {
		t.Fatalf("unexpected gas=%d feeCap=%s value=%s", tx.Gas(), tx.GasFeeCap(), tx.Value())
	}
	sender, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(big.NewInt(97)), tx)
	if err != nil || sender != client.Address() {
		t.Fatalf("unexpected sender %s: %v", sender, err)
	}

	backend.receipts[tx.Hash()] = &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, TxHash: tx.Hash()}
	receipt, err := pending.Wait(context.Background(), Handlers{})
	if err != nil || receipt.TxHash != tx.Hash() {
		t.Fatalf("wait: %v", err)
	}
}

func TestEVMClientNativeBalanceAndAllowance(t *testing.T) {
	key, _ := gethcrypto.GenerateKey()
	client, err := NewEVMClient(&fakeBackend{}, key, 1)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	balance, err := client.Balance(context.Background(), types.Token{ChainID: 1})
	if err != nil || balance.Int64() != 500 {
		t.Fatalf("balance: %v %v", balance, err)
	}
	if _, err := client.Allowance(context.Background(), types.Token{ChainID: 1}, client.Address(), common.Address{}); err == nil {
		t.Fatalf("native allowance should fail")
	}
}

func TestParseKey(t *testing.T) {
	if _, err := ParseKey(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
	key, _ := gethcrypto.GenerateKey()
	raw := "0x" + common.Bytes2Hex(gethcrypto.FromECDSA(key))
	parsed, err := ParseKey(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if gethcrypto.PubkeyToAddress(parsed.PublicKey) != gethcrypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("parsed key mismatch")
	}
}
