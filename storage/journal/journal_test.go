package journal

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"nftminter/core/events"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestTransactionLifecycle(t *testing.T) {
	j := openJournal(t)
	hash := common.HexToHash("0x01")

	j.Emit(events.PaymentSubmitted{ProductID: big.NewInt(1), Action: "buy", Path: "proxy", AmountIn: big.NewInt(210), TxHash: hash})
	record, err := j.Transaction(hash.Hex())
	require.NoError(t, err)
	require.Equal(t, TxSubmitted, record.Status)
	require.Equal(t, "210", record.AmountIn)
	require.Equal(t, "purchase", record.Kind)

	pending, err := j.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	j.Emit(events.PaymentConfirmed{ProductID: big.NewInt(1), Action: "buy", AmountIn: big.NewInt(210), TxHash: hash})
	record, err = j.Transaction(hash.Hex())
	require.NoError(t, err)
	require.Equal(t, TxConfirmed, record.Status)
	require.Equal(t, "1", record.ProductID)

	pending, err = j.Pending()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestApprovalFailureKeepsCode(t *testing.T) {
	j := openJournal(t)
	hash := common.HexToHash("0x02")
	j.Emit(events.ApprovalFailed{Token: common.HexToAddress("0x0a03"), Spender: common.HexToAddress("0x0a02"), TxHash: hash, Code: "reverted"})

	record, err := j.Transaction(hash.Hex())
	require.NoError(t, err)
	require.Equal(t, "approval", record.Kind)
	require.Equal(t, TxFailed, record.Status)
	require.Equal(t, "reverted", record.Code)
}

func TestEntriesPaginate(t *testing.T) {
	j := openJournal(t)
	for i := 0; i < 5; i++ {
		j.Emit(events.PurchaseRejected{ProductID: big.NewInt(int64(i)), Code: "out_of_stock"})
	}

	first, err := j.Entries(0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, uint64(1), first[0].Seq)
	require.NotEmpty(t, first[0].ID)

	rest, err := j.Entries(first[1].Seq, 0)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	require.Equal(t, "4", rest[2].Attributes["productId"])
}

func TestEventsWithoutHashAreNotTracked(t *testing.T) {
	j := openJournal(t)
	_, err := j.Record(events.PurchaseRejected{Code: "insufficient_balance"})
	require.NoError(t, err)

	pending, err := j.Pending()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMissingTransaction(t *testing.T) {
	j := openJournal(t)
	_, err := j.Transaction("0xdead")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	j.Emit(events.ProductCreated{ProductID: big.NewInt(9), TxHash: common.HexToHash("0x09")})
	require.NoError(t, j.Close())

	j, err = Open(path, nil)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.Entries(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, events.TypeProductCreated, entries[0].Type)
}
