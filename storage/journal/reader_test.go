package journal

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"nftminter/core/events"
)

func TestReaderSeesClosedJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	hash := common.HexToHash("0x0b")
	j.Emit(events.PaymentSubmitted{ProductID: big.NewInt(4), Action: "donate", Path: "direct", AmountIn: big.NewInt(5), TxHash: hash})
	require.NoError(t, j.Close())

	reader := NewReader(path, 0)
	record, err := reader.Transaction(hash.Hex())
	require.NoError(t, err)
	require.Equal(t, "donate", record.Action)

	entries, err := reader.Entries(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = reader.Transaction("0xmissing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReaderMissingFile(t *testing.T) {
	reader := NewReader(filepath.Join(t.TempDir(), "absent.db"), 0)
	entries, err := reader.Entries(0, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
	_, err = reader.Transaction("0x01")
	require.ErrorIs(t, err, ErrNotFound)
}
