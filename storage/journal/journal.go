// Package journal persists purchase lifecycle events and the transactions
// they reference in a Bolt database.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"nftminter/core/events"
)

var (
	bucketEvents       = []byte("events")
	bucketTransactions = []byte("transactions")

	// ErrNotFound is returned when a transaction has no journal record.
	ErrNotFound = errors.New("journal: record not found")
)

// TxStatus is the last known state of a journalled transaction.
type TxStatus string

const (
	TxSubmitted TxStatus = "submitted"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// Entry is one recorded event.
type Entry struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// Transaction tracks a submitted purchase or approval by hash.
type Transaction struct {
	Hash      string    `json:"hash"`
	Kind      string    `json:"kind"`
	ProductID string    `json:"productId,omitempty"`
	Action    string    `json:"action,omitempty"`
	AmountIn  string    `json:"amountIn,omitempty"`
	Status    TxStatus  `json:"status"`
	Code      string    `json:"code,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Journal is an events.Emitter backed by Bolt.
type Journal struct {
	db     *bolt.DB
	now    func() time.Time
	logger *slog.Logger
}

// Option customises the journal.
type Option func(*Journal)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		if now != nil {
			j.now = now
		}
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) { j.logger = logger }
}

// Open creates or opens the journal at path.
func Open(path string, options *bolt.Options, opts ...Option) (*Journal, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEvents, bucketTransactions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: init buckets: %w", err)
	}
	j := &Journal{db: db, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) log() *slog.Logger {
	if j.logger != nil {
		return j.logger
	}
	return slog.Default()
}

// Emit implements events.Emitter. Write failures are logged, never returned
// to the purchase flow.
func (j *Journal) Emit(ev events.Event) {
	if _, err := j.Record(ev); err != nil {
		j.log().Warn("journal write failed", "type", ev.EventType(), "error", err)
	}
}

// Record stores ev and updates the transaction it references.
func (j *Journal) Record(ev events.Event) (Entry, error) {
	if ev == nil {
		return Entry{}, fmt.Errorf("journal: nil event")
	}
	payload := ev.Event()
	if payload == nil {
		return Entry{}, fmt.Errorf("journal: %s has no payload", ev.EventType())
	}
	entry := Entry{
		ID:         uuid.NewString(),
		Type:       payload.Type,
		Attributes: payload.Attributes,
		RecordedAt: j.now().UTC(),
	}
	err := j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		entry.Seq = seq
		encoded, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := bucket.Put(seqKey(seq), encoded); err != nil {
			return err
		}
		return j.trackLocked(tx.Bucket(bucketTransactions), entry)
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// trackLocked folds entry into the transaction record named by its txHash.
func (j *Journal) trackLocked(bucket *bolt.Bucket, entry Entry) error {
	hash := entry.Attributes["txHash"]
	if hash == "" {
		return nil
	}
	var status TxStatus
	kind := "purchase"
	switch entry.Type {
	case events.TypePaymentSubmitted:
		status = TxSubmitted
	case events.TypePaymentConfirmed:
		status = TxConfirmed
	case events.TypePaymentFailed:
		status = TxFailed
	case events.TypeApprovalSubmitted:
		status, kind = TxSubmitted, "approval"
	case events.TypeApprovalConfirmed:
		status, kind = TxConfirmed, "approval"
	case events.TypeApprovalFailed:
		status, kind = TxFailed, "approval"
	case events.TypeProductCreated:
		status, kind = TxConfirmed, "product"
	case events.TypeNftMinted:
		status, kind = TxConfirmed, "mint"
	default:
		return nil
	}

	var record Transaction
	if raw := bucket.Get([]byte(hash)); raw != nil {
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}
	}
	record.Hash = hash
	record.Kind = kind
	record.Status = status
	record.UpdatedAt = entry.RecordedAt
	if v := entry.Attributes["productId"]; v != "" {
		record.ProductID = v
	}
	if v := entry.Attributes["action"]; v != "" {
		record.Action = v
	}
	if v := entry.Attributes["amountIn"]; v != "" {
		record.AmountIn = v
	}
	if v := entry.Attributes["code"]; v != "" {
		record.Code = v
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(hash), encoded)
}

// Entries returns up to limit events recorded after seq, oldest first. A
// zero limit returns everything.
func (j *Journal) Entries(after uint64, limit int) ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(tx *bolt.Tx) (err error) {
		out, err = readEntries(tx, after, limit)
		return err
	})
	return out, err
}

// Transaction returns the record for hash.
func (j *Journal) Transaction(hash string) (Transaction, error) {
	var record Transaction
	err := j.db.View(func(tx *bolt.Tx) (err error) {
		record, err = readTransaction(tx, hash)
		return err
	})
	return record, err
}

// Pending lists transactions still awaiting confirmation.
func (j *Journal) Pending() ([]Transaction, error) {
	var out []Transaction
	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketTransactions)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var record Transaction
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			if record.Status == TxSubmitted {
				out = append(out, record)
			}
			return nil
		})
	})
	return out, err
}

func readEntries(tx *bolt.Tx, after uint64, limit int) ([]Entry, error) {
	bucket := tx.Bucket(bucketEvents)
	if bucket == nil {
		return nil, nil
	}
	var out []Entry
	cursor := bucket.Cursor()
	for k, v := cursor.Seek(seqKey(after + 1)); k != nil; k, v = cursor.Next() {
		var entry Entry
		if err := json.Unmarshal(v, &entry); err != nil {
			return nil, err
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func readTransaction(tx *bolt.Tx, hash string) (Transaction, error) {
	bucket := tx.Bucket(bucketTransactions)
	if bucket == nil {
		return Transaction{}, ErrNotFound
	}
	raw := bucket.Get([]byte(hash))
	if raw == nil {
		return Transaction{}, ErrNotFound
	}
	var record Transaction
	if err := json.Unmarshal(raw, &record); err != nil {
		return Transaction{}, err
	}
	return record, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
