package journal

import (
	"errors"
	"io/fs"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Reader serves journal queries without holding the database open, so a
// writer in another process can keep recording between reads.
type Reader struct {
	path    string
	timeout time.Duration
}

// NewReader returns a reader for the journal at path. Each query waits at
// most timeout for the file lock; zero means one second.
func NewReader(path string, timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Reader{path: path, timeout: timeout}
}

// view runs fn in a read-only transaction. A missing journal reports
// ok=false.
func (r *Reader) view(fn func(tx *bolt.Tx) error) (bool, error) {
	db, err := bolt.Open(r.path, 0o600, &bolt.Options{ReadOnly: true, Timeout: r.timeout})
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer db.Close()
	return true, db.View(fn)
}

// Entries returns up to limit events recorded after seq.
func (r *Reader) Entries(after uint64, limit int) ([]Entry, error) {
	var out []Entry
	_, err := r.view(func(tx *bolt.Tx) (err error) {
		out, err = readEntries(tx, after, limit)
		return err
	})
	return out, err
}

// Transaction returns the record for hash.
func (r *Reader) Transaction(hash string) (Transaction, error) {
	var record Transaction
	ok, err := r.view(func(tx *bolt.Tx) (err error) {
		record, err = readTransaction(tx, hash)
		return err
	})
	if err == nil && !ok {
		err = ErrNotFound
	}
	return record, err
}
