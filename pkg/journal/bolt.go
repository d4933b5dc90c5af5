package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"
)

// bucketTransactions holds one entry per revision. Keys are big-endian
// encoded revisions so bolt's byte order matches numeric order and a
// cursor walks revisions ascending.
var bucketTransactions = []byte("transactions")

// BoltJournal persists payloads in a local bbolt file. Safe for
// concurrent use; bolt serializes writers internally.
type BoltJournal struct {
	db *bolt.DB
}

// OpenBolt opens or creates the journal database at path. The open fails
// after one second if another process holds the file lock.
func OpenBolt(path string) (*BoltJournal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTransactions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init %s: %w", path, err)
	}
	return &BoltJournal{db: db}, nil
}

func marshalRevision(revision uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, revision)
	return key
}

// Append stores the payload under its revision.
func (j *BoltJournal) Append(ctx context.Context, revision uint64, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).Put(marshalRevision(revision), payload)
	})
}

// Replay walks stored revisions greater than after in ascending order.
// The payload passed to fn is a copy; fn may retain it.
func (j *BoltJournal) Replay(ctx context.Context, after uint64, fn func(revision uint64, payload []byte) error) error {
	if after == math.MaxUint64 {
		return nil
	}
	return j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTransactions).Cursor()
		for k, v := c.Seek(marshalRevision(after + 1)); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			payload := make([]byte, len(v))
			copy(payload, v)
			if err := fn(binary.BigEndian.Uint64(k), payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying database file.
func (j *BoltJournal) Close() error {
	return j.db.Close()
}
