package logingest

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var offsetBucket = []byte("log_offsets")

// BoltOffsetStore keeps offsets in a local bbolt file, for single-host
// deployments that tail the log next to Postfix.
type BoltOffsetStore struct {
	db *bolt.DB
}

// OpenBoltOffsetStore opens or creates the offset database at path.
func OpenBoltOffsetStore(path string) (*BoltOffsetStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open offset store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(offsetBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create offset bucket: %w", err)
	}
	return &BoltOffsetStore{db: db}, nil
}

// Load returns the stored offset for path, or 0.
func (s *BoltOffsetStore) Load(_ context.Context, path string) (int64, error) {
	var off int64
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(offsetBucket).Get([]byte(path))
		if len(v) == 8 {
			off = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return off, err
}

// Save stores the offset for path.
func (s *BoltOffsetStore) Save(_ context.Context, path string, offset int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(offset))
		return tx.Bucket(offsetBucket).Put([]byte(path), buf)
	})
}

// Close closes the database.
func (s *BoltOffsetStore) Close() error {
	return s.db.Close()
}
