package store

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

// BoltStore is the embedded ordered key/value engine backing the durable
// path: a single bbolt database file, opened with create-if-missing
// semantics, with one bucket per Bucket name used.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if necessary) a bbolt database at path and
// pre-creates the given buckets so later Put/Get calls never race bucket
// creation.
func OpenBolt(path string, buckets ...Bucket) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return fmt.Errorf("store: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Put implements Store. bbolt serializes writers internally, so this is
// safe to call concurrently for distinct or identical keys; the last
// writer to commit wins.
func (s *BoltStore) Put(_ context.Context, bucket Bucket, key, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("store: unknown bucket %s", bucket)
		}
		return b.Put(key, value)
	})
}

// Get implements Store. The returned slice is a copy: bbolt's Get result
// is only valid for the lifetime of the read transaction.
func (s *BoltStore) Get(_ context.Context, bucket Bucket, key []byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("store: unknown bucket %s", bucket)
		}
		v := b.Get(key)
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
