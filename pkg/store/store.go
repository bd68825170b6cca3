// Package store is the durable map store: named buckets of byte keys and
// values, plus single-value cells, persisted in one bolt file.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	// ErrKeyNotFound is returned when a key or cell holds no value.
	ErrKeyNotFound = errors.New("key not found")
	// ErrBucketNotFound is returned for buckets that were not declared at open.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrNotOpen is returned when a transaction is attempted before Open.
	ErrNotOpen = errors.New("store not open")
)

const cellsBucket = "_cells"

// Store is a bolt backed durable map store.
type Store struct {
	path    string
	buckets []string
	db      *bolt.DB
	logger  *zap.Logger
}

// New returns a store for the file at path. The listed buckets are created on Open.
func New(path string, logger *zap.Logger, buckets ...string) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:    path,
		buckets: append([]string{cellsBucket}, buckets...),
		logger:  logger,
	}
}

// Open creates the file if it does not exist and ensures every declared bucket.
func (s *Store) Open(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create store directory %s: %w", s.path, err)
	}

	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("open bolt file %s: %w", s.path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range s.buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.logger.Info("store opened", zap.String("path", s.path), zap.Int("buckets", len(s.buckets)))
	return nil
}

// Close releases the bolt file.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx, ctx: ctx})
	})
}

// Update runs fn in a read-write transaction. Writes are serialized and
// the transaction commits only when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx, ctx: ctx})
	})
}

// Tx wraps a bolt transaction.
type Tx struct {
	tx  *bolt.Tx
	ctx context.Context
}

// Context returns the context the transaction was started with.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// Bucket retrieves a declared bucket.
func (tx *Tx) Bucket(name string) (*Bucket, error) {
	bkt := tx.tx.Bucket([]byte(name))
	if bkt == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrBucketNotFound)
	}
	return &Bucket{bucket: bkt}, nil
}

// Cell returns the value stored in the named cell.
func (tx *Tx) Cell(name string) ([]byte, error) {
	b, err := tx.Bucket(cellsBucket)
	if err != nil {
		return nil, err
	}
	return b.Get(name)
}

// SetCell replaces the value stored in the named cell.
func (tx *Tx) SetCell(name string, value []byte) error {
	b, err := tx.Bucket(cellsBucket)
	if err != nil {
		return err
	}
	return b.Put(name, value)
}

// Bucket is a named map inside a transaction.
type Bucket struct {
	bucket *bolt.Bucket
}

// Get returns a copy of the value stored at key.
func (b *Bucket) Get(key string) ([]byte, error) {
	val := b.bucket.Get([]byte(key))
	if val == nil {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(val), nil
}

// Has reports whether key holds a value.
func (b *Bucket) Has(key string) bool {
	return b.bucket.Get([]byte(key)) != nil
}

// Put sets the value at key.
func (b *Bucket) Put(key string, value []byte) error {
	if key == "" {
		return errors.New("empty key")
	}
	return b.bucket.Put([]byte(key), value)
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Bucket) Delete(key string) error {
	return b.bucket.Delete([]byte(key))
}

// ForEach visits entries in key order. Values are only valid during fn.
func (b *Bucket) ForEach(fn func(key string, value []byte) error) error {
	return b.bucket.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}

// Count returns the number of keys in the bucket.
func (b *Bucket) Count() int {
	n := 0
	c := b.bucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// Clear deletes every key and returns how many were removed.
func (b *Bucket) Clear() (int, error) {
	var keys [][]byte
	c := b.bucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, bytes.Clone(k))
	}
	for _, k := range keys {
		if err := b.bucket.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
