package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, buckets ...string) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "nested", "test.db"), nil, buckets...)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBucketPutGetDelete(t *testing.T) {
	s := openTestStore(t, "tenants")
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		b, err := tx.Bucket("tenants")
		if err != nil {
			return err
		}
		return b.Put("t1", []byte("one"))
	}))

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		b, err := tx.Bucket("tenants")
		require.NoError(t, err)
		v, err := b.Get("t1")
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), v)
		assert.True(t, b.Has("t1"))
		assert.Equal(t, 1, b.Count())

		_, err = b.Get("missing")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		b, _ := tx.Bucket("tenants")
		return b.Delete("t1")
	}))
	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		b, _ := tx.Bucket("tenants")
		assert.False(t, b.Has("t1"))
		return nil
	}))
}

func TestUndeclaredBucket(t *testing.T) {
	s := openTestStore(t, "tenants")

	err := s.View(context.Background(), func(tx *Tx) error {
		_, err := tx.Bucket("routes")
		return err
	})
	assert.ErrorIs(t, err, ErrBucketNotFound)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := openTestStore(t, "tenants", "routes")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		tenants, _ := tx.Bucket("tenants")
		routes, _ := tx.Bucket("routes")
		require.NoError(t, tenants.Put("t1", []byte("x")))
		require.NoError(t, routes.Put("mit", []byte("i1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		tenants, _ := tx.Bucket("tenants")
		routes, _ := tx.Bucket("routes")
		assert.Zero(t, tenants.Count())
		assert.Zero(t, routes.Count())
		return nil
	}))
}

func TestCellsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.db")
	ctx := context.Background()

	s := New(path, nil)
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		return tx.SetCell("template", []byte("v1"))
	}))
	require.NoError(t, s.Close())

	s = New(path, nil)
	require.NoError(t, s.Open(ctx))
	defer s.Close()
	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		v, err := tx.Cell("template")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), v)

		_, err = tx.Cell("other")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		return nil
	}))
}

func TestClearAndForEach(t *testing.T) {
	s := openTestStore(t, "routes")
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		b, _ := tx.Bucket("routes")
		for _, k := range []string{"b", "a", "c"} {
			if err := b.Put(k, []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var keys []string
	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		b, _ := tx.Bucket("routes")
		return b.ForEach(func(k string, _ []byte) error {
			keys = append(keys, k)
			return nil
		})
	}))
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	var removed int
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		b, _ := tx.Bucket("routes")
		var err error
		removed, err = b.Clear()
		return err
	}))
	assert.Equal(t, 3, removed)
}

func TestClosedStore(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "x.db"), nil)
	err := s.View(context.Background(), func(*Tx) error { return nil })
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestCancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Update(ctx, func(*Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
