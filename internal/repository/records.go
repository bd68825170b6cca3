package repository

import (
	"errors"
	"fmt"

	"github.com/noah-isme/lms-platform/pkg/codec"
	"github.com/noah-isme/lms-platform/pkg/store"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// Router buckets.
const (
	BucketTenants = "tenants"
	BucketRoutes  = "routes"
)

// Tenant buckets.
const (
	BucketUsers        = "users"
	BucketCourses      = "courses"
	BucketGrades       = "grades"
	BucketQuizzes      = "quizzes"
	BucketPreProvision = "preprovisioned_users"
)

// Cells.
const (
	CellTemplate    = "template_config"
	CellTenantState = "tenant_state"
)

// RouterBuckets lists the buckets a router store declares.
func RouterBuckets() []string {
	return []string{BucketTenants, BucketRoutes}
}

// TenantBuckets lists the buckets a tenant store declares.
func TenantBuckets() []string {
	return []string{BucketUsers, BucketCourses, BucketGrades, BucketQuizzes, BucketPreProvision}
}

// recordMap stores codec encoded records of one kind in a bucket.
type recordMap[T any] struct {
	bucket string
	schema codec.Schema[T]
}

func (m recordMap[T]) get(tx *store.Tx, key string) (T, error) {
	var zero T
	b, err := tx.Bucket(m.bucket)
	if err != nil {
		return zero, err
	}
	raw, err := b.Get(key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return zero, fmt.Errorf("%s %q: %w", m.schema.Kind, key, ErrNotFound)
		}
		return zero, err
	}
	return m.schema.Decode(raw)
}

func (m recordMap[T]) has(tx *store.Tx, key string) (bool, error) {
	b, err := tx.Bucket(m.bucket)
	if err != nil {
		return false, err
	}
	return b.Has(key), nil
}

func (m recordMap[T]) put(tx *store.Tx, key string, v T) error {
	b, err := tx.Bucket(m.bucket)
	if err != nil {
		return err
	}
	raw, err := m.schema.Encode(v)
	if err != nil {
		return err
	}
	return b.Put(key, raw)
}

func (m recordMap[T]) delete(tx *store.Tx, key string) error {
	b, err := tx.Bucket(m.bucket)
	if err != nil {
		return err
	}
	return b.Delete(key)
}

// list decodes every record in key order.
func (m recordMap[T]) list(tx *store.Tx) ([]T, error) {
	b, err := tx.Bucket(m.bucket)
	if err != nil {
		return nil, err
	}
	var out []T
	err = b.ForEach(func(key string, raw []byte) error {
		v, err := m.schema.Decode(raw)
		if err != nil {
			return fmt.Errorf("decode %s %q: %w", m.schema.Kind, key, err)
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// filter is list restricted to records matching keep.
func (m recordMap[T]) filter(tx *store.Tx, keep func(T) bool) ([]T, error) {
	all, err := m.list(tx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(all))
	for _, v := range all {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m recordMap[T]) clear(tx *store.Tx) (int, error) {
	b, err := tx.Bucket(m.bucket)
	if err != nil {
		return 0, err
	}
	return b.Clear()
}

func (m recordMap[T]) count(tx *store.Tx) (int, error) {
	b, err := tx.Bucket(m.bucket)
	if err != nil {
		return 0, err
	}
	return b.Count(), nil
}
