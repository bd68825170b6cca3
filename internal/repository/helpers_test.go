package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-platform/pkg/store"
)

func newTestStore(t *testing.T, buckets []string) *store.Store {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "repo.db"), nil, buckets...)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}
