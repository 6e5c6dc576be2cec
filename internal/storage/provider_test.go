package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horsie/harvester/internal/storage/local"
	"github.com/horsie/harvester/internal/storage/memory"
)

func TestOpenLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store, closeFn, err := Open(context.Background(), Config{Local: local.Config{BaseDir: dir}})
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	assert.NoError(t, closeFn())

	ls, ok := store.(*local.BlobStore)
	require.True(t, ok)
	assert.Equal(t, dir, ls.BaseDir())
}

func TestOpenMemory(t *testing.T) {
	store, closeFn, err := Open(context.Background(), Config{Backend: "Memory"})
	require.NoError(t, err)
	assert.NoError(t, closeFn())
	assert.IsType(t, &memory.BlobStore{}, store)
}

func TestOpenUnknown(t *testing.T) {
	_, closeFn, err := Open(context.Background(), Config{Backend: "s3"})
	require.ErrorContains(t, err, `unknown storage backend "s3"`)
	assert.NoError(t, closeFn())
}

func TestOpenGCSRequiresBucket(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Backend: BackendGCS})
	require.Error(t, err)
}
