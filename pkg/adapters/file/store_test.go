package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/diagramflow/pkg/adapters/file"
	"github.com/aretw0/diagramflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunKVStoreContract(t, store)
}

func TestFileStore_WritesJSONFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "diagram_42", map[string]any{"source": "graph TD"}))

	data, err := os.ReadFile(filepath.Join(dir, "diagram_42.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source": "graph TD"`)

	// No temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Set(ctx, "../escape", "x"))
	assert.Error(t, store.Set(ctx, "", "x"))
	_, err := store.Get(ctx, "a/b")
	assert.Error(t, err)
}

func TestFileStore_KeysOnMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	keys, err := store.Keys(context.Background(), "diagram_")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
