package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKVStoreContract runs a suite of tests to verify that a KVStore implementation
// adheres to the defined interface contract.
func RunKVStoreContract(t *testing.T, store KVStore) {
	ctx := context.Background()
	prefix := "diagram_contract_" + time.Now().Format("20060102150405") + "_"

	t.Run("Set and Get", func(t *testing.T) {
		key := prefix + "record"
		value := map[string]any{
			"source": "graph TD\nA-->B",
			"theme":  "dark",
			"count":  2,
		}

		require.NoError(t, store.Set(ctx, key, value), "Set should not return error")

		loaded, err := store.Get(ctx, key)
		require.NoError(t, err, "Get should not return error")

		m, ok := loaded.(map[string]any)
		require.True(t, ok, "object values should load as map[string]any, got %T", loaded)
		assert.Equal(t, "graph TD\nA-->B", m["source"])
		assert.Equal(t, "dark", m["theme"])
		// JSON persistence turns numbers into float64.
		assert.EqualValues(t, 2, m["count"])
	})

	t.Run("Scalar Values", func(t *testing.T) {
		key := prefix + "scalar"
		require.NoError(t, store.Set(ctx, key, "light"))

		loaded, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "light", loaded)
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + "overwrite"
		require.NoError(t, store.Set(ctx, key, "first"))
		require.NoError(t, store.Set(ctx, key, "second"))

		loaded, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", loaded)
	})

	t.Run("Isolation", func(t *testing.T) {
		key := prefix + "isolation"
		value := map[string]any{"source": "graph TD"}
		require.NoError(t, store.Set(ctx, key, value))
		value["source"] = "mutated"

		loaded, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "graph TD", loaded.(map[string]any)["source"])
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+"missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		key := prefix + "delete"
		require.NoError(t, store.Set(ctx, key, "gone soon"))

		require.NoError(t, store.Delete(ctx, key), "Delete should not return error")

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Get after Delete should return ErrNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Deleting a missing key should succeed")
	})

	t.Run("Keys", func(t *testing.T) {
		k1 := prefix + "keys_1"
		k2 := prefix + "keys_2"
		other := "unrelated_" + prefix
		require.NoError(t, store.Set(ctx, k1, "a"))
		require.NoError(t, store.Set(ctx, k2, "b"))
		require.NoError(t, store.Set(ctx, other, "c"))

		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
			_ = store.Delete(ctx, other)
		}()

		keys, err := store.Keys(ctx, prefix+"keys_")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{k1, k2}, keys)
	})
}
