package ports

import (
	"context"
)

// KVStore is a JSON key-value store.
// Values must be JSON-compatible (maps, slices, strings, numbers, booleans);
// implementations round-trip them through encoding/json.
type KVStore interface {
	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key string, value any) error

	// Get reads the value under key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (any, error)

	// Keys lists the keys starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
