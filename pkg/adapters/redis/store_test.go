package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/diagramflow/pkg/adapters/redis"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)

	store := redis.NewFromClient(client)
	ports.RunKVStoreContract(t, store)
}

func TestRedisStore_Namespace(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("studio:"))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "diagram_1", map[string]any{"source": "graph TD"}))
	assert.True(t, mr.Exists("studio:diagram_1"))

	// Keys outside the namespace are invisible
	require.NoError(t, client.Set(ctx, "diagram_2", "{}", 0).Err())

	keys, err := store.Keys(ctx, "diagram_")
	require.NoError(t, err)
	assert.Equal(t, []string{"diagram_1"}, keys)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "diagram_ttl", "dark"))

	_, err := store.Get(ctx, "diagram_ttl")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = store.Get(ctx, "diagram_ttl")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
