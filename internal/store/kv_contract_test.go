package store

import (
	"context"
	"testing"

	carterrors "github.com/abgdnv/gocart/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKVContract checks the behaviour every KV implementation must share.
func testKVContract(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := kv.Get(ctx, "missing-key")
		assert.ErrorIs(t, err, carterrors.ErrKeyNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "cart-products", `[{"id":1}]`))

		got, err := kv.Get(ctx, "cart-products")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":1}]`, got)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "overwrite", "first"))
		require.NoError(t, kv.Set(ctx, "overwrite", "second"))

		got, err := kv.Get(ctx, "overwrite")
		require.NoError(t, err)
		assert.Equal(t, "second", got)
	})

	t.Run("empty value is stored", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "empty", ""))

		got, err := kv.Get(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, kv.Ping(ctx))
	})
}
