package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/wms-sync/internal/domain/sync"
)

func TestInMemoryRateLimitStore(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	ctx := context.Background()

	t.Run("empty store yields nil", func(t *testing.T) {
		status, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("round trip", func(t *testing.T) {
		now := time.Now()
		in := &sync.RateLimitStatus{
			Remaining:    42,
			ResetTime:    now.Add(30 * time.Minute),
			AdaptiveMode: true,
			WindowStart:  now.Add(-30 * time.Minute),
			UpdatedAt:    now,
		}
		require.NoError(t, store.Set(ctx, in))

		out, err := store.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, 42, out.Remaining)
		assert.True(t, out.AdaptiveMode)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		out, err := store.Get(ctx)
		require.NoError(t, err)
		out.Remaining = 0

		again, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, 42, again.Remaining)
	})
}
