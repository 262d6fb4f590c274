package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalGetSetDelete(t *testing.T) {
	c := NewLocal(time.Hour, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "tip")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "tip", "drink warm water", 0))
	got, err := c.Get(ctx, "tip")
	require.NoError(t, err)
	assert.Equal(t, "drink warm water", got)

	require.NoError(t, c.Delete(ctx, "tip"))
	_, err = c.Get(ctx, "tip")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestLocalExpiry(t *testing.T) {
	c := NewLocal(time.Hour, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "wisdom", "spring", 20*time.Millisecond))
	require.NoError(t, c.Set(ctx, "tip", "ginger tea", 0))
	_, err := c.Get(ctx, "wisdom")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = c.Get(ctx, "wisdom")
	assert.ErrorIs(t, err, ErrMiss)

	got, err := c.Get(ctx, "tip")
	require.NoError(t, err, "entries without ttl do not expire")
	assert.Equal(t, "ginger tea", got)
}

func TestLocalJanitorEvicts(t *testing.T) {
	c := NewLocal(10*time.Millisecond, zap.NewNop())
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "wisdom", "autumn", 5*time.Millisecond))
	assert.Eventually(t, func() bool {
		return c.items.ItemCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestLocalClose(t *testing.T) {
	c := NewLocal(time.Hour, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tip", "ginger tea", 0))
	require.NoError(t, c.Close())
	_, err := c.Get(ctx, "tip")
	assert.ErrorIs(t, err, ErrMiss)
}
