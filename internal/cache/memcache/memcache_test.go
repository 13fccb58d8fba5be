package memcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_GetSet(t *testing.T) {
	c := New(1)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)
}

func TestCache_SubSecondTTLRoundsUp(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 10*time.Millisecond))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
}
