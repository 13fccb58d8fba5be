package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, Options) {
	mr := miniredis.RunT(t)
	return mr, Options{Addr: mr.Addr(), Prefix: "appwatch:"}
}

func TestRedisCache_GetSet(t *testing.T) {
	mr, opts := newTestClient(t)
	rc := NewClient(opts)
	t.Cleanup(func() { _ = rc.Close() })
	c := New(rc, opts.Prefix)

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "check:v1:id:1:us")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "check:v1:id:1:us", []byte(`{"liveCount":1}`), time.Minute))
	require.True(t, mr.Exists("appwatch:check:v1:id:1:us"))

	b, ok, err := c.Get(ctx, "check:v1:id:1:us")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"liveCount":1}`), b)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "check:v1:id:1:us")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_ZeroTTLIsNotStored(t *testing.T) {
	mr, opts := newTestClient(t)
	rc := NewClient(opts)
	t.Cleanup(func() { _ = rc.Close() })

	require.NoError(t, New(rc, opts.Prefix).Set(context.Background(), "k", []byte("v"), 0))
	require.False(t, mr.Exists("appwatch:k"))
}

func TestRedisCache_Unreachable(t *testing.T) {
	mr, opts := newTestClient(t)
	rc := NewClient(opts)
	t.Cleanup(func() { _ = rc.Close() })
	mr.Close()

	c := New(rc, opts.Prefix)
	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis get k")
	require.Error(t, c.Ping(context.Background()))
}

func TestRateLimiter_Allow(t *testing.T) {
	mr, opts := newTestClient(t)
	rc := NewClient(opts)
	t.Cleanup(func() { _ = rc.Close() })
	rl := NewRateLimiter(rc, opts.Prefix)

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:catalog", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
	require.True(t, mr.Exists("appwatch:rl:catalog"))

	ok, n, _ = rl.Allow(ctx, "rl:catalog", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:catalog", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}

func TestRateLimiter_WindowClosesUnderLoad(t *testing.T) {
	mr, opts := newTestClient(t)
	rc := NewClient(opts)
	t.Cleanup(func() { _ = rc.Close() })
	rl := NewRateLimiter(rc, opts.Prefix)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, err := rl.Allow(ctx, "rl:catalog", 1, time.Minute)
		require.NoError(t, err)
		mr.FastForward(25 * time.Second)
	}
	// 75s after the first hit the window has expired even though hits kept coming.
	ok, n, err := rl.Allow(ctx, "rl:catalog", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}
