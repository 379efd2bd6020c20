package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedis(Config{Driver: "redis", Addr: mr.Addr(), Prefix: "janus"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestRedisGetDel(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	require.NoError(t, c.Set(ctx, "code", []byte("payload"), time.Minute))
	got, err := c.GetDel(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	_, err = c.GetDel(ctx, "code")
	assert.True(t, IsNotFound(err))
}

func TestRedisIncrSetsTTLOnFirstHit(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	n, err := c.Incr(ctx, "attempts", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Incr(ctx, "attempts", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// pasada la ventana, el contador arranca de cero
	mr.FastForward(2 * time.Minute)
	n, err = c.Incr(ctx, "attempts", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisSetNX(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	ok, err := c.SetNX(ctx, "lock", []byte("a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", []byte("b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
