package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("test")

	_, err := c.Get(ctx, "nope")
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestMemoryGetDelIsOneShot(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	require.NoError(t, c.Set(ctx, "code", []byte("payload"), time.Minute))

	got, err := c.GetDel(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	_, err = c.GetDel(ctx, "code")
	assert.True(t, IsNotFound(err))
}

func TestMemorySetNX(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	ok, err := c.SetNX(ctx, "lock", []byte("a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", []byte("b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := c.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got, "SetNX no debe pisar el valor existente")
}

func TestMemoryIncr(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	for want := int64(1); want <= 5; want++ {
		n, err := c.Incr(ctx, "attempts", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	require.NoError(t, c.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := c.Get(ctx, "short")
	assert.True(t, IsNotFound(err))
}
