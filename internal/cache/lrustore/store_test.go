package lrustore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/signal-hexgrid/internal/cache"
)

var _ cache.Interface = (*Store)(nil)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestSetGet_RoundTripAndMiss(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	_, ok, err = s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSet_CopiesValue(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(v))
}

func TestExpiry_UsesClock(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s, err := New(4, WithClock(clk.now))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Second))
	require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))

	clk.t = clk.t.Add(9 * time.Second)
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok, "entry should be live before ttl")

	clk.t = clk.t.Add(time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok, "entry should expire at ttl")
	assert.Equal(t, 1, s.Len(), "expired entry should be removed")

	clk.t = clk.t.Add(24 * time.Hour)
	_, ok, _ = s.Get(ctx, "forever")
	assert.True(t, ok, "ttl<=0 entries do not expire")
}

func TestEviction_LeastRecentlyUsed(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))
	_, _, _ = s.Get(ctx, "a")
	require.NoError(t, s.Set(ctx, "c", []byte("3"), 0))

	_, ok, _ := s.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	_, ok, _ = s.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, "c")
	assert.True(t, ok)
}

func TestCanceledContext(t *testing.T) {
	s, err := New(0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, s.Set(ctx, "k", []byte("v"), 0))
	_, _, err = s.Get(ctx, "k")
	require.Error(t, err)
}
