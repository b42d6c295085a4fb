package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Value int      `json:"value"`
	Tags  []string `json:"tags"`
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	orig := snapshot{Value: 42, Tags: []string{"a"}}
	require.NoError(t, mc.Set(ctx, "k", orig, time.Minute))

	var first snapshot
	require.NoError(t, mc.Get(ctx, "k", &first))
	first.Tags[0] = "mutated"

	var second snapshot
	require.NoError(t, mc.Get(ctx, "k", &second))
	assert.Equal(t, "a", second.Tags[0])
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	require.NoError(t, mc.Set(ctx, "k", 1, time.Second))

	now = now.Add(2 * time.Second)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	ok, _ := mc.Exists(ctx, "b")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, mc.Len())
}

func TestLayeredCachePromotesFromL2(t *testing.T) {
	ctx := context.Background()
	l1, l2 := NewMemoryCache(), NewMemoryCache()
	lc := NewLayeredCache(l1, l2)
	defer lc.Close()

	require.NoError(t, l2.Set(ctx, "k", snapshot{Value: 7}, time.Minute))

	var got snapshot
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 7, got.Value)

	ok, _ := l1.Exists(ctx, "k")
	assert.True(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	calls := 0
	load := func(context.Context) (snapshot, error) {
		calls++
		return snapshot{Value: calls}, nil
	}

	v, hit, err := GetOrLoad(ctx, mc, "k", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, v.Value)

	v, hit, err = GetOrLoad(ctx, mc, "k", time.Minute, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, v.Value)
	assert.Equal(t, 1, calls)

	_, _, err = GetOrLoad(ctx, nil, "k", time.Minute, func(context.Context) (snapshot, error) {
		return snapshot{}, errors.New("boom")
	})
	assert.Error(t, err)
}

func TestRedisUnreachable(t *testing.T) {
	_, err := NewRedisCache(
		WithRedisAddr("127.0.0.1", 1),
		WithRedisPool(1, 0, time.Second),
		WithRedisPingTimeout(500*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestRedisKeyPrefix(t *testing.T) {
	assert.Equal(t, "newsdesk:marketctx", (&RedisCache{prefix: "newsdesk"}).key("marketctx"))
	assert.Equal(t, "marketctx", (&RedisCache{}).key("marketctx"))
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "marketctx:BTCUSD:VIXY:UUP", GenerateKeyWithParams("marketctx", "BTCUSD", "VIXY", "UUP"))
	assert.Equal(t, "marketctx", GenerateKeyWithParams("marketctx"))
}
