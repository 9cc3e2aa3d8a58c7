package redisstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDenylist(t *testing.T) (*Denylist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewDenylist(rdb), mr
}

func TestDenylist_SetHasExpire(t *testing.T) {
	d, mr := newDenylist(t)
	ctx := context.Background()

	ok, err := d.Has(ctx, "rt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Set(ctx, "rt-1", 30*time.Second))
	ok, err = d.Has(ctx, "rt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], defaultPrefix))
	assert.NotContains(t, keys[0], "rt-1")
	assert.Equal(t, 30*time.Second, mr.TTL(keys[0]))

	mr.FastForward(31 * time.Second)
	ok, err = d.Has(ctx, "rt-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDenylist_NonPositiveTTLIsSkipped(t *testing.T) {
	d, mr := newDenylist(t)

	require.NoError(t, d.Set(context.Background(), "rt-2", 0))
	assert.Empty(t, mr.Keys())
}

func TestDenylist_RedisDownReturnsError(t *testing.T) {
	d, mr := newDenylist(t)
	mr.Close()

	_, err := d.Has(context.Background(), "rt-3")
	assert.Error(t, err)
	assert.Error(t, d.Set(context.Background(), "rt-3", time.Minute))
}
