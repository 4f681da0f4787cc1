package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kama_verify_server/internal/service/quota"
	"kama_verify_server/pkg/errorx"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return s, rdb
}

func TestQuotaStoreIncrSetsTTLOnce(t *testing.T) {
	s, rdb := newTestClient(t)
	store := NewQuotaStore(rdb)
	ctx := context.Background()

	n, err := store.Incr(ctx, "verify_quota:phone:global", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 10*time.Second, s.TTL("verify_quota:phone:global"))

	s.FastForward(4 * time.Second)
	n, err = store.Incr(ctx, "verify_quota:phone:global", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	// 后续自增不会重置 TTL
	assert.Equal(t, 6*time.Second, s.TTL("verify_quota:phone:global"))

	s.FastForward(6 * time.Second)
	assert.False(t, s.Exists("verify_quota:phone:global"))

	n, err = store.Incr(ctx, "verify_quota:phone:global", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestQuotaStoreSubSecondWindow(t *testing.T) {
	s, rdb := newTestClient(t)
	store := NewQuotaStore(rdb)

	_, err := store.Incr(context.Background(), "k", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.TTL("k"))
}

func TestQuotaStoreConcurrent(t *testing.T) {
	s, rdb := newTestClient(t)
	store := NewQuotaStore(rdb)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Incr(ctx, "k", time.Minute)
		}()
	}
	wg.Wait()

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "20", v)
}

func TestQuotaStoreAdmit(t *testing.T) {
	s, rdb := newTestClient(t)
	store := NewQuotaStore(rdb)
	ctx := context.Background()
	limits := quota.Limits{Global: 100, Recipient: 3, Window: 24 * time.Hour}

	for i := 0; i < 3; i++ {
		require.NoError(t, quota.Admit(ctx, store, quota.ChannelPhone, "+8613800138000", limits))
	}
	err := quota.Admit(ctx, store, quota.ChannelPhone, "+8613800138000", limits)
	require.Error(t, err)

	// 第 4 次被单收件人额度拒绝，全局计数停在 3
	v, err := s.Get(quota.GlobalKey(quota.ChannelPhone))
	require.NoError(t, err)
	assert.Equal(t, "3", v)
	assert.Equal(t, 24*time.Hour, s.TTL(quota.RecipientKey(quota.ChannelPhone, "+8613800138000")))
}

func TestQuotaStoreRefundMissingKey(t *testing.T) {
	s, rdb := newTestClient(t)
	store := NewQuotaStore(rdb)

	require.NoError(t, store.Refund(context.Background(), "missing"))
	assert.False(t, s.Exists("missing"))
}

func TestRedisCache(t *testing.T) {
	s, rdb := newTestClient(t)
	cache := NewRedisCache(rdb)
	ctx := context.Background()

	v, err := cache.Get(ctx, "auth_code_+8613800138000")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, cache.Set(ctx, "auth_code_+8613800138000", "123456", 5*time.Minute))
	v, err = cache.Get(ctx, "auth_code_+8613800138000")
	require.NoError(t, err)
	assert.Equal(t, "123456", v)
	assert.Equal(t, 5*time.Minute, s.TTL("auth_code_+8613800138000"))

	s.FastForward(5 * time.Minute)
	v, err = cache.Get(ctx, "auth_code_+8613800138000")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestRedisCacheGetFailure(t *testing.T) {
	s, rdb := newTestClient(t)
	cache := NewRedisCache(rdb)
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())
	s.SetError("server down")

	_, err := cache.Get(ctx, "auth_code_13800138000")
	assert.Equal(t, errorx.CodeCacheError, errorx.GetCode(err))
}
