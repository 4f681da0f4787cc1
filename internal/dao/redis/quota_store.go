package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"kama_verify_server/internal/service/quota"
)

// incrScript 自增计数，仅在 key 由不存在变为存在时设置过期时间
// 等价于 INCR key + EXPIRE key ttl NX，脚本保证两步原子执行
var incrScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return current
`)

// refundScript 仅在 key 存在且计数大于 0 时减一，不会创建无 TTL 的 key
var refundScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// QuotaStore 基于 Redis 的额度计数存储，多实例共享同一套计数
type QuotaStore struct {
	client redis.Scripter
}

// NewQuotaStore 创建 Redis 额度计数存储
func NewQuotaStore(client redis.Scripter) *QuotaStore {
	return &QuotaStore{client: client}
}

// Incr 实现 quota.Store 接口
func (s *QuotaStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ttl := int64(window / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	return incrScript.Run(ctx, s.client, []string{key}, ttl).Int64()
}

// Refund 实现 quota.Refunder 接口
func (s *QuotaStore) Refund(ctx context.Context, key string) error {
	return refundScript.Run(ctx, s.client, []string{key}).Err()
}

var (
	_ quota.Store    = (*QuotaStore)(nil)
	_ quota.Refunder = (*QuotaStore)(nil)
)
