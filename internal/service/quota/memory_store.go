package quota

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// sweepEvery 每自增多少次清理一次过期计数器
const sweepEvery = 1024

type counter struct {
	count    int64
	expireAt time.Time
}

// MemoryStore 进程内计数存储
// 仅适用于单实例部署和测试，多实例之间不共享额度
type MemoryStore struct {
	mu       sync.Mutex
	clock    quartz.Clock
	counters map[string]*counter
	incrs    int
}

// NewMemoryStore 创建进程内计数存储，clock 为 nil 时使用真实时钟
func NewMemoryStore(clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{
		clock:    clock,
		counters: make(map[string]*counter),
	}
}

// Incr 实现 Store 接口
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := s.clock.Now("quota", "incr")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.incrs++
	if s.incrs%sweepEvery == 0 {
		s.sweep(now)
	}

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expireAt) {
		// TTL 只在首次自增时设置，修改窗口不影响已存在的计数器
		c = &counter{expireAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Refund 实现 Refunder 接口，计数已过期或为 0 时忽略
func (s *MemoryStore) Refund(_ context.Context, key string) error {
	now := s.clock.Now("quota", "refund")

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[key]; ok && now.Before(c.expireAt) && c.count > 0 {
		c.count--
	}
	return nil
}

// Peek 只读查看 key 当前计数，不自增也不影响窗口，不存在或已过期返回 0
// 不属于 Store 接口，供测试断言与单实例排查使用，准入逻辑不调用它
func (s *MemoryStore) Peek(key string) int64 {
	now := s.clock.Now("quota", "peek")

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expireAt) {
		return 0
	}
	return c.count
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, c := range s.counters {
		if !now.Before(c.expireAt) {
			delete(s.counters, k)
		}
	}
}
