// Package ratelimit provides injectable request-rate stores keyed by tenant
// or client address.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Store 限流存储
type Store interface {
	// Allow 记录一次请求并返回是否放行
	Allow(ctx context.Context, key string) (bool, error)
	// Reset 清空全部状态
	Reset(ctx context.Context) error
}

// MemoryStore 进程内令牌桶
type MemoryStore struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

// NewMemoryStore perMinute 为稳定速率，burst 为突发容量
func NewMemoryStore(perMinute, burst int) *MemoryStore {
	if burst < 1 {
		burst = 1
	}
	return &MemoryStore{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (m *MemoryStore) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	lim, ok := m.buckets[key]
	if !ok {
		lim = rate.NewLimiter(m.limit, m.burst)
		m.buckets[key] = lim
	}
	m.mu.Unlock()
	return lim.Allow(), nil
}

func (m *MemoryStore) Reset(context.Context) error {
	m.mu.Lock()
	m.buckets = make(map[string]*rate.Limiter)
	m.mu.Unlock()
	return nil
}

// RedisStore 固定窗口计数（INCR + EXPIRE），多实例共享
type RedisStore struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisStore 每个窗口允许 perMinute + burst 次请求
func NewRedisStore(client *redis.Client, perMinute, burst int) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "ratelimit:",
		limit:  int64(perMinute + burst),
		window: time.Minute,
		now:    time.Now,
	}
}

func (s *RedisStore) Allow(ctx context.Context, key string) (bool, error) {
	slot := s.now().Unix() / int64(s.window.Seconds())
	k := fmt.Sprintf("%s%s:%d", s.prefix, key, slot)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, s.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= s.limit, nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
