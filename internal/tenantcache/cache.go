// Package tenantcache is a read-through Redis cache for tenant records used on
// every authenticated request.
package tenantcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

// snapshot 缓存字段，包含 api_key_hash（model.Tenant 的 json 标签会忽略它）
type snapshot struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	BrandName    string `json:"brand_name"`
	SupportPhone string `json:"support_phone"`
	APIKeyHash   string `json:"api_key_hash"`
	EnablePrefix bool   `json:"enable_prefix"`
	CreditExempt bool   `json:"credit_exempt"`
	Active       bool   `json:"active"`
}

// Cache 租户读缓存。cache 为 nil 时直接读库。
//
// 本服务不修改租户记录。租户由外部修改 Active、CreditExempt 等字段后，
// 缓存最长在 ttl（app.tenant_cache_ttl）后才反映新值；修改方需要立即生效时调用 Invalidate。
type Cache struct {
	repo  repository.TenantRepository
	cache *redis.Client
	ttl   time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func New(repo repository.TenantRepository, cache *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{repo: repo, cache: cache, ttl: ttl}
}

func key(id int64) string { return fmt.Sprintf("tenant:%d", id) }

// Get 先查 Redis，未命中或解析失败时回源并回填
func (c *Cache) Get(ctx context.Context, id int64) (*model.Tenant, error) {
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key(id)).Bytes(); err == nil {
			var s snapshot
			if uErr := json.Unmarshal(data, &s); uErr == nil {
				c.hits.Add(1)
				return s.tenant(), nil
			}
		}
	}

	c.misses.Add(1)
	t, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if payload, err := json.Marshal(fromTenant(t)); err == nil {
			if err := c.cache.Set(ctx, key(id), payload, c.ttl).Err(); err != nil {
				logger.Warn("tenant cache fill failed", zap.Int64("tenant_id", id), zap.Error(err))
			}
		}
	}
	return t, nil
}

// Invalidate 删除缓存，下一次 Get 回源读库
func (c *Cache) Invalidate(ctx context.Context, id int64) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Del(ctx, key(id)).Err()
}

// Counters 命中统计
type Counters struct {
	Hits   int64
	Misses int64
}

func (c *Cache) Counters() Counters {
	return Counters{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *Cache) ResetCounters() {
	c.hits.Store(0)
	c.misses.Store(0)
}

func fromTenant(t *model.Tenant) snapshot {
	return snapshot{
		ID:           t.ID,
		Name:         t.Name,
		BrandName:    t.BrandName,
		SupportPhone: t.SupportPhone,
		APIKeyHash:   t.APIKeyHash,
		EnablePrefix: t.EnablePrefix,
		CreditExempt: t.CreditExempt,
		Active:       t.Active,
	}
}

func (s snapshot) tenant() *model.Tenant {
	return &model.Tenant{
		ID:           s.ID,
		Name:         s.Name,
		BrandName:    s.BrandName,
		SupportPhone: s.SupportPhone,
		APIKeyHash:   s.APIKeyHash,
		EnablePrefix: s.EnablePrefix,
		CreditExempt: s.CreditExempt,
		Active:       s.Active,
	}
}
