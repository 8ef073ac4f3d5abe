package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/shipdesk/config"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/internal/tenantcache"
	"github.com/d60-Lab/shipdesk/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// 对比认证路径上租户读取：直连数据库 vs Redis 读缓存（Zipf 分布，少数租户占多数请求）
func main() {
	ctx := context.Background()
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))

	tenantCount := envInt("TENANTS", 500)
	lookups := envInt("N", 50000)

	ids := make([]int64, tenantCount)
	rows := make([]*model.Tenant, tenantCount)
	stamp := time.Now().UnixNano()
	for i := range rows {
		rows[i] = &model.Tenant{Name: fmt.Sprintf("cachebench-%d-%d", stamp, i), Active: true}
	}
	if err := db.CreateInBatches(rows, 200).Error; err != nil {
		panic(err)
	}
	for i, t := range rows {
		ids[i] = t.ID
	}
	fmt.Printf("seeded %d tenants\n", tenantCount)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = cfg.Redis.Addr
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Errorf("redis unavailable at %s: %w", redisAddr, err))
	}

	repo := repository.NewTenantRepository(db)
	zipf := rand.NewZipf(rand.New(rand.NewSource(42)), 1.2, 1, uint64(tenantCount-1))
	sequence := make([]int64, lookups)
	for i := range sequence {
		sequence[i] = ids[zipf.Uint64()]
	}

	run := func(name string, c *tenantcache.Cache) {
		for _, id := range ids {
			_ = c.Invalidate(ctx, id)
		}
		c.ResetCounters()

		lat := make([]time.Duration, 0, lookups)
		t0 := time.Now()
		for _, id := range sequence {
			st := time.Now()
			if _, err := c.Get(ctx, id); err != nil {
				panic(err)
			}
			lat = append(lat, time.Since(st))
		}
		total := time.Since(t0)
		counters := c.Counters()
		fmt.Printf("%-8s total=%v p50=%v p95=%v p99=%v hits=%d misses=%d\n",
			name, total, pct(lat, 0.50), pct(lat, 0.95), pct(lat, 0.99), counters.Hits, counters.Misses)
	}

	run("db", tenantcache.New(repo, nil, 0))
	run("redis", tenantcache.New(repo, client, 10*time.Minute))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}
