package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/d60-Lab/shipdesk/config"
	"github.com/d60-Lab/shipdesk/internal/courier"
	"github.com/d60-Lab/shipdesk/internal/credit"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/reference"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/internal/service"
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

// 并发创建订单，额度少于请求数时验证扣费不会超发
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	ctx := context.Background()

	n := envInt("N", 2000)
	conc := envInt("CONC", 16)
	credits := envInt("CREDITS", n/2)

	tenant := &model.Tenant{Name: fmt.Sprintf("bench-%d", time.Now().UnixNano()), Active: true}
	if err := db.Create(tenant).Error; err != nil {
		panic(err)
	}
	ledger := credit.NewLedger(db, repository.NewCreditRepository(db))
	must(ledger.Credit(ctx, tenant.ID, int64(credits), "bench seed"))

	tenants := repository.NewTenantRepository(db)
	svc := service.NewOrderService(service.OrderDeps{
		DB:           db,
		Orders:       repository.NewOrderRepository(db),
		Shadows:      repository.NewShadowOrderRepository(db),
		Integrations: tenants,
		Tenants:      tenants,
		Ledger:       ledger,
		References:   must(reference.NewGenerator(cfg.App.SnowflakeNode)),
		// 快递名与压测订单不匹配，不会发出外部请求
		Courier:   courier.NewDelhivery(cfg.Courier),
		OrderCost: 1,
		Location:  cfg.App.Location(),
	})

	value := decimal.NewFromInt(250)
	input := func(i int) service.CreateOrderInput {
		return service.CreateOrderInput{
			Name:           fmt.Sprintf("bench customer %d", i),
			Mobile:         fmt.Sprintf("98%08d", i),
			Address:        "1 Bench Street",
			Pincode:        "560001",
			CourierService: "bench-courier",
			PickupLocation: "bench-wh",
			PackageValue:   &value,
			Weight:         300,
			TotalItems:     1,
		}
	}

	var (
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, n)
		created   int
		rejected  int
		failed    int
	)
	feed := make(chan int, n)
	for i := 0; i < n; i++ {
		feed <- i
	}
	close(feed)

	t0 := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				st := time.Now()
				_, err := svc.Create(ctx, tenant.ID, input(i))
				d := time.Since(st)

				mu.Lock()
				latencies = append(latencies, d)
				switch {
				case err == nil:
					created++
				case errors.Is(err, credit.ErrInsufficientCredit):
					rejected++
				default:
					failed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(t0)

	pct := func(vs []time.Duration, p float64) time.Duration {
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

	v := must(ledger.Verify(ctx, tenant.ID))

	fmt.Printf("N=%d, CONC=%d, CREDITS=%d, driver=%s\n", n, conc, credits, cfg.Database.Driver)
	fmt.Printf("total: %v, throughput: %.1f orders/s\n", total, float64(n)/total.Seconds())
	fmt.Printf("latency p50: %v, p95: %v, p99: %v\n", pct(latencies, 0.50), pct(latencies, 0.95), pct(latencies, 0.99))
	fmt.Printf("created=%d insufficient_credit=%d other_errors=%d\n", created, rejected, failed)
	fmt.Printf("ledger balance=%d replayed=%d consistent=%v\n", v.Balance, v.ReplayedBalance, v.Consistent)
	if created > credits || !v.Consistent {
		fmt.Println("FAIL: credit overdraw or ledger mismatch")
		os.Exit(1)
	}
}
