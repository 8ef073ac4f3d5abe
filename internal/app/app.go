// Package app wires configuration into a ready-to-serve gin engine.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/shipdesk/config"
	"github.com/d60-Lab/shipdesk/internal/api/handler"
	"github.com/d60-Lab/shipdesk/internal/api/router"
	"github.com/d60-Lab/shipdesk/internal/audit"
	"github.com/d60-Lab/shipdesk/internal/courier"
	"github.com/d60-Lab/shipdesk/internal/credit"
	"github.com/d60-Lab/shipdesk/internal/events"
	"github.com/d60-Lab/shipdesk/internal/metrics"
	"github.com/d60-Lab/shipdesk/internal/notify"
	"github.com/d60-Lab/shipdesk/internal/ratelimit"
	"github.com/d60-Lab/shipdesk/internal/reference"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/internal/service"
	"github.com/d60-Lab/shipdesk/internal/shopify"
	"github.com/d60-Lab/shipdesk/internal/tenantcache"
	"github.com/d60-Lab/shipdesk/pkg/database"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

// App 进程内共享的资源
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Events   events.Publisher
	Registry *prometheus.Registry
	Engine   *gin.Engine
}

// New 打开数据库并构建路由
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cfg, db)
}

// Build 基于已打开的数据库组装服务（测试中传入 sqlite 内存库）
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB) (*App, error) {
	a := &App{Config: cfg, DB: db, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(a.Registry)

	if cfg.Redis.Enabled {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			_ = a.Redis.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	publisher, err := events.FromConfig(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	a.Events = publisher

	refs, err := reference.NewGenerator(cfg.App.SnowflakeNode)
	if err != nil {
		return nil, err
	}

	orders := repository.NewOrderRepository(db)
	shadows := repository.NewShadowOrderRepository(db)
	tenants := repository.NewTenantRepository(db)
	ledger := credit.NewLedger(db, repository.NewCreditRepository(db))
	recorder := audit.NewRecorder(repository.NewAuditRepository(db))
	tenantCache := tenantcache.New(tenants, a.Redis, cfg.App.TenantCacheTTL)

	var sender notify.Sender
	if cfg.WhatsApp.Enabled {
		sender = notify.NewWhatsApp(cfg.WhatsApp)
	}
	notifier := notify.NewDispatcher(sender, notify.NewLedgerMeter(ledger, cfg.Credits.NotificationCost), cfg.WhatsApp)

	orderSvc := service.NewOrderService(service.OrderDeps{
		DB:           db,
		Orders:       orders,
		Shadows:      shadows,
		Integrations: tenants,
		Tenants:      tenantCache,
		Ledger:       ledger,
		References:   refs,
		Courier:      courier.NewDelhivery(cfg.Courier),
		Notifier:     notifier,
		Events:       publisher,
		Audit:        recorder,
		OrderCost:    cfg.Credits.OrderCost,
		Location:     cfg.App.Location(),
		// 快递超时后仍留余量，超时未写回的占用才允许接管
		DispatchLease: 3 * cfg.Courier.Timeout,
	})
	webhookSvc := service.NewWebhookService(service.WebhookDeps{
		DB:           db,
		Integrations: tenants,
		Shadows:      shadows,
		Orders:       orders,
		Confirmer:    shopify.NewClient(cfg.Shopify),
		Audit:        recorder,
	})

	var limiter ratelimit.Store
	if cfg.RateLimit.Backend == "redis" && a.Redis != nil {
		limiter = ratelimit.NewRedisStore(a.Redis, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	} else {
		limiter = ratelimit.NewMemoryStore(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	h := handler.NewHandler(handler.Options{
		Orders:      orderSvc,
		Webhooks:    webhookSvc,
		Ledger:      ledger,
		Tenants:     tenantCache,
		Audit:       recorder,
		MaxBodySize: cfg.Shopify.MaxBody,
	})

	serviceName := ""
	if cfg.Tracing.Enabled {
		serviceName = cfg.Tracing.ServiceName
	}
	a.Engine = router.Setup(router.Options{
		Mode:        cfg.Server.Mode,
		ServiceName: serviceName,
		JWTSecret:   cfg.JWT.Secret,
		Handler:     h,
		Tenants:     tenantCache,
		Audit:       recorder,
		Limiter:     limiter,
		Gatherer:    a.Registry,
		Swagger:     cfg.App.Swagger,
	})

	logger.Info("application initialised",
		zap.String("database", cfg.Database.Driver),
		zap.Bool("redis", a.Redis != nil),
		zap.Bool("kafka", cfg.Kafka.Enabled),
		zap.Bool("whatsapp", cfg.WhatsApp.Enabled),
		zap.String("ratelimit", cfg.RateLimit.Backend))
	return a, nil
}

// Close 释放外部连接
func (a *App) Close() error {
	var errs []error
	if a.Events != nil {
		errs = append(errs, a.Events.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, database.Close(a.DB))
	}
	return errors.Join(errs...)
}
