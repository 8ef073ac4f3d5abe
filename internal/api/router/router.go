package router

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/shipdesk/docs"
	"github.com/d60-Lab/shipdesk/internal/api/handler"
	"github.com/d60-Lab/shipdesk/internal/api/middleware"
	"github.com/d60-Lab/shipdesk/internal/ratelimit"
	"github.com/d60-Lab/shipdesk/internal/service"
	"github.com/d60-Lab/shipdesk/internal/shopify"
)

// Options 路由依赖
type Options struct {
	Mode        string
	ServiceName string
	JWTSecret   string
	Handler     *handler.Handler
	Tenants     middleware.TenantSource
	Audit       middleware.Auditor
	Limiter     ratelimit.Store
	Gatherer    prometheus.Gatherer
	Swagger     bool
}

// Setup 构建 gin 引擎
func Setup(o Options) *gin.Engine {
	if o.Mode != "" {
		gin.SetMode(o.Mode)
	}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(service.FieldName)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	if o.ServiceName != "" {
		r.Use(otelgin.Middleware(o.ServiceName))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if o.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})))
	}
	if o.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := o.Handler

	hooks := r.Group("/webhooks")
	hooks.Use(middleware.RateLimit(o.Limiter, middleware.ByShop(shopify.HeaderShop)))
	hooks.POST("/shopify", h.ShopifyWebhook)

	v1 := r.Group("/api/v1")
	v1.Use(gzip.Gzip(gzip.DefaultCompression))
	v1.Use(middleware.Auth(o.JWTSecret, o.Tenants, o.Audit))
	v1.Use(middleware.RateLimit(o.Limiter, middleware.ByTenant))

	admin := v1.Group("/credits")
	admin.Use(middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/add", h.AddCredits)
		admin.POST("/reset", h.ResetCredits)
	}

	tenant := v1.Group("")
	tenant.Use(middleware.RequireTenant())
	{
		orders := tenant.Group("/orders")
		orders.POST("", h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.DELETE("", h.DeleteOrders)
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/dispatch", h.RetryDispatch)

		credits := tenant.Group("/credits")
		credits.GET("", h.Balance)
		credits.GET("/transactions", h.Transactions)
		credits.GET("/verify", h.VerifyLedger)

		tenant.GET("/audit", h.ListAudit)
	}

	return r
}
