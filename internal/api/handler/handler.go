package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/shipdesk/internal/api/middleware"
	"github.com/d60-Lab/shipdesk/internal/audit"
	"github.com/d60-Lab/shipdesk/internal/credit"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/service"
	"github.com/d60-Lab/shipdesk/pkg/response"
)

// TenantLookup 管理接口校验租户存在
type TenantLookup interface {
	Get(ctx context.Context, id int64) (*model.Tenant, error)
}

// AuditLog 审计写入与查询
type AuditLog interface {
	Record(ctx context.Context, e audit.Entry)
	List(ctx context.Context, tenantID int64, event string, page, pageSize int) ([]*model.AuditLog, int64, error)
}

// Handler HTTP 处理器
type Handler struct {
	orders   service.OrderService
	webhooks service.WebhookService
	ledger   *credit.Ledger
	tenants  TenantLookup
	audit    AuditLog
	maxBody  int64
}

// Options 依赖
type Options struct {
	Orders      service.OrderService
	Webhooks    service.WebhookService
	Ledger      *credit.Ledger
	Tenants     TenantLookup
	Audit       AuditLog
	MaxBodySize int64
}

func NewHandler(o Options) *Handler {
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = 1 << 20
	}
	return &Handler{
		orders:   o.Orders,
		webhooks: o.Webhooks,
		ledger:   o.Ledger,
		tenants:  o.Tenants,
		audit:    o.Audit,
		maxBody:  o.MaxBodySize,
	}
}

func tenantID(c *gin.Context) int64 {
	return middleware.TenantID(c)
}

// bindJSON 绑定失败时写 400
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.Error(c, service.ValidationError(err))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func paging(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return page, pageSize
}
