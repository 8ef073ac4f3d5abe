package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/shipdesk/internal/api/middleware"
	"github.com/d60-Lab/shipdesk/internal/audit"
	"github.com/d60-Lab/shipdesk/pkg/response"
)

type addCreditsRequest struct {
	TenantID    int64  `json:"tenant_id" binding:"required,gt=0"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=255"`
}

type resetCreditsRequest struct {
	TenantID    int64  `json:"tenant_id" binding:"required,gt=0"`
	Balance     *int64 `json:"balance" binding:"required,gte=0"`
	Description string `json:"description" binding:"max=255"`
}

// Balance 当前额度
// @Summary 额度余额
// @Tags 额度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.CreditAccount}
// @Router /api/v1/credits [get]
func (h *Handler) Balance(c *gin.Context) {
	acct, err := h.ledger.Balance(c.Request.Context(), tenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, acct)
}

// Transactions 按订单分组的流水
// @Summary 额度流水
// @Tags 额度
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=credit.History}
// @Router /api/v1/credits/transactions [get]
func (h *Handler) Transactions(c *gin.Context) {
	page, pageSize := paging(c)
	hist, err := h.ledger.History(c.Request.Context(), tenantID(c), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, hist)
}

// VerifyLedger 回放流水校验余额
// @Summary 额度对账
// @Tags 额度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=credit.Verification}
// @Router /api/v1/credits/verify [get]
func (h *Handler) VerifyLedger(c *gin.Context) {
	v, err := h.ledger.Verify(c.Request.Context(), tenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, v)
}

// AddCredits 充值（管理员）
// @Summary 充值
// @Tags 额度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body addCreditsRequest true "充值信息"
// @Success 200 {object} response.Response{data=model.CreditTransaction}
// @Failure 403 {object} response.Response
// @Router /api/v1/credits/add [post]
func (h *Handler) AddCredits(c *gin.Context) {
	var req addCreditsRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := h.tenants.Get(c.Request.Context(), req.TenantID); err != nil {
		response.Error(c, err)
		return
	}
	entry, err := h.ledger.Credit(c.Request.Context(), req.TenantID, req.Amount, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.recordAdjustment(c, req.TenantID, "added", entry.Amount, entry.BalanceAfter)
	response.Success(c, entry)
}

// ResetCredits 重置余额（管理员）
// @Summary 重置余额
// @Tags 额度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body resetCreditsRequest true "目标余额"
// @Success 200 {object} response.Response{data=model.CreditTransaction}
// @Failure 403 {object} response.Response
// @Router /api/v1/credits/reset [post]
func (h *Handler) ResetCredits(c *gin.Context) {
	var req resetCreditsRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := h.tenants.Get(c.Request.Context(), req.TenantID); err != nil {
		response.Error(c, err)
		return
	}
	entry, err := h.ledger.Reset(c.Request.Context(), req.TenantID, *req.Balance, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.recordAdjustment(c, req.TenantID, "reset", entry.Amount, entry.BalanceAfter)
	response.Success(c, entry)
}

func (h *Handler) recordAdjustment(c *gin.Context, tenant int64, outcome string, amount, balance int64) {
	h.audit.Record(c.Request.Context(), audit.Entry{
		TenantID: audit.TenantID(tenant),
		Event:    audit.EventCreditAdjusted,
		Actor:    c.GetString(middleware.ContextRole),
		Outcome:  outcome,
		Details:  map[string]any{"amount": amount, "balance_after": balance},
	})
}
