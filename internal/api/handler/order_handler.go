package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/shipdesk/internal/apperr"
	"github.com/d60-Lab/shipdesk/internal/service"
	"github.com/d60-Lab/shipdesk/pkg/response"
)

type deleteOrdersRequest struct {
	OrderIDs []int64 `json:"order_ids" binding:"required"`
}

// CreateOrder 创建订单：参考号、扣费、快递下单、通知
// @Summary 创建订单
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateOrderInput true "订单信息"
// @Success 201 {object} response.Response{data=service.CreateOrderResult}
// @Failure 400 {object} response.Response
// @Failure 402 {object} response.Response "额度不足"
// @Failure 409 {object} response.Response "参考号冲突"
// @Router /api/v1/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	var in service.CreateOrderInput
	if !bindJSON(c, &in) {
		return
	}
	tid := tenantID(c)
	res, err := h.orders.Create(c.Request.Context(), tid, in)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInsufficientCredit {
			if acct, bErr := h.ledger.Balance(c.Request.Context(), tid); bErr == nil {
				response.ErrorWithData(c, err, gin.H{"balance": acct.Balance})
				return
			}
		}
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// ListOrders 订单列表
// @Summary 订单列表
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param search query string false "按姓名/手机/运单/参考号模糊搜索"
// @Param from query string false "开始日期 YYYY-MM-DD"
// @Param to query string false "结束日期 YYYY-MM-DD（含）"
// @Param pickup_location query string false "发货仓"
// @Param courier_service query string false "快递"
// @Param status query string false "快递状态 unset|success|failed"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=service.OrderPage}
// @Router /api/v1/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	var in service.ListOrdersInput
	if err := c.ShouldBindQuery(&in); err != nil {
		response.Error(c, service.ValidationError(err))
		return
	}
	page, err := h.orders.List(c.Request.Context(), tenantID(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// GetOrder 订单详情
// @Summary 订单详情
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), tenantID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// DeleteOrders 批量删除，任一订单不属于当前租户则整批拒绝
// @Summary 批量删除订单
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body deleteOrdersRequest true "订单ID列表"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders [delete]
func (h *Handler) DeleteOrders(c *gin.Context) {
	var req deleteOrdersRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.orders.BulkDelete(c.Request.Context(), tenantID(c), req.OrderIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

// RetryDispatch 手动重试快递下单
// @Summary 重试快递下单
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=service.DispatchResult}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response "正在下单"
// @Router /api/v1/orders/{id}/dispatch [post]
func (h *Handler) RetryDispatch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.orders.RetryDispatch(c.Request.Context(), tenantID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
