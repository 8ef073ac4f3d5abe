package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/shipdesk/pkg/response"
)

// ListAudit 审计日志
// @Summary 审计日志
// @Tags 审计
// @Produce json
// @Security BearerAuth
// @Param event query string false "事件类型"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/audit [get]
func (h *Handler) ListAudit(c *gin.Context) {
	page, pageSize := paging(c)
	logs, total, err := h.audit.List(c.Request.Context(), tenantID(c), c.Query("event"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "total": total, "list": logs})
}
