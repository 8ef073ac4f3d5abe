package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/shipdesk/internal/service"
	"github.com/d60-Lab/shipdesk/internal/shopify"
	"github.com/d60-Lab/shipdesk/pkg/response"
)

// ShopifyWebhook 接收 Shopify webhook。签名基于原始 body 校验。
// @Summary Shopify webhook
// @Tags Webhook
// @Accept json
// @Produce json
// @Param X-Shopify-Shop-Domain header string true "店铺域名"
// @Param X-Shopify-Topic header string true "主题"
// @Param X-Shopify-Hmac-Sha256 header string true "签名"
// @Success 200 {object} response.Response{data=service.Outcome}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /webhooks/shopify [post]
func (h *Handler) ShopifyWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, response.Response{Code: "payload_too_large", Message: "request body too large"})
			return
		}
		response.BadRequest(c, "failed to read body")
		return
	}

	out, err := h.webhooks.Handle(c.Request.Context(), service.Delivery{
		Shop:      c.GetHeader(shopify.HeaderShop),
		Topic:     c.GetHeader(shopify.HeaderTopic),
		Signature: c.GetHeader(shopify.HeaderHMAC),
		WebhookID: c.GetHeader(shopify.HeaderWebhID),
		Body:      body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, out)
}
