package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/shipdesk/internal/ratelimit"
	"github.com/d60-Lab/shipdesk/pkg/logger"
	"github.com/d60-Lab/shipdesk/pkg/response"
)

// KeyFunc 限流维度
type KeyFunc func(c *gin.Context) string

// ByTenant 已认证请求按租户，其余按客户端 IP
func ByTenant(c *gin.Context) string {
	if id := TenantID(c); id > 0 {
		return "tenant:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + c.ClientIP()
}

// ByShop webhook 按店铺域名
func ByShop(header string) KeyFunc {
	return func(c *gin.Context) string {
		if shop := c.GetHeader(header); shop != "" {
			return "shop:" + shop
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimit 存储不可用时放行
func RateLimit(store ratelimit.Store, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		ok, err := store.Allow(c.Request.Context(), k)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", k), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
