package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/shipdesk/internal/apperr"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 200 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: "ok", Message: "success", Data: data})
}

// Created 201 创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: "ok", Message: "created", Data: data})
}

// BadRequest 400 参数错误
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: apperr.KindValidation.String(), Message: message})
}

// Unauthorized 401
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: apperr.KindAuthorization.String(), Message: message})
}

// TooManyRequests 429
func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: "rate_limited", Message: "too many requests"})
}

// InternalError 500 内部错误，同时上报 Sentry
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error", zap.Error(err), zap.String("path", c.FullPath()))
	if hub := sentry.CurrentHub(); hub != nil && hub.Client() != nil {
		hub.Clone().CaptureException(err)
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Code: apperr.KindInternal.String(), Message: "internal server error"})
}

// Error 根据错误类型映射 HTTP 状态码
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		InternalError(c, err)
		return
	}
	c.AbortWithStatusJSON(StatusOf(kind), Response{Code: apperr.CodeOf(err), Message: err.Error()})
}

// ErrorWithData 带附加数据的错误响应（例如余额不足时返回当前余额）
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	c.AbortWithStatusJSON(StatusOf(apperr.KindOf(err)), Response{Code: apperr.CodeOf(err), Message: err.Error(), Data: data})
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindConsistency:
		return http.StatusConflict
	case apperr.KindInsufficientCredit:
		return http.StatusPaymentRequired
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
