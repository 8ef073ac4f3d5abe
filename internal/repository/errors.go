package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/d60-Lab/shipdesk/internal/apperr"
)

var (
	ErrOrderNotFound       = apperr.NotFound("order_not_found", "order not found")
	ErrOrdersNotFound      = apperr.NotFound("orders_not_found", "one or more orders not found")
	ErrDuplicateReference  = apperr.New(apperr.KindConflict, "duplicate_reference", "reference number already exists")
	ErrTenantNotFound      = apperr.NotFound("tenant_not_found", "tenant not found")
	ErrIntegrationNotFound = apperr.NotFound("integration_not_found", "integration not found")
	ErrShadowNotFound      = apperr.NotFound("shadow_order_not_found", "shadow order not found")
	ErrDeleteMismatch      = apperr.New(apperr.KindConsistency, "delete_mismatch", "deleted row count does not match request")
	ErrDispatchSettled     = apperr.New(apperr.KindConflict, "dispatch_settled", "order is already dispatched")
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page 规范化分页参数：page<1 取 1，pageSize<1 取默认值，上限 100
func Page(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return (page - 1) * pageSize, pageSize
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func notFound(err error, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
