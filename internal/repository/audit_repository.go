package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/shipdesk/internal/model"
)

// AuditRepository 审计日志（只追加）
type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, tenantID int64, event string, page, pageSize int) ([]*model.AuditLog, int64, error)
}

type GormAuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &GormAuditRepository{db: db}
}

func (r *GormAuditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormAuditRepository) List(ctx context.Context, tenantID int64, event string, page, pageSize int) ([]*model.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditLog{}).Where("tenant_id = ?", tenantID)
	if event != "" {
		q = q.Where("event = ?", event)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := Page(page, pageSize)
	var logs []*model.AuditLog
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs).Error
	return logs, total, err
}
