package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/shipdesk/internal/model"
)

// TenantRepository 租户与店铺接入
type TenantRepository interface {
	WithTx(tx *gorm.DB) TenantRepository

	Create(ctx context.Context, t *model.Tenant) error
	Get(ctx context.Context, id int64) (*model.Tenant, error)

	CreateIntegration(ctx context.Context, in *model.WebhookIntegration) error
	GetIntegrationByShop(ctx context.Context, shopDomain string) (*model.WebhookIntegration, error)
	GetIntegration(ctx context.Context, id int64) (*model.WebhookIntegration, error)
}

type GormTenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &GormTenantRepository{db: db}
}

func (r *GormTenantRepository) WithTx(tx *gorm.DB) TenantRepository {
	return &GormTenantRepository{db: tx}
}

func (r *GormTenantRepository) Create(ctx context.Context, t *model.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *GormTenantRepository) Get(ctx context.Context, id int64) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err, ErrTenantNotFound)
	}
	return &t, nil
}

func (r *GormTenantRepository) CreateIntegration(ctx context.Context, in *model.WebhookIntegration) error {
	return r.db.WithContext(ctx).Create(in).Error
}

func (r *GormTenantRepository) GetIntegrationByShop(ctx context.Context, shopDomain string) (*model.WebhookIntegration, error) {
	var in model.WebhookIntegration
	if err := r.db.WithContext(ctx).Where("shop_domain = ?", model.NormalizeShopDomain(shopDomain)).First(&in).Error; err != nil {
		return nil, notFound(err, ErrIntegrationNotFound)
	}
	return &in, nil
}

func (r *GormTenantRepository) GetIntegration(ctx context.Context, id int64) (*model.WebhookIntegration, error) {
	var in model.WebhookIntegration
	if err := r.db.WithContext(ctx).First(&in, id).Error; err != nil {
		return nil, notFound(err, ErrIntegrationNotFound)
	}
	return &in, nil
}
