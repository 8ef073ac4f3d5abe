package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/shipdesk/internal/model"
)

// ShadowOrderRepository Shopify 订单镜像
type ShadowOrderRepository interface {
	WithTx(tx *gorm.DB) ShadowOrderRepository
	// InsertIfAbsent 幂等插入，已存在时返回 false 且不修改
	InsertIfAbsent(ctx context.Context, s *model.ShadowOrder) (bool, error)
	Get(ctx context.Context, shopDomain, upstreamOrderID string) (*model.ShadowOrder, error)
	GetByID(ctx context.Context, id int64) (*model.ShadowOrder, error)
	Update(ctx context.Context, s *model.ShadowOrder) error
	// LinkOrder 关联内部订单，仅当尚未关联时成功
	LinkOrder(ctx context.Context, shadowID, orderID int64) (bool, error)
}

type GormShadowOrderRepository struct {
	db *gorm.DB
}

func NewShadowOrderRepository(db *gorm.DB) ShadowOrderRepository {
	return &GormShadowOrderRepository{db: db}
}

func (r *GormShadowOrderRepository) WithTx(tx *gorm.DB) ShadowOrderRepository {
	return &GormShadowOrderRepository{db: tx}
}

func (r *GormShadowOrderRepository) InsertIfAbsent(ctx context.Context, s *model.ShadowOrder) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_domain"}, {Name: "upstream_order_id"}},
		DoNothing: true,
	}).Create(s)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormShadowOrderRepository) Get(ctx context.Context, shopDomain, upstreamOrderID string) (*model.ShadowOrder, error) {
	var s model.ShadowOrder
	err := r.db.WithContext(ctx).
		Where("shop_domain = ? AND upstream_order_id = ?", shopDomain, upstreamOrderID).
		First(&s).Error
	if err != nil {
		return nil, notFound(err, ErrShadowNotFound)
	}
	return &s, nil
}

func (r *GormShadowOrderRepository) GetByID(ctx context.Context, id int64) (*model.ShadowOrder, error) {
	var s model.ShadowOrder
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, notFound(err, ErrShadowNotFound)
	}
	return &s, nil
}

func (r *GormShadowOrderRepository) Update(ctx context.Context, s *model.ShadowOrder) error {
	return r.db.WithContext(ctx).Model(s).
		Select("order_name", "status", "payload", "updated_at").
		Updates(s).Error
}

func (r *GormShadowOrderRepository) LinkOrder(ctx context.Context, shadowID, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.ShadowOrder{}).
		Where("id = ? AND order_id IS NULL", shadowID).
		Update("order_id", orderID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
