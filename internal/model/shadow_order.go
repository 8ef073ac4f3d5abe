package model

import (
	"time"

	"gorm.io/datatypes"
)

// ShadowOrder Shopify 订单镜像，(shop_domain, upstream_order_id) 复合唯一
type ShadowOrder struct {
	ID              int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	IntegrationID   int64          `json:"integration_id" gorm:"not null;index"`
	ShopDomain      string         `json:"shop_domain" gorm:"type:varchar(255);not null;uniqueIndex:ux_shadow_shop_upstream"`
	UpstreamOrderID string         `json:"upstream_order_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_shadow_shop_upstream"`
	OrderName       string         `json:"order_name" gorm:"type:varchar(64)"`
	Status          string         `json:"status" gorm:"type:varchar(32);not null"`
	OrderID         *int64         `json:"order_id,omitempty" gorm:"index"`
	Payload         datatypes.JSON `json:"payload"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (ShadowOrder) TableName() string { return "shadow_orders" }

// Shadow order statuses derived from upstream events.
const (
	ShadowStatusOpen      = "open"
	ShadowStatusCancelled = "cancelled"
	ShadowStatusClosed    = "closed"
	ShadowStatusFulfilled = "fulfilled"
)
