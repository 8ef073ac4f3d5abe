package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// WebhookIntegration 租户的 Shopify 店铺接入
type WebhookIntegration struct {
	ID                 int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID           int64     `json:"tenant_id" gorm:"not null;index"`
	ShopDomain         string    `json:"shop_domain" gorm:"type:varchar(255);not null;uniqueIndex"`
	AccessToken        string    `json:"-" gorm:"type:varchar(255)"`
	WebhookSecret      string    `json:"-" gorm:"type:varchar(255);not null"`
	Active             bool      `json:"active" gorm:"not null;default:true"`
	ConfirmFulfillment bool      `json:"confirm_fulfillment" gorm:"not null;default:false"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (WebhookIntegration) TableName() string { return "webhook_integrations" }

// BeforeSave 店铺域名统一小写存储，与 webhook 头部查找一致
func (w *WebhookIntegration) BeforeSave(*gorm.DB) error {
	w.ShopDomain = NormalizeShopDomain(w.ShopDomain)
	return nil
}

// NormalizeShopDomain 去空白并转小写
func NormalizeShopDomain(shop string) string {
	return strings.ToLower(strings.TrimSpace(shop))
}
