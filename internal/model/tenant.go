package model

import "time"

// Tenant 租户（仅保留订单流水线需要的字段：品牌、鉴权、单号前缀开关）
type Tenant struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name" gorm:"type:varchar(128);not null"`
	BrandName    string    `json:"brand_name" gorm:"type:varchar(128)"`
	SupportPhone string    `json:"support_phone" gorm:"type:varchar(20)"`
	APIKeyHash   string    `json:"-" gorm:"type:varchar(100)"`
	EnablePrefix bool      `json:"enable_prefix" gorm:"not null;default:false"`
	CreditExempt bool      `json:"credit_exempt" gorm:"not null;default:false"`
	Active       bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

// Branding is the subset of tenant data used in customer-facing messages.
type Branding struct {
	Name         string
	SupportPhone string
}

func (t *Tenant) Branding() Branding {
	name := t.BrandName
	if name == "" {
		name = t.Name
	}
	return Branding{Name: name, SupportPhone: t.SupportPhone}
}
