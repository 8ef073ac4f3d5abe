package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DispatchStatus 快递下单状态
type DispatchStatus string

const (
	DispatchUnset   DispatchStatus = "unset"
	DispatchSuccess DispatchStatus = "success"
	DispatchFailed  DispatchStatus = "failed"
	// DispatchInFlight 已被某次下单占用，快递结果写回前其他请求不得再下单
	DispatchInFlight DispatchStatus = "in_flight"
)

// Order 发货订单（按租户隔离）
type Order struct {
	ID       int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID int64 `json:"tenant_id" gorm:"not null;index:idx_order_tenant_created;uniqueIndex:ux_order_tenant_ref"`

	Name    string `json:"name" gorm:"type:varchar(128);not null"`
	Mobile  string `json:"mobile" gorm:"type:varchar(20);not null"`
	Address string `json:"address" gorm:"type:text;not null"`
	City    string `json:"city" gorm:"type:varchar(64)"`
	State   string `json:"state" gorm:"type:varchar(64)"`
	Country string `json:"country" gorm:"type:varchar(64);default:'India'"`
	Pincode string `json:"pincode" gorm:"type:varchar(12);not null"`

	ResellerName   string `json:"reseller_name" gorm:"type:varchar(128)"`
	ResellerMobile string `json:"reseller_mobile" gorm:"type:varchar(20)"`

	CourierService string              `json:"courier_service" gorm:"type:varchar(64);not null;index"`
	PickupLocation string              `json:"pickup_location" gorm:"type:varchar(128);not null;index"`
	PackageValue   decimal.Decimal     `json:"package_value" gorm:"type:decimal(12,2);not null"`
	Weight         int                 `json:"weight" gorm:"not null"` // grams
	TotalItems     int                 `json:"total_items" gorm:"not null"`
	CODAmount      decimal.NullDecimal `json:"cod_amount" gorm:"type:decimal(12,2)"`

	ReferenceNumber    string `json:"reference_number" gorm:"type:varchar(96);not null;uniqueIndex:ux_order_tenant_ref"`
	UpstreamTrackingID string `json:"tracking_id" gorm:"type:varchar(128)"`
	FulfillmentStatus  string `json:"fulfillment_status" gorm:"type:varchar(32)"`

	Waybill             string         `json:"waybill_number" gorm:"type:varchar(64)"`
	CourierOrderID      string         `json:"courier_order_id" gorm:"type:varchar(96)"`
	DispatchStatus      DispatchStatus `json:"delhivery_api_status" gorm:"type:varchar(16);not null;default:'unset';index"`
	DispatchError       string         `json:"delhivery_api_error" gorm:"type:text"`
	DispatchAttemptedAt *time.Time     `json:"delhivery_last_attempt_at"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_order_tenant_created"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// IsDispatched reports whether the courier already accepted this shipment.
func (o *Order) IsDispatched() bool {
	return o.DispatchStatus == DispatchSuccess && o.Waybill != ""
}

// HasReseller 经销商信息是否有效（排除占位值）
func (o *Order) HasReseller() bool {
	return !isPlaceholder(o.ResellerName, "no name") && !isPlaceholder(o.ResellerMobile, "no number")
}

func isPlaceholder(v, sentinel string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, sentinel)
}
