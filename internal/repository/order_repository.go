package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/shipdesk/internal/model"
)

// OrderFilter 订单列表筛选条件，所有条件按 AND 组合
type OrderFilter struct {
	Search         string
	CourierService string
	PickupLocation string
	DispatchStatus model.DispatchStatus
	// [From, To) 半开区间
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// DispatchUpdate 快递下单结果
type DispatchUpdate struct {
	Status         model.DispatchStatus
	Waybill        string
	CourierOrderID string
	Error          string
	AttemptedAt    time.Time
}

// OrderRepository 订单仓储接口。所有读写都带租户条件。
type OrderRepository interface {
	// WithTx 返回绑定到事务的仓储
	WithTx(tx *gorm.DB) OrderRepository

	// Create 创建订单，同租户参考号冲突返回 ErrDuplicateReference
	Create(ctx context.Context, order *model.Order) error

	// Get 查询单个订单
	Get(ctx context.Context, tenantID, orderID int64) (*model.Order, error)

	// List 分页查询，返回当前页和总数
	List(ctx context.Context, tenantID int64, f OrderFilter) ([]*model.Order, int64, error)

	// ExistsReference 参考号是否已被本租户使用
	ExistsReference(ctx context.Context, tenantID int64, reference string) (bool, error)

	// BulkDelete 全部属于本租户才删除，否则一条都不删
	BulkDelete(ctx context.Context, tenantID int64, orderIDs []int64) (int64, error)

	// ClaimDispatch 将 unset/failed（或占用早于 staleBefore 的 in_flight）订单置为 in_flight。
	// 返回 false 表示订单已下单成功或正被其他请求处理。
	ClaimDispatch(ctx context.Context, tenantID, orderID int64, at, staleBefore time.Time) (bool, error)

	// UpdateDispatch 写回快递下单结果；success 为终态，已成功的订单返回 ErrDispatchSettled
	UpdateDispatch(ctx context.Context, tenantID, orderID int64, u DispatchUpdate) error

	// ApplyFulfillment 写回上游履约信息
	ApplyFulfillment(ctx context.Context, tenantID, orderID int64, trackingID, status string) error
}
