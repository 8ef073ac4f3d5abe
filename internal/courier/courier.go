// Package courier dispatches orders to the integrated courier.
package courier

import (
	"context"
	"time"

	"github.com/d60-Lab/shipdesk/internal/model"
)

// Result 单次下单结果。失败只记录，不回滚订单。
type Result struct {
	Skipped        bool      `json:"skipped"`
	Success        bool      `json:"success"`
	Waybill        string    `json:"waybill_number,omitempty"`
	CourierOrderID string    `json:"courier_order_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	AttemptedAt    time.Time `json:"attempted_at"`
	// Reused 订单已有运单，未重复下单
	Reused bool `json:"reused,omitempty"`
}

// Status 映射到订单的下单状态
func (r Result) Status() model.DispatchStatus {
	if r.Success {
		return model.DispatchSuccess
	}
	return model.DispatchFailed
}

// Dispatcher 快递下单适配器
type Dispatcher interface {
	// Handles 是否负责该快递服务（大小写不敏感）
	Handles(courierService string) bool
	// Dispatch 从不返回 error，失败体现在 Result 中
	Dispatch(ctx context.Context, order *model.Order) Result
}
