package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/shipdesk/internal/model"
)

// GormOrderRepository 基于 GORM 的订单仓储
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: tx}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *model.Order) error {
	if order.DispatchStatus == "" {
		order.DispatchStatus = model.DispatchUnset
	}
	err := r.db.WithContext(ctx).Create(order).Error
	if isDuplicate(err) {
		return ErrDuplicateReference.Wrap(err)
	}
	return err
}

func (r *GormOrderRepository) Get(ctx context.Context, tenantID, orderID int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, orderID).
		First(&order).Error
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return &order, nil
}

var searchColumns = []string{"name", "mobile", "upstream_tracking_id", "reference_number"}

func (r *GormOrderRepository) List(ctx context.Context, tenantID int64, f OrderFilter) ([]*model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("tenant_id = ?", tenantID)

	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		conds := make([]string, len(searchColumns))
		args := make([]interface{}, len(searchColumns))
		for i, col := range searchColumns {
			conds[i] = fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, col)
			args[i] = pattern
		}
		q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	if f.CourierService != "" {
		q = q.Where("courier_service = ?", f.CourierService)
	}
	if f.PickupLocation != "" {
		q = q.Where("pickup_location = ?", f.PickupLocation)
	}
	if f.DispatchStatus != "" {
		q = q.Where("dispatch_status = ?", f.DispatchStatus)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at < ?", f.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := Page(f.Page, f.PageSize)
	var orders []*model.Order
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *GormOrderRepository) ExistsReference(ctx context.Context, tenantID int64, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("tenant_id = ? AND reference_number = ?", tenantID, reference).
		Count(&count).Error
	return count > 0, err
}

func (r *GormOrderRepository) BulkDelete(ctx context.Context, tenantID int64, orderIDs []int64) (int64, error) {
	ids := dedupe(orderIDs)
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []int64
		if err := tx.Model(&model.Order{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND id IN ?", tenantID, ids).
			Pluck("id", &owned).Error; err != nil {
			return err
		}
		// 不区分“不存在”和“属于其他租户”
		if len(owned) != len(ids) {
			return ErrOrdersNotFound
		}

		res := tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).Delete(&model.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return ErrDeleteMismatch
		}
		deleted = res.RowsAffected

		return tx.Model(&model.ShadowOrder{}).
			Where("order_id IN ?", ids).
			Update("order_id", nil).Error
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *GormOrderRepository) ClaimDispatch(ctx context.Context, tenantID, orderID int64, at, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("tenant_id = ? AND id = ?", tenantID, orderID).
		Where("(dispatch_status IN ? OR (dispatch_status = ? AND dispatch_attempted_at < ?))",
			[]string{string(model.DispatchUnset), string(model.DispatchFailed)},
			string(model.DispatchInFlight), staleBefore.UTC()).
		Updates(map[string]interface{}{
			"dispatch_status":       model.DispatchInFlight,
			"dispatch_attempted_at": at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if _, err := r.Get(ctx, tenantID, orderID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *GormOrderRepository) UpdateDispatch(ctx context.Context, tenantID, orderID int64, u DispatchUpdate) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("tenant_id = ? AND id = ?", tenantID, orderID).
		Where("dispatch_status <> ?", string(model.DispatchSuccess)).
		Updates(map[string]interface{}{
			"dispatch_status":       u.Status,
			"waybill":               u.Waybill,
			"courier_order_id":      u.CourierOrderID,
			"dispatch_error":        u.Error,
			"dispatch_attempted_at": u.AttemptedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, tenantID, orderID); err != nil {
			return err
		}
		return ErrDispatchSettled
	}
	return nil
}

func (r *GormOrderRepository) ApplyFulfillment(ctx context.Context, tenantID, orderID int64, trackingID, status string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("tenant_id = ? AND id = ?", tenantID, orderID).
		Updates(map[string]interface{}{
			"upstream_tracking_id": trackingID,
			"fulfillment_status":   status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
