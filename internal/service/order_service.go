package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/shipdesk/internal/apperr"
	"github.com/d60-Lab/shipdesk/internal/audit"
	"github.com/d60-Lab/shipdesk/internal/courier"
	"github.com/d60-Lab/shipdesk/internal/credit"
	"github.com/d60-Lab/shipdesk/internal/events"
	"github.com/d60-Lab/shipdesk/internal/metrics"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/notify"
	"github.com/d60-Lab/shipdesk/internal/reference"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

const (
	dateLayout        = "2006-01-02"
	maxBulkDelete     = 500
	referenceAttempts = 3
	// 占用超过该时长仍未写回结果，视为进程中断，允许重新下单
	defaultDispatchLease = 2 * time.Minute
)

var (
	ErrTenantInactive     = apperr.New(apperr.KindForbidden, "tenant_inactive", "tenant is not active")
	ErrCourierUnsupported = apperr.Validation("courier_not_integrated", "courier service is not integrated for dispatch")
	ErrShadowLinked       = apperr.New(apperr.KindConflict, "shadow_order_linked", "shadow order is already linked to an order")
	ErrDispatchInProgress = apperr.New(apperr.KindConflict, "dispatch_in_progress", "courier dispatch is already in progress for this order")
	ErrNoOrderIDs         = apperr.Validation("order_ids_required", "order_ids must not be empty")
	ErrTooManyOrderIDs    = apperr.Validation("too_many_order_ids", "too many order ids in one request")
)

// CreateOrderInput 创建订单参数
type CreateOrderInput struct {
	Name           string           `json:"name" binding:"required,max=128"`
	Mobile         string           `json:"mobile" binding:"required,max=20"`
	Address        string           `json:"address" binding:"required"`
	City           string           `json:"city" binding:"max=64"`
	State          string           `json:"state" binding:"max=64"`
	Country        string           `json:"country" binding:"max=64"`
	Pincode        string           `json:"pincode" binding:"required,max=12"`
	ResellerName   string           `json:"reseller_name" binding:"max=128"`
	ResellerMobile string           `json:"reseller_mobile" binding:"max=20"`
	CourierService string           `json:"courier_service" binding:"required,max=64"`
	PickupLocation string           `json:"pickup_location" binding:"required,max=128"`
	PackageValue   *decimal.Decimal `json:"package_value" binding:"required"`
	Weight         int              `json:"weight" binding:"required,gt=0"`
	TotalItems     int              `json:"total_items" binding:"required,gt=0"`
	CODAmount      *decimal.Decimal `json:"cod_amount"`
	// ReferenceNumber 自定义参考号，空则自动生成
	ReferenceNumber string `json:"reference_number" binding:"max=64"`
	ShadowOrderID   *int64 `json:"shadow_order_id"`
}

// ListOrdersInput 列表参数，日期为 YYYY-MM-DD（业务时区），to 含当天
type ListOrdersInput struct {
	Search         string `form:"search"`
	From           string `form:"from"`
	To             string `form:"to"`
	PickupLocation string `form:"pickup_location"`
	CourierService string `form:"courier_service"`
	DispatchStatus string `form:"status" binding:"omitempty,oneof=unset success failed in_flight"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
}

// CreditSummary 本次扣费情况
type CreditSummary struct {
	Charged int64 `json:"charged"`
	Balance int64 `json:"balance"`
	Exempt  bool  `json:"exempt,omitempty"`
}

// CreateOrderResult 订单 + 快递结果，部分失败也完整返回
type CreateOrderResult struct {
	Order        *model.Order   `json:"order"`
	Courier      courier.Result `json:"courier"`
	Credits      CreditSummary  `json:"credits"`
	Notification *notify.Report `json:"notification,omitempty"`
}

// DispatchResult 手动重试结果
type DispatchResult struct {
	Order        *model.Order   `json:"order"`
	Courier      courier.Result `json:"courier"`
	Notification *notify.Report `json:"notification,omitempty"`
}

// OrderPage 分页结果
type OrderPage struct {
	Orders   []*model.Order `json:"orders"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// OrderService 订单流水线
type OrderService interface {
	Create(ctx context.Context, tenantID int64, in CreateOrderInput) (*CreateOrderResult, error)
	List(ctx context.Context, tenantID int64, in ListOrdersInput) (*OrderPage, error)
	Get(ctx context.Context, tenantID, orderID int64) (*model.Order, error)
	BulkDelete(ctx context.Context, tenantID int64, orderIDs []int64) (int64, error)
	RetryDispatch(ctx context.Context, tenantID, orderID int64) (*DispatchResult, error)
}

// TenantLookup 租户读取
type TenantLookup interface {
	Get(ctx context.Context, id int64) (*model.Tenant, error)
}

// Notifier 发货通知
type Notifier interface {
	Notify(ctx context.Context, order *model.Order, branding model.Branding) notify.Report
}

// Auditor 审计
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// OrderDeps 订单服务依赖
type OrderDeps struct {
	DB           *gorm.DB
	Orders       repository.OrderRepository
	Shadows      repository.ShadowOrderRepository
	Integrations repository.TenantRepository
	Tenants      TenantLookup
	Ledger       *credit.Ledger
	References   *reference.Generator
	Courier      courier.Dispatcher
	Notifier     Notifier
	Events       events.Publisher
	Audit        Auditor
	OrderCost    int64
	Location     *time.Location
	// DispatchLease 下单占用的最长时间，应大于快递超时
	DispatchLease time.Duration
}

type orderService struct {
	OrderDeps
	validate *validator.Validate
}

func NewOrderService(d OrderDeps) OrderService {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.DispatchLease <= 0 {
		d.DispatchLease = defaultDispatchLease
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Audit == nil {
		d.Audit = nopAuditor{}
	}
	return &orderService{OrderDeps: d, validate: newValidator()}
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, audit.Entry) {}

// newValidator 与 gin 共用 binding 标签，字段名取 json/form 名
func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(FieldName)
	return v
}

// FieldName 校验错误中使用 json/form 字段名
func FieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return ""
}

func (s *orderService) Create(ctx context.Context, tenantID int64, in CreateOrderInput) (*CreateOrderResult, error) {
	ctx, span := otel.Tracer("shipdesk/service").Start(ctx, "order.create")
	defer span.End()
	span.SetAttributes(attribute.Int64("tenant.id", tenantID))

	order, err := s.buildOrder(tenantID, in)
	if err != nil {
		metrics.OrdersCreatedTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	tenant, err := s.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.Active {
		return nil, ErrTenantInactive
	}

	result := &CreateOrderResult{Order: order, Credits: CreditSummary{Exempt: tenant.CreditExempt}}
	custom := strings.TrimSpace(in.ReferenceNumber)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.Orders.WithTx(tx)

		ref, err := s.reserveReference(ctx, orders, tenant, order.Mobile, custom)
		if err != nil {
			return err
		}
		order.ReferenceNumber = ref

		if err := orders.Create(ctx, order); err != nil {
			return err
		}

		if in.ShadowOrderID != nil {
			if err := s.linkShadow(ctx, tx, tenantID, *in.ShadowOrderID, order.ID); err != nil {
				return err
			}
		}

		if tenant.CreditExempt || s.OrderCost <= 0 {
			return nil
		}
		id := order.ID
		entry, err := s.Ledger.DebitTx(ctx, tx, credit.DebitRequest{
			TenantID:       tenantID,
			Amount:         s.OrderCost,
			Feature:        model.FeatureOrder,
			Description:    "order " + order.ReferenceNumber,
			OrderID:        &id,
			OrderReference: order.ReferenceNumber,
		})
		if err != nil {
			metrics.CreditDebitsTotal.WithLabelValues(string(model.FeatureOrder), "rejected").Inc()
			return err
		}
		metrics.CreditDebitsTotal.WithLabelValues(string(model.FeatureOrder), "ok").Inc()
		result.Credits.Charged = entry.Amount
		result.Credits.Balance = entry.BalanceAfter
		return nil
	})
	if err != nil {
		s.rejected(ctx, tenantID, err)
		return nil, err
	}
	metrics.OrdersCreatedTotal.WithLabelValues("created").Inc()

	fields := []zap.Field{zap.Int64("tenant_id", tenantID), zap.Int64("order_id", order.ID)}
	logger.Info("order created", append(fields, zap.String("reference", order.ReferenceNumber))...)

	result.Courier, err = s.dispatch(ctx, order)
	if err != nil {
		// 订单已提交；另一请求正在下单或订单已被删除，结果以该请求为准
		logger.Warn("dispatch not attempted", append(fields, zap.Error(err))...)
		result.Courier = courier.Result{Error: err.Error()}
	}
	if result.Credits.Charged == 0 && !tenant.CreditExempt {
		if acct, err := s.Ledger.Balance(ctx, tenantID); err == nil {
			result.Credits.Balance = acct.Balance
		}
	}

	s.Audit.Record(ctx, audit.Entry{
		TenantID: audit.TenantID(tenantID),
		Event:    audit.EventOrderCreated,
		Subject:  order.ReferenceNumber,
		Outcome:  "created",
		Details: map[string]any{
			"order_id":        order.ID,
			"courier_status":  string(order.DispatchStatus),
			"credits_charged": result.Credits.Charged,
		},
	})

	hooks := []hook{{name: "event.order_created", fn: func(ctx context.Context) error {
		e := events.New(events.TypeOrderCreated, tenantID, order.ID)
		e.Reference = order.ReferenceNumber
		e.Status = string(order.DispatchStatus)
		return s.Events.Publish(ctx, e)
	}}}
	hooks = append(hooks, s.afterDispatch(tenant, order, result.Courier, &result.Notification)...)
	runPostCommit(ctx, fields, hooks...)

	return result, nil
}

func (s *orderService) List(ctx context.Context, tenantID int64, in ListOrdersInput) (*OrderPage, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, ValidationError(err)
	}
	f := repository.OrderFilter{
		Search:         in.Search,
		CourierService: strings.TrimSpace(in.CourierService),
		PickupLocation: strings.TrimSpace(in.PickupLocation),
		DispatchStatus: model.DispatchStatus(in.DispatchStatus),
		Page:           in.Page,
		PageSize:       in.PageSize,
	}
	var err error
	if f.From, f.To, err = DateRange(in.From, in.To, s.Location); err != nil {
		return nil, err
	}

	orders, total, err := s.Orders.List(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	offset, limit := repository.Page(in.Page, in.PageSize)
	if orders == nil {
		orders = []*model.Order{}
	}
	return &OrderPage{Orders: orders, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

func (s *orderService) Get(ctx context.Context, tenantID, orderID int64) (*model.Order, error) {
	return s.Orders.Get(ctx, tenantID, orderID)
}

func (s *orderService) BulkDelete(ctx context.Context, tenantID int64, orderIDs []int64) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, ErrNoOrderIDs
	}
	if len(orderIDs) > maxBulkDelete {
		return 0, ErrTooManyOrderIDs
	}
	for _, id := range orderIDs {
		if id <= 0 {
			return 0, apperr.Validation("invalid_order_id", "order ids must be positive")
		}
	}

	n, err := s.Orders.BulkDelete(ctx, tenantID, orderIDs)
	if err != nil {
		severity := model.SeverityWarning
		if errors.Is(err, repository.ErrOrdersNotFound) {
			severity = model.SeveritySecurity
		}
		s.Audit.Record(ctx, audit.Entry{
			TenantID: audit.TenantID(tenantID),
			Event:    audit.EventOrdersDeleted,
			Severity: severity,
			Outcome:  "rejected",
			Details:  map[string]any{"requested": len(orderIDs), "error": apperr.CodeOf(err)},
		})
		return 0, err
	}

	s.Audit.Record(ctx, audit.Entry{
		TenantID: audit.TenantID(tenantID),
		Event:    audit.EventOrdersDeleted,
		Outcome:  "deleted",
		Details:  map[string]any{"order_ids": orderIDs, "deleted": n},
	})
	runPostCommit(ctx, []zap.Field{zap.Int64("tenant_id", tenantID)}, hook{name: "event.orders_deleted", fn: func(ctx context.Context) error {
		return s.Events.Publish(ctx, events.New(events.TypeOrdersDeleted, tenantID, orderIDs...))
	}})
	return n, nil
}

// RetryDispatch 手动重试；已有运单的订单直接返回，不重复下单，也不再扣费
func (s *orderService) RetryDispatch(ctx context.Context, tenantID, orderID int64) (*DispatchResult, error) {
	order, err := s.Orders.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !s.Courier.Handles(order.CourierService) {
		return nil, ErrCourierUnsupported
	}
	tenant, err := s.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	res := &DispatchResult{Order: order}
	res.Courier, err = s.dispatch(ctx, order)
	if err != nil {
		return nil, err
	}
	if res.Courier.Reused {
		return res, nil
	}
	runPostCommit(ctx,
		[]zap.Field{zap.Int64("tenant_id", tenantID), zap.Int64("order_id", orderID)},
		s.afterDispatch(tenant, order, res.Courier, &res.Notification)...)
	return res, nil
}

// dispatch 先占用订单再调用快递并写回结果，同一订单同一时刻只有一个请求下单。
// 快递失败不影响订单本身；success 为终态。
func (s *orderService) dispatch(ctx context.Context, order *model.Order) (courier.Result, error) {
	if !s.Courier.Handles(order.CourierService) {
		metrics.CourierDispatchTotal.WithLabelValues("skipped").Inc()
		return courier.Result{Skipped: true}, nil
	}
	if order.IsDispatched() {
		return reusedResult(order), nil
	}

	now := time.Now()
	claimed, err := s.Orders.ClaimDispatch(ctx, order.TenantID, order.ID, now, now.Add(-s.DispatchLease))
	if err != nil {
		return courier.Result{}, err
	}
	if !claimed {
		current, err := s.Orders.Get(ctx, order.TenantID, order.ID)
		if err != nil {
			return courier.Result{}, err
		}
		*order = *current
		if order.IsDispatched() {
			return reusedResult(order), nil
		}
		return courier.Result{}, ErrDispatchInProgress
	}
	order.DispatchStatus = model.DispatchInFlight

	start := time.Now()
	res := s.Courier.Dispatch(ctx, order)
	metrics.CourierDispatchDuration.Observe(time.Since(start).Seconds())
	metrics.CourierDispatchTotal.WithLabelValues(string(res.Status())).Inc()

	update := repository.DispatchUpdate{
		Status:         res.Status(),
		Waybill:        res.Waybill,
		CourierOrderID: res.CourierOrderID,
		Error:          res.Error,
		AttemptedAt:    res.AttemptedAt,
	}
	if res.Success {
		update.Error = ""
	} else {
		// 失败时保留已有运单字段
		update.Waybill = order.Waybill
		update.CourierOrderID = order.CourierOrderID
	}
	err = s.Orders.UpdateDispatch(context.WithoutCancel(ctx), order.TenantID, order.ID, update)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		// 并发删除：订单已不存在
		logger.Warn("dispatch result for deleted order", zap.Int64("tenant_id", order.TenantID), zap.Int64("order_id", order.ID))
	case errors.Is(err, repository.ErrDispatchSettled):
		// 占用超时后被其他请求接管并已成功，以已记录的运单为准
		logger.Warn("dispatch result superseded",
			zap.Int64("order_id", order.ID), zap.String("waybill", res.Waybill), zap.Bool("success", res.Success))
		if current, gErr := s.Orders.Get(context.WithoutCancel(ctx), order.TenantID, order.ID); gErr == nil {
			*order = *current
			return reusedResult(order), nil
		}
	case err != nil:
		logger.Error("failed to record dispatch result", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	at := update.AttemptedAt
	order.DispatchStatus = update.Status
	order.Waybill = update.Waybill
	order.CourierOrderID = update.CourierOrderID
	order.DispatchError = update.Error
	order.DispatchAttemptedAt = &at

	s.Audit.Record(ctx, audit.Entry{
		TenantID: audit.TenantID(order.TenantID),
		Event:    audit.EventOrderDispatched,
		Severity: severityFor(res.Success),
		Subject:  order.ReferenceNumber,
		Outcome:  string(update.Status),
		Details:  map[string]any{"order_id": order.ID, "waybill": res.Waybill, "error": res.Error},
	})
	return res, nil
}

// reusedResult 已有运单的订单不再下单
func reusedResult(order *model.Order) courier.Result {
	at := time.Now().UTC()
	if order.DispatchAttemptedAt != nil {
		at = *order.DispatchAttemptedAt
	}
	return courier.Result{Success: true, Reused: true, Waybill: order.Waybill, CourierOrderID: order.CourierOrderID, AttemptedAt: at}
}

// afterDispatch 通知与事件；快递失败时不发通知，等待重试成功后再发
func (s *orderService) afterDispatch(tenant *model.Tenant, order *model.Order, res courier.Result, report **notify.Report) []hook {
	if !res.Success && !res.Skipped {
		return nil
	}
	var hooks []hook
	if s.Notifier != nil {
		hooks = append(hooks, hook{name: "notify.whatsapp", fn: func(ctx context.Context) error {
			r := s.Notifier.Notify(ctx, order, tenant.Branding())
			*report = &r
			return nil
		}})
	}
	if res.Success {
		hooks = append(hooks, hook{name: "event.order_dispatched", fn: func(ctx context.Context) error {
			e := events.New(events.TypeOrderDispatched, order.TenantID, order.ID)
			e.Reference = order.ReferenceNumber
			e.Waybill = order.Waybill
			e.Status = string(order.DispatchStatus)
			return s.Events.Publish(ctx, e)
		}})
	}
	return hooks
}

func (s *orderService) buildOrder(tenantID int64, in CreateOrderInput) (*model.Order, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.Address = strings.TrimSpace(in.Address)
	in.Pincode = strings.TrimSpace(in.Pincode)
	in.CourierService = strings.TrimSpace(in.CourierService)
	in.PickupLocation = strings.TrimSpace(in.PickupLocation)

	if err := s.validate.Struct(in); err != nil {
		return nil, ValidationError(err)
	}
	if in.PackageValue.IsNegative() {
		return nil, apperr.Validation("invalid_package_value", "package_value must not be negative")
	}
	if reference.NormalizeMobile(in.Mobile) == "" {
		return nil, apperr.Validation("invalid_mobile", "mobile must contain digits")
	}

	o := &model.Order{
		TenantID:       tenantID,
		Name:           in.Name,
		Mobile:         in.Mobile,
		Address:        in.Address,
		City:           strings.TrimSpace(in.City),
		State:          strings.TrimSpace(in.State),
		Country:        strings.TrimSpace(in.Country),
		Pincode:        in.Pincode,
		ResellerName:   strings.TrimSpace(in.ResellerName),
		ResellerMobile: strings.TrimSpace(in.ResellerMobile),
		CourierService: in.CourierService,
		PickupLocation: in.PickupLocation,
		PackageValue:   *in.PackageValue,
		Weight:         in.Weight,
		TotalItems:     in.TotalItems,
		DispatchStatus: model.DispatchUnset,
	}
	if o.Country == "" {
		o.Country = "India"
	}
	if in.CODAmount != nil {
		if in.CODAmount.IsNegative() {
			return nil, apperr.Validation("invalid_cod_amount", "cod_amount must not be negative")
		}
		o.CODAmount = decimal.NewNullDecimal(*in.CODAmount)
	}
	return o, nil
}

// reserveReference 自定义参考号冲突直接报错；自动生成的冲突则重新生成
func (s *orderService) reserveReference(ctx context.Context, orders repository.OrderRepository, tenant *model.Tenant, mobile, custom string) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		ref := s.References.Generate(mobile, tenant.EnablePrefix, custom)
		exists, err := orders.ExistsReference(ctx, tenant.ID, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
		if custom != "" {
			return "", repository.ErrDuplicateReference.WithMessage("reference number %q already exists", ref)
		}
	}
	return "", repository.ErrDuplicateReference
}

// linkShadow 导入的 Shopify 订单必须属于本租户且尚未关联
func (s *orderService) linkShadow(ctx context.Context, tx *gorm.DB, tenantID, shadowID, orderID int64) error {
	shadows := s.Shadows.WithTx(tx)
	shadow, err := shadows.GetByID(ctx, shadowID)
	if err != nil {
		return err
	}
	in, err := s.Integrations.WithTx(tx).GetIntegration(ctx, shadow.IntegrationID)
	if err != nil || in.TenantID != tenantID {
		return repository.ErrShadowNotFound
	}
	ok, err := shadows.LinkOrder(ctx, shadowID, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrShadowLinked
	}
	return nil
}

func (s *orderService) rejected(ctx context.Context, tenantID int64, err error) {
	outcome := "error"
	if apperr.KindOf(err) == apperr.KindInsufficientCredit {
		outcome = "insufficient_credit"
	}
	metrics.OrdersCreatedTotal.WithLabelValues(outcome).Inc()
	s.Audit.Record(ctx, audit.Entry{
		TenantID: audit.TenantID(tenantID),
		Event:    audit.EventOrderRejected,
		Severity: model.SeverityWarning,
		Outcome:  outcome,
		Details:  map[string]any{"error": apperr.CodeOf(err)},
	})
}

// DateRange 解析 [from, to] 日期为 [from 00:00, to+1 00:00)
func DateRange(from, to string, loc *time.Location) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if from = strings.TrimSpace(from); from != "" {
		t, err := time.ParseInLocation(dateLayout, from, loc)
		if err != nil {
			return nil, nil, apperr.Validation("invalid_date", "from must be YYYY-MM-DD")
		}
		start = &t
	}
	if to = strings.TrimSpace(to); to != "" {
		t, err := time.ParseInLocation(dateLayout, to, loc)
		if err != nil {
			return nil, nil, apperr.Validation("invalid_date", "to must be YYYY-MM-DD")
		}
		t = t.AddDate(0, 0, 1)
		end = &t
	}
	if start != nil && end != nil && !start.Before(*end) {
		return nil, nil, apperr.Validation("invalid_date_range", "from must not be after to")
	}
	return start, end, nil
}

// ValidationError 将校验错误转换为 apperr，取第一个字段
func ValidationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return apperr.Validation("invalid_"+strings.ToLower(fe.Field()), fieldMessage(fe))
	}
	return apperr.Validation("invalid_request", err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "max":
		return fe.Field() + " is too long"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

func severityFor(ok bool) model.AuditSeverity {
	if ok {
		return model.SeverityInfo
	}
	return model.SeverityWarning
}
