package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/d60-Lab/shipdesk/config"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

const (
	createPath   = "/api/cmu/create.json"
	maxErrorText = 500
	maxBody      = 1 << 20
)

var errNoWaybill = errors.New("courier response has no waybill")

// Delhivery CMU 下单接口
type Delhivery struct {
	name    string
	baseURL string
	token   string
	client  *http.Client
	now     func() time.Time
}

// NewDelhivery 创建 Delhivery 适配器，超时由 cfg.Timeout 控制
func NewDelhivery(cfg config.CourierConfig) *Delhivery {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Delhivery{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

func (d *Delhivery) Handles(courierService string) bool {
	return strings.EqualFold(strings.TrimSpace(courierService), d.name)
}

func (d *Delhivery) Dispatch(ctx context.Context, order *model.Order) Result {
	if !d.Handles(order.CourierService) {
		return Result{Skipped: true}
	}
	if order.IsDispatched() {
		at := d.now().UTC()
		if order.DispatchAttemptedAt != nil {
			at = *order.DispatchAttemptedAt
		}
		return Result{Success: true, Reused: true, Waybill: order.Waybill, CourierOrderID: order.CourierOrderID, AttemptedAt: at}
	}

	ctx, span := otel.Tracer("shipdesk/courier").Start(ctx, "delhivery.create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.Int64("tenant.id", order.TenantID),
	)

	res := Result{AttemptedAt: d.now().UTC()}
	pkg, err := d.create(ctx, order)
	if err != nil {
		res.Error = truncate(err.Error(), maxErrorText)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		logger.Warn("courier dispatch failed",
			zap.Int64("tenant_id", order.TenantID),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return res
	}

	res.Success = true
	res.Waybill = pkg.Waybill
	res.CourierOrderID = pkg.RefNum
	if res.CourierOrderID == "" {
		res.CourierOrderID = order.ReferenceNumber
	}
	logger.Info("courier dispatch succeeded",
		zap.Int64("tenant_id", order.TenantID),
		zap.Int64("order_id", order.ID),
		zap.String("waybill", pkg.Waybill))
	return res
}

type shipment struct {
	Name          string `json:"name"`
	Address       string `json:"add"`
	Pin           string `json:"pin"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	Phone         string `json:"phone"`
	Order         string `json:"order"`
	PaymentMode   string `json:"payment_mode"`
	CODAmount     string `json:"cod_amount"`
	TotalAmount   string `json:"total_amount"`
	Quantity      string `json:"quantity"`
	Weight        string `json:"weight"`
	SellerName    string `json:"seller_name,omitempty"`
	ShippingMode  string `json:"shipping_mode"`
	ProductsDesc  string `json:"products_desc"`
	ReturnName    string `json:"return_name,omitempty"`
	ReturnPhone   string `json:"return_phone,omitempty"`
	OrderDate     string `json:"order_date"`
	ShipmentWidth string `json:"shipment_width,omitempty"`
}

type createRequest struct {
	Shipments      []shipment `json:"shipments"`
	PickupLocation struct {
		Name string `json:"name"`
	} `json:"pickup_location"`
}

type createPackage struct {
	Status  string   `json:"status"`
	Waybill string   `json:"waybill"`
	RefNum  string   `json:"refnum"`
	Remarks []string `json:"remarks"`
}

type createResponse struct {
	Success  bool            `json:"success"`
	Error    bool            `json:"error"`
	Remark   string          `json:"rmk"`
	Packages []createPackage `json:"packages"`
	// 部分网关直接返回扁平结构
	WaybillNumber string `json:"waybill_number"`
	OrderID       string `json:"order_id"`
}

// BuildPayload 将订单映射为 CMU 下单请求
func BuildPayload(order *model.Order) ([]byte, error) {
	s := shipment{
		Name:         order.Name,
		Address:      order.Address,
		Pin:          order.Pincode,
		City:         order.City,
		State:        order.State,
		Country:      order.Country,
		Phone:        order.Mobile,
		Order:        order.ReferenceNumber,
		PaymentMode:  "Prepaid",
		TotalAmount:  order.PackageValue.StringFixed(2),
		Quantity:     fmt.Sprintf("%d", order.TotalItems),
		Weight:       fmt.Sprintf("%d", order.Weight),
		ShippingMode: "Surface",
		ProductsDesc: fmt.Sprintf("%d item(s)", order.TotalItems),
		OrderDate:    order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.CODAmount.Valid && order.CODAmount.Decimal.IsPositive() {
		s.PaymentMode = "COD"
		s.CODAmount = order.CODAmount.Decimal.StringFixed(2)
	}
	if order.HasReseller() {
		s.SellerName = order.ResellerName
		s.ReturnName = order.ResellerName
		s.ReturnPhone = order.ResellerMobile
	}

	req := createRequest{Shipments: []shipment{s}}
	req.PickupLocation.Name = order.PickupLocation
	return json.Marshal(req)
}

func (d *Delhivery) create(ctx context.Context, order *model.Order) (*createPackage, error) {
	data, err := BuildPayload(order)
	if err != nil {
		return nil, fmt.Errorf("encode shipment: %w", err)
	}
	form := url.Values{}
	form.Set("format", "json")
	form.Set("data", string(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+createPath, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read courier response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("courier returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out createResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("malformed courier response: %w", err)
	}
	if len(out.Packages) == 0 && out.WaybillNumber != "" {
		return &createPackage{Waybill: out.WaybillNumber, RefNum: out.OrderID}, nil
	}
	if len(out.Packages) == 0 {
		if out.Remark != "" {
			return nil, fmt.Errorf("courier rejected shipment: %s", out.Remark)
		}
		return nil, errNoWaybill
	}
	pkg := out.Packages[0]
	if pkg.Waybill == "" || strings.EqualFold(pkg.Status, "fail") {
		if len(pkg.Remarks) > 0 {
			return nil, fmt.Errorf("courier rejected shipment: %s", strings.Join(pkg.Remarks, "; "))
		}
		return nil, errNoWaybill
	}
	return &pkg, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
