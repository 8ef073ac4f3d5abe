// Package notify sends best-effort WhatsApp shipment notifications.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/d60-Lab/shipdesk/config"
	"github.com/d60-Lab/shipdesk/internal/credit"
	"github.com/d60-Lab/shipdesk/internal/metrics"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

const (
	RecipientCustomer = "customer"
	RecipientReseller = "reseller"
)

var errNoMobile = errors.New("recipient has no mobile number")

// Meter 按条计费；返回 error 时跳过该条消息
type Meter interface {
	Charge(ctx context.Context, order *model.Order, recipient string) error
}

// Outcome 单个收件人的发送结果
type Outcome struct {
	Attempted bool   `json:"attempted"`
	Sent      bool   `json:"sent"`
	Skipped   string `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report 一次通知的结果
type Report struct {
	Customer Outcome `json:"customer"`
	Reseller Outcome `json:"reseller"`
}

// Dispatcher 客户与经销商通知，两条消息互不影响
type Dispatcher struct {
	sender           Sender
	meter            Meter
	customerTemplate string
	resellerTemplate string
	enabled          bool
}

func NewDispatcher(sender Sender, meter Meter, cfg config.WhatsAppConfig) *Dispatcher {
	return &Dispatcher{
		sender:           sender,
		meter:            meter,
		customerTemplate: cfg.CustomerTemplate,
		resellerTemplate: cfg.ResellerTemplate,
		enabled:          cfg.Enabled && sender != nil,
	}
}

// Notify 从不返回 error，结果只记录日志
func (d *Dispatcher) Notify(ctx context.Context, order *model.Order, branding model.Branding) Report {
	var r Report
	if !d.enabled {
		r.Customer.Skipped = "disabled"
		r.Reseller.Skipped = "disabled"
		return r
	}

	r.Customer = d.send(ctx, order, RecipientCustomer, order.Mobile, d.customerTemplate, customerParams(order, branding))

	if order.HasReseller() {
		r.Reseller = d.send(ctx, order, RecipientReseller, order.ResellerMobile, d.resellerTemplate, resellerParams(order, branding))
	} else {
		r.Reseller.Skipped = "no reseller"
	}
	return r
}

func (d *Dispatcher) send(ctx context.Context, order *model.Order, recipient, to, template string, params []string) (out Outcome) {
	fields := []zap.Field{
		zap.Int64("tenant_id", order.TenantID),
		zap.Int64("order_id", order.ID),
		zap.String("recipient", recipient),
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = Outcome{Attempted: true, Error: "panic during send"}
			logger.Error("notification panicked", append(fields, zap.Any("panic", rec))...)
		}
		metrics.NotificationsTotal.WithLabelValues(recipient, resultLabel(out)).Inc()
	}()

	if to == "" {
		logger.Warn("notification skipped", append(fields, zap.Error(errNoMobile))...)
		return Outcome{Skipped: errNoMobile.Error()}
	}
	if d.meter != nil {
		if err := d.meter.Charge(ctx, order, recipient); err != nil {
			logger.Warn("notification not charged, skipping", append(fields, zap.Error(err))...)
			return Outcome{Skipped: "credit: " + err.Error()}
		}
	}

	out.Attempted = true
	if err := d.sender.SendTemplate(ctx, to, template, params); err != nil {
		out.Error = err.Error()
		logger.Warn("notification failed", append(fields, zap.Error(err))...)
		return out
	}
	out.Sent = true
	logger.Info("notification sent", fields...)
	return out
}

func resultLabel(o Outcome) string {
	switch {
	case o.Sent:
		return "sent"
	case o.Attempted:
		return "failed"
	default:
		return "skipped"
	}
}

// customerParams: name, tracking number, courier, address, city, pincode, brand, support phone
func customerParams(o *model.Order, b model.Branding) []string {
	return []string{
		o.Name,
		trackingNumber(o),
		o.CourierService,
		o.Address,
		o.City,
		o.Pincode,
		b.Name,
		b.SupportPhone,
	}
}

func resellerParams(o *model.Order, b model.Branding) []string {
	return []string{
		o.ResellerName,
		o.Name,
		trackingNumber(o),
		o.CourierService,
		o.City,
		b.Name,
	}
}

func trackingNumber(o *model.Order) string {
	if o.Waybill != "" {
		return o.Waybill
	}
	return o.ReferenceNumber
}

// LedgerMeter 每条消息扣减 WHATSAPP 额度
type LedgerMeter struct {
	ledger *credit.Ledger
	cost   int64
}

// NewLedgerMeter cost 为 0 时返回 nil（不计费）
func NewLedgerMeter(ledger *credit.Ledger, cost int64) Meter {
	if ledger == nil || cost <= 0 {
		return nil
	}
	return &LedgerMeter{ledger: ledger, cost: cost}
}

func (m *LedgerMeter) Charge(ctx context.Context, order *model.Order, recipient string) error {
	id := order.ID
	_, err := m.ledger.Debit(ctx, credit.DebitRequest{
		TenantID:       order.TenantID,
		Amount:         m.cost,
		Feature:        model.FeatureWhatsApp,
		Description:    "whatsapp " + recipient + " notification",
		OrderID:        &id,
		OrderReference: order.ReferenceNumber,
	})
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	metrics.CreditDebitsTotal.WithLabelValues(string(model.FeatureWhatsApp), result).Inc()
	return err
}
