package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/d60-Lab/shipdesk/internal/apperr"
	"github.com/d60-Lab/shipdesk/internal/audit"
	"github.com/d60-Lab/shipdesk/internal/metrics"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/internal/shopify"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

// Webhook outcomes
const (
	ResultProcessed    = "processed"
	ResultDuplicate    = "duplicate"
	ResultPartialMatch = "partial_match"
)

var (
	ErrMissingHeaders   = apperr.Validation("missing_headers", "missing shop domain, topic or signature header")
	ErrShopInactive     = apperr.Authorization("shop_inactive", "shop integration is not active")
	ErrInvalidSignature = apperr.Authorization("invalid_signature", "webhook signature mismatch")
	ErrUnsupportedTopic = apperr.Validation("unsupported_topic", "unsupported webhook topic")
	ErrMalformedPayload = apperr.Validation("malformed_payload", "malformed webhook payload")
)

// Delivery 一次 webhook 投递（原始 body 与签名头）
type Delivery struct {
	Shop      string
	Topic     string
	Signature string
	WebhookID string
	Body      []byte
}

// Outcome 处理结果
type Outcome struct {
	Topic         string `json:"topic"`
	Shop          string `json:"shop"`
	Result        string `json:"result"`
	Message       string `json:"message"`
	ShadowOrderID int64  `json:"shadow_order_id,omitempty"`
	OrderID       *int64 `json:"order_id,omitempty"`
	Confirmed     bool   `json:"fulfillment_confirmed,omitempty"`
}

// WebhookService Shopify webhook 校验与对账
type WebhookService interface {
	Handle(ctx context.Context, d Delivery) (*Outcome, error)
}

// WebhookDeps 依赖
type WebhookDeps struct {
	DB           *gorm.DB
	Integrations repository.TenantRepository
	Shadows      repository.ShadowOrderRepository
	Orders       repository.OrderRepository
	Confirmer    shopify.Confirmer
	Audit        Auditor
}

type webhookService struct {
	WebhookDeps
}

func NewWebhookService(d WebhookDeps) WebhookService {
	if d.Audit == nil {
		d.Audit = nopAuditor{}
	}
	return &webhookService{WebhookDeps: d}
}

func (s *webhookService) Handle(ctx context.Context, d Delivery) (*Outcome, error) {
	ctx, span := otel.Tracer("shipdesk/service").Start(ctx, "webhook.handle")
	defer span.End()

	d.Shop = model.NormalizeShopDomain(d.Shop)
	d.Topic = strings.TrimSpace(d.Topic)
	span.SetAttributes(attribute.String("shop", d.Shop), attribute.String("topic", d.Topic))

	out, tenantID, err := s.handle(ctx, d)
	s.record(ctx, d, tenantID, out, err)
	return out, err
}

func (s *webhookService) handle(ctx context.Context, d Delivery) (*Outcome, *int64, error) {
	if d.Shop == "" || d.Topic == "" || strings.TrimSpace(d.Signature) == "" {
		return nil, nil, ErrMissingHeaders
	}

	integration, err := s.Integrations.GetIntegrationByShop(ctx, d.Shop)
	if err != nil {
		return nil, nil, err
	}
	tenantID := audit.TenantID(integration.TenantID)
	if !integration.Active {
		return nil, tenantID, ErrShopInactive
	}

	// 签名通过前不解析 body
	if !shopify.Verify(d.Body, integration.WebhookSecret, d.Signature) {
		return nil, tenantID, ErrInvalidSignature
	}

	topic := shopify.Topic(d.Topic)
	if !topic.Supported() {
		return nil, tenantID, ErrUnsupportedTopic.WithMessage("unsupported webhook topic %q", d.Topic)
	}
	ev, err := shopify.Decode(topic, d.Body)
	if err != nil {
		return nil, tenantID, ErrMalformedPayload.Wrap(err)
	}

	out := &Outcome{Topic: d.Topic, Shop: d.Shop}
	switch p := ev.(type) {
	case *shopify.OrderPayload:
		if topic == shopify.TopicOrderCreate {
			err = s.orderCreated(ctx, integration, p, d.Body, out)
		} else {
			err = s.orderUpdated(ctx, integration, p, d.Body, out)
		}
	case *shopify.FulfillmentPayload:
		err = s.fulfillmentCreated(ctx, integration, p, out)
	}
	if err != nil {
		return nil, tenantID, err
	}
	return out, tenantID, nil
}

// orderCreated 以 (shop, upstream id) 幂等插入；重复投递直接跳过
func (s *webhookService) orderCreated(ctx context.Context, in *model.WebhookIntegration, p *shopify.OrderPayload, body []byte, out *Outcome) error {
	shadow := &model.ShadowOrder{
		IntegrationID:   in.ID,
		ShopDomain:      in.ShopDomain,
		UpstreamOrderID: p.UpstreamOrderID(),
		OrderName:       p.Name,
		Status:          p.Status(),
		Payload:         datatypes.JSON(body),
	}
	created, err := s.Shadows.InsertIfAbsent(ctx, shadow)
	if err != nil {
		return err
	}
	if !created {
		out.Result = ResultDuplicate
		out.Message = "duplicate, skipped"
		return nil
	}
	out.Result = ResultProcessed
	out.Message = "shadow order created"
	out.ShadowOrderID = shadow.ID
	return nil
}

func (s *webhookService) orderUpdated(ctx context.Context, in *model.WebhookIntegration, p *shopify.OrderPayload, body []byte, out *Outcome) error {
	shadow, err := s.Shadows.Get(ctx, in.ShopDomain, p.UpstreamOrderID())
	if err != nil {
		return err
	}
	shadow.Status = p.Status()
	shadow.Payload = datatypes.JSON(body)
	if p.Name != "" {
		shadow.OrderName = p.Name
	}
	if err := s.Shadows.Update(ctx, shadow); err != nil {
		return err
	}
	out.Result = ResultProcessed
	out.Message = "shadow order updated"
	out.ShadowOrderID = shadow.ID
	out.OrderID = shadow.OrderID
	return nil
}

// fulfillmentCreated 更新镜像；有关联的内部订单时同步运单与状态，按配置回写上游
func (s *webhookService) fulfillmentCreated(ctx context.Context, in *model.WebhookIntegration, p *shopify.FulfillmentPayload, out *Outcome) error {
	var order *model.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shadows := s.Shadows.WithTx(tx)
		shadow, err := shadows.Get(ctx, in.ShopDomain, p.UpstreamOrderID())
		if err != nil {
			return err
		}
		shadow.Status = model.ShadowStatusFulfilled
		if err := shadows.Update(ctx, shadow); err != nil {
			return err
		}
		out.ShadowOrderID = shadow.ID

		if shadow.OrderID == nil {
			return nil
		}
		orders := s.Orders.WithTx(tx)
		o, err := orders.Get(ctx, in.TenantID, *shadow.OrderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		status := p.Status
		if status == "" {
			status = "fulfilled"
		}
		tracking := p.Tracking()
		if tracking == "" {
			tracking = o.UpstreamTrackingID
		}
		if err := orders.ApplyFulfillment(ctx, in.TenantID, o.ID, tracking, status); err != nil {
			return err
		}
		o.UpstreamTrackingID, o.FulfillmentStatus = tracking, status
		order = o
		return nil
	})
	if err != nil {
		return err
	}

	if order == nil {
		out.Result = ResultPartialMatch
		out.Message = "no linked internal order, shadow order updated only"
		logger.Info("fulfillment without internal order",
			zap.String("shop", in.ShopDomain),
			zap.String("upstream_order_id", p.UpstreamOrderID()))
		return nil
	}

	id := order.ID
	out.Result = ResultProcessed
	out.Message = "order fulfillment updated"
	out.OrderID = &id

	if in.ConfirmFulfillment && order.Waybill != "" && s.Confirmer != nil {
		err := s.Confirmer.ConfirmFulfillment(context.WithoutCancel(ctx), in.ShopDomain, in.AccessToken, p.ID.String(), order.Waybill)
		if err != nil {
			logger.Warn("fulfillment confirmation failed",
				zap.String("shop", in.ShopDomain),
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		} else {
			out.Confirmed = true
		}
	}
	return nil
}

func (s *webhookService) record(ctx context.Context, d Delivery, tenantID *int64, out *Outcome, err error) {
	topic := d.Topic
	if !shopify.Topic(topic).Supported() {
		topic = "other"
	}
	details := map[string]any{
		"topic":      d.Topic,
		"webhook_id": d.WebhookID,
		"body_bytes": len(d.Body),
	}

	entry := audit.Entry{TenantID: tenantID, Actor: "shopify", Subject: d.Shop}
	switch {
	case err == nil:
		entry.Event = audit.EventWebhookReceived
		entry.Outcome = out.Result
		details["message"] = out.Message
		if out.OrderID != nil {
			details["order_id"] = *out.OrderID
			if d.Topic == string(shopify.TopicFulfillmentCreate) {
				entry.Event = audit.EventFulfillmentApplied
			}
		}
	case errors.Is(err, ErrInvalidSignature):
		entry.Event = audit.EventWebhookSignature
		entry.Severity = model.SeveritySecurity
		entry.Outcome = apperr.CodeOf(err)
	default:
		entry.Event = audit.EventWebhookRejected
		entry.Severity = model.SeverityWarning
		if apperr.KindOf(err) == apperr.KindAuthorization {
			entry.Severity = model.SeveritySecurity
		}
		entry.Outcome = apperr.CodeOf(err)
		details["error"] = err.Error()
	}
	entry.Details = details
	s.Audit.Record(ctx, entry)

	metrics.WebhookEventsTotal.WithLabelValues(topic, entry.Outcome).Inc()
	logger.Info("webhook handled",
		zap.String("shop", d.Shop),
		zap.String("topic", d.Topic),
		zap.String("outcome", entry.Outcome))
}
