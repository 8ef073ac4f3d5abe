// Package audit writes the append-only audit trail.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

// Events
const (
	EventOrderCreated       = "order.created"
	EventOrderRejected      = "order.rejected"
	EventOrderDispatched    = "order.dispatched"
	EventOrdersDeleted      = "orders.deleted"
	EventCreditAdjusted     = "credit.adjusted"
	EventWebhookReceived    = "webhook.received"
	EventWebhookRejected    = "webhook.rejected"
	EventWebhookSignature   = "webhook.signature_invalid"
	EventFulfillmentApplied = "fulfillment.applied"
	EventAuthFailed         = "auth.failed"
)

var sensitiveKeys = []string{"secret", "token", "password", "hmac", "signature", "authorization", "api_key"}

// Entry 审计记录
type Entry struct {
	TenantID *int64
	Event    string
	Severity model.AuditSeverity
	Actor    string
	Subject  string
	Outcome  string
	Details  map[string]any
}

// Recorder 写审计日志。写入失败只记录日志，不影响业务流程。
type Recorder struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewRecorder(repo repository.AuditRepository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.Severity == "" {
		e.Severity = model.SeverityInfo
	}
	details := Redact(e.Details)

	row := &model.AuditLog{
		ID:        uuid.NewString(),
		TenantID:  e.TenantID,
		Event:     e.Event,
		Severity:  e.Severity,
		Actor:     e.Actor,
		Subject:   e.Subject,
		Outcome:   e.Outcome,
		Details:   datatypes.JSON("{}"),
		CreatedAt: r.now().UTC(),
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			row.Details = datatypes.JSON(raw)
		}
	}

	fields := []zap.Field{
		zap.String("event", e.Event),
		zap.String("severity", string(e.Severity)),
		zap.String("outcome", e.Outcome),
		zap.String("subject", e.Subject),
	}
	if e.TenantID != nil {
		fields = append(fields, zap.Int64("tenant_id", *e.TenantID))
	}
	if e.Severity == model.SeveritySecurity {
		logger.Warn("audit", fields...)
	} else {
		logger.Debug("audit", fields...)
	}

	// 请求取消后仍需落库
	if err := r.repo.Create(context.WithoutCancel(ctx), row); err != nil {
		logger.Error("failed to write audit log", append(fields, zap.Error(err))...)
	}
}

// List 租户审计日志
func (r *Recorder) List(ctx context.Context, tenantID int64, event string, page, pageSize int) ([]*model.AuditLog, int64, error) {
	return r.repo.List(ctx, tenantID, event, page, pageSize)
}

// Redact 去掉敏感字段
func Redact(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if isSensitive(k) {
			out[k] = "[redacted]"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// TenantID 便捷取址
func TenantID(id int64) *int64 { return &id }
