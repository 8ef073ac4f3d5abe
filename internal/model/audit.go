package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditSeverity 审计级别
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeveritySecurity AuditSeverity = "security"
)

// AuditLog 审计日志（只追加）
type AuditLog struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID  *int64         `json:"tenant_id,omitempty" gorm:"index:idx_audit_tenant_created"`
	Event     string         `json:"event" gorm:"type:varchar(64);not null;index"`
	Severity  AuditSeverity  `json:"severity" gorm:"type:varchar(16);not null"`
	Actor     string         `json:"actor" gorm:"type:varchar(128)"`
	Subject   string         `json:"subject" gorm:"type:varchar(255)"`
	Outcome   string         `json:"outcome" gorm:"type:varchar(64);not null"`
	Details   datatypes.JSON `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_audit_tenant_created"`
}

func (AuditLog) TableName() string { return "audit_logs" }
