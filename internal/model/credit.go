package model

import "time"

// TransactionType 额度流水类型
type TransactionType string

const (
	TxAdd    TransactionType = "ADD"
	TxDeduct TransactionType = "DEDUCT"
	TxReset  TransactionType = "RESET"
)

// Feature 计费功能标签
type Feature string

const (
	FeatureOrder           Feature = "ORDER"
	FeatureWhatsApp        Feature = "WHATSAPP"
	FeatureImageProcessing Feature = "IMAGE_PROCESSING"
	FeatureTextProcessing  Feature = "TEXT_PROCESSING"
	FeatureManual          Feature = "MANUAL"
)

// Valid reports whether f is a known feature tag.
func (f Feature) Valid() bool {
	switch f {
	case FeatureOrder, FeatureWhatsApp, FeatureImageProcessing, FeatureTextProcessing, FeatureManual:
		return true
	}
	return false
}

// CreditAccount 租户额度账户，balance = total_added - total_used
type CreditAccount struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID   int64     `json:"tenant_id" gorm:"not null;uniqueIndex"`
	Balance    int64     `json:"balance" gorm:"not null;default:0"`
	TotalAdded int64     `json:"total_added" gorm:"not null;default:0"`
	TotalUsed  int64     `json:"total_used" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// CreditTransaction 额度流水（只追加）
type CreditTransaction struct {
	ID             int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID       int64           `json:"tenant_id" gorm:"not null;index:idx_credit_tx_tenant"`
	Type           TransactionType `json:"type" gorm:"type:varchar(8);not null"`
	Amount         int64           `json:"amount" gorm:"not null"`
	BalanceAfter   int64           `json:"balance_after" gorm:"not null"`
	Description    string          `json:"description" gorm:"type:varchar(255)"`
	Feature        *Feature        `json:"feature,omitempty" gorm:"type:varchar(32)"`
	OrderID        *int64          `json:"order_id,omitempty" gorm:"index"`
	OrderReference string          `json:"order_reference,omitempty" gorm:"type:varchar(96)"`
	CreatedAt      time.Time       `json:"created_at" gorm:"index:idx_credit_tx_tenant"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }
