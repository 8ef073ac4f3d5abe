package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/shipdesk/internal/model"
)

// CreditRepository 额度账户与流水
type CreditRepository interface {
	WithTx(tx *gorm.DB) CreditRepository
	// Transaction 在同一事务中执行 fn
	Transaction(ctx context.Context, fn func(repo CreditRepository) error) error

	// LockAccount 获取（必要时创建）账户并加行锁
	LockAccount(ctx context.Context, tenantID int64) (*model.CreditAccount, error)
	GetAccount(ctx context.Context, tenantID int64) (*model.CreditAccount, error)
	// TryDebit 条件扣减：仅当 balance >= amount 时成功
	TryDebit(ctx context.Context, tenantID, amount int64) (bool, error)
	SaveAccount(ctx context.Context, acct *model.CreditAccount) error

	AppendTransaction(ctx context.Context, t *model.CreditTransaction) error
	ListTransactions(ctx context.Context, tenantID int64, page, pageSize int) ([]*model.CreditTransaction, int64, error)
	// AllTransactions 按写入顺序返回全部流水，用于对账
	AllTransactions(ctx context.Context, tenantID int64) ([]*model.CreditTransaction, error)
}

type GormCreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) CreditRepository {
	return &GormCreditRepository{db: db}
}

func (r *GormCreditRepository) WithTx(tx *gorm.DB) CreditRepository {
	return &GormCreditRepository{db: tx}
}

func (r *GormCreditRepository) Transaction(ctx context.Context, fn func(repo CreditRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func (r *GormCreditRepository) LockAccount(ctx context.Context, tenantID int64) (*model.CreditAccount, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoNothing: true,
	}).Create(&model.CreditAccount{TenantID: tenantID}).Error; err != nil {
		return nil, err
	}

	var acct model.CreditAccount
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ?", tenantID).
		First(&acct).Error
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetAccount 账户不存在时返回零余额账户（不落库）
func (r *GormCreditRepository) GetAccount(ctx context.Context, tenantID int64) (*model.CreditAccount, error) {
	var acct model.CreditAccount
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.CreditAccount{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *GormCreditRepository) TryDebit(ctx context.Context, tenantID, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.CreditAccount{}).
		Where("tenant_id = ? AND balance >= ?", tenantID, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"total_used": gorm.Expr("total_used + ?", amount),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormCreditRepository) SaveAccount(ctx context.Context, acct *model.CreditAccount) error {
	return r.db.WithContext(ctx).Model(acct).
		Select("balance", "total_added", "total_used", "updated_at").
		Updates(acct).Error
}

func (r *GormCreditRepository) AppendTransaction(ctx context.Context, t *model.CreditTransaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *GormCreditRepository) ListTransactions(ctx context.Context, tenantID int64, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.CreditTransaction{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := Page(page, pageSize)
	var txs []*model.CreditTransaction
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&txs).Error
	return txs, total, err
}

func (r *GormCreditRepository) AllTransactions(ctx context.Context, tenantID int64) ([]*model.CreditTransaction, error) {
	var txs []*model.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Find(&txs).Error
	return txs, err
}
