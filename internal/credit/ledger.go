// Package credit implements the prepaid credit ledger that gates paid actions.
package credit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/shipdesk/internal/apperr"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/pkg/logger"
)

var (
	ErrInsufficientCredit = apperr.New(apperr.KindInsufficientCredit, "insufficient_credit", "insufficient credit")
	ErrInvalidAmount      = apperr.Validation("invalid_amount", "amount must be positive")
	ErrInvalidFeature     = apperr.Validation("invalid_feature", "unknown feature")
)

// DebitRequest 扣减请求
type DebitRequest struct {
	TenantID       int64
	Amount         int64
	Feature        model.Feature
	Description    string
	OrderID        *int64
	OrderReference string
}

// Ledger 额度账本
type Ledger struct {
	db   *gorm.DB
	repo repository.CreditRepository
}

func NewLedger(db *gorm.DB, repo repository.CreditRepository) *Ledger {
	return &Ledger{db: db, repo: repo}
}

// Debit 在独立事务中扣减额度
func (l *Ledger) Debit(ctx context.Context, req DebitRequest) (*model.CreditTransaction, error) {
	var out *model.CreditTransaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = l.DebitTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DebitTx 在调用方事务中扣减额度。账户行加锁，余额不足时不做任何写入。
func (l *Ledger) DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (*model.CreditTransaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.Feature.Valid() {
		return nil, ErrInvalidFeature
	}

	repo := l.repo.WithTx(tx)
	acct, err := repo.LockAccount(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if acct.Balance < req.Amount {
		return nil, insufficient(acct.Balance, req.Amount)
	}
	// 条件更新兜底：不支持行锁的驱动也不会扣成负数
	ok, err := repo.TryDebit(ctx, req.TenantID, req.Amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, insufficient(acct.Balance, req.Amount)
	}

	feature := req.Feature
	entry := &model.CreditTransaction{
		TenantID:       req.TenantID,
		Type:           model.TxDeduct,
		Amount:         req.Amount,
		BalanceAfter:   acct.Balance - req.Amount,
		Description:    req.Description,
		Feature:        &feature,
		OrderID:        req.OrderID,
		OrderReference: req.OrderReference,
	}
	if err := repo.AppendTransaction(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Credit 充值
func (l *Ledger) Credit(ctx context.Context, tenantID, amount int64, description string) (*model.CreditTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var entry *model.CreditTransaction
	err := l.repo.Transaction(ctx, func(repo repository.CreditRepository) error {
		acct, err := repo.LockAccount(ctx, tenantID)
		if err != nil {
			return err
		}
		acct.Balance += amount
		acct.TotalAdded += amount
		if err := repo.SaveAccount(ctx, acct); err != nil {
			return err
		}

		feature := model.FeatureManual
		entry = &model.CreditTransaction{
			TenantID:     tenantID,
			Type:         model.TxAdd,
			Amount:       amount,
			BalanceAfter: acct.Balance,
			Description:  description,
			Feature:      &feature,
		}
		return repo.AppendTransaction(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("credit added", zap.Int64("tenant_id", tenantID), zap.Int64("amount", amount), zap.Int64("balance", entry.BalanceAfter))
	return entry, nil
}

// Reset 将余额设置为指定值。差额计入 total_added 或 total_used，保持 balance = added - used。
func (l *Ledger) Reset(ctx context.Context, tenantID, value int64, description string) (*model.CreditTransaction, error) {
	if value < 0 {
		return nil, apperr.Validation("invalid_amount", "balance must not be negative")
	}

	var entry *model.CreditTransaction
	err := l.repo.Transaction(ctx, func(repo repository.CreditRepository) error {
		acct, err := repo.LockAccount(ctx, tenantID)
		if err != nil {
			return err
		}
		delta := value - acct.Balance
		if delta >= 0 {
			acct.TotalAdded += delta
		} else {
			acct.TotalUsed -= delta
		}
		acct.Balance = value
		if err := repo.SaveAccount(ctx, acct); err != nil {
			return err
		}

		feature := model.FeatureManual
		entry = &model.CreditTransaction{
			TenantID:     tenantID,
			Type:         model.TxReset,
			Amount:       abs(delta),
			BalanceAfter: value,
			Description:  description,
			Feature:      &feature,
		}
		return repo.AppendTransaction(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Warn("credit balance reset", zap.Int64("tenant_id", tenantID), zap.Int64("balance", value))
	return entry, nil
}

// Balance 当前账户
func (l *Ledger) Balance(ctx context.Context, tenantID int64) (*model.CreditAccount, error) {
	return l.repo.GetAccount(ctx, tenantID)
}

// Group 同一订单的流水
type Group struct {
	OrderID        *int64                     `json:"order_id"`
	OrderReference string                     `json:"order_reference,omitempty"`
	Manual         bool                       `json:"manual"`
	Debited        int64                      `json:"debited"`
	LatestAt       time.Time                  `json:"latest_at"`
	Transactions   []*model.CreditTransaction `json:"transactions"`
}

// History 分页流水，按订单分组
type History struct {
	Groups   []*Group `json:"groups"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// History 先按时间倒序分页，再在页内按订单分组。无订单的流水归入同一个手工分组。
func (l *Ledger) History(ctx context.Context, tenantID int64, page, pageSize int) (*History, error) {
	txs, total, err := l.repo.ListTransactions(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, err
	}
	offset, limit := repository.Page(page, pageSize)

	h := &History{Total: total, Page: offset/limit + 1, PageSize: limit, Groups: []*Group{}}
	byOrder := make(map[int64]*Group)
	var manual *Group
	for _, t := range txs {
		var g *Group
		if t.OrderID == nil {
			if manual == nil {
				manual = &Group{Manual: true}
				h.Groups = append(h.Groups, manual)
			}
			g = manual
		} else {
			g = byOrder[*t.OrderID]
			if g == nil {
				id := *t.OrderID
				g = &Group{OrderID: &id, OrderReference: t.OrderReference}
				byOrder[id] = g
				h.Groups = append(h.Groups, g)
			}
		}
		g.Transactions = append(g.Transactions, t)
		if t.Type == model.TxDeduct {
			g.Debited += t.Amount
		}
		if t.CreatedAt.After(g.LatestAt) {
			g.LatestAt = t.CreatedAt
		}
	}
	return h, nil
}

// Verification 流水回放结果
type Verification struct {
	TenantID        int64 `json:"tenant_id"`
	Balance         int64 `json:"balance"`
	ReplayedBalance int64 `json:"replayed_balance"`
	TotalAdded      int64 `json:"total_added"`
	TotalUsed       int64 `json:"total_used"`
	Transactions    int   `json:"transactions"`
	Consistent      bool  `json:"consistent"`
}

// Verify 按写入顺序回放流水并与账户比对
func (l *Ledger) Verify(ctx context.Context, tenantID int64) (*Verification, error) {
	acct, err := l.repo.GetAccount(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	txs, err := l.repo.AllTransactions(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	replayed, snapshotsOK := Replay(txs)
	v := &Verification{
		TenantID:        tenantID,
		Balance:         acct.Balance,
		ReplayedBalance: replayed,
		TotalAdded:      acct.TotalAdded,
		TotalUsed:       acct.TotalUsed,
		Transactions:    len(txs),
	}
	v.Consistent = snapshotsOK &&
		replayed == acct.Balance &&
		acct.Balance == acct.TotalAdded-acct.TotalUsed &&
		acct.Balance >= 0
	if !v.Consistent {
		logger.Error("credit ledger mismatch",
			zap.Int64("tenant_id", tenantID),
			zap.Int64("balance", acct.Balance),
			zap.Int64("replayed", replayed))
	}
	return v, nil
}

// Replay 回放流水，返回最终余额以及每条快照是否与回放一致
func Replay(txs []*model.CreditTransaction) (int64, bool) {
	var balance int64
	ok := true
	for _, t := range txs {
		switch t.Type {
		case model.TxAdd:
			balance += t.Amount
		case model.TxDeduct:
			balance -= t.Amount
		case model.TxReset:
			balance = t.BalanceAfter
		}
		if balance != t.BalanceAfter {
			ok = false
		}
	}
	return balance, ok
}

func insufficient(balance, required int64) error {
	return ErrInsufficientCredit.WithMessage("insufficient credit: balance %d, required %d", balance, required)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
