package repository

import (
	"context"
	"errors"
	"time"

	"mlmpay/internal/model"

	"gorm.io/gorm"
)

var ErrTxStatusInvalid = errors.New("流水状态不允许该变更")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) CreateIncome(ctx context.Context, tx *gorm.DB, trans *model.IncomeTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) CreateFund(ctx context.Context, tx *gorm.DB, trans *model.FundTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// ExistsIncome 永久幂等判据：(受益人, 来源, 来源实体) 是否已发放过
func (r *TransactionRepository) ExistsIncome(ctx context.Context, tx *gorm.DB, uCode int64, source, reference string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.IncomeTransaction{}).
		Where("u_code = ? AND source = ? AND reference = ?", uCode, source, reference).
		Count(&count).Error
	return count > 0, err
}

// ExistsIncomeForDay 按自然日的幂等判据，周期性收益（ROI、每日层级）重跑防重用
func (r *TransactionRepository) ExistsIncomeForDay(ctx context.Context, tx *gorm.DB, uCode int64, source, reference string, day time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int64
	err := tx.WithContext(ctx).
		Model(&model.IncomeTransaction{}).
		Where("u_code = ? AND source = ? AND reference = ? AND created_at >= ? AND created_at < ?",
			uCode, source, reference, dayStart, dayEnd).
		Count(&count).Error
	return count > 0, err
}

func (r *TransactionRepository) GetFundByTxNo(ctx context.Context, txNo string) (*model.FundTransaction, error) {
	var trans model.FundTransaction
	err := r.db.WithContext(ctx).Where("tx_no = ?", txNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// ListPendingWithdrawals 待审提现
func (r *TransactionRepository) ListPendingWithdrawals(ctx context.Context, limit int) ([]*model.FundTransaction, error) {
	var trans []*model.FundTransaction
	err := r.db.WithContext(ctx).
		Where("tx_type = ? AND status = ?", model.FundTxTypeWithdrawal, model.WithdrawalStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&trans).Error
	return trans, err
}

// TransitionWithdrawalStatus 提现状态迁移
//
// 条件 UPDATE 带上旧状态，RowsAffected = 0 说明已被并发处理过，
// 审批/驳回不会重复生效
func (r *TransactionRepository) TransitionWithdrawalStatus(ctx context.Context, tx *gorm.DB, txNo string, from, to int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.FundTransaction{}).
		Where("tx_no = ? AND tx_type = ? AND status = ?", txNo, model.FundTxTypeWithdrawal, from).
		Update("status", to)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTxStatusInvalid
	}
	return nil
}

// SumIncomeByUCode 用户某来源的累计发放额（对账用）
func (r *TransactionRepository) SumIncomeByUCode(ctx context.Context, uCode int64, source string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&model.IncomeTransaction{}).
		Where("u_code = ? AND source = ? AND status = 1", uCode, source).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// ListIncomeByUCode 用户收益流水分页
func (r *TransactionRepository) ListIncomeByUCode(ctx context.Context, uCode int64, page, pageSize int) ([]*model.IncomeTransaction, int64, error) {
	var transactions []*model.IncomeTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.IncomeTransaction{}).Where("u_code = ?", uCode)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
