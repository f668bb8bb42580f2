package repository

import (
	"context"
	"errors"

	"mlmpay/internal/model"

	"gorm.io/gorm"
)

var ErrWithdrawalAccountNotFound = errors.New("提现账户不存在")

type WithdrawalAccountRepository struct {
	db *gorm.DB
}

func NewWithdrawalAccountRepository(db *gorm.DB) *WithdrawalAccountRepository {
	return &WithdrawalAccountRepository{db: db}
}

func (r *WithdrawalAccountRepository) Create(ctx context.Context, account *model.WithdrawalAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetActiveByID 查提现账户，必须属于该用户且可用
func (r *WithdrawalAccountRepository) GetActiveByID(ctx context.Context, id, uCode int64) (*model.WithdrawalAccount, error) {
	var account model.WithdrawalAccount
	err := r.db.WithContext(ctx).
		Where("id = ? AND u_code = ? AND status = 1", id, uCode).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *WithdrawalAccountRepository) ListByUCode(ctx context.Context, uCode int64) ([]*model.WithdrawalAccount, error) {
	var accounts []*model.WithdrawalAccount
	err := r.db.WithContext(ctx).
		Where("u_code = ?", uCode).
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}
