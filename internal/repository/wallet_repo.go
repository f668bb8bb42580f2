package repository

import (
	"context"
	"errors"
	"fmt"

	"mlmpay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound      = errors.New("钱包不存在")
	ErrInsufficientBalance = errors.New("钱包余额不足")
	ErrInvalidWalletColumn = errors.New("非法的钱包槽位")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUCode(ctx context.Context, tx *gorm.DB, uCode int64) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.Wallet
	err := tx.WithContext(ctx).Where("u_code = ?", uCode).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate 惰性建钱包：首次入账/扣减时创建全零行
// username 为空时从用户表补齐。tx 非空时全程走调用方事务的连接
func (r *WalletRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, uCode int64, username string) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}

	wallet, err := r.GetByUCode(ctx, tx, uCode)
	if err == nil {
		return wallet, nil
	}

	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	if username == "" {
		tx.WithContext(ctx).
			Model(&model.User{}).
			Select("username").
			Where("u_code = ?", uCode).
			Scan(&username)
	}

	newWallet := &model.Wallet{
		UCode:    uCode,
		Username: username,
	}

	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "u_code"}},
			DoNothing: true,
		}).
		Create(newWallet).Error

	if err != nil {
		return nil, err
	}

	return r.GetByUCode(ctx, tx, uCode)
}

// AdjustColumn 单槽位原子增减
//
// 【关键点】用条件 UPDATE 把"读余额-判负-写回"压成一条语句：
//
//	UPDATE wallet SET cN = cN + ? WHERE u_code = ? AND cN + ? >= 0
//
// RowsAffected = 0 即余额不足（或钱包不存在），不会出现并发超扣
func (r *WalletRepository) AdjustColumn(ctx context.Context, tx *gorm.DB, uCode int64, column string, delta float64) error {
	if !model.IsValidWalletColumn(column) {
		return fmt.Errorf("%w: %s", ErrInvalidWalletColumn, column)
	}
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("u_code = ? AND "+column+" + ? >= 0", uCode, delta).
		Update(column, gorm.Expr(column+" + ?", delta))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByUCode(ctx, tx, uCode); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}

	return nil
}

// GetColumn 读单槽位余额，钱包不存在按 0 处理
func (r *WalletRepository) GetColumn(ctx context.Context, tx *gorm.DB, uCode int64, column string) (float64, error) {
	if !model.IsValidWalletColumn(column) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidWalletColumn, column)
	}
	if tx == nil {
		tx = r.db
	}

	var value float64
	err := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Select(column).
		Where("u_code = ?", uCode).
		Scan(&value).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return value, nil
}

// SumColumns 多槽位余额求和（按类型汇总查询用）
func (r *WalletRepository) SumColumns(ctx context.Context, uCode int64, columns []string) (float64, error) {
	if len(columns) == 0 {
		return 0, nil
	}
	expr := ""
	for i, col := range columns {
		if !model.IsValidWalletColumn(col) {
			return 0, fmt.Errorf("%w: %s", ErrInvalidWalletColumn, col)
		}
		if i > 0 {
			expr += " + "
		}
		expr += col
	}

	var total float64
	err := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Select(expr).
		Where("u_code = ?", uCode).
		Scan(&total).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return total, nil
}
