package service

import (
	"context"
	"errors"
	"fmt"

	"mlmpay/internal/model"
	"mlmpay/internal/repository"

	"gorm.io/gorm"
)

// AdjustResult 单槽位增减的结构化结果
// 预期内的业务失败（余额不足）走 Applied=false + Reason，不走 error
type AdjustResult struct {
	Applied    bool    `json:"applied"`
	NewBalance float64 `json:"new_balance"`
	Reason     string  `json:"reason,omitempty"`
}

// LedgerService 钱包账本
// slug 一律经注册表解析到物理槽位，任何调用方都不允许直接指定槽位
type LedgerService struct {
	db          *gorm.DB
	walletRepo  *repository.WalletRepository
	settingRepo *repository.WalletSettingRepository
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{
		db:          db,
		walletRepo:  repository.NewWalletRepository(db),
		settingRepo: repository.NewWalletSettingRepository(db),
	}
}

// AdjustBalance 按 slug 增减余额
//
// tx 非空时全程走调用方事务的连接，不允许事务内再向连接池要
// 连接。未知 slug 是配置错误，返回 error；余额不足是预期业务
// 结果，返回 Applied=false，槽位保持原值不变
func (s *LedgerService) AdjustBalance(ctx context.Context, tx *gorm.DB, uCode int64, slug string, amount float64) (*AdjustResult, error) {
	setting, err := s.settingRepo.Resolve(ctx, tx, slug)
	if err != nil {
		return nil, err
	}

	// 惰性建钱包；新建的全零钱包扣负数自然会被余额检查挡住
	if _, err := s.walletRepo.GetOrCreate(ctx, tx, uCode, ""); err != nil {
		return nil, fmt.Errorf("创建钱包失败: %w", err)
	}

	err = s.walletRepo.AdjustColumn(ctx, tx, uCode, setting.Column, amount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			balance, _ := s.walletRepo.GetColumn(ctx, tx, uCode, setting.Column)
			return &AdjustResult{Applied: false, NewBalance: balance, Reason: "钱包余额不足"}, nil
		}
		return nil, err
	}

	newBalance, err := s.walletRepo.GetColumn(ctx, tx, uCode, setting.Column)
	if err != nil {
		return nil, err
	}
	return &AdjustResult{Applied: true, NewBalance: newBalance}, nil
}

// CreditWithFanOut 按 slug 入账并执行注册表联动：
// 条目配置了联动钱包时，同一金额同时入账到联动 slug。
// 联动是注册表数据的属性，分发器不感知具体是哪两个槽位
func (s *LedgerService) CreditWithFanOut(ctx context.Context, tx *gorm.DB, uCode int64, slug string, amount float64) error {
	setting, err := s.settingRepo.Resolve(ctx, tx, slug)
	if err != nil {
		return err
	}

	result, err := s.AdjustBalance(ctx, tx, uCode, slug, amount)
	if err != nil {
		return err
	}
	if !result.Applied {
		return fmt.Errorf("入账失败: %s", result.Reason)
	}

	if setting.Wallet != "" {
		linked, err := s.settingRepo.Resolve(ctx, tx, setting.Wallet)
		if err != nil {
			// 联动 slug 未注册时只记原始入账，与注册表缺省行为一致
			return nil
		}
		linkedResult, err := s.AdjustBalance(ctx, tx, uCode, linked.Slug, amount)
		if err != nil {
			return err
		}
		if !linkedResult.Applied {
			return fmt.Errorf("联动入账失败: %s", linkedResult.Reason)
		}
	}
	return nil
}

// GetBalance 按 slug 读余额
// 宽松读语义：未知 slug、无钱包一律按 0 返回，不报错
func (s *LedgerService) GetBalance(ctx context.Context, uCode int64, slug string) float64 {
	setting, err := s.settingRepo.Resolve(ctx, nil, slug)
	if err != nil {
		return 0
	}
	balance, err := s.walletRepo.GetColumn(ctx, nil, uCode, setting.Column)
	if err != nil {
		return 0
	}
	return balance
}

// GetBalancesByType 按类型汇总余额（income 类合计、wallet 类合计）
func (s *LedgerService) GetBalancesByType(ctx context.Context, uCode int64, walletType string) (float64, error) {
	settings, err := s.settingRepo.ListActiveByType(ctx, walletType)
	if err != nil {
		return 0, err
	}
	if len(settings) == 0 {
		return 0, nil
	}

	columns := make([]string, 0, len(settings))
	for _, setting := range settings {
		if model.IsValidWalletColumn(setting.Column) {
			columns = append(columns, setting.Column)
		}
	}
	return s.walletRepo.SumColumns(ctx, uCode, columns)
}
