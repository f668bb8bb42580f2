package repository

import (
	"context"
	"errors"
	"fmt"

	"mlmpay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrWalletSettingNotFound = errors.New("钱包配置不存在或未启用")

type WalletSettingRepository struct {
	db *gorm.DB
}

func NewWalletSettingRepository(db *gorm.DB) *WalletSettingRepository {
	return &WalletSettingRepository{db: db}
}

// Resolve slug -> 注册表条目，含物理槽位校验
// tx 非空时在调用方事务的连接上执行，事务内解析不得另取连接
func (r *WalletSettingRepository) Resolve(ctx context.Context, tx *gorm.DB, slug string) (*model.WalletSetting, error) {
	if tx == nil {
		tx = r.db
	}
	var setting model.WalletSetting
	err := tx.WithContext(ctx).
		Where("slug = ? AND admin_status = 1", slug).
		First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWalletSettingNotFound, slug)
		}
		return nil, err
	}
	if !model.IsValidWalletColumn(setting.Column) {
		return nil, fmt.Errorf("%w: slug=%s column=%s", ErrInvalidWalletColumn, slug, setting.Column)
	}
	return &setting, nil
}

// ListActiveByType 按类型列出用户可见的注册条目
func (r *WalletSettingRepository) ListActiveByType(ctx context.Context, walletType string) ([]*model.WalletSetting, error) {
	var settings []*model.WalletSetting
	err := r.db.WithContext(ctx).
		Where("type = ? AND status = 1", walletType).
		Order("id ASC").
		Find(&settings).Error
	return settings, err
}

// Seed 写入默认注册表，已存在的 slug 跳过
func (r *WalletSettingRepository) Seed(ctx context.Context) error {
	defaults := []model.WalletSetting{
		{Slug: model.SlugMainWallet, Name: "主钱包", Column: "c1", Type: model.WalletTypeWallet},
		{Slug: model.SlugFundWallet, Name: "资金钱包", Column: "c2", Type: model.WalletTypeWallet},
		{Slug: model.SlugROI, Name: "ROI收益", Column: "c3", Type: model.WalletTypeIncome, Wallet: model.SlugMainWallet},
		{Slug: model.SlugLevelROI, Name: "层级ROI收益", Column: "c4", Type: model.WalletTypeIncome, Wallet: model.SlugMainWallet},
		{Slug: model.SlugDailyLevel, Name: "每日层级收益", Column: "c5", Type: model.WalletTypeIncome, Wallet: model.SlugMainWallet},
		{Slug: model.SlugReward, Name: "职级奖励", Column: "c6", Type: model.WalletTypeIncome, Wallet: model.SlugMainWallet},
		{Slug: model.SlugGrowthBooster, Name: "成长加速奖", Column: "c7", Type: model.WalletTypeIncome, Wallet: model.SlugMainWallet},
		{Slug: model.SlugAutopool, Name: "矩阵池收益", Column: "c8", Type: model.WalletTypeIncome, Wallet: model.SlugMainWallet},
		{Slug: model.SlugWithdrawLevel, Name: "提现层级收益", Column: "c9", Type: model.WalletTypeIncome, Wallet: model.SlugMainWallet},
		{Slug: model.SlugCapping, Name: "封顶用量", Column: "c31", Type: model.WalletTypePlain},
	}

	for i := range defaults {
		defaults[i].Status = 1
		defaults[i].AdminStatus = 1
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).
		Create(&defaults).Error
}
