package model

import (
	"time"
)

const (
	WalletTypeIncome = "income" // 收益类，入账记 IncomeTransaction
	WalletTypeWallet = "wallet" // 资金类，入账记 FundTransaction
	WalletTypePlain  = "plain"  // 纯计数槽位（如 capping 用量），不记流水
)

// 常用 slug，注册表种子数据使用
const (
	SlugMainWallet    = "main_wallet"
	SlugFundWallet    = "fund_wallet"
	SlugROI           = "roi"
	SlugLevelROI      = "level_roi"
	SlugDailyLevel    = "daily_level"
	SlugReward        = "reward"
	SlugGrowthBooster = "growth_booster"
	SlugAutopool      = "autopool"
	SlugWithdrawLevel = "withdraw_level"
	SlugCapping       = "capping"
)

// WalletSetting 钱包注册表
// slug -> 物理槽位（column）的映射，外加联动钱包：
// 给 slug 入账时若 Wallet 字段非空，同一金额要同时入账到联动 slug
// （例如 roi 收益同时进 main_wallet）。联动是注册表的属性，不在分发器里硬编码
type WalletSetting struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	Name        string    `gorm:"type:varchar(128);not null" json:"name"`
	Column      string    `gorm:"type:varchar(8);not null" json:"column"` // c1..c29, c31..c40
	Type        string    `gorm:"type:varchar(16);not null" json:"type"`
	Wallet      string    `gorm:"type:varchar(64)" json:"wallet"`         // 联动 slug，可空
	Status      int       `gorm:"not null;default:1" json:"status"`       // 用户可见
	AdminStatus int       `gorm:"not null;default:1" json:"admin_status"` // 允许入账
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WalletSetting) TableName() string {
	return "wallet_setting"
}
