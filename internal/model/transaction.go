package model

import (
	"time"
)

// ============================================================================
// 流水实体
// ============================================================================

// 收益来源标签
const (
	SourceROI           = "roi"
	SourceLevelROI      = "level_roi"
	SourceDailyLevel    = "daily_level"
	SourceReward        = "reward"
	SourceGrowthBooster = "growth_booster"
	SourceAutopool      = "autopool"
	SourceWithdrawLevel = "withdraw_level"
)

// 资金流水类型
const (
	FundTxTypeTransfer   = "fund_transfer"
	FundTxTypeConvert    = "fund_convert"
	FundTxTypeWithdrawal = "fund_withdrawal"
	FundTxTypeTopup      = "fund_topup"
)

const (
	DebitCreditDebit  = "DEBIT"
	DebitCreditCredit = "CREDIT"
)

// 提现流水状态
const (
	WithdrawalStatusPending  = 0
	WithdrawalStatusApproved = 1
	WithdrawalStatusRejected = 2
)

// IncomeTransaction 收益流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 记录入账前后余额 —— 便于校验余额一致性
// 3. (uCode, source, reference) 组合是分发任务重跑时的幂等判据
type IncomeTransaction struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TxNo                 string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"tx_no"`
	UCode                int64     `gorm:"index;not null" json:"u_code"` // 受益人
	TxUCode              int64     `gorm:"index" json:"tx_u_code"`       // 触发来源用户（如下级）
	PinID                int64     `json:"pin_id"`
	Source               string    `gorm:"type:varchar(32);index;not null" json:"source"` // 收益类型 slug
	Reference            string    `gorm:"type:varchar(64);index" json:"reference"`       // 来源实体标识（订单/层级等）
	WalletType           string    `gorm:"type:varchar(64);not null" json:"wallet_type"`  // 入账钱包 slug
	Amount               float64   `gorm:"type:decimal(20,8);not null" json:"amount"`
	CurrentWalletBalance float64   `gorm:"type:decimal(20,8);not null" json:"current_wallet_balance"` // 入账前
	PostWalletBalance    float64   `gorm:"type:decimal(20,8);not null" json:"post_wallet_balance"`    // 入账后
	Remark               string    `gorm:"type:varchar(256)" json:"remark"`
	Status               int       `gorm:"not null;default:1" json:"status"`
	CreatedAt            time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (IncomeTransaction) TableName() string {
	return "income_transaction"
}

// FundTransaction 资金流水表
// 覆盖转账、互转、提现。提现流水的 status 是唯一允许的后置变更
// （待审 0 -> 通过 1 / 驳回 2），其余字段创建后不再修改
type FundTransaction struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TxNo                 string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"tx_no"`
	UUID                 string    `gorm:"type:varchar(64);index" json:"uuid"` // 提现网关幂等键
	UCode                int64     `gorm:"index;not null" json:"u_code"`       // 出账方
	TxUCode              int64     `gorm:"index" json:"tx_u_code"`             // 对手方
	TxType               string    `gorm:"type:varchar(32);index;not null" json:"tx_type"`
	DebitCredit          string    `gorm:"type:varchar(8);not null" json:"debit_credit"`
	FromWalletType       string    `gorm:"type:varchar(64)" json:"from_wallet_type"` // 互转来源钱包
	WalletType           string    `gorm:"type:varchar(64);not null" json:"wallet_type"`
	Amount               float64   `gorm:"type:decimal(20,8);not null" json:"amount"`
	TxCharge             float64   `gorm:"type:decimal(20,8);not null;default:0" json:"tx_charge"`
	TxNumber             string    `gorm:"type:varchar(128)" json:"tx_number"` // 网关侧交易哈希
	CurrentWalletBalance float64   `gorm:"type:decimal(20,8);not null" json:"current_wallet_balance"`
	PostWalletBalance    float64   `gorm:"type:decimal(20,8);not null" json:"post_wallet_balance"`
	Remark               string    `gorm:"type:varchar(256)" json:"remark"`
	Response             string    `gorm:"type:text" json:"response"` // 网关原始响应
	Status               int       `gorm:"index;not null;default:0" json:"status"`
	CreatedAt            time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FundTransaction) TableName() string {
	return "fund_transaction"
}
