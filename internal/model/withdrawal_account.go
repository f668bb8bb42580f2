package model

import "time"

// 提现账户类型
const (
	WithdrawalAccountManual = "manual" // 人工打款，审核通过后线下处理
	WithdrawalAccountAuto   = "auto"   // 链上代付，发起时即调用网关
)

// WithdrawalAccount 用户绑定的提现账户
type WithdrawalAccount struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UCode     int64     `gorm:"index;not null" json:"u_code"`
	Type      string    `gorm:"type:varchar(16);not null;default:manual" json:"type"`
	Chain     string    `gorm:"type:varchar(32)" json:"chain"`    // 链标识，如 BEP20
	Address   string    `gorm:"type:varchar(128)" json:"address"` // 收款地址
	Token     string    `gorm:"type:varchar(32)" json:"token"`    // 代币合约/符号
	Status    int       `gorm:"not null;default:1" json:"status"` // 1=可用
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalAccount) TableName() string {
	return "withdrawal_account"
}
