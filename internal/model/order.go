package model

import (
	"time"
)

const (
	OrderStatusPending  = 0
	OrderStatusActive   = 1
	OrderStatusRejected = 2
)

const (
	PayOutEligible = 0 // 参与收益计算
	PayOutExcluded = 1 // 已排除（封顶耗尽或人工剔除）
)

// Order 套餐购买订单（top-up）
// 业务量（BV）统计和 ROI 分发都以订单为源头。
// 只有 status=1 且 payOutStatus=0 的订单计入可分发业务量
type Order struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UCode        int64     `gorm:"index;not null" json:"u_code"`
	PinID        int64     `gorm:"index;not null" json:"pin_id"` // 套餐定义
	BV           float64   `gorm:"type:decimal(20,8);not null;default:0" json:"bv"`
	Amount       float64   `gorm:"type:decimal(20,8);not null" json:"amount"`
	Status       int       `gorm:"index;not null;default:0" json:"status"`
	PayOutStatus int       `gorm:"index;not null;default:0" json:"pay_out_status"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// PinSetting 套餐定义
// roi 为每日返还百分比，poolType 非空表示购买后进入对应矩阵池
type PinSetting struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Amount    float64   `gorm:"type:decimal(20,8);not null" json:"amount"`
	BV        float64   `gorm:"type:decimal(20,8);not null;default:0" json:"bv"`
	ROI       float64   `gorm:"type:decimal(20,8);not null;default:0" json:"roi"`
	PoolType  string    `gorm:"type:varchar(32)" json:"pool_type"`
	Validity  int       `gorm:"not null;default:0" json:"validity"` // 有效天数，0 不限
	Status    int       `gorm:"not null;default:1" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PinSetting) TableName() string {
	return "pin_setting"
}
