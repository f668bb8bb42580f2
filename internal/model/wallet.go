package model

import (
	"time"
)

// ============================================================================
// 钱包实体
// ============================================================================

// Wallet 用户钱包表
// 每个用户一行，固定 39 个数值槽位（c1..c29、c31..c40，c30 为历史废弃槽位）。
// 槽位与业务含义的映射不在这里，而是由 wallet_setting 注册表（slug -> column）
// 决定，新增收益类型只需加一条注册记录，不需要改表结构。
//
// 【重要】任何槽位在任何时刻都不允许为负，扣减由仓储层的条件 UPDATE 保证
type Wallet struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UCode    int64  `gorm:"uniqueIndex;not null" json:"u_code"`
	Username string `gorm:"type:varchar(64)" json:"username"`

	C1  float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c1"`
	C2  float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c2"`
	C3  float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c3"`
	C4  float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c4"`
	C5  float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c5"`
	C6  float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c6"`
	C7  float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c7"`
	C8  float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c8"`
	C9  float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c9"`
	C10 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c10"`
	C11 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c11"`
	C12 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c12"`
	C13 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c13"`
	C14 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c14"`
	C15 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c15"`
	C16 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c16"`
	C17 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c17"`
	C18 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c18"`
	C19 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c19"`
	C20 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c20"`
	C21 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c21"`
	C22 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c22"`
	C23 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c23"`
	C24 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c24"`
	C25 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c25"`
	C26 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c26"`
	C27 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c27"`
	C28 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c28"`
	C29 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c29"`
	C31 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c31"`
	C32 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c32"`
	C33 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c33"`
	C34 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c34"`
	C35 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c35"`
	C36 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c36"`
	C37 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c37"`
	C38 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c38"`
	C39 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c39"`
	C40 float64 `gorm:"type:decimal(20,8);not null;default:0" json:"c40"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}

// validWalletColumns 合法槽位集合（c30 缺位是故意的）
var validWalletColumns = buildValidWalletColumns()

func buildValidWalletColumns() map[string]bool {
	m := make(map[string]bool, 39)
	for i := 1; i <= 40; i++ {
		if i == 30 {
			continue
		}
		m[columnName(i)] = true
	}
	return m
}

func columnName(i int) string {
	// c1..c40
	name := [...]string{"", "c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10",
		"c11", "c12", "c13", "c14", "c15", "c16", "c17", "c18", "c19", "c20",
		"c21", "c22", "c23", "c24", "c25", "c26", "c27", "c28", "c29", "c30",
		"c31", "c32", "c33", "c34", "c35", "c36", "c37", "c38", "c39", "c40"}
	return name[i]
}

// IsValidWalletColumn 校验注册表映射到的物理槽位是否合法
func IsValidWalletColumn(column string) bool {
	return validWalletColumns[column]
}
