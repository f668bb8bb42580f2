package model

import (
	"time"
)

const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// User 用户表
// 记录推荐关系（sponsor 树）和账户状态，uCode 即主键 ID，
// 是钱包、订单、流水之间的关联键
type User struct {
	UCode        int64     `gorm:"column:u_code;primaryKey;autoIncrement" json:"u_code"`
	SponsorUCode *int64    `gorm:"index" json:"sponsor_u_code"` // 推荐人，根用户为空
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Role         string    `gorm:"type:varchar(16);not null;default:User" json:"role"`
	ActiveStatus int       `gorm:"not null;default:0" json:"active_status"`              // 1=激活
	BlockStatus  int       `gorm:"not null;default:0" json:"block_status"`               // 1=封禁
	Capping      float64   `gorm:"type:decimal(20,8);not null;default:0" json:"capping"` // 封顶百分比，0 表示无限
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}

// IsActive 是否参与收益分发（激活且未封禁）
func (u *User) IsActive() bool {
	return u.ActiveStatus == 1 && u.BlockStatus == 0
}
