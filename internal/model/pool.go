package model

import (
	"time"
)

// PoolNode 矩阵池节点
// 与推荐树相互独立的安置树：每个节点最多挂 N 条腿（配置项），
// 按节点创建顺序广度优先填充，poolPosition 是在父节点下的槽位（1..N）
type PoolNode struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UCode        int64     `gorm:"index;not null" json:"u_code"`
	PoolType     string    `gorm:"type:varchar(32);index;not null" json:"pool_type"`
	ParentID     *int64    `gorm:"index" json:"parent_id"` // 根节点为空
	PoolPosition int       `gorm:"not null" json:"pool_position"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PoolNode) TableName() string {
	return "pool"
}
