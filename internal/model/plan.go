package model

import (
	"time"
)

// 计划表常用 slug
const (
	PlanLevelROI            = "level_roi"
	PlanDailyLevel          = "daily_level"
	PlanDailyLevelReqDirect = "daily_level_req_direct"
	PlanWithdrawLevel       = "withdraw_level"
	PlanAutopool            = "autopool"
	PlanAutopoolReqDirect   = "autopool_req_direct"
	PlanAutopoolReqTeam     = "autopool_req_team"
)

// Plan 分发计划配置
// Value 是按层级（代际深度）索引的数值数组：value[i] 即第 i+1 层的
// 金额或百分比。数组比遍历深度短时，超出部分的层级不发放
type Plan struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Value     []float64 `gorm:"serializer:json;type:text;not null" json:"value"`
	Status    int       `gorm:"not null;default:1" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Plan) TableName() string {
	return "plan"
}

// 职级配置 slug
const (
	RankReward                        = "reward"
	RankRewardReqTeam                 = "reward_req_team"
	RankGrowthBooster                 = "growth_booster"
	RankGrowthBoosterReqLevelBusiness = "growth_booster_req_level_business"
)

// RankSetting 职级/奖励配置，结构与 Plan 相同，按职级序号索引
type RankSetting struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Value     []float64 `gorm:"serializer:json;type:text;not null" json:"value"`
	Status    int       `gorm:"not null;default:1" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RankSetting) TableName() string {
	return "rank_setting"
}

// Rank 已达成职级记录
// 奖励任务的永久幂等判据：同一 (uCode, rank) 只发一次
type Rank struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UCode       int64     `gorm:"uniqueIndex:idx_rank_ucode_rank;not null" json:"u_code"`
	Rank        int       `gorm:"column:rank_level;uniqueIndex:idx_rank_ucode_rank;not null" json:"rank"`
	IsCompleted bool      `gorm:"not null;default:true" json:"is_completed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Rank) TableName() string {
	return "rank"
}
