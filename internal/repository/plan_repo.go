package repository

import (
	"context"
	"errors"
	"fmt"

	"mlmpay/internal/model"

	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("分发计划不存在")

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// GetPlan 按 slug 取层级数值数组
func (r *PlanRepository) GetPlan(ctx context.Context, slug string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).Where("slug = ? AND status = 1", slug).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, slug)
		}
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) GetRankSetting(ctx context.Context, slug string) (*model.RankSetting, error) {
	var setting model.RankSetting
	err := r.db.WithContext(ctx).Where("slug = ? AND status = 1", slug).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, slug)
		}
		return nil, err
	}
	return &setting, nil
}

type RankRepository struct {
	db *gorm.DB
}

func NewRankRepository(db *gorm.DB) *RankRepository {
	return &RankRepository{db: db}
}

// Exists 职级是否已达成（奖励任务的永久防重）
func (r *RankRepository) Exists(ctx context.Context, tx *gorm.DB, uCode int64, rank int) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.Rank{}).
		Where("u_code = ? AND rank_level = ?", uCode, rank).
		Count(&count).Error
	return count > 0, err
}

func (r *RankRepository) Create(ctx context.Context, tx *gorm.DB, record *model.Rank) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}
