package repository

import (
	"context"
	"errors"

	"mlmpay/internal/model"

	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("订单不存在")

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ListPayoutEligible ROI 任务数据源：激活且未被排除出收益计算的订单
func (r *OrderRepository) ListPayoutEligible(ctx context.Context, limit, offset int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND pay_out_status = ?", model.OrderStatusActive, model.PayOutEligible).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	return orders, err
}

// ListByUCode 用户的激活订单，按创建倒序
func (r *OrderRepository) ListByUCode(ctx context.Context, uCode int64) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("u_code = ? AND status = ?", uCode, model.OrderStatusActive).
		Order("id DESC").
		Find(&orders).Error
	return orders, err
}

// CountByUCode 判断是否首单（触发矩阵池注册）
func (r *OrderRepository) CountByUCode(ctx context.Context, tx *gorm.DB, uCode int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("u_code = ? AND status = ?", uCode, model.OrderStatusActive).
		Count(&count).Error
	return count, err
}

// SumBV 业务量聚合：status=1，excludePaidOut 时再限定 payOutStatus=0
func (r *OrderRepository) SumBV(ctx context.Context, uCodes []int64, excludePaidOut bool) (float64, error) {
	if len(uCodes) == 0 {
		return 0, nil
	}
	query := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("u_code IN ? AND status = ?", uCodes, model.OrderStatusActive)
	if excludePaidOut {
		query = query.Where("pay_out_status = ?", model.PayOutEligible)
	}

	var total float64
	err := query.Select("COALESCE(SUM(bv), 0)").Scan(&total).Error
	return total, err
}

// UpdatePayOutStatus 收益排除标记的翻转（状态清洗任务用）
func (r *OrderRepository) UpdatePayOutStatus(ctx context.Context, orderID int64, payOutStatus int) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("pay_out_status", payOutStatus).Error
}

// ExcludeAllByUCode 用户封顶耗尽时，整体剔除其全部可分发订单
func (r *OrderRepository) ExcludeAllByUCode(ctx context.Context, uCode int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("u_code = ? AND status = ? AND pay_out_status = ?",
			uCode, model.OrderStatusActive, model.PayOutEligible).
		Update("pay_out_status", model.PayOutExcluded).Error
}
