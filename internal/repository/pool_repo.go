package repository

import (
	"context"
	"errors"

	"mlmpay/internal/model"

	"gorm.io/gorm"
)

var ErrPoolNodeNotFound = errors.New("矩阵池节点不存在")

type PoolRepository struct {
	db *gorm.DB
}

func NewPoolRepository(db *gorm.DB) *PoolRepository {
	return &PoolRepository{db: db}
}

func (r *PoolRepository) Create(ctx context.Context, tx *gorm.DB, node *model.PoolNode) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(node).Error
}

func (r *PoolRepository) GetByID(ctx context.Context, id int64) (*model.PoolNode, error) {
	var node model.PoolNode
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&node).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNodeNotFound
		}
		return nil, err
	}
	return &node, nil
}

// GetByUCode 用户在某类型池中的节点（一人一池一节点）
func (r *PoolRepository) GetByUCode(ctx context.Context, tx *gorm.DB, uCode int64, poolType string) (*model.PoolNode, error) {
	if tx == nil {
		tx = r.db
	}
	var node model.PoolNode
	err := tx.WithContext(ctx).Where("u_code = ? AND pool_type = ?", uCode, poolType).First(&node).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNodeNotFound
		}
		return nil, err
	}
	return &node, nil
}

// CountChildren 节点已占用腿数
func (r *PoolRepository) CountChildren(ctx context.Context, tx *gorm.DB, parentID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.PoolNode{}).
		Where("parent_id = ?", parentID).
		Count(&count).Error
	return count, err
}

// ListChildren 节点的下级，按创建顺序
func (r *PoolRepository) ListChildren(ctx context.Context, parentIDs []int64) ([]*model.PoolNode, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var nodes []*model.PoolNode
	err := r.db.WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("id ASC").
		Find(&nodes).Error
	return nodes, err
}

// NextParent 广度优先找下一个安置父节点：按创建顺序扫描，
// 取第一个腿数未满的节点。平级并列时节点 ID 小者（先注册者）优先
func (r *PoolRepository) NextParent(ctx context.Context, tx *gorm.DB, poolType string, maxLegs int) (*model.PoolNode, error) {
	if tx == nil {
		tx = r.db
	}
	var node model.PoolNode
	err := tx.WithContext(ctx).
		Where("pool_type = ?", poolType).
		Where("(SELECT COUNT(*) FROM pool AS child WHERE child.parent_id = pool.id) < ?", maxLegs).
		Order("id ASC").
		First(&node).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNodeNotFound
		}
		return nil, err
	}
	return &node, nil
}

// HasAny 池中是否已有节点（首个注册者成为根）
func (r *PoolRepository) HasAny(ctx context.Context, tx *gorm.DB, poolType string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.PoolNode{}).
		Where("pool_type = ?", poolType).
		Count(&count).Error
	return count > 0, err
}
