package repository

import (
	"context"
	"errors"

	"mlmpay/internal/model"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("用户不存在")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByUCode(ctx context.Context, uCode int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("u_code = ?", uCode).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetActiveByUCode 激活且未封禁的用户，否则按不存在处理
func (r *UserRepository) GetActiveByUCode(ctx context.Context, uCode int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("u_code = ? AND active_status = 1 AND block_status = 0", uCode).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListDirects 直推列表，activeOnly 时只取激活未封禁的
// 按 u_code 升序即注册顺序，层级遍历的平级顺序依赖它
func (r *UserRepository) ListDirects(ctx context.Context, sponsorUCode int64, activeOnly bool) ([]*model.User, error) {
	query := r.db.WithContext(ctx).Where("sponsor_u_code = ?", sponsorUCode)
	if activeOnly {
		query = query.Where("active_status = 1 AND block_status = 0")
	}

	var users []*model.User
	err := query.Order("u_code ASC").Find(&users).Error
	return users, err
}

// ListActiveUsers 分发任务的批量数据源
func (r *UserRepository) ListActiveUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("active_status = 1 AND block_status = 0").
		Order("u_code ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	return users, err
}

// Deactivate 封顶耗尽后的停用
func (r *UserRepository) Deactivate(ctx context.Context, uCode int64) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("u_code = ?", uCode).
		Update("active_status", 0).Error
}

// Activate 首次购买套餐后激活
func (r *UserRepository) Activate(ctx context.Context, tx *gorm.DB, uCode int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("u_code = ?", uCode).
		Update("active_status", 1).Error
}
