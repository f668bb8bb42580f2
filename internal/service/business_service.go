package service

import (
	"context"

	"mlmpay/internal/config"
	"mlmpay/internal/model"
	"mlmpay/internal/repository"

	"gorm.io/gorm"
)

// BusinessService 业务量聚合与封顶计算
type BusinessService struct {
	cfg       *config.Config
	orderRepo *repository.OrderRepository
	userRepo  *repository.UserRepository
	ledger    *LedgerService
	team      *TeamService
}

func NewBusinessService(db *gorm.DB, cfg *config.Config) *BusinessService {
	return &BusinessService{
		cfg:       cfg,
		orderRepo: repository.NewOrderRepository(db),
		userRepo:  repository.NewUserRepository(db),
		ledger:    NewLedgerService(db),
		team:      NewTeamService(db, cfg.Business.MaxTeamLevels),
	}
}

// MyPackage 本人累计套餐业务量（status=1，不剔除已排除收益的订单）
// 封顶额度以它为基数
func (s *BusinessService) MyPackage(ctx context.Context, uCode int64) (float64, error) {
	return s.orderRepo.SumBV(ctx, []int64{uCode}, false)
}

// MyActivePackage 本人可分发业务量（再剔除 payOutStatus=1）
func (s *BusinessService) MyActivePackage(ctx context.Context, uCode int64) (float64, error) {
	return s.orderRepo.SumBV(ctx, []int64{uCode}, true)
}

// DirectBusiness 直推业务量
func (s *BusinessService) DirectBusiness(ctx context.Context, uCode int64, activeOnly bool) (float64, error) {
	directs, err := s.team.Directs(ctx, uCode, activeOnly)
	if err != nil {
		return 0, err
	}
	return s.orderRepo.SumBV(ctx, directs, activeOnly)
}

// TeamBusiness 全团队业务量
func (s *BusinessService) TeamBusiness(ctx context.Context, uCode int64, activeOnly bool) (float64, error) {
	members, err := s.team.TeamMembers(ctx, uCode, 0, activeOnly)
	if err != nil {
		return 0, err
	}
	return s.orderRepo.SumBV(ctx, members, activeOnly)
}

// LevelBusiness 逐层业务量，下标即层深-1
// 没到达的层不产生条目，调用方把缺失下标当 0 处理
func (s *BusinessService) LevelBusiness(ctx context.Context, uCode int64, maxDepth int, activeOnly bool) ([]float64, error) {
	levels, err := s.team.Team(ctx, uCode, maxDepth, activeOnly)
	if err != nil {
		return nil, err
	}

	result := make([]float64, 0, len(levels))
	for _, level := range levels {
		sum, err := s.orderRepo.SumBV(ctx, level.Members(), activeOnly)
		if err != nil {
			return nil, err
		}
		result = append(result, sum)
	}
	return result, nil
}

// RemainingCap 剩余可得收益
//
// totalCap = 累计套餐业务量 × capping% ，减去 capping 槽位的已用量。
// capping 未设置（0）按无限处理，返回配置的哨兵值
func (s *BusinessService) RemainingCap(ctx context.Context, uCode int64) (float64, error) {
	user, err := s.userRepo.GetByUCode(ctx, uCode)
	if err != nil {
		return 0, err
	}
	if user.Capping <= 0 {
		return s.cfg.Business.CappingUnlimited, nil
	}

	lifetime, err := s.MyPackage(ctx, uCode)
	if err != nil {
		return 0, err
	}

	currentUsage := s.ledger.GetBalance(ctx, uCode, model.SlugCapping)
	totalCap := lifetime * user.Capping / 100
	return totalCap - currentUsage, nil
}
