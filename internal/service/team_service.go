package service

import (
	"context"

	"mlmpay/internal/repository"

	"gorm.io/gorm"
)

// TeamLevel 某一层的团队结构：父 uCode -> 该父在这一层的直推
type TeamLevel map[int64][]int64

// Members 该层全部成员（展平）
func (l TeamLevel) Members() []int64 {
	var members []int64
	for _, children := range l {
		members = append(members, children...)
	}
	return members
}

// TeamService 推荐网络的只读访问
// 团队/上级链一律迭代实现：显式队列 + 已访问集合 + 深度上限，
// 数据异常（环）也不会死循环
type TeamService struct {
	userRepo  *repository.UserRepository
	maxLevels int
}

func NewTeamService(db *gorm.DB, maxLevels int) *TeamService {
	if maxLevels <= 0 {
		maxLevels = 10
	}
	return &TeamService{
		userRepo:  repository.NewUserRepository(db),
		maxLevels: maxLevels,
	}
}

// Directs 直推 uCode 列表，按注册顺序
func (s *TeamService) Directs(ctx context.Context, uCode int64, activeOnly bool) ([]int64, error) {
	users, err := s.userRepo.ListDirects(ctx, uCode, activeOnly)
	if err != nil {
		return nil, err
	}
	result := make([]int64, 0, len(users))
	for _, user := range users {
		result = append(result, user.UCode)
	}
	return result, nil
}

// Team 逐层展开团队，最多 maxDepth 层（0 取默认上限）
// 某层没有任何成员时提前结束，返回的切片长度即实际到达的层数
func (s *TeamService) Team(ctx context.Context, uCode int64, maxDepth int, activeOnly bool) ([]TeamLevel, error) {
	if maxDepth <= 0 || maxDepth > s.maxLevels {
		maxDepth = s.maxLevels
	}

	var result []TeamLevel
	visited := map[int64]bool{uCode: true}
	frontier := []int64{uCode}

	for depth := 1; depth <= maxDepth; depth++ {
		level := TeamLevel{}
		var next []int64

		for _, parent := range frontier {
			children, err := s.Directs(ctx, parent, activeOnly)
			if err != nil {
				return nil, err
			}
			var fresh []int64
			for _, child := range children {
				if visited[child] {
					continue
				}
				visited[child] = true
				fresh = append(fresh, child)
			}
			if len(fresh) > 0 {
				level[parent] = fresh
				next = append(next, fresh...)
			}
		}

		if len(next) == 0 {
			break
		}
		result = append(result, level)
		frontier = next
	}

	return result, nil
}

// TeamMembers 团队全员展平（层序）
func (s *TeamService) TeamMembers(ctx context.Context, uCode int64, maxDepth int, activeOnly bool) ([]int64, error) {
	levels, err := s.Team(ctx, uCode, maxDepth, activeOnly)
	if err != nil {
		return nil, err
	}
	var members []int64
	for _, level := range levels {
		members = append(members, level.Members()...)
	}
	return members, nil
}

// Upline 上级链，从直接推荐人到根，activeOnly 时止于第一个非激活祖先
func (s *TeamService) Upline(ctx context.Context, uCode int64, activeOnly bool) ([]int64, error) {
	var result []int64
	visited := map[int64]bool{uCode: true}

	current, err := s.userRepo.GetByUCode(ctx, uCode)
	if err != nil {
		return nil, err
	}

	for depth := 0; depth < s.maxLevels; depth++ {
		if current.SponsorUCode == nil {
			break
		}
		sponsorUCode := *current.SponsorUCode
		if visited[sponsorUCode] {
			break
		}
		visited[sponsorUCode] = true

		sponsor, err := s.userRepo.GetByUCode(ctx, sponsorUCode)
		if err != nil {
			break
		}
		if activeOnly && !sponsor.IsActive() {
			break
		}
		result = append(result, sponsor.UCode)
		current = sponsor
	}

	return result, nil
}
