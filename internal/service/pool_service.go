package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mlmpay/internal/config"
	"mlmpay/internal/model"
	"mlmpay/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// PoolService 矩阵池安置与池收益
//
// 矩阵池是独立于推荐树的第二棵树：节点按注册顺序广度优先填充，
// 每个节点最多 N 条腿。安置成功即触发一次沿池父链向上的收益分发
type PoolService struct {
	db       *gorm.DB
	cfg      *config.Config
	income   *IncomeService
	team     *TeamService
	planRepo *repository.PlanRepository
	poolRepo *repository.PoolRepository
	userRepo *repository.UserRepository
}

func NewPoolService(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *PoolService {
	return &PoolService{
		db:       db,
		cfg:      cfg,
		income:   NewIncomeService(db, cfg, redisClient),
		team:     NewTeamService(db, cfg.Business.MaxTeamLevels),
		planRepo: repository.NewPlanRepository(db),
		poolRepo: repository.NewPoolRepository(db),
		userRepo: repository.NewUserRepository(db),
	}
}

// Register 把用户安置进矩阵池
//
// 一人一池一节点，重复注册直接返回已有节点。安置规则：
// 首个注册者成为根；其后按创建顺序取第一个腿数未满的节点做父，
// 槽位号 = 已占腿数 + 1。安置落库后触发池收益分发
func (s *PoolService) Register(ctx context.Context, uCode int64, poolType string) (*model.PoolNode, error) {
	if existing, err := s.poolRepo.GetByUCode(ctx, nil, uCode, poolType); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrPoolNodeNotFound) {
		return nil, err
	}

	var node *model.PoolNode
	err := s.db.Transaction(func(tx *gorm.DB) error {
		hasAny, err := s.poolRepo.HasAny(ctx, tx, poolType)
		if err != nil {
			return err
		}

		node = &model.PoolNode{
			UCode:        uCode,
			PoolType:     poolType,
			PoolPosition: 1,
		}
		if hasAny {
			parent, err := s.poolRepo.NextParent(ctx, tx, poolType, s.cfg.Business.AutopoolLegs)
			if err != nil {
				return fmt.Errorf("查找安置父节点失败: %w", err)
			}
			childCount, err := s.poolRepo.CountChildren(ctx, tx, parent.ID)
			if err != nil {
				return err
			}
			node.ParentID = &parent.ID
			node.PoolPosition = int(childCount) + 1
		}

		return s.poolRepo.Create(ctx, tx, node)
	})
	if err != nil {
		return nil, err
	}

	// 池收益失败只记日志，安置本身已生效
	if err := s.DistributeAutopoolIncome(ctx, node); err != nil {
		log.Printf("[Autopool] 池收益分发失败: uCode=%d, nodeId=%d, err=%v", uCode, node.ID, err)
	}
	return node, nil
}

// ParentChain 池父链，从直接父节点到根
func (s *PoolService) ParentChain(ctx context.Context, node *model.PoolNode) ([]*model.PoolNode, error) {
	var chain []*model.PoolNode
	visited := map[int64]bool{node.ID: true}

	current := node
	for depth := 0; depth < s.cfg.Business.AutopoolLevels; depth++ {
		if current.ParentID == nil {
			break
		}
		if visited[*current.ParentID] {
			break
		}
		visited[*current.ParentID] = true

		parent, err := s.poolRepo.GetByID(ctx, *current.ParentID)
		if err != nil {
			break
		}
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

// PoolTeam 逐层展开池下级，返回切片长度即实际到达的层数
func (s *PoolService) PoolTeam(ctx context.Context, uCode int64, poolType string, maxDepth int) ([][]*model.PoolNode, error) {
	root, err := s.poolRepo.GetByUCode(ctx, nil, uCode, poolType)
	if err != nil {
		if errors.Is(err, repository.ErrPoolNodeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if maxDepth <= 0 || maxDepth > s.cfg.Business.AutopoolLevels {
		maxDepth = s.cfg.Business.AutopoolLevels
	}

	var result [][]*model.PoolNode
	frontier := []int64{root.ID}
	for depth := 1; depth <= maxDepth; depth++ {
		children, err := s.poolRepo.ListChildren(ctx, frontier)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			break
		}
		result = append(result, children)

		frontier = frontier[:0]
		for _, child := range children {
			frontier = append(frontier, child.ID)
		}
	}
	return result, nil
}

// PoolTeamCount 池下级总数
func (s *PoolService) PoolTeamCount(ctx context.Context, uCode int64, poolType string) (int, error) {
	levels, err := s.PoolTeam(ctx, uCode, poolType, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, level := range levels {
		count += len(level)
	}
	return count, nil
}

// DistributeAutopoolIncome 新节点安置后的池收益分发
//
// 沿池父链向上逐层发 autopool[i]，第 i 层（1 起）要求该祖先：
// 1. 池下级总数 >= autopool_req_team[i-1]
// 2. 推荐树激活直推数 >= autopool_req_direct[i-1]
// 幂等键带新节点 ID：同一次安置对同一祖先同一层只发一次
func (s *PoolService) DistributeAutopoolIncome(ctx context.Context, newNode *model.PoolNode) error {
	plan, err := s.planRepo.GetPlan(ctx, model.PlanAutopool)
	if err != nil {
		return err
	}
	planReqTeam, err := s.planRepo.GetPlan(ctx, model.PlanAutopoolReqTeam)
	if err != nil {
		return err
	}
	planReqDirect, err := s.planRepo.GetPlan(ctx, model.PlanAutopoolReqDirect)
	if err != nil {
		return err
	}

	chain, err := s.ParentChain(ctx, newNode)
	if err != nil {
		return err
	}

	maxLevel := len(plan.Value)
	if len(planReqTeam.Value) < maxLevel {
		maxLevel = len(planReqTeam.Value)
	}
	if len(planReqDirect.Value) < maxLevel {
		maxLevel = len(planReqDirect.Value)
	}

	for i := 0; i < len(chain) && i < maxLevel; i++ {
		ancestor := chain[i]

		teamCount, err := s.PoolTeamCount(ctx, ancestor.UCode, newNode.PoolType)
		if err != nil {
			log.Printf("[Autopool] 查询池团队失败: uCode=%d, err=%v", ancestor.UCode, err)
			continue
		}
		if float64(teamCount) < planReqTeam.Value[i] {
			continue
		}

		directs, err := s.team.Directs(ctx, ancestor.UCode, true)
		if err != nil {
			log.Printf("[Autopool] 查询直推失败: uCode=%d, err=%v", ancestor.UCode, err)
			continue
		}
		if float64(len(directs)) < planReqDirect.Value[i] {
			continue
		}

		payable := plan.Value[i]
		_, err = s.income.PayIncome(ctx, &IncomePayout{
			UCode:     ancestor.UCode,
			TxUCode:   newNode.UCode,
			Source:    model.SourceAutopool,
			Reference: fmt.Sprintf("pool:%d:level:%d", newNode.ID, i+1),
			Amount:    payable,
			Remark:    fmt.Sprintf("第 %d 层池位填充的矩阵池收益 %.4f", i+1, payable),
			Guard:     GuardPermanent,
		})
		if err != nil {
			log.Printf("[Autopool] 发放失败: uCode=%d, level=%d, err=%v", ancestor.UCode, i+1, err)
			continue
		}
	}
	return nil
}
