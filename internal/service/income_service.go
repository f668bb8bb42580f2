package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"mlmpay/internal/config"
	"mlmpay/internal/infrastructure/lock"
	"mlmpay/internal/model"
	"mlmpay/internal/repository"
	"mlmpay/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 幂等判据的粒度
const (
	GuardDaily     = "daily"     // 同一 (受益人, 来源, 实体) 每自然日最多一笔
	GuardPermanent = "permanent" // 终身只发一笔
)

// IncomePayout 一次收益发放的全部参数
type IncomePayout struct {
	UCode     int64 // 受益人
	TxUCode   int64 // 触发来源用户
	PinID     int64
	Source    string  // 收益类型 slug
	Reference string  // 来源实体标识（订单 ID、层级编号等）
	Amount    float64 // 封顶前的应发额
	Remark    string
	Guard     string // GuardDaily / GuardPermanent
}

// IncomeService 收益分发的共享步骤
//
// 所有分发器（ROI、层级、奖励、加速奖、矩阵池、提现层级）最终都走
// PayIncome：受益人加锁 -> 封顶截断 -> 同一事务内幂等判断 + 记
// 流水 + 入账 + 记封顶用量 + 落通知事件。单个受益人失败只影响
// 自己，批次继续
type IncomeService struct {
	db          *gorm.DB
	cfg         *config.Config
	redis       *redis.Client
	business    *BusinessService
	team        *TeamService
	ledger      *LedgerService
	walletRepo  *repository.WalletRepository
	settingRepo *repository.WalletSettingRepository
	userRepo    *repository.UserRepository
	orderRepo   *repository.OrderRepository
	planRepo    *repository.PlanRepository
	rankRepo    *repository.RankRepository
	txRepo      *repository.TransactionRepository
	outboxRepo  *repository.OutboxRepository
}

func NewIncomeService(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *IncomeService {
	return &IncomeService{
		db:          db,
		cfg:         cfg,
		redis:       redisClient,
		business:    NewBusinessService(db, cfg),
		team:        NewTeamService(db, cfg.Business.MaxTeamLevels),
		ledger:      NewLedgerService(db),
		walletRepo:  repository.NewWalletRepository(db),
		settingRepo: repository.NewWalletSettingRepository(db),
		userRepo:    repository.NewUserRepository(db),
		orderRepo:   repository.NewOrderRepository(db),
		planRepo:    repository.NewPlanRepository(db),
		rankRepo:    repository.NewRankRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// lockWallet 拿受益人的用户级钱包锁，返回解锁函数
// redis 未配置时退化为进程内互斥
func (s *IncomeService) lockWallet(ctx context.Context, uCode int64) (func(), error) {
	if s.redis == nil {
		return lock.LockWalletLocal(ctx, uCode, 100*time.Millisecond, 50)
	}
	walletLock := lock.NewWalletLock(s.redis, uCode, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 50); err != nil {
		return nil, err
	}
	return func() {
		if err := walletLock.Unlock(context.Background()); err != nil {
			log.Printf("[Income] 释放钱包锁失败: uCode=%d, err=%v", uCode, err)
		}
	}, nil
}

// PayIncome 发放一笔收益
//
// 返回 (是否实际发放, error)。幂等命中、封顶耗尽、金额截断到 0
// 都是正常跳过，返回 (false, nil)
func (s *IncomeService) PayIncome(ctx context.Context, p *IncomePayout) (bool, error) {
	if p.Amount <= 0 {
		return false, nil
	}

	setting, err := s.settingRepo.Resolve(ctx, nil, p.Source)
	if err != nil {
		return false, err
	}
	incomeWallet := setting.Wallet
	if incomeWallet == "" {
		incomeWallet = model.SlugMainWallet
	}
	incomeSetting, err := s.settingRepo.Resolve(ctx, nil, incomeWallet)
	if err != nil {
		return false, err
	}
	cappingSetting, err := s.settingRepo.Resolve(ctx, nil, model.SlugCapping)
	if err != nil {
		return false, err
	}

	// 【关键点】同一受益人的发放必须串行：并发任务给同一个上级
	// 发放时，两边都先读到同样的剩余额度再各自入账，封顶就被
	// 冲破了，流水快照也会错。锁粒度按受益人，不同受益人并发
	unlock, err := s.lockWallet(ctx, p.UCode)
	if err != nil {
		return false, err
	}
	defer unlock()

	// 封顶截断在锁内读：持锁期间没有别的发放或资金流程动这个
	// 用户的封顶用量
	remainingCap, err := s.business.RemainingCap(ctx, p.UCode)
	if err != nil {
		return false, err
	}
	if remainingCap <= 0 {
		return false, nil
	}
	payable := p.Amount
	if payable > remainingCap {
		payable = remainingCap
	}
	if payable <= 0 {
		return false, nil
	}

	paid := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 幂等判断放进事务，与流水写入互斥
		var exists bool
		var guardErr error
		if p.Guard == GuardPermanent {
			exists, guardErr = s.txRepo.ExistsIncome(ctx, tx, p.UCode, p.Source, p.Reference)
		} else {
			exists, guardErr = s.txRepo.ExistsIncomeForDay(ctx, tx, p.UCode, p.Source, p.Reference, time.Now())
		}
		if guardErr != nil {
			return guardErr
		}
		if exists {
			return nil
		}

		if _, err := s.walletRepo.GetOrCreate(ctx, tx, p.UCode, ""); err != nil {
			return fmt.Errorf("创建钱包失败: %w", err)
		}

		currentBalance, err := s.walletRepo.GetColumn(ctx, tx, p.UCode, incomeSetting.Column)
		if err != nil {
			return err
		}

		trans := &model.IncomeTransaction{
			TxNo:                 idgen.GenerateTransactionNo(),
			UCode:                p.UCode,
			TxUCode:              p.TxUCode,
			PinID:                p.PinID,
			Source:               p.Source,
			Reference:            p.Reference,
			WalletType:           incomeWallet,
			Amount:               payable,
			CurrentWalletBalance: currentBalance,
			PostWalletBalance:    currentBalance + payable,
			Remark:               p.Remark,
			Status:               1,
		}
		if err := s.txRepo.CreateIncome(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录收益流水失败: %w", err)
		}

		// 来源槽位 + 注册表联动（income slug 通常联动 main_wallet）
		if err := s.walletRepo.AdjustColumn(ctx, tx, p.UCode, setting.Column, payable); err != nil {
			return fmt.Errorf("来源槽位入账失败: %w", err)
		}
		if err := s.walletRepo.AdjustColumn(ctx, tx, p.UCode, incomeSetting.Column, payable); err != nil {
			return fmt.Errorf("收益钱包入账失败: %w", err)
		}

		// 封顶用量同步累加
		if err := s.walletRepo.AdjustColumn(ctx, tx, p.UCode, cappingSetting.Column, payable); err != nil {
			return fmt.Errorf("封顶用量记账失败: %w", err)
		}

		if err := s.outboxRepo.CreateEvent(ctx, tx, s.cfg.Kafka.Topic.IncomeEvent, trans.TxNo, map[string]interface{}{
			"tx_no":     trans.TxNo,
			"u_code":    p.UCode,
			"source":    p.Source,
			"reference": p.Reference,
			"amount":    payable,
			"paid_at":   time.Now().Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("写入通知事件失败: %w", err)
		}

		paid = true
		return nil
	})

	return paid, err
}

// DistributeROIForOrder 单笔订单的 ROI 发放
// 应发额 = 订单金额 × 套餐 roi%，受益人是订单持有人
func (s *IncomeService) DistributeROIForOrder(ctx context.Context, order *model.Order) (bool, error) {
	var pin model.PinSetting
	if err := s.db.WithContext(ctx).Where("id = ?", order.PinID).First(&pin).Error; err != nil {
		return false, fmt.Errorf("套餐不存在: pinId=%d", order.PinID)
	}
	if pin.ROI <= 0 || order.Amount <= 0 {
		return false, nil
	}

	user, err := s.userRepo.GetActiveByUCode(ctx, order.UCode)
	if err != nil {
		return false, nil // 非激活用户正常跳过
	}

	payable := order.Amount * pin.ROI / 100
	paid, err := s.PayIncome(ctx, &IncomePayout{
		UCode:     user.UCode,
		PinID:     order.PinID,
		Source:    model.SourceROI,
		Reference: fmt.Sprintf("order:%d", order.ID),
		Amount:    payable,
		Remark:    fmt.Sprintf("订单 %d 金额 %.2f 的 ROI 收益 %.4f", order.ID, order.Amount, payable),
		Guard:     GuardDaily,
	})
	if err != nil || !paid {
		return paid, err
	}

	// 层级 ROI：按配置把本次 ROI 基数的百分比逐层发给上级
	if s.cfg.Business.LevelROIEnabled {
		if err := s.DistributeLevelROI(ctx, user, order); err != nil {
			log.Printf("[ROI] 层级 ROI 发放失败: uCode=%d, orderId=%d, err=%v", user.UCode, order.ID, err)
		}
	}
	return true, nil
}

// DistributeLevelROI 层级 ROI：沿激活上级链按 level_roi 计划发百分比
func (s *IncomeService) DistributeLevelROI(ctx context.Context, origin *model.User, order *model.Order) error {
	plan, err := s.planRepo.GetPlan(ctx, model.PlanLevelROI)
	if err != nil {
		return err
	}

	upline, err := s.team.Upline(ctx, origin.UCode, true)
	if err != nil {
		return err
	}

	depth := s.cfg.Business.LevelROIDepth
	if depth <= 0 || depth > len(plan.Value) {
		depth = len(plan.Value)
	}
	for i := 0; i < len(upline) && i < depth; i++ {
		percent := plan.Value[i]
		if percent <= 0 {
			continue
		}
		payable := order.Amount * percent / 100
		_, err := s.PayIncome(ctx, &IncomePayout{
			UCode:     upline[i],
			TxUCode:   origin.UCode,
			PinID:     order.PinID,
			Source:    model.SourceLevelROI,
			Reference: fmt.Sprintf("order:%d:level:%d", order.ID, i+1),
			Amount:    payable,
			Remark:    fmt.Sprintf("第 %d 层的层级 ROI 收益 %.4f", i+1, payable),
			Guard:     GuardDaily,
		})
		if err != nil {
			log.Printf("[LevelROI] 发放失败: uCode=%d, level=%d, err=%v", upline[i], i+1, err)
			continue
		}
	}
	return nil
}

// DistributeDailyLevelForUser 以 user 为源头的每日层级收益：
// 沿其激活上级链逐层发固定额，第 i 层要求该上级的激活直推数
// 达到 daily_level_req_direct[i]
func (s *IncomeService) DistributeDailyLevelForUser(ctx context.Context, uCode int64) error {
	plan, err := s.planRepo.GetPlan(ctx, model.PlanDailyLevel)
	if err != nil {
		return err
	}
	planCondition, err := s.planRepo.GetPlan(ctx, model.PlanDailyLevelReqDirect)
	if err != nil {
		return err
	}

	upline, err := s.team.Upline(ctx, uCode, true)
	if err != nil {
		return err
	}

	maxLevel := len(plan.Value)
	if len(planCondition.Value) < maxLevel {
		maxLevel = len(planCondition.Value)
	}
	for i := 0; i < len(upline) && i < maxLevel; i++ {
		beneficiary := upline[i]
		directReq := int(planCondition.Value[i])

		directs, err := s.team.Directs(ctx, beneficiary, true)
		if err != nil {
			log.Printf("[DailyLevel] 查询直推失败: uCode=%d, err=%v", beneficiary, err)
			continue
		}
		if len(directs) < directReq {
			continue
		}

		payable := plan.Value[i]
		_, err = s.PayIncome(ctx, &IncomePayout{
			UCode:     beneficiary,
			TxUCode:   uCode,
			Source:    model.SourceDailyLevel,
			Reference: fmt.Sprintf("from:%d:level:%d", uCode, i+1),
			Amount:    payable,
			Remark:    fmt.Sprintf("第 %d 层的每日层级收益 %.4f", i+1, payable),
			Guard:     GuardDaily,
		})
		if err != nil {
			log.Printf("[DailyLevel] 发放失败: uCode=%d, level=%d, err=%v", beneficiary, i+1, err)
			continue
		}
	}
	return nil
}

// DistributeRewardForUser 职级奖励：
// 第 i 级要求激活团队第 i 层人数达到 reward_req_team[i]，
// 达标即一次性发 reward[i] 并落职级记录，重跑以职级记录防重
func (s *IncomeService) DistributeRewardForUser(ctx context.Context, uCode int64) error {
	plan, err := s.planRepo.GetRankSetting(ctx, model.RankReward)
	if err != nil {
		return err
	}
	planCondition, err := s.planRepo.GetRankSetting(ctx, model.RankRewardReqTeam)
	if err != nil {
		return err
	}

	levels, err := s.team.Team(ctx, uCode, len(plan.Value), true)
	if err != nil {
		return err
	}

	maxLevel := len(levels)
	if len(planCondition.Value) < maxLevel {
		maxLevel = len(planCondition.Value)
	}
	for i := 0; i < maxLevel; i++ {
		rank := i + 1
		achieved, err := s.rankRepo.Exists(ctx, nil, uCode, rank)
		if err != nil {
			return err
		}
		if achieved {
			continue
		}
		if len(levels[i].Members()) < int(planCondition.Value[i]) {
			continue
		}

		payable := plan.Value[i]
		paid, err := s.PayIncome(ctx, &IncomePayout{
			UCode:     uCode,
			Source:    model.SourceReward,
			Reference: fmt.Sprintf("rank:%d", rank),
			Amount:    payable,
			Remark:    fmt.Sprintf("达成职级 %d 的一次性奖励 %.4f", rank, payable),
			Guard:     GuardPermanent,
		})
		if err != nil {
			log.Printf("[Reward] 发放失败: uCode=%d, rank=%d, err=%v", uCode, rank, err)
			continue
		}
		if !paid {
			continue
		}
		if err := s.rankRepo.Create(ctx, nil, &model.Rank{UCode: uCode, Rank: rank, IsCompleted: true}); err != nil {
			log.Printf("[Reward] 职级记录写入失败: uCode=%d, rank=%d, err=%v", uCode, rank, err)
		}
	}
	return nil
}

// DistributeGrowthBoosterForUser 成长加速奖：
// 第 i 层业务量达到 growth_booster_req_level_business[i] 即发
// growth_booster[i]，每层终身一次
func (s *IncomeService) DistributeGrowthBoosterForUser(ctx context.Context, uCode int64) error {
	plan, err := s.planRepo.GetRankSetting(ctx, model.RankGrowthBooster)
	if err != nil {
		return err
	}
	planCondition, err := s.planRepo.GetRankSetting(ctx, model.RankGrowthBoosterReqLevelBusiness)
	if err != nil {
		return err
	}

	levelBusiness, err := s.business.LevelBusiness(ctx, uCode, len(plan.Value), false)
	if err != nil {
		return err
	}

	maxLevel := len(levelBusiness)
	if len(planCondition.Value) < maxLevel {
		maxLevel = len(planCondition.Value)
	}
	for i := 0; i < maxLevel; i++ {
		if levelBusiness[i] < planCondition.Value[i] {
			continue
		}
		payable := plan.Value[i]
		_, err := s.PayIncome(ctx, &IncomePayout{
			UCode:     uCode,
			Source:    model.SourceGrowthBooster,
			Reference: fmt.Sprintf("level:%d", i+1),
			Amount:    payable,
			Remark:    fmt.Sprintf("第 %d 层业务量达标的成长加速奖 %.4f", i+1, payable),
			Guard:     GuardPermanent,
		})
		if err != nil {
			log.Printf("[GrowthBooster] 发放失败: uCode=%d, level=%d, err=%v", uCode, i+1, err)
			continue
		}
	}
	return nil
}

// DistributeWithdrawLevel 提现层级收益：
// 提现事件触发，按 withdraw_level 计划把提现额的百分比逐层发给
// 激活上级，第 i 层要求其激活直推数达到计划值本身
func (s *IncomeService) DistributeWithdrawLevel(ctx context.Context, uCode int64, amount float64, withdrawalUUID string) error {
	user, err := s.userRepo.GetActiveByUCode(ctx, uCode)
	if err != nil {
		return err
	}

	plan, err := s.planRepo.GetPlan(ctx, model.PlanWithdrawLevel)
	if err != nil {
		return err
	}

	upline, err := s.team.Upline(ctx, user.UCode, true)
	if err != nil {
		return err
	}

	for i := 0; i < len(upline) && i < len(plan.Value); i++ {
		beneficiary := upline[i]
		directs, err := s.team.Directs(ctx, beneficiary, true)
		if err != nil {
			log.Printf("[WithdrawLevel] 查询直推失败: uCode=%d, err=%v", beneficiary, err)
			continue
		}
		if float64(len(directs)) < plan.Value[i] {
			continue
		}

		payable := plan.Value[i] * amount / 100
		_, err = s.PayIncome(ctx, &IncomePayout{
			UCode:     beneficiary,
			TxUCode:   user.UCode,
			Source:    model.SourceWithdrawLevel,
			Reference: fmt.Sprintf("wd:%s:level:%d", withdrawalUUID, i+1),
			Amount:    payable,
			Remark:    fmt.Sprintf("第 %d 层的提现层级收益 %.4f", i+1, payable),
			Guard:     GuardPermanent,
		})
		if err != nil {
			log.Printf("[WithdrawLevel] 发放失败: uCode=%d, level=%d, err=%v", beneficiary, i+1, err)
			continue
		}
	}
	return nil
}
