package job

import (
	"context"
	"log"
	"sync/atomic"

	"mlmpay/internal/config"
	"mlmpay/internal/model"
	"mlmpay/internal/repository"
	"mlmpay/internal/service"

	"gorm.io/gorm"
)

// MaintenanceJob 封顶相关的状态清洗
//
// 两个入口，各挂各的 cron：
// 1. RunPayoutSweep —— 按封顶消耗重新标注订单的收益排除位
// 2. RunStatusSweep —— 封顶耗尽的用户降为非激活并整体剔除其订单
type MaintenanceJob struct {
	cfg       *config.Config
	business  *service.BusinessService
	ledger    *service.LedgerService
	userRepo  *repository.UserRepository
	orderRepo *repository.OrderRepository
}

func NewMaintenanceJob(db *gorm.DB, cfg *config.Config) *MaintenanceJob {
	return &MaintenanceJob{
		cfg:       cfg,
		business:  service.NewBusinessService(db, cfg),
		ledger:    service.NewLedgerService(db),
		userRepo:  repository.NewUserRepository(db),
		orderRepo: repository.NewOrderRepository(db),
	}
}

// RunPayoutSweep 重算每个用户订单的收益排除位
//
// 从最早的订单开始消耗封顶额度：订单额度 = 订单金额 × 封顶%，
// 已消耗额度覆盖完整个订单的，标记排除；没覆盖到的保持可分发
func (j *MaintenanceJob) RunPayoutSweep(ctx context.Context) {
	log.Println("[MaintenanceJob] 订单收益排除位清洗开始")

	batchSize := j.cfg.Business.JobBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var sweptCount int64
	offset := 0
	for {
		users, err := j.userRepo.ListActiveUsers(ctx, batchSize, offset)
		if err != nil {
			log.Printf("[MaintenanceJob] 查询用户失败: %v", err)
			return
		}
		if len(users) == 0 {
			break
		}

		forEachConcurrent(j.cfg.Business.JobWorkers, len(users), func(i int) {
			if j.sweepUserOrders(ctx, users[i]) {
				atomic.AddInt64(&sweptCount, 1)
			}
		})

		if len(users) < batchSize {
			break
		}
		offset += batchSize
	}

	log.Printf("[MaintenanceJob] 订单收益排除位清洗结束: 调整 %d 个用户", sweptCount)
}

func (j *MaintenanceJob) sweepUserOrders(ctx context.Context, user *model.User) bool {
	if user.Capping <= 0 {
		return false
	}

	orders, err := j.orderRepo.ListByUCode(ctx, user.UCode)
	if err != nil {
		log.Printf("[MaintenanceJob] 查询订单失败: uCode=%d, err=%v", user.UCode, err)
		return false
	}
	if len(orders) == 0 {
		return false
	}

	used := j.ledger.GetBalance(ctx, user.UCode, model.SlugCapping)

	changed := false
	// ListByUCode 按创建倒序，倒着走即从最早订单开始消耗额度
	for i := len(orders) - 1; i >= 0; i-- {
		order := orders[i]
		orderCap := order.Amount * user.Capping / 100
		if orderCap <= 0 {
			continue
		}

		target := model.PayOutEligible
		if used >= orderCap {
			target = model.PayOutExcluded
			used -= orderCap
		} else {
			used = 0
		}

		if order.PayOutStatus == target {
			continue
		}
		if err := j.orderRepo.UpdatePayOutStatus(ctx, order.ID, target); err != nil {
			log.Printf("[MaintenanceJob] 更新订单排除位失败: orderId=%d, err=%v", order.ID, err)
			continue
		}
		changed = true
	}
	return changed
}

// RunStatusSweep 封顶耗尽的用户整体降级
func (j *MaintenanceJob) RunStatusSweep(ctx context.Context) {
	log.Println("[MaintenanceJob] 用户状态清洗开始")

	batchSize := j.cfg.Business.JobBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var deactivated int64
	offset := 0
	for {
		users, err := j.userRepo.ListActiveUsers(ctx, batchSize, offset)
		if err != nil {
			log.Printf("[MaintenanceJob] 查询用户失败: %v", err)
			return
		}
		if len(users) == 0 {
			break
		}

		forEachConcurrent(j.cfg.Business.JobWorkers, len(users), func(i int) {
			user := users[i]
			if user.Role == model.RoleAdmin || user.Capping <= 0 {
				return
			}

			remaining, err := j.business.RemainingCap(ctx, user.UCode)
			if err != nil {
				log.Printf("[MaintenanceJob] 计算剩余额度失败: uCode=%d, err=%v", user.UCode, err)
				return
			}
			if remaining > 0 {
				return
			}

			if err := j.userRepo.Deactivate(ctx, user.UCode); err != nil {
				log.Printf("[MaintenanceJob] 用户降级失败: uCode=%d, err=%v", user.UCode, err)
				return
			}
			if err := j.orderRepo.ExcludeAllByUCode(ctx, user.UCode); err != nil {
				log.Printf("[MaintenanceJob] 剔除订单失败: uCode=%d, err=%v", user.UCode, err)
			}
			atomic.AddInt64(&deactivated, 1)
			log.Printf("[MaintenanceJob] 用户封顶耗尽已降级: uCode=%d", user.UCode)
		})

		if len(users) < batchSize {
			break
		}
		offset += batchSize
	}

	log.Printf("[MaintenanceJob] 用户状态清洗结束: 降级 %d 个用户", deactivated)
}
