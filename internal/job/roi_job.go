package job

import (
	"context"
	"log"
	"sync/atomic"

	"mlmpay/internal/config"
	"mlmpay/internal/repository"
	"mlmpay/internal/service"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ROIJob 每日 ROI 分发
//
// 数据源是全部可分发订单（status=1 且未被排除）。逐单发放，
// 单笔失败只记日志。按日幂等：当天重跑不会对同一订单发第二次
type ROIJob struct {
	cfg       *config.Config
	income    *service.IncomeService
	orderRepo *repository.OrderRepository
}

func NewROIJob(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *ROIJob {
	return &ROIJob{
		cfg:       cfg,
		income:    service.NewIncomeService(db, cfg, redisClient),
		orderRepo: repository.NewOrderRepository(db),
	}
}

func (j *ROIJob) Run(ctx context.Context) {
	log.Println("[ROIJob] ROI 分发开始")

	batchSize := j.cfg.Business.JobBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var paidCount, failCount int64
	offset := 0
	for {
		orders, err := j.orderRepo.ListPayoutEligible(ctx, batchSize, offset)
		if err != nil {
			log.Printf("[ROIJob] 查询订单失败: %v", err)
			return
		}
		if len(orders) == 0 {
			break
		}

		forEachConcurrent(j.cfg.Business.JobWorkers, len(orders), func(i int) {
			order := orders[i]
			paid, err := j.income.DistributeROIForOrder(ctx, order)
			if err != nil {
				atomic.AddInt64(&failCount, 1)
				log.Printf("[ROIJob] 订单发放失败: orderId=%d, uCode=%d, err=%v", order.ID, order.UCode, err)
				return
			}
			if paid {
				atomic.AddInt64(&paidCount, 1)
			}
		})

		if len(orders) < batchSize {
			break
		}
		offset += batchSize
	}

	log.Printf("[ROIJob] ROI 分发结束: 发放 %d 笔, 失败 %d 笔", paidCount, failCount)
}
