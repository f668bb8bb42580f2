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

// GrowthBoosterJob 成长加速奖分发（每周）
// 逐个激活用户核对各层业务量阈值，每层终身发一次
type GrowthBoosterJob struct {
	cfg      *config.Config
	income   *service.IncomeService
	userRepo *repository.UserRepository
}

func NewGrowthBoosterJob(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *GrowthBoosterJob {
	return &GrowthBoosterJob{
		cfg:      cfg,
		income:   service.NewIncomeService(db, cfg, redisClient),
		userRepo: repository.NewUserRepository(db),
	}
}

func (j *GrowthBoosterJob) Run(ctx context.Context) {
	log.Println("[GrowthBoosterJob] 成长加速奖分发开始")

	batchSize := j.cfg.Business.JobBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var failCount int64
	offset := 0
	for {
		users, err := j.userRepo.ListActiveUsers(ctx, batchSize, offset)
		if err != nil {
			log.Printf("[GrowthBoosterJob] 查询用户失败: %v", err)
			return
		}
		if len(users) == 0 {
			break
		}

		forEachConcurrent(j.cfg.Business.JobWorkers, len(users), func(i int) {
			user := users[i]
			if err := j.income.DistributeGrowthBoosterForUser(ctx, user.UCode); err != nil {
				atomic.AddInt64(&failCount, 1)
				log.Printf("[GrowthBoosterJob] 用户处理失败: uCode=%d, err=%v", user.UCode, err)
			}
		})

		if len(users) < batchSize {
			break
		}
		offset += batchSize
	}

	log.Printf("[GrowthBoosterJob] 成长加速奖分发结束: 失败 %d 个用户", failCount)
}
