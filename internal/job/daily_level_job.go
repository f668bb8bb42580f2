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

// DailyLevelJob 每日层级分发
//
// 以每个激活用户为源头，沿其激活上级链逐层发固定额。
// 按日幂等，同一 (受益人, 源头, 层级) 当天只发一次
type DailyLevelJob struct {
	cfg      *config.Config
	income   *service.IncomeService
	userRepo *repository.UserRepository
}

func NewDailyLevelJob(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *DailyLevelJob {
	return &DailyLevelJob{
		cfg:      cfg,
		income:   service.NewIncomeService(db, cfg, redisClient),
		userRepo: repository.NewUserRepository(db),
	}
}

func (j *DailyLevelJob) Run(ctx context.Context) {
	log.Println("[DailyLevelJob] 每日层级分发开始")

	batchSize := j.cfg.Business.JobBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var failCount int64
	offset := 0
	for {
		users, err := j.userRepo.ListActiveUsers(ctx, batchSize, offset)
		if err != nil {
			log.Printf("[DailyLevelJob] 查询用户失败: %v", err)
			return
		}
		if len(users) == 0 {
			break
		}

		forEachConcurrent(j.cfg.Business.JobWorkers, len(users), func(i int) {
			user := users[i]
			if err := j.income.DistributeDailyLevelForUser(ctx, user.UCode); err != nil {
				atomic.AddInt64(&failCount, 1)
				log.Printf("[DailyLevelJob] 用户处理失败: uCode=%d, err=%v", user.UCode, err)
			}
		})

		if len(users) < batchSize {
			break
		}
		offset += batchSize
	}

	log.Printf("[DailyLevelJob] 每日层级分发结束: 失败 %d 个用户", failCount)
}
