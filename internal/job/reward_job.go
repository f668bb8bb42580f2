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

// RewardJob 职级奖励分发
//
// 逐个激活用户核对各层激活团队规模，新达标的职级一次性发奖
// 并落职级记录。幂等靠职级记录本身，不靠流水
type RewardJob struct {
	cfg      *config.Config
	income   *service.IncomeService
	userRepo *repository.UserRepository
}

func NewRewardJob(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *RewardJob {
	return &RewardJob{
		cfg:      cfg,
		income:   service.NewIncomeService(db, cfg, redisClient),
		userRepo: repository.NewUserRepository(db),
	}
}

func (j *RewardJob) Run(ctx context.Context) {
	log.Println("[RewardJob] 职级奖励分发开始")

	batchSize := j.cfg.Business.JobBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var failCount int64
	offset := 0
	for {
		users, err := j.userRepo.ListActiveUsers(ctx, batchSize, offset)
		if err != nil {
			log.Printf("[RewardJob] 查询用户失败: %v", err)
			return
		}
		if len(users) == 0 {
			break
		}

		forEachConcurrent(j.cfg.Business.JobWorkers, len(users), func(i int) {
			user := users[i]
			if err := j.income.DistributeRewardForUser(ctx, user.UCode); err != nil {
				atomic.AddInt64(&failCount, 1)
				log.Printf("[RewardJob] 用户处理失败: uCode=%d, err=%v", user.UCode, err)
			}
		})

		if len(users) < batchSize {
			break
		}
		offset += batchSize
	}

	log.Printf("[RewardJob] 职级奖励分发结束: 失败 %d 个用户", failCount)
}
