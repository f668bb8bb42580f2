package job

import (
	"context"
	"log"
	"time"

	"mlmpay/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Scheduler 分发任务调度器
//
// 所有分发任务都是幂等的整批扫描，错过一次触发或重复触发都
// 不会造成多发/漏发，crash 后重跑即可恢复。时区跟配置走，
// 默认本地时区
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *Scheduler {
	location := time.Local
	if cfg.Cron.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Cron.Timezone)
		if err != nil {
			log.Fatalf("加载时区失败: %s, err=%v", cfg.Cron.Timezone, err)
		}
		location = loc
	}

	c := cron.New(cron.WithLocation(location))

	roiJob := NewROIJob(db, cfg, redisClient)
	dailyLevelJob := NewDailyLevelJob(db, cfg, redisClient)
	rewardJob := NewRewardJob(db, cfg, redisClient)
	growthBoosterJob := NewGrowthBoosterJob(db, cfg, redisClient)
	maintenanceJob := NewMaintenanceJob(db, cfg)

	entries := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"roi", cfg.Cron.ROI, roiJob.Run},
		{"daily_level", cfg.Cron.DailyLevel, dailyLevelJob.Run},
		{"reward", cfg.Cron.Reward, rewardJob.Run},
		{"growth_booster", cfg.Cron.GrowthBooster, growthBoosterJob.Run},
		{"payout_sweep", cfg.Cron.PayoutSweep, maintenanceJob.RunPayoutSweep},
		{"status_sweep", cfg.Cron.StatusSweep, maintenanceJob.RunStatusSweep},
	}

	for _, entry := range entries {
		if entry.spec == "" {
			log.Printf("[Scheduler] 任务未配置 cron 表达式，跳过: %s", entry.name)
			continue
		}
		run := entry.run
		name := entry.name
		if _, err := c.AddFunc(entry.spec, func() {
			run(context.Background())
		}); err != nil {
			log.Fatalf("[Scheduler] 注册任务失败: %s, spec=%s, err=%v", name, entry.spec, err)
		}
		log.Printf("[Scheduler] 任务已注册: %s, spec=%s", name, entry.spec)
	}

	return &Scheduler{cron: c}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] 调度器启动")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Scheduler] 调度器已停止")
}
