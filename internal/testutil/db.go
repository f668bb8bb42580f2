package testutil

import (
	"context"
	"fmt"
	"testing"

	"mlmpay/internal/config"
	"mlmpay/internal/model"
	"mlmpay/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB 内存 sqlite 测试库，带全量表结构和默认钱包注册表
//
// 【关键点】连接数压到 1：内存库按连接隔离，多连接会各自看到
// 一个空库
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层 DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.User{},
		&model.Wallet{},
		&model.WalletSetting{},
		&model.Order{},
		&model.PinSetting{},
		&model.IncomeTransaction{},
		&model.FundTransaction{},
		&model.WithdrawalAccount{},
		&model.Plan{},
		&model.RankSetting{},
		&model.Rank{},
		&model.PoolNode{},
		&model.OutboxMessage{},
	)
	if err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}

	if err := repository.NewWalletSettingRepository(db).Seed(context.Background()); err != nil {
		t.Fatalf("播种钱包注册表失败: %v", err)
	}
	return db
}

// NewTestConfig 业务参数与默认配置文件保持一致
func NewTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				IncomeEvent: "mlm_income_event",
				FundEvent:   "mlm_fund_event",
			},
		},
		Business: config.BusinessConfig{
			TransferChargePercent:   10,
			TransferMinimum:         10,
			ConvertChargePercent:    0,
			WithdrawalChargePercent: 5,
			CappingUnlimited:        999999999999,
			MaxTeamLevels:           10,
			LevelROIEnabled:         false,
			LevelROIDepth:           7,
			AutopoolLegs:            3,
			AutopoolLevels:          10,
			JobWorkers:              2,
			JobBatchSize:            50,
			MaxRetryCount:           3,
		},
	}
}

// CreateUser 建用户，uCode 由调用方指定便于断言
func CreateUser(t *testing.T, db *gorm.DB, uCode int64, sponsor *int64, active bool, capping float64) *model.User {
	t.Helper()

	activeStatus := 0
	if active {
		activeStatus = 1
	}
	user := &model.User{
		UCode:        uCode,
		SponsorUCode: sponsor,
		Username:     fmt.Sprintf("user%d", uCode),
		Role:         model.RoleUser,
		ActiveStatus: activeStatus,
		Capping:      capping,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("创建用户失败: uCode=%d, err=%v", uCode, err)
	}
	return user
}

// CreatePin 建套餐定义
func CreatePin(t *testing.T, db *gorm.DB, slug string, amount, bv, roi float64, poolType string) *model.PinSetting {
	t.Helper()

	pin := &model.PinSetting{
		Slug:     slug,
		Name:     slug,
		Amount:   amount,
		BV:       bv,
		ROI:      roi,
		PoolType: poolType,
		Status:   1,
	}
	if err := db.Create(pin).Error; err != nil {
		t.Fatalf("创建套餐失败: slug=%s, err=%v", slug, err)
	}
	return pin
}

// CreateOrder 建激活订单
func CreateOrder(t *testing.T, db *gorm.DB, uCode, pinID int64, amount, bv float64) *model.Order {
	t.Helper()

	order := &model.Order{
		UCode:        uCode,
		PinID:        pinID,
		Amount:       amount,
		BV:           bv,
		Status:       model.OrderStatusActive,
		PayOutStatus: model.PayOutEligible,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("创建订单失败: uCode=%d, err=%v", uCode, err)
	}
	return order
}

// CreatePlan 建分发计划
func CreatePlan(t *testing.T, db *gorm.DB, slug string, values []float64) {
	t.Helper()

	plan := &model.Plan{Slug: slug, Name: slug, Value: values, Status: 1}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("创建计划失败: slug=%s, err=%v", slug, err)
	}
}

// CreateRankSetting 建职级配置
func CreateRankSetting(t *testing.T, db *gorm.DB, slug string, values []float64) {
	t.Helper()

	setting := &model.RankSetting{Slug: slug, Name: slug, Value: values, Status: 1}
	if err := db.Create(setting).Error; err != nil {
		t.Fatalf("创建职级配置失败: slug=%s, err=%v", slug, err)
	}
}

// SetBalance 直接把某个 slug 槽位设置成指定余额（测试前置状态用）
func SetBalance(t *testing.T, db *gorm.DB, uCode int64, slug string, amount float64) {
	t.Helper()

	ctx := context.Background()
	settingRepo := repository.NewWalletSettingRepository(db)
	walletRepo := repository.NewWalletRepository(db)

	setting, err := settingRepo.Resolve(ctx, nil, slug)
	if err != nil {
		t.Fatalf("解析钱包 slug 失败: %s, err=%v", slug, err)
	}
	if _, err := walletRepo.GetOrCreate(ctx, nil, uCode, fmt.Sprintf("user%d", uCode)); err != nil {
		t.Fatalf("创建钱包失败: uCode=%d, err=%v", uCode, err)
	}
	err = db.Model(&model.Wallet{}).
		Where("u_code = ?", uCode).
		Update(setting.Column, amount).Error
	if err != nil {
		t.Fatalf("设置余额失败: uCode=%d, slug=%s, err=%v", uCode, slug, err)
	}
}

// GetBalance 读某个 slug 槽位余额
func GetBalance(t *testing.T, db *gorm.DB, uCode int64, slug string) float64 {
	t.Helper()

	ctx := context.Background()
	setting, err := repository.NewWalletSettingRepository(db).Resolve(ctx, nil, slug)
	if err != nil {
		t.Fatalf("解析钱包 slug 失败: %s, err=%v", slug, err)
	}
	balance, err := repository.NewWalletRepository(db).GetColumn(ctx, nil, uCode, setting.Column)
	if err != nil {
		t.Fatalf("读余额失败: uCode=%d, slug=%s, err=%v", uCode, slug, err)
	}
	return balance
}
