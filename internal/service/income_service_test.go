package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"mlmpay/internal/model"
	"mlmpay/internal/service"
	"mlmpay/internal/testutil"
)

func TestROIDistributionAndIdempotency(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 0) // capping 0 即无限
	pin := testutil.CreatePin(t, db, "starter", 1000, 1000, 2, "")
	order := testutil.CreateOrder(t, db, 1, pin.ID, 1000, 1000)

	income := service.NewIncomeService(db, cfg, nil)
	paid, err := income.DistributeROIForOrder(ctx, order)
	if err != nil {
		t.Fatalf("ROI 发放失败: %v", err)
	}
	if !paid {
		t.Fatal("首次发放应生效")
	}

	// payable = 1000 × 2% = 20，来源槽位、主钱包、封顶用量同步入账
	if got := testutil.GetBalance(t, db, 1, model.SlugROI); got != 20 {
		t.Fatalf("roi 槽位应为 20, got %v", got)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugMainWallet); got != 20 {
		t.Fatalf("主钱包应为 20, got %v", got)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugCapping); got != 20 {
		t.Fatalf("封顶用量应为 20, got %v", got)
	}

	var txCount int64
	db.Model(&model.IncomeTransaction{}).Where("u_code = ? AND source = ?", 1, model.SourceROI).Count(&txCount)
	if txCount != 1 {
		t.Fatalf("应只有 1 条收益流水, got %d", txCount)
	}

	// 当天重跑：幂等命中，不产生新流水
	paid, err = income.DistributeROIForOrder(ctx, order)
	if err != nil {
		t.Fatalf("重跑失败: %v", err)
	}
	if paid {
		t.Fatal("当天重跑不应再次发放")
	}
	db.Model(&model.IncomeTransaction{}).Where("u_code = ? AND source = ?", 1, model.SourceROI).Count(&txCount)
	if txCount != 1 {
		t.Fatalf("重跑后仍应只有 1 条流水, got %d", txCount)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugMainWallet); got != 20 {
		t.Fatalf("重跑后主钱包应保持 20, got %v", got)
	}
}

func TestROISkipsInactiveUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, false, 0)
	pin := testutil.CreatePin(t, db, "starter", 1000, 1000, 2, "")
	order := testutil.CreateOrder(t, db, 1, pin.ID, 1000, 1000)

	income := service.NewIncomeService(db, cfg, nil)
	paid, err := income.DistributeROIForOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("非激活用户应正常跳过: %v", err)
	}
	if paid {
		t.Fatal("非激活用户不应发放")
	}
}

func TestCappingClampsPayout(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	// capping=50%，终身套餐 1000 => 总额度 500；已用 480 => 剩余 20
	testutil.CreateUser(t, db, 1, nil, true, 50)
	pin := testutil.CreatePin(t, db, "pro", 1000, 1000, 3, "")
	order := testutil.CreateOrder(t, db, 1, pin.ID, 1000, 1000)
	testutil.SetBalance(t, db, 1, model.SlugCapping, 480)

	income := service.NewIncomeService(db, cfg, nil)
	paid, err := income.DistributeROIForOrder(ctx, order)
	if err != nil {
		t.Fatalf("ROI 发放失败: %v", err)
	}
	if !paid {
		t.Fatal("剩余额度内应发放")
	}

	// 应发 30 被截断到 20
	if got := testutil.GetBalance(t, db, 1, model.SlugMainWallet); got != 20 {
		t.Fatalf("截断后主钱包应为 20, got %v", got)
	}
	var trans model.IncomeTransaction
	if err := db.Where("u_code = ? AND source = ?", 1, model.SourceROI).First(&trans).Error; err != nil {
		t.Fatalf("查流水失败: %v", err)
	}
	if trans.Amount != 20 {
		t.Fatalf("流水金额应为截断后的 20, got %v", trans.Amount)
	}
	if trans.PostWalletBalance-trans.CurrentWalletBalance != trans.Amount {
		t.Fatalf("流水前后快照差应等于金额: %+v", trans)
	}
}

func TestCappingExhaustedSkips(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 50)
	pin := testutil.CreatePin(t, db, "pro", 1000, 1000, 2, "")
	order := testutil.CreateOrder(t, db, 1, pin.ID, 1000, 1000)
	testutil.SetBalance(t, db, 1, model.SlugCapping, 500)

	income := service.NewIncomeService(db, cfg, nil)
	paid, err := income.DistributeROIForOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("额度耗尽应正常跳过: %v", err)
	}
	if paid {
		t.Fatal("额度耗尽不应发放")
	}
}

func TestPayIncomeConcurrentCapping(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	// capping=50%，终身套餐 1000 => 总额度 500；已用 480 => 剩余 20
	testutil.CreateUser(t, db, 1, nil, true, 50)
	pin := testutil.CreatePin(t, db, "pro", 1000, 1000, 3, "")
	testutil.CreateOrder(t, db, 1, pin.ID, 1000, 1000)
	testutil.SetBalance(t, db, 1, model.SlugCapping, 480)

	income := service.NewIncomeService(db, cfg, nil)

	// 两笔并发发放打同一个受益人，各自应发 30：
	// 受益人锁把两笔串行化，先到的吃掉剩余 20，后到的读到 0 跳过
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = income.PayIncome(ctx, &service.IncomePayout{
				UCode:     1,
				PinID:     pin.ID,
				Source:    model.SourceROI,
				Reference: fmt.Sprintf("order:%d", 100+i),
				Amount:    30,
				Guard:     service.GuardDaily,
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("并发发放第 %d 笔报错: %v", i, err)
		}
	}

	if got := testutil.GetBalance(t, db, 1, model.SlugCapping); got != 500 {
		t.Fatalf("封顶用量应正好打满 500, got %v", got)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugMainWallet); got != 20 {
		t.Fatalf("并发发放合计不应超过剩余额度 20, got %v", got)
	}

	var list []model.IncomeTransaction
	if err := db.Where("u_code = ?", 1).Find(&list).Error; err != nil {
		t.Fatalf("查流水失败: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("只应实际发放 1 笔, got %d", len(list))
	}
	for _, trans := range list {
		if trans.PostWalletBalance-trans.CurrentWalletBalance != trans.Amount {
			t.Fatalf("流水前后快照差应等于金额: %+v", trans)
		}
	}
}

func TestLevelROIWalksActiveUpline(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()
	cfg.Business.LevelROIEnabled = true
	cfg.Business.LevelROIDepth = 2

	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, ptr(1), true, 0)
	testutil.CreateUser(t, db, 3, ptr(2), true, 0)
	testutil.CreatePlan(t, db, model.PlanLevelROI, []float64{1, 0.5})

	pin := testutil.CreatePin(t, db, "starter", 1000, 1000, 2, "")
	order := testutil.CreateOrder(t, db, 3, pin.ID, 1000, 1000)

	income := service.NewIncomeService(db, cfg, nil)
	if _, err := income.DistributeROIForOrder(ctx, order); err != nil {
		t.Fatalf("ROI 发放失败: %v", err)
	}

	// 2 号是第 1 层：1000 × 1% = 10；1 号是第 2 层：1000 × 0.5% = 5
	if got := testutil.GetBalance(t, db, 2, model.SlugLevelROI); got != 10 {
		t.Fatalf("第 1 层层级 ROI 应为 10, got %v", got)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugLevelROI); got != 5 {
		t.Fatalf("第 2 层层级 ROI 应为 5, got %v", got)
	}
}

func TestDailyLevelDirectGate(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	// 链：3 -> 2 -> 1。2 号有 1 个激活直推，1 号也只有 1 个
	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, ptr(1), true, 0)
	testutil.CreateUser(t, db, 3, ptr(2), true, 0)
	testutil.CreatePlan(t, db, model.PlanDailyLevel, []float64{5, 3})
	testutil.CreatePlan(t, db, model.PlanDailyLevelReqDirect, []float64{1, 2})

	income := service.NewIncomeService(db, cfg, nil)
	if err := income.DistributeDailyLevelForUser(ctx, 3); err != nil {
		t.Fatalf("每日层级发放失败: %v", err)
	}

	// 2 号在第 1 层，直推 1 >= 1，发 5；1 号在第 2 层，直推 1 < 2，跳过
	if got := testutil.GetBalance(t, db, 2, model.SlugDailyLevel); got != 5 {
		t.Fatalf("2 号应得 5, got %v", got)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugDailyLevel); got != 0 {
		t.Fatalf("1 号未达标不应发放, got %v", got)
	}
}

func TestRewardGuardedByRankRecord(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, ptr(1), true, 0)
	testutil.CreateUser(t, db, 3, ptr(1), true, 0)
	testutil.CreateRankSetting(t, db, model.RankReward, []float64{100})
	testutil.CreateRankSetting(t, db, model.RankRewardReqTeam, []float64{2})

	income := service.NewIncomeService(db, cfg, nil)
	if err := income.DistributeRewardForUser(ctx, 1); err != nil {
		t.Fatalf("职级奖励失败: %v", err)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugReward); got != 100 {
		t.Fatalf("达标应发 100, got %v", got)
	}

	var rankCount int64
	db.Model(&model.Rank{}).Where("u_code = ?", 1).Count(&rankCount)
	if rankCount != 1 {
		t.Fatalf("应落 1 条职级记录, got %d", rankCount)
	}

	// 重跑：职级记录挡住，不重复发
	if err := income.DistributeRewardForUser(ctx, 1); err != nil {
		t.Fatalf("重跑失败: %v", err)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugReward); got != 100 {
		t.Fatalf("重跑不应再发, got %v", got)
	}
}

func TestGrowthBoosterLevelBusinessGate(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, ptr(1), true, 0)
	pin := testutil.CreatePin(t, db, "starter", 500, 500, 0, "")
	testutil.CreateOrder(t, db, 2, pin.ID, 500, 500)

	testutil.CreateRankSetting(t, db, model.RankGrowthBooster, []float64{50})
	testutil.CreateRankSetting(t, db, model.RankGrowthBoosterReqLevelBusiness, []float64{400})

	income := service.NewIncomeService(db, cfg, nil)
	if err := income.DistributeGrowthBoosterForUser(ctx, 1); err != nil {
		t.Fatalf("成长加速奖失败: %v", err)
	}
	// 第 1 层业务量 500 >= 400，发 50
	if got := testutil.GetBalance(t, db, 1, model.SlugGrowthBooster); got != 50 {
		t.Fatalf("达标应发 50, got %v", got)
	}

	// 终身一次：重跑不再发
	if err := income.DistributeGrowthBoosterForUser(ctx, 1); err != nil {
		t.Fatalf("重跑失败: %v", err)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugGrowthBooster); got != 50 {
		t.Fatalf("重跑不应再发, got %v", got)
	}
}
