package job_test

import (
	"context"
	"testing"

	"mlmpay/internal/job"
	"mlmpay/internal/model"
	"mlmpay/internal/testutil"
)

func TestPayoutSweepExcludesExhaustedOrders(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 50)
	pin := testutil.CreatePin(t, db, "starter", 100, 100, 0, "")
	older := testutil.CreateOrder(t, db, 1, pin.ID, 100, 100)
	newer := testutil.CreateOrder(t, db, 1, pin.ID, 100, 100)

	// 每单额度 100 × 50% = 50，已用 60：最早一单被吃满，第二单还剩
	testutil.SetBalance(t, db, 1, model.SlugCapping, 60)

	maintenance := job.NewMaintenanceJob(db, cfg)
	maintenance.RunPayoutSweep(ctx)

	var reloaded model.Order
	if err := db.First(&reloaded, older.ID).Error; err != nil {
		t.Fatalf("查订单失败: %v", err)
	}
	if reloaded.PayOutStatus != model.PayOutExcluded {
		t.Fatalf("最早订单应被排除, got %d", reloaded.PayOutStatus)
	}
	reloaded = model.Order{}
	if err := db.First(&reloaded, newer.ID).Error; err != nil {
		t.Fatalf("查订单失败: %v", err)
	}
	if reloaded.PayOutStatus != model.PayOutEligible {
		t.Fatalf("第二单应保持可分发, got %d", reloaded.PayOutStatus)
	}
}

func TestPayoutSweepRestoresEligibility(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 50)
	pin := testutil.CreatePin(t, db, "starter", 100, 100, 0, "")
	order := testutil.CreateOrder(t, db, 1, pin.ID, 100, 100)

	// 人工误标排除、额度未耗尽的订单被清洗回可分发
	if err := db.Model(&model.Order{}).Where("id = ?", order.ID).
		Update("pay_out_status", model.PayOutExcluded).Error; err != nil {
		t.Fatalf("标记失败: %v", err)
	}

	maintenance := job.NewMaintenanceJob(db, cfg)
	maintenance.RunPayoutSweep(ctx)

	var reloaded model.Order
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("查订单失败: %v", err)
	}
	if reloaded.PayOutStatus != model.PayOutEligible {
		t.Fatalf("额度未耗尽的订单应恢复可分发, got %d", reloaded.PayOutStatus)
	}
}

func TestStatusSweepDeactivatesExhaustedUsers(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	// 1 号额度耗尽；2 号没设封顶，不受影响
	testutil.CreateUser(t, db, 1, nil, true, 50)
	testutil.CreateUser(t, db, 2, nil, true, 0)
	pin := testutil.CreatePin(t, db, "starter", 100, 100, 0, "")
	testutil.CreateOrder(t, db, 1, pin.ID, 100, 100)
	testutil.CreateOrder(t, db, 2, pin.ID, 100, 100)
	testutil.SetBalance(t, db, 1, model.SlugCapping, 50)

	maintenance := job.NewMaintenanceJob(db, cfg)
	maintenance.RunStatusSweep(ctx)

	var user model.User
	if err := db.Where("u_code = ?", 1).First(&user).Error; err != nil {
		t.Fatalf("查用户失败: %v", err)
	}
	if user.ActiveStatus != 0 {
		t.Fatal("额度耗尽的用户应被停用")
	}

	var excluded int64
	db.Model(&model.Order{}).
		Where("u_code = ? AND pay_out_status = ?", 1, model.PayOutExcluded).
		Count(&excluded)
	if excluded != 1 {
		t.Fatalf("停用用户的订单应整体排除, got %d", excluded)
	}

	user = model.User{}
	if err := db.Where("u_code = ?", 2).First(&user).Error; err != nil {
		t.Fatalf("查用户失败: %v", err)
	}
	if user.ActiveStatus != 1 {
		t.Fatal("未设封顶的用户不应被停用")
	}
}
