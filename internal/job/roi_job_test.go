package job_test

import (
	"context"
	"testing"

	"mlmpay/internal/job"
	"mlmpay/internal/model"
	"mlmpay/internal/testutil"
)

func TestROIJobBatchIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	pin := testutil.CreatePin(t, db, "starter", 1000, 1000, 2, "")
	for uCode := int64(1); uCode <= 3; uCode++ {
		testutil.CreateUser(t, db, uCode, nil, true, 0)
		testutil.CreateOrder(t, db, uCode, pin.ID, 1000, 1000)
	}
	// 4 号订单已被排除，不参与分发
	testutil.CreateUser(t, db, 4, nil, true, 0)
	order := testutil.CreateOrder(t, db, 4, pin.ID, 1000, 1000)
	if err := db.Model(&model.Order{}).Where("id = ?", order.ID).
		Update("pay_out_status", model.PayOutExcluded).Error; err != nil {
		t.Fatalf("标记失败: %v", err)
	}

	roiJob := job.NewROIJob(db, cfg, nil)
	roiJob.Run(ctx)

	var txCount int64
	db.Model(&model.IncomeTransaction{}).Where("source = ?", model.SourceROI).Count(&txCount)
	if txCount != 3 {
		t.Fatalf("应产生 3 条 ROI 流水, got %d", txCount)
	}
	for uCode := int64(1); uCode <= 3; uCode++ {
		if got := testutil.GetBalance(t, db, uCode, model.SlugMainWallet); got != 20 {
			t.Fatalf("uCode=%d 主钱包应为 20, got %v", uCode, got)
		}
	}
	if got := testutil.GetBalance(t, db, 4, model.SlugMainWallet); got != 0 {
		t.Fatalf("被排除订单不应发放, got %v", got)
	}

	// 当天重跑整批任务：零新增
	roiJob.Run(ctx)
	db.Model(&model.IncomeTransaction{}).Where("source = ?", model.SourceROI).Count(&txCount)
	if txCount != 3 {
		t.Fatalf("重跑后仍应是 3 条流水, got %d", txCount)
	}
}
