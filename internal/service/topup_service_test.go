package service_test

import (
	"context"
	"errors"
	"testing"

	"mlmpay/internal/model"
	"mlmpay/internal/repository"
	"mlmpay/internal/service"
	"mlmpay/internal/testutil"
)

func TestTopupActivatesAndRegistersPool(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	user := testutil.CreateUser(t, db, 1, nil, false, 0)
	testutil.SetBalance(t, db, 1, model.SlugFundWallet, 1000)
	testutil.CreatePin(t, db, "starter", 500, 500, 2, "autopool")

	topup := service.NewTopupService(db, cfg, nil)
	order, err := topup.Topup(ctx, user.UCode, "starter")
	if err != nil {
		t.Fatalf("购买失败: %v", err)
	}

	if order.Status != model.OrderStatusActive || order.BV != 500 {
		t.Fatalf("订单状态/BV 不对: %+v", order)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugFundWallet); got != 500 {
		t.Fatalf("扣款后资金钱包应为 500, got %v", got)
	}

	var reloaded model.User
	if err := db.Where("u_code = ?", 1).First(&reloaded).Error; err != nil {
		t.Fatalf("查用户失败: %v", err)
	}
	if reloaded.ActiveStatus != 1 {
		t.Fatal("首次购买应激活账号")
	}

	// 首单进池
	var poolCount int64
	db.Model(&model.PoolNode{}).Where("u_code = ?", 1).Count(&poolCount)
	if poolCount != 1 {
		t.Fatalf("首单应注册进矩阵池, got %d", poolCount)
	}

	// 第二单不再重复进池
	if _, err := topup.Topup(ctx, user.UCode, "starter"); err != nil {
		t.Fatalf("二次购买失败: %v", err)
	}
	db.Model(&model.PoolNode{}).Where("u_code = ?", 1).Count(&poolCount)
	if poolCount != 1 {
		t.Fatalf("二次购买不应重复进池, got %d", poolCount)
	}
}

func TestTopupInsufficientFunds(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, false, 0)
	testutil.SetBalance(t, db, 1, model.SlugFundWallet, 100)
	testutil.CreatePin(t, db, "pro", 500, 500, 2, "")

	topup := service.NewTopupService(db, cfg, nil)
	_, err := topup.Topup(context.Background(), 1, "pro")
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("余额不足应被拒绝, got %v", err)
	}

	var orderCount int64
	db.Model(&model.Order{}).Count(&orderCount)
	if orderCount != 0 {
		t.Fatalf("失败购买不应留下订单, got %d", orderCount)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugFundWallet); got != 100 {
		t.Fatalf("失败后余额应保持 100, got %v", got)
	}
}

func TestTopupUnknownPin(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testutil.NewTestConfig()
	testutil.CreateUser(t, db, 1, nil, false, 0)

	topup := service.NewTopupService(db, cfg, nil)
	_, err := topup.Topup(context.Background(), 1, "no_such_pin")
	if !errors.Is(err, service.ErrPinNotFound) {
		t.Fatalf("未知套餐应报错, got %v", err)
	}
}
