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

func TestAdjustBalanceInsufficientFunds(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.SetBalance(t, db, 1, model.SlugMainWallet, 100)

	ledger := service.NewLedgerService(db)
	result, err := ledger.AdjustBalance(ctx, nil, 1, model.SlugMainWallet, -150)
	if err != nil {
		t.Fatalf("余额不足不应走 error: %v", err)
	}
	if result.Applied {
		t.Fatal("超扣不应生效")
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugMainWallet); got != 100 {
		t.Fatalf("失败后余额应保持 100, got %v", got)
	}
}

func TestAdjustBalanceUnknownSlug(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.CreateUser(t, db, 1, nil, true, 0)

	ledger := service.NewLedgerService(db)
	_, err := ledger.AdjustBalance(context.Background(), nil, 1, "no_such_wallet", 10)
	if !errors.Is(err, repository.ErrWalletSettingNotFound) {
		t.Fatalf("未注册 slug 应报配置错误, got %v", err)
	}
}

func TestAdjustBalanceLazyWallet(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.CreateUser(t, db, 7, nil, true, 0)

	ledger := service.NewLedgerService(db)
	result, err := ledger.AdjustBalance(context.Background(), nil, 7, model.SlugFundWallet, 30)
	if err != nil {
		t.Fatalf("首次入账应自动建钱包: %v", err)
	}
	if !result.Applied || result.NewBalance != 30 {
		t.Fatalf("入账后余额应为 30, got %+v", result)
	}
}

func TestCreditWithFanOut(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.CreateUser(t, db, 2, nil, true, 0)

	ledger := service.NewLedgerService(db)
	if err := ledger.CreditWithFanOut(ctx, nil, 2, model.SlugROI, 20); err != nil {
		t.Fatalf("联动入账失败: %v", err)
	}

	if got := testutil.GetBalance(t, db, 2, model.SlugROI); got != 20 {
		t.Fatalf("roi 槽位应为 20, got %v", got)
	}
	if got := testutil.GetBalance(t, db, 2, model.SlugMainWallet); got != 20 {
		t.Fatalf("联动主钱包应为 20, got %v", got)
	}
}

func TestGetBalancesByType(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.CreateUser(t, db, 3, nil, true, 0)
	testutil.SetBalance(t, db, 3, model.SlugROI, 10)
	testutil.SetBalance(t, db, 3, model.SlugDailyLevel, 15)

	ledger := service.NewLedgerService(db)
	total, err := ledger.GetBalancesByType(ctx, 3, model.WalletTypeIncome)
	if err != nil {
		t.Fatalf("按类型汇总失败: %v", err)
	}
	if total != 25 {
		t.Fatalf("income 类汇总应为 25, got %v", total)
	}
}
