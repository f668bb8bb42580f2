package repository_test

import (
	"context"
	"errors"
	"testing"

	"mlmpay/internal/repository"
	"mlmpay/internal/testutil"
)

func TestAdjustColumnRejectsOverdraft(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	repo := repository.NewWalletRepository(db)

	if _, err := repo.GetOrCreate(ctx, nil, 1001, "user1001"); err != nil {
		t.Fatalf("建钱包失败: %v", err)
	}
	if err := repo.AdjustColumn(ctx, nil, 1001, "c1", 100); err != nil {
		t.Fatalf("入账失败: %v", err)
	}

	err := repo.AdjustColumn(ctx, nil, 1001, "c1", -150)
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("超扣应返回余额不足, got %v", err)
	}

	balance, err := repo.GetColumn(ctx, nil, 1001, "c1")
	if err != nil {
		t.Fatalf("读余额失败: %v", err)
	}
	if balance != 100 {
		t.Fatalf("超扣失败后余额应保持 100, got %v", balance)
	}
}

func TestAdjustColumnMissingWallet(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewWalletRepository(db)

	err := repo.AdjustColumn(context.Background(), nil, 9999, "c1", -10)
	if !errors.Is(err, repository.ErrWalletNotFound) {
		t.Fatalf("钱包不存在应返回明确错误, got %v", err)
	}
}

func TestAdjustColumnInvalidColumn(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewWalletRepository(db)

	for _, column := range []string{"c30", "c0", "c41", "balance; DROP TABLE wallet"} {
		err := repo.AdjustColumn(context.Background(), nil, 1, column, 10)
		if !errors.Is(err, repository.ErrInvalidWalletColumn) {
			t.Fatalf("非法槽位 %q 应被拒绝, got %v", column, err)
		}
	}
}

func TestSumColumns(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	repo := repository.NewWalletRepository(db)

	if _, err := repo.GetOrCreate(ctx, nil, 2001, "user2001"); err != nil {
		t.Fatalf("建钱包失败: %v", err)
	}
	for column, amount := range map[string]float64{"c3": 10, "c4": 20, "c5": 30} {
		if err := repo.AdjustColumn(ctx, nil, 2001, column, amount); err != nil {
			t.Fatalf("入账失败: %s, %v", column, err)
		}
	}

	total, err := repo.SumColumns(ctx, 2001, []string{"c3", "c4", "c5"})
	if err != nil {
		t.Fatalf("求和失败: %v", err)
	}
	if total != 60 {
		t.Fatalf("汇总应为 60, got %v", total)
	}
}

func TestGetColumnMissingWalletIsZero(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewWalletRepository(db)

	balance, err := repo.GetColumn(context.Background(), nil, 8888, "c1")
	if err != nil {
		t.Fatalf("读缺失钱包不应报错: %v", err)
	}
	if balance != 0 {
		t.Fatalf("缺失钱包余额应为 0, got %v", balance)
	}
}
