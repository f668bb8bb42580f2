package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mlmpay/internal/config"
	"mlmpay/internal/gateway"
	"mlmpay/internal/model"
	"mlmpay/internal/service"
	"mlmpay/internal/testutil"

	"gorm.io/gorm"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *gateway.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return gateway.NewClient(&config.GatewayConfig{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		TimeoutSeconds: 2,
	})
}

func createAutoAccount(t *testing.T, db *gorm.DB, uCode int64) *model.WithdrawalAccount {
	t.Helper()

	account := &model.WithdrawalAccount{
		UCode:   uCode,
		Type:    model.WithdrawalAccountAuto,
		Chain:   "BEP20",
		Address: "0x00000000000000000000000000000000000000aa",
		Token:   "USDT",
		Status:  1,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("建自动提现账户失败: %v", err)
	}
	return account
}

func TestWithdrawAutoGatewayRejected(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.SetBalance(t, db, 1, model.SlugMainWallet, 100)
	account := createAutoAccount(t, db, 1)

	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"message":"风控拒绝"}`))
	})

	fund := service.NewFundService(db, cfg, nil, gw)
	_, err := fund.Withdraw(ctx, 1, model.SlugMainWallet, 100, account.ID)
	if !errors.Is(err, gateway.ErrGatewayRejected) {
		t.Fatalf("网关明确拒绝应整单失败, got %v", err)
	}

	// 明确拒绝：没动钱，不留任何流水
	var count int64
	db.Model(&model.FundTransaction{}).Count(&count)
	if count != 0 {
		t.Fatalf("被拒提现不应留下流水, got %d", count)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugMainWallet); got != 100 {
		t.Fatalf("余额应保持 100, got %v", got)
	}
}

func TestWithdrawAutoGatewayUncertain(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.SetBalance(t, db, 1, model.SlugMainWallet, 100)
	account := createAutoAccount(t, db, 1)

	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	fund := service.NewFundService(db, cfg, nil, gw)
	_, err := fund.Withdraw(ctx, 1, model.SlugMainWallet, 100, account.ID)
	if !errors.Is(err, service.ErrGatewayUncertain) {
		t.Fatalf("网关结果未知应返回挂起错误, got %v", err)
	}

	// 结果未知：钱没扣，但要留一条待对账的挂起流水
	if got := testutil.GetBalance(t, db, 1, model.SlugMainWallet); got != 100 {
		t.Fatalf("结果未知不允许扣款, got %v", got)
	}
	var trans model.FundTransaction
	if err := db.Where("u_code = ? AND tx_type = ?", 1, model.FundTxTypeWithdrawal).First(&trans).Error; err != nil {
		t.Fatalf("应留下挂起流水: %v", err)
	}
	if trans.Status != model.WithdrawalStatusPending {
		t.Fatalf("挂起流水应是待审状态, got %d", trans.Status)
	}
	if trans.PostWalletBalance != trans.CurrentWalletBalance {
		t.Fatalf("挂起流水前后快照必须相等（未扣款）: %+v", trans)
	}
	if trans.UUID == "" {
		t.Fatal("挂起流水必须带幂等 uuid，人工对账按它查网关")
	}
}

func TestWithdrawAutoGatewaySuccess(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig() // 提现手续费 5%

	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.SetBalance(t, db, 1, model.SlugMainWallet, 100)
	account := createAutoAccount(t, db, 1)

	var gotAPIKey string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"txHash":"0xabc123"}`))
	})

	fund := service.NewFundService(db, cfg, nil, gw)
	trans, err := fund.Withdraw(ctx, 1, model.SlugMainWallet, 100, account.ID)
	if err != nil {
		t.Fatalf("提现失败: %v", err)
	}

	if gotAPIKey != "test-key" {
		t.Fatalf("网关请求必须带鉴权头, got %q", gotAPIKey)
	}
	if trans.TxNumber != "0xabc123" {
		t.Fatalf("流水应记录网关回传的 txHash, got %q", trans.TxNumber)
	}
	if trans.Amount != 95 || trans.TxCharge != 5 {
		t.Fatalf("流水金额/手续费不对: %+v", trans)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugMainWallet); got != 0 {
		t.Fatalf("网关成功后才扣款，余额应为 0, got %v", got)
	}
}
