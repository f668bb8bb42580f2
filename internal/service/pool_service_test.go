package service_test

import (
	"context"
	"testing"

	"mlmpay/internal/model"
	"mlmpay/internal/service"
	"mlmpay/internal/testutil"
)

func TestPoolBreadthFirstFill(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig() // 每节点 3 条腿

	for uCode := int64(1); uCode <= 5; uCode++ {
		testutil.CreateUser(t, db, uCode, nil, true, 0)
	}

	pool := service.NewPoolService(db, cfg, nil)
	nodes := make([]*model.PoolNode, 0, 5)
	for uCode := int64(1); uCode <= 5; uCode++ {
		node, err := pool.Register(ctx, uCode, "autopool")
		if err != nil {
			t.Fatalf("安置失败: uCode=%d, err=%v", uCode, err)
		}
		nodes = append(nodes, node)
	}

	// 首个注册者是根
	if nodes[0].ParentID != nil {
		t.Fatalf("1 号应是根节点, got parent=%v", *nodes[0].ParentID)
	}

	// 2、3、4 号按顺序填满根的 3 条腿
	for i := 1; i <= 3; i++ {
		if nodes[i].ParentID == nil || *nodes[i].ParentID != nodes[0].ID {
			t.Fatalf("%d 号应挂在根下, got %+v", i+1, nodes[i])
		}
		if nodes[i].PoolPosition != i {
			t.Fatalf("%d 号槽位应为 %d, got %d", i+1, i, nodes[i].PoolPosition)
		}
	}

	// 根满后，5 号挂到最早的未满节点（2 号）
	if nodes[4].ParentID == nil || *nodes[4].ParentID != nodes[1].ID {
		t.Fatalf("5 号应挂在 2 号下, got %+v", nodes[4])
	}
	if nodes[4].PoolPosition != 1 {
		t.Fatalf("5 号槽位应为 1, got %d", nodes[4].PoolPosition)
	}
}

func TestPoolRegisterIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 0)
	pool := service.NewPoolService(db, cfg, nil)

	first, err := pool.Register(ctx, 1, "autopool")
	if err != nil {
		t.Fatalf("安置失败: %v", err)
	}
	second, err := pool.Register(ctx, 1, "autopool")
	if err != nil {
		t.Fatalf("重复安置不应报错: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("重复安置应返回同一节点: %d vs %d", first.ID, second.ID)
	}

	var count int64
	db.Model(&model.PoolNode{}).Count(&count)
	if count != 1 {
		t.Fatalf("池中应只有 1 个节点, got %d", count)
	}
}

func TestAutopoolIncomeOnPlacement(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, nil, true, 0)
	testutil.CreatePlan(t, db, model.PlanAutopool, []float64{10})
	testutil.CreatePlan(t, db, model.PlanAutopoolReqTeam, []float64{1})
	testutil.CreatePlan(t, db, model.PlanAutopoolReqDirect, []float64{0})

	pool := service.NewPoolService(db, cfg, nil)
	if _, err := pool.Register(ctx, 1, "autopool"); err != nil {
		t.Fatalf("根安置失败: %v", err)
	}
	node, err := pool.Register(ctx, 2, "autopool")
	if err != nil {
		t.Fatalf("安置失败: %v", err)
	}

	// 1 号池团队 1 人 >= 1，直推门槛 0，发 10
	if got := testutil.GetBalance(t, db, 1, model.SlugAutopool); got != 10 {
		t.Fatalf("池收益应为 10, got %v", got)
	}

	// 同一次安置重放：永久幂等键挡住
	if err := pool.DistributeAutopoolIncome(ctx, node); err != nil {
		t.Fatalf("重放失败: %v", err)
	}
	if got := testutil.GetBalance(t, db, 1, model.SlugAutopool); got != 10 {
		t.Fatalf("重放不应再发, got %v", got)
	}
}

func TestAutopoolGateBlocksUnqualified(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, nil, true, 0)
	testutil.CreatePlan(t, db, model.PlanAutopool, []float64{10})
	testutil.CreatePlan(t, db, model.PlanAutopoolReqTeam, []float64{1})
	// 直推门槛 2，1 号没有直推，不发
	testutil.CreatePlan(t, db, model.PlanAutopoolReqDirect, []float64{2})

	pool := service.NewPoolService(db, cfg, nil)
	if _, err := pool.Register(ctx, 1, "autopool"); err != nil {
		t.Fatalf("根安置失败: %v", err)
	}
	if _, err := pool.Register(ctx, 2, "autopool"); err != nil {
		t.Fatalf("安置失败: %v", err)
	}

	if got := testutil.GetBalance(t, db, 1, model.SlugAutopool); got != 0 {
		t.Fatalf("未达标不应发放, got %v", got)
	}
}

func TestPoolTeamLevels(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	cfg := testutil.NewTestConfig()

	for uCode := int64(1); uCode <= 5; uCode++ {
		testutil.CreateUser(t, db, uCode, nil, true, 0)
	}
	pool := service.NewPoolService(db, cfg, nil)
	for uCode := int64(1); uCode <= 5; uCode++ {
		if _, err := pool.Register(ctx, uCode, "autopool"); err != nil {
			t.Fatalf("安置失败: uCode=%d, err=%v", uCode, err)
		}
	}

	levels, err := pool.PoolTeam(ctx, 1, "autopool", 0)
	if err != nil {
		t.Fatalf("池团队展开失败: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("应有 2 层, got %d", len(levels))
	}
	if len(levels[0]) != 3 {
		t.Fatalf("第 1 层应有 3 个节点, got %d", len(levels[0]))
	}
	if len(levels[1]) != 1 || levels[1][0].UCode != 5 {
		t.Fatalf("第 2 层应只有 5 号, got %+v", levels[1])
	}
}
