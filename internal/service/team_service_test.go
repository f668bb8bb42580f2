package service_test

import (
	"context"
	"testing"

	"mlmpay/internal/service"
	"mlmpay/internal/testutil"
)

func ptr(v int64) *int64 { return &v }

func TestTeamLevels(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, ptr(1), true, 0)
	testutil.CreateUser(t, db, 3, ptr(1), true, 0)
	testutil.CreateUser(t, db, 4, ptr(2), true, 0)
	testutil.CreateUser(t, db, 5, ptr(2), false, 0)
	testutil.CreateUser(t, db, 6, ptr(4), true, 0)

	team := service.NewTeamService(db, 10)
	levels, err := team.Team(context.Background(), 1, 0, false)
	if err != nil {
		t.Fatalf("团队展开失败: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("应到达 3 层, got %d", len(levels))
	}
	if got := levels[0].Members(); len(got) != 2 {
		t.Fatalf("第 1 层应有 2 人, got %v", got)
	}
	if got := levels[1].Members(); len(got) != 2 {
		t.Fatalf("第 2 层应有 2 人, got %v", got)
	}
	if got := levels[2].Members(); len(got) != 1 || got[0] != 6 {
		t.Fatalf("第 3 层应只有 6 号, got %v", got)
	}
}

func TestTeamActiveOnly(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, ptr(1), true, 0)
	testutil.CreateUser(t, db, 5, ptr(2), false, 0)
	testutil.CreateUser(t, db, 6, ptr(5), true, 0)

	team := service.NewTeamService(db, 10)
	members, err := team.TeamMembers(context.Background(), 1, 0, true)
	if err != nil {
		t.Fatalf("团队展开失败: %v", err)
	}
	// 5 号非激活被过滤，其下级 6 号也到不了
	if len(members) != 1 || members[0] != 2 {
		t.Fatalf("激活团队应只有 2 号, got %v", members)
	}
}

func TestTeamMaxDepthBound(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, ptr(1), true, 0)
	testutil.CreateUser(t, db, 3, ptr(2), true, 0)
	testutil.CreateUser(t, db, 4, ptr(3), true, 0)

	team := service.NewTeamService(db, 10)
	levels, err := team.Team(context.Background(), 1, 2, false)
	if err != nil {
		t.Fatalf("团队展开失败: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("深度上限 2 应只展开 2 层, got %d", len(levels))
	}
}

func TestUpline(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.CreateUser(t, db, 1, nil, true, 0)
	testutil.CreateUser(t, db, 2, ptr(1), false, 0)
	testutil.CreateUser(t, db, 3, ptr(2), true, 0)
	testutil.CreateUser(t, db, 4, ptr(3), true, 0)

	team := service.NewTeamService(db, 10)

	upline, err := team.Upline(context.Background(), 4, false)
	if err != nil {
		t.Fatalf("上级链失败: %v", err)
	}
	if len(upline) != 3 || upline[0] != 3 || upline[1] != 2 || upline[2] != 1 {
		t.Fatalf("完整上级链应为 [3 2 1], got %v", upline)
	}

	// activeOnly 在第一个非激活祖先处截断
	activeUpline, err := team.Upline(context.Background(), 4, true)
	if err != nil {
		t.Fatalf("激活上级链失败: %v", err)
	}
	if len(activeUpline) != 1 || activeUpline[0] != 3 {
		t.Fatalf("激活上级链应止于 3 号, got %v", activeUpline)
	}
}
