package store

import (
	"errors"
	"testing"
	"time"

	"github.com/earnit-app/earnit/internal/points"
)

func TestGoalNotificationOnTarget(t *testing.T) {
	db := newTestDB(t)
	_, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	goals := NewGoalStore(db)

	// 200 cost, parents cover 50%: kid needs 100 points.
	if _, err := goals.Set(kid.ID, "Bike", 200, 50, "", ""); err != nil {
		t.Fatalf("set goal: %v", err)
	}

	if _, err := ledger.GrantBonus(kid.ID, 99, "Almost there", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	summary, _ := ledger.Summary(kid.ID)
	n, err := goals.CheckProgress(kid.ID, summary.Balance, base)
	if err != nil {
		t.Fatalf("check progress: %v", err)
	}
	if n != nil {
		t.Fatalf("notification at 99/100: %+v", n)
	}

	if _, err := ledger.GrantBonus(kid.ID, 1, "There", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	summary, _ = ledger.Summary(kid.ID)
	n, err = goals.CheckProgress(kid.ID, summary.Balance, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("check progress: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notification at 100/100")
	}
	if n.PointsSpent != 200 {
		t.Errorf("PointsSpent = %d, want 200", n.PointsSpent)
	}

	// Repeated checks while the notification is unresolved are no-ops.
	again, err := goals.CheckProgress(kid.ID, summary.Balance, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if again != nil {
		t.Errorf("duplicate notification: %+v", again)
	}
}

func TestSetGoalBlockedWhilePending(t *testing.T) {
	db := newTestDB(t)
	_, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	goals := NewGoalStore(db)

	if _, err := goals.Set(kid.ID, "Bike", 100, 0, "", ""); err != nil {
		t.Fatalf("set goal: %v", err)
	}
	if _, err := ledger.GrantBonus(kid.ID, 100, "Full ride", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	summary, _ := ledger.Summary(kid.ID)
	n, err := goals.CheckProgress(kid.ID, summary.Balance, base)
	if err != nil || n == nil {
		t.Fatalf("check progress: n=%v err=%v", n, err)
	}

	_, err = goals.Set(kid.ID, "Skateboard", 80, 0, "", "")
	var pendingErr *points.GoalPendingError
	if !errors.As(err, &pendingErr) {
		t.Fatalf("got %v, want GoalPendingError", err)
	}
	if pendingErr.NotificationID != n.ID {
		t.Errorf("NotificationID = %d, want %d", pendingErr.NotificationID, n.ID)
	}

	// Resolving clears the goal and unblocks a new one.
	if err := goals.Resolve(n.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if g, _ := goals.Get(kid.ID); g != nil {
		t.Errorf("goal survived resolution: %+v", g)
	}
	if _, err := goals.Set(kid.ID, "Skateboard", 80, 0, "", ""); err != nil {
		t.Errorf("set after resolve: %v", err)
	}
}

func TestDismissKeepsGoal(t *testing.T) {
	db := newTestDB(t)
	_, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	goals := NewGoalStore(db)

	goal, err := goals.Set(kid.ID, "Bike", 100, 0, "", "")
	if err != nil {
		t.Fatalf("set goal: %v", err)
	}
	if _, err := ledger.GrantBonus(kid.ID, 100, "Full ride", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	summary, _ := ledger.Summary(kid.ID)
	n, err := goals.CheckProgress(kid.ID, summary.Balance, base)
	if err != nil || n == nil {
		t.Fatalf("check progress: n=%v err=%v", n, err)
	}

	if err := goals.Dismiss(n.ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	g, err := goals.Get(kid.ID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if g == nil || g.ID != goal.ID {
		t.Errorf("goal gone after dismiss: %+v", g)
	}

	// The balance still meets the target, so the next check notifies again.
	n2, err := goals.CheckProgress(kid.ID, summary.Balance, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("check progress: %v", err)
	}
	if n2 == nil {
		t.Error("expected a fresh notification after dismiss")
	}
}

func TestResolveIdempotent(t *testing.T) {
	db := newTestDB(t)
	_, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	goals := NewGoalStore(db)

	if _, err := goals.Set(kid.ID, "Bike", 50, 0, "", ""); err != nil {
		t.Fatalf("set goal: %v", err)
	}
	if _, err := ledger.GrantBonus(kid.ID, 50, "Full ride", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	summary, _ := ledger.Summary(kid.ID)
	n, err := goals.CheckProgress(kid.ID, summary.Balance, base)
	if err != nil || n == nil {
		t.Fatalf("check progress: n=%v err=%v", n, err)
	}

	if err := goals.Resolve(n.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := goals.Resolve(n.ID); err != nil {
		t.Errorf("replayed resolve: %v", err)
	}

	if err := goals.Resolve(n.ID + 100); !errors.Is(err, points.ErrNotFound) {
		t.Errorf("resolve missing: got %v, want ErrNotFound", err)
	}
}

func TestReplaceGoalBeforeTarget(t *testing.T) {
	db := newTestDB(t)
	_, _, kid := seedFamily(t, db)

	goals := NewGoalStore(db)

	if _, err := goals.Set(kid.ID, "Bike", 200, 50, "", ""); err != nil {
		t.Fatalf("set goal: %v", err)
	}
	g, err := goals.Set(kid.ID, "Skateboard", 80, 25, "", "")
	if err != nil {
		t.Fatalf("replace goal: %v", err)
	}
	if g.Title != "Skateboard" || g.TotalCost != 80 {
		t.Errorf("goal = %+v", g)
	}

	got, err := goals.Get(kid.ID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if got.Title != "Skateboard" {
		t.Errorf("stored goal = %+v", got)
	}
}

func TestListUnresolved(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	goals := NewGoalStore(db)

	if _, err := goals.Set(kid.ID, "Bike", 30, 0, "", ""); err != nil {
		t.Fatalf("set goal: %v", err)
	}
	if _, err := ledger.GrantBonus(kid.ID, 30, "Full ride", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	summary, _ := ledger.Summary(kid.ID)
	n, err := goals.CheckProgress(kid.ID, summary.Balance, base)
	if err != nil || n == nil {
		t.Fatalf("check progress: n=%v err=%v", n, err)
	}

	list, err := goals.ListUnresolved(family.ID)
	if err != nil {
		t.Fatalf("list unresolved: %v", err)
	}
	if len(list) != 1 || list[0].ID != n.ID {
		t.Fatalf("list = %+v", list)
	}

	if err := goals.Dismiss(n.ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	list, err = goals.ListUnresolved(family.ID)
	if err != nil {
		t.Fatalf("list unresolved: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("list after dismiss = %+v", list)
	}
}
