package store

import (
	"errors"
	"testing"
	"time"

	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/points"
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestRecordCompletionDailyCap(t *testing.T) {
	db := newTestDB(t)
	family, _, kid := seedFamily(t, db)

	tasks := NewTaskStore(db)
	ledger := NewLedgerStore(db)

	task, err := tasks.Create(family.ID, "Dishes", 10, 2, model.FrequencyDaily)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := ledger.RecordCompletion(kid.ID, task.ID, family.ID, base.Add(time.Duration(i)*time.Hour), "", ""); err != nil {
			t.Fatalf("completion %d: %v", i+1, err)
		}
	}

	_, err = ledger.RecordCompletion(kid.ID, task.ID, family.ID, base.Add(2*time.Hour), "", "")
	var limitErr *points.LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("third completion: got %v, want LimitExceededError", err)
	}
	if limitErr.MaxPerDay != 2 {
		t.Errorf("MaxPerDay = %d, want 2", limitErr.MaxPerDay)
	}

	// The failed attempt must not have written a row.
	completions, err := ledger.ListCompletions(kid.ID)
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(completions) != 2 {
		t.Errorf("got %d completions, want 2", len(completions))
	}

	// The cap resets on the next calendar day.
	if _, err := ledger.RecordCompletion(kid.ID, task.ID, family.ID, base.AddDate(0, 0, 1), "", ""); err != nil {
		t.Errorf("next-day completion: %v", err)
	}
}

func TestSummaryAggregation(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	tasks := NewTaskStore(db)
	rewards := NewRewardStore(db)
	ledger := NewLedgerStore(db)

	task, err := tasks.Create(family.ID, "Vacuum", 25, 3, model.FrequencyDaily)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := ledger.RecordCompletion(kid.ID, task.ID, family.ID, base, "", ""); err != nil {
		t.Fatalf("record completion: %v", err)
	}
	if _, err := ledger.GrantBonus(kid.ID, 15, "Helped with groceries", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}

	direct, err := rewards.Create(family.ID, "Ice cream", "", 10, false, 0)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if _, err := ledger.RequestRedemption(kid.ID, direct.ID, family.ID, base.Add(time.Minute)); err != nil {
		t.Fatalf("direct redemption: %v", err)
	}

	gated, err := rewards.Create(family.ID, "Movie night", "", 20, true, 0)
	if err != nil {
		t.Fatalf("create gated reward: %v", err)
	}
	res, err := ledger.RequestRedemption(kid.ID, gated.ID, family.ID, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("gated redemption: %v", err)
	}
	if res.Request == nil || res.Request.Status != model.RequestPending {
		t.Fatalf("expected pending request, got %+v", res)
	}

	summary, err := ledger.Summary(kid.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	// earned 25+15, committed 10 (purchase) + 20 (pending request)
	if summary.Earned != 40 || summary.Committed != 30 || summary.Balance != 10 {
		t.Errorf("summary = %+v, want earned 40 committed 30 balance 10", summary)
	}
}

func TestApprovalDoesNotDoubleCount(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	rewards := NewRewardStore(db)

	if _, err := ledger.GrantBonus(kid.ID, 50, "Starting balance", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	reward, err := rewards.Create(family.ID, "New game", "", 30, true, 0)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	res, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base)
	if err != nil {
		t.Fatalf("redemption: %v", err)
	}

	before, _ := ledger.Summary(kid.ID)
	if before.Balance != 20 {
		t.Fatalf("balance before approval = %d, want 20", before.Balance)
	}

	if _, err := ledger.ApproveRequest(res.Request.ID, admin.ID, base.Add(time.Hour)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Approval converts the hold into a purchase; the balance must not move.
	after, _ := ledger.Summary(kid.ID)
	if after.Balance != 20 {
		t.Errorf("balance after approval = %d, want 20", after.Balance)
	}
	if after.Committed != 30 {
		t.Errorf("committed after approval = %d, want 30", after.Committed)
	}
}

func TestApproveIdempotent(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	rewards := NewRewardStore(db)

	if _, err := ledger.GrantBonus(kid.ID, 100, "Starting balance", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	reward, err := rewards.Create(family.ID, "New game", "", 50, true, 0)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	res, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base)
	if err != nil {
		t.Fatalf("redemption: %v", err)
	}

	first, err := ledger.ApproveRequest(res.Request.ID, admin.ID, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}
	second, err := ledger.ApproveRequest(res.Request.ID, admin.ID, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("replayed approve: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("replay created a new purchase: %d vs %d", first.ID, second.ID)
	}

	purchases, _ := ledger.ListPurchases(kid.ID)
	if len(purchases) != 1 {
		t.Errorf("got %d purchases, want 1", len(purchases))
	}

	// Rejecting an approved request is an invalid transition.
	_, err = ledger.RejectRequest(res.Request.ID, admin.ID, base.Add(3*time.Hour))
	var stateErr *points.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Errorf("reject after approve: got %v, want InvalidStateError", err)
	}
}

func TestRejectRefunds(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	rewards := NewRewardStore(db)

	if _, err := ledger.GrantBonus(kid.ID, 60, "Starting balance", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	reward, err := rewards.Create(family.ID, "Sleepover", "", 40, true, 0)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	res, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base)
	if err != nil {
		t.Fatalf("redemption: %v", err)
	}

	held, _ := ledger.Summary(kid.ID)
	if held.Balance != 20 {
		t.Fatalf("balance with hold = %d, want 20", held.Balance)
	}

	refund, err := ledger.RejectRequest(res.Request.ID, admin.ID, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if refund.Points != 40 {
		t.Errorf("refund points = %d, want 40", refund.Points)
	}
	if refund.RequestID == nil || *refund.RequestID != res.Request.ID {
		t.Errorf("refund not linked to request: %+v", refund)
	}

	restored, _ := ledger.Summary(kid.ID)
	if restored.Balance != 60 {
		t.Errorf("balance after reject = %d, want 60", restored.Balance)
	}

	// Replaying the rejection returns the same refund, not a second one.
	again, err := ledger.RejectRequest(res.Request.ID, admin.ID, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("replayed reject: %v", err)
	}
	if again.ID != refund.ID {
		t.Errorf("replay created a new refund: %d vs %d", refund.ID, again.ID)
	}
}

func TestInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	rewards := NewRewardStore(db)

	if _, err := ledger.GrantBonus(kid.ID, 25, "Starting balance", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	reward, err := rewards.Create(family.ID, "New game", "", 50, true, 0)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	_, err = ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base)
	var balErr *points.InsufficientBalanceError
	if !errors.As(err, &balErr) {
		t.Fatalf("got %v, want InsufficientBalanceError", err)
	}
	if balErr.Cost != 50 || balErr.Balance != 25 {
		t.Errorf("error = %+v, want cost 50 balance 25", balErr)
	}

	// Nothing was written: no request, no hold.
	summary, _ := ledger.Summary(kid.ID)
	if summary.Committed != 0 {
		t.Errorf("committed = %d, want 0", summary.Committed)
	}
}

func TestCooldownWindow(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	rewards := NewRewardStore(db)

	if _, err := ledger.GrantBonus(kid.ID, 100, "Starting balance", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	reward, err := rewards.Create(family.ID, "Screen time", "", 10, false, 3)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	if _, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base); err != nil {
		t.Fatalf("first redemption: %v", err)
	}

	// Inside the window.
	_, err = ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base.AddDate(0, 0, 1))
	var cdErr *points.CooldownActiveError
	if !errors.As(err, &cdErr) {
		t.Fatalf("got %v, want CooldownActiveError", err)
	}
	if !cdErr.Until.Equal(base.AddDate(0, 0, 3)) {
		t.Errorf("Until = %v, want %v", cdErr.Until, base.AddDate(0, 0, 3))
	}

	// One second before the end is still blocked.
	if _, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base.AddDate(0, 0, 3).Add(-time.Second)); !errors.As(err, &cdErr) {
		t.Errorf("just before end: got %v, want CooldownActiveError", err)
	}

	// Exactly at the end the cooldown is over.
	if _, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base.AddDate(0, 0, 3)); err != nil {
		t.Errorf("at end: %v", err)
	}
}

func TestCooldownIgnoresRejected(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	rewards := NewRewardStore(db)

	if _, err := ledger.GrantBonus(kid.ID, 100, "Starting balance", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	reward, err := rewards.Create(family.ID, "Sleepover", "", 40, true, 7)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	res, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base)
	if err != nil {
		t.Fatalf("redemption: %v", err)
	}
	if _, err := ledger.RejectRequest(res.Request.ID, admin.ID, base.Add(time.Hour)); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// The rejected request does not start a cooldown.
	if _, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base.Add(2*time.Hour)); err != nil {
		t.Errorf("redemption after reject: %v", err)
	}
}

func TestPendingRequestStartsCooldown(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	rewards := NewRewardStore(db)

	if _, err := ledger.GrantBonus(kid.ID, 100, "Starting balance", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	reward, err := rewards.Create(family.ID, "Sleepover", "", 40, true, 7)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	if _, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base); err != nil {
		t.Fatalf("redemption: %v", err)
	}

	_, err = ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base.Add(time.Hour))
	var cdErr *points.CooldownActiveError
	if !errors.As(err, &cdErr) {
		t.Errorf("got %v, want CooldownActiveError while request is pending", err)
	}
}

func TestListPendingRequests(t *testing.T) {
	db := newTestDB(t)
	family, admin, kid := seedFamily(t, db)

	ledger := NewLedgerStore(db)
	rewards := NewRewardStore(db)

	if _, err := ledger.GrantBonus(kid.ID, 100, "Starting balance", admin.ID); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}
	reward, err := rewards.Create(family.ID, "New game", "", 30, true, 0)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	other, err := rewards.Create(family.ID, "Sleepover", "", 40, true, 0)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	if _, err := ledger.RequestRedemption(kid.ID, reward.ID, family.ID, base); err != nil {
		t.Fatalf("redemption: %v", err)
	}
	res, err := ledger.RequestRedemption(kid.ID, other.ID, family.ID, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("redemption: %v", err)
	}
	if _, err := ledger.ApproveRequest(res.Request.ID, admin.ID, base.Add(time.Hour)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, err := ledger.ListPendingRequests(family.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending requests, want 1", len(pending))
	}
	if pending[0].RewardID != reward.ID {
		t.Errorf("pending request for reward %d, want %d", pending[0].RewardID, reward.ID)
	}
}

// End-to-end ledger walk: earn through chores, spend directly, then get stuck
// on an approval-gated reward the balance cannot cover.
func TestEarnAndSpendFlow(t *testing.T) {
	db := newTestDB(t)
	family, _, kid := seedFamily(t, db)

	tasks := NewTaskStore(db)
	rewards := NewRewardStore(db)
	ledger := NewLedgerStore(db)

	dishes, err := tasks.Create(family.ID, "Dishes", 10, 2, model.FrequencyDaily)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	movie, err := rewards.Create(family.ID, "Movie night", "", 15, false, 0)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	game, err := rewards.Create(family.ID, "New game", "", 50, true, 0)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	for day := 0; day < 2; day++ {
		for i := 0; i < 2; i++ {
			at := base.AddDate(0, 0, day).Add(time.Duration(i) * time.Hour)
			if _, err := ledger.RecordCompletion(kid.ID, dishes.ID, family.ID, at, "", ""); err != nil {
				t.Fatalf("day %d completion %d: %v", day, i, err)
			}
		}
	}

	res, err := ledger.RequestRedemption(kid.ID, movie.ID, family.ID, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("movie redemption: %v", err)
	}
	if res.Purchase == nil {
		t.Fatal("expected a direct purchase")
	}

	summary, _ := ledger.Summary(kid.ID)
	if summary.Balance != 25 {
		t.Fatalf("balance = %d, want 25", summary.Balance)
	}

	_, err = ledger.RequestRedemption(kid.ID, game.ID, family.ID, base.AddDate(0, 0, 2).Add(time.Hour))
	var balErr *points.InsufficientBalanceError
	if !errors.As(err, &balErr) {
		t.Fatalf("got %v, want InsufficientBalanceError", err)
	}
}
