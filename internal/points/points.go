// Package points holds the pure arithmetic of the ledger: balance summaries,
// goal targets, cooldown windows, and calendar-day bounds. Everything here is
// side-effect free; persistence lives in internal/store.
package points

import "time"

// Summary is a member's account state derived from the ledgers. It is never
// stored; every component that needs a balance goes through this one
// computation.
//
//	Earned    = completion points + signed bonus points
//	Committed = purchase costs + non-approved request deductions
//	Balance   = Earned - Committed
//
// Approved requests are represented by their purchase and never counted twice.
// Rejected requests remain in Committed, offset exactly by their refund bonus,
// so a rejection restores the pre-request balance.
type Summary struct {
	Earned    int `json:"earned"`
	Committed int `json:"committed"`
	Balance   int `json:"balance"`
}

// NewSummary derives the balance from the two aggregates.
func NewSummary(earned, committed int) Summary {
	return Summary{Earned: earned, Committed: committed, Balance: earned - committed}
}

// GoalTarget is the kid's share of a goal: ceil(totalCost * (1 - parentPercent/100)),
// computed in integer arithmetic so percentages like 33 round exactly. A
// parentPercent of 100 yields 0, which a fresh balance already satisfies.
func GoalTarget(totalCost, parentPercent int) int {
	return (totalCost*(100-parentPercent) + 99) / 100
}

// CooldownEnd returns when a reward becomes requestable again after its most
// recent redemption activity. The cooldown is active strictly while
// now < CooldownEnd; at the boundary it has ended.
func CooldownEnd(last time.Time, cooldownDays int) time.Time {
	return last.AddDate(0, 0, cooldownDays)
}

// DayBounds returns [start, end) of the calendar day containing now, in now's
// location. The daily completion cap counts within this window.
func DayBounds(now time.Time) (start, end time.Time) {
	start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}
