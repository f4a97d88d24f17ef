/*
purchase.go - Purchase authorization

PURPOSE:
  Two-phase spending check. Authorize previews a purchase and never mutates
  balances; Apply commits an approved decision. A rejected, stale or
  no-longer-affordable decision is a silent no-op in Apply.

BUCKET RULES:
  snacks         workday only, within today's allowance and the balance
  entertainment  within the balance
  toiletries     within the balance
  anything else  rejected as an unknown category

  After its own rule passes, the protected bucket (toiletries by default)
  must keep the protection floor when the protected weekday falls before
  the next paycheck.

  Rules live in a table keyed by bucket; adding a spendable bucket is one
  entry.

SEE ALSO:
  - allowance.go: RemainingToday
  - calendar.go: IsWorkday
*/
package budget

import (
	"fmt"
	"time"

	"github.com/warp/budget-engine/generic"
)

// ProtectionFallbackDays is the protection window when no pay date is set.
const ProtectionFallbackDays = 14

// RejectReason is the one-line explanation of a rejected purchase.
type RejectReason string

const (
	ReasonNone            RejectReason = ""
	ReasonInvalidAmount   RejectReason = "invalid amount"
	ReasonUnknownCategory RejectReason = "unknown category"
	ReasonExcludedDay     RejectReason = "excluded day"
	ReasonEmptyBucket     RejectReason = "bucket is empty"
	ReasonOverDailyLimit  RejectReason = "over daily limit"
	ReasonOverBalance     RejectReason = "over balance"
	ReasonProtectionFloor RejectReason = "protection floor"
)

// PurchaseRequest is a proposed discretionary purchase.
type PurchaseRequest struct {
	Amount generic.Money
	Bucket Bucket
}

// Decision is the outcome of Authorize.
type Decision struct {
	OK     bool
	Bucket Bucket
	Amount generic.Money

	// Balance after the purchase if OK, the untouched balance otherwise.
	RemainingIfApplied generic.Money
	// Snacks only: allowance left today before this purchase.
	DailyRemaining generic.Money

	// Display only; never gates the decision.
	DaysLeftToNextPay int
	PayDateKnown      bool

	Reason  RejectReason
	Detail  string
	Checked generic.Date
}

// spendRule checks one bucket. balance is the current bucket balance.
type spendRule struct {
	check  func(s *State, amt, balance generic.Money, today generic.Date, d *Decision) RejectReason
	commit func(s *State, amt generic.Money)
}

var spendRules = map[Bucket]spendRule{
	BucketSnacks:        {check: checkSnacks, commit: commitSnacks},
	BucketEntertainment: {check: checkBalance},
	BucketToiletries:    {check: checkBalance},
}

// Spendable reports whether purchases may be made from b.
func Spendable(b Bucket) bool {
	_, ok := spendRules[b]
	return ok
}

// Authorize decides whether a purchase may go ahead. It does not change any
// balance; it may refresh the snack lock and prune expired PTO.
func Authorize(s *State, req PurchaseRequest, today generic.Date) Decision {
	d := Decision{
		Bucket:  req.Bucket,
		Amount:  req.Amount,
		Checked: today,
	}
	d.DaysLeftToNextPay, d.PayDateKnown = daysLeftToNextPay(s, today)

	reject := func(r RejectReason) Decision {
		d.OK = false
		d.Reason = r
		if d.Detail == "" {
			d.Detail = string(r)
		}
		return d
	}

	if !req.Amount.IsPositive() {
		return reject(ReasonInvalidAmount)
	}
	rule, ok := spendRules[req.Bucket]
	if !ok {
		d.Detail = fmt.Sprintf("unknown category %q", req.Bucket)
		return reject(ReasonUnknownCategory)
	}

	balance := s.Balances.Get(req.Bucket)
	d.RemainingIfApplied = balance
	if r := rule.check(s, req.Amount, balance, today, &d); r != ReasonNone {
		return reject(r)
	}
	if req.Bucket == s.Protection.Bucket {
		if r := checkProtection(s, req.Amount, balance, today, &d); r != ReasonNone {
			return reject(r)
		}
	}

	d.OK = true
	d.RemainingIfApplied = balance.Sub(req.Amount)
	return d
}

func checkBalance(_ *State, amt, balance generic.Money, _ generic.Date, _ *Decision) RejectReason {
	if !balance.IsPositive() {
		return ReasonEmptyBucket
	}
	if amt.GreaterThan(balance) {
		return ReasonOverBalance
	}
	return ReasonNone
}

func checkSnacks(s *State, amt, balance generic.Money, today generic.Date, d *Decision) RejectReason {
	RefreshSnackLock(s, today, true)
	d.DailyRemaining = RemainingToday(s, today)

	if !s.Workdays.IsWorkday(today) {
		d.Detail = fmt.Sprintf("%s is not a snack day", today)
		return ReasonExcludedDay
	}
	if !balance.IsPositive() {
		return ReasonEmptyBucket
	}
	if amt.GreaterThan(d.DailyRemaining) {
		d.Detail = fmt.Sprintf("only %s left today", d.DailyRemaining)
		return ReasonOverDailyLimit
	}
	if amt.GreaterThan(balance) {
		return ReasonOverBalance
	}
	return ReasonNone
}

func checkProtection(s *State, amt, balance generic.Money, today generic.Date, d *Decision) RejectReason {
	rule := s.Protection
	projected := balance.Sub(amt)
	if !projected.LessThan(rule.Floor) {
		return ReasonNone
	}
	window := protectionWindow(s, today)
	if window.Any(func(day generic.Date) bool { return day.Weekday() == rule.Weekday }) {
		d.Detail = fmt.Sprintf("keep %s for %s before next check, would leave %s",
			rule.Floor, weekdayName(rule.Weekday), projected)
		return ReasonProtectionFloor
	}
	return ReasonNone
}

// protectionWindow is every day strictly after today through the next pay
// date, or the fallback window when no pay date is set.
func protectionWindow(s *State, today generic.Date) generic.Period {
	end := s.NextPayDate
	if end.IsZero() {
		end = today.AddDays(ProtectionFallbackDays)
	}
	return generic.DaysAfter(today, end)
}

func commitSnacks(s *State, amt generic.Money) {
	s.SnackLock.SpentToday = s.SnackLock.SpentToday.Add(amt)
}

func daysLeftToNextPay(s *State, today generic.Date) (int, bool) {
	if s.NextPayDate.IsZero() {
		return 0, false
	}
	days := generic.DaysBetween(today, s.NextPayDate)
	if days < 0 {
		days = 0
	}
	return days, true
}

// Apply commits an approved decision and returns the new balances. It is a
// no-op (returning false) for rejected decisions, decisions made on another
// day, and purchases the bucket can no longer cover.
func Apply(s *State, d Decision, now time.Time) (Balances, bool) {
	today := generic.DateOf(now)
	rule, ok := spendRules[d.Bucket]
	if !d.OK || !ok || !d.Checked.Equal(today) || !d.Amount.IsPositive() {
		return s.Balances.Copy(), false
	}
	if d.Amount.GreaterThan(s.Balances.Get(d.Bucket)) {
		return s.Balances.Copy(), false
	}

	RefreshSnackLock(s, today, false)
	s.debit(d.Bucket, d.Amount)
	if rule.commit != nil {
		rule.commit(s, d.Amount)
	}
	s.record(now, KindPurchase, d.Bucket, d.Amount,
		fmt.Sprintf("%s purchase %s, %s left", d.Bucket, d.Amount, s.Balances.Get(d.Bucket)))
	return s.Balances.Copy(), true
}
