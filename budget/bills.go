package budget

import (
	"fmt"
	"time"

	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// BILL SCHEDULER - When does a bill next fall due?
// =============================================================================

// RecurrenceKind tags a Recurrence.
type RecurrenceKind string

const (
	RecurOnce    RecurrenceKind = "once"
	RecurMonthly RecurrenceKind = "monthly"
	RecurWeekly  RecurrenceKind = "weekly"
)

// weeklySearchDays bounds the weekly lookup; a valid weekday always hits within 7.
const weeklySearchDays = 14

// Recurrence is one of Once(date), Monthly(dayOfMonth), Weekly(dayOfWeek).
// Only the field matching Kind is meaningful.
type Recurrence struct {
	Kind       RecurrenceKind
	Date       generic.Date
	DayOfMonth int
	DayOfWeek  int // Sunday=0 .. Saturday=6
}

func Once(d generic.Date) Recurrence { return Recurrence{Kind: RecurOnce, Date: d} }
func Monthly(dayOfMonth int) Recurrence {
	return Recurrence{Kind: RecurMonthly, DayOfMonth: dayOfMonth}
}
func Weekly(dayOfWeek int) Recurrence { return Recurrence{Kind: RecurWeekly, DayOfWeek: dayOfWeek} }

// Bill is a recurring or one-off obligation funded through the holding bucket.
type Bill struct {
	Name       string
	Amount     generic.Money
	Recurrence Recurrence
}

// Validate rejects malformed bills at creation time.
func (b Bill) Validate() error {
	if b.Name == "" {
		return generic.NewFieldError(generic.ErrInvalidBill, "name", "is required")
	}
	if b.Amount.IsNegative() {
		return generic.NewFieldError(generic.ErrInvalidBill, "amount", "must not be negative")
	}
	r := b.Recurrence
	switch r.Kind {
	case RecurOnce:
		if r.Date.IsZero() {
			return generic.NewFieldError(generic.ErrInvalidBill, "due_date", "is required for a one-time bill")
		}
	case RecurMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return generic.NewFieldError(generic.ErrInvalidBill, "day_of_month", fmt.Sprintf("%d is outside 1-31", r.DayOfMonth))
		}
	case RecurWeekly:
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return generic.NewFieldError(generic.ErrInvalidBill, "day_of_week", fmt.Sprintf("%d is outside 0-6", r.DayOfWeek))
		}
	default:
		return generic.NewFieldError(generic.ErrInvalidBill, "due_type", fmt.Sprintf("unknown recurrence %q", r.Kind))
	}
	return nil
}

// NextOccurrence returns the bill's next due date on or after ref.
//
//   - Once: the date verbatim, even if it is in the past.
//   - Monthly: this month's day if still ahead, else next month's; days past
//     the end of a month clamp to its last day.
//   - Weekly: the first matching weekday within 14 days; a weekday outside
//     0-6 never matches and yields false.
func NextOccurrence(bill Bill, ref generic.Date) (generic.Date, bool) {
	r := bill.Recurrence
	switch r.Kind {
	case RecurOnce:
		if r.Date.IsZero() {
			return generic.Date{}, false
		}
		return r.Date, true

	case RecurMonthly:
		dom := r.DayOfMonth
		if dom < 1 {
			dom = 1
		}
		d := generic.DayInMonth(ref.Year(), ref.Month(), dom)
		if d.Before(ref) {
			next := generic.StartOfMonth(ref.Year(), ref.Month()).AddMonths(1)
			d = generic.DayInMonth(next.Year(), next.Month(), dom)
		}
		return d, true

	case RecurWeekly:
		for i := 0; i < weeklySearchDays; i++ {
			d := ref.AddDays(i)
			if int(d.Weekday()) == r.DayOfWeek {
				return d, true
			}
		}
		return generic.Date{}, false
	}
	return generic.Date{}, false
}

// DueBill is a bill resolved to a concrete due date.
type DueBill struct {
	Name    string
	Amount  generic.Money
	DueDate generic.Date
}

// DueBillsBefore lists bills whose next occurrence is strictly before cutoff,
// with their cent-rounded total.
func DueBillsBefore(bills []Bill, ref, cutoff generic.Date) ([]DueBill, generic.Money) {
	var due []DueBill
	total := generic.Zero
	for _, b := range bills {
		d, ok := NextOccurrence(b, ref)
		if !ok || !d.Before(cutoff) {
			continue
		}
		due = append(due, DueBill{Name: b.Name, Amount: b.Amount, DueDate: d})
		total = total.Add(b.Amount)
	}
	return due, total
}

// weekdayName is used in reasons and history details.
func weekdayName(wd time.Weekday) string { return wd.String() }
