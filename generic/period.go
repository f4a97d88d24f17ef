package generic

// =============================================================================
// PERIOD - Inclusive range of calendar days
// =============================================================================

// Period is the closed range [Start, End]. A Period whose End is before its
// Start is empty.
//
// Examples:
//   - Days strictly after today up to the next pay date:
//     Period{Start: today.AddDays(1), End: nextPay}
//   - Fallback protection window: Period{Start: today.AddDays(1), End: today.AddDays(14)}
type Period struct {
	Start Date
	End   Date
}

// DaysAfter is the period strictly after `from` through `to`.
func DaysAfter(from, to Date) Period {
	return Period{Start: from.AddDays(1), End: to}
}

// IsEmpty returns true if the period contains no days.
func (p Period) IsEmpty() bool {
	return p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start)
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return !p.IsEmpty() && d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice.
func (p Period) Days() []Date {
	if p.IsEmpty() {
		return nil
	}
	var days []Date
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Any reports whether some day in the period satisfies fn.
func (p Period) Any(fn func(Date) bool) bool {
	for _, d := range p.Days() {
		if fn(d) {
			return true
		}
	}
	return false
}

// Count returns how many days in the period satisfy fn.
func (p Period) Count(fn func(Date) bool) int {
	n := 0
	for _, d := range p.Days() {
		if fn(d) {
			n++
		}
	}
	return n
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
