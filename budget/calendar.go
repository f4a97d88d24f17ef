package budget

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// WORK CALENDAR - Which days count toward the snack allowance
// =============================================================================

// WorkdayRules exclude days from the work calendar. Weekends are workdays
// unless excluded; the only weekly exclusions are Tuesday and Wednesday.
type WorkdayRules struct {
	ExcludeTuesday   bool
	ExcludeWednesday bool
	PTO              []PTODay // single-use exclusions, kept sorted by date
}

// PTODay is a one-off excluded date.
type PTODay struct {
	Date  generic.Date
	Label string
}

// excludesWeekday reports whether a weekly exclusion covers wd.
func (r WorkdayRules) excludesWeekday(wd time.Weekday) bool {
	switch wd {
	case time.Tuesday:
		return r.ExcludeTuesday
	case time.Wednesday:
		return r.ExcludeWednesday
	}
	return false
}

// IsPTO reports whether d is listed as a PTO day.
func (r WorkdayRules) IsPTO(d generic.Date) bool {
	for _, p := range r.PTO {
		if p.Date.Equal(d) {
			return true
		}
	}
	return false
}

// IsWorkday is false on an excluded weekday or a PTO day.
func (r WorkdayRules) IsWorkday(d generic.Date) bool {
	if r.excludesWeekday(d.Weekday()) {
		return false
	}
	return !r.IsPTO(d)
}

// CountWorkdays counts workdays strictly after `from` through `to`.
// The start day never counts, so CountWorkdays(d, d) is always 0.
func (r WorkdayRules) CountWorkdays(from, to generic.Date) int {
	return generic.DaysAfter(from, to).Count(r.IsWorkday)
}

// PrunePTO drops PTO days strictly before today and returns how many went.
func (r *WorkdayRules) PrunePTO(today generic.Date) int {
	kept := r.PTO[:0]
	for _, p := range r.PTO {
		if !p.Date.Before(today) {
			kept = append(kept, p)
		}
	}
	removed := len(r.PTO) - len(kept)
	r.PTO = kept
	return removed
}

// AddPTO excludes a single future date. Re-adding a date updates its label.
func (r *WorkdayRules) AddPTO(d generic.Date, label string, today generic.Date) error {
	if d.IsZero() {
		return generic.NewFieldError(generic.ErrInvalidDate, "date", "is required")
	}
	if d.Before(today) {
		return generic.NewFieldError(generic.ErrInvalidDate, "date", fmt.Sprintf("%s is in the past", d))
	}
	for i := range r.PTO {
		if r.PTO[i].Date.Equal(d) {
			r.PTO[i].Label = label
			return nil
		}
	}
	r.PTO = append(r.PTO, PTODay{Date: d, Label: label})
	sort.Slice(r.PTO, func(i, j int) bool { return r.PTO[i].Date.Before(r.PTO[j].Date) })
	return nil
}

// RemovePTO deletes a PTO day.
func (r *WorkdayRules) RemovePTO(d generic.Date) error {
	for i := range r.PTO {
		if r.PTO[i].Date.Equal(d) {
			r.PTO = append(r.PTO[:i], r.PTO[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("pto %s: %w", d, generic.ErrNotFound)
}

// calendarFor prunes expired PTO and returns the rules to evaluate today.
// Every operation that needs "today" goes through here.
func (s *State) calendarFor(today generic.Date) WorkdayRules {
	s.Workdays.PrunePTO(today)
	return s.Workdays
}
