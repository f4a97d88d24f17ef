package budget

import "github.com/warp/budget-engine/generic"

// =============================================================================
// SNACK ALLOWANCE LOCK - Once-per-day allowance for the snacks bucket
// =============================================================================
//
// The lock has two states keyed on SnackLock.LockedDate:
//   stale   (LockedDate != today)  -> recompute, clear SpentToday
//   current (LockedDate == today)  -> no-op unless forced
//
// A forced refresh on the same day recomputes the allowance from the live
// balance but keeps SpentToday, so edits show up immediately without
// forgiving what was already spent.

// FallbackWorkdays divides the snacks balance when no pay date is set.
const FallbackWorkdays = 10

// RefreshSnackLock recomputes today's allowance if the lock is stale or force
// is set. It returns the lock after the refresh.
func RefreshSnackLock(s *State, today generic.Date, force bool) SnackLock {
	cal := s.calendarFor(today)

	rollover := !s.SnackLock.LockedDate.Equal(today)
	if !rollover && !force {
		return s.SnackLock
	}

	s.SnackLock.LockedDate = today
	if rollover {
		s.SnackLock.SpentToday = generic.Zero
	}

	s.SnackLock.AllowanceToday = computeAllowance(s, cal, today)
	return s.SnackLock
}

func computeAllowance(s *State, cal WorkdayRules, today generic.Date) generic.Money {
	if !cal.IsWorkday(today) {
		return generic.Zero
	}
	snacks := s.Balances.Get(BucketSnacks).NonNegative()
	if s.NextPayDate.IsZero() {
		return snacks.DivInt(FallbackWorkdays)
	}
	workdaysLeft := cal.CountWorkdays(today, s.NextPayDate)
	if workdaysLeft <= 0 {
		return generic.Zero
	}
	return snacks.DivInt(workdaysLeft)
}

// RemainingToday is what may still be spent on snacks today, never negative.
func RemainingToday(s *State, today generic.Date) generic.Money {
	lock := RefreshSnackLock(s, today, false)
	return lock.AllowanceToday.Sub(lock.SpentToday).NonNegative()
}
