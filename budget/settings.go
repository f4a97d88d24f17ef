package budget

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// SETTINGS EDITS - Out-of-band changes to balances and rules
// =============================================================================
//
// Every edit validates first and mutates only on success. Edits that can
// change a balance or a cap end with EnforceCaps; every edit force-refreshes
// the snack lock so the visible allowance follows immediately.

var maxPct = decimal.NewFromInt(100)

// Validate checks split rules are in range.
func (r SplitRules) Validate() error {
	if r.SavingsPct.IsNegative() || r.SavingsPct.GreaterThan(maxPct) {
		return generic.NewFieldError(generic.ErrInvalidRules, "savings_pct", "must be within 0-100")
	}
	for name, v := range map[string]generic.Money{
		"toiletries_fixed":    r.ToiletriesFixed,
		"snacks_fixed":        r.SnacksFixed,
		"entertainment_fixed": r.EntertainmentFixed,
	} {
		if v.IsNegative() {
			return generic.NewFieldError(generic.ErrInvalidRules, name, "must not be negative")
		}
	}
	if r.DebtChunk.LessThan(generic.NewMoneyFromInt(1)) {
		return generic.NewFieldError(generic.ErrInvalidRules, "debt_chunk", "must be at least 1")
	}
	return nil
}

// normalizeCaps validates caps and rewrites alias keys to bucket names.
// A nil map stays nil.
func normalizeCaps(caps Caps) (Caps, error) {
	if caps == nil {
		return nil, nil
	}
	out := make(Caps, len(caps))
	for name, c := range caps {
		b, ok := ParseBucket(string(name))
		if !ok {
			return nil, fmt.Errorf("cap for %q: %w", name, generic.ErrUnknownBucket)
		}
		if b == BucketSavings && c.Enabled {
			return nil, generic.NewFieldError(generic.ErrInvalidRules, "caps.savings", "savings cannot be capped")
		}
		if c.Max.IsNegative() {
			return nil, generic.NewFieldError(generic.ErrInvalidRules, "caps."+string(b), "max must not be negative")
		}
		out[b] = c
	}
	return out, nil
}

// SetBalance overwrites one bucket's balance (manual correction).
func SetBalance(s *State, name Bucket, amount generic.Money, now time.Time) error {
	b, ok := ParseBucket(string(name))
	if !ok {
		return fmt.Errorf("set balance %q: %w", name, generic.ErrUnknownBucket)
	}
	if amount.IsNegative() {
		return generic.NewFieldError(generic.ErrInvalidAmount, "amount", "must not be negative")
	}
	before := s.Balances.Get(b)
	if s.Balances == nil {
		s.Balances = make(Balances, len(Buckets))
	}
	s.Balances[b] = amount
	s.record(now, KindBalanceEdit, b, amount, fmt.Sprintf("%s set %s -> %s", b, before, amount))
	return s.afterEdit(now)
}

// SetDebt overwrites the outstanding debt.
func SetDebt(s *State, amount generic.Money, now time.Time) error {
	if amount.IsNegative() {
		return generic.NewFieldError(generic.ErrInvalidAmount, "debt", "must not be negative")
	}
	before := s.Debt
	s.Debt = amount
	s.record(now, KindBalanceEdit, "", amount, fmt.Sprintf("debt set %s -> %s", before, amount))
	return s.afterEdit(now)
}

// PayDebt records a payment made outside the waterfall. Overpayment is
// clamped to the outstanding debt; the amount actually paid is returned.
func PayDebt(s *State, amount generic.Money, now time.Time) (generic.Money, error) {
	if !amount.IsPositive() {
		return generic.Zero, generic.NewFieldError(generic.ErrInvalidAmount, "amount", "must be positive")
	}
	paid := amount.Min(s.Debt)
	s.Debt = s.Debt.Sub(paid)
	s.record(now, KindDebtPayment, "", paid, fmt.Sprintf("debt payment %s, %s outstanding", paid, s.Debt))
	return paid, s.afterEdit(now)
}

// UpdateSplitRules replaces the waterfall parameters.
func UpdateSplitRules(s *State, r SplitRules, now time.Time) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.Split = r
	s.record(now, KindSettings, "", generic.Zero,
		fmt.Sprintf("split rules: savings %s%%, toiletries %s, snacks %s, entertainment %s, debt chunk %s",
			r.SavingsPct, r.ToiletriesFixed, r.SnacksFixed, r.EntertainmentFixed, r.DebtChunk))
	return s.afterEdit(now)
}

// UpdateCaps replaces the regular and debt-mode caps. A nil map keeps the
// current value.
func UpdateCaps(s *State, caps, debtCaps Caps, now time.Time) error {
	caps, err := normalizeCaps(caps)
	if err != nil {
		return err
	}
	debtCaps, err = normalizeCaps(debtCaps)
	if err != nil {
		return err
	}
	if caps != nil {
		s.Caps = caps
	}
	if debtCaps != nil {
		s.DebtCaps = debtCaps
	}
	s.record(now, KindSettings, "", generic.Zero, "caps updated")
	return s.afterEdit(now)
}

// SetWorkdayRules toggles the weekly exclusions. PTO is edited separately.
func SetWorkdayRules(s *State, excludeTuesday, excludeWednesday bool, now time.Time) error {
	s.Workdays.ExcludeTuesday = excludeTuesday
	s.Workdays.ExcludeWednesday = excludeWednesday
	s.record(now, KindSettings, "", generic.Zero,
		fmt.Sprintf("workdays: exclude tuesday=%t wednesday=%t", excludeTuesday, excludeWednesday))
	return s.afterEdit(now)
}

// SetNextPayDate changes the pay date without a deposit.
func SetNextPayDate(s *State, d generic.Date, now time.Time) error {
	s.NextPayDate = d
	s.record(now, KindSettings, "", generic.Zero, fmt.Sprintf("next pay date %s", d))
	return s.afterEdit(now)
}

// AddPTO excludes a future day from the work calendar.
func AddPTO(s *State, d generic.Date, label string, now time.Time) error {
	today := generic.DateOf(now)
	s.calendarFor(today)
	if err := s.Workdays.AddPTO(d, label, today); err != nil {
		return err
	}
	s.record(now, KindSettings, "", generic.Zero, fmt.Sprintf("pto %s %s", d, label))
	return s.afterEdit(now)
}

// RemovePTO drops a PTO day.
func RemovePTO(s *State, d generic.Date, now time.Time) error {
	if err := s.Workdays.RemovePTO(d); err != nil {
		return err
	}
	s.record(now, KindSettings, "", generic.Zero, fmt.Sprintf("pto %s removed", d))
	return s.afterEdit(now)
}

// AddBill validates and appends a bill.
func AddBill(s *State, b Bill, now time.Time) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.Bills = append(s.Bills, b)
	s.record(now, KindSettings, "", b.Amount, fmt.Sprintf("bill %s added (%s)", b.Name, b.Recurrence.Kind))
	return nil
}

// RemoveBill deletes the bill at index i.
func RemoveBill(s *State, i int, now time.Time) (Bill, error) {
	if i < 0 || i >= len(s.Bills) {
		return Bill{}, fmt.Errorf("bill %d: %w", i, generic.ErrNotFound)
	}
	removed := s.Bills[i]
	s.Bills = append(s.Bills[:i], s.Bills[i+1:]...)
	s.record(now, KindSettings, "", removed.Amount, fmt.Sprintf("bill %s removed", removed.Name))
	return removed, nil
}

func (s *State) afterEdit(now time.Time) error {
	EnforceCaps(s, now)
	RefreshSnackLock(s, generic.DateOf(now), true)
	return nil
}
