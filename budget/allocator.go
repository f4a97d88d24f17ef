/*
allocator.go - Paycheck waterfall

PURPOSE:
  Splits a deposit across the buckets in a fixed priority order. Every step
  draws from one running `remaining` amount; nothing is reordered and nothing
  is partial except through min() clamps and the cap/overflow policy.

WATERFALL:
  1. Record the new pay date and the reported debt
  2. Bills due before the new pay date -> holding (shortfall reported)
  3. SavingsPct of what's left -> savings
  4. Fixed top-ups, in order toiletries, snacks, entertainment; overflow
     above a cap goes to savings
  5. Debt paydown in whole chunks only
  6. Anything left -> savings
  7. History entry + forced snack lock refresh

CONSERVATION:
  HoldingAdded + SavingsAdded + sum(Fills.Applied) + OverflowToSavings +
  DebtPaid + LeftoverToSavings == Deposit, to the cent.

SEE ALSO:
  - bills.go: DueBillsBefore
  - caps.go: ApplyCap
  - allowance.go: RefreshSnackLock
*/
package budget

import (
	"fmt"
	"time"

	"github.com/warp/budget-engine/generic"
)

// fixedOrder is the lifestyle top-up order. Changing it changes who gets
// funded when the deposit runs short.
var fixedOrder = []Bucket{BucketToiletries, BucketSnacks, BucketEntertainment}

// Paycheck is the input to Allocate.
type Paycheck struct {
	Deposit     generic.Money
	NextPayDate generic.Date
	Debt        generic.Money // reported outstanding debt, replaces State.Debt
}

// Validate checks the paycheck before any mutation.
func (p Paycheck) Validate() error {
	if p.Deposit.IsNegative() {
		return generic.NewFieldError(generic.ErrInvalidAmount, "deposit", "must not be negative")
	}
	if p.Debt.IsNegative() {
		return generic.NewFieldError(generic.ErrInvalidAmount, "debt", "must not be negative")
	}
	return nil
}

// BucketFill reports one fixed top-up.
type BucketFill struct {
	Bucket   Bucket
	Wanted   generic.Money
	Applied  generic.Money
	Overflow generic.Money
	Cap      Cap
}

// AllocationResult describes every step of one waterfall run.
type AllocationResult struct {
	Deposit     generic.Money
	NextPayDate generic.Date

	// Existing balances trimmed when the reported debt switched on stricter
	// caps. Not part of the deposit.
	PreCapMoves []CapMove

	BillsDue      []DueBill
	BillsTotal    generic.Money
	HoldingAdded  generic.Money
	HoldingSpill  generic.Money // over a holding cap, sent to savings
	BillShortfall generic.Money

	SavingsAdded generic.Money // percentage step only

	Fills             []BucketFill
	OverflowToSavings generic.Money // includes HoldingSpill

	DebtPaid          generic.Money
	DebtRemaining     generic.Money
	LeftoverToSavings generic.Money

	Balances  Balances
	SnackLock SnackLock
}

// Distributed sums every destination of the deposit.
func (r AllocationResult) Distributed() generic.Money {
	total := generic.SumMoney(r.HoldingAdded, r.SavingsAdded, r.OverflowToSavings, r.DebtPaid, r.LeftoverToSavings)
	for _, f := range r.Fills {
		total = total.Add(f.Applied)
	}
	return total
}

// Fill returns the fill for b.
func (r AllocationResult) Fill(b Bucket) BucketFill {
	for _, f := range r.Fills {
		if f.Bucket == b {
			return f
		}
	}
	return BucketFill{Bucket: b}
}

// Allocate runs the paycheck waterfall against s.
func Allocate(s *State, p Paycheck, now time.Time) (AllocationResult, error) {
	if err := p.Validate(); err != nil {
		return AllocationResult{}, err
	}
	today := generic.DateOf(now)
	s.calendarFor(today)

	remaining := p.Deposit
	res := AllocationResult{Deposit: p.Deposit, NextPayDate: p.NextPayDate}

	// 1. pay date and reported debt
	s.NextPayDate = p.NextPayDate
	s.Debt = p.Debt
	res.PreCapMoves = EnforceCaps(s, now)

	// 2. bills -> holding
	if !p.NextPayDate.IsZero() {
		res.BillsDue, res.BillsTotal = DueBillsBefore(s.Bills, today, p.NextPayDate)
	}
	toHolding := res.BillsTotal.Min(remaining)
	res.BillShortfall = res.BillsTotal.Sub(toHolding)
	hold := ApplyCap(s, BucketHolding, s.Balances.Get(BucketHolding), toHolding)
	s.credit(BucketHolding, hold.Applied)
	s.credit(BucketSavings, hold.Overflow)
	res.HoldingAdded = hold.Applied
	res.HoldingSpill = hold.Overflow
	res.OverflowToSavings = hold.Overflow
	remaining = remaining.Sub(toHolding)

	// 3. savings percentage
	res.SavingsAdded = remaining.Percent(s.Split.SavingsPct)
	s.credit(BucketSavings, res.SavingsAdded)
	remaining = remaining.Sub(res.SavingsAdded)

	// 4. fixed top-ups
	for _, b := range fixedOrder {
		wanted := s.Split.FixedFor(b).Min(remaining).NonNegative()
		cr := ApplyCap(s, b, s.Balances.Get(b), wanted)
		s.credit(b, cr.Applied)
		s.credit(BucketSavings, cr.Overflow)
		res.Fills = append(res.Fills, BucketFill{
			Bucket:   b,
			Wanted:   wanted,
			Applied:  cr.Applied,
			Overflow: cr.Overflow,
			Cap:      EffectiveCap(s, b),
		})
		res.OverflowToSavings = res.OverflowToSavings.Add(cr.Overflow)
		remaining = remaining.Sub(wanted)
	}

	// 5. debt in whole chunks
	chunk := s.Split.DebtChunk.Max(generic.NewMoneyFromInt(1))
	res.DebtPaid = s.Debt.Min(remaining.FloorChunks(chunk))
	s.Debt = s.Debt.Sub(res.DebtPaid)
	remaining = remaining.Sub(res.DebtPaid)
	res.DebtRemaining = s.Debt

	// 6. sweep
	if remaining.IsPositive() {
		res.LeftoverToSavings = remaining
		s.credit(BucketSavings, remaining)
	}

	// 7. log and refresh
	details := fmt.Sprintf("deposit %s, next check %s", p.Deposit, p.NextPayDate)
	if p.NextPayDate.IsZero() {
		details = fmt.Sprintf("deposit %s, next check unset", p.Deposit)
	}
	if res.BillShortfall.IsPositive() {
		details += fmt.Sprintf(", bills short %s", res.BillShortfall)
	}
	s.record(now, KindPaycheck, "", p.Deposit, details)

	res.SnackLock = RefreshSnackLock(s, today, true)
	res.Balances = s.Balances.Copy()
	return res, nil
}
