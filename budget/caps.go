package budget

import (
	"fmt"
	"time"

	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// CAP POLICY - Clamp bucket balances, route overflow to savings
// =============================================================================

// CapResult splits a proposed credit into what fits and what overflows.
type CapResult struct {
	Applied  generic.Money
	Overflow generic.Money
}

// EffectiveCap returns the cap in force for a bucket. While debt is
// outstanding an enabled debt cap replaces the regular one; if both are
// enabled the lower max wins.
func EffectiveCap(s *State, b Bucket) Cap {
	regular := s.Caps[b]
	if !s.DebtActive() {
		return regular
	}
	debt, ok := s.DebtCaps[b]
	if !ok || !debt.Enabled {
		return regular
	}
	if regular.Enabled && regular.Max.LessThan(debt.Max) {
		return regular
	}
	return debt
}

// ApplyCap decides how much of add fits under the bucket's cap.
func ApplyCap(s *State, b Bucket, current, add generic.Money) CapResult {
	if !add.IsPositive() {
		return CapResult{}
	}
	c := EffectiveCap(s, b)
	if !c.Enabled || b == BucketSavings {
		return CapResult{Applied: add}
	}
	room := c.Max.Sub(current).NonNegative()
	applied := room.Min(add)
	return CapResult{Applied: applied, Overflow: add.Sub(applied)}
}

// CapMove records one bucket trimmed by EnforceCaps.
type CapMove struct {
	From    Bucket
	Amount  generic.Money
	Balance generic.Money // balance left in From
}

// EnforceCaps moves any balance above its cap into savings. It is idempotent
// and never touches savings or debt.
func EnforceCaps(s *State, now time.Time) []CapMove {
	var moves []CapMove
	for _, b := range Buckets {
		if b == BucketSavings {
			continue
		}
		c := EffectiveCap(s, b)
		if !c.Enabled {
			continue
		}
		bal := s.Balances.Get(b)
		if !bal.GreaterThan(c.Max) {
			continue
		}
		excess := bal.Sub(c.Max)
		s.debit(b, excess)
		s.credit(BucketSavings, excess)
		s.record(now, KindCapOverflow, b, excess,
			fmt.Sprintf("%s over cap %s, %s moved to savings", b, c.Max, excess))
		moves = append(moves, CapMove{From: b, Amount: excess, Balance: s.Balances.Get(b)})
	}
	return moves
}
