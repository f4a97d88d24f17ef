/*
Package budget implements the cash-allocation and spending-authorization rules.

PURPOSE:
  Splits each paycheck across a fixed set of buckets, derives a renewable
  daily snack allowance from a custom work calendar, and authorizes or
  rejects discretionary purchases against bucket balances and protection
  rules.

KEY CONCEPTS IN THIS FILE (state.go):
  - Bucket: closed enumeration of money pots
  - State: the single mutable aggregate every operation reads and mutates
  - NewState: defaults for a fresh install

OWNERSHIP:
  State is owned by the caller (see service.go). Engine functions receive a
  *State, mutate it in place and return a result value. The engine keeps
  nothing between calls.

SEE ALSO:
  - calendar.go: Workday rules and PTO
  - bills.go: Bill recurrence
  - allowance.go: Daily snack lock
  - caps.go: Cap and overflow policy
  - allocator.go: Paycheck waterfall
  - purchase.go: Purchase authorization
*/
package budget

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// BUCKETS
// =============================================================================

// Bucket names a money pot.
type Bucket string

const (
	BucketHolding       Bucket = "holding"
	BucketSavings       Bucket = "savings"
	BucketToiletries    Bucket = "toiletries"
	BucketSnacks        Bucket = "snacks"
	BucketEntertainment Bucket = "entertainment"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{BucketHolding, BucketSavings, BucketToiletries, BucketSnacks, BucketEntertainment}

// bucketAliases accepts the short names used by older exports.
var bucketAliases = map[string]Bucket{
	"tp":  BucketToiletries,
	"ent": BucketEntertainment,
}

// ParseBucket resolves a bucket name or alias.
func ParseBucket(name string) (Bucket, bool) {
	b := Bucket(name)
	for _, known := range Buckets {
		if b == known {
			return b, true
		}
	}
	if alias, ok := bucketAliases[name]; ok {
		return alias, true
	}
	return "", false
}

func (b Bucket) String() string { return string(b) }

// Balances maps each bucket to its current amount.
type Balances map[Bucket]generic.Money

// Get returns the balance of b (Zero if missing).
func (bs Balances) Get(b Bucket) generic.Money { return bs[b] }

// Copy returns an independent copy.
func (bs Balances) Copy() Balances {
	out := make(Balances, len(bs))
	for k, v := range bs {
		out[k] = v
	}
	return out
}

// Total sums every bucket.
func (bs Balances) Total() generic.Money {
	total := generic.Zero
	for _, b := range Buckets {
		total = total.Add(bs[b])
	}
	return total
}

// =============================================================================
// RULES
// =============================================================================

// SplitRules drive the paycheck waterfall.
type SplitRules struct {
	SavingsPct         decimal.Decimal // 0-100
	ToiletriesFixed    generic.Money
	SnacksFixed        generic.Money
	EntertainmentFixed generic.Money
	DebtChunk          generic.Money // >= 1
}

// FixedFor returns the fixed top-up for a lifestyle bucket.
func (r SplitRules) FixedFor(b Bucket) generic.Money {
	switch b {
	case BucketToiletries:
		return r.ToiletriesFixed
	case BucketSnacks:
		return r.SnacksFixed
	case BucketEntertainment:
		return r.EntertainmentFixed
	}
	return generic.Zero
}

// Cap limits a bucket's balance.
type Cap struct {
	Enabled bool
	Max     generic.Money
}

// Caps maps a bucket to its cap.
type Caps map[Bucket]Cap

func (c Caps) Copy() Caps {
	out := make(Caps, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ProtectionRule keeps a reserve in a bucket ahead of a recurring weekday.
type ProtectionRule struct {
	Bucket  Bucket
	Weekday time.Weekday
	Floor   generic.Money
}

// SnackLock caches today's allowance so reads within a day are stable.
type SnackLock struct {
	LockedDate     generic.Date
	AllowanceToday generic.Money
	SpentToday     generic.Money
}

// =============================================================================
// STATE
// =============================================================================

// State is the whole persisted budget.
type State struct {
	Balances    Balances
	Debt        generic.Money
	NextPayDate generic.Date // zero = unset

	Workdays   WorkdayRules
	Bills      []Bill
	Split      SplitRules
	Caps       Caps
	DebtCaps   Caps // substituted while Debt > 0
	Protection ProtectionRule

	SnackLock SnackLock
	History   []HistoryEntry

	LastSaved time.Time
}

// NewState returns a fresh budget with default rules and zero balances.
func NewState() *State {
	s := &State{
		Balances: make(Balances, len(Buckets)),
		Workdays: WorkdayRules{ExcludeTuesday: true, ExcludeWednesday: true},
		Split: SplitRules{
			SavingsPct:         decimal.NewFromInt(35),
			ToiletriesFixed:    generic.NewMoneyFromInt(50),
			SnacksFixed:        generic.NewMoneyFromInt(75),
			EntertainmentFixed: generic.NewMoneyFromInt(75),
			DebtChunk:          generic.NewMoneyFromInt(25),
		},
		Caps: Caps{
			BucketHolding:       {Enabled: false},
			BucketToiletries:    {Enabled: true, Max: generic.NewMoneyFromInt(100)},
			BucketSnacks:        {Enabled: true, Max: generic.NewMoneyFromInt(75)},
			BucketEntertainment: {Enabled: true, Max: generic.NewMoneyFromInt(75)},
		},
		DebtCaps: Caps{
			BucketSnacks:        {Enabled: false, Max: generic.NewMoneyFromInt(50)},
			BucketEntertainment: {Enabled: false, Max: generic.NewMoneyFromInt(50)},
		},
		Protection: DefaultProtection(),
	}
	for _, b := range Buckets {
		s.Balances[b] = generic.Zero
	}
	return s
}

// DefaultProtection keeps 15.00 of toiletries ahead of a Wednesday.
func DefaultProtection() ProtectionRule {
	return ProtectionRule{
		Bucket:  BucketToiletries,
		Weekday: time.Wednesday,
		Floor:   generic.NewMoneyFromInt(15),
	}
}

// Clone returns a deep copy; stores hand out clones so callers never alias.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Balances = s.Balances.Copy()
	c.Caps = s.Caps.Copy()
	c.DebtCaps = s.DebtCaps.Copy()
	c.Workdays.PTO = append([]PTODay(nil), s.Workdays.PTO...)
	c.Bills = append([]Bill(nil), s.Bills...)
	c.History = append([]HistoryEntry(nil), s.History...)
	return &c
}

// DebtActive reports whether debt-mode caps apply.
func (s *State) DebtActive() bool { return s.Debt.IsPositive() }

// credit adds to a bucket balance.
func (s *State) credit(b Bucket, amt generic.Money) {
	if s.Balances == nil {
		s.Balances = make(Balances, len(Buckets))
	}
	s.Balances[b] = s.Balances[b].Add(amt)
}

// debit removes from a bucket balance.
func (s *State) debit(b Bucket, amt generic.Money) {
	s.Balances[b] = s.Balances[b].Sub(amt)
}
