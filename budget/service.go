/*
service.go - Single logical owner of the budget state

PURPOSE:
  The engine functions are synchronous and stateless; Service is the one
  place that serialises them. Every call takes the mutex, loads the state
  (defaults when nothing is stored), runs exactly one engine operation and
  saves the result before releasing the lock.

CLOCK:
  Service reads the time once per call from its Clock and passes it down.
  Engine code never reads the wall clock.

SEE ALSO:
  - store.go: Store interface
  - store/memory.go, ../store/sqlite: implementations
*/
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/budget-engine/generic"
)

// Service runs engine operations against a Store.
type Service struct {
	store Store
	clock func() time.Time
	log   zerolog.Logger

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		clock: time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock() }

func (s *Service) load(ctx context.Context) (*State, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load state: %w", generic.ErrStoreFailed, err)
	}
	if st == nil {
		s.log.Info().Msg("no saved state, starting from defaults")
		st = NewState()
	}
	return st, nil
}

// update runs fn on the loaded state and saves it. fn's error aborts the
// save, so a failed validation leaves the stored state untouched.
func (s *Service) update(ctx context.Context, fn func(st *State, now time.Time) error) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := fn(st, now); err != nil {
		return nil, err
	}
	st.LastSaved = now
	if err := s.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("%w: save state: %w", generic.ErrStoreFailed, err)
	}
	return st.Clone(), nil
}

// =============================================================================
// CORE OPERATIONS
// =============================================================================

// Snapshot returns the current state after rolling the snack lock over to
// today if needed.
func (s *Service) Snapshot(ctx context.Context) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		RefreshSnackLock(st, generic.DateOf(now), false)
		return nil
	})
}

// ReceivePaycheck runs the allocation waterfall.
func (s *Service) ReceivePaycheck(ctx context.Context, p Paycheck) (AllocationResult, error) {
	var res AllocationResult
	_, err := s.update(ctx, func(st *State, now time.Time) error {
		var err error
		res, err = Allocate(st, p, now)
		return err
	})
	if err != nil {
		return AllocationResult{}, err
	}
	s.log.Info().
		Str("deposit", p.Deposit.String()).
		Str("next_pay_date", p.NextPayDate.String()).
		Str("savings", res.Balances.Get(BucketSavings).String()).
		Str("debt_paid", res.DebtPaid.String()).
		Msg("paycheck allocated")
	return res, nil
}

// CheckPurchase previews a purchase without spending.
func (s *Service) CheckPurchase(ctx context.Context, req PurchaseRequest) (Decision, error) {
	var d Decision
	_, err := s.update(ctx, func(st *State, now time.Time) error {
		d = Authorize(st, req, generic.DateOf(now))
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	s.log.Debug().
		Str("bucket", string(req.Bucket)).
		Str("amount", req.Amount.String()).
		Bool("ok", d.OK).
		Str("reason", string(d.Reason)).
		Msg("purchase checked")
	return d, nil
}

// ApplyDecision commits a decision returned earlier by CheckPurchase. It is
// a no-op for rejected or stale decisions.
func (s *Service) ApplyDecision(ctx context.Context, d Decision) (Balances, bool, error) {
	var (
		balances Balances
		applied  bool
	)
	_, err := s.update(ctx, func(st *State, now time.Time) error {
		balances, applied = Apply(st, d, now)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	s.logPurchase(d, applied)
	return balances, applied, nil
}

// PurchaseResult is what Purchase saw and did under one lock.
type PurchaseResult struct {
	Decision Decision
	Applied  bool
	State    *State // saved state after the purchase
}

// Purchase authorizes and applies in one step under the lock, so nothing can
// change between the check and the spend.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	var res PurchaseResult
	st, err := s.update(ctx, func(st *State, now time.Time) error {
		res.Decision = Authorize(st, req, generic.DateOf(now))
		_, res.Applied = Apply(st, res.Decision, now)
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	res.State = st
	s.logPurchase(res.Decision, res.Applied)
	return res, nil
}

func (s *Service) logPurchase(d Decision, applied bool) {
	if !applied {
		s.log.Info().
			Str("bucket", string(d.Bucket)).
			Str("amount", d.Amount.String()).
			Str("reason", string(d.Reason)).
			Msg("purchase not applied")
		return
	}
	s.log.Info().
		Str("bucket", string(d.Bucket)).
		Str("amount", d.Amount.String()).
		Str("remaining", d.RemainingIfApplied.String()).
		Msg("purchase applied")
}

// RefreshAllowance force-recomputes today's snack allowance.
func (s *Service) RefreshAllowance(ctx context.Context) (SnackLock, error) {
	var lock SnackLock
	_, err := s.update(ctx, func(st *State, now time.Time) error {
		lock = RefreshSnackLock(st, generic.DateOf(now), true)
		return nil
	})
	return lock, err
}

// Rollover is the daily housekeeping run: prune expired PTO and roll the
// snack lock over. Returns how many PTO days were pruned.
func (s *Service) Rollover(ctx context.Context) (int, error) {
	var pruned int
	_, err := s.update(ctx, func(st *State, now time.Time) error {
		today := generic.DateOf(now)
		pruned = st.Workdays.PrunePTO(today)
		RefreshSnackLock(st, today, false)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("pto_pruned", pruned).Msg("daily rollover")
	return pruned, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Service) SetBalance(ctx context.Context, b Bucket, amount generic.Money) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		return SetBalance(st, b, amount, now)
	})
}

func (s *Service) SetDebt(ctx context.Context, amount generic.Money) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		return SetDebt(st, amount, now)
	})
}

// PayDebt returns the amount actually applied to the debt.
func (s *Service) PayDebt(ctx context.Context, amount generic.Money) (generic.Money, *State, error) {
	var paid generic.Money
	st, err := s.update(ctx, func(st *State, now time.Time) error {
		var err error
		paid, err = PayDebt(st, amount, now)
		return err
	})
	return paid, st, err
}

func (s *Service) UpdateSplitRules(ctx context.Context, r SplitRules) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		return UpdateSplitRules(st, r, now)
	})
}

func (s *Service) UpdateCaps(ctx context.Context, caps, debtCaps Caps) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		return UpdateCaps(st, caps, debtCaps, now)
	})
}

func (s *Service) SetWorkdayRules(ctx context.Context, excludeTuesday, excludeWednesday bool) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		return SetWorkdayRules(st, excludeTuesday, excludeWednesday, now)
	})
}

func (s *Service) SetNextPayDate(ctx context.Context, d generic.Date) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		return SetNextPayDate(st, d, now)
	})
}

func (s *Service) AddPTO(ctx context.Context, d generic.Date, label string) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		return AddPTO(st, d, label, now)
	})
}

func (s *Service) RemovePTO(ctx context.Context, d generic.Date) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		return RemovePTO(st, d, now)
	})
}

func (s *Service) AddBill(ctx context.Context, b Bill) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		return AddBill(st, b, now)
	})
}

func (s *Service) RemoveBill(ctx context.Context, i int) (*State, error) {
	return s.update(ctx, func(st *State, now time.Time) error {
		_, err := RemoveBill(st, i, now)
		return err
	})
}

// EnforceCaps trims every capped bucket and reports what moved.
func (s *Service) EnforceCaps(ctx context.Context) ([]CapMove, error) {
	var moves []CapMove
	_, err := s.update(ctx, func(st *State, now time.Time) error {
		moves = EnforceCaps(st, now)
		RefreshSnackLock(st, generic.DateOf(now), true)
		return nil
	})
	return moves, err
}

// =============================================================================
// HISTORY, EXPORT, IMPORT
// =============================================================================

// History returns up to n entries, newest first. Stores that keep a longer
// log than the in-state window answer from their own table.
func (s *Service) History(ctx context.Context, n int) ([]HistoryEntry, error) {
	if hs, ok := s.store.(HistoryStore); ok {
		entries, err := hs.RecentHistory(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("%w: history: %w", generic.ErrStoreFailed, err)
		}
		return entries, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return st.RecentHistory(n), nil
}

// Export returns a copy of the stored state without touching it.
func (s *Service) Export(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Import replaces the stored state wholesale, then restores the cap
// invariant and refreshes the snack lock.
func (s *Service) Import(ctx context.Context, imported *State) (*State, error) {
	if imported == nil {
		return nil, fmt.Errorf("import: %w", generic.ErrNotFound)
	}
	st, err := s.update(ctx, func(st *State, now time.Time) error {
		*st = *imported.Clone()
		EnforceCaps(st, now)
		RefreshSnackLock(st, generic.DateOf(now), true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("history", len(st.History)).Int("bills", len(st.Bills)).Msg("state imported")
	return st, nil
}
