/*
Package factory converts between the JSON export format and budget.State.

PURPOSE:
  The web app stores its state as one flat JSON object. The factory reads
  that object (from an export, an import, or the SQLite state row), fills in
  defaults for anything missing, and writes it back in the same layout, so
  an export from either side imports into the other.

JSON SCHEMA (abridged):
  {
    "holding": 0, "savings": 600, "tp": 50, "snacks": 75, "ent": 75,
    "debt": 0,
    "nextPayDate": "2025-03-10",
    "snackLockedDate": "2025-03-03",
    "snackAllowanceToday": 15, "snackSpentToday": 0,
    "excludeTue": true, "excludeWed": true,
    "pto": [{"date": "2025-03-07", "label": "dentist"}],
    "bills": [{"name": "rent", "amount": 500, "dueType": "monthly", "dayOfMonth": 1}],
    "savingsPct": 35, "debtChunk": 25,
    "tpFixed": 50, "snacksFixed": 75, "entFixed": 75,
    "caps": {"tp": {"enabled": true, "max": 100}, ...},
    "debtCaps": {"snacks": {"enabled": false, "max": 50}, ...},
    "protection": {"bucket": "tp", "weekday": 3, "floor": 15},
    "history": [{"id": "...", "ts": "...", "type": "purchase", "category": "snacks", "amount": 4.5}],
    "lastSaved": "2025-03-03T09:00:00Z"
  }

DEFAULTING:
  - Missing scalar fields take budget.NewState() defaults
  - Caps merge per field, so {"caps": {"tp": {"max": 80}}} keeps tp enabled
  - Unknown fields and unknown cap buckets are ignored
  - Amounts are rounded to the cent; negative balances and debt clamp to 0
  - History is newest first in JSON and chronological in State

SEE ALSO:
  - budget/state.go: State and defaults
  - store/sqlite/sqlite.go: Persists the encoded form
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// StateJSON is the flat export layout. Pointer fields distinguish "missing"
// from zero so defaults can be applied.
type StateJSON struct {
	Holding    *generic.Money `json:"holding,omitempty"`
	Savings    *generic.Money `json:"savings,omitempty"`
	Toiletries *generic.Money `json:"tp,omitempty"`
	Snacks     *generic.Money `json:"snacks,omitempty"`
	Ent        *generic.Money `json:"ent,omitempty"`
	Debt       *generic.Money `json:"debt,omitempty"`

	NextPayDate string `json:"nextPayDate"`

	SnackLockedDate     string         `json:"snackLockedDate"`
	SnackAllowanceToday *generic.Money `json:"snackAllowanceToday,omitempty"`
	SnackSpentToday     *generic.Money `json:"snackSpentToday,omitempty"`

	ExcludeTue *bool     `json:"excludeTue,omitempty"`
	ExcludeWed *bool     `json:"excludeWed,omitempty"`
	PTO        []PTOJSON `json:"pto"`

	Bills []BillJSON `json:"bills"`

	SavingsPct  *decimal.Decimal `json:"savingsPct,omitempty"`
	DebtChunk   *generic.Money   `json:"debtChunk,omitempty"`
	TPFixed     *generic.Money   `json:"tpFixed,omitempty"`
	SnacksFixed *generic.Money   `json:"snacksFixed,omitempty"`
	EntFixed    *generic.Money   `json:"entFixed,omitempty"`

	Caps       map[string]CapJSON `json:"caps,omitempty"`
	DebtCaps   map[string]CapJSON `json:"debtCaps,omitempty"`
	Protection *ProtectionJSON    `json:"protection,omitempty"`

	History   []HistoryJSON `json:"history"`
	LastSaved string        `json:"lastSaved"`
}

// PTOJSON is one PTO day.
type PTOJSON struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
}

// BillJSON mirrors the bill form: only the field matching DueType is used.
type BillJSON struct {
	Name       string        `json:"name"`
	Amount     generic.Money `json:"amount"`
	DueType    string        `json:"dueType"` // once, monthly, weekly
	DayOfMonth int           `json:"dayOfMonth,omitempty"`
	DayOfWeek  int           `json:"dayOfWeek,omitempty"`
	DueDate    string        `json:"dueDate,omitempty"`
}

// CapJSON is a partial cap; missing fields keep the default.
type CapJSON struct {
	Enabled *bool          `json:"enabled,omitempty"`
	Max     *generic.Money `json:"max,omitempty"`
}

// ProtectionJSON configures the toiletries-style reserve.
type ProtectionJSON struct {
	Bucket  string         `json:"bucket,omitempty"`
	Weekday *int           `json:"weekday,omitempty"` // Sunday=0
	Floor   *generic.Money `json:"floor,omitempty"`
}

// HistoryJSON is one log line.
type HistoryJSON struct {
	ID       string        `json:"id,omitempty"`
	TS       string        `json:"ts"`
	Type     string        `json:"type"`
	Category string        `json:"category,omitempty"`
	Amount   generic.Money `json:"amount"`
	Note     string        `json:"note,omitempty"`
}

// legacyKinds maps history types written by the web app.
var legacyKinds = map[string]budget.HistoryKind{
	"newcheck": budget.KindPaycheck,
	"check":    budget.KindPaycheck,
}

// exportNames writes buckets under their short names, as the web app does.
var exportNames = map[budget.Bucket]string{
	budget.BucketToiletries:    "tp",
	budget.BucketEntertainment: "ent",
}

func exportName(b budget.Bucket) string {
	if n, ok := exportNames[b]; ok {
		return n
	}
	return string(b)
}

// =============================================================================
// STATE FACTORY
// =============================================================================

// StateFactory converts JSON state to budget.State and back.
type StateFactory struct{}

// NewStateFactory creates a new state factory.
func NewStateFactory() *StateFactory {
	return &StateFactory{}
}

// ParseState parses a JSON document into a State.
func (f *StateFactory) ParseState(data []byte) (*budget.State, error) {
	var sj StateJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, fmt.Errorf("failed to parse state JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// Encode renders a State as indented JSON.
func (f *StateFactory) Encode(s *budget.State) ([]byte, error) {
	data, err := json.MarshalIndent(f.ToJSON(s), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// FromJSON converts StateJSON to a State, applying defaults.
func (f *StateFactory) FromJSON(sj StateJSON) (*budget.State, error) {
	s := budget.NewState()

	// Balances
	for b, v := range map[budget.Bucket]*generic.Money{
		budget.BucketHolding:       sj.Holding,
		budget.BucketSavings:       sj.Savings,
		budget.BucketToiletries:    sj.Toiletries,
		budget.BucketSnacks:        sj.Snacks,
		budget.BucketEntertainment: sj.Ent,
	} {
		if v != nil {
			s.Balances[b] = v.NonNegative()
		}
	}
	if sj.Debt != nil {
		s.Debt = sj.Debt.NonNegative()
	}

	var err error
	if s.NextPayDate, err = parseDate("nextPayDate", sj.NextPayDate); err != nil {
		return nil, err
	}

	// Snack lock
	if s.SnackLock.LockedDate, err = parseDate("snackLockedDate", sj.SnackLockedDate); err != nil {
		return nil, err
	}
	s.SnackLock.AllowanceToday = moneyOr(sj.SnackAllowanceToday, generic.Zero)
	s.SnackLock.SpentToday = moneyOr(sj.SnackSpentToday, generic.Zero)

	// Workdays
	s.Workdays.ExcludeTuesday = boolOr(sj.ExcludeTue, s.Workdays.ExcludeTuesday)
	s.Workdays.ExcludeWednesday = boolOr(sj.ExcludeWed, s.Workdays.ExcludeWednesday)
	for _, pj := range sj.PTO {
		d, err := parseDate("pto.date", pj.Date)
		if err != nil {
			return nil, err
		}
		if d.IsZero() {
			continue
		}
		s.Workdays.PTO = append(s.Workdays.PTO, budget.PTODay{Date: d, Label: pj.Label})
	}

	// Bills
	for _, bj := range sj.Bills {
		bill, err := parseBill(bj)
		if err != nil {
			return nil, err
		}
		s.Bills = append(s.Bills, bill)
	}

	// Split rules
	if sj.SavingsPct != nil {
		s.Split.SavingsPct = *sj.SavingsPct
	}
	s.Split.DebtChunk = moneyOr(sj.DebtChunk, s.Split.DebtChunk)
	s.Split.ToiletriesFixed = moneyOr(sj.TPFixed, s.Split.ToiletriesFixed)
	s.Split.SnacksFixed = moneyOr(sj.SnacksFixed, s.Split.SnacksFixed)
	s.Split.EntertainmentFixed = moneyOr(sj.EntFixed, s.Split.EntertainmentFixed)
	s.Split = clampSplit(s.Split)

	// Caps
	mergeCaps(s.Caps, sj.Caps)
	mergeCaps(s.DebtCaps, sj.DebtCaps)

	if sj.Protection != nil {
		s.Protection = parseProtection(*sj.Protection, s.Protection)
	}

	// History: newest first on the wire
	for i := len(sj.History) - 1; i >= 0; i-- {
		s.History = append(s.History, parseHistory(sj.History[i]))
	}
	if over := len(s.History) - budget.MaxHistory; over > 0 {
		s.History = s.History[over:]
	}

	if sj.LastSaved != "" {
		if t, err := time.Parse(time.RFC3339, sj.LastSaved); err == nil {
			s.LastSaved = t
		}
	}

	return s, nil
}

// ToJSON converts a State to StateJSON.
func (f *StateFactory) ToJSON(s *budget.State) StateJSON {
	ptr := func(m generic.Money) *generic.Money { return &m }
	pct := s.Split.SavingsPct
	excludeTue, excludeWed := s.Workdays.ExcludeTuesday, s.Workdays.ExcludeWednesday
	sj := StateJSON{
		Holding:    ptr(s.Balances.Get(budget.BucketHolding)),
		Savings:    ptr(s.Balances.Get(budget.BucketSavings)),
		Toiletries: ptr(s.Balances.Get(budget.BucketToiletries)),
		Snacks:     ptr(s.Balances.Get(budget.BucketSnacks)),
		Ent:        ptr(s.Balances.Get(budget.BucketEntertainment)),
		Debt:       ptr(s.Debt),

		NextPayDate: s.NextPayDate.String(),

		SnackLockedDate:     s.SnackLock.LockedDate.String(),
		SnackAllowanceToday: ptr(s.SnackLock.AllowanceToday),
		SnackSpentToday:     ptr(s.SnackLock.SpentToday),

		ExcludeTue: &excludeTue,
		ExcludeWed: &excludeWed,
		PTO:        []PTOJSON{},
		Bills:      []BillJSON{},

		SavingsPct:  &pct,
		DebtChunk:   ptr(s.Split.DebtChunk),
		TPFixed:     ptr(s.Split.ToiletriesFixed),
		SnacksFixed: ptr(s.Split.SnacksFixed),
		EntFixed:    ptr(s.Split.EntertainmentFixed),

		Caps:     capsJSON(s.Caps),
		DebtCaps: capsJSON(s.DebtCaps),

		History: []HistoryJSON{},
	}

	for _, p := range s.Workdays.PTO {
		sj.PTO = append(sj.PTO, PTOJSON{Date: p.Date.String(), Label: p.Label})
	}
	for _, b := range s.Bills {
		sj.Bills = append(sj.Bills, billJSON(b))
	}

	wd := int(s.Protection.Weekday)
	sj.Protection = &ProtectionJSON{
		Bucket:  exportName(s.Protection.Bucket),
		Weekday: &wd,
		Floor:   ptr(s.Protection.Floor),
	}

	for _, h := range s.RecentHistory(0) {
		sj.History = append(sj.History, HistoryJSON{
			ID:       h.ID,
			TS:       h.Timestamp.UTC().Format(time.RFC3339),
			Type:     string(h.Kind),
			Category: exportName(h.Bucket),
			Amount:   h.Amount,
			Note:     h.Details,
		})
	}
	if !s.LastSaved.IsZero() {
		sj.LastSaved = s.LastSaved.UTC().Format(time.RFC3339)
	}
	return sj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseDate(field, s string) (generic.Date, error) {
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.Date{}, generic.NewFieldError(generic.ErrInvalidDate, field, fmt.Sprintf("%q is not YYYY-MM-DD", s))
	}
	return d, nil
}

func moneyOr(v *generic.Money, def generic.Money) generic.Money {
	if v == nil {
		return def
	}
	return *v
}

// clampSplit pulls stored split rules back into range. Older exports may carry
// a zero debt chunk or a percentage outside 0-100.
func clampSplit(r budget.SplitRules) budget.SplitRules {
	r.SavingsPct = decimal.Max(decimal.Zero, decimal.Min(r.SavingsPct, maxSavingsPct))
	r.DebtChunk = r.DebtChunk.Max(minDebtChunk)
	r.ToiletriesFixed = r.ToiletriesFixed.NonNegative()
	r.SnacksFixed = r.SnacksFixed.NonNegative()
	r.EntertainmentFixed = r.EntertainmentFixed.NonNegative()
	return r
}

var (
	maxSavingsPct = decimal.NewFromInt(100)
	minDebtChunk  = generic.NewMoneyFromInt(1)
)

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// parseBill keeps malformed recurrences; the scheduler treats them as never
// due. Only an unreadable date is an error.
func parseBill(bj BillJSON) (budget.Bill, error) {
	bill := budget.Bill{Name: bj.Name, Amount: bj.Amount.NonNegative()}
	switch budget.RecurrenceKind(bj.DueType) {
	case budget.RecurOnce:
		d, err := parseDate("bills.dueDate", bj.DueDate)
		if err != nil {
			return budget.Bill{}, err
		}
		bill.Recurrence = budget.Once(d)
	case budget.RecurWeekly:
		bill.Recurrence = budget.Weekly(bj.DayOfWeek)
	case budget.RecurMonthly:
		bill.Recurrence = budget.Monthly(bj.DayOfMonth)
	default:
		bill.Recurrence = budget.Recurrence{Kind: budget.RecurrenceKind(bj.DueType)}
	}
	return bill, nil
}

func billJSON(b budget.Bill) BillJSON {
	bj := BillJSON{Name: b.Name, Amount: b.Amount, DueType: string(b.Recurrence.Kind)}
	switch b.Recurrence.Kind {
	case budget.RecurOnce:
		bj.DueDate = b.Recurrence.Date.String()
	case budget.RecurMonthly:
		bj.DayOfMonth = b.Recurrence.DayOfMonth
	case budget.RecurWeekly:
		bj.DayOfWeek = b.Recurrence.DayOfWeek
	}
	return bj
}

func mergeCaps(into budget.Caps, from map[string]CapJSON) {
	for name, cj := range from {
		b, ok := budget.ParseBucket(name)
		if !ok || b == budget.BucketSavings {
			continue
		}
		c := into[b]
		c.Enabled = boolOr(cj.Enabled, c.Enabled)
		c.Max = moneyOr(cj.Max, c.Max).NonNegative()
		into[b] = c
	}
}

func capsJSON(caps budget.Caps) map[string]CapJSON {
	out := make(map[string]CapJSON, len(caps))
	for b, c := range caps {
		enabled, max := c.Enabled, c.Max
		out[exportName(b)] = CapJSON{Enabled: &enabled, Max: &max}
	}
	return out
}

func parseProtection(pj ProtectionJSON, def budget.ProtectionRule) budget.ProtectionRule {
	rule := def
	if b, ok := budget.ParseBucket(pj.Bucket); ok && budget.Spendable(b) {
		rule.Bucket = b
	}
	if pj.Weekday != nil && *pj.Weekday >= 0 && *pj.Weekday <= 6 {
		rule.Weekday = time.Weekday(*pj.Weekday)
	}
	rule.Floor = moneyOr(pj.Floor, rule.Floor).NonNegative()
	return rule
}

func parseHistory(hj HistoryJSON) budget.HistoryEntry {
	kind, ok := legacyKinds[hj.Type]
	if !ok {
		kind = budget.HistoryKind(hj.Type)
	}
	bucket, _ := budget.ParseBucket(hj.Category)
	id := hj.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts, _ := time.Parse(time.RFC3339, hj.TS)
	return budget.HistoryEntry{
		ID:        id,
		Timestamp: ts,
		Kind:      kind,
		Bucket:    bucket,
		Amount:    hj.Amount,
		Details:   hj.Note,
	}
}
