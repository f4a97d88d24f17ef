/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract. The state export
  format lives in factory/state.go instead; it must stay compatible with
  the web app's saved documents.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  State:
    StateDTO, BalancesDTO, SnackLockDTO, SplitRulesDTO, CapDTO, BillDTO,
    PTODTO, ProtectionDTO

  Paychecks:
    PaycheckRequest, AllocationDTO, BucketFillDTO, DueBillDTO

  Purchases:
    PurchaseRequest, DecisionDTO, PurchaseResponse

  Settings:
    AmountRequest, DebtPaymentResponse, CapsRequest, WorkdaysRequest,
    PayDateRequest, PTORequest

  History:
    HistoryEntryDTO, CapMoveDTO

AMOUNTS:
  Money fields marshal as JSON numbers with two decimals and accept
  numbers or quoted decimal strings on input (see generic/money.go).

SEE ALSO:
  - handlers.go: Uses these types
  - factory/state.go: Export/import document
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// STATE
// =============================================================================

// BalancesDTO is every bucket plus the outstanding debt.
type BalancesDTO struct {
	Holding       generic.Money `json:"holding"`
	Savings       generic.Money `json:"savings"`
	Toiletries    generic.Money `json:"toiletries"`
	Snacks        generic.Money `json:"snacks"`
	Entertainment generic.Money `json:"entertainment"`
	Debt          generic.Money `json:"debt"`
	Total         generic.Money `json:"total"`
}

// SnackLockDTO is today's allowance as locked in.
type SnackLockDTO struct {
	LockedDate     string        `json:"locked_date"`
	AllowanceToday generic.Money `json:"allowance_today"`
	SpentToday     generic.Money `json:"spent_today"`
	RemainingToday generic.Money `json:"remaining_today"`
}

// SplitRulesDTO is used both in responses and as the PUT body.
type SplitRulesDTO struct {
	SavingsPct         decimal.Decimal `json:"savings_pct"`
	ToiletriesFixed    generic.Money   `json:"toiletries_fixed"`
	SnacksFixed        generic.Money   `json:"snacks_fixed"`
	EntertainmentFixed generic.Money   `json:"entertainment_fixed"`
	DebtChunk          generic.Money   `json:"debt_chunk"`
}

// CapDTO is one bucket cap.
type CapDTO struct {
	Enabled bool          `json:"enabled"`
	Max     generic.Money `json:"max"`
}

// BillDTO is a bill definition. Exactly one of DueDate, DayOfMonth and
// DayOfWeek is read, according to Recurrence.
type BillDTO struct {
	Name       string        `json:"name"`
	Amount     generic.Money `json:"amount"`
	Recurrence string        `json:"recurrence"` // once, monthly, weekly
	DueDate    string        `json:"due_date,omitempty"`
	DayOfMonth int           `json:"day_of_month,omitempty"`
	DayOfWeek  int           `json:"day_of_week,omitempty"` // Sunday=0
	NextDue    string        `json:"next_due,omitempty"`    // response only
}

// PTODTO is one day off.
type PTODTO struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
}

// ProtectionDTO describes the reserve kept ahead of a weekday.
type ProtectionDTO struct {
	Bucket  string        `json:"bucket"`
	Weekday string        `json:"weekday"`
	Floor   generic.Money `json:"floor"`
}

// StateDTO is the full dashboard view.
type StateDTO struct {
	Balances         BalancesDTO       `json:"balances"`
	NextPayDate      string            `json:"next_pay_date,omitempty"`
	SnackLock        SnackLockDTO      `json:"snack_lock"`
	ExcludeTuesday   bool              `json:"exclude_tuesday"`
	ExcludeWednesday bool              `json:"exclude_wednesday"`
	PTO              []PTODTO          `json:"pto"`
	Bills            []BillDTO         `json:"bills"`
	Split            SplitRulesDTO     `json:"split"`
	Caps             map[string]CapDTO `json:"caps"`
	DebtCaps         map[string]CapDTO `json:"debt_caps"`
	Protection       ProtectionDTO     `json:"protection"`
	LastSaved        string            `json:"last_saved,omitempty"`
}

// =============================================================================
// PAYCHECKS
// =============================================================================

// PaycheckRequest is the body of POST /api/paychecks.
type PaycheckRequest struct {
	Deposit     generic.Money `json:"deposit"`
	NextPayDate string        `json:"next_pay_date"`
	Debt        generic.Money `json:"debt"`
}

// BucketFillDTO reports one fixed top-up.
type BucketFillDTO struct {
	Bucket   string        `json:"bucket"`
	Wanted   generic.Money `json:"wanted"`
	Applied  generic.Money `json:"applied"`
	Overflow generic.Money `json:"overflow"`
}

// DueBillDTO is a bill resolved to a due date.
type DueBillDTO struct {
	Name    string        `json:"name"`
	Amount  generic.Money `json:"amount"`
	DueDate string        `json:"due_date"`
}

// AllocationDTO describes one waterfall run.
type AllocationDTO struct {
	Deposit           generic.Money   `json:"deposit"`
	NextPayDate       string          `json:"next_pay_date"`
	PreCapMoves       []CapMoveDTO    `json:"pre_cap_moves"`
	BillsDue          []DueBillDTO    `json:"bills_due"`
	BillsTotal        generic.Money   `json:"bills_total"`
	HoldingAdded      generic.Money   `json:"holding_added"`
	BillShortfall     generic.Money   `json:"bill_shortfall"`
	SavingsAdded      generic.Money   `json:"savings_added"`
	Fills             []BucketFillDTO `json:"fills"`
	OverflowToSavings generic.Money   `json:"overflow_to_savings"`
	DebtPaid          generic.Money   `json:"debt_paid"`
	DebtRemaining     generic.Money   `json:"debt_remaining"`
	LeftoverToSavings generic.Money   `json:"leftover_to_savings"`
	Balances          BalancesDTO     `json:"balances"`
	SnackLock         SnackLockDTO    `json:"snack_lock"`
}

// =============================================================================
// PURCHASES
// =============================================================================

// PurchaseRequest is the body of both purchase endpoints.
type PurchaseRequest struct {
	Amount generic.Money `json:"amount"`
	Bucket string        `json:"bucket"`
}

// DecisionDTO is the authorizer's verdict.
type DecisionDTO struct {
	OK                 bool          `json:"ok"`
	Bucket             string        `json:"bucket"`
	Amount             generic.Money `json:"amount"`
	RemainingIfApplied generic.Money `json:"remaining_if_applied"`
	DailyRemaining     generic.Money `json:"daily_remaining"`
	DaysLeftToNextPay  int           `json:"days_left_to_next_pay"`
	PayDateKnown       bool          `json:"pay_date_known"`
	Reason             string        `json:"reason,omitempty"`
	Detail             string        `json:"detail,omitempty"`
}

// PurchaseResponse is the decision plus balances after applying it.
type PurchaseResponse struct {
	Decision DecisionDTO `json:"decision"`
	Applied  bool        `json:"applied"`
	Balances BalancesDTO `json:"balances"`
}

// =============================================================================
// SETTINGS
// =============================================================================

// AmountRequest is a single amount body (balance edits, debt payments).
type AmountRequest struct {
	Amount generic.Money `json:"amount"`
}

// DebtPaymentResponse reports how much of a payment was applied.
type DebtPaymentResponse struct {
	Paid     generic.Money `json:"paid"`
	Balances BalancesDTO   `json:"balances"`
}

// CapsRequest replaces caps per bucket. Omitted maps keep the current caps.
type CapsRequest struct {
	Caps     map[string]CapDTO `json:"caps,omitempty"`
	DebtCaps map[string]CapDTO `json:"debt_caps,omitempty"`
}

// WorkdaysRequest sets the excluded weekdays.
type WorkdaysRequest struct {
	ExcludeTuesday   bool `json:"exclude_tuesday"`
	ExcludeWednesday bool `json:"exclude_wednesday"`
}

// PayDateRequest sets or clears (empty string) the next pay date.
type PayDateRequest struct {
	NextPayDate string `json:"next_pay_date"`
}

// PTORequest adds a day off.
type PTORequest struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

// =============================================================================
// HISTORY
// =============================================================================

// HistoryEntryDTO is one log line.
type HistoryEntryDTO struct {
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"`
	Kind      string        `json:"kind"`
	Bucket    string        `json:"bucket,omitempty"`
	Amount    generic.Money `json:"amount"`
	Details   string        `json:"details,omitempty"`
}

// CapMoveDTO reports one bucket trimmed into savings.
type CapMoveDTO struct {
	Bucket  string        `json:"bucket"`
	Moved   generic.Money `json:"moved"`
	Balance generic.Money `json:"balance"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toBalancesDTO(b budget.Balances, debt generic.Money) BalancesDTO {
	return BalancesDTO{
		Holding:       b.Get(budget.BucketHolding),
		Savings:       b.Get(budget.BucketSavings),
		Toiletries:    b.Get(budget.BucketToiletries),
		Snacks:        b.Get(budget.BucketSnacks),
		Entertainment: b.Get(budget.BucketEntertainment),
		Debt:          debt,
		Total:         b.Total(),
	}
}

func toSnackLockDTO(l budget.SnackLock) SnackLockDTO {
	return SnackLockDTO{
		LockedDate:     l.LockedDate.String(),
		AllowanceToday: l.AllowanceToday,
		SpentToday:     l.SpentToday,
		RemainingToday: l.AllowanceToday.Sub(l.SpentToday).NonNegative(),
	}
}

func toSplitRulesDTO(r budget.SplitRules) SplitRulesDTO {
	return SplitRulesDTO{
		SavingsPct:         r.SavingsPct,
		ToiletriesFixed:    r.ToiletriesFixed,
		SnacksFixed:        r.SnacksFixed,
		EntertainmentFixed: r.EntertainmentFixed,
		DebtChunk:          r.DebtChunk,
	}
}

func (r SplitRulesDTO) toRules() budget.SplitRules {
	return budget.SplitRules{
		SavingsPct:         r.SavingsPct,
		ToiletriesFixed:    r.ToiletriesFixed,
		SnacksFixed:        r.SnacksFixed,
		EntertainmentFixed: r.EntertainmentFixed,
		DebtChunk:          r.DebtChunk,
	}
}

func toCapDTOs(c budget.Caps) map[string]CapDTO {
	out := make(map[string]CapDTO, len(c))
	for b, cp := range c {
		out[string(b)] = CapDTO{Enabled: cp.Enabled, Max: cp.Max}
	}
	return out
}

func toBillDTO(b budget.Bill, today generic.Date) BillDTO {
	dto := BillDTO{
		Name:       b.Name,
		Amount:     b.Amount,
		Recurrence: string(b.Recurrence.Kind),
	}
	switch b.Recurrence.Kind {
	case budget.RecurOnce:
		dto.DueDate = b.Recurrence.Date.String()
	case budget.RecurMonthly:
		dto.DayOfMonth = b.Recurrence.DayOfMonth
	case budget.RecurWeekly:
		dto.DayOfWeek = b.Recurrence.DayOfWeek
	}
	if next, ok := budget.NextOccurrence(b, today); ok {
		dto.NextDue = next.String()
	}
	return dto
}

func toStateDTO(s *budget.State, today generic.Date) StateDTO {
	dto := StateDTO{
		Balances:         toBalancesDTO(s.Balances, s.Debt),
		NextPayDate:      s.NextPayDate.String(),
		SnackLock:        toSnackLockDTO(s.SnackLock),
		ExcludeTuesday:   s.Workdays.ExcludeTuesday,
		ExcludeWednesday: s.Workdays.ExcludeWednesday,
		PTO:              make([]PTODTO, len(s.Workdays.PTO)),
		Bills:            make([]BillDTO, len(s.Bills)),
		Split:            toSplitRulesDTO(s.Split),
		Caps:             toCapDTOs(s.Caps),
		DebtCaps:         toCapDTOs(s.DebtCaps),
		Protection: ProtectionDTO{
			Bucket:  string(s.Protection.Bucket),
			Weekday: s.Protection.Weekday.String(),
			Floor:   s.Protection.Floor,
		},
	}
	for i, p := range s.Workdays.PTO {
		dto.PTO[i] = PTODTO{Date: p.Date.String(), Label: p.Label}
	}
	for i, b := range s.Bills {
		dto.Bills[i] = toBillDTO(b, today)
	}
	if !s.LastSaved.IsZero() {
		dto.LastSaved = s.LastSaved.Format(time.RFC3339)
	}
	return dto
}

func toAllocationDTO(r budget.AllocationResult, debt generic.Money) AllocationDTO {
	dto := AllocationDTO{
		Deposit:           r.Deposit,
		NextPayDate:       r.NextPayDate.String(),
		PreCapMoves:       toCapMoveDTOs(r.PreCapMoves),
		BillsDue:          make([]DueBillDTO, len(r.BillsDue)),
		BillsTotal:        r.BillsTotal,
		HoldingAdded:      r.HoldingAdded,
		BillShortfall:     r.BillShortfall,
		SavingsAdded:      r.SavingsAdded,
		Fills:             make([]BucketFillDTO, len(r.Fills)),
		OverflowToSavings: r.OverflowToSavings,
		DebtPaid:          r.DebtPaid,
		DebtRemaining:     r.DebtRemaining,
		LeftoverToSavings: r.LeftoverToSavings,
		Balances:          toBalancesDTO(r.Balances, debt),
		SnackLock:         toSnackLockDTO(r.SnackLock),
	}
	for i, b := range r.BillsDue {
		dto.BillsDue[i] = DueBillDTO{Name: b.Name, Amount: b.Amount, DueDate: b.DueDate.String()}
	}
	for i, f := range r.Fills {
		dto.Fills[i] = BucketFillDTO{Bucket: string(f.Bucket), Wanted: f.Wanted, Applied: f.Applied, Overflow: f.Overflow}
	}
	return dto
}

func toCapMoveDTOs(moves []budget.CapMove) []CapMoveDTO {
	dtos := make([]CapMoveDTO, len(moves))
	for i, m := range moves {
		dtos[i] = CapMoveDTO{Bucket: string(m.From), Moved: m.Amount, Balance: m.Balance}
	}
	return dtos
}

func toDecisionDTO(d budget.Decision) DecisionDTO {
	return DecisionDTO{
		OK:                 d.OK,
		Bucket:             string(d.Bucket),
		Amount:             d.Amount,
		RemainingIfApplied: d.RemainingIfApplied,
		DailyRemaining:     d.DailyRemaining,
		DaysLeftToNextPay:  d.DaysLeftToNextPay,
		PayDateKnown:       d.PayDateKnown,
		Reason:             string(d.Reason),
		Detail:             d.Detail,
	}
}

func toHistoryDTOs(entries []budget.HistoryEntry) []HistoryEntryDTO {
	dtos := make([]HistoryEntryDTO, len(entries))
	for i, h := range entries {
		dtos[i] = HistoryEntryDTO{
			ID:        h.ID,
			Timestamp: h.Timestamp.Format(time.RFC3339),
			Kind:      string(h.Kind),
			Bucket:    string(h.Bucket),
			Amount:    h.Amount,
			Details:   h.Details,
		}
	}
	return dtos
}
