/*
handlers.go - HTTP API handlers for the budget engine

PURPOSE:
  Exposes the budget service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every rule to budget.Service.

ENDPOINTS:
  State:
    GET    /api/state                  Balances, snack lock, rules, bills
    GET    /api/history?limit=N        Most recent N history entries

  Money in and out:
    POST   /api/paychecks              Run the allocation waterfall
    POST   /api/purchases/check        Preview a purchase (no spend)
    POST   /api/purchases              Re-check and apply a purchase
    POST   /api/allowance/refresh      Force-recompute today's allowance

  Settings:
    PUT    /api/balances/{bucket}      Manual balance correction
    PUT    /api/debt                   Overwrite outstanding debt
    POST   /api/debt/payments          Debt payment outside the waterfall
    PUT    /api/settings/split         Split rules
    PUT    /api/settings/caps          Caps and debt caps
    PUT    /api/settings/workdays      Weekday exclusions
    PUT    /api/settings/pay-date      Next pay date
    POST   /api/pto                    Add PTO day
    DELETE /api/pto/{date}             Remove PTO day
    POST   /api/bills                  Add bill
    DELETE /api/bills/{index}          Remove bill
    POST   /api/caps/enforce           Move over-cap balances to savings

  Backup:
    GET    /api/export                 Web-app compatible JSON document
    POST   /api/import                 Replace state from a JSON document

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert DTOs to engine types (bucket names, dates, amounts)
  3. Call budget.Service (one locked load -> operation -> save)
  4. Serialize response, update metrics

ERROR HANDLING:
  Purchase rejections are NOT errors: they come back as 200 with ok=false.
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Bill or PTO day not found
  - 500: Store failures

SECURITY NOTE:
  No authentication. The server is meant to listen on localhost for a
  single user.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/factory"
	"github.com/warp/budget-engine/generic"
)

const (
	defaultHistoryLimit = 50
	maxImportBytes      = 4 << 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *budget.Service
	Factory *factory.StateFactory
	Metrics *Metrics
	Log     zerolog.Logger
}

// NewHandler creates a new handler around the given service.
func NewHandler(svc *budget.Service, log zerolog.Logger) *Handler {
	return &Handler{
		Service: svc,
		Factory: factory.NewStateFactory(),
		Metrics: NewMetrics(),
		Log:     log,
	}
}

func (h *Handler) today() generic.Date {
	return generic.DateOf(h.Service.Now())
}

// =============================================================================
// STATE HANDLERS
// =============================================================================

// GetState returns the dashboard view.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Snapshot(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to load state", err)
		return
	}
	h.Metrics.ObserveState(st)
	writeJSON(w, http.StatusOK, toStateDTO(st, h.today()))
}

// GetHistory returns the most recent entries, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit (use a non-negative integer)", err)
			return
		}
		limit = n
	}

	entries, err := h.Service.History(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTOs(entries))
}

// =============================================================================
// PAYCHECK & PURCHASE HANDLERS
// =============================================================================

// ReceivePaycheck runs the allocation waterfall.
func (h *Handler) ReceivePaycheck(w http.ResponseWriter, r *http.Request) {
	var req PaycheckRequest
	if !decodeBody(w, r, &req) {
		return
	}

	nextPay, err := generic.ParseDate(req.NextPayDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid next_pay_date format (use YYYY-MM-DD)", err)
		return
	}

	res, err := h.Service.ReceivePaycheck(r.Context(), budget.Paycheck{
		Deposit:     req.Deposit,
		NextPayDate: nextPay,
		Debt:        req.Debt,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to allocate paycheck", err)
		return
	}

	h.Metrics.RecordPaycheck(res.Deposit)
	h.Metrics.ObserveBalances(res.Balances, res.DebtRemaining)
	writeJSON(w, http.StatusCreated, toAllocationDTO(res, res.DebtRemaining))
}

// CheckPurchase previews a purchase without spending.
func (h *Handler) CheckPurchase(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePurchase(w, r)
	if !ok {
		return
	}

	d, err := h.Service.CheckPurchase(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Failed to check purchase", err)
		return
	}
	h.Metrics.RecordCheck(d)
	writeJSON(w, http.StatusOK, toDecisionDTO(d))
}

// Purchase re-checks and applies in one step.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePurchase(w, r)
	if !ok {
		return
	}

	res, err := h.Service.Purchase(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Failed to apply purchase", err)
		return
	}
	h.Metrics.RecordPurchase(res.Decision, res.Applied)
	h.Metrics.ObserveState(res.State)

	writeJSON(w, http.StatusOK, PurchaseResponse{
		Decision: toDecisionDTO(res.Decision),
		Applied:  res.Applied,
		Balances: toBalancesDTO(res.State.Balances, res.State.Debt),
	})
}

// decodePurchase reads the body and resolves the bucket name. Unknown
// buckets are passed through so the authorizer rejects them with a reason.
func (h *Handler) decodePurchase(w http.ResponseWriter, r *http.Request) (budget.PurchaseRequest, bool) {
	var req PurchaseRequest
	if !decodeBody(w, r, &req) {
		return budget.PurchaseRequest{}, false
	}
	bucket := budget.Bucket(req.Bucket)
	if b, ok := budget.ParseBucket(req.Bucket); ok {
		bucket = b
	}
	return budget.PurchaseRequest{Amount: req.Amount, Bucket: bucket}, true
}

// RefreshAllowance force-recomputes today's snack allowance.
func (h *Handler) RefreshAllowance(w http.ResponseWriter, r *http.Request) {
	lock, err := h.Service.RefreshAllowance(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to refresh allowance", err)
		return
	}
	h.Metrics.SnackRemaining.Set(lock.AllowanceToday.Sub(lock.SpentToday).NonNegative().Float64())
	writeJSON(w, http.StatusOK, toSnackLockDTO(lock))
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// SetBalance overwrites one bucket.
func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")
	bucket, ok := budget.ParseBucket(name)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown bucket %q", name), generic.ErrUnknownBucket)
		return
	}

	var req AmountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	st, err := h.Service.SetBalance(r.Context(), bucket, req.Amount)
	h.writeState(w, "Failed to set balance", st, err)
}

// SetDebt overwrites the outstanding debt.
func (h *Handler) SetDebt(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := h.Service.SetDebt(r.Context(), req.Amount)
	h.writeState(w, "Failed to set debt", st, err)
}

// PayDebt records a payment made outside the waterfall.
func (h *Handler) PayDebt(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	paid, st, err := h.Service.PayDebt(r.Context(), req.Amount)
	if err != nil {
		h.writeServiceError(w, "Failed to record debt payment", err)
		return
	}
	h.Metrics.ObserveState(st)
	writeJSON(w, http.StatusCreated, DebtPaymentResponse{
		Paid:     paid,
		Balances: toBalancesDTO(st.Balances, st.Debt),
	})
}

// UpdateSplitRules replaces the waterfall parameters.
func (h *Handler) UpdateSplitRules(w http.ResponseWriter, r *http.Request) {
	var req SplitRulesDTO
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := h.Service.UpdateSplitRules(r.Context(), req.toRules())
	h.writeState(w, "Failed to update split rules", st, err)
}

// UpdateCaps replaces caps and/or debt caps.
func (h *Handler) UpdateCaps(w http.ResponseWriter, r *http.Request) {
	var req CapsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := h.Service.UpdateCaps(r.Context(), fromCapDTOs(req.Caps), fromCapDTOs(req.DebtCaps))
	h.writeState(w, "Failed to update caps", st, err)
}

// SetWorkdayRules toggles the weekday exclusions.
func (h *Handler) SetWorkdayRules(w http.ResponseWriter, r *http.Request) {
	var req WorkdaysRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := h.Service.SetWorkdayRules(r.Context(), req.ExcludeTuesday, req.ExcludeWednesday)
	h.writeState(w, "Failed to update workdays", st, err)
}

// SetNextPayDate sets or clears the next pay date.
func (h *Handler) SetNextPayDate(w http.ResponseWriter, r *http.Request) {
	var req PayDateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := generic.ParseDate(req.NextPayDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid next_pay_date format (use YYYY-MM-DD)", err)
		return
	}
	st, err := h.Service.SetNextPayDate(r.Context(), d)
	h.writeState(w, "Failed to set pay date", st, err)
}

// AddPTO excludes a future day.
func (h *Handler) AddPTO(w http.ResponseWriter, r *http.Request) {
	var req PTORequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	st, err := h.Service.AddPTO(r.Context(), d, req.Label)
	if err != nil {
		h.writeServiceError(w, "Failed to add PTO", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStateDTO(st, h.today()))
}

// RemovePTO drops a PTO day.
func (h *Handler) RemovePTO(w http.ResponseWriter, r *http.Request) {
	d, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	st, err := h.Service.RemovePTO(r.Context(), d)
	h.writeState(w, "Failed to remove PTO", st, err)
}

// AddBill validates and appends a bill.
func (h *Handler) AddBill(w http.ResponseWriter, r *http.Request) {
	var req BillDTO
	if !decodeBody(w, r, &req) {
		return
	}
	bill, err := fromBillDTO(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bill", err)
		return
	}
	st, err := h.Service.AddBill(r.Context(), bill)
	if err != nil {
		h.writeServiceError(w, "Failed to add bill", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStateDTO(st, h.today()))
}

// RemoveBill deletes the bill at the given index.
func (h *Handler) RemoveBill(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bill index", err)
		return
	}
	st, err := h.Service.RemoveBill(r.Context(), idx)
	h.writeState(w, "Failed to remove bill", st, err)
}

// EnforceCaps trims every capped bucket into savings.
func (h *Handler) EnforceCaps(w http.ResponseWriter, r *http.Request) {
	moves, err := h.Service.EnforceCaps(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to enforce caps", err)
		return
	}
	writeJSON(w, http.StatusOK, toCapMoveDTOs(moves))
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

// Export returns the stored state as a web-app compatible document.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Export(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to export state", err)
		return
	}
	doc, err := h.Factory.Encode(st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode state", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="budget.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// Import replaces the stored state with the uploaded document.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	imported, err := h.Factory.ParseState(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid state document", err)
		return
	}
	st, err := h.Service.Import(r.Context(), imported)
	h.writeState(w, "Failed to import state", st, err)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		resp.Code = errorCode(err)
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps engine errors to status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		h.Log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// writeState answers a settings edit with the updated dashboard view.
func (h *Handler) writeState(w http.ResponseWriter, message string, st *budget.State, err error) {
	if err != nil {
		h.writeServiceError(w, message, err)
		return
	}
	h.Metrics.ObserveState(st)
	writeJSON(w, http.StatusOK, toStateDTO(st, h.today()))
}

func errorCode(err error) string {
	for _, c := range []struct {
		target error
		code   string
	}{
		{generic.ErrInvalidAmount, "invalid_amount"},
		{generic.ErrInvalidDate, "invalid_date"},
		{generic.ErrInvalidBill, "invalid_bill"},
		{generic.ErrInvalidRules, "invalid_rules"},
		{generic.ErrUnknownBucket, "unknown_bucket"},
		{generic.ErrNotFound, "not_found"},
		{generic.ErrStoreFailed, "store_failed"},
	} {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// fromCapDTOs keeps nil as nil so an omitted map leaves caps unchanged.
// Keys are passed through; the service resolves aliases and rejects
// unknown buckets.
func fromCapDTOs(in map[string]CapDTO) budget.Caps {
	if in == nil {
		return nil
	}
	out := make(budget.Caps, len(in))
	for name, c := range in {
		out[budget.Bucket(name)] = budget.Cap{Enabled: c.Enabled, Max: c.Max}
	}
	return out
}

func fromBillDTO(dto BillDTO) (budget.Bill, error) {
	bill := budget.Bill{Name: dto.Name, Amount: dto.Amount}
	switch budget.RecurrenceKind(dto.Recurrence) {
	case budget.RecurOnce:
		d, err := generic.ParseDate(dto.DueDate)
		if err != nil {
			return budget.Bill{}, err
		}
		bill.Recurrence = budget.Once(d)
	case budget.RecurMonthly:
		bill.Recurrence = budget.Monthly(dto.DayOfMonth)
	case budget.RecurWeekly:
		bill.Recurrence = budget.Weekly(dto.DayOfWeek)
	default:
		return budget.Bill{}, generic.NewFieldError(generic.ErrInvalidBill, "recurrence", "must be once, monthly or weekly")
	}
	return bill, nil
}
