/*
handlers_test.go - HTTP tests for the budget API

Tests for:
- Paycheck -> check -> purchase flow over HTTP
- Error mapping (400 / 404) and error codes
- Settings edits, bills, PTO
- Export/import round trip
- /metrics exposition
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/budget/store"
	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// monday is 2025-03-03 09:00 UTC; the next Monday is the usual pay date.
var monday = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type testServer struct {
	router  *chi.Mux
	handler *Handler
	mem     *store.Memory
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{mem: store.NewMemory(), now: monday}
	svc := budget.NewService(ts.mem, budget.WithClock(func() time.Time { return ts.now }))
	ts.handler = NewHandler(svc, zerolog.Nop())
	ts.router = NewRouter(ts.handler, nil)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func mustMoney(s string) generic.Money     { return generic.MustParseMoney(s) }
func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (ts *testServer) payday(t *testing.T) AllocationDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/paychecks", `{"deposit": 1000, "next_pay_date": "2025-03-10", "debt": 200}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AllocationDTO](t, rec)
}

// =============================================================================
// STATE & FLOW
// =============================================================================

func TestGetState_FreshInstallUsesDefaults(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/state", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[StateDTO](t, rec)
	assert.Equal(t, "0.00", st.Balances.Total.String())
	assert.True(t, st.ExcludeTuesday)
	assert.True(t, st.ExcludeWednesday)
	assert.Equal(t, "35", st.Split.SavingsPct.String())
	assert.Equal(t, "2025-03-03", st.SnackLock.LockedDate)
	assert.True(t, st.Caps["snacks"].Enabled)
	assert.Equal(t, "toiletries", st.Protection.Bucket)
	assert.Equal(t, "Wednesday", st.Protection.Weekday)
}

func TestPaycheckThenPurchase(t *testing.T) {
	// GIVEN: the 1000 paycheck with 200 of debt
	ts := newTestServer(t)
	alloc := ts.payday(t)
	assert.Equal(t, "600.00", alloc.Balances.Savings.String())
	assert.Equal(t, "0.00", alloc.Balances.Debt.String())
	assert.Equal(t, "200.00", alloc.DebtPaid.String())
	assert.Equal(t, "15.00", alloc.SnackLock.AllowanceToday.String())
	require.Len(t, alloc.Fills, 3)

	// WHEN: the full allowance is previewed, then spent
	rec := ts.do(t, http.MethodPost, "/api/purchases/check", PurchaseRequest{Amount: mustMoney("15"), Bucket: "snacks"})
	require.Equal(t, http.StatusOK, rec.Code)
	check := decode[DecisionDTO](t, rec)
	assert.True(t, check.OK)
	assert.Equal(t, 7, check.DaysLeftToNextPay)

	rec = ts.do(t, http.MethodPost, "/api/purchases", PurchaseRequest{Amount: mustMoney("15"), Bucket: "snacks"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PurchaseResponse](t, rec)

	// THEN: spent, and the next cent is over today's limit
	assert.True(t, resp.Applied)
	assert.Equal(t, "60.00", resp.Balances.Snacks.String())

	rec = ts.do(t, http.MethodPost, "/api/purchases", PurchaseRequest{Amount: mustMoney("0.01"), Bucket: "snacks"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[PurchaseResponse](t, rec)
	assert.False(t, resp.Applied)
	assert.False(t, resp.Decision.OK)
	assert.Equal(t, string(budget.ReasonOverDailyLimit), resp.Decision.Reason)
	assert.Equal(t, "60.00", resp.Balances.Snacks.String())
}

func TestPurchase_ResponseMatchesSavedState(t *testing.T) {
	// GIVEN: a paycheck and an outstanding debt set afterwards
	ts := newTestServer(t)
	ts.payday(t)
	rec := ts.do(t, http.MethodPut, "/api/debt", AmountRequest{Amount: mustMoney("300")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN
	rec = ts.do(t, http.MethodPost, "/api/purchases", PurchaseRequest{Amount: mustMoney("10"), Bucket: "entertainment"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PurchaseResponse](t, rec)

	// THEN: balances and debt come from the same save as the purchase
	assert.True(t, resp.Applied)
	assert.Equal(t, "65.00", resp.Balances.Entertainment.String())
	assert.Equal(t, "300.00", resp.Balances.Debt.String())

	rec = ts.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, decode[StateDTO](t, rec).Balances, resp.Balances)
}

func TestPurchase_AliasAndUnknownBucket(t *testing.T) {
	ts := newTestServer(t)
	ts.payday(t)

	// "ent" resolves to entertainment
	rec := ts.do(t, http.MethodPost, "/api/purchases", PurchaseRequest{Amount: mustMoney("10"), Bucket: "ent"})
	resp := decode[PurchaseResponse](t, rec)
	assert.True(t, resp.Applied)
	assert.Equal(t, "entertainment", resp.Decision.Bucket)
	assert.Equal(t, "65.00", resp.Balances.Entertainment.String())

	// savings is not spendable and groceries does not exist: both are
	// rejections, not HTTP errors
	for _, bucket := range []string{"savings", "groceries"} {
		rec = ts.do(t, http.MethodPost, "/api/purchases/check", PurchaseRequest{Amount: mustMoney("1"), Bucket: bucket})
		require.Equal(t, http.StatusOK, rec.Code)
		d := decode[DecisionDTO](t, rec)
		assert.False(t, d.OK, bucket)
		assert.Equal(t, string(budget.ReasonUnknownCategory), d.Reason, bucket)
	}
}

func TestPurchase_ProtectionFloorBoundary(t *testing.T) {
	// GIVEN: 20.00 in toiletries on a Monday, 15.00 kept for Wednesday
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPut, "/api/balances/tp", AmountRequest{Amount: mustMoney("20")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN/THEN: 5.01 would dip below the floor, 5.00 would not
	rec = ts.do(t, http.MethodPost, "/api/purchases/check", PurchaseRequest{Amount: mustMoney("5.01"), Bucket: "toiletries"})
	d := decode[DecisionDTO](t, rec)
	assert.False(t, d.OK)
	assert.Equal(t, string(budget.ReasonProtectionFloor), d.Reason)

	rec = ts.do(t, http.MethodPost, "/api/purchases/check", PurchaseRequest{Amount: mustMoney("5.00"), Bucket: "toiletries"})
	d = decode[DecisionDTO](t, rec)
	assert.True(t, d.OK)
	assert.Equal(t, "15.00", d.RemainingIfApplied.String())
}

func TestRefreshAllowance(t *testing.T) {
	ts := newTestServer(t)
	ts.payday(t)

	rec := ts.do(t, http.MethodPost, "/api/allowance/refresh", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	lock := decode[SnackLockDTO](t, rec)
	assert.Equal(t, "15.00", lock.AllowanceToday.String())
	assert.Equal(t, "15.00", lock.RemainingToday.String())
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrors_MappedToStatusCodes(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"malformed body", http.MethodPost, "/api/paychecks", `{"deposit":`, http.StatusBadRequest, ""},
		{"negative deposit", http.MethodPost, "/api/paychecks", `{"deposit": -1}`, http.StatusBadRequest, "invalid_amount"},
		{"bad pay date", http.MethodPost, "/api/paychecks", `{"deposit": 1, "next_pay_date": "03/10/2025"}`, http.StatusBadRequest, "invalid_date"},
		{"unknown bucket", http.MethodPut, "/api/balances/groceries", AmountRequest{Amount: mustMoney("1")}, http.StatusBadRequest, "unknown_bucket"},
		{"negative balance", http.MethodPut, "/api/balances/snacks", `{"amount": -5}`, http.StatusBadRequest, "invalid_amount"},
		{"savings pct over 100", http.MethodPut, "/api/settings/split", `{"savings_pct": 101, "debt_chunk": 25}`, http.StatusBadRequest, "invalid_rules"},
		{"savings cap", http.MethodPut, "/api/settings/caps", `{"caps": {"savings": {"enabled": true, "max": 10}}}`, http.StatusBadRequest, "invalid_rules"},
		{"weekly bill bad day", http.MethodPost, "/api/bills", `{"name": "gym", "amount": 20, "recurrence": "weekly", "day_of_week": 9}`, http.StatusBadRequest, "invalid_bill"},
		{"bill without recurrence", http.MethodPost, "/api/bills", `{"name": "gym", "amount": 20}`, http.StatusBadRequest, "invalid_bill"},
		{"missing bill", http.MethodDelete, "/api/bills/3", nil, http.StatusNotFound, "not_found"},
		{"bill index not a number", http.MethodDelete, "/api/bills/first", nil, http.StatusBadRequest, ""},
		{"missing pto", http.MethodDelete, "/api/pto/2025-03-07", nil, http.StatusNotFound, "not_found"},
		{"past pto", http.MethodPost, "/api/pto", PTORequest{Date: "2025-03-01"}, http.StatusBadRequest, "invalid_date"},
		{"bad history limit", http.MethodGet, "/api/history?limit=-1", nil, http.StatusBadRequest, ""},
		{"debt payment zero", http.MethodPost, "/api/debt/payments", `{"amount": 0}`, http.StatusBadRequest, "invalid_amount"},
		{"import garbage", http.MethodPost, "/api/import", `not json`, http.StatusBadRequest, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, tc.method, tc.path, tc.body)

			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestErrors_FailedEditLeavesStateUntouched(t *testing.T) {
	ts := newTestServer(t)
	ts.payday(t)
	saves := ts.mem.Saves()

	rec := ts.do(t, http.MethodPut, "/api/settings/split", `{"savings_pct": -1, "debt_chunk": 25}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, saves, ts.mem.Saves())
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_SplitCapsWorkdaysPayDate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/settings/split", SplitRulesDTO{
		SavingsPct:         mustDecimal("40"),
		ToiletriesFixed:    mustMoney("20"),
		SnacksFixed:        mustMoney("30"),
		EntertainmentFixed: mustMoney("40"),
		DebtChunk:          mustMoney("50"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[StateDTO](t, rec)
	assert.Equal(t, "40", st.Split.SavingsPct.String())
	assert.Equal(t, "50.00", st.Split.DebtChunk.String())

	// debt caps only: regular caps keep their values
	rec = ts.do(t, http.MethodPut, "/api/settings/caps", `{"debt_caps": {"ent": {"enabled": true, "max": 40}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st = decode[StateDTO](t, rec)
	assert.True(t, st.DebtCaps["entertainment"].Enabled)
	assert.Equal(t, "40.00", st.DebtCaps["entertainment"].Max.String())
	assert.Equal(t, "75.00", st.Caps["snacks"].Max.String())

	rec = ts.do(t, http.MethodPut, "/api/settings/workdays", WorkdaysRequest{ExcludeTuesday: false, ExcludeWednesday: true})
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[StateDTO](t, rec)
	assert.False(t, st.ExcludeTuesday)
	assert.True(t, st.ExcludeWednesday)

	rec = ts.do(t, http.MethodPut, "/api/settings/pay-date", PayDateRequest{NextPayDate: "2025-03-14"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03-14", decode[StateDTO](t, rec).NextPayDate)

	rec = ts.do(t, http.MethodPut, "/api/settings/pay-date", PayDateRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[StateDTO](t, rec).NextPayDate)
}

func TestSettings_DebtEdits(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/debt", AmountRequest{Amount: mustMoney("80")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "80.00", decode[StateDTO](t, rec).Balances.Debt.String())

	// overpayment is clamped to what is owed
	rec = ts.do(t, http.MethodPost, "/api/debt/payments", AmountRequest{Amount: mustMoney("100")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[DebtPaymentResponse](t, rec)
	assert.Equal(t, "80.00", resp.Paid.String())
	assert.Equal(t, "0.00", resp.Balances.Debt.String())
}

func TestSettings_BalanceEditEnforcesCap(t *testing.T) {
	// GIVEN: snacks capped at 75
	ts := newTestServer(t)

	// WHEN: a correction sets snacks to 90
	rec := ts.do(t, http.MethodPut, "/api/balances/snacks", AmountRequest{Amount: mustMoney("90")})

	// THEN: the excess lands in savings
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[StateDTO](t, rec)
	assert.Equal(t, "75.00", st.Balances.Snacks.String())
	assert.Equal(t, "15.00", st.Balances.Savings.String())
}

func TestEnforceCaps_AfterCapLowered(t *testing.T) {
	ts := newTestServer(t)
	ts.payday(t)

	// lowering the cap trims the bucket as part of the edit
	rec := ts.do(t, http.MethodPut, "/api/settings/caps", `{"caps": {"holding": {"enabled": false}, "tp": {"enabled": true, "max": 100}, "snacks": {"enabled": true, "max": 70}, "ent": {"enabled": true, "max": 75}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "70.00", decode[StateDTO](t, rec).Balances.Snacks.String())

	// a second run finds nothing left to move
	rec = ts.do(t, http.MethodPost, "/api/caps/enforce", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]CapMoveDTO](t, rec))
}

func TestBillsAndPTO(t *testing.T) {
	ts := newTestServer(t)

	// bills
	rec := ts.do(t, http.MethodPost, "/api/bills", BillDTO{Name: "rent", Amount: mustMoney("500"), Recurrence: "monthly", DayOfMonth: 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/api/bills", BillDTO{Name: "car", Amount: mustMoney("99.99"), Recurrence: "once", DueDate: "2025-04-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st := decode[StateDTO](t, rec)
	require.Len(t, st.Bills, 2)
	assert.Equal(t, "2025-03-05", st.Bills[0].NextDue)
	assert.Equal(t, "2025-04-01", st.Bills[1].DueDate)

	rec = ts.do(t, http.MethodDelete, "/api/bills/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[StateDTO](t, rec)
	require.Len(t, st.Bills, 1)
	assert.Equal(t, "car", st.Bills[0].Name)

	// pto
	rec = ts.do(t, http.MethodPost, "/api/pto", PTORequest{Date: "2025-03-07", Label: "dentist"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st = decode[StateDTO](t, rec)
	require.Len(t, st.PTO, 1)
	assert.Equal(t, "dentist", st.PTO[0].Label)

	rec = ts.do(t, http.MethodDelete, "/api/pto/2025-03-07", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[StateDTO](t, rec).PTO)
}

// =============================================================================
// HISTORY, EXPORT, IMPORT
// =============================================================================

func TestHistory_NewestFirstWithLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.payday(t)
	ts.do(t, http.MethodPost, "/api/purchases", PurchaseRequest{Amount: mustMoney("3"), Bucket: "snacks"})

	rec := ts.do(t, http.MethodGet, "/api/history?limit=1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]HistoryEntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "purchase", entries[0].Kind)
	assert.Equal(t, "snacks", entries[0].Bucket)
	assert.Equal(t, "3.00", entries[0].Amount.String())

	rec = ts.do(t, http.MethodGet, "/api/history", nil)
	assert.Len(t, decode[[]HistoryEntryDTO](t, rec), 2)
}

func TestExportImport_RoundTrip(t *testing.T) {
	// GIVEN: a populated budget exported as a document
	ts := newTestServer(t)
	ts.payday(t)
	rec := ts.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := rec.Body.String()
	assert.Contains(t, doc, `"nextPayDate"`)

	// WHEN: it is imported into a fresh install
	other := newTestServer(t)
	rec = other.do(t, http.MethodPost, "/api/import", doc)

	// THEN: balances and history come across
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[StateDTO](t, rec)
	assert.Equal(t, "600.00", st.Balances.Savings.String())
	assert.Equal(t, "2025-03-10", st.NextPayDate)

	rec = other.do(t, http.MethodGet, "/api/history", nil)
	assert.Len(t, decode[[]HistoryEntryDTO](t, rec), 1)
}

func TestImport_WebAppDocumentIsCapped(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/import", `{"snacks": 90, "tp": 10, "theme": "dark"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[StateDTO](t, rec)
	assert.Equal(t, "75.00", st.Balances.Snacks.String())
	assert.Equal(t, "15.00", st.Balances.Savings.String())
	assert.Equal(t, "10.00", st.Balances.Toiletries.String())
}

// =============================================================================
// METRICS & MIDDLEWARE
// =============================================================================

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.payday(t)
	ts.do(t, http.MethodPost, "/api/purchases", PurchaseRequest{Amount: mustMoney("5"), Bucket: "snacks"})
	ts.do(t, http.MethodPost, "/api/purchases", PurchaseRequest{Amount: mustMoney("500"), Bucket: "snacks"})

	rec := ts.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "budget_paychecks_total 1")
	assert.Contains(t, body, "budget_deposited_total 1000")
	assert.Contains(t, body, `budget_purchases_total{bucket="snacks",result="approved"} 1`)
	assert.Contains(t, body, `budget_purchases_total{bucket="snacks",result="rejected"} 1`)
	assert.Contains(t, body, `budget_balance{bucket="snacks"} 70`)
	// the rejected check recomputed the allowance from the 70 left: 14 - 5
	assert.Contains(t, body, "budget_snack_allowance_remaining 9")
	assert.Contains(t, body, `route="/api/paychecks"`)
}

func TestHealthAndRequestID(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc123")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"ok"`))
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	ts := newTestServer(t)
	router := NewRouter(ts.handler, []string{"http://budget.local"})

	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://budget.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://budget.local", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestService_DirectCallsShareStateWithHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.handler.Service.SetBalance(context.Background(), budget.BucketEntertainment, mustMoney("12"))
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/api/state", nil)

	assert.Equal(t, "12.00", decode[StateDTO](t, rec).Balances.Entertainment.String())
}
