package factory_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/factory"
	"github.com/warp/budget-engine/generic"
)

func TestParseState_EmptyObjectIsDefaults(t *testing.T) {
	// GIVEN/WHEN: an empty document
	s, err := factory.NewStateFactory().ParseState([]byte(`{}`))
	require.NoError(t, err)

	// THEN: same rules as a fresh install
	def := budget.NewState()
	assert.True(t, s.Split.SavingsPct.Equal(def.Split.SavingsPct))
	assert.Equal(t, def.Split.DebtChunk.String(), s.Split.DebtChunk.String())
	assert.Equal(t, def.Caps, s.Caps)
	assert.True(t, s.Workdays.ExcludeTuesday)
	assert.True(t, s.Workdays.ExcludeWednesday)
	assert.True(t, s.NextPayDate.IsZero())
	assert.Empty(t, s.History)
	assert.Equal(t, def.Protection, s.Protection)
}

func TestParseState_WebAppExport(t *testing.T) {
	// GIVEN: a document written by the web app, with extra fields
	doc := `{
		"holding": 12.345, "savings": 600, "tp": 50, "snacks": "75", "ent": -4,
		"debt": 0,
		"nextPayDate": "2025-03-10",
		"snackLockedDate": "2025-03-03", "snackAllowanceToday": 15, "snackSpentToday": 2.5,
		"excludeTue": false,
		"pto": [{"date": "2025-03-07", "label": "dentist"}, {"date": ""}],
		"bills": [
			{"name": "rent", "amount": 500, "dueType": "monthly", "dayOfMonth": 1},
			{"name": "gym", "amount": 20, "dueType": "weekly", "dayOfWeek": 5},
			{"name": "car", "amount": 99.99, "dueType": "once", "dueDate": "2025-04-01"},
			{"name": "odd", "amount": 1, "dueType": "weekly", "dayOfWeek": 9}
		],
		"savingsPct": 40,
		"caps": {"tp": {"max": 80}, "snacks": {"enabled": false}, "bogus": {"max": 1}},
		"history": [
			{"ts": "2025-03-03T10:00:00Z", "type": "purchase", "category": "snacks", "amount": 2.5},
			{"ts": "2025-03-03T09:00:00Z", "type": "newcheck", "category": "check", "amount": 1000, "note": "Next check 2025-03-10"}
		],
		"theme": "dark"
	}`

	// WHEN
	s, err := factory.NewStateFactory().ParseState([]byte(doc))
	require.NoError(t, err)

	// THEN: balances rounded and clamped
	assert.Equal(t, "12.35", s.Balances[budget.BucketHolding].String())
	assert.Equal(t, "75.00", s.Balances[budget.BucketSnacks].String())
	assert.Equal(t, "0.00", s.Balances[budget.BucketEntertainment].String())

	// dates and lock
	assert.True(t, s.NextPayDate.Equal(generic.NewDate(2025, time.March, 10)))
	assert.Equal(t, "2.50", s.SnackLock.SpentToday.String())

	// calendar: missing excludeWed keeps the default
	assert.False(t, s.Workdays.ExcludeTuesday)
	assert.True(t, s.Workdays.ExcludeWednesday)
	require.Len(t, s.Workdays.PTO, 1)

	// bills, malformed one kept
	require.Len(t, s.Bills, 4)
	assert.Equal(t, budget.Monthly(1), s.Bills[0].Recurrence)
	assert.Equal(t, budget.RecurOnce, s.Bills[2].Recurrence.Kind)
	_, ok := budget.NextOccurrence(s.Bills[3], generic.NewDate(2025, time.March, 3))
	assert.False(t, ok)

	// rules: caps merged per field
	assert.True(t, s.Split.SavingsPct.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, "80.00", s.Caps[budget.BucketToiletries].Max.String())
	assert.True(t, s.Caps[budget.BucketToiletries].Enabled)
	assert.False(t, s.Caps[budget.BucketSnacks].Enabled)
	assert.Equal(t, "75.00", s.Caps[budget.BucketSnacks].Max.String())

	// history chronological, legacy kinds mapped, ids filled
	require.Len(t, s.History, 2)
	assert.Equal(t, budget.KindPaycheck, s.History[0].Kind)
	assert.Equal(t, budget.Bucket(""), s.History[0].Bucket)
	assert.Equal(t, budget.BucketSnacks, s.History[1].Bucket)
	assert.NotEmpty(t, s.History[0].ID)
}

func TestParseState_Rejects(t *testing.T) {
	f := factory.NewStateFactory()

	_, err := f.ParseState([]byte(`{"nextPayDate": "03/10/2025"}`))
	assert.ErrorIs(t, err, generic.ErrInvalidDate)

	_, err = f.ParseState([]byte(`{"bills": [{"name": "x", "dueType": "once", "dueDate": "soon"}]}`))
	assert.ErrorIs(t, err, generic.ErrInvalidDate)

	_, err = f.ParseState([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseState_ClampsOutOfRangeSplit(t *testing.T) {
	f := factory.NewStateFactory()

	// GIVEN: split rules an older export could carry
	s, err := f.ParseState([]byte(`{"savingsPct": 120, "debtChunk": 0, "snacksFixed": -5}`))

	// THEN: they load, pulled back into range
	require.NoError(t, err)
	assert.Equal(t, "100", s.Split.SavingsPct.String())
	assert.Equal(t, "1.00", s.Split.DebtChunk.String())
	assert.True(t, s.Split.SnacksFixed.IsZero())
	require.NoError(t, s.Split.Validate())

	s, err = f.ParseState([]byte(`{"savingsPct": -3, "debtChunk": 0.5}`))
	require.NoError(t, err)
	assert.True(t, s.Split.SavingsPct.IsZero())
	assert.Equal(t, "1.00", s.Split.DebtChunk.String())
}

func TestEncode_RoundTrip(t *testing.T) {
	// GIVEN: a state after a paycheck, a purchase and some settings
	s := budget.NewState()
	now := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	today := generic.DateOf(now)
	require.NoError(t, budget.AddBill(s, budget.Bill{Name: "gym", Amount: generic.NewMoneyFromInt(20), Recurrence: budget.Weekly(5)}, now))
	require.NoError(t, budget.AddPTO(s, today.AddDays(4), "trip", now))
	_, err := budget.Allocate(s, budget.Paycheck{Deposit: generic.NewMoneyFromInt(1000), NextPayDate: today.AddDays(7)}, now)
	require.NoError(t, err)
	d := budget.Authorize(s, budget.PurchaseRequest{Amount: generic.NewMoney(4.5), Bucket: budget.BucketSnacks}, today)
	_, ok := budget.Apply(s, d, now)
	require.True(t, ok)
	s.Protection.Weekday = time.Thursday
	s.LastSaved = now

	f := factory.NewStateFactory()

	// WHEN
	data, err := f.Encode(s)
	require.NoError(t, err)
	back, err := f.ParseState(data)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, s.Balances.Total().String(), back.Balances.Total().String())
	for _, b := range budget.Buckets {
		assert.Equal(t, s.Balances[b].String(), back.Balances[b].String(), string(b))
	}
	assert.True(t, s.NextPayDate.Equal(back.NextPayDate))
	assert.Equal(t, s.SnackLock.SpentToday.String(), back.SnackLock.SpentToday.String())
	assert.Equal(t, len(s.History), len(back.History))
	assert.Equal(t, s.History[0].ID, back.History[0].ID)
	assert.Equal(t, s.Bills[0].Recurrence, back.Bills[0].Recurrence)
	assert.Equal(t, time.Thursday, back.Protection.Weekday)
	assert.True(t, s.LastSaved.Equal(back.LastSaved))

	// AND: web app keys are used on the wire
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "tp")
	assert.Contains(t, raw, "ent")
	assert.Contains(t, raw, "nextPayDate")
}
