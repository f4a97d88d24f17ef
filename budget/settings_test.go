package budget_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/generic"
)

func TestSetBalance_EnforcesCapAndRefreshesLock(t *testing.T) {
	// GIVEN: a lock computed from 100 of snacks
	s := snackState("100")
	now := at(march(3), 9)
	budget.RefreshSnackLock(s, march(3), false)

	// WHEN: snacks are set above the cap
	require.NoError(t, budget.SetBalance(s, budget.BucketSnacks, money("90"), now))

	// THEN: trimmed to 75, excess in savings, allowance follows at once
	assertMoney(t, "75.00", s.Balances[budget.BucketSnacks])
	assertMoney(t, "15.00", s.Balances[budget.BucketSavings])
	assertMoney(t, "15.00", s.SnackLock.AllowanceToday)

	kinds := []budget.HistoryKind{s.History[0].Kind, s.History[1].Kind}
	assert.Equal(t, []budget.HistoryKind{budget.KindBalanceEdit, budget.KindCapOverflow}, kinds)
}

func TestSetBalance_Rejects(t *testing.T) {
	s := budget.NewState()
	now := at(march(3), 9)

	err := budget.SetBalance(s, budget.Bucket("groceries"), money("1"), now)
	assert.ErrorIs(t, err, generic.ErrUnknownBucket)

	err = budget.SetBalance(s, budget.BucketSavings, money("-1"), now)
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)

	assert.Empty(t, s.History)
}

func TestPayDebt_ClampsToOutstanding(t *testing.T) {
	s := budget.NewState()
	s.Debt = money("40")
	now := at(march(3), 9)

	paid, err := budget.PayDebt(s, money("25"), now)
	require.NoError(t, err)
	assertMoney(t, "25.00", paid)
	assertMoney(t, "15.00", s.Debt)

	paid, err = budget.PayDebt(s, money("100"), now)
	require.NoError(t, err)
	assertMoney(t, "15.00", paid)
	assert.True(t, s.Debt.IsZero())

	_, err = budget.PayDebt(s, money("0"), now)
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)
}

func TestUpdateSplitRules_Validates(t *testing.T) {
	s := budget.NewState()
	now := at(march(3), 9)
	good := s.Split
	good.SavingsPct = decimal.NewFromInt(50)
	require.NoError(t, budget.UpdateSplitRules(s, good, now))
	assert.True(t, s.Split.SavingsPct.Equal(decimal.NewFromInt(50)))

	bad := []func(r *budget.SplitRules){
		func(r *budget.SplitRules) { r.SavingsPct = decimal.NewFromInt(101) },
		func(r *budget.SplitRules) { r.SavingsPct = decimal.NewFromInt(-1) },
		func(r *budget.SplitRules) { r.SnacksFixed = money("-5") },
		func(r *budget.SplitRules) { r.DebtChunk = money("0.50") },
	}
	for i, mutate := range bad {
		r := s.Split
		mutate(&r)
		err := budget.UpdateSplitRules(s, r, now)
		assert.ErrorIs(t, err, generic.ErrInvalidRules, "case %d", i)
	}
	assert.True(t, s.Split.SavingsPct.Equal(decimal.NewFromInt(50)), "unchanged after rejects")
}

func TestUpdateCaps_LoweringCapTrims(t *testing.T) {
	s := stateWith(map[budget.Bucket]string{budget.BucketEntertainment: "70"})
	caps := s.Caps.Copy()
	caps[budget.BucketEntertainment] = budget.Cap{Enabled: true, Max: money("50")}

	require.NoError(t, budget.UpdateCaps(s, caps, nil, at(march(3), 9)))

	assertMoney(t, "50.00", s.Balances[budget.BucketEntertainment])
	assertMoney(t, "20.00", s.Balances[budget.BucketSavings])
	assert.Len(t, s.DebtCaps, 2, "nil keeps debt caps")
}

func TestUpdateCaps_Rejects(t *testing.T) {
	s := budget.NewState()
	now := at(march(3), 9)

	err := budget.UpdateCaps(s, budget.Caps{budget.BucketSavings: {Enabled: true, Max: money("1")}}, nil, now)
	assert.ErrorIs(t, err, generic.ErrInvalidRules)

	err = budget.UpdateCaps(s, budget.Caps{"groceries": {}}, nil, now)
	assert.ErrorIs(t, err, generic.ErrUnknownBucket)

	err = budget.UpdateCaps(s, nil, budget.Caps{budget.BucketSnacks: {Enabled: true, Max: money("-1")}}, now)
	assert.ErrorIs(t, err, generic.ErrInvalidRules)
}

func TestSetWorkdayRules_ChangesAllowance(t *testing.T) {
	s := snackState("100")
	budget.RefreshSnackLock(s, march(3), false)

	require.NoError(t, budget.SetWorkdayRules(s, false, false, at(march(3), 9)))

	// all 7 days now count
	assertMoney(t, "14.29", s.SnackLock.AllowanceToday)
}

func TestSetNextPayDate(t *testing.T) {
	s := snackState("100")
	require.NoError(t, budget.SetNextPayDate(s, march(7), at(march(3), 9)))

	// Thu, Fri
	assertMoney(t, "50.00", s.SnackLock.AllowanceToday)
}

func TestPTOEdits(t *testing.T) {
	s := snackState("100")
	now := at(march(3), 9)

	require.NoError(t, budget.AddPTO(s, march(6), "dentist", now))
	assertMoney(t, "25.00", s.SnackLock.AllowanceToday)

	require.NoError(t, budget.RemovePTO(s, march(6), now))
	assertMoney(t, "20.00", s.SnackLock.AllowanceToday)

	assert.ErrorIs(t, budget.RemovePTO(s, march(6), now), generic.ErrNotFound)
	assert.ErrorIs(t, budget.AddPTO(s, march(1), "", now), generic.ErrInvalidDate)
}

func TestBillEdits(t *testing.T) {
	s := budget.NewState()
	now := at(march(3), 9)

	require.NoError(t, budget.AddBill(s, budget.Bill{Name: "rent", Amount: money("500"), Recurrence: budget.Monthly(1)}, now))
	require.NoError(t, budget.AddBill(s, budget.Bill{Name: "gym", Amount: money("20"), Recurrence: budget.Weekly(5)}, now))

	err := budget.AddBill(s, budget.Bill{Name: "bad", Amount: money("1"), Recurrence: budget.Weekly(8)}, now)
	assert.ErrorIs(t, err, generic.ErrInvalidBill)
	require.Len(t, s.Bills, 2)

	removed, err := budget.RemoveBill(s, 0, now)
	require.NoError(t, err)
	assert.Equal(t, "rent", removed.Name)
	require.Len(t, s.Bills, 1)
	assert.Equal(t, "gym", s.Bills[0].Name)

	_, err = budget.RemoveBill(s, 5, now)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}
