package budget_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
//
// Calendar used throughout: 2025-03-03 and 2025-03-10 are Mondays, so the
// week in between holds Tue 04, Wed 05 (excluded by default), Thu 06, Fri 07,
// Sat 08, Sun 09.

func date(year int, month time.Month, day int) generic.Date {
	return generic.NewDate(year, month, day)
}

func march(day int) generic.Date { return date(2025, time.March, day) }

// at returns a wall-clock instant on d.
func at(d generic.Date, hour int) time.Time {
	return d.Time().Add(time.Duration(hour) * time.Hour)
}

func money(s string) generic.Money { return generic.MustParseMoney(s) }

func assertMoney(t *testing.T, want string, got generic.Money, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want, got.String(), msgAndArgs...)
}

// stateWith returns a default state with the given balances.
func stateWith(balances map[budget.Bucket]string) *budget.State {
	s := budget.NewState()
	for b, v := range balances {
		s.Balances[b] = money(v)
	}
	return s
}
