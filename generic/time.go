package generic

import (
	"bytes"
	"fmt"
	"time"
)

// =============================================================================
// DATE - Plain calendar day (no time of day, no zone)
// =============================================================================

// Date is a calendar day normalised to midnight UTC. The zero value means
// "unset" and is used for optional dates such as the next pay date.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf takes the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate parses "YYYY-MM-DD". The empty string parses to the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q (use YYYY-MM-DD)", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

// DaysBetween counts calendar days from `from` to `to`; negative when to < from.
func DaysBetween(from, to Date) int { return int(to.t.Sub(from.t).Hours() / 24) }

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }
func EndOfMonth(year int, month time.Month) Date {
	return Date{t: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

// DayInMonth returns the given day of the month, clamped to the month's last day.
func DayInMonth(year int, month time.Month, day int) Date {
	last := EndOfMonth(year, month)
	if day > last.Day() {
		return last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(year, month, day)
}
