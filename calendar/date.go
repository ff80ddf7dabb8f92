/*
Package calendar provides the calendar-day arithmetic shared by the planner,
the dashboard and the reminder sweep.

PURPOSE:
  Every comparison in this system is an exact-day comparison. A Date carries
  no time-of-day and no location: an instant is converted to a Date once, in
  the single reference location configured for the deployment, and from then
  on only whole days and whole months are added or compared.

MONTH ARITHMETIC:
  Adding months to the 29th, 30th or 31st can land on a day that does not
  exist in the target month. Two rules are supported:

    RollOver         the overflow spills into the next month
                     (Jan 31 + 1 month = Mar 2 in a leap year, Mar 3 otherwise)
    ClampToMonthEnd  the day snaps to the last day of the target month
                     (Jan 31 + 1 month = Feb 29 / Feb 28)

  RollOver is the default; it is what time.AddDate does.

SEE ALSO:
  - clock.go:  injectable "now"
  - period.go: month ranges for reports
*/
package calendar

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Layout is the wire and storage format of a Date.
const Layout = "2006-01-02"

// =============================================================================
// DATE
// =============================================================================

// Date is a calendar day. The zero value is "no date".
type Date struct {
	t time.Time // always midnight UTC
}

// NewDate returns the given day. Out-of-range values normalise the way
// time.Date does (e.g. April 31 becomes May 1).
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime drops the time-of-day of t as observed in loc.
func FromTime(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return NewDate(lt.Year(), lt.Month(), lt.Day())
}

// Parse reads a YYYY-MM-DD string. A full RFC 3339 timestamp is also
// accepted; its date part is taken as written.
func Parse(s string) (Date, error) {
	if t, err := time.Parse(Layout, s); err == nil {
		return NewDate(t.Year(), t.Month(), t.Day()), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Properties
func (d Date) Year() int          { return d.t.Year() }
func (d Date) Month() time.Month  { return d.t.Month() }
func (d Date) Day() int           { return d.t.Day() }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Time() time.Time    { return d.t }
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(Layout)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Before(other):
		return -1
	case d.After(other):
		return 1
	default:
		return 0
	}
}

// =============================================================================
// MONTH ARITHMETIC
// =============================================================================

// MonthRule decides what happens when the day-of-month does not exist in the
// target month.
type MonthRule int

const (
	RollOver MonthRule = iota
	ClampToMonthEnd
)

// ParseMonthRule maps a config value to a MonthRule.
func ParseMonthRule(s string) (MonthRule, error) {
	switch s {
	case "", "roll_over", "rollover":
		return RollOver, nil
	case "clamp", "clamp_to_month_end":
		return ClampToMonthEnd, nil
	default:
		return RollOver, fmt.Errorf("unknown month rule %q", s)
	}
}

func (r MonthRule) String() string {
	if r == ClampToMonthEnd {
		return "clamp_to_month_end"
	}
	return "roll_over"
}

// AddMonths shifts d by n calendar months (n may be negative) under rule.
func AddMonths(d Date, n int, rule MonthRule) Date {
	if rule == RollOver {
		return Date{t: d.t.AddDate(0, n, 0)}
	}
	total := int(d.Month()) - 1 + n
	year := d.Year() + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)
	day := d.Day()
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// AddMonths shifts d by n months using RollOver.
func (d Date) AddMonths(n int) Date { return AddMonths(d, n, RollOver) }

// MonthsBetween counts month boundaries from a to b, ignoring the day.
func MonthsBetween(a, b Date) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// =============================================================================
// ENCODING
// =============================================================================

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner. Dates are stored as YYYY-MM-DD text; drivers
// that decode date-typed columns into time.Time are accepted too.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("calendar: cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(Layout) {
		s = s[:len(Layout)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}
