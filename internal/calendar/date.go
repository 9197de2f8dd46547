// Package calendar provides date-only values and the clock used for every
// range check in the application.
//
// A Date has no time-of-day and no location. Two Dates compare equal when
// they name the same calendar day, which is what the one-entry-per-day and
// streak rules need. Converting a time.Time into a Date always goes through
// a location (see Clock), so "today" means today where the challenge runs.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the wire and storage form of a Date.
const Layout = "2006-01-02"

// Date is a calendar day. The zero value is not a valid day; check IsZero.
//
// Internally the day is kept as midnight UTC so that day arithmetic never
// crosses a DST transition.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its parts. Out-of-range values are normalised
// the way time.Date normalises them (Oct 32 becomes Nov 1).
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("calendar: invalid date %q, want YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Year() int          { return d.t.Year() }
func (d Date) Month() time.Month  { return d.t.Month() }
func (d Date) Day() int           { return d.t.Day() }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }

// AddDays returns d shifted by n days (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// DaysUntil returns the number of days from d to o. It is negative when o
// is before d.
func (d Date) DaysUntil(o Date) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

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

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
