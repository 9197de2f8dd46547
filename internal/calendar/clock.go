package calendar

import "time"

// Clock answers "what day is it" for a fixed location. Services receive a
// Clock instead of calling time.Now so tests can pin the current day.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

// NewClock returns a Clock reading the system time in loc. A nil loc means
// time.Local.
func NewClock(loc *time.Location) *Clock {
	return NewClockAt(time.Now, loc)
}

// NewClockAt returns a Clock driven by now.
func NewClockAt(now func() time.Time, loc *time.Location) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{now: now, loc: loc}
}

// FixedClock returns a Clock that is always on day d, at noon in loc.
func FixedClock(d Date, loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	at := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc)
	return NewClockAt(func() time.Time { return at }, loc)
}

// Location is the zone used to turn instants into calendar days.
func (c *Clock) Location() *time.Location { return c.loc }

// Now is the current instant in the clock's location.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

// Today is the current calendar day.
func (c *Clock) Today() Date { return DateOf(c.Now()) }

// DaysAgo returns Today() - n days.
func (c *Clock) DaysAgo(n int) Date { return c.Today().AddDays(-n) }

// IsDateInRange reports whether Today()-daysBack <= d <= Today().
func (c *Clock) IsDateInRange(d Date, daysBack int) bool {
	today := c.Today()
	return !d.Before(today.AddDays(-daysBack)) && !d.After(today)
}

// MonthStart is the first day of the current month.
func (c *Clock) MonthStart() Date {
	today := c.Today()
	return NewDate(today.Year(), today.Month(), 1)
}

// DaysPassedThisMonth is the current day-of-month. It counts elapsed days
// of the month, not days since the challenge opened.
func (c *Clock) DaysPassedThisMonth() int { return c.Today().Day() }
