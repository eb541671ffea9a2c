// Package calendar decides what "now" and "today" mean for event rules.
// Event dates are calendar dates without a zone, so today's date is taken in
// the configured location.
package calendar

import "time"

const DateLayout = "2006-01-02"

type Clock struct {
	now func() time.Time
	loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{now: time.Now, loc: loc}
}

// Fixed returns a clock frozen at t, in t's location.
func Fixed(t time.Time) Clock {
	return Clock{now: func() time.Time { return t }, loc: t.Location()}
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().In(c.Location())
	}
	return c.now().In(c.Location())
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// Today is the current date formatted as YYYY-MM-DD.
func (c Clock) Today() string {
	return c.Now().Format(DateLayout)
}

// ParseDate reads a YYYY-MM-DD date as midnight in the clock's location.
func (c Clock) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, c.Location())
}
