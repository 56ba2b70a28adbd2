// Package temporal normalizes calendar values that are either a bare date or
// a zoned date-time into their canonical date-time, date and time-of-day
// components, relative to one process-wide configured timezone.
package temporal

import "time"

// Kind discriminates the value union.
type Kind int

const (
	Absent Kind = iota
	Date
	DateTime
)

// Value is either absent, a bare calendar date, or a zoned date-time.
// The zero Value is absent.
type Value struct {
	kind Kind
	t    time.Time
}

// NewDate builds a bare-date value from the calendar date of t, as observed
// in t's own location.
func NewDate(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: Date, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// NewDateTime builds a zoned date-time value.
func NewDateTime(t time.Time) Value {
	return Value{kind: DateTime, t: t}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) Defined() bool { return v.kind != Absent }

// IsDate reports whether the value is a bare date with no time component.
func (v Value) IsDate() bool { return v.kind == Date }

// DateTime returns the value as a zoned date-time in loc. A bare date maps to
// midnight of that date in loc. Absent values report ok=false.
func (v Value) DateTime(loc *time.Location) (time.Time, bool) {
	switch v.kind {
	case Date:
		y, m, d := v.t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), true
	case DateTime:
		return v.t.In(loc), true
	default:
		return time.Time{}, false
	}
}

// Date returns the calendar date component as midnight in loc.
func (v Value) Date(loc *time.Location) (time.Time, bool) {
	dt, ok := v.DateTime(loc)
	if !ok {
		return time.Time{}, false
	}
	return Midnight(dt), true
}

// Clock returns the time-of-day component as an offset from midnight in loc.
// A bare date has a zero time-of-day.
func (v Value) Clock(loc *time.Location) (time.Duration, bool) {
	dt, ok := v.DateTime(loc)
	if !ok {
		return 0, false
	}
	h, m, s := dt.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, true
}

// Midnight truncates t to the start of its calendar day, in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
