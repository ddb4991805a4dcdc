// Package timeutil provides timezone-aware time helpers for Phlock.
// Deferred phlock swaps cut over at local midnight, so day boundaries
// must always be computed in the product timezone, never in UTC.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Clock abstracts wall-clock access so day-boundary logic is testable.
type Clock interface {
	// Now returns the current time in the clock's location.
	Now() time.Time

	// NextMidnight returns the first local midnight strictly after t.
	NextMidnight(t time.Time) time.Time

	// Location returns the clock's timezone.
	Location() *time.Location
}

// SystemClock is a Clock backed by the system wall clock.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a SystemClock in the given location.
// A nil location falls back to UTC.
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SystemClock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// NextMidnight returns the first midnight strictly after t in the clock's location.
func (c *SystemClock) NextMidnight(t time.Time) time.Time {
	return NextMidnight(t, c.loc)
}

// Location returns the clock's timezone.
func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// FixedClock is a Clock frozen at a settable instant, for tests.
type FixedClock struct {
	Current time.Time
	Loc     *time.Location
}

// NewFixedClock creates a FixedClock at the given instant.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{Current: t, Loc: t.Location()}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	return c.Current
}

// NextMidnight returns the first midnight strictly after t in the clock's location.
func (c *FixedClock) NextMidnight(t time.Time) time.Time {
	return NextMidnight(t, c.Location())
}

// Location returns the clock's timezone.
func (c *FixedClock) Location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// Advance moves the frozen clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.Current = c.Current.Add(d)
}

// StartOfDay returns 00:00:00 of t's day in the given location.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NextMidnight returns the first midnight strictly after t in the given
// location. A t exactly at midnight yields the following midnight, so a
// swap scheduled "for midnight" never fires on the same instant it was made.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t.In(loc), loc).AddDate(0, 0, 1)
}

// SameLocalDay reports whether a and b fall on the same calendar day
// in the given location.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay()
}
