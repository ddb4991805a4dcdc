package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextMidnight(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)

	evening := time.Date(2025, 3, 10, 21, 45, 0, 0, loc)
	next := NextMidnight(evening, loc)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, loc), next)
}

func TestNextMidnight_ExactlyAtMidnight(t *testing.T) {
	midnight := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	next := NextMidnight(midnight, time.UTC)

	// Never the same instant: a swap scheduled at 00:00 waits a full day.
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), next)
}

func TestNextMidnight_CrossesTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)

	// 02:30 UTC is still the previous evening in New York.
	utcEarly := time.Date(2025, 6, 15, 2, 30, 0, 0, time.UTC)
	next := NextMidnight(utcEarly, loc)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, loc), next)
}

func TestSameLocalDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)

	a := time.Date(2025, 6, 15, 1, 0, 0, 0, time.UTC)  // June 14 evening in NY
	b := time.Date(2025, 6, 14, 18, 0, 0, 0, time.UTC) // June 14 afternoon in NY

	assert.True(t, SameLocalDay(a, b, loc))
	assert.False(t, SameLocalDay(a, b, time.UTC))
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start)

	assert.Equal(t, start, clock.Now())

	clock.Advance(13 * time.Hour)
	assert.Equal(t, start.Add(13*time.Hour), clock.Now())

	next := clock.NextMidnight(clock.Now())
	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), next)
}
