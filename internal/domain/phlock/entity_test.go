package phlock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phlock-app/phlock-core/internal/domain/shared"
)

func roster(owner string, ids ...string) *Roster {
	r := &Roster{OwnerID: owner}
	for i, id := range ids {
		r.Members = append(r.Members, Member{UserID: id, Position: i + 1, AddedAt: time.Now()})
	}
	return r
}

func TestRoster_CanAdd(t *testing.T) {
	r := roster("owner", "a", "b", "c", "d", "e")

	assert.ErrorIs(t, r.CanAdd("f", 0), shared.ErrInvalidPosition)
	assert.ErrorIs(t, r.CanAdd("f", 6), shared.ErrInvalidPosition)

	// An occupied slot on a full roster still accepts a newcomer: the
	// add evicts the occupant, so the count never exceeds the bound.
	assert.NoError(t, r.CanAdd("f", 3))

	// A current member can always move.
	assert.NoError(t, r.CanAdd("c", 1))

	partial := roster("owner", "a", "b")
	assert.NoError(t, partial.CanAdd("f", 3))
}

func TestRoster_CanAdd_FullWithVacantSlot(t *testing.T) {
	// A vacant target slot on a roster at the bound has nobody to evict,
	// so the bound applies. (Unreachable while the store holds the slot
	// invariants; CanAdd still refuses rather than overfill.)
	r := roster("owner", "a", "b", "c", "d")
	r.Members = append(r.Members, Member{UserID: "e", Position: 4, AddedAt: time.Now()})

	assert.ErrorIs(t, r.CanAdd("f", 5), shared.ErrPhlockFull)
}

func TestRoster_Lookups(t *testing.T) {
	r := roster("owner", "a", "b", "c")

	require.NotNil(t, r.Find("b"))
	assert.Equal(t, 2, r.Find("b").Position)
	assert.Nil(t, r.Find("missing"))

	require.NotNil(t, r.OccupantAt(3))
	assert.Equal(t, "c", r.OccupantAt(3).UserID)
	assert.Nil(t, r.OccupantAt(4))
}

func TestScheduledSwap_Lifecycle(t *testing.T) {
	now := time.Date(2025, 5, 1, 22, 0, 0, 0, time.UTC)
	midnight := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	newID := "new-member"
	swap, err := NewScheduledSwap("owner", "old-member", &newID, midnight, now)
	require.NoError(t, err)

	assert.Equal(t, SwapPending, swap.Status)
	assert.False(t, swap.IsRemoval())
	assert.False(t, swap.IsDue(now))
	assert.True(t, swap.IsDue(midnight))
	assert.True(t, swap.IsDue(midnight.Add(time.Hour)))

	require.NoError(t, swap.MarkApplied(midnight))
	assert.Equal(t, SwapApplied, swap.Status)
	require.NotNil(t, swap.AppliedAt)

	// Terminal rows are immutable.
	assert.ErrorIs(t, swap.MarkCancelled(), shared.ErrSwapNotPending)
	assert.ErrorIs(t, swap.MarkApplied(midnight), shared.ErrSwapNotPending)
}

func TestScheduledSwap_Cancel(t *testing.T) {
	now := time.Date(2025, 5, 1, 22, 0, 0, 0, time.UTC)
	swap, err := NewScheduledSwap("owner", "old", nil, now.Add(2*time.Hour), now)
	require.NoError(t, err)

	assert.True(t, swap.IsRemoval())
	require.NoError(t, swap.MarkCancelled())
	assert.Equal(t, SwapCancelled, swap.Status)
	assert.ErrorIs(t, swap.MarkApplied(now), shared.ErrSwapNotPending)
}

func TestNewScheduledSwap_Validation(t *testing.T) {
	now := time.Now()

	_, err := NewScheduledSwap("", "old", nil, now.Add(time.Hour), now)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	// Cutover must be in the future.
	_, err = NewScheduledSwap("owner", "old", nil, now, now)
	assert.ErrorIs(t, err, shared.ErrSchedulingFailed)

	_, err = NewScheduledSwap("owner", "old", nil, time.Time{}, now)
	assert.ErrorIs(t, err, shared.ErrSchedulingFailed)
}
