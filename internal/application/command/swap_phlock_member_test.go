package command

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
	"github.com/phlock-app/phlock-core/pkg/logger"
	"github.com/phlock-app/phlock-core/pkg/timeutil"
)

type swapFixture struct {
	store    *memStore
	members  *fakeMemberCache
	activity *fakeActivity
	pub      *recordingPublisher
	clock    *timeutil.FixedClock
	swap     *SwapPhlockMemberHandler
	applier  *ApplyDueSwapsHandler
}

func newSwapFixture() *swapFixture {
	store := newMemStore()
	members := newFakeMemberCache()
	activity := &fakeActivity{posted: make(map[string]bool)}
	pub := &recordingPublisher{}
	clock := timeutil.NewFixedClock(testNow)
	phlocks := &fakePhlocks{s: store}
	history := &fakeHistory{s: store}
	swaps := &fakeSwaps{s: store}
	quiet := logger.New(logger.Options{Output: io.Discard})
	return &swapFixture{
		store:    store,
		members:  members,
		activity: activity,
		pub:      pub,
		clock:    clock,
		swap: NewSwapPhlockMemberHandler(
			&fakeEdges{s: store}, phlocks, history, swaps, members, activity,
			shared.NopTxRunner{}, pub, clock,
		),
		applier: NewApplyDueSwapsHandler(
			phlocks, history, swaps, members,
			shared.NopTxRunner{}, pub, clock, quiet,
		),
	}
}

func (f *swapFixture) roster(t *testing.T, ownerID string) []phlock.Member {
	t.Helper()
	members, err := (&fakePhlocks{s: f.store}).ListMembers(context.Background(), ownerID)
	require.NoError(t, err)
	return members
}

func (f *swapFixture) pendingSwaps() []*phlock.ScheduledSwap {
	var out []*phlock.ScheduledSwap
	for _, sw := range f.store.swaps {
		if sw.Status == phlock.SwapPending {
			out = append(out, sw)
		}
	}
	return out
}

func TestSwap_OldMemberMustBeInPhlock(t *testing.T) {
	f := newSwapFixture()
	f.store.seedEdge("owner", "old", testNow)
	f.store.seedEdge("owner", "new", testNow)

	_, err := f.swap.Swap(context.Background(), SwapPhlockMemberCommand{
		OwnerID: "owner", OldMemberID: "old", NewMemberID: "new",
	})

	assert.ErrorIs(t, err, shared.ErrSwapTargetNotMember)
}

func TestSwap_NewMemberMustFollowOwner(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "old", 2, testNow.Add(-time.Hour))

	_, err := f.swap.Swap(context.Background(), SwapPhlockMemberCommand{
		OwnerID: "owner", OldMemberID: "old", NewMemberID: "stranger",
	})

	assert.ErrorIs(t, err, shared.ErrMustFollowFirst)
}

func TestSwap_AppliesImmediatelyBeforeDailyPick(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "old", 2, testNow.Add(-time.Hour))
	f.store.seedEdge("owner", "new", testNow)
	f.activity.posted["new"] = false

	res, err := f.swap.Swap(context.Background(), SwapPhlockMemberCommand{
		OwnerID: "owner", OldMemberID: "old", NewMemberID: "new",
	})
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.Equal(t, 2, res.Position)
	assert.Empty(t, res.SwapID)
	assert.Empty(t, f.pendingSwaps())

	roster := f.roster(t, "owner")
	require.Len(t, roster, 1)
	assert.Equal(t, "new", roster[0].UserID)
	assert.Equal(t, 2, roster[0].Position)

	assert.Contains(t, f.members.invalidated, "owner")
	assert.Equal(t, []shared.EventType{shared.EventSwapApplied}, f.pub.typesSeen())
}

func TestSwap_DefersAfterDailyPick(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "old", 3, testNow.Add(-time.Hour))
	f.store.seedEdge("owner", "new", testNow)
	f.activity.posted["new"] = true

	res, err := f.swap.Swap(context.Background(), SwapPhlockMemberCommand{
		OwnerID: "owner", OldMemberID: "old", NewMemberID: "new",
	})
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.NotEmpty(t, res.SwapID)

	// Membership unchanged until cutover.
	roster := f.roster(t, "owner")
	require.Len(t, roster, 1)
	assert.Equal(t, "old", roster[0].UserID)

	pending := f.pendingSwaps()
	require.Len(t, pending, 1)
	assert.Equal(t, f.clock.NextMidnight(testNow), pending[0].ScheduledFor)
	assert.Equal(t, []shared.EventType{shared.EventSwapScheduled}, f.pub.typesSeen())
}

func TestApplyDueSwaps_NothingDueBeforeMidnight(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "old", 1, testNow.Add(-time.Hour))
	f.store.seedEdge("owner", "new", testNow)
	f.activity.posted["new"] = true

	_, err := f.swap.Swap(context.Background(), SwapPhlockMemberCommand{
		OwnerID: "owner", OldMemberID: "old", NewMemberID: "new",
	})
	require.NoError(t, err)

	applied, err := f.applier.ApplyDueSwaps(context.Background())
	require.NoError(t, err)

	assert.Zero(t, applied)
	assert.Equal(t, "old", f.roster(t, "owner")[0].UserID)
}

func TestApplyDueSwaps_CutsOverAtMidnight(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "old", 4, testNow.Add(-time.Hour))
	f.store.seedEdge("owner", "new", testNow)
	f.activity.posted["new"] = true

	res, err := f.swap.Swap(context.Background(), SwapPhlockMemberCommand{
		OwnerID: "owner", OldMemberID: "old", NewMemberID: "new",
	})
	require.NoError(t, err)

	f.clock.Advance(f.clock.NextMidnight(testNow).Sub(testNow) + time.Minute)

	applied, err := f.applier.ApplyDueSwaps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	roster := f.roster(t, "owner")
	require.Len(t, roster, 1)
	assert.Equal(t, "new", roster[0].UserID)
	assert.Equal(t, 4, roster[0].Position)

	stored := f.store.swaps[res.SwapID]
	assert.Equal(t, phlock.SwapApplied, stored.Status)
	require.NotNil(t, stored.AppliedAt)

	// A second pass finds nothing pending.
	applied, err = f.applier.ApplyDueSwaps(context.Background())
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestApplyDueSwaps_OldMemberAlreadyGoneIsNoOp(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "old", 1, testNow.Add(-time.Hour))
	f.store.seedEdge("owner", "new", testNow)
	f.activity.posted["new"] = true

	res, err := f.swap.Swap(context.Background(), SwapPhlockMemberCommand{
		OwnerID: "owner", OldMemberID: "old", NewMemberID: "new",
	})
	require.NoError(t, err)

	// The owner removes old manually before the cutover.
	quietRemove := NewRemovePhlockMemberHandler(
		&fakePhlocks{s: f.store}, &fakeHistory{s: f.store}, f.members,
		shared.NopTxRunner{}, &recordingPublisher{}, f.clock,
	)
	_, err = quietRemove.Handle(context.Background(), RemovePhlockMemberCommand{OwnerID: "owner", MemberID: "old"})
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)

	applied, err := f.applier.ApplyDueSwaps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// The row resolved without touching the roster.
	assert.Empty(t, f.roster(t, "owner"))
	assert.Equal(t, phlock.SwapApplied, f.store.swaps[res.SwapID].Status)
}

func TestScheduleRemoval_AlwaysDefers(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "a", 2, testNow.Add(-time.Hour))

	res, err := f.swap.ScheduleRemoval(context.Background(), ScheduleRemovalCommand{OwnerID: "owner", MemberID: "a"})
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.NotEmpty(t, res.SwapID)
	assert.Equal(t, "a", f.roster(t, "owner")[0].UserID)

	f.clock.Advance(25 * time.Hour)
	applied, err := f.applier.ApplyDueSwaps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Empty(t, f.roster(t, "owner"))
}

func TestScheduleRemoval_NotAMember(t *testing.T) {
	f := newSwapFixture()
	f.store.seedEdge("owner", "a", testNow)

	_, err := f.swap.ScheduleRemoval(context.Background(), ScheduleRemovalCommand{OwnerID: "owner", MemberID: "a"})

	assert.ErrorIs(t, err, shared.ErrSwapTargetNotMember)
}

func TestCancelSwap_PendingRowCancels(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "a", 1, testNow.Add(-time.Hour))

	res, err := f.swap.ScheduleRemoval(context.Background(), ScheduleRemovalCommand{OwnerID: "owner", MemberID: "a"})
	require.NoError(t, err)

	require.NoError(t, f.swap.Cancel(context.Background(), CancelSwapCommand{OwnerID: "owner", SwapID: res.SwapID}))
	assert.Equal(t, phlock.SwapCancelled, f.store.swaps[res.SwapID].Status)

	// The cancelled row never applies.
	f.clock.Advance(25 * time.Hour)
	applied, err := f.applier.ApplyDueSwaps(context.Background())
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Equal(t, "a", f.roster(t, "owner")[0].UserID)
}

func TestCancelSwap_OnlyOwnerMayCancel(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "a", 1, testNow.Add(-time.Hour))

	res, err := f.swap.ScheduleRemoval(context.Background(), ScheduleRemovalCommand{OwnerID: "owner", MemberID: "a"})
	require.NoError(t, err)

	err = f.swap.Cancel(context.Background(), CancelSwapCommand{OwnerID: "mallory", SwapID: res.SwapID})
	assert.True(t, shared.IsPrecondition(err))
}

func TestApplyDueSwaps_NewMemberUnfollowedDegradesToRemoval(t *testing.T) {
	f := newSwapFixture()
	f.store.seedMember("owner", "old", 3, testNow.Add(-time.Hour))
	f.store.seedEdge("owner", "new", testNow)
	f.activity.posted["new"] = true

	_, err := f.swap.Swap(context.Background(), SwapPhlockMemberCommand{
		OwnerID: "owner", OldMemberID: "old", NewMemberID: "new",
	})
	require.NoError(t, err)

	// The owner unfollows new while the swap is pending, so the edge the
	// membership would attach to is gone.
	_, err = (&fakeEdges{s: f.store}).Delete(context.Background(), "owner", "new")
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	applied, err := f.applier.ApplyDueSwaps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// Old is out, the slot stays vacant.
	assert.Empty(t, f.roster(t, "owner"))
}
