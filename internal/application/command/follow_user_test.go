package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
	"github.com/phlock-app/phlock-core/pkg/timeutil"
)

var testNow = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func publicUser(id string) *graph.User {
	return &graph.User{ID: id, Handle: id, DisplayName: id}
}

func privateUser(id string) *graph.User {
	return &graph.User{ID: id, Handle: id, DisplayName: id, IsPrivate: true}
}

func TestFollowUser_PublicTargetCreatesEdge(t *testing.T) {
	store := newMemStore()
	lists := newFakeListCache()
	pub := &recordingPublisher{}
	h := NewFollowUserHandler(
		&fakeEdges{s: store}, &fakeRequests{s: store},
		newFakeDirectory(publicUser("bob")), lists, shared.NopTxRunner{}, pub, timeutil.NewFixedClock(testNow),
	)

	res, err := h.Handle(context.Background(), FollowUserCommand{FollowerID: "alice", TargetID: "bob"})
	require.NoError(t, err)

	assert.True(t, res.Followed)
	assert.False(t, res.Requested)
	assert.NotEmpty(t, res.EdgeID)
	assert.NotNil(t, store.findEdge("alice", "bob"))

	// Both derived lists were dropped.
	assert.Contains(t, lists.invalidatedFollowing, "alice")
	assert.Contains(t, lists.invalidatedFollowers, "bob")
	assert.Equal(t, []shared.EventType{shared.EventFollowCreated}, pub.typesSeen())
}

func TestFollowUser_DuplicateEdgeConflicts(t *testing.T) {
	store := newMemStore()
	store.seedEdge("alice", "bob", testNow)
	h := NewFollowUserHandler(
		&fakeEdges{s: store}, &fakeRequests{s: store},
		newFakeDirectory(publicUser("bob")), newFakeListCache(), shared.NopTxRunner{}, &recordingPublisher{}, timeutil.NewFixedClock(testNow),
	)

	_, err := h.Handle(context.Background(), FollowUserCommand{FollowerID: "alice", TargetID: "bob"})

	assert.ErrorIs(t, err, shared.ErrAlreadyFollowing)
	assert.True(t, shared.IsConflict(err))
}

func TestFollowUser_PrivateTargetCreatesRequest(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	h := NewFollowUserHandler(
		&fakeEdges{s: store}, &fakeRequests{s: store},
		newFakeDirectory(privateUser("bob")), newFakeListCache(), shared.NopTxRunner{}, pub, timeutil.NewFixedClock(testNow),
	)

	res, err := h.Handle(context.Background(), FollowUserCommand{FollowerID: "alice", TargetID: "bob"})
	require.NoError(t, err)

	assert.False(t, res.Followed)
	assert.True(t, res.Requested)
	assert.NotEmpty(t, res.RequestID)
	assert.Nil(t, store.findEdge("alice", "bob"))
	assert.Equal(t, []shared.EventType{shared.EventFollowRequestSent}, pub.typesSeen())
}

func TestFollowUser_PrivateTargetDuplicateRequestConflicts(t *testing.T) {
	store := newMemStore()
	h := NewFollowUserHandler(
		&fakeEdges{s: store}, &fakeRequests{s: store},
		newFakeDirectory(privateUser("bob")), newFakeListCache(), shared.NopTxRunner{}, &recordingPublisher{}, timeutil.NewFixedClock(testNow),
	)

	_, err := h.Handle(context.Background(), FollowUserCommand{FollowerID: "alice", TargetID: "bob"})
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), FollowUserCommand{FollowerID: "alice", TargetID: "bob"})
	assert.ErrorIs(t, err, shared.ErrRequestAlreadyExists)
}

func TestFollowUser_NewlyPublicTargetResolvesPendingRequest(t *testing.T) {
	store := newMemStore()
	req := seedRequest(t, store, "alice", "bob")
	pub := &recordingPublisher{}

	// bob was private when alice requested; he has since gone public.
	h := NewFollowUserHandler(
		&fakeEdges{s: store}, &fakeRequests{s: store},
		newFakeDirectory(publicUser("bob")), newFakeListCache(), shared.NopTxRunner{}, pub, timeutil.NewFixedClock(testNow),
	)

	res, err := h.Handle(context.Background(), FollowUserCommand{FollowerID: "alice", TargetID: "bob"})
	require.NoError(t, err)

	assert.True(t, res.Followed)
	assert.NotNil(t, store.findEdge("alice", "bob"))

	// The stale request was accepted alongside the edge, not left pending.
	stored, err := (&fakeRequests{s: store}).GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, graph.RequestAccepted, stored.Status)
	require.NotNil(t, stored.RespondedAt)
	assert.Equal(t, testNow, *stored.RespondedAt)

	assert.Equal(t, []shared.EventType{shared.EventFollowCreated}, pub.typesSeen())
}

func TestFollowUser_SelfFollowRejected(t *testing.T) {
	h := NewFollowUserHandler(
		&fakeEdges{s: newMemStore()}, &fakeRequests{s: newMemStore()},
		newFakeDirectory(), newFakeListCache(), shared.NopTxRunner{}, &recordingPublisher{}, timeutil.NewFixedClock(testNow),
	)

	_, err := h.Handle(context.Background(), FollowUserCommand{FollowerID: "alice", TargetID: "alice"})

	assert.ErrorIs(t, err, shared.ErrSelfFollow)
}

func TestFollowUser_UnknownTarget(t *testing.T) {
	h := NewFollowUserHandler(
		&fakeEdges{s: newMemStore()}, &fakeRequests{s: newMemStore()},
		newFakeDirectory(), newFakeListCache(), shared.NopTxRunner{}, &recordingPublisher{}, timeutil.NewFixedClock(testNow),
	)

	_, err := h.Handle(context.Background(), FollowUserCommand{FollowerID: "alice", TargetID: "ghost"})

	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func TestUnfollowUser_RemovesEdge(t *testing.T) {
	store := newMemStore()
	store.seedEdge("alice", "bob", testNow)
	lists := newFakeListCache()
	pub := &recordingPublisher{}
	h := NewUnfollowUserHandler(
		&fakeEdges{s: store}, &fakePhlocks{s: store}, &fakeHistory{s: store},
		lists, newFakeMemberCache(), shared.NopTxRunner{}, pub, timeutil.NewFixedClock(testNow),
	)

	res, err := h.Handle(context.Background(), UnfollowUserCommand{FollowerID: "alice", TargetID: "bob"})
	require.NoError(t, err)

	assert.False(t, res.EvictedFromPhlock)
	assert.Nil(t, store.findEdge("alice", "bob"))
	assert.Contains(t, lists.invalidatedFollowing, "alice")
	assert.Contains(t, lists.invalidatedFollowers, "bob")
	assert.Equal(t, []shared.EventType{shared.EventFollowRemoved}, pub.typesSeen())
}

func TestUnfollowUser_EvictsFromPhlockAndClosesSpan(t *testing.T) {
	store := newMemStore()
	store.seedMember("alice", "bob", 2, testNow.Add(-24*time.Hour))
	members := newFakeMemberCache()
	pub := &recordingPublisher{}
	h := NewUnfollowUserHandler(
		&fakeEdges{s: store}, &fakePhlocks{s: store}, &fakeHistory{s: store},
		newFakeListCache(), members, shared.NopTxRunner{}, pub, timeutil.NewFixedClock(testNow),
	)

	res, err := h.Handle(context.Background(), UnfollowUserCommand{FollowerID: "alice", TargetID: "bob"})
	require.NoError(t, err)

	assert.True(t, res.EvictedFromPhlock)
	assert.Equal(t, 2, res.FreedPosition)
	assert.Contains(t, members.invalidated, "alice")

	// The history span closed at the unfollow instant.
	require.Len(t, store.spans, 1)
	require.NotNil(t, store.spans[0].removedAt)
	assert.Equal(t, testNow, *store.spans[0].removedAt)

	assert.Equal(t, []shared.EventType{shared.EventPhlockMemberRemoved, shared.EventFollowRemoved}, pub.typesSeen())
}

func TestUnfollowUser_AbsentEdgeIsPreconditionFailure(t *testing.T) {
	h := NewUnfollowUserHandler(
		&fakeEdges{s: newMemStore()}, &fakePhlocks{s: newMemStore()}, &fakeHistory{s: newMemStore()},
		newFakeListCache(), newFakeMemberCache(), shared.NopTxRunner{}, &recordingPublisher{}, timeutil.NewFixedClock(testNow),
	)

	_, err := h.Handle(context.Background(), UnfollowUserCommand{FollowerID: "alice", TargetID: "bob"})

	assert.ErrorIs(t, err, shared.ErrNotFollowing)
	assert.True(t, shared.IsPrecondition(err))
}
