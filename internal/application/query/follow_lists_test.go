package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
)

var qNow = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func TestFollowList_NewestEdgeFirst(t *testing.T) {
	edges := &stubEdges{edges: []*graph.FollowEdge{
		edge("alice", "bob", qNow.Add(-3*time.Hour)),
		edge("alice", "carol", qNow.Add(-1*time.Hour)),
		edge("alice", "dave", qNow.Add(-2*time.Hour)),
	}}
	h := NewFollowListHandler(edges, newMemListCache(), nil)

	res, err := h.Handle(context.Background(), FollowListQuery{OwnerID: "alice", Direction: DirectionFollowing})
	require.NoError(t, err)

	require.Equal(t, 3, res.Total)
	assert.Equal(t, "carol", res.Entries[0].UserID)
	assert.Equal(t, "dave", res.Entries[1].UserID)
	assert.Equal(t, "bob", res.Entries[2].UserID)
}

func TestFollowList_SecondReadServedFromCache(t *testing.T) {
	edges := &stubEdges{edges: []*graph.FollowEdge{edge("alice", "bob", qNow)}}
	h := NewFollowListHandler(edges, newMemListCache(), nil)

	first, err := h.Handle(context.Background(), FollowListQuery{OwnerID: "alice", Direction: DirectionFollowing})
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := h.Handle(context.Background(), FollowListQuery{OwnerID: "alice", Direction: DirectionFollowing})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, 1, edges.storeHits)
}

func TestFollowList_FollowersDirection(t *testing.T) {
	edges := &stubEdges{edges: []*graph.FollowEdge{
		edge("bob", "alice", qNow.Add(-time.Hour)),
		edge("carol", "alice", qNow),
	}}
	h := NewFollowListHandler(edges, newMemListCache(), nil)

	res, err := h.Handle(context.Background(), FollowListQuery{OwnerID: "alice", Direction: DirectionFollowers})
	require.NoError(t, err)

	require.Equal(t, 2, res.Total)
	assert.Equal(t, "carol", res.Entries[0].UserID)
	assert.Equal(t, "bob", res.Entries[1].UserID)
}

func TestFollowList_EnrichmentIsBestEffort(t *testing.T) {
	edges := &stubEdges{edges: []*graph.FollowEdge{
		edge("alice", "bob", qNow),
		edge("alice", "ghost", qNow.Add(-time.Hour)),
	}}
	dir := &stubDirectory{users: map[string]*graph.User{
		"bob": {ID: "bob", Handle: "bobh", DisplayName: "Bob"},
	}}
	h := NewFollowListHandler(edges, newMemListCache(), dir)

	res, err := h.Handle(context.Background(), FollowListQuery{OwnerID: "alice", Direction: DirectionFollowing, Enrich: true})
	require.NoError(t, err)

	require.Equal(t, 2, res.Total)
	assert.Equal(t, "bobh", res.Entries[0].Handle)

	// Unknown to the directory: bare ID, no failure.
	assert.Equal(t, "ghost", res.Entries[1].UserID)
	assert.Empty(t, res.Entries[1].Handle)
}

func TestFollowList_InvalidDirection(t *testing.T) {
	h := NewFollowListHandler(&stubEdges{}, newMemListCache(), nil)

	_, err := h.Handle(context.Background(), FollowListQuery{OwnerID: "alice", Direction: "sideways"})

	assert.Error(t, err)
}

func TestMutualFollows_Intersection(t *testing.T) {
	edges := &stubEdges{edges: []*graph.FollowEdge{
		edge("alice", "bob", qNow.Add(-2*time.Hour)),
		edge("alice", "carol", qNow.Add(-1*time.Hour)),
		edge("bob", "alice", qNow),
		edge("dave", "alice", qNow),
	}}
	lists := NewFollowListHandler(edges, newMemListCache(), nil)
	h := NewMutualFollowsHandler(lists)

	res, err := h.Handle(context.Background(), MutualFollowsQuery{OwnerID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, []string{"bob"}, res.UserIDs)
	assert.Equal(t, 1, res.Total)
}

func TestMutualFollows_EmptyGraph(t *testing.T) {
	lists := NewFollowListHandler(&stubEdges{}, newMemListCache(), nil)
	h := NewMutualFollowsHandler(lists)

	res, err := h.Handle(context.Background(), MutualFollowsQuery{OwnerID: "alice"})
	require.NoError(t, err)

	assert.Empty(t, res.UserIDs)
}
