package query

import (
	"context"
	"sort"
	"time"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
)

// stubEdges serves reads from a fixed edge list, counting store hits so
// the cache tests can assert read-through behavior.
type stubEdges struct {
	edges     []*graph.FollowEdge
	reachByID map[string]int
	storeHits int
}

func edge(followerID, followingID string, at time.Time) *graph.FollowEdge {
	return &graph.FollowEdge{ID: followerID + ">" + followingID, FollowerID: followerID, FollowingID: followingID, CreatedAt: at}
}

func (s *stubEdges) Create(context.Context, *graph.FollowEdge) error { return nil }

func (s *stubEdges) GetByPair(_ context.Context, followerID, followingID string) (*graph.FollowEdge, error) {
	for _, e := range s.edges {
		if e.FollowerID == followerID && e.FollowingID == followingID {
			return e, nil
		}
	}
	return nil, shared.ErrEdgeNotFound
}

func (s *stubEdges) Delete(context.Context, string, string) (*graph.FollowEdge, error) {
	return nil, shared.ErrEdgeNotFound
}

func (s *stubEdges) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	_, err := s.GetByPair(ctx, followerID, followingID)
	return err == nil, nil
}

func (s *stubEdges) ListFollowing(_ context.Context, ownerID string) ([]*graph.FollowEdge, error) {
	s.storeHits++
	var out []*graph.FollowEdge
	for _, e := range s.edges {
		if e.FollowerID == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *stubEdges) ListFollowers(_ context.Context, ownerID string) ([]*graph.FollowEdge, error) {
	s.storeHits++
	var out []*graph.FollowEdge
	for _, e := range s.edges {
		if e.FollowingID == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *stubEdges) CountCurrentReach(_ context.Context, memberID string) (int, error) {
	return s.reachByID[memberID], nil
}

type stubRequests struct {
	pending []*graph.FollowRequest
}

func (s *stubRequests) Create(context.Context, *graph.FollowRequest) error { return nil }

func (s *stubRequests) GetByID(_ context.Context, id string) (*graph.FollowRequest, error) {
	for _, r := range s.pending {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, shared.ErrRequestNotFound
}

func (s *stubRequests) GetPendingByPair(_ context.Context, requesterID, targetID string) (*graph.FollowRequest, error) {
	for _, r := range s.pending {
		if r.RequesterID == requesterID && r.TargetID == targetID {
			return r, nil
		}
	}
	return nil, shared.ErrRequestNotFound
}

func (s *stubRequests) Update(context.Context, *graph.FollowRequest) error { return nil }

func (s *stubRequests) ListPendingForTarget(_ context.Context, targetID string) ([]*graph.FollowRequest, error) {
	var out []*graph.FollowRequest
	for _, r := range s.pending {
		if r.TargetID == targetID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// memListCache is a correct in-process ListCache.
type memListCache struct {
	following map[string][]string
	followers map[string][]string
}

func newMemListCache() *memListCache {
	return &memListCache{following: make(map[string][]string), followers: make(map[string][]string)}
}

func (c *memListCache) GetFollowing(_ context.Context, ownerID string) ([]string, bool) {
	ids, ok := c.following[ownerID]
	return ids, ok
}

func (c *memListCache) SetFollowing(_ context.Context, ownerID string, ids []string) {
	c.following[ownerID] = ids
}

func (c *memListCache) GetFollowers(_ context.Context, ownerID string) ([]string, bool) {
	ids, ok := c.followers[ownerID]
	return ids, ok
}

func (c *memListCache) SetFollowers(_ context.Context, ownerID string, ids []string) {
	c.followers[ownerID] = ids
}

func (c *memListCache) InvalidateFollowing(_ context.Context, ownerID string) {
	delete(c.following, ownerID)
}

func (c *memListCache) InvalidateFollowers(_ context.Context, ownerID string) {
	delete(c.followers, ownerID)
}

type stubDirectory struct {
	users map[string]*graph.User
}

func (d *stubDirectory) GetUser(_ context.Context, id string) (*graph.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, shared.ErrUserNotFound
}

func (d *stubDirectory) GetUsers(_ context.Context, ids []string) (map[string]*graph.User, error) {
	out := make(map[string]*graph.User)
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type stubPhlocks struct {
	rosters   map[string][]phlock.Member
	storeHits int
}

func (s *stubPhlocks) LockOwner(context.Context, string) error { return nil }

func (s *stubPhlocks) ListMembers(_ context.Context, ownerID string) ([]phlock.Member, error) {
	s.storeHits++
	return s.rosters[ownerID], nil
}

func (s *stubPhlocks) SetMembership(context.Context, string, string, int, time.Time) error {
	return nil
}

func (s *stubPhlocks) ClearMembership(context.Context, string, string) error { return nil }

type memMemberCache struct {
	members map[string][]phlock.Member
}

func newMemMemberCache() *memMemberCache {
	return &memMemberCache{members: make(map[string][]phlock.Member)}
}

func (c *memMemberCache) GetMembers(_ context.Context, ownerID string) ([]phlock.Member, bool) {
	m, ok := c.members[ownerID]
	return m, ok
}

func (c *memMemberCache) SetMembers(_ context.Context, ownerID string, members []phlock.Member) {
	c.members[ownerID] = members
}

func (c *memMemberCache) InvalidateMembers(_ context.Context, ownerID string) {
	delete(c.members, ownerID)
}

type stubSwaps struct {
	removals map[string][]*phlock.ScheduledSwap
}

func (s *stubSwaps) Create(context.Context, *phlock.ScheduledSwap) error { return nil }

func (s *stubSwaps) GetByID(context.Context, string) (*phlock.ScheduledSwap, error) {
	return nil, shared.ErrSwapNotFound
}

func (s *stubSwaps) Update(context.Context, *phlock.ScheduledSwap) error { return nil }

func (s *stubSwaps) ListDue(context.Context, time.Time) ([]*phlock.ScheduledSwap, error) {
	return nil, nil
}

func (s *stubSwaps) ListPendingRemovals(_ context.Context, ownerID string) ([]*phlock.ScheduledSwap, error) {
	return s.removals[ownerID], nil
}

type stubHistory struct {
	distinctOwners map[string]int
}

func (s *stubHistory) Open(context.Context, string, string, time.Time) error   { return nil }
func (s *stubHistory) Close(context.Context, string, string, time.Time) error { return nil }

func (s *stubHistory) CountDistinctOwners(_ context.Context, memberID string) (int, error) {
	return s.distinctOwners[memberID], nil
}
