package command

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
)

// memStore is a single in-memory relationship store shared by the fake
// repositories, so edge and phlock state stay consistent the way one
// Postgres schema keeps them consistent.
type memStore struct {
	edges    []*graph.FollowEdge
	requests map[string]*graph.FollowRequest
	spans    []*historySpan
	swaps    map[string]*phlock.ScheduledSwap
}

type historySpan struct {
	ownerID   string
	memberID  string
	addedAt   time.Time
	removedAt *time.Time
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[string]*graph.FollowRequest),
		swaps:    make(map[string]*phlock.ScheduledSwap),
	}
}

func (s *memStore) findEdge(followerID, followingID string) *graph.FollowEdge {
	for _, e := range s.edges {
		if e.FollowerID == followerID && e.FollowingID == followingID {
			return e
		}
	}
	return nil
}

// seedEdge inserts a plain follow edge.
func (s *memStore) seedEdge(followerID, followingID string, at time.Time) *graph.FollowEdge {
	e := &graph.FollowEdge{
		ID:          uuid.New().String(),
		FollowerID:  followerID,
		FollowingID: followingID,
		CreatedAt:   at,
	}
	s.edges = append(s.edges, e)
	return e
}

// seedMember puts followingID into followerID's phlock at pos, with the
// matching open history span.
func (s *memStore) seedMember(ownerID, memberID string, pos int, at time.Time) {
	e := s.findEdge(ownerID, memberID)
	if e == nil {
		e = s.seedEdge(ownerID, memberID, at)
	}
	e.InPhlock = true
	p := pos
	t := at
	e.PhlockPos = &p
	e.PhlockAdded = &t
	s.spans = append(s.spans, &historySpan{ownerID: ownerID, memberID: memberID, addedAt: at})
}

// ─── edge repository ─────────────────────────────────────────────────────────

type fakeEdges struct{ s *memStore }

func (f *fakeEdges) Create(_ context.Context, edge *graph.FollowEdge) error {
	if f.s.findEdge(edge.FollowerID, edge.FollowingID) != nil {
		return shared.ErrAlreadyFollowing
	}
	f.s.edges = append(f.s.edges, edge)
	return nil
}

func (f *fakeEdges) GetByPair(_ context.Context, followerID, followingID string) (*graph.FollowEdge, error) {
	if e := f.s.findEdge(followerID, followingID); e != nil {
		return e, nil
	}
	return nil, shared.ErrEdgeNotFound
}

func (f *fakeEdges) Delete(_ context.Context, followerID, followingID string) (*graph.FollowEdge, error) {
	for i, e := range f.s.edges {
		if e.FollowerID == followerID && e.FollowingID == followingID {
			f.s.edges = append(f.s.edges[:i], f.s.edges[i+1:]...)
			return e, nil
		}
	}
	return nil, shared.ErrEdgeNotFound
}

func (f *fakeEdges) Exists(_ context.Context, followerID, followingID string) (bool, error) {
	return f.s.findEdge(followerID, followingID) != nil, nil
}

func (f *fakeEdges) ListFollowing(_ context.Context, ownerID string) ([]*graph.FollowEdge, error) {
	var out []*graph.FollowEdge
	for i := len(f.s.edges) - 1; i >= 0; i-- {
		if f.s.edges[i].FollowerID == ownerID {
			out = append(out, f.s.edges[i])
		}
	}
	return out, nil
}

func (f *fakeEdges) ListFollowers(_ context.Context, ownerID string) ([]*graph.FollowEdge, error) {
	var out []*graph.FollowEdge
	for i := len(f.s.edges) - 1; i >= 0; i-- {
		if f.s.edges[i].FollowingID == ownerID {
			out = append(out, f.s.edges[i])
		}
	}
	return out, nil
}

func (f *fakeEdges) CountCurrentReach(_ context.Context, memberID string) (int, error) {
	owners := make(map[string]struct{})
	for _, e := range f.s.edges {
		if e.FollowingID == memberID && e.InPhlock {
			owners[e.FollowerID] = struct{}{}
		}
	}
	return len(owners), nil
}

// ─── request repository ──────────────────────────────────────────────────────

type fakeRequests struct{ s *memStore }

func (f *fakeRequests) Create(_ context.Context, req *graph.FollowRequest) error {
	for _, r := range f.s.requests {
		if r.RequesterID == req.RequesterID && r.TargetID == req.TargetID && r.Status == graph.RequestPending {
			return shared.ErrRequestAlreadyExists
		}
	}
	cp := *req
	f.s.requests[req.ID] = &cp
	return nil
}

func (f *fakeRequests) GetByID(_ context.Context, id string) (*graph.FollowRequest, error) {
	if r, ok := f.s.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, shared.ErrRequestNotFound
}

func (f *fakeRequests) GetPendingByPair(_ context.Context, requesterID, targetID string) (*graph.FollowRequest, error) {
	for _, r := range f.s.requests {
		if r.RequesterID == requesterID && r.TargetID == targetID && r.Status == graph.RequestPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, shared.ErrRequestNotFound
}

func (f *fakeRequests) Update(_ context.Context, req *graph.FollowRequest) error {
	stored, ok := f.s.requests[req.ID]
	if !ok || stored.Status != graph.RequestPending {
		return shared.ErrRequestNotPending
	}
	cp := *req
	f.s.requests[req.ID] = &cp
	return nil
}

func (f *fakeRequests) ListPendingForTarget(_ context.Context, targetID string) ([]*graph.FollowRequest, error) {
	var out []*graph.FollowRequest
	for _, r := range f.s.requests {
		if r.TargetID == targetID && r.Status == graph.RequestPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ─── phlock repository ───────────────────────────────────────────────────────

type fakePhlocks struct{ s *memStore }

func (f *fakePhlocks) LockOwner(context.Context, string) error { return nil }

func (f *fakePhlocks) ListMembers(_ context.Context, ownerID string) ([]phlock.Member, error) {
	var out []phlock.Member
	for _, e := range f.s.edges {
		if e.FollowerID == ownerID && e.InPhlock {
			out = append(out, phlock.Member{UserID: e.FollowingID, Position: *e.PhlockPos, AddedAt: *e.PhlockAdded})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakePhlocks) SetMembership(_ context.Context, ownerID, memberID string, position int, addedAt time.Time) error {
	e := f.s.findEdge(ownerID, memberID)
	if e == nil {
		return shared.ErrMustFollowFirst
	}
	p := position
	t := addedAt
	e.InPhlock = true
	e.PhlockPos = &p
	e.PhlockAdded = &t
	return nil
}

func (f *fakePhlocks) ClearMembership(_ context.Context, ownerID, memberID string) error {
	if e := f.s.findEdge(ownerID, memberID); e != nil {
		e.InPhlock = false
		e.PhlockPos = nil
		e.PhlockAdded = nil
	}
	return nil
}

// ─── history repository ──────────────────────────────────────────────────────

type fakeHistory struct{ s *memStore }

func (f *fakeHistory) openSpan(ownerID, memberID string) *historySpan {
	for _, sp := range f.s.spans {
		if sp.ownerID == ownerID && sp.memberID == memberID && sp.removedAt == nil {
			return sp
		}
	}
	return nil
}

func (f *fakeHistory) Open(_ context.Context, ownerID, memberID string, addedAt time.Time) error {
	if f.openSpan(ownerID, memberID) != nil {
		return nil
	}
	f.s.spans = append(f.s.spans, &historySpan{ownerID: ownerID, memberID: memberID, addedAt: addedAt})
	return nil
}

func (f *fakeHistory) Close(_ context.Context, ownerID, memberID string, removedAt time.Time) error {
	if sp := f.openSpan(ownerID, memberID); sp != nil {
		t := removedAt
		sp.removedAt = &t
	}
	return nil
}

func (f *fakeHistory) CountDistinctOwners(_ context.Context, memberID string) (int, error) {
	owners := make(map[string]struct{})
	for _, sp := range f.s.spans {
		if sp.memberID == memberID {
			owners[sp.ownerID] = struct{}{}
		}
	}
	return len(owners), nil
}

// ─── swap repository ─────────────────────────────────────────────────────────

type fakeSwaps struct{ s *memStore }

func (f *fakeSwaps) Create(_ context.Context, swap *phlock.ScheduledSwap) error {
	cp := *swap
	f.s.swaps[swap.ID] = &cp
	return nil
}

func (f *fakeSwaps) GetByID(_ context.Context, id string) (*phlock.ScheduledSwap, error) {
	if sw, ok := f.s.swaps[id]; ok {
		cp := *sw
		return &cp, nil
	}
	return nil, shared.ErrSwapNotFound
}

func (f *fakeSwaps) Update(_ context.Context, swap *phlock.ScheduledSwap) error {
	stored, ok := f.s.swaps[swap.ID]
	if !ok || stored.Status != phlock.SwapPending {
		return shared.ErrSwapNotPending
	}
	cp := *swap
	f.s.swaps[swap.ID] = &cp
	return nil
}

func (f *fakeSwaps) ListDue(_ context.Context, now time.Time) ([]*phlock.ScheduledSwap, error) {
	var out []*phlock.ScheduledSwap
	for _, sw := range f.s.swaps {
		if sw.Status == phlock.SwapPending && !sw.ScheduledFor.After(now) {
			cp := *sw
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (f *fakeSwaps) ListPendingRemovals(_ context.Context, ownerID string) ([]*phlock.ScheduledSwap, error) {
	var out []*phlock.ScheduledSwap
	for _, sw := range f.s.swaps {
		if sw.OwnerID == ownerID && sw.Status == phlock.SwapPending && sw.IsRemoval() {
			cp := *sw
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

// ─── caches ──────────────────────────────────────────────────────────────────

type fakeListCache struct {
	following map[string][]string
	followers map[string][]string

	invalidatedFollowing []string
	invalidatedFollowers []string
}

func newFakeListCache() *fakeListCache {
	return &fakeListCache{
		following: make(map[string][]string),
		followers: make(map[string][]string),
	}
}

func (c *fakeListCache) GetFollowing(_ context.Context, ownerID string) ([]string, bool) {
	ids, ok := c.following[ownerID]
	return ids, ok
}

func (c *fakeListCache) SetFollowing(_ context.Context, ownerID string, ids []string) {
	c.following[ownerID] = ids
}

func (c *fakeListCache) GetFollowers(_ context.Context, ownerID string) ([]string, bool) {
	ids, ok := c.followers[ownerID]
	return ids, ok
}

func (c *fakeListCache) SetFollowers(_ context.Context, ownerID string, ids []string) {
	c.followers[ownerID] = ids
}

func (c *fakeListCache) InvalidateFollowing(_ context.Context, ownerID string) {
	delete(c.following, ownerID)
	c.invalidatedFollowing = append(c.invalidatedFollowing, ownerID)
}

func (c *fakeListCache) InvalidateFollowers(_ context.Context, ownerID string) {
	delete(c.followers, ownerID)
	c.invalidatedFollowers = append(c.invalidatedFollowers, ownerID)
}

type fakeMemberCache struct {
	members     map[string][]phlock.Member
	invalidated []string
}

func newFakeMemberCache() *fakeMemberCache {
	return &fakeMemberCache{members: make(map[string][]phlock.Member)}
}

func (c *fakeMemberCache) GetMembers(_ context.Context, ownerID string) ([]phlock.Member, bool) {
	m, ok := c.members[ownerID]
	return m, ok
}

func (c *fakeMemberCache) SetMembers(_ context.Context, ownerID string, members []phlock.Member) {
	c.members[ownerID] = members
}

func (c *fakeMemberCache) InvalidateMembers(_ context.Context, ownerID string) {
	delete(c.members, ownerID)
	c.invalidated = append(c.invalidated, ownerID)
}

// ─── collaborators ───────────────────────────────────────────────────────────

type fakeDirectory struct {
	users map[string]*graph.User
}

func newFakeDirectory(users ...*graph.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]*graph.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetUser(_ context.Context, id string) (*graph.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, shared.ErrUserNotFound
}

func (d *fakeDirectory) GetUsers(_ context.Context, ids []string) (map[string]*graph.User, error) {
	out := make(map[string]*graph.User)
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakeActivity struct {
	posted map[string]bool
	err    error
}

func (a *fakeActivity) HasPostedToday(_ context.Context, userID string) (bool, error) {
	if a.err != nil {
		return false, a.err
	}
	return a.posted[userID], nil
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) typesSeen() []shared.EventType {
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}
