// Package graph models the directed social-follow graph: follow edges,
// follow requests for private profiles, and pairwise relationship status.
//
// A follow edge also carries the owning side of phlock membership: the
// three phlock_* fields on an edge are sub-state of the follow, so
// deleting the edge implicitly removes the membership. That invariant is
// owned here and enforced transactionally by the unfollow path.
package graph

import (
	"time"

	"github.com/google/uuid"

	"github.com/phlock-app/phlock-core/internal/domain/shared"
)

// MaxPhlockSize is the largest number of users a phlock can hold.
const MaxPhlockSize = 5

// User is the slice of a platform user this core needs: identity plus the
// privacy flag that gates follow-vs-request. Everything else about users
// belongs to the platform service.
type User struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	IsPrivate   bool   `json:"is_private"`
}

// FollowEdge is a directed "follower follows following" relationship.
// At most one edge exists per (FollowerID, FollowingID) pair.
//
// PhlockPosition is non-nil iff InPhlock, and for a fixed FollowerID at
// most one edge holds each position 1..5.
type FollowEdge struct {
	ID          string     `json:"id"`
	FollowerID  string     `json:"follower_id"`
	FollowingID string     `json:"following_id"`
	CreatedAt   time.Time  `json:"created_at"`
	InPhlock    bool       `json:"in_phlock"`
	PhlockPos   *int       `json:"phlock_position,omitempty"`
	PhlockAdded *time.Time `json:"phlock_added_at,omitempty"`
}

// NewFollowEdge creates an edge outside any phlock.
func NewFollowEdge(followerID, followingID string, now time.Time) (*FollowEdge, error) {
	if followerID == "" || followingID == "" {
		return nil, shared.NewDomainError("graph", "NewEdge", shared.ErrInvalidInput, "follower and following IDs are required")
	}
	if followerID == followingID {
		return nil, shared.ErrSelfFollow
	}
	return &FollowEdge{
		ID:          uuid.New().String(),
		FollowerID:  followerID,
		FollowingID: followingID,
		CreatedAt:   now,
	}, nil
}

// EnterPhlock marks the edge as occupying the given slot.
func (e *FollowEdge) EnterPhlock(position int, at time.Time) error {
	if position < 1 || position > MaxPhlockSize {
		return shared.ErrInvalidPosition
	}
	e.InPhlock = true
	pos := position
	e.PhlockPos = &pos
	added := at
	e.PhlockAdded = &added
	return nil
}

// LeavePhlock clears all membership sub-state from the edge.
func (e *FollowEdge) LeavePhlock() {
	e.InPhlock = false
	e.PhlockPos = nil
	e.PhlockAdded = nil
}

// Position returns the slot this edge occupies, or 0 when not in a phlock.
func (e *FollowEdge) Position() int {
	if e.PhlockPos == nil {
		return 0
	}
	return *e.PhlockPos
}

// RequestStatus is the lifecycle state of a follow request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether the status can never change again.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestAccepted || s == RequestRejected || s == RequestCancelled
}

// FollowRequest is a pending ask to follow a private profile. At most one
// non-terminal request exists per (RequesterID, TargetID), and a pending
// request and a follow edge for the same pair are mutually exclusive.
type FollowRequest struct {
	ID          string        `json:"id"`
	RequesterID string        `json:"requester_id"`
	TargetID    string        `json:"target_id"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	RespondedAt *time.Time    `json:"responded_at,omitempty"`
}

// NewFollowRequest creates a pending request.
func NewFollowRequest(requesterID, targetID string, now time.Time) (*FollowRequest, error) {
	if requesterID == "" || targetID == "" {
		return nil, shared.NewDomainError("graph", "NewRequest", shared.ErrInvalidInput, "requester and target IDs are required")
	}
	if requesterID == targetID {
		return nil, shared.ErrSelfFollow
	}
	return &FollowRequest{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		TargetID:    targetID,
		Status:      RequestPending,
		CreatedAt:   now,
	}, nil
}

// respond moves a pending request to a terminal status.
func (r *FollowRequest) respond(to RequestStatus, at time.Time) error {
	if r.Status != RequestPending {
		return shared.ErrRequestNotPending
	}
	r.Status = to
	t := at
	r.RespondedAt = &t
	return nil
}

// Accept marks the request accepted. The caller must create the follow
// edge in the same transaction.
func (r *FollowRequest) Accept(at time.Time) error { return r.respond(RequestAccepted, at) }

// Reject marks the request rejected.
func (r *FollowRequest) Reject(at time.Time) error { return r.respond(RequestRejected, at) }

// Cancel marks the request cancelled by the requester.
func (r *FollowRequest) Cancel(at time.Time) error { return r.respond(RequestCancelled, at) }

// RelationshipStatus describes the pairwise relationship from a's view.
type RelationshipStatus struct {
	IsFollowing  bool `json:"is_following"`
	IsFollowedBy bool `json:"is_followed_by"`
	IsMutual     bool `json:"is_mutual"`
	// HasPendingRequest is only evaluated when IsFollowing is false.
	HasPendingRequest bool `json:"has_pending_request"`
}
