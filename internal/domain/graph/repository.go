package graph

import (
	"context"
)

// EdgeRepository is durable storage for follow edges.
//
// Implementations must provide read-your-writes: a successful write is
// visible to any read issued after it returns. Mutations of phlock
// sub-state additionally require the caller to hold the owner's
// transaction lock (see phlock.Repository.LockOwner).
type EdgeRepository interface {
	// Create inserts a new edge. Returns shared.ErrAlreadyFollowing when
	// an edge for the pair already exists.
	Create(ctx context.Context, edge *FollowEdge) error

	// GetByPair returns the edge follower->following, or
	// shared.ErrEdgeNotFound.
	GetByPair(ctx context.Context, followerID, followingID string) (*FollowEdge, error)

	// Delete removes the edge follower->following and returns the deleted
	// row, so callers can see whether phlock sub-state went with it.
	// Returns shared.ErrEdgeNotFound when absent.
	Delete(ctx context.Context, followerID, followingID string) (*FollowEdge, error)

	// Exists reports whether follower->following exists.
	Exists(ctx context.Context, followerID, followingID string) (bool, error)

	// ListFollowing returns all edges where ownerID is the follower,
	// newest first.
	ListFollowing(ctx context.Context, ownerID string) ([]*FollowEdge, error)

	// ListFollowers returns all edges where ownerID is being followed,
	// newest first.
	ListFollowers(ctx context.Context, ownerID string) ([]*FollowEdge, error)

	// CountCurrentReach returns the number of distinct users whose phlock
	// currently includes memberID.
	CountCurrentReach(ctx context.Context, memberID string) (int, error)
}

// RequestRepository is durable storage for follow requests.
type RequestRepository interface {
	// Create inserts a pending request. Returns
	// shared.ErrRequestAlreadyExists when a pending request for the pair
	// already exists.
	Create(ctx context.Context, req *FollowRequest) error

	// GetByID returns a request or shared.ErrRequestNotFound.
	GetByID(ctx context.Context, id string) (*FollowRequest, error)

	// GetPendingByPair returns the pending request requester->target, or
	// shared.ErrRequestNotFound.
	GetPendingByPair(ctx context.Context, requesterID, targetID string) (*FollowRequest, error)

	// Update persists a status transition. The store matches on the
	// previous pending status so two concurrent responders cannot both
	// win; the loser gets shared.ErrRequestNotPending.
	Update(ctx context.Context, req *FollowRequest) error

	// ListPendingForTarget returns pending requests aimed at targetID,
	// oldest first.
	ListPendingForTarget(ctx context.Context, targetID string) ([]*FollowRequest, error)
}

// ListCache caches the derived per-user lists with a bounded TTL.
// Implementations are best effort: a miss or any error falls through to
// the store, so the cache is never a correctness dependency.
type ListCache interface {
	// GetFollowing returns cached following IDs and whether it was a hit.
	GetFollowing(ctx context.Context, ownerID string) ([]string, bool)
	SetFollowing(ctx context.Context, ownerID string, ids []string)

	// GetFollowers returns cached follower IDs and whether it was a hit.
	GetFollowers(ctx context.Context, ownerID string) ([]string, bool)
	SetFollowers(ctx context.Context, ownerID string, ids []string)

	// InvalidateFollowing/InvalidateFollowers drop the derived list.
	// Every mutation path must invalidate exactly the keys it affects
	// before reporting success.
	InvalidateFollowing(ctx context.Context, ownerID string)
	InvalidateFollowers(ctx context.Context, ownerID string)
}

// UserDirectory looks up users on the platform service. Collaborator
// interface; profile data is not stored by this core.
type UserDirectory interface {
	// GetUser returns a user or shared.ErrUserNotFound.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUsers batch-resolves IDs; absent users are simply missing from
	// the result map.
	GetUsers(ctx context.Context, ids []string) (map[string]*User, error)
}

// FollowNotifier dispatches follow notifications. Fire-and-forget:
// callers log failures and never surface them.
type FollowNotifier interface {
	NotifyNewFollower(ctx context.Context, targetID, followerID string) error
	NotifyFollowRequest(ctx context.Context, targetID, requesterID string) error
}

// EdgeIDs projects the counterpart user ID out of each edge, given the
// direction: when following is true the counterpart is FollowingID.
func EdgeIDs(edges []*FollowEdge, following bool) []string {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		if following {
			ids = append(ids, e.FollowingID)
		} else {
			ids = append(ids, e.FollowerID)
		}
	}
	return ids
}
