package query

import (
	"context"
	"errors"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
)

// ══════════════════════════════════════════════════════════════════════════════
// FOLLOW LISTS QUERY
// Read-through listing of who a user follows and who follows them. The
// derived ID lists are cached with a short TTL; a hit skips the store
// entirely, a miss reads the store and repopulates. Optional profile
// enrichment goes through the platform directory and never fails the
// query.
// ══════════════════════════════════════════════════════════════════════════════

// ListDirection selects which side of the edge to list.
type ListDirection string

const (
	DirectionFollowing ListDirection = "following"
	DirectionFollowers ListDirection = "followers"
)

// FollowListQuery lists one side of a user's follow graph.
type FollowListQuery struct {
	OwnerID   string
	Direction ListDirection

	// Enrich attaches profile data from the platform directory.
	Enrich bool
}

// Validate validates the query.
func (q FollowListQuery) Validate() error {
	if q.OwnerID == "" {
		return errors.New("follow_list: owner_id is required")
	}
	if q.Direction != DirectionFollowing && q.Direction != DirectionFollowers {
		return errors.New("follow_list: direction must be following or followers")
	}
	return nil
}

// FollowListEntryDTO is one user in a follow list.
type FollowListEntryDTO struct {
	UserID      string `json:"user_id"`
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// FollowListResult holds the list, newest edge first.
type FollowListResult struct {
	Entries []FollowListEntryDTO `json:"entries"`
	Total   int                  `json:"total"`

	// FromCache reports whether the ID list was served from cache.
	FromCache bool `json:"-"`
}

// FollowListHandler handles follow list queries.
type FollowListHandler struct {
	edges     graph.EdgeRepository
	cache     graph.ListCache
	directory graph.UserDirectory
}

// NewFollowListHandler creates a new FollowListHandler. The directory
// may be nil when enrichment is not wired.
func NewFollowListHandler(edges graph.EdgeRepository, cache graph.ListCache, directory graph.UserDirectory) *FollowListHandler {
	return &FollowListHandler{edges: edges, cache: cache, directory: directory}
}

// Handle executes the query.
func (h *FollowListHandler) Handle(ctx context.Context, q FollowListQuery) (*FollowListResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ids, fromCache, err := h.resolveIDs(ctx, q.OwnerID, q.Direction)
	if err != nil {
		return nil, err
	}

	entries := make([]FollowListEntryDTO, 0, len(ids))
	var users map[string]*graph.User
	if q.Enrich && h.directory != nil && len(ids) > 0 {
		// Best effort: a directory outage degrades to bare IDs.
		users, _ = h.directory.GetUsers(ctx, ids)
	}
	for _, id := range ids {
		entry := FollowListEntryDTO{UserID: id}
		if u, ok := users[id]; ok {
			entry.Handle = u.Handle
			entry.DisplayName = u.DisplayName
		}
		entries = append(entries, entry)
	}

	return &FollowListResult{Entries: entries, Total: len(entries), FromCache: fromCache}, nil
}

func (h *FollowListHandler) resolveIDs(ctx context.Context, ownerID string, dir ListDirection) ([]string, bool, error) {
	if dir == DirectionFollowing {
		if ids, ok := h.cache.GetFollowing(ctx, ownerID); ok {
			return ids, true, nil
		}
		edges, err := h.edges.ListFollowing(ctx, ownerID)
		if err != nil {
			return nil, false, err
		}
		ids := graph.EdgeIDs(edges, true)
		h.cache.SetFollowing(ctx, ownerID, ids)
		return ids, false, nil
	}

	if ids, ok := h.cache.GetFollowers(ctx, ownerID); ok {
		return ids, true, nil
	}
	edges, err := h.edges.ListFollowers(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}
	ids := graph.EdgeIDs(edges, false)
	h.cache.SetFollowers(ctx, ownerID, ids)
	return ids, false, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTUAL FOLLOWS QUERY
// Intersection of following and followers, preserving the following
// list's order.
// ══════════════════════════════════════════════════════════════════════════════

// MutualFollowsQuery lists users the owner follows who follow back.
type MutualFollowsQuery struct {
	OwnerID string
}

// MutualFollowsResult holds the mutual IDs.
type MutualFollowsResult struct {
	UserIDs []string `json:"user_ids"`
	Total   int      `json:"total"`
}

// MutualFollowsHandler handles mutual follow queries.
type MutualFollowsHandler struct {
	lists *FollowListHandler
}

// NewMutualFollowsHandler creates a new MutualFollowsHandler.
func NewMutualFollowsHandler(lists *FollowListHandler) *MutualFollowsHandler {
	return &MutualFollowsHandler{lists: lists}
}

// Handle executes the query.
func (h *MutualFollowsHandler) Handle(ctx context.Context, q MutualFollowsQuery) (*MutualFollowsResult, error) {
	if q.OwnerID == "" {
		return nil, errors.New("mutual_follows: owner_id is required")
	}

	following, _, err := h.lists.resolveIDs(ctx, q.OwnerID, DirectionFollowing)
	if err != nil {
		return nil, err
	}
	followers, _, err := h.lists.resolveIDs(ctx, q.OwnerID, DirectionFollowers)
	if err != nil {
		return nil, err
	}

	followerSet := make(map[string]struct{}, len(followers))
	for _, id := range followers {
		followerSet[id] = struct{}{}
	}

	mutual := make([]string, 0, len(following))
	for _, id := range following {
		if _, ok := followerSet[id]; ok {
			mutual = append(mutual, id)
		}
	}
	return &MutualFollowsResult{UserIDs: mutual, Total: len(mutual)}, nil
}
