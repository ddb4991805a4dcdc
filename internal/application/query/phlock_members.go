package query

import (
	"context"
	"errors"
	"time"

	"github.com/phlock-app/phlock-core/internal/domain/phlock"
)

// ══════════════════════════════════════════════════════════════════════════════
// PHLOCK MEMBERS QUERY
// Read-through view of an owner's roster, ascending by slot, plus the
// pending deferred changes the owner has queued.
// ══════════════════════════════════════════════════════════════════════════════

// PhlockMembersQuery lists one owner's current roster.
type PhlockMembersQuery struct {
	OwnerID string
}

// PhlockMemberDTO is one slot in the roster.
type PhlockMemberDTO struct {
	UserID   string `json:"user_id"`
	Position int    `json:"position"`
	AddedAt  string `json:"added_at"`
}

// PhlockMembersResult holds the roster ascending by position.
type PhlockMembersResult struct {
	Members []PhlockMemberDTO `json:"members"`
	Total   int               `json:"total"`

	// FromCache reports whether the roster was served from cache.
	FromCache bool `json:"-"`
}

// PhlockMembersHandler handles roster queries.
type PhlockMembersHandler struct {
	phlocks phlock.Repository
	cache   phlock.MemberCache
}

// NewPhlockMembersHandler creates a new PhlockMembersHandler.
func NewPhlockMembersHandler(phlocks phlock.Repository, cache phlock.MemberCache) *PhlockMembersHandler {
	return &PhlockMembersHandler{phlocks: phlocks, cache: cache}
}

// Handle executes the query.
func (h *PhlockMembersHandler) Handle(ctx context.Context, q PhlockMembersQuery) (*PhlockMembersResult, error) {
	if q.OwnerID == "" {
		return nil, errors.New("phlock_members: owner_id is required")
	}

	members, fromCache := h.cache.GetMembers(ctx, q.OwnerID)
	if !fromCache {
		var err error
		members, err = h.phlocks.ListMembers(ctx, q.OwnerID)
		if err != nil {
			return nil, err
		}
		h.cache.SetMembers(ctx, q.OwnerID, members)
	}

	dtos := make([]PhlockMemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, PhlockMemberDTO{
			UserID:   m.UserID,
			Position: m.Position,
			AddedAt:  m.AddedAt.Format(time.RFC3339),
		})
	}
	return &PhlockMembersResult{Members: dtos, Total: len(dtos), FromCache: fromCache}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULED REMOVALS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ScheduledRemovalsQuery lists an owner's pending pure-removal rows.
type ScheduledRemovalsQuery struct {
	OwnerID string
}

// ScheduledRemovalDTO is one pending removal awaiting cutover.
type ScheduledRemovalDTO struct {
	SwapID       string `json:"swap_id"`
	MemberID     string `json:"member_id"`
	ScheduledFor string `json:"scheduled_for"`
}

// ScheduledRemovalsResult holds the pending removals, oldest first.
type ScheduledRemovalsResult struct {
	Removals []ScheduledRemovalDTO `json:"removals"`
	Total    int                   `json:"total"`
}

// ScheduledRemovalsHandler handles scheduled removal listings.
type ScheduledRemovalsHandler struct {
	swaps phlock.SwapRepository
}

// NewScheduledRemovalsHandler creates a new ScheduledRemovalsHandler.
func NewScheduledRemovalsHandler(swaps phlock.SwapRepository) *ScheduledRemovalsHandler {
	return &ScheduledRemovalsHandler{swaps: swaps}
}

// Handle executes the query.
func (h *ScheduledRemovalsHandler) Handle(ctx context.Context, q ScheduledRemovalsQuery) (*ScheduledRemovalsResult, error) {
	if q.OwnerID == "" {
		return nil, errors.New("scheduled_removals: owner_id is required")
	}

	rows, err := h.swaps.ListPendingRemovals(ctx, q.OwnerID)
	if err != nil {
		return nil, err
	}

	dtos := make([]ScheduledRemovalDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, ScheduledRemovalDTO{
			SwapID:       row.ID,
			MemberID:     row.OldMemberID,
			ScheduledFor: row.ScheduledFor.Format(time.RFC3339),
		})
	}
	return &ScheduledRemovalsResult{Removals: dtos, Total: len(dtos)}, nil
}
