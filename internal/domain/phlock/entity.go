// Package phlock models the bounded ordered membership list each user
// curates: up to 5 followed users occupying positions 1..5, with
// conflict-aware slot assignment, deferred swaps that cut over at local
// midnight, and an append-only history log feeding reach metrics.
package phlock

import (
	"time"

	"github.com/google/uuid"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
)

// MaxMembers mirrors graph.MaxPhlockSize; membership is sub-state of
// follow edges, so the bound lives in one place.
const MaxMembers = graph.MaxPhlockSize

// Member is one occupied slot of an owner's phlock.
type Member struct {
	UserID   string    `json:"user_id"`
	Position int       `json:"position"`
	AddedAt  time.Time `json:"added_at"`
}

// Roster is the in-memory view of one owner's phlock, used to evaluate
// slot invariants before writing. It is always read and mutated under the
// owner's store lock.
type Roster struct {
	OwnerID string
	Members []Member // ascending by position
}

// ValidPosition reports whether pos is a legal slot number.
func ValidPosition(pos int) bool {
	return pos >= 1 && pos <= MaxMembers
}

// Find returns the member with the given user ID, or nil.
func (r *Roster) Find(userID string) *Member {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			return &r.Members[i]
		}
	}
	return nil
}

// OccupantAt returns the member holding pos, or nil.
func (r *Roster) OccupantAt(pos int) *Member {
	for i := range r.Members {
		if r.Members[i].Position == pos {
			return &r.Members[i]
		}
	}
	return nil
}

// CanAdd checks the add invariants: position in range, and room for a new
// member. A user already on the roster may always move slots, and an
// occupied position accepts a new member even on a full roster because
// the add evicts the occupant (it nets to a swap).
func (r *Roster) CanAdd(userID string, pos int) error {
	if !ValidPosition(pos) {
		return shared.ErrInvalidPosition
	}
	if r.Find(userID) != nil || r.OccupantAt(pos) != nil {
		return nil
	}
	if len(r.Members) >= MaxMembers {
		return shared.ErrPhlockFull
	}
	return nil
}

// SwapStatus is the lifecycle state of a deferred membership change.
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapApplied   SwapStatus = "applied"
	SwapCancelled SwapStatus = "cancelled"
)

// IsTerminal reports whether the status can never change again.
func (s SwapStatus) IsTerminal() bool {
	return s == SwapApplied || s == SwapCancelled
}

// ScheduledSwap is a durable deferred membership mutation. NewMemberID
// nil means a pure removal. The row survives process restarts; a
// recurring scan applies due rows at or after the cutover instant.
type ScheduledSwap struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	OldMemberID  string     `json:"old_member_id"`
	NewMemberID  *string    `json:"new_member_id,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Status       SwapStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	AppliedAt    *time.Time `json:"applied_at,omitempty"`
}

// NewScheduledSwap creates a pending swap cutting over at scheduledFor.
func NewScheduledSwap(ownerID, oldMemberID string, newMemberID *string, scheduledFor, now time.Time) (*ScheduledSwap, error) {
	if ownerID == "" || oldMemberID == "" {
		return nil, shared.NewDomainError("phlock", "NewSwap", shared.ErrInvalidInput, "owner and outgoing member IDs are required")
	}
	if scheduledFor.IsZero() || !scheduledFor.After(now) {
		return nil, shared.ErrSchedulingFailed
	}
	return &ScheduledSwap{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		OldMemberID:  oldMemberID,
		NewMemberID:  newMemberID,
		ScheduledFor: scheduledFor,
		Status:       SwapPending,
		CreatedAt:    now,
	}, nil
}

// IsRemoval reports whether this swap only removes a member.
func (s *ScheduledSwap) IsRemoval() bool {
	return s.NewMemberID == nil
}

// IsDue reports whether the cutover instant has arrived.
func (s *ScheduledSwap) IsDue(now time.Time) bool {
	return s.Status == SwapPending && !s.ScheduledFor.After(now)
}

// MarkApplied transitions pending -> applied.
func (s *ScheduledSwap) MarkApplied(at time.Time) error {
	if s.Status != SwapPending {
		return shared.ErrSwapNotPending
	}
	s.Status = SwapApplied
	t := at
	s.AppliedAt = &t
	return nil
}

// MarkCancelled transitions pending -> cancelled.
func (s *ScheduledSwap) MarkCancelled() error {
	if s.Status != SwapPending {
		return shared.ErrSwapNotPending
	}
	s.Status = SwapCancelled
	return nil
}

// HistoryEntry is an append-only record of one membership span. Written
// on every add (open) and remove (close); never mutated after RemovedAt
// is set. Historical reach counts distinct owners over these rows.
type HistoryEntry struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	MemberID  string     `json:"member_id"`
	AddedAt   time.Time  `json:"added_at"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

// NewHistoryEntry opens a membership span.
func NewHistoryEntry(ownerID, memberID string, addedAt time.Time) *HistoryEntry {
	return &HistoryEntry{
		ID:       uuid.New().String(),
		OwnerID:  ownerID,
		MemberID: memberID,
		AddedAt:  addedAt,
	}
}
