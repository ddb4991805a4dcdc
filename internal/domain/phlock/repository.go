package phlock

import (
	"context"
	"time"
)

// Repository reads and mutates phlock membership sub-state on follow
// edges. Mutating methods must only be called inside a shared.TxRunner
// transaction after LockOwner, which serializes all membership edits for
// one owner (last submitted edit wins slot contention).
type Repository interface {
	// LockOwner takes row-level locks on the owner's follow edges for the
	// duration of the surrounding transaction. Outside a transaction it
	// is a no-op.
	LockOwner(ctx context.Context, ownerID string) error

	// ListMembers returns the owner's current roster ascending by
	// position.
	ListMembers(ctx context.Context, ownerID string) ([]Member, error)

	// SetMembership writes the three membership fields on the
	// owner->member edge. The edge must exist.
	SetMembership(ctx context.Context, ownerID, memberID string, position int, addedAt time.Time) error

	// ClearMembership resets the three membership fields on the
	// owner->member edge.
	ClearMembership(ctx context.Context, ownerID, memberID string) error
}

// HistoryRepository is the append-only membership history log. The
// membership write path is its only writer.
type HistoryRepository interface {
	// Open appends a span with a null RemovedAt.
	Open(ctx context.Context, ownerID, memberID string, addedAt time.Time) error

	// Close sets RemovedAt on the owner/member span that is still open.
	// Closing an already-closed span is a no-op, which keeps the cutover
	// retry path idempotent.
	Close(ctx context.Context, ownerID, memberID string, removedAt time.Time) error

	// CountDistinctOwners returns how many distinct owners have ever had
	// memberID in their phlock, open or closed.
	CountDistinctOwners(ctx context.Context, memberID string) (int, error)
}

// SwapRepository is durable storage for deferred membership changes.
type SwapRepository interface {
	// Create inserts a pending swap.
	Create(ctx context.Context, swap *ScheduledSwap) error

	// GetByID returns a swap or shared.ErrSwapNotFound.
	GetByID(ctx context.Context, id string) (*ScheduledSwap, error)

	// Update persists a status transition. The store matches on the
	// previous pending status; a concurrent transition loses with
	// shared.ErrSwapNotPending.
	Update(ctx context.Context, swap *ScheduledSwap) error

	// ListDue returns pending swaps with ScheduledFor <= now, oldest
	// first.
	ListDue(ctx context.Context, now time.Time) ([]*ScheduledSwap, error)

	// ListPendingRemovals returns the owner's pending pure-removal rows.
	ListPendingRemovals(ctx context.Context, ownerID string) ([]*ScheduledSwap, error)
}

// MemberCache caches the derived roster per owner, TTL-bounded and best
// effort; every membership mutation invalidates before returning success.
type MemberCache interface {
	GetMembers(ctx context.Context, ownerID string) ([]Member, bool)
	SetMembers(ctx context.Context, ownerID string, members []Member)
	InvalidateMembers(ctx context.Context, ownerID string)
}

// ActivitySignal is the external daily-pick collaborator. The swap
// scheduler defers a swap when the incoming member's pick already went
// out today.
type ActivitySignal interface {
	HasPostedToday(ctx context.Context, userID string) (bool, error)
}
