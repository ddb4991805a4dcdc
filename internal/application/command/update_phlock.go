package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
	"github.com/phlock-app/phlock-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PHLOCK MEMBERSHIP COMMANDS
// Add, remove, and reorder the owner's phlock. Every mutation runs inside
// one transaction with the owner's edges locked, so concurrent edits to
// the same phlock serialize and the last submitted edit wins slot
// contention. The history log is written in the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// phlockEditor applies membership mutations. All methods require the
// caller to hold the owner lock inside an open transaction.
type phlockEditor struct {
	phlocks phlock.Repository
	history phlock.HistoryRepository
}

// addLocked places memberID at pos, evicting the slot's current holder.
// A member already on the roster moves slots and keeps its open history
// span. Returns the evicted user's ID, if any.
func (e *phlockEditor) addLocked(ctx context.Context, ownerID, memberID string, pos int, now time.Time) (string, error) {
	roster := phlock.Roster{OwnerID: ownerID}
	members, err := e.phlocks.ListMembers(ctx, ownerID)
	if err != nil {
		return "", err
	}
	roster.Members = members

	if err := roster.CanAdd(memberID, pos); err != nil {
		return "", err
	}

	var evicted string
	if occupant := roster.OccupantAt(pos); occupant != nil && occupant.UserID != memberID {
		evicted = occupant.UserID
		if err := e.phlocks.ClearMembership(ctx, ownerID, occupant.UserID); err != nil {
			return "", err
		}
		if err := e.history.Close(ctx, ownerID, occupant.UserID, now); err != nil {
			return "", err
		}
	}

	if existing := roster.Find(memberID); existing != nil {
		// Moving slots keeps the original AddedAt and open history span.
		return evicted, e.phlocks.SetMembership(ctx, ownerID, memberID, pos, existing.AddedAt)
	}

	// SetMembership fails with ErrMustFollowFirst when no edge exists.
	if err := e.phlocks.SetMembership(ctx, ownerID, memberID, pos, now); err != nil {
		return "", err
	}
	return evicted, e.history.Open(ctx, ownerID, memberID, now)
}

// removeLocked frees memberID's slot. Returns the freed position.
func (e *phlockEditor) removeLocked(ctx context.Context, ownerID, memberID string, now time.Time) (int, error) {
	members, err := e.phlocks.ListMembers(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	roster := phlock.Roster{OwnerID: ownerID, Members: members}

	member := roster.Find(memberID)
	if member == nil {
		return 0, shared.ErrNotInPhlock
	}

	if err := e.phlocks.ClearMembership(ctx, ownerID, memberID); err != nil {
		return 0, err
	}
	if err := e.history.Close(ctx, ownerID, memberID, now); err != nil {
		return 0, err
	}
	return member.Position, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ADD MEMBER
// ══════════════════════════════════════════════════════════════════════════════

// AddPhlockMemberCommand places a followed user in a phlock slot.
type AddPhlockMemberCommand struct {
	OwnerID  string
	MemberID string
	Position int
}

// Validate validates the command.
func (c AddPhlockMemberCommand) Validate() error {
	if c.OwnerID == "" {
		return errors.New("add_phlock_member: owner_id is required")
	}
	if c.MemberID == "" {
		return errors.New("add_phlock_member: member_id is required")
	}
	if c.OwnerID == c.MemberID {
		return shared.NewDomainError("phlock", "AddMember", shared.ErrInvalidInput,
			"cannot add yourself to your own phlock")
	}
	if !phlock.ValidPosition(c.Position) {
		return shared.ErrInvalidPosition
	}
	return nil
}

// AddPhlockMemberResult contains the result of adding a member.
type AddPhlockMemberResult struct {
	// EvictedMemberID is the previous holder of the slot, if any.
	EvictedMemberID string
}

// AddPhlockMemberHandler handles the AddPhlockMemberCommand.
type AddPhlockMemberHandler struct {
	phlocks   phlock.Repository
	history   phlock.HistoryRepository
	members   phlock.MemberCache
	tx        shared.TxRunner
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewAddPhlockMemberHandler creates a new AddPhlockMemberHandler.
func NewAddPhlockMemberHandler(
	phlocks phlock.Repository,
	history phlock.HistoryRepository,
	members phlock.MemberCache,
	tx shared.TxRunner,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
) *AddPhlockMemberHandler {
	return &AddPhlockMemberHandler{
		phlocks:   phlocks,
		history:   history,
		members:   members,
		tx:        tx,
		publisher: publisher,
		clock:     clock,
	}
}

// Handle executes the add command.
func (h *AddPhlockMemberHandler) Handle(ctx context.Context, cmd AddPhlockMemberCommand) (*AddPhlockMemberResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	editor := &phlockEditor{phlocks: h.phlocks, history: h.history}
	result := &AddPhlockMemberResult{}

	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := h.phlocks.LockOwner(ctx, cmd.OwnerID); err != nil {
			return err
		}
		evicted, err := editor.addLocked(ctx, cmd.OwnerID, cmd.MemberID, cmd.Position, now)
		if err != nil {
			return err
		}
		result.EvictedMemberID = evicted
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.members.InvalidateMembers(ctx, cmd.OwnerID)

	if result.EvictedMemberID != "" {
		ev := shared.NewPhlockEvent(shared.EventPhlockMemberRemoved, cmd.OwnerID)
		ev.MemberID = result.EvictedMemberID
		ev.Position = cmd.Position
		_ = h.publisher.Publish(ev)
	}
	ev := shared.NewPhlockEvent(shared.EventPhlockMemberAdded, cmd.OwnerID)
	ev.MemberID = cmd.MemberID
	ev.Position = cmd.Position
	_ = h.publisher.Publish(ev)

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REMOVE MEMBER
// ══════════════════════════════════════════════════════════════════════════════

// RemovePhlockMemberCommand frees a member's slot.
type RemovePhlockMemberCommand struct {
	OwnerID  string
	MemberID string
}

// Validate validates the command.
func (c RemovePhlockMemberCommand) Validate() error {
	if c.OwnerID == "" {
		return errors.New("remove_phlock_member: owner_id is required")
	}
	if c.MemberID == "" {
		return errors.New("remove_phlock_member: member_id is required")
	}
	return nil
}

// RemovePhlockMemberResult contains the result of removing a member.
type RemovePhlockMemberResult struct {
	FreedPosition int
}

// RemovePhlockMemberHandler handles the RemovePhlockMemberCommand.
type RemovePhlockMemberHandler struct {
	phlocks   phlock.Repository
	history   phlock.HistoryRepository
	members   phlock.MemberCache
	tx        shared.TxRunner
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewRemovePhlockMemberHandler creates a new RemovePhlockMemberHandler.
func NewRemovePhlockMemberHandler(
	phlocks phlock.Repository,
	history phlock.HistoryRepository,
	members phlock.MemberCache,
	tx shared.TxRunner,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
) *RemovePhlockMemberHandler {
	return &RemovePhlockMemberHandler{
		phlocks:   phlocks,
		history:   history,
		members:   members,
		tx:        tx,
		publisher: publisher,
		clock:     clock,
	}
}

// Handle executes the remove command.
func (h *RemovePhlockMemberHandler) Handle(ctx context.Context, cmd RemovePhlockMemberCommand) (*RemovePhlockMemberResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	editor := &phlockEditor{phlocks: h.phlocks, history: h.history}
	result := &RemovePhlockMemberResult{}

	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := h.phlocks.LockOwner(ctx, cmd.OwnerID); err != nil {
			return err
		}
		pos, err := editor.removeLocked(ctx, cmd.OwnerID, cmd.MemberID, now)
		if err != nil {
			return err
		}
		result.FreedPosition = pos
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.members.InvalidateMembers(ctx, cmd.OwnerID)

	ev := shared.NewPhlockEvent(shared.EventPhlockMemberRemoved, cmd.OwnerID)
	ev.MemberID = cmd.MemberID
	ev.Position = result.FreedPosition
	_ = h.publisher.Publish(ev)

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REORDER
// ══════════════════════════════════════════════════════════════════════════════

// ReorderPhlockCommand replaces the phlock with orderedIDs, position
// = list index + 1.
type ReorderPhlockCommand struct {
	OwnerID    string
	OrderedIDs []string
}

// Validate validates the command.
func (c ReorderPhlockCommand) Validate() error {
	if c.OwnerID == "" {
		return errors.New("reorder_phlock: owner_id is required")
	}
	if len(c.OrderedIDs) > phlock.MaxMembers {
		return shared.ErrTooManyMembers
	}
	seen := make(map[string]bool, len(c.OrderedIDs))
	for _, id := range c.OrderedIDs {
		if id == "" {
			return errors.New("reorder_phlock: empty member id")
		}
		if id == c.OwnerID {
			return shared.NewDomainError("phlock", "Reorder", shared.ErrInvalidInput,
				"cannot add yourself to your own phlock")
		}
		if seen[id] {
			return fmt.Errorf("reorder_phlock: duplicate member id %s", id)
		}
		seen[id] = true
	}
	return nil
}

// ReorderPhlockResult contains the result of a reorder.
type ReorderPhlockResult struct {
	// SkippedIDs lists requested members the owner does not follow; they
	// are left out rather than failing the whole reorder.
	SkippedIDs []string

	// RemovedIDs lists previous members absent from the new order.
	RemovedIDs []string
}

// ReorderPhlockHandler handles the ReorderPhlockCommand.
type ReorderPhlockHandler struct {
	edges     graph.EdgeRepository
	phlocks   phlock.Repository
	history   phlock.HistoryRepository
	members   phlock.MemberCache
	tx        shared.TxRunner
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewReorderPhlockHandler creates a new ReorderPhlockHandler.
func NewReorderPhlockHandler(
	edges graph.EdgeRepository,
	phlocks phlock.Repository,
	history phlock.HistoryRepository,
	members phlock.MemberCache,
	tx shared.TxRunner,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
) *ReorderPhlockHandler {
	return &ReorderPhlockHandler{
		edges:     edges,
		phlocks:   phlocks,
		history:   history,
		members:   members,
		tx:        tx,
		publisher: publisher,
		clock:     clock,
	}
}

// Handle executes the reorder command. The new order replaces the roster
// wholesale: members missing from orderedIDs are removed, new followed
// users are added, and everyone ends at position index+1.
func (h *ReorderPhlockHandler) Handle(ctx context.Context, cmd ReorderPhlockCommand) (*ReorderPhlockResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	result := &ReorderPhlockResult{}

	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := h.phlocks.LockOwner(ctx, cmd.OwnerID); err != nil {
			return err
		}

		current, err := h.phlocks.ListMembers(ctx, cmd.OwnerID)
		if err != nil {
			return err
		}
		roster := phlock.Roster{OwnerID: cmd.OwnerID, Members: current}

		// Resolve the target roster first: non-followers are skipped
		// silently, keeping their requested slot vacant.
		type placement struct {
			userID   string
			position int
		}
		target := make([]placement, 0, len(cmd.OrderedIDs))
		keep := make(map[string]bool, len(cmd.OrderedIDs))
		for i, id := range cmd.OrderedIDs {
			if roster.Find(id) == nil {
				follows, err := h.edges.Exists(ctx, cmd.OwnerID, id)
				if err != nil {
					return err
				}
				if !follows {
					result.SkippedIDs = append(result.SkippedIDs, id)
					continue
				}
			}
			target = append(target, placement{userID: id, position: i + 1})
			keep[id] = true
		}

		// Drop members absent from the new order.
		for _, m := range current {
			if keep[m.UserID] {
				continue
			}
			if err := h.phlocks.ClearMembership(ctx, cmd.OwnerID, m.UserID); err != nil {
				return err
			}
			if err := h.history.Close(ctx, cmd.OwnerID, m.UserID, now); err != nil {
				return err
			}
			result.RemovedIDs = append(result.RemovedIDs, m.UserID)
		}

		for _, p := range target {
			addedAt := now
			isNew := true
			if existing := roster.Find(p.userID); existing != nil {
				addedAt = existing.AddedAt
				isNew = false
			}
			if err := h.phlocks.SetMembership(ctx, cmd.OwnerID, p.userID, p.position, addedAt); err != nil {
				return err
			}
			if isNew {
				if err := h.history.Open(ctx, cmd.OwnerID, p.userID, now); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.members.InvalidateMembers(ctx, cmd.OwnerID)
	_ = h.publisher.Publish(shared.NewPhlockEvent(shared.EventPhlockReordered, cmd.OwnerID))

	return result, nil
}
