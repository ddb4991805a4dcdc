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
// SWAP PHLOCK MEMBER COMMAND
// Replaces one phlock member with another. When the incoming member's
// daily pick has not gone out yet the swap applies immediately; once the
// pick is out, the change waits for the next local midnight so today's
// phlock stays what the owner's followers saw. Deferred swaps are durable
// rows consumed by the cutover scan.
// ══════════════════════════════════════════════════════════════════════════════

// SwapPhlockMemberCommand contains the data to swap a member.
type SwapPhlockMemberCommand struct {
	// OwnerID is the phlock owner.
	OwnerID string

	// OldMemberID is the outgoing member; must currently hold a slot.
	OldMemberID string

	// NewMemberID is the incoming member; must be followed by the owner.
	NewMemberID string
}

// Validate validates the command.
func (c SwapPhlockMemberCommand) Validate() error {
	if c.OwnerID == "" {
		return errors.New("swap_phlock_member: owner_id is required")
	}
	if c.OldMemberID == "" {
		return errors.New("swap_phlock_member: old_member_id is required")
	}
	if c.NewMemberID == "" {
		return errors.New("swap_phlock_member: new_member_id is required")
	}
	if c.OldMemberID == c.NewMemberID {
		return shared.NewDomainError("phlock", "Swap", shared.ErrInvalidInput,
			"old and new member are the same user")
	}
	if c.OwnerID == c.NewMemberID {
		return shared.NewDomainError("phlock", "Swap", shared.ErrInvalidInput,
			"cannot add yourself to your own phlock")
	}
	return nil
}

// SwapPhlockMemberResult reports whether the swap applied now or was
// scheduled for cutover.
type SwapPhlockMemberResult struct {
	// Applied is true when the membership changed immediately.
	Applied bool

	// SwapID identifies the scheduled row when not applied.
	SwapID string

	// ScheduledFor is the cutover instant when not applied.
	ScheduledFor string

	// Position is the slot involved.
	Position int
}

// ScheduleRemovalCommand defers a pure removal to the next midnight.
type ScheduleRemovalCommand struct {
	OwnerID  string
	MemberID string
}

// Validate validates the command.
func (c ScheduleRemovalCommand) Validate() error {
	if c.OwnerID == "" {
		return errors.New("schedule_removal: owner_id is required")
	}
	if c.MemberID == "" {
		return errors.New("schedule_removal: member_id is required")
	}
	return nil
}

// CancelSwapCommand cancels a pending scheduled swap or removal.
type CancelSwapCommand struct {
	OwnerID string
	SwapID  string
}

// Validate validates the command.
func (c CancelSwapCommand) Validate() error {
	if c.OwnerID == "" {
		return errors.New("cancel_swap: owner_id is required")
	}
	if c.SwapID == "" {
		return errors.New("cancel_swap: swap_id is required")
	}
	return nil
}

// SwapPhlockMemberHandler handles swap scheduling commands.
type SwapPhlockMemberHandler struct {
	edges     graph.EdgeRepository
	phlocks   phlock.Repository
	history   phlock.HistoryRepository
	swaps     phlock.SwapRepository
	members   phlock.MemberCache
	activity  phlock.ActivitySignal
	tx        shared.TxRunner
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewSwapPhlockMemberHandler creates a new SwapPhlockMemberHandler.
func NewSwapPhlockMemberHandler(
	edges graph.EdgeRepository,
	phlocks phlock.Repository,
	history phlock.HistoryRepository,
	swaps phlock.SwapRepository,
	members phlock.MemberCache,
	activity phlock.ActivitySignal,
	tx shared.TxRunner,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
) *SwapPhlockMemberHandler {
	return &SwapPhlockMemberHandler{
		edges:     edges,
		phlocks:   phlocks,
		history:   history,
		swaps:     swaps,
		members:   members,
		activity:  activity,
		tx:        tx,
		publisher: publisher,
		clock:     clock,
	}
}

// Swap executes the swap command.
func (h *SwapPhlockMemberHandler) Swap(ctx context.Context, cmd SwapPhlockMemberCommand) (*SwapPhlockMemberResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Both preconditions are checked before the immediate-vs-deferred
	// decision so a doomed swap never becomes a scheduled row.
	members, err := h.phlocks.ListMembers(ctx, cmd.OwnerID)
	if err != nil {
		return nil, err
	}
	roster := phlock.Roster{OwnerID: cmd.OwnerID, Members: members}
	old := roster.Find(cmd.OldMemberID)
	if old == nil {
		return nil, shared.ErrSwapTargetNotMember
	}

	follows, err := h.edges.Exists(ctx, cmd.OwnerID, cmd.NewMemberID)
	if err != nil {
		return nil, err
	}
	if !follows {
		return nil, shared.ErrMustFollowFirst
	}

	posted, err := h.activity.HasPostedToday(ctx, cmd.NewMemberID)
	if err != nil {
		return nil, fmt.Errorf("swap_phlock_member: daily-pick signal: %w", err)
	}

	now := h.clock.Now()

	if !posted {
		pos, err := h.applySwap(ctx, cmd.OwnerID, cmd.OldMemberID, &cmd.NewMemberID)
		if err != nil {
			return nil, err
		}
		h.members.InvalidateMembers(ctx, cmd.OwnerID)
		h.publishApplied(cmd.OwnerID, cmd.NewMemberID, pos, "")
		return &SwapPhlockMemberResult{Applied: true, Position: pos}, nil
	}

	newID := cmd.NewMemberID
	swap, err := phlock.NewScheduledSwap(cmd.OwnerID, cmd.OldMemberID, &newID, h.clock.NextMidnight(now), now)
	if err != nil {
		return nil, err
	}
	if err := h.swaps.Create(ctx, swap); err != nil {
		return nil, err
	}

	ev := shared.NewPhlockEvent(shared.EventSwapScheduled, cmd.OwnerID)
	ev.MemberID = cmd.NewMemberID
	ev.SwapID = swap.ID
	_ = h.publisher.Publish(ev)

	return &SwapPhlockMemberResult{
		SwapID:       swap.ID,
		ScheduledFor: swap.ScheduledFor.Format(time.RFC3339),
		Position:     old.Position,
	}, nil
}

// ScheduleRemoval persists a pure removal cutting over at the next
// midnight. Removals always defer: the member stays visible until the
// day boundary.
func (h *SwapPhlockMemberHandler) ScheduleRemoval(ctx context.Context, cmd ScheduleRemovalCommand) (*SwapPhlockMemberResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	members, err := h.phlocks.ListMembers(ctx, cmd.OwnerID)
	if err != nil {
		return nil, err
	}
	roster := phlock.Roster{OwnerID: cmd.OwnerID, Members: members}
	member := roster.Find(cmd.MemberID)
	if member == nil {
		return nil, shared.ErrSwapTargetNotMember
	}

	now := h.clock.Now()
	swap, err := phlock.NewScheduledSwap(cmd.OwnerID, cmd.MemberID, nil, h.clock.NextMidnight(now), now)
	if err != nil {
		return nil, err
	}
	if err := h.swaps.Create(ctx, swap); err != nil {
		return nil, err
	}

	ev := shared.NewPhlockEvent(shared.EventSwapScheduled, cmd.OwnerID)
	ev.MemberID = cmd.MemberID
	ev.SwapID = swap.ID
	_ = h.publisher.Publish(ev)

	return &SwapPhlockMemberResult{
		SwapID:       swap.ID,
		ScheduledFor: swap.ScheduledFor.Format(time.RFC3339),
		Position:     member.Position,
	}, nil
}

// Cancel cancels a pending swap or removal before its cutover.
func (h *SwapPhlockMemberHandler) Cancel(ctx context.Context, cmd CancelSwapCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	swap, err := h.swaps.GetByID(ctx, cmd.SwapID)
	if err != nil {
		return err
	}
	if swap.OwnerID != cmd.OwnerID {
		return shared.NewDomainError("phlock", "CancelSwap", shared.ErrPrecondition,
			"only the owner can cancel a scheduled change")
	}

	if err := swap.MarkCancelled(); err != nil {
		return err
	}
	if err := h.swaps.Update(ctx, swap); err != nil {
		return err
	}

	ev := shared.NewPhlockEvent(shared.EventSwapCancelled, cmd.OwnerID)
	ev.SwapID = swap.ID
	_ = h.publisher.Publish(ev)
	return nil
}

// applySwap removes old and installs new at old's freed position inside
// one locked transaction. A nil newMemberID is a pure removal.
func (h *SwapPhlockMemberHandler) applySwap(ctx context.Context, ownerID, oldMemberID string, newMemberID *string) (int, error) {
	editor := &phlockEditor{phlocks: h.phlocks, history: h.history}
	now := h.clock.Now()
	var pos int

	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := h.phlocks.LockOwner(ctx, ownerID); err != nil {
			return err
		}

		freed, err := editor.removeLocked(ctx, ownerID, oldMemberID, now)
		if err != nil {
			if errors.Is(err, shared.ErrNotInPhlock) {
				return shared.ErrSwapTargetNotMember
			}
			return err
		}
		pos = freed

		if newMemberID != nil {
			if _, err := editor.addLocked(ctx, ownerID, *newMemberID, freed, now); err != nil {
				return err
			}
		}
		return nil
	})
	return pos, err
}

func (h *SwapPhlockMemberHandler) publishApplied(ownerID, memberID string, pos int, swapID string) {
	ev := shared.NewPhlockEvent(shared.EventSwapApplied, ownerID)
	ev.MemberID = memberID
	ev.Position = pos
	ev.SwapID = swapID
	_ = h.publisher.Publish(ev)
}
