package command

import (
	"context"
	"errors"

	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
	"github.com/phlock-app/phlock-core/pkg/logger"
	"github.com/phlock-app/phlock-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY DUE SWAPS
// Cutover scan for deferred membership changes. Runs at-least-once: a
// crash after the membership write but before the row flips leaves the
// row pending, and the next pass re-applies it as a no-op because the
// outgoing member is already gone.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyDueSwapsHandler drains pending swap rows whose cutover instant
// has passed.
type ApplyDueSwapsHandler struct {
	phlocks   phlock.Repository
	history   phlock.HistoryRepository
	swaps     phlock.SwapRepository
	members   phlock.MemberCache
	tx        shared.TxRunner
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewApplyDueSwapsHandler creates a new ApplyDueSwapsHandler.
func NewApplyDueSwapsHandler(
	phlocks phlock.Repository,
	history phlock.HistoryRepository,
	swaps phlock.SwapRepository,
	members phlock.MemberCache,
	tx shared.TxRunner,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *ApplyDueSwapsHandler {
	return &ApplyDueSwapsHandler{
		phlocks:   phlocks,
		history:   history,
		swaps:     swaps,
		members:   members,
		tx:        tx,
		publisher: publisher,
		clock:     clock,
		log:       log,
	}
}

// ApplyDueSwaps applies every pending swap whose scheduled_for has
// passed and returns how many rows were resolved. A row that fails
// stays pending and is retried on the next pass; one bad row does not
// stop the scan.
func (h *ApplyDueSwapsHandler) ApplyDueSwaps(ctx context.Context) (int, error) {
	due, err := h.swaps.ListDue(ctx, h.clock.Now())
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, swap := range due {
		if err := h.applyOne(ctx, swap); err != nil {
			h.log.Error("cutover apply failed",
				logger.String("swap_id", swap.ID),
				logger.String("owner_id", swap.OwnerID),
				logger.Err(err),
			)
			continue
		}
		applied++
		h.members.InvalidateMembers(ctx, swap.OwnerID)
	}
	return applied, nil
}

// applyOne applies a single due row inside one locked transaction.
// Resolving the row and mutating the membership commit together, so a
// cancel racing the scan loses cleanly: the CAS update hits 0 rows and
// the whole transaction rolls back.
func (h *ApplyDueSwapsHandler) applyOne(ctx context.Context, swap *phlock.ScheduledSwap) error {
	editor := &phlockEditor{phlocks: h.phlocks, history: h.history}
	now := h.clock.Now()
	var memberID string
	var position int

	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := h.phlocks.LockOwner(ctx, swap.OwnerID); err != nil {
			return err
		}

		freed, err := editor.removeLocked(ctx, swap.OwnerID, swap.OldMemberID, now)
		switch {
		case errors.Is(err, shared.ErrNotInPhlock):
			// The outgoing member already left (unfollow, manual
			// removal, or an earlier pass of this scan). Nothing to
			// mutate; resolve the row.
		case err != nil:
			return err
		default:
			if !swap.IsRemoval() {
				_, addErr := editor.addLocked(ctx, swap.OwnerID, *swap.NewMemberID, freed, now)
				switch {
				case errors.Is(addErr, shared.ErrMustFollowFirst):
					// The incoming member unfollowed the owner while
					// the swap was pending. The removal half still
					// stands; the slot stays vacant.
					h.log.Warn("deferred swap degraded to removal",
						logger.String("swap_id", swap.ID),
						logger.String("owner_id", swap.OwnerID),
						logger.String("new_member_id", *swap.NewMemberID),
					)
				case addErr != nil:
					return addErr
				default:
					memberID = *swap.NewMemberID
					position = freed
				}
			}
		}

		if err := swap.MarkApplied(now); err != nil {
			return err
		}
		return h.swaps.Update(ctx, swap)
	})
	if err != nil {
		return err
	}

	h.publishApplied(swap.OwnerID, memberID, position, swap.ID)
	return nil
}

func (h *ApplyDueSwapsHandler) publishApplied(ownerID, memberID string, pos int, swapID string) {
	ev := shared.NewPhlockEvent(shared.EventSwapApplied, ownerID)
	ev.MemberID = memberID
	ev.Position = pos
	ev.SwapID = swapID
	_ = h.publisher.Publish(ev)
}
