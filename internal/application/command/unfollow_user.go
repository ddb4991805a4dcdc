package command

import (
	"context"
	"errors"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
	"github.com/phlock-app/phlock-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNFOLLOW USER COMMAND
// Removes a follow edge. Phlock membership is sub-state of the follow, so
// when the target occupied a slot in the follower's phlock the slot is
// freed and the history span closed in the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// UnfollowUserCommand contains the data to remove a follow edge.
type UnfollowUserCommand struct {
	// FollowerID is the user removing the follow.
	FollowerID string

	// TargetID is the user being unfollowed.
	TargetID string
}

// Validate validates the command.
func (c UnfollowUserCommand) Validate() error {
	if c.FollowerID == "" {
		return errors.New("unfollow_user: follower_id is required")
	}
	if c.TargetID == "" {
		return errors.New("unfollow_user: target_id is required")
	}
	return nil
}

// UnfollowUserResult contains the result of an unfollow.
type UnfollowUserResult struct {
	// EvictedFromPhlock is true when the deleted edge held a phlock slot.
	EvictedFromPhlock bool

	// FreedPosition is the vacated slot when EvictedFromPhlock.
	FreedPosition int
}

// UnfollowUserHandler handles the UnfollowUserCommand.
type UnfollowUserHandler struct {
	edges     graph.EdgeRepository
	phlocks   phlock.Repository
	history   phlock.HistoryRepository
	lists     graph.ListCache
	members   phlock.MemberCache
	tx        shared.TxRunner
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewUnfollowUserHandler creates a new UnfollowUserHandler.
func NewUnfollowUserHandler(
	edges graph.EdgeRepository,
	phlocks phlock.Repository,
	history phlock.HistoryRepository,
	lists graph.ListCache,
	members phlock.MemberCache,
	tx shared.TxRunner,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
) *UnfollowUserHandler {
	return &UnfollowUserHandler{
		edges:     edges,
		phlocks:   phlocks,
		history:   history,
		lists:     lists,
		members:   members,
		tx:        tx,
		publisher: publisher,
		clock:     clock,
	}
}

// Handle executes the unfollow command. An absent edge is a precondition
// failure, not a silent no-op, so callers can distinguish a stale UI from
// a real state change.
func (h *UnfollowUserHandler) Handle(ctx context.Context, cmd UnfollowUserCommand) (*UnfollowUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	result := &UnfollowUserResult{}

	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Membership edits for this owner serialize behind the lock.
		if err := h.phlocks.LockOwner(ctx, cmd.FollowerID); err != nil {
			return err
		}

		deleted, err := h.edges.Delete(ctx, cmd.FollowerID, cmd.TargetID)
		if err != nil {
			if shared.IsNotFound(err) {
				return shared.ErrNotFollowing
			}
			return err
		}

		if deleted.InPhlock {
			result.EvictedFromPhlock = true
			result.FreedPosition = deleted.Position()
			if err := h.history.Close(ctx, cmd.FollowerID, cmd.TargetID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.lists.InvalidateFollowing(ctx, cmd.FollowerID)
	h.lists.InvalidateFollowers(ctx, cmd.TargetID)
	if result.EvictedFromPhlock {
		h.members.InvalidateMembers(ctx, cmd.FollowerID)

		ev := shared.NewPhlockEvent(shared.EventPhlockMemberRemoved, cmd.FollowerID)
		ev.MemberID = cmd.TargetID
		ev.Position = result.FreedPosition
		_ = h.publisher.Publish(ev)
	}
	_ = h.publisher.Publish(shared.NewFollowEvent(shared.EventFollowRemoved, cmd.FollowerID, cmd.TargetID))

	return result, nil
}
