// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
	"github.com/phlock-app/phlock-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FOLLOW USER COMMAND
// Creates a follow edge, or a follow request when the target profile is
// private. The follow graph is the substrate everything else (phlocks,
// reach) is built on.
// ══════════════════════════════════════════════════════════════════════════════

// FollowUserCommand contains the data to follow a user.
type FollowUserCommand struct {
	// FollowerID is the user initiating the follow.
	FollowerID string

	// TargetID is the user being followed.
	TargetID string

	// DirectOnly skips the private-profile request fallback: a private
	// target is a hard error instead of producing a follow request.
	DirectOnly bool
}

// Validate validates the command.
func (c FollowUserCommand) Validate() error {
	if c.FollowerID == "" {
		return errors.New("follow_user: follower_id is required")
	}
	if c.TargetID == "" {
		return errors.New("follow_user: target_id is required")
	}
	if c.FollowerID == c.TargetID {
		return shared.ErrSelfFollow
	}
	return nil
}

// FollowUserResult contains the result of a follow attempt.
type FollowUserResult struct {
	// Followed is true when an edge was created.
	Followed bool

	// Requested is true when the target is private and a follow request
	// was created instead.
	Requested bool

	// EdgeID is the created edge's ID when Followed.
	EdgeID string

	// RequestID is the created request's ID when Requested.
	RequestID string
}

// FollowUserHandler handles the FollowUserCommand.
type FollowUserHandler struct {
	edges     graph.EdgeRepository
	requests  graph.RequestRepository
	directory graph.UserDirectory
	lists     graph.ListCache
	tx        shared.TxRunner
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewFollowUserHandler creates a new FollowUserHandler.
func NewFollowUserHandler(
	edges graph.EdgeRepository,
	requests graph.RequestRepository,
	directory graph.UserDirectory,
	lists graph.ListCache,
	tx shared.TxRunner,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
) *FollowUserHandler {
	return &FollowUserHandler{
		edges:     edges,
		requests:  requests,
		directory: directory,
		lists:     lists,
		tx:        tx,
		publisher: publisher,
		clock:     clock,
	}
}

// Handle executes the follow command.
func (h *FollowUserHandler) Handle(ctx context.Context, cmd FollowUserCommand) (*FollowUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	target, err := h.directory.GetUser(ctx, cmd.TargetID)
	if err != nil {
		return nil, fmt.Errorf("follow_user: resolving target: %w", err)
	}

	if target.IsPrivate {
		if cmd.DirectOnly {
			return nil, shared.NewDomainError("graph", "Follow", shared.ErrPrecondition,
				"target profile is private, a follow request is required")
		}
		return h.request(ctx, cmd)
	}
	return h.follow(ctx, cmd)
}

// follow creates the edge directly. A pending request for the pair
// (left over from when the target was private) is accepted in the same
// transaction, so an edge and a pending request never coexist.
func (h *FollowUserHandler) follow(ctx context.Context, cmd FollowUserCommand) (*FollowUserResult, error) {
	now := h.clock.Now()
	edge, err := graph.NewFollowEdge(cmd.FollowerID, cmd.TargetID, now)
	if err != nil {
		return nil, err
	}

	pending, err := h.requests.GetPendingByPair(ctx, cmd.FollowerID, cmd.TargetID)
	switch {
	case err == nil:
		err = h.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := pending.Accept(now); err != nil {
				return err
			}
			if err := h.requests.Update(ctx, pending); err != nil {
				return err
			}
			return h.edges.Create(ctx, edge)
		})
		if err != nil {
			return nil, err
		}
	case errors.Is(err, shared.ErrRequestNotFound):
		if err := h.edges.Create(ctx, edge); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("follow_user: checking pending request: %w", err)
	}

	// Both derived lists changed; drop them before reporting success.
	h.lists.InvalidateFollowing(ctx, cmd.FollowerID)
	h.lists.InvalidateFollowers(ctx, cmd.TargetID)

	_ = h.publisher.Publish(shared.NewFollowEvent(shared.EventFollowCreated, cmd.FollowerID, cmd.TargetID))

	return &FollowUserResult{Followed: true, EdgeID: edge.ID}, nil
}

// request creates a pending follow request for a private target.
func (h *FollowUserHandler) request(ctx context.Context, cmd FollowUserCommand) (*FollowUserResult, error) {
	// An existing edge beats a new request.
	exists, err := h.edges.Exists(ctx, cmd.FollowerID, cmd.TargetID)
	if err != nil {
		return nil, fmt.Errorf("follow_user: checking edge: %w", err)
	}
	if exists {
		return nil, shared.ErrAlreadyFollowing
	}

	req, err := graph.NewFollowRequest(cmd.FollowerID, cmd.TargetID, h.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := h.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	_ = h.publisher.Publish(shared.NewFollowRequestEvent(
		shared.EventFollowRequestSent, req.ID, cmd.FollowerID, cmd.TargetID, string(req.Status)))

	return &FollowUserResult{Requested: true, RequestID: req.ID}, nil
}
