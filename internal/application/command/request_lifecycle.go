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
// FOLLOW REQUEST LIFECYCLE
// A pending request is resolved exactly once: accepted by the target
// (edge created in the same transaction), rejected by the target, or
// cancelled by the requester. The store's compare-and-set on the pending
// status makes concurrent responders race safely.
// ══════════════════════════════════════════════════════════════════════════════

// RespondToRequestCommand resolves a pending request as the target.
type RespondToRequestCommand struct {
	// RequestID identifies the request.
	RequestID string

	// ResponderID must be the request's target.
	ResponderID string

	// Accept resolves to accepted when true, rejected when false.
	Accept bool
}

// Validate validates the command.
func (c RespondToRequestCommand) Validate() error {
	if c.RequestID == "" {
		return errors.New("respond_request: request_id is required")
	}
	if c.ResponderID == "" {
		return errors.New("respond_request: responder_id is required")
	}
	return nil
}

// CancelRequestCommand withdraws a pending request as the requester.
type CancelRequestCommand struct {
	// RequestID identifies the request.
	RequestID string

	// RequesterID must be the request's creator.
	RequesterID string
}

// Validate validates the command.
func (c CancelRequestCommand) Validate() error {
	if c.RequestID == "" {
		return errors.New("cancel_request: request_id is required")
	}
	if c.RequesterID == "" {
		return errors.New("cancel_request: requester_id is required")
	}
	return nil
}

// RequestLifecycleResult reports the request's final state.
type RequestLifecycleResult struct {
	RequestID string
	Status    graph.RequestStatus

	// EdgeID is set when acceptance created a follow edge.
	EdgeID string
}

// RequestLifecycleHandler handles responding to and cancelling requests.
type RequestLifecycleHandler struct {
	requests  graph.RequestRepository
	edges     graph.EdgeRepository
	lists     graph.ListCache
	tx        shared.TxRunner
	publisher shared.EventPublisher
	clock     timeutil.Clock
}

// NewRequestLifecycleHandler creates a new RequestLifecycleHandler.
func NewRequestLifecycleHandler(
	requests graph.RequestRepository,
	edges graph.EdgeRepository,
	lists graph.ListCache,
	tx shared.TxRunner,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
) *RequestLifecycleHandler {
	return &RequestLifecycleHandler{
		requests:  requests,
		edges:     edges,
		lists:     lists,
		tx:        tx,
		publisher: publisher,
		clock:     clock,
	}
}

// Respond accepts or rejects a pending request as its target.
func (h *RequestLifecycleHandler) Respond(ctx context.Context, cmd RespondToRequestCommand) (*RequestLifecycleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	req, err := h.requests.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if req.TargetID != cmd.ResponderID {
		return nil, shared.NewDomainError("graph", "Respond", shared.ErrPrecondition,
			"only the request target can respond")
	}

	now := h.clock.Now()
	result := &RequestLifecycleResult{RequestID: req.ID}

	if !cmd.Accept {
		if err := req.Reject(now); err != nil {
			return nil, err
		}
		if err := h.requests.Update(ctx, req); err != nil {
			return nil, err
		}
		result.Status = req.Status
		h.publishReplied(req)
		return result, nil
	}

	// Acceptance and edge creation commit together or not at all.
	err = h.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := req.Accept(now); err != nil {
			return err
		}
		if err := h.requests.Update(ctx, req); err != nil {
			return err
		}

		edge, err := graph.NewFollowEdge(req.RequesterID, req.TargetID, now)
		if err != nil {
			return err
		}
		if err := h.edges.Create(ctx, edge); err != nil {
			return fmt.Errorf("accept_request: creating edge: %w", err)
		}
		result.EdgeID = edge.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Status = req.Status
	h.lists.InvalidateFollowing(ctx, req.RequesterID)
	h.lists.InvalidateFollowers(ctx, req.TargetID)

	h.publishReplied(req)
	_ = h.publisher.Publish(shared.NewFollowEvent(shared.EventFollowCreated, req.RequesterID, req.TargetID))

	return result, nil
}

// Cancel withdraws a pending request as its creator.
func (h *RequestLifecycleHandler) Cancel(ctx context.Context, cmd CancelRequestCommand) (*RequestLifecycleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	req, err := h.requests.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != cmd.RequesterID {
		return nil, shared.NewDomainError("graph", "Cancel", shared.ErrPrecondition,
			"only the requester can cancel a request")
	}

	if err := req.Cancel(h.clock.Now()); err != nil {
		return nil, err
	}
	if err := h.requests.Update(ctx, req); err != nil {
		return nil, err
	}

	h.publishReplied(req)
	return &RequestLifecycleResult{RequestID: req.ID, Status: req.Status}, nil
}

func (h *RequestLifecycleHandler) publishReplied(req *graph.FollowRequest) {
	_ = h.publisher.Publish(shared.NewFollowRequestEvent(
		shared.EventFollowRequestReplied, req.ID, req.RequesterID, req.TargetID, string(req.Status)))
}
