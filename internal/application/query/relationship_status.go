// Package query contains read operations following CQRS pattern.
// Queries never modify state; derived lists may be served from the
// bounded-TTL cache, with every miss falling through to the store.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RELATIONSHIP STATUS QUERY
// Resolves the full directed relationship between two users in one call:
// each direction of following, mutuality, and any pending request.
// ══════════════════════════════════════════════════════════════════════════════

// RelationshipStatusQuery asks how viewer and subject relate.
type RelationshipStatusQuery struct {
	ViewerID  string
	SubjectID string
}

// Validate validates the query.
func (q RelationshipStatusQuery) Validate() error {
	if q.ViewerID == "" {
		return errors.New("relationship_status: viewer_id is required")
	}
	if q.SubjectID == "" {
		return errors.New("relationship_status: subject_id is required")
	}
	return nil
}

// RelationshipStatusResult is the resolved relationship.
type RelationshipStatusResult struct {
	// Following is true when viewer follows subject.
	Following bool `json:"following"`

	// FollowedBy is true when subject follows viewer.
	FollowedBy bool `json:"followed_by"`

	// Mutual is Following && FollowedBy.
	Mutual bool `json:"mutual"`

	// HasPendingRequest is true when viewer's follow request to subject
	// is still pending. Always false while Following.
	HasPendingRequest bool `json:"has_pending_request"`

	// PendingRequestID identifies the pending request, when present.
	PendingRequestID string `json:"pending_request_id,omitempty"`
}

// RelationshipStatusHandler handles relationship status queries.
type RelationshipStatusHandler struct {
	edges    graph.EdgeRepository
	requests graph.RequestRepository
}

// NewRelationshipStatusHandler creates a new RelationshipStatusHandler.
func NewRelationshipStatusHandler(edges graph.EdgeRepository, requests graph.RequestRepository) *RelationshipStatusHandler {
	return &RelationshipStatusHandler{edges: edges, requests: requests}
}

// Handle executes the query. Self-queries resolve to all-false rather
// than erroring, so callers can render any profile uniformly.
func (h *RelationshipStatusHandler) Handle(ctx context.Context, q RelationshipStatusQuery) (*RelationshipStatusResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.ViewerID == q.SubjectID {
		return &RelationshipStatusResult{}, nil
	}

	following, err := h.edges.Exists(ctx, q.ViewerID, q.SubjectID)
	if err != nil {
		return nil, err
	}
	followedBy, err := h.edges.Exists(ctx, q.SubjectID, q.ViewerID)
	if err != nil {
		return nil, err
	}

	result := &RelationshipStatusResult{
		Following:  following,
		FollowedBy: followedBy,
		Mutual:     following && followedBy,
	}

	if !following {
		req, err := h.requests.GetPendingByPair(ctx, q.ViewerID, q.SubjectID)
		switch {
		case err == nil:
			result.HasPendingRequest = true
			result.PendingRequestID = req.ID
		case errors.Is(err, shared.ErrRequestNotFound):
			// no pending request
		default:
			return nil, err
		}
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PENDING REQUESTS QUERY
// Lists the requests awaiting a user's response, oldest first.
// ══════════════════════════════════════════════════════════════════════════════

// PendingRequestsQuery lists requests aimed at TargetID.
type PendingRequestsQuery struct {
	TargetID string
}

// FollowRequestDTO is the outward view of a follow request.
type FollowRequestDTO struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
	CreatedAt   string `json:"created_at"`
}

// PendingRequestsResult holds the pending requests, oldest first.
type PendingRequestsResult struct {
	Requests []FollowRequestDTO `json:"requests"`
	Total    int                `json:"total"`
}

// PendingRequestsHandler handles pending request listings.
type PendingRequestsHandler struct {
	requests graph.RequestRepository
}

// NewPendingRequestsHandler creates a new PendingRequestsHandler.
func NewPendingRequestsHandler(requests graph.RequestRepository) *PendingRequestsHandler {
	return &PendingRequestsHandler{requests: requests}
}

// Handle executes the query.
func (h *PendingRequestsHandler) Handle(ctx context.Context, q PendingRequestsQuery) (*PendingRequestsResult, error) {
	if q.TargetID == "" {
		return nil, errors.New("pending_requests: target_id is required")
	}

	pending, err := h.requests.ListPendingForTarget(ctx, q.TargetID)
	if err != nil {
		return nil, err
	}

	dtos := make([]FollowRequestDTO, 0, len(pending))
	for _, req := range pending {
		dtos = append(dtos, FollowRequestDTO{
			ID:          req.ID,
			RequesterID: req.RequesterID,
			CreatedAt:   req.CreatedAt.Format(time.RFC3339),
		})
	}
	return &PendingRequestsResult{Requests: dtos, Total: len(dtos)}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SINGLE REQUEST QUERY
// ══════════════════════════════════════════════════════════════════════════════

// FollowRequestQuery fetches one request by ID.
type FollowRequestQuery struct {
	RequestID string
}

// FollowRequestDetail is the full outward view of a request, including
// its lifecycle state.
type FollowRequestDetail struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
	TargetID    string `json:"target_id"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	RespondedAt string `json:"responded_at,omitempty"`
}

// FollowRequestHandler handles single request lookups.
type FollowRequestHandler struct {
	requests graph.RequestRepository
}

// NewFollowRequestHandler creates a new FollowRequestHandler.
func NewFollowRequestHandler(requests graph.RequestRepository) *FollowRequestHandler {
	return &FollowRequestHandler{requests: requests}
}

// Handle executes the query. Returns shared.ErrRequestNotFound for
// unknown IDs.
func (h *FollowRequestHandler) Handle(ctx context.Context, q FollowRequestQuery) (*FollowRequestDetail, error) {
	if q.RequestID == "" {
		return nil, errors.New("follow_request: request_id is required")
	}

	req, err := h.requests.GetByID(ctx, q.RequestID)
	if err != nil {
		return nil, err
	}

	detail := &FollowRequestDetail{
		ID:          req.ID,
		RequesterID: req.RequesterID,
		TargetID:    req.TargetID,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
	}
	if req.RespondedAt != nil {
		detail.RespondedAt = req.RespondedAt.Format(time.RFC3339)
	}
	return detail, nil
}
