package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/phlock-app/phlock-core/internal/application/command"
	"github.com/phlock-app/phlock-core/internal/application/query"
	"github.com/phlock-app/phlock-core/internal/domain/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "Phlock Core API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":    "/health",
			"following": "/api/v1/users/{id}/following",
			"phlock":    "/api/v1/users/{id}/phlock",
			"reach":     "/api/v1/users/{id}/reach",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": s.Uptime().String(),
	})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// FOLLOW GRAPH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleFollow handles POST /api/v1/users/{id}/following/{target}
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.FollowUser.Handle(r.Context(), command.FollowUserCommand{
		FollowerID: r.PathValue("id"),
		TargetID:   r.PathValue("target"),
		DirectOnly: getQueryParamBool(r, "direct_only"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// 201 for the immediate edge, 202 for a pending request on a
	// private profile.
	status := http.StatusCreated
	if res.Requested {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

// handleUnfollow handles DELETE /api/v1/users/{id}/following/{target}
func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.UnfollowUser.Handle(r.Context(), command.UnfollowUserCommand{
		FollowerID: r.PathValue("id"),
		TargetID:   r.PathValue("target"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleListFollowing handles GET /api/v1/users/{id}/following
func (s *Server) handleListFollowing(w http.ResponseWriter, r *http.Request) {
	s.handleFollowList(w, r, query.DirectionFollowing)
}

// handleListFollowers handles GET /api/v1/users/{id}/followers
func (s *Server) handleListFollowers(w http.ResponseWriter, r *http.Request) {
	s.handleFollowList(w, r, query.DirectionFollowers)
}

func (s *Server) handleFollowList(w http.ResponseWriter, r *http.Request, dir query.ListDirection) {
	res, err := s.deps.FollowList.Handle(r.Context(), query.FollowListQuery{
		OwnerID:   r.PathValue("id"),
		Direction: dir,
		Enrich:    getQueryParamBool(r, "enrich"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleListMutuals handles GET /api/v1/users/{id}/mutuals
func (s *Server) handleListMutuals(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.MutualFollows.Handle(r.Context(), query.MutualFollowsQuery{OwnerID: r.PathValue("id")})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRelationship handles GET /api/v1/users/{id}/relationship/{subject}
func (s *Server) handleRelationship(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.RelationshipStatus.Handle(r.Context(), query.RelationshipStatusQuery{
		ViewerID:  r.PathValue("id"),
		SubjectID: r.PathValue("subject"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// FOLLOW REQUEST HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePendingRequests handles GET /api/v1/users/{id}/requests
func (s *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.PendingRequests.Handle(r.Context(), query.PendingRequestsQuery{TargetID: r.PathValue("id")})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type respondRequestBody struct {
	ResponderID string `json:"responder_id"`
	Accept      bool   `json:"accept"`
}

// handleRespondToRequest handles POST /api/v1/requests/{id}/respond
func (s *Server) handleRespondToRequest(w http.ResponseWriter, r *http.Request) {
	var body respondRequestBody
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.deps.RequestLifecycle.Respond(r.Context(), command.RespondToRequestCommand{
		RequestID:   r.PathValue("id"),
		ResponderID: body.ResponderID,
		Accept:      body.Accept,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type cancelRequestBody struct {
	RequesterID string `json:"requester_id"`
}

// handleCancelRequest handles POST /api/v1/requests/{id}/cancel
func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	var body cancelRequestBody
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.deps.RequestLifecycle.Cancel(r.Context(), command.CancelRequestCommand{
		RequestID:   r.PathValue("id"),
		RequesterID: body.RequesterID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetRequest handles GET /api/v1/requests/{id}
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.FollowRequest.Handle(r.Context(), query.FollowRequestQuery{
		RequestID: r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// PHLOCK MEMBERSHIP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetPhlock handles GET /api/v1/users/{id}/phlock
func (s *Server) handleGetPhlock(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.PhlockMembers.Handle(r.Context(), query.PhlockMembersQuery{OwnerID: r.PathValue("id")})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type addMemberBody struct {
	MemberID string `json:"member_id"`
}

// handleAddMember handles PUT /api/v1/users/{id}/phlock/positions/{pos}
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(r.PathValue("pos"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_position", "position must be an integer")
		return
	}

	var body addMemberBody
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.deps.AddMember.Handle(r.Context(), command.AddPhlockMemberCommand{
		OwnerID:  r.PathValue("id"),
		MemberID: body.MemberID,
		Position: pos,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRemoveMember handles DELETE /api/v1/users/{id}/phlock/members/{member}
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.RemoveMember.Handle(r.Context(), command.RemovePhlockMemberCommand{
		OwnerID:  r.PathValue("id"),
		MemberID: r.PathValue("member"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type reorderBody struct {
	OrderedIDs []string `json:"ordered_ids"`
}

// handleReorderPhlock handles PUT /api/v1/users/{id}/phlock
func (s *Server) handleReorderPhlock(w http.ResponseWriter, r *http.Request) {
	var body reorderBody
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.deps.ReorderPhlock.Handle(r.Context(), command.ReorderPhlockCommand{
		OwnerID:    r.PathValue("id"),
		OrderedIDs: body.OrderedIDs,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFERRED CHANGE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type swapBody struct {
	OldMemberID string `json:"old_member_id"`
	NewMemberID string `json:"new_member_id"`
}

// handleSwapMember handles POST /api/v1/users/{id}/phlock/swaps
func (s *Server) handleSwapMember(w http.ResponseWriter, r *http.Request) {
	var body swapBody
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.deps.SwapMember.Swap(r.Context(), command.SwapPhlockMemberCommand{
		OwnerID:     r.PathValue("id"),
		OldMemberID: body.OldMemberID,
		NewMemberID: body.NewMemberID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// 200 when applied now, 202 when waiting for the midnight cutover.
	status := http.StatusOK
	if !res.Applied {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

type scheduleRemovalBody struct {
	MemberID string `json:"member_id"`
}

// handleScheduleRemoval handles POST /api/v1/users/{id}/phlock/removals
func (s *Server) handleScheduleRemoval(w http.ResponseWriter, r *http.Request) {
	var body scheduleRemovalBody
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.deps.SwapMember.ScheduleRemoval(r.Context(), command.ScheduleRemovalCommand{
		OwnerID:  r.PathValue("id"),
		MemberID: body.MemberID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// handleListScheduledRemovals handles GET /api/v1/users/{id}/phlock/removals
func (s *Server) handleListScheduledRemovals(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.ScheduledRemovals.Handle(r.Context(), query.ScheduledRemovalsQuery{OwnerID: r.PathValue("id")})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCancelSwap handles DELETE /api/v1/users/{id}/phlock/swaps/{swap}
func (s *Server) handleCancelSwap(w http.ResponseWriter, r *http.Request) {
	err := s.deps.SwapMember.Cancel(r.Context(), command.CancelSwapCommand{
		OwnerID: r.PathValue("id"),
		SwapID:  r.PathValue("swap"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleReach handles GET /api/v1/users/{id}/reach
func (s *Server) handleReach(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Reach.Handle(r.Context(), query.ReachQuery{UserID: r.PathValue("id")})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleVirality handles POST /api/v1/virality
func (s *Server) handleVirality(w http.ResponseWriter, r *http.Request) {
	var tree metrics.ShareTree
	if !decodeBody(w, r, &tree) {
		return
	}

	res, err := s.deps.Virality.Handle(r.Context(), query.ViralityQuery{Tree: tree})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return false
	}
	return true
}
