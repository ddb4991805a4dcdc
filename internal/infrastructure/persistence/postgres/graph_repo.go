package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// EdgeRepository is the PostgreSQL implementation of graph.EdgeRepository.
type EdgeRepository struct {
	conn *Connection
}

// NewEdgeRepository creates an EdgeRepository.
func NewEdgeRepository(conn *Connection) *EdgeRepository {
	return &EdgeRepository{conn: conn}
}

const edgeColumns = `id, follower_id, following_id, created_at, in_phlock, phlock_position, phlock_added_at`

func scanEdge(row pgx.Row) (*graph.FollowEdge, error) {
	var e graph.FollowEdge
	err := row.Scan(
		&e.ID, &e.FollowerID, &e.FollowingID, &e.CreatedAt,
		&e.InPhlock, &e.PhlockPos, &e.PhlockAdded,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new follow edge.
func (r *EdgeRepository) Create(ctx context.Context, edge *graph.FollowEdge) error {
	query := `
		INSERT INTO follow_edges (` + edgeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.conn.querierFrom(ctx).Exec(ctx, query,
		edge.ID, edge.FollowerID, edge.FollowingID, edge.CreatedAt,
		edge.InPhlock, edge.PhlockPos, edge.PhlockAdded,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyFollowing
		}
		return fmt.Errorf("postgres: creating follow edge: %w", err)
	}
	return nil
}

// GetByPair returns the edge follower->following.
func (r *EdgeRepository) GetByPair(ctx context.Context, followerID, followingID string) (*graph.FollowEdge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM follow_edges
		WHERE follower_id = $1 AND following_id = $2
	`
	edge, err := scanEdge(r.conn.querierFrom(ctx).QueryRow(ctx, query, followerID, followingID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEdgeNotFound
		}
		return nil, fmt.Errorf("postgres: getting follow edge: %w", err)
	}
	return edge, nil
}

// Delete removes the edge and returns the deleted row, phlock sub-state
// included, so the caller can finish the implicit membership removal.
func (r *EdgeRepository) Delete(ctx context.Context, followerID, followingID string) (*graph.FollowEdge, error) {
	query := `
		DELETE FROM follow_edges
		WHERE follower_id = $1 AND following_id = $2
		RETURNING ` + edgeColumns + `
	`
	edge, err := scanEdge(r.conn.querierFrom(ctx).QueryRow(ctx, query, followerID, followingID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEdgeNotFound
		}
		return nil, fmt.Errorf("postgres: deleting follow edge: %w", err)
	}
	return edge, nil
}

// Exists reports whether follower->following exists.
func (r *EdgeRepository) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM follow_edges WHERE follower_id = $1 AND following_id = $2
		)
	`
	var exists bool
	err := r.conn.querierFrom(ctx).QueryRow(ctx, query, followerID, followingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: checking follow edge: %w", err)
	}
	return exists, nil
}

// ListFollowing returns edges where ownerID is the follower, newest first.
func (r *EdgeRepository) ListFollowing(ctx context.Context, ownerID string) ([]*graph.FollowEdge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM follow_edges
		WHERE follower_id = $1
		ORDER BY created_at DESC
	`
	return r.listEdges(ctx, query, ownerID)
}

// ListFollowers returns edges where ownerID is being followed, newest first.
func (r *EdgeRepository) ListFollowers(ctx context.Context, ownerID string) ([]*graph.FollowEdge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM follow_edges
		WHERE following_id = $1
		ORDER BY created_at DESC
	`
	return r.listEdges(ctx, query, ownerID)
}

func (r *EdgeRepository) listEdges(ctx context.Context, query string, args ...interface{}) ([]*graph.FollowEdge, error) {
	rows, err := r.conn.querierFrom(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing follow edges: %w", err)
	}
	defer rows.Close()

	var edges []*graph.FollowEdge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning follow edge: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating follow edges: %w", err)
	}
	return edges, nil
}

// CountCurrentReach counts distinct users whose phlock currently includes
// memberID.
func (r *EdgeRepository) CountCurrentReach(ctx context.Context, memberID string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT follower_id)
		FROM follow_edges
		WHERE following_id = $1 AND in_phlock
	`
	var count int
	err := r.conn.querierFrom(ctx).QueryRow(ctx, query, memberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: counting current reach: %w", err)
	}
	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RequestRepository is the PostgreSQL implementation of
// graph.RequestRepository.
type RequestRepository struct {
	conn *Connection
}

// NewRequestRepository creates a RequestRepository.
func NewRequestRepository(conn *Connection) *RequestRepository {
	return &RequestRepository{conn: conn}
}

const requestColumns = `id, requester_id, target_id, status, created_at, resolved_at`

func scanRequest(row pgx.Row) (*graph.FollowRequest, error) {
	var req graph.FollowRequest
	var status string
	err := row.Scan(&req.ID, &req.RequesterID, &req.TargetID, &status, &req.CreatedAt, &req.RespondedAt)
	if err != nil {
		return nil, err
	}
	req.Status = graph.RequestStatus(status)
	return &req, nil
}

// Create inserts a pending request. The partial unique index on pending
// pairs turns a duplicate into shared.ErrRequestAlreadyExists.
func (r *RequestRepository) Create(ctx context.Context, req *graph.FollowRequest) error {
	query := `
		INSERT INTO follow_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.conn.querierFrom(ctx).Exec(ctx, query,
		req.ID, req.RequesterID, req.TargetID, string(req.Status), req.CreatedAt, req.RespondedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrRequestAlreadyExists
		}
		return fmt.Errorf("postgres: creating follow request: %w", err)
	}
	return nil
}

// GetByID returns a request by ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*graph.FollowRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM follow_requests WHERE id = $1`
	req, err := scanRequest(r.conn.querierFrom(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRequestNotFound
		}
		return nil, fmt.Errorf("postgres: getting follow request: %w", err)
	}
	return req, nil
}

// GetPendingByPair returns the pending request requester->target.
func (r *RequestRepository) GetPendingByPair(ctx context.Context, requesterID, targetID string) (*graph.FollowRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM follow_requests
		WHERE requester_id = $1 AND target_id = $2 AND status = 'pending'
	`
	req, err := scanRequest(r.conn.querierFrom(ctx).QueryRow(ctx, query, requesterID, targetID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRequestNotFound
		}
		return nil, fmt.Errorf("postgres: getting pending follow request: %w", err)
	}
	return req, nil
}

// Update persists a status transition, matching on the previous pending
// status so exactly one of two concurrent responders wins.
func (r *RequestRepository) Update(ctx context.Context, req *graph.FollowRequest) error {
	query := `
		UPDATE follow_requests
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.conn.querierFrom(ctx).Exec(ctx, query, req.ID, string(req.Status), req.RespondedAt)
	if err != nil {
		return fmt.Errorf("postgres: updating follow request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRequestNotPending
	}
	return nil
}

// ListPendingForTarget returns pending requests aimed at targetID, oldest
// first.
func (r *RequestRepository) ListPendingForTarget(ctx context.Context, targetID string) ([]*graph.FollowRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM follow_requests
		WHERE target_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
	`
	rows, err := r.conn.querierFrom(ctx).Query(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing pending follow requests: %w", err)
	}
	defer rows.Close()

	var reqs []*graph.FollowRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning follow request: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating follow requests: %w", err)
	}
	return reqs, nil
}
