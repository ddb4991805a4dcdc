package query

import (
	"context"
	"errors"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/metrics"
	"github.com/phlock-app/phlock-core/internal/domain/phlock"
)

// ══════════════════════════════════════════════════════════════════════════════
// REACH QUERY
// Current reach counts the distinct owners whose roster includes the
// user right now; historical reach counts distinct owners over the whole
// history log regardless of later removals, so it never decreases.
// ══════════════════════════════════════════════════════════════════════════════

// ReachQuery asks for a user's reach figures.
type ReachQuery struct {
	UserID string
}

// ReachResult holds both reach figures.
type ReachResult struct {
	metrics.Reach
}

// ReachHandler handles reach queries.
type ReachHandler struct {
	edges   graph.EdgeRepository
	history phlock.HistoryRepository
}

// NewReachHandler creates a new ReachHandler.
func NewReachHandler(edges graph.EdgeRepository, history phlock.HistoryRepository) *ReachHandler {
	return &ReachHandler{edges: edges, history: history}
}

// Handle executes the query.
func (h *ReachHandler) Handle(ctx context.Context, q ReachQuery) (*ReachResult, error) {
	if q.UserID == "" {
		return nil, errors.New("reach: user_id is required")
	}

	current, err := h.edges.CountCurrentReach(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	historical, err := h.history.CountDistinctOwners(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	return &ReachResult{Reach: metrics.Reach{Current: current, Historical: historical}}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VIRALITY QUERY
// Scores a share tree on the 0-10 composite. The tree summary arrives
// from the caller; this handler only owns the scoring.
// ══════════════════════════════════════════════════════════════════════════════

// ViralityQuery scores one share tree.
type ViralityQuery struct {
	Tree metrics.ShareTree
}

// ViralityResult holds the composite score and its inputs.
type ViralityResult struct {
	Score       float64 `json:"score"`
	TotalReach  int     `json:"total_reach"`
	MaxDepth    int     `json:"max_depth"`
	SaveRate    float64 `json:"save_rate"`
	ForwardRate float64 `json:"forward_rate"`
}

// ViralityHandler handles virality scoring.
type ViralityHandler struct{}

// NewViralityHandler creates a new ViralityHandler.
func NewViralityHandler() *ViralityHandler {
	return &ViralityHandler{}
}

// Handle executes the query.
func (h *ViralityHandler) Handle(_ context.Context, q ViralityQuery) (*ViralityResult, error) {
	if q.Tree.TotalReach < 0 || q.Tree.MaxDepth < 0 {
		return nil, errors.New("virality: reach and depth cannot be negative")
	}

	return &ViralityResult{
		Score:       q.Tree.ViralityScore(),
		TotalReach:  q.Tree.TotalReach,
		MaxDepth:    q.Tree.MaxDepth,
		SaveRate:    q.Tree.SaveRate(),
		ForwardRate: q.Tree.ForwardRate(),
	}, nil
}
