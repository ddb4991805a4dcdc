package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBERSHIP REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PhlockRepository is the PostgreSQL implementation of phlock.Repository.
// Membership lives on follow_edges rows; this repository only touches the
// three phlock_* columns.
type PhlockRepository struct {
	conn *Connection
}

// NewPhlockRepository creates a PhlockRepository.
func NewPhlockRepository(conn *Connection) *PhlockRepository {
	return &PhlockRepository{conn: conn}
}

// LockOwner takes FOR UPDATE locks on all of the owner's follow edges,
// serializing membership edits for one owner until the surrounding
// transaction commits. Outside a transaction the locks would be released
// immediately, so this is a no-op there.
func (r *PhlockRepository) LockOwner(ctx context.Context, ownerID string) error {
	if !InTx(ctx) {
		return nil
	}
	query := `
		SELECT id FROM follow_edges
		WHERE follower_id = $1
		FOR UPDATE
	`
	rows, err := r.conn.querierFrom(ctx).Query(ctx, query, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: locking owner edges: %w", err)
	}
	rows.Close()
	return rows.Err()
}

// ListMembers returns the owner's roster ascending by position.
func (r *PhlockRepository) ListMembers(ctx context.Context, ownerID string) ([]phlock.Member, error) {
	query := `
		SELECT following_id, phlock_position, phlock_added_at
		FROM follow_edges
		WHERE follower_id = $1 AND in_phlock
		ORDER BY phlock_position ASC
	`
	rows, err := r.conn.querierFrom(ctx).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing phlock members: %w", err)
	}
	defer rows.Close()

	var members []phlock.Member
	for rows.Next() {
		var m phlock.Member
		if err := rows.Scan(&m.UserID, &m.Position, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning phlock member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating phlock members: %w", err)
	}
	return members, nil
}

// SetMembership writes the membership columns on owner->member. The edge
// must exist; membership never outlives its follow.
func (r *PhlockRepository) SetMembership(ctx context.Context, ownerID, memberID string, position int, addedAt time.Time) error {
	query := `
		UPDATE follow_edges
		SET in_phlock = TRUE, phlock_position = $3, phlock_added_at = $4
		WHERE follower_id = $1 AND following_id = $2
	`
	tag, err := r.conn.querierFrom(ctx).Exec(ctx, query, ownerID, memberID, position, addedAt)
	if err != nil {
		return fmt.Errorf("postgres: setting phlock membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrMustFollowFirst
	}
	return nil
}

// ClearMembership resets the membership columns on owner->member.
func (r *PhlockRepository) ClearMembership(ctx context.Context, ownerID, memberID string) error {
	query := `
		UPDATE follow_edges
		SET in_phlock = FALSE, phlock_position = NULL, phlock_added_at = NULL
		WHERE follower_id = $1 AND following_id = $2
	`
	if _, err := r.conn.querierFrom(ctx).Exec(ctx, query, ownerID, memberID); err != nil {
		return fmt.Errorf("postgres: clearing phlock membership: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// HistoryRepository is the PostgreSQL implementation of
// phlock.HistoryRepository.
type HistoryRepository struct {
	conn *Connection
}

// NewHistoryRepository creates a HistoryRepository.
func NewHistoryRepository(conn *Connection) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

// Open appends a membership span with a null removed_at.
func (r *HistoryRepository) Open(ctx context.Context, ownerID, memberID string, addedAt time.Time) error {
	query := `
		INSERT INTO phlock_history (id, owner_id, member_id, added_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.conn.querierFrom(ctx).Exec(ctx, query, uuid.New().String(), ownerID, memberID, addedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			// Span already open for this pair; nothing to record.
			return nil
		}
		return fmt.Errorf("postgres: opening history span: %w", err)
	}
	return nil
}

// Close sets removed_at on the still-open span for the pair. Closing an
// already-closed span affects zero rows and succeeds, which keeps the
// cutover retry path idempotent.
func (r *HistoryRepository) Close(ctx context.Context, ownerID, memberID string, removedAt time.Time) error {
	query := `
		UPDATE phlock_history
		SET removed_at = $3
		WHERE owner_id = $1 AND member_id = $2 AND removed_at IS NULL
	`
	if _, err := r.conn.querierFrom(ctx).Exec(ctx, query, ownerID, memberID, removedAt); err != nil {
		return fmt.Errorf("postgres: closing history span: %w", err)
	}
	return nil
}

// CountDistinctOwners counts distinct owners that ever held memberID,
// open spans included.
func (r *HistoryRepository) CountDistinctOwners(ctx context.Context, memberID string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT owner_id)
		FROM phlock_history
		WHERE member_id = $1
	`
	var count int
	err := r.conn.querierFrom(ctx).QueryRow(ctx, query, memberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: counting historical reach: %w", err)
	}
	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SWAP REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SwapRepository is the PostgreSQL implementation of
// phlock.SwapRepository.
type SwapRepository struct {
	conn *Connection
}

// NewSwapRepository creates a SwapRepository.
func NewSwapRepository(conn *Connection) *SwapRepository {
	return &SwapRepository{conn: conn}
}

const swapColumns = `id, owner_id, old_member_id, new_member_id, status, scheduled_for, created_at, resolved_at`

func scanSwap(row pgx.Row) (*phlock.ScheduledSwap, error) {
	var s phlock.ScheduledSwap
	var status string
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.OldMemberID, &s.NewMemberID,
		&status, &s.ScheduledFor, &s.CreatedAt, &s.AppliedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = phlock.SwapStatus(status)
	return &s, nil
}

// Create inserts a pending swap.
func (r *SwapRepository) Create(ctx context.Context, swap *phlock.ScheduledSwap) error {
	query := `
		INSERT INTO scheduled_swaps (` + swapColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.conn.querierFrom(ctx).Exec(ctx, query,
		swap.ID, swap.OwnerID, swap.OldMemberID, swap.NewMemberID,
		string(swap.Status), swap.ScheduledFor, swap.CreatedAt, swap.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: creating scheduled swap: %w", err)
	}
	return nil
}

// GetByID returns a swap by ID.
func (r *SwapRepository) GetByID(ctx context.Context, id string) (*phlock.ScheduledSwap, error) {
	query := `SELECT ` + swapColumns + ` FROM scheduled_swaps WHERE id = $1`
	swap, err := scanSwap(r.conn.querierFrom(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSwapNotFound
		}
		return nil, fmt.Errorf("postgres: getting scheduled swap: %w", err)
	}
	return swap, nil
}

// Update persists a status transition, matching on the previous pending
// status so the applier and a concurrent cancel cannot both win.
func (r *SwapRepository) Update(ctx context.Context, swap *phlock.ScheduledSwap) error {
	query := `
		UPDATE scheduled_swaps
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.conn.querierFrom(ctx).Exec(ctx, query, swap.ID, string(swap.Status), swap.AppliedAt)
	if err != nil {
		return fmt.Errorf("postgres: updating scheduled swap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSwapNotPending
	}
	return nil
}

// ListDue returns pending swaps whose cutover instant has arrived, oldest
// first.
func (r *SwapRepository) ListDue(ctx context.Context, now time.Time) ([]*phlock.ScheduledSwap, error) {
	query := `
		SELECT ` + swapColumns + `
		FROM scheduled_swaps
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
	`
	return r.listSwaps(ctx, query, now)
}

// ListPendingRemovals returns the owner's pending pure-removal rows.
func (r *SwapRepository) ListPendingRemovals(ctx context.Context, ownerID string) ([]*phlock.ScheduledSwap, error) {
	query := `
		SELECT ` + swapColumns + `
		FROM scheduled_swaps
		WHERE owner_id = $1 AND status = 'pending' AND new_member_id IS NULL
		ORDER BY created_at ASC
	`
	return r.listSwaps(ctx, query, ownerID)
}

func (r *SwapRepository) listSwaps(ctx context.Context, query string, args ...interface{}) ([]*phlock.ScheduledSwap, error) {
	rows, err := r.conn.querierFrom(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing scheduled swaps: %w", err)
	}
	defer rows.Close()

	var swaps []*phlock.ScheduledSwap
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning scheduled swap: %w", err)
		}
		swaps = append(swaps, swap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating scheduled swaps: %w", err)
	}
	return swaps, nil
}
