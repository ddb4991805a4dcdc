// Package jobs contains the background jobs registered with the
// scheduler.
package jobs

import (
	"context"
	"fmt"
)

// DueSwapApplier applies every scheduled swap whose cutover instant has
// arrived. It returns how many rows it applied.
type DueSwapApplier interface {
	ApplyDueSwaps(ctx context.Context) (int, error)
}

// ApplyDueSwapsJob scans the durable swap table and applies due rows.
// It runs on a short interval rather than exactly at midnight: each
// owner's cutover lands at the owner's local midnight, so there is a due
// row somewhere roughly every hour of the day. Missed ticks are caught by
// the next scan because due rows stay pending until applied.
type ApplyDueSwapsJob struct {
	applier DueSwapApplier
}

// NewApplyDueSwapsJob creates the job.
func NewApplyDueSwapsJob(applier DueSwapApplier) *ApplyDueSwapsJob {
	return &ApplyDueSwapsJob{applier: applier}
}

// Name implements scheduler.Job.
func (j *ApplyDueSwapsJob) Name() string { return "apply_due_swaps" }

// Description implements scheduler.Job.
func (j *ApplyDueSwapsJob) Description() string {
	return "Applies scheduled phlock swaps whose midnight cutover has arrived"
}

// Run implements scheduler.Job.
func (j *ApplyDueSwapsJob) Run(ctx context.Context) error {
	if _, err := j.applier.ApplyDueSwaps(ctx); err != nil {
		return fmt.Errorf("applying due swaps: %w", err)
	}
	return nil
}
