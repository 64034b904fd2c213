package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// LockStore clears expired account locks in bulk.
type LockStore interface {
	ClearExpiredLocks(ctx context.Context, now time.Time) (int64, error)
}

// LockoutSweepJob converges stored lock flags with the time-based check.
// Authentication already treats an expired window as unlocked; the sweep
// keeps the persisted rows and admin listings honest.
type LockoutSweepJob struct {
	store  LockStore
	logger *slog.Logger
}

// NewLockoutSweepJob constructs the job.
func NewLockoutSweepJob(store LockStore, logger *slog.Logger) *LockoutSweepJob {
	return &LockoutSweepJob{store: store, logger: logger}
}

// Handle processes TaskLockoutSweep tasks.
func (j *LockoutSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	cleared, err := j.store.ClearExpiredLocks(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if cleared > 0 && j.logger != nil {
		j.logger.Info("lockout sweep", slog.Int64("cleared", cleared))
	}
	return nil
}
