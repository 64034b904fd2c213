package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubLockStore struct {
	cleared int64
	err     error
	lastNow time.Time
}

func (s *stubLockStore) ClearExpiredLocks(_ context.Context, now time.Time) (int64, error) {
	s.lastNow = now
	return s.cleared, s.err
}

func TestLockoutSweepHandle(t *testing.T) {
	store := &stubLockStore{cleared: 2}
	job := NewLockoutSweepJob(store, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskLockoutSweep, nil))
	require.NoError(t, err)
	require.False(t, store.lastNow.IsZero())
}

func TestLockoutSweepPropagatesError(t *testing.T) {
	store := &stubLockStore{err: errors.New("db down")}
	job := NewLockoutSweepJob(store, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskLockoutSweep, nil))
	require.Error(t, err)
}
