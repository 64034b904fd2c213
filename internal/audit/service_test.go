package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	entries   []Entry
	insertErr error
	lastLimit int
}

func (r *memoryRepo) Insert(_ context.Context, entry Entry) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memoryRepo) List(_ context.Context, filter Filter) ([]Entry, error) {
	r.lastLimit = filter.Limit
	var out []Entry
	for _, e := range r.entries {
		if filter.Actor != "" && e.Actor != filter.Actor {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if !filter.Since.IsZero() && e.OccurredAt.Before(filter.Since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []Entry
	var deleted int64
	for _, e := range r.entries {
		if e.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

func TestRecordFillsDefaults(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(nil, repo)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.Record(context.Background(), Entry{Actor: "jdoe", Action: ActionLoginSucceeded})

	require.Len(t, repo.entries, 1)
	require.NotEmpty(t, repo.entries[0].ID)
	require.Equal(t, now, repo.entries[0].OccurredAt)
}

func TestRecordSwallowsInsertFailure(t *testing.T) {
	repo := &memoryRepo{insertErr: errors.New("db down")}
	svc := NewService(nil, repo)

	// Must not panic or surface the error.
	svc.Record(context.Background(), Entry{Actor: "jdoe", Action: ActionLoginFailed})
	require.Empty(t, repo.entries)
}

func TestListClampsLimit(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(nil, repo)
	ctx := context.Background()

	_, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, 50, repo.lastLimit)

	_, err = svc.List(ctx, Filter{Limit: 9000})
	require.NoError(t, err)
	require.Equal(t, 500, repo.lastLimit)

	_, err = svc.List(ctx, Filter{Limit: 25})
	require.NoError(t, err)
	require.Equal(t, 25, repo.lastLimit)
}

func TestPrune(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(nil, repo)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.Record(context.Background(), Entry{Action: ActionAccessDenied, OccurredAt: now.Add(-48 * time.Hour)})
	svc.Record(context.Background(), Entry{Action: ActionAccessGranted, OccurredAt: now.Add(-time.Hour)})

	deleted, err := svc.Prune(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.Len(t, repo.entries, 1)
	require.Equal(t, ActionAccessGranted, repo.entries[0].Action)
}
