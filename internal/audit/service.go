package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository provides persistence for audit entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service records and queries security audit entries.
type Service struct {
	logger *slog.Logger
	repo   Repository
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{logger: logger, repo: repo, now: time.Now}
}

// Record persists the entry. Failures are logged and swallowed: an audit
// write must never change the outcome of the decision it describes.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now().UTC()
	}
	if err := s.repo.Insert(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("audit insert", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

// List returns entries matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.repo.List(ctx, filter)
}

// Prune removes entries older than the retention window and returns the
// number deleted.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)
	return s.repo.DeleteOlderThan(ctx, cutoff)
}

var _ Recorder = (*Service)(nil)
