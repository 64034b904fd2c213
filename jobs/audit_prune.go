package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sentra-id/sentra/internal/audit"
)

// AuditPruneJob enforces the audit retention window.
type AuditPruneJob struct {
	service   *audit.Service
	retention time.Duration
	logger    *slog.Logger
}

// NewAuditPruneJob constructs the job. The retention argument is the default
// used when a task carries no payload.
func NewAuditPruneJob(service *audit.Service, retention time.Duration, logger *slog.Logger) *AuditPruneJob {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &AuditPruneJob{service: service, retention: retention, logger: logger}
}

// Handle processes TaskAuditPrune tasks.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	retention := j.retention
	if len(t.Payload()) > 0 {
		var payload AuditPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Retention > 0 {
			retention = payload.Retention
		}
	}
	deleted, err := j.service.Prune(ctx, retention)
	if err != nil {
		return err
	}
	if deleted > 0 && j.logger != nil {
		j.logger.Info("audit prune", slog.Int64("deleted", deleted))
	}
	return nil
}
