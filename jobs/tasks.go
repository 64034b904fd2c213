package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLockoutSweep clears expired account locks.
	TaskLockoutSweep = "auth:lockout_sweep"
	// TaskAuditPrune removes audit entries past the retention window.
	TaskAuditPrune = "audit:prune"
)

// AuditPrunePayload carries the retention window for a prune run.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewLockoutSweepTask constructs the periodic lockout sweep task.
func NewLockoutSweepTask() *asynq.Task {
	return asynq.NewTask(TaskLockoutSweep, nil)
}

// NewAuditPruneTask constructs an audit retention prune task.
func NewAuditPruneTask(payload AuditPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}
