package audit

import (
	"context"
	"time"
)

// Security audit actions recorded by the decision core.
const (
	ActionLoginSucceeded  = "login.succeeded"
	ActionLoginFailed     = "login.failed"
	ActionAccountLocked   = "account.locked"
	ActionAccountUnlocked = "account.unlocked"
	ActionTokenRejected   = "token.rejected"
	ActionAccessGranted   = "access.granted"
	ActionAccessDenied    = "access.denied"
	ActionUpdateForbidden = "update.forbidden"
)

// Entry is one append-only record of a security decision.
type Entry struct {
	ID         string
	OccurredAt time.Time
	Actor      string
	Action     string
	ObjectType string
	ObjectID   string
	Detail     string
}

// Filter narrows audit queries.
type Filter struct {
	Actor  string
	Action string
	Since  time.Time
	Limit  int
}

// Recorder accepts audit entries. Recording must never fail the decision
// that produced the entry.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// NopRecorder discards all entries.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Entry) {}

var _ Recorder = NopRecorder{}
