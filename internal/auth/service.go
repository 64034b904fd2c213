package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sentra-id/sentra/internal/audit"
	"github.com/sentra-id/sentra/internal/observability"
	"github.com/sentra-id/sentra/internal/shared"
)

// CredentialStore defines the persistence boundary the authenticator
// consumes. Save is used for lockout-state bookkeeping; the store must
// serialize concurrent read-increment-write cycles per principal.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	Save(ctx context.Context, p *Principal) (*Principal, error)
}

// LockoutPolicy controls the anti-brute-force throttle.
type LockoutPolicy struct {
	// MaxFailures is the failure count at which the account locks.
	MaxFailures int
	// Window is how long a lock stays in effect.
	Window time.Duration
	// ResetOnSuccess clears the failure counter after a correct secret.
	// The reference behavior leaves the counter alone, so this defaults to
	// false; it is an explicit policy knob, not an accident.
	ResetOnSuccess bool
}

// DefaultLockoutPolicy returns the reference policy: three strikes, one hour.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxFailures: 3, Window: time.Hour}
}

// Service authenticates credentials and tokens and enforces the lockout
// policy.
type Service struct {
	logger  *slog.Logger
	store   CredentialStore
	codec   *Codec
	policy  LockoutPolicy
	auditor audit.Recorder
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs the authenticator.
func NewService(logger *slog.Logger, store CredentialStore, codec *Codec, policy LockoutPolicy) *Service {
	if policy.MaxFailures <= 0 {
		policy.MaxFailures = 3
	}
	if policy.Window <= 0 {
		policy.Window = time.Hour
	}
	return &Service{
		logger:  logger,
		store:   store,
		codec:   codec,
		policy:  policy,
		auditor: audit.NopRecorder{},
		now:     time.Now,
	}
}

// WithAuditor attaches an audit recorder.
func (s *Service) WithAuditor(rec audit.Recorder) *Service {
	if rec != nil {
		s.auditor = rec
	}
	return s
}

// WithMetrics attaches decision metrics.
func (s *Service) WithMetrics(m *observability.Metrics) *Service {
	s.metrics = m
	return s
}

// AuthenticateCredentials verifies a username/secret pair. Unknown usernames,
// disabled accounts and wrong secrets all return shared.ErrInvalidCredentials
// so the external signal leaks nothing; the log and audit trail keep the
// distinction. An active lock window returns shared.ErrAccountLocked.
func (s *Service) AuthenticateCredentials(ctx context.Context, username, secret string) (*Principal, error) {
	now := s.now().UTC()

	p, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logFailure(ctx, username, "unknown username")
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: lookup principal: %w", err)
	}
	if !p.Active {
		s.logFailure(ctx, username, "account disabled")
		return nil, shared.ErrInvalidCredentials
	}
	if p.LockActive(now) {
		s.logger.Warn("login rejected, lock window active",
			slog.String("username", username),
			slog.Time("locked_until", p.LockedUntil))
		s.auditor.Record(ctx, audit.Entry{Actor: username, Action: audit.ActionLoginFailed, Detail: "lock window active"})
		s.metrics.ObserveLogin("locked")
		return nil, shared.ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(secret)); err != nil {
		if err := s.registerFailure(ctx, p, now); err != nil {
			return nil, err
		}
		s.logFailure(ctx, username, "wrong secret")
		return nil, shared.ErrInvalidCredentials
	}

	if s.policy.ResetOnSuccess && (p.FailedAttempts > 0 || p.Locked) {
		p.FailedAttempts = 0
		p.Locked = false
		p.LockedUntil = time.Time{}
		if p, err = s.store.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("auth: reset failure counter: %w", err)
		}
	}

	s.auditor.Record(ctx, audit.Entry{Actor: username, Action: audit.ActionLoginSucceeded})
	s.metrics.ObserveLogin("success")
	return p, nil
}

// AuthenticateToken verifies a bearer token and rebuilds the principal from
// its claims alone. No store lookup happens on this path.
func (s *Service) AuthenticateToken(ctx context.Context, raw string) (*Principal, error) {
	claims, err := s.Claims(ctx, raw)
	if err != nil {
		return nil, err
	}
	return claims.Principal(), nil
}

// Claims verifies a bearer token and returns its claims.
func (s *Service) Claims(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		s.auditor.Record(ctx, audit.Entry{Action: audit.ActionTokenRejected})
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

// IssueToken signs a token for the principal. When the principal belongs to
// groups the active group must be one of them.
func (s *Service) IssueToken(p *Principal, activeGroup string) (string, error) {
	if activeGroup != "" && len(p.Groups) > 0 && !p.InGroup(activeGroup) {
		return "", fmt.Errorf("auth: principal %q is not a member of group %q: %w", p.Username, activeGroup, shared.ErrAccessDenied)
	}
	return s.codec.Encode(p, activeGroup)
}

func (s *Service) registerFailure(ctx context.Context, p *Principal, now time.Time) error {
	if p.FailedAttempts < s.policy.MaxFailures {
		p.FailedAttempts++
	}
	if p.FailedAttempts >= s.policy.MaxFailures && !p.Locked {
		p.Locked = true
		p.LockedUntil = now.Add(s.policy.Window)
		s.logger.Warn("account locked after repeated failures",
			slog.String("username", p.Username),
			slog.Time("locked_until", p.LockedUntil))
		s.auditor.Record(ctx, audit.Entry{Actor: p.Username, Action: audit.ActionAccountLocked})
	}
	if _, err := s.store.Save(ctx, p); err != nil {
		return fmt.Errorf("auth: persist failure counter: %w", err)
	}
	return nil
}

func (s *Service) logFailure(ctx context.Context, username, reason string) {
	s.logger.Info("login failed",
		slog.String("username", username),
		slog.String("reason", reason))
	s.auditor.Record(ctx, audit.Entry{Actor: username, Action: audit.ActionLoginFailed, Detail: reason})
	s.metrics.ObserveLogin("failure")
}

// HashSecret produces a bcrypt hash for storage.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash secret: %w", err)
	}
	return string(hash), nil
}
