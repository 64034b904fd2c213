package principals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentra-id/sentra/internal/audit"
	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/observability"
	"github.com/sentra-id/sentra/internal/shared"
)

// Service handles account lifecycle: registration, guarded updates, soft
// deactivation, deletion and administrative unlock.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	auditor audit.Recorder
	metrics *observability.Metrics
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{logger: logger, repo: repo, auditor: audit.NopRecorder{}}
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

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
	Groups    []string
}

// UpdateInput carries a proposed partial update. Nil fields are untouched.
type UpdateInput struct {
	Username  *string
	FirstName *string
	LastName  *string
	Email     *string
	Groups    *[]string
	Roles     *[]auth.Role
	Active    *bool
}

// Register creates a new principal with the default role. The first-ever
// principal is auto-granted the administrator role so a fresh deployment is
// administrable.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*auth.Principal, error) {
	hash, err := auth.HashSecret(input.Password)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("principals: count: %w", err)
	}
	roles := []auth.Role{auth.RoleUser}
	if count == 0 {
		roles = append(roles, auth.RoleAdministrator)
	}
	p := &auth.Principal{
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
		Roles:        roles,
		Groups:       input.Groups,
		Active:       true,
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("principal registered",
		slog.String("username", created.Username),
		slog.Bool("administrator", created.HasRole(auth.RoleAdministrator)))
	return created, nil
}

// Get fetches a principal by id.
func (s *Service) Get(ctx context.Context, id int64) (*auth.Principal, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUsername fetches a principal by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*auth.Principal, error) {
	return s.repo.GetByUsername(ctx, username)
}

// List returns all principals.
func (s *Service) List(ctx context.Context) ([]auth.Principal, error) {
	return s.repo.List(ctx)
}

// Update applies a proposed mutation after the field guard compares it
// against the stored original under the caller's roles.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, caller auth.RoleSet, actor string) (*auth.Principal, error) {
	original, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	proposed := applyInput(*original, input)

	if err := principalPolicy.CanApply(original, proposed, caller); err != nil {
		s.metrics.ObserveGuardRejection()
		s.auditor.Record(ctx, audit.Entry{
			Actor:      actor,
			Action:     audit.ActionUpdateForbidden,
			ObjectType: "principal",
			ObjectID:   original.Username,
			Detail:     err.Error(),
		})
		return nil, err
	}
	return s.repo.Save(ctx, &proposed)
}

// Deactivate soft-disables the account: the record survives, the roles
// collapse to the inactive sentinel.
func (s *Service) Deactivate(ctx context.Context, id int64) (*auth.Principal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Active = false
	p.Roles = []auth.Role{auth.RoleInactive}
	return s.repo.Save(ctx, p)
}

// Delete removes a principal permanently. Only an already-inactive account
// may be deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Active {
		return fmt.Errorf("principals: %q is still active: %w", p.Username, shared.ErrConflict)
	}
	return s.repo.Delete(ctx, id)
}

// Unlock clears the lockout state ahead of its expiry.
func (s *Service) Unlock(ctx context.Context, id int64, actor string) (*auth.Principal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Locked && p.FailedAttempts == 0 {
		return p, nil
	}
	p.Locked = false
	p.LockedUntil = time.Time{}
	p.FailedAttempts = 0
	saved, err := s.repo.Save(ctx, p)
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, audit.Entry{
		Actor:      actor,
		Action:     audit.ActionAccountUnlocked,
		ObjectType: "principal",
		ObjectID:   saved.Username,
	})
	return saved, nil
}

// ErrSelfTarget guards endpoints that must not operate on the caller.
var ErrSelfTarget = errors.New("principals: cannot target own account")

func applyInput(original auth.Principal, input UpdateInput) auth.Principal {
	proposed := original
	proposed.Roles = append([]auth.Role(nil), original.Roles...)
	proposed.Groups = append([]string(nil), original.Groups...)
	if input.Username != nil {
		proposed.Username = *input.Username
	}
	if input.FirstName != nil {
		proposed.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		proposed.LastName = *input.LastName
	}
	if input.Email != nil {
		proposed.Email = *input.Email
	}
	if input.Groups != nil {
		proposed.Groups = append([]string(nil), (*input.Groups)...)
	}
	if input.Roles != nil {
		proposed.Roles = append([]auth.Role(nil), (*input.Roles)...)
	}
	if input.Active != nil {
		proposed.Active = *input.Active
	}
	return proposed
}
