package principals

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/shared"
)

type memoryRepo struct {
	byID   map[int64]*auth.Principal
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[int64]*auth.Principal), nextID: 1}
}

func (r *memoryRepo) Create(_ context.Context, p *auth.Principal) (*auth.Principal, error) {
	for _, existing := range r.byID {
		if existing.Username == p.Username {
			return nil, shared.ErrDuplicate
		}
	}
	clone := *p
	clone.ID = r.nextID
	r.nextID++
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id int64) (*auth.Principal, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *p
	clone.Roles = append([]auth.Role(nil), p.Roles...)
	clone.Groups = append([]string(nil), p.Groups...)
	return &clone, nil
}

func (r *memoryRepo) GetByUsername(_ context.Context, username string) (*auth.Principal, error) {
	for id, p := range r.byID {
		if p.Username == username {
			return r.GetByID(context.Background(), id)
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) List(_ context.Context) ([]auth.Principal, error) {
	out := make([]auth.Principal, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memoryRepo) Save(_ context.Context, p *auth.Principal) (*auth.Principal, error) {
	if _, ok := r.byID[p.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	clone := *p
	r.byID[p.ID] = &clone
	out := clone
	return &out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.byID[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memoryRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.byID)), nil
}

func testService(repo Repository) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)
}

func register(t *testing.T, svc *Service, username string) *auth.Principal {
	t.Helper()
	p, err := svc.Register(context.Background(), RegisterInput{
		Username: username,
		Password: "s3cret",
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return p
}

func TestRegisterFirstPrincipalIsAdministrator(t *testing.T) {
	svc := testService(newMemoryRepo())

	first := register(t, svc, "root")
	require.True(t, first.HasRole(auth.RoleAdministrator))
	require.True(t, first.HasRole(auth.RoleUser))
	require.True(t, first.Active)

	second := register(t, svc, "jdoe")
	require.False(t, second.HasRole(auth.RoleAdministrator))
	require.True(t, second.HasRole(auth.RoleUser))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := testService(newMemoryRepo())
	register(t, svc, "jdoe")

	_, err := svc.Register(context.Background(), RegisterInput{Username: "jdoe", Password: "other"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateUnprotectedFields(t *testing.T) {
	svc := testService(newMemoryRepo())
	p := register(t, svc, "jdoe")

	email := "new@example.com"
	first := "Jane"
	updated, err := svc.Update(context.Background(), p.ID,
		UpdateInput{Email: &email, FirstName: &first},
		auth.NewRoleSet(auth.RoleUser), "jdoe")
	require.NoError(t, err)
	require.Equal(t, "new@example.com", updated.Email)
	require.Equal(t, "Jane", updated.FirstName)
}

func TestUpdateUsernameAlwaysForbidden(t *testing.T) {
	svc := testService(newMemoryRepo())
	p := register(t, svc, "jdoe")

	username := "renamed"
	_, err := svc.Update(context.Background(), p.ID,
		UpdateInput{Username: &username},
		auth.NewRoleSet(auth.RoleUser, auth.RoleAdministrator), "root")
	require.ErrorIs(t, err, shared.ErrUpdateForbidden)
}

func TestUpdateRolesRequiresAdministrator(t *testing.T) {
	svc := testService(newMemoryRepo())
	register(t, svc, "root")
	target := register(t, svc, "jdoe")
	ctx := context.Background()

	// A user attempting to grant themselves the administrator role.
	roles := []auth.Role{auth.RoleUser, auth.RoleAdministrator}
	_, err := svc.Update(ctx, target.ID, UpdateInput{Roles: &roles}, auth.NewRoleSet(auth.RoleUser), "jdoe")
	require.ErrorIs(t, err, shared.ErrUpdateForbidden)

	updated, err := svc.Update(ctx, target.ID, UpdateInput{Roles: &roles}, auth.NewRoleSet(auth.RoleAdministrator), "root")
	require.NoError(t, err)
	require.True(t, updated.HasRole(auth.RoleAdministrator))
}

func TestUpdateSameRolesNotAViolation(t *testing.T) {
	svc := testService(newMemoryRepo())
	p := register(t, svc, "jdoe")

	// Sending back the current role list is a no-op, not a change.
	roles := append([]auth.Role(nil), p.Roles...)
	_, err := svc.Update(context.Background(), p.ID, UpdateInput{Roles: &roles}, auth.NewRoleSet(auth.RoleUser), "jdoe")
	require.NoError(t, err)
}

func TestDeactivate(t *testing.T) {
	svc := testService(newMemoryRepo())
	p := register(t, svc, "jdoe")

	deactivated, err := svc.Deactivate(context.Background(), p.ID)
	require.NoError(t, err)
	require.False(t, deactivated.Active)
	require.Equal(t, []auth.Role{auth.RoleInactive}, deactivated.Roles)
}

func TestDeleteRequiresInactive(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	p := register(t, svc, "jdoe")
	ctx := context.Background()

	err := svc.Delete(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Deactivate(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, p.ID))

	_, err = svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUnlock(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	p := register(t, svc, "jdoe")

	stored := repo.byID[p.ID]
	stored.Locked = true
	stored.FailedAttempts = 3

	unlocked, err := svc.Unlock(context.Background(), p.ID, "root")
	require.NoError(t, err)
	require.False(t, unlocked.Locked)
	require.Zero(t, unlocked.FailedAttempts)
	require.True(t, unlocked.LockedUntil.IsZero())
}

func TestUnlockIdempotent(t *testing.T) {
	svc := testService(newMemoryRepo())
	p := register(t, svc, "jdoe")

	unlocked, err := svc.Unlock(context.Background(), p.ID, "root")
	require.NoError(t, err)
	require.False(t, unlocked.Locked)
}
