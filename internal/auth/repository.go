package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentra-id/sentra/internal/shared"
)

// PGRepository implements CredentialStore using PostgreSQL. Save relies on
// an optimistic updated_at check so concurrent failure-counter updates for
// one principal never lose writes.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL credential store.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches a principal by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash,
		       roles, groups, is_active, is_locked, locked_until, failed_attempts,
		       created_at, updated_at
		FROM principals
		WHERE username = $1`, username)
	p, err := scanPrincipal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Save persists lockout state and profile mutations. The WHERE clause on
// updated_at turns concurrent saves into a retriable conflict instead of a
// lost update.
func (r *PGRepository) Save(ctx context.Context, p *Principal) (*Principal, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE principals
		SET first_name = $2, last_name = $3, email = $4, password_hash = $5,
		    roles = $6, groups = $7, is_active = $8, is_locked = $9,
		    locked_until = $10, failed_attempts = $11, updated_at = now()
		WHERE id = $1 AND updated_at = $12
		RETURNING id, username, first_name, last_name, email, password_hash,
		          roles, groups, is_active, is_locked, locked_until, failed_attempts,
		          created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.PasswordHash,
		rolesToStrings(p.Roles), p.Groups, p.Active, p.Locked,
		lockedUntilParam(p.LockedUntil), p.FailedAttempts,
		pgtype.Timestamptz{Time: p.UpdatedAt, Valid: true})
	saved, err := scanPrincipal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrConflict
		}
		return nil, err
	}
	return saved, nil
}

// ClearExpiredLocks unlocks every principal whose lock window has passed.
// Used by the background sweep so the stored flags converge with the
// time-based check.
func (r *PGRepository) ClearExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE principals
		SET is_locked = FALSE, locked_until = NULL, failed_attempts = 0, updated_at = now()
		WHERE is_locked = TRUE AND locked_until <= $1`,
		pgtype.Timestamptz{Time: now.UTC(), Valid: true})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type principalRow interface {
	Scan(dest ...any) error
}

func scanPrincipal(row principalRow) (*Principal, error) {
	var (
		p           Principal
		roles       []string
		lockedUntil pgtype.Timestamptz
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	if err := row.Scan(&p.ID, &p.Username, &p.FirstName, &p.LastName, &p.Email, &p.PasswordHash,
		&roles, &p.Groups, &p.Active, &p.Locked, &lockedUntil, &p.FailedAttempts,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Roles = rolesFromStrings(roles)
	if lockedUntil.Valid {
		p.LockedUntil = lockedUntil.Time
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}

func rolesToStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func rolesFromStrings(names []string) []Role {
	out := make([]Role, len(names))
	for i, n := range names {
		out[i] = Role(n)
	}
	return out
}

func lockedUntilParam(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

var _ CredentialStore = (*PGRepository)(nil)
