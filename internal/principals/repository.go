package principals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/shared"
)

const uniqueViolation = "23505"

// Repository defines persistence operations for account administration.
type Repository interface {
	Create(ctx context.Context, p *auth.Principal) (*auth.Principal, error)
	GetByID(ctx context.Context, id int64) (*auth.Principal, error)
	GetByUsername(ctx context.Context, username string) (*auth.Principal, error)
	List(ctx context.Context) ([]auth.Principal, error)
	Save(ctx context.Context, p *auth.Principal) (*auth.Principal, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// PGRepository implements Repository using PostgreSQL. It shares the
// principals table with the auth credential store; Save delegates to it so
// the optimistic-concurrency contract stays in one place.
type PGRepository struct {
	pool  *pgxpool.Pool
	creds *auth.PGRepository
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, creds: auth.NewRepository(pool)}
}

const principalColumns = `id, username, first_name, last_name, email, password_hash,
       roles, groups, is_active, is_locked, locked_until, failed_attempts,
       created_at, updated_at`

// Create inserts a new principal. A username collision surfaces as
// shared.ErrDuplicate.
func (r *PGRepository) Create(ctx context.Context, p *auth.Principal) (*auth.Principal, error) {
	roles := make([]string, len(p.Roles))
	for i, role := range p.Roles {
		roles[i] = string(role)
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO principals
			(username, first_name, last_name, email, password_hash, roles, groups,
			 is_active, is_locked, failed_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, 0, now(), now())
		RETURNING `+principalColumns,
		p.Username, p.FirstName, p.LastName, p.Email, p.PasswordHash,
		roles, p.Groups, p.Active)
	created, err := scanRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	return created, nil
}

// GetByID fetches a principal by identifier.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+principalColumns+` FROM principals WHERE id = $1`, id)
	p, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetByUsername fetches a principal by username.
func (r *PGRepository) GetByUsername(ctx context.Context, username string) (*auth.Principal, error) {
	return r.creds.FindByUsername(ctx, username)
}

// List returns all principals ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]auth.Principal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+principalColumns+` FROM principals ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var principals []auth.Principal
	for rows.Next() {
		p, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, *p)
	}
	return principals, rows.Err()
}

// Save persists a mutated principal through the credential store.
func (r *PGRepository) Save(ctx context.Context, p *auth.Principal) (*auth.Principal, error) {
	return r.creds.Save(ctx, p)
}

// Delete removes a principal row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM principals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count returns the number of stored principals.
func (r *PGRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM principals`).Scan(&count)
	return count, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRow(row scannable) (*auth.Principal, error) {
	var (
		p           auth.Principal
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
	p.Roles = make([]auth.Role, len(roles))
	for i, name := range roles {
		p.Roles[i] = auth.Role(name)
	}
	if lockedUntil.Valid {
		p.LockedUntil = lockedUntil.Time
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}

var _ Repository = (*PGRepository)(nil)
