package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends one entry.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_entries (id, occurred_at, actor, action, object_type, object_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID,
		pgtype.Timestamptz{Time: entry.OccurredAt.UTC(), Valid: true},
		entry.Actor,
		entry.Action,
		entry.ObjectType,
		entry.ObjectID,
		entry.Detail,
	)
	return err
}

// List returns entries matching the filter, newest first.
func (r *PGRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, occurred_at, actor, action, object_type, object_id, detail
		FROM audit_entries
		WHERE ($1 = '' OR actor = $1)
		  AND ($2 = '' OR action = $2)
		  AND occurred_at >= $3
		ORDER BY occurred_at DESC
		LIMIT $4`,
		filter.Actor, filter.Action,
		pgtype.Timestamptz{Time: filter.Since.UTC(), Valid: true},
		filter.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var occurredAt pgtype.Timestamptz
		if err := rows.Scan(&entry.ID, &occurredAt, &entry.Actor, &entry.Action, &entry.ObjectType, &entry.ObjectID, &entry.Detail); err != nil {
			return nil, err
		}
		entry.OccurredAt = occurredAt.Time
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes entries before the cutoff.
func (r *PGRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_entries WHERE occurred_at < $1`,
		pgtype.Timestamptz{Time: cutoff.UTC(), Valid: true})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
