package acl

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentra-id/sentra/internal/platform/db"
	"github.com/sentra-id/sentra/internal/shared"
)

// Node is one stored ACL without its parent chain resolved. The parent is
// referenced by object identity so nodes can be cached independently.
type Node struct {
	ID            int64           `json:"id"`
	Object        ObjectIdentity  `json:"object"`
	Parent        *ObjectIdentity `json:"parent,omitempty"`
	InheritParent bool            `json:"inheritParent"`
	Entries       []Entry         `json:"entries"`
}

// Store is the persistence boundary for ACLs.
type Store interface {
	ReadNode(ctx context.Context, object ObjectIdentity) (*Node, error)
	CreateACL(ctx context.Context, node Node) error
	UpdateACL(ctx context.Context, node Node) error
	InsertEntry(ctx context.Context, object ObjectIdentity, entry Entry) error
	UpdateEntry(ctx context.Context, object ObjectIdentity, entry Entry) error
	DeleteEntry(ctx context.Context, object ObjectIdentity, position int) error
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL ACL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// ReadNode fetches one ACL with entries in ascending position order.
func (s *PGStore) ReadNode(ctx context.Context, object ObjectIdentity) (*Node, error) {
	node := Node{Object: object}
	var parentID *int64
	err := s.pool.QueryRow(ctx, `
		SELECT id, parent_id, inherit_parent
		FROM acl_objects
		WHERE object_type = $1 AND object_id = $2`,
		object.Type, object.ID).Scan(&node.ID, &parentID, &node.InheritParent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	if parentID != nil {
		var parent ObjectIdentity
		err := s.pool.QueryRow(ctx, `
			SELECT object_type, object_id FROM acl_objects WHERE id = $1`,
			*parentID).Scan(&parent.Type, &parent.ID)
		if err != nil {
			return nil, fmt.Errorf("acl: resolve parent: %w", err)
		}
		node.Parent = &parent
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, position, permission, sid, granting
		FROM acl_entries
		WHERE acl_object_id = $1
		ORDER BY position`, node.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry Entry
		var permission int16
		if err := rows.Scan(&entry.ID, &entry.Position, &permission, &entry.SID, &entry.Granting); err != nil {
			return nil, err
		}
		entry.Permission = Permission(permission)
		node.Entries = append(node.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &node, nil
}

// CreateACL inserts the object row and its entries in one transaction.
func (s *PGStore) CreateACL(ctx context.Context, node Node) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		parentID, err := resolveParent(ctx, tx, node.Parent)
		if err != nil {
			return err
		}
		var objectID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO acl_objects (object_type, object_id, parent_id, inherit_parent)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (object_type, object_id) DO NOTHING
			RETURNING id`,
			node.Object.Type, node.Object.ID, parentID, node.InheritParent).Scan(&objectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("acl %s: %w", node.Object, shared.ErrDuplicate)
			}
			return err
		}
		return insertEntries(ctx, tx, objectID, node.Entries)
	})
}

// UpdateACL replaces the parent reference, inherit flag and the whole entry
// list.
func (s *PGStore) UpdateACL(ctx context.Context, node Node) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		parentID, err := resolveParent(ctx, tx, node.Parent)
		if err != nil {
			return err
		}
		var objectID int64
		err = tx.QueryRow(ctx, `
			UPDATE acl_objects
			SET parent_id = $3, inherit_parent = $4
			WHERE object_type = $1 AND object_id = $2
			RETURNING id`,
			node.Object.Type, node.Object.ID, parentID, node.InheritParent).Scan(&objectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM acl_entries WHERE acl_object_id = $1`, objectID); err != nil {
			return err
		}
		return insertEntries(ctx, tx, objectID, node.Entries)
	})
}

// InsertEntry adds one entry. A position collision pushes the colliding
// entry and everything after it down by one.
func (s *PGStore) InsertEntry(ctx context.Context, object ObjectIdentity, entry Entry) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		objectID, err := lookupObject(ctx, tx, object)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE acl_entries SET position = position + 1
			WHERE acl_object_id = $1 AND position >= $2`,
			objectID, entry.Position); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO acl_entries (acl_object_id, position, permission, sid, granting)
			VALUES ($1, $2, $3, $4, $5)`,
			objectID, entry.Position, int16(entry.Permission), string(entry.SID), entry.Granting)
		return err
	})
}

// UpdateEntry rewrites the entry at the given position.
func (s *PGStore) UpdateEntry(ctx context.Context, object ObjectIdentity, entry Entry) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		objectID, err := lookupObject(ctx, tx, object)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE acl_entries
			SET permission = $3, sid = $4, granting = $5
			WHERE acl_object_id = $1 AND position = $2`,
			objectID, entry.Position, int16(entry.Permission), string(entry.SID), entry.Granting)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// DeleteEntry removes the entry at the given position. Surviving entries
// keep their positions; relative order is unaffected.
func (s *PGStore) DeleteEntry(ctx context.Context, object ObjectIdentity, position int) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		objectID, err := lookupObject(ctx, tx, object)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			DELETE FROM acl_entries WHERE acl_object_id = $1 AND position = $2`,
			objectID, position)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func lookupObject(ctx context.Context, tx pgx.Tx, object ObjectIdentity) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT id FROM acl_objects WHERE object_type = $1 AND object_id = $2`,
		object.Type, object.ID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

func resolveParent(ctx context.Context, tx pgx.Tx, parent *ObjectIdentity) (*int64, error) {
	if parent == nil {
		return nil, nil
	}
	id, err := lookupObject(ctx, tx, *parent)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("acl: parent %s: %w", *parent, shared.ErrNotFound)
		}
		return nil, err
	}
	return &id, nil
}

func insertEntries(ctx context.Context, tx pgx.Tx, objectID int64, entries []Entry) error {
	for _, entry := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO acl_entries (acl_object_id, position, permission, sid, granting)
			VALUES ($1, $2, $3, $4, $5)`,
			objectID, entry.Position, int16(entry.Permission), string(entry.SID), entry.Granting); err != nil {
			return err
		}
	}
	return nil
}

var _ Store = (*PGStore)(nil)
