package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/normalize"
)

const entityColumns = "id, kind, name, norm_name, group_id, created_at"

func scanEntity(row interface{ Scan(...any) error }) (*domain.Entity, error) {
	var e domain.Entity
	var groupID sql.NullString
	if err := row.Scan(&e.ID, &e.Kind, &e.Name, &e.NormName, &groupID, &e.Created); err != nil {
		return nil, err
	}
	if groupID.Valid {
		e.GroupID = &groupID.String
	}
	return &e, nil
}

// ListEntities returns every entity of a kind ordered by id
func (s *Store) ListEntities(ctx context.Context, kind domain.Kind) ([]domain.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE kind = ? ORDER BY id",
		kind,
	)
	if err != nil {
		return nil, wrapErr("list entities", err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, wrapErr("scan entity", err)
		}
		entities = append(entities, *e)
	}

	return entities, wrapErr("list entities", rows.Err())
}

// FindEntity looks up an entity by its normalized name
func (s *Store) FindEntity(ctx context.Context, kind domain.Kind, normName string) (*domain.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE kind = ? AND norm_name = ?",
		kind, normName,
	)
	e, err := scanEntity(row)
	if err != nil {
		return nil, wrapErr("find entity", err)
	}
	return e, nil
}

// GetEntity retrieves an entity by ID
func (s *Store) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = ?",
		id,
	)
	e, err := scanEntity(row)
	if err != nil {
		return nil, wrapErr("get entity", err)
	}
	return e, nil
}

// CreateEntity inserts a new entity. A name that normalizes onto an
// existing entity of the same kind fails with domain.ErrConflict.
func (s *Store) CreateEntity(ctx context.Context, kind domain.Kind, name string) (*domain.Entity, error) {
	e := &domain.Entity{
		ID:       uuid.New().String(),
		Kind:     kind,
		Name:     name,
		NormName: normalize.Normalize(name),
		Created:  time.Now(),
	}
	if e.NormName == "" {
		return nil, fmt.Errorf("create entity: %w", domain.ErrEmptyLabel)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO entities (id, kind, name, norm_name, created_at) VALUES (?, ?, ?, ?, ?)",
		e.ID, e.Kind, e.Name, e.NormName, e.Created,
	)
	if err != nil {
		return nil, wrapErr("insert entity", err)
	}

	return e, nil
}

// RenameEntity changes the display name of an entity while keeping its id
func (s *Store) RenameEntity(ctx context.Context, id, name string) (*domain.Entity, error) {
	norm := normalize.Normalize(name)
	if norm == "" {
		return nil, fmt.Errorf("rename entity: %w", domain.ErrEmptyLabel)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE entities SET name = ?, norm_name = ? WHERE id = ?",
		name, norm, id,
	)
	if err != nil {
		return nil, wrapErr("rename entity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("rename entity %s: %w", id, domain.ErrNotFound)
	}

	return s.GetEntity(ctx, id)
}

// SetClientGroup attaches a client to a group, or detaches it when groupID is nil
func (s *Store) SetClientGroup(ctx context.Context, clientID string, groupID *string) error {
	if groupID != nil {
		g, err := s.GetEntity(ctx, *groupID)
		if err != nil {
			return err
		}
		if g.Kind != domain.KindGroup {
			return fmt.Errorf("set client group: %s is a %s: %w", g.ID, g.Kind, domain.ErrInvalidKind)
		}
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE entities SET group_id = ? WHERE id = ? AND kind = ?",
		groupID, clientID, domain.KindClient,
	)
	if err != nil {
		return wrapErr("set client group", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set client group %s: %w", clientID, domain.ErrNotFound)
	}
	return nil
}
