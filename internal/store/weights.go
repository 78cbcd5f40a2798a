package store

import (
	"context"
	"fmt"

	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/normalize"
)

// GetWeight returns the weight assigned to the named entity, 0 when unset
func (s *Store) GetWeight(ctx context.Context, kind domain.Kind, name string) (int, error) {
	e, err := s.FindEntity(ctx, kind, normalize.Normalize(name))
	if err != nil {
		return 0, err
	}

	var w int
	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE((SELECT weight FROM weights WHERE entity_id = ?), 0)",
		e.ID,
	).Scan(&w)
	if err != nil {
		return 0, wrapErr("get weight", err)
	}
	return w, nil
}

// SetWeight assigns a weight to the named task type, client or group
func (s *Store) SetWeight(ctx context.Context, kind domain.Kind, name string, weight int) error {
	if !kind.Weighted() {
		return fmt.Errorf("set weight: %s has no weight table: %w", kind, domain.ErrInvalidKind)
	}
	if weight < 0 || weight > domain.MaxWeight {
		return fmt.Errorf("set weight %d: %w", weight, domain.ErrInvalidWeight)
	}

	e, err := s.FindEntity(ctx, kind, normalize.Normalize(name))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weights (entity_id, weight) VALUES (?, ?)
		ON CONFLICT (entity_id) DO UPDATE SET weight = excluded.weight
	`, e.ID, weight)
	return wrapErr("set weight", err)
}

// ListWeights returns the assigned weights of a kind ordered by name
func (s *Store) ListWeights(ctx context.Context, kind domain.Kind) ([]domain.Weight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.name, w.weight
		FROM weights w
		JOIN entities e ON e.id = w.entity_id
		WHERE e.kind = ?
		ORDER BY e.norm_name
	`, kind)
	if err != nil {
		return nil, wrapErr("list weights", err)
	}
	defer rows.Close()

	var weights []domain.Weight
	for rows.Next() {
		w := domain.Weight{Kind: kind}
		if err := rows.Scan(&w.EntityName, &w.Weight); err != nil {
			return nil, wrapErr("scan weight", err)
		}
		weights = append(weights, w)
	}

	return weights, wrapErr("list weights", rows.Err())
}
