// Package resolver maps free-text labels onto canonical entity ids.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/normalize"
	"go.uber.org/zap"
)

const (
	minContainmentLen = 3
	minPrefixTokenLen = 4
)

// Lookup is the slice of the persistence service the resolver needs
type Lookup interface {
	ListEntities(ctx context.Context, kind domain.Kind) ([]domain.Entity, error)
	FindEntity(ctx context.Context, kind domain.Kind, normName string) (*domain.Entity, error)
	CreateEntity(ctx context.Context, kind domain.Kind, name string) (*domain.Entity, error)
}

// Resolver resolves labels to entity ids, creating entities when asked to
type Resolver struct {
	lookup Lookup
	logger *zap.Logger
}

// New creates a Resolver
func New(lookup Lookup, logger *zap.Logger) *Resolver {
	return &Resolver{lookup: lookup, logger: logger}
}

// ResolveOrCreate returns the id of the entity whose normalized name equals
// the normalized label, creating it when there is none. No fuzzy matching
// is done, so a row can never be attached to a similar-looking entity.
func (r *Resolver) ResolveOrCreate(ctx context.Context, kind domain.Kind, raw string) (string, error) {
	norm := normalize.Normalize(raw)
	if norm == "" {
		return "", fmt.Errorf("resolve %s: %w", kind, domain.ErrEmptyLabel)
	}

	id, found, err := r.exact(ctx, kind, norm)
	if err != nil || found {
		return id, err
	}
	return r.create(ctx, kind, raw, norm)
}

// ResolveFuzzy looks a label up with exact, containment and first-token
// prefix matching, in that order. It never creates entities.
func (r *Resolver) ResolveFuzzy(ctx context.Context, kind domain.Kind, raw string) (string, bool, error) {
	norm := normalize.Normalize(raw)
	if norm == "" {
		return "", false, nil
	}

	id, found, err := r.exact(ctx, kind, norm)
	if err != nil || found {
		return id, found, err
	}

	entities, err := r.lookup.ListEntities(ctx, kind)
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", kind, err)
	}

	if e := matchContainment(norm, entities); e != nil {
		r.logger.Debug("containment match",
			zap.String("kind", string(kind)), zap.String("label", raw), zap.String("entity", e.Name))
		return e.ID, true, nil
	}
	if e := matchPrefix(norm, entities); e != nil {
		r.logger.Debug("prefix match",
			zap.String("kind", string(kind)), zap.String("label", raw), zap.String("entity", e.Name))
		return e.ID, true, nil
	}

	return "", false, nil
}

// ResolveFuzzyOrCreate is ResolveFuzzy falling back to creating the entity
func (r *Resolver) ResolveFuzzyOrCreate(ctx context.Context, kind domain.Kind, raw string) (string, error) {
	id, found, err := r.ResolveFuzzy(ctx, kind, raw)
	if err != nil || found {
		return id, err
	}

	norm := normalize.Normalize(raw)
	if norm == "" {
		return "", fmt.Errorf("resolve %s: %w", kind, domain.ErrEmptyLabel)
	}
	return r.create(ctx, kind, raw, norm)
}

func (r *Resolver) exact(ctx context.Context, kind domain.Kind, norm string) (string, bool, error) {
	e, err := r.lookup.FindEntity(ctx, kind, norm)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", kind, err)
	}
	return e.ID, true, nil
}

// create inserts the entity. Losing a race against a concurrent creator
// surfaces as domain.ErrConflict, in which case the winner is returned.
func (r *Resolver) create(ctx context.Context, kind domain.Kind, raw, norm string) (string, error) {
	name := normalize.TitleCase(raw)
	if normalize.Normalize(name) != norm {
		// Title casing can rewrite letters (ß -> Ss); keep the label resolvable.
		name = normalize.Collapse(raw)
	}

	e, err := r.lookup.CreateEntity(ctx, kind, name)
	if errors.Is(err, domain.ErrConflict) {
		id, found, err := r.exact(ctx, kind, norm)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("resolve %s %q: conflict without existing entity: %w", kind, raw, domain.ErrStorage)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("create %s: %w", kind, err)
	}

	r.logger.Info("created entity",
		zap.String("kind", string(kind)), zap.String("name", e.Name), zap.String("id", e.ID))
	return e.ID, nil
}

// matchContainment picks the entity whose normalized name contains or is
// contained in the label with the longest overlap. Ties go to the lowest id.
func matchContainment(norm string, entities []domain.Entity) *domain.Entity {
	type candidate struct {
		entity  *domain.Entity
		overlap int
	}

	var candidates []candidate
	for i := range entities {
		name := entities[i].NormName
		if utf8.RuneCountInString(name) < minContainmentLen {
			continue
		}
		switch {
		case strings.Contains(norm, name):
			candidates = append(candidates, candidate{&entities[i], utf8.RuneCountInString(name)})
		case strings.Contains(name, norm):
			candidates = append(candidates, candidate{&entities[i], utf8.RuneCountInString(norm)})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].overlap != candidates[j].overlap {
			return candidates[i].overlap > candidates[j].overlap
		}
		return candidates[i].entity.ID < candidates[j].entity.ID
	})
	return candidates[0].entity
}

// matchPrefix matches on the label's first token when it is long enough
func matchPrefix(norm string, entities []domain.Entity) *domain.Entity {
	token, _, _ := strings.Cut(norm, " ")
	if utf8.RuneCountInString(token) < minPrefixTokenLen {
		return nil
	}

	var best *domain.Entity
	for i := range entities {
		if !strings.HasPrefix(entities[i].NormName, token) {
			continue
		}
		if best == nil || entities[i].ID < best.ID {
			best = &entities[i]
		}
	}
	return best
}
