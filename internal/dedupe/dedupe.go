// Package dedupe detects work records that were already imported.
package dedupe

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbaille/workhours/internal/domain"
)

// Finder checks the store for a record with the same natural key
type Finder interface {
	RecordExists(ctx context.Context, r *domain.WorkRecord) (bool, error)
}

// Detector decides whether a candidate record is a duplicate
type Detector struct {
	finder Finder
}

// New creates a Detector
func New(finder Finder) *Detector {
	return &Detector{finder: finder}
}

// IsDuplicate reports whether a stored record matches the candidate on
// date, technician, client, task type, description, ticket and hours.
// Text is trimmed but otherwise compared as is: "TK-1" and "tk-1" differ.
func (d *Detector) IsDuplicate(ctx context.Context, candidate *domain.WorkRecord) (bool, error) {
	key := *candidate
	key.Description = strings.TrimSpace(key.Description)
	key.TicketNumber = strings.TrimSpace(key.TicketNumber)

	exists, err := d.finder.RecordExists(ctx, &key)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return exists, nil
}
