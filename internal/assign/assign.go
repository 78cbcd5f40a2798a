// Package assign links unowned work records to user accounts by name.
package assign

import (
	"context"
	"fmt"

	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/normalize"
	"go.uber.org/zap"
)

// Store is what the assigner reads and updates
type Store interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListUnownedRecords(ctx context.Context) ([]domain.UnownedRecord, error)
	SetRecordOwner(ctx context.Context, recordID, userID string) (bool, error)
}

// Assigner sets record owners from technician names
type Assigner struct {
	store  Store
	logger *zap.Logger
}

// New creates an Assigner
func New(s Store, logger *zap.Logger) *Assigner {
	return &Assigner{store: s, logger: logger}
}

// AssignUnownedRecords gives every unowned record the user whose full name
// normalizes to its technician's name. Records without a matching user, or
// whose name matches more than one user, stay unowned. Returns how many
// records were assigned.
func (a *Assigner) AssignUnownedRecords(ctx context.Context) (int, error) {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("assign records: %w", err)
	}
	byName := a.indexUsers(users)

	records, err := a.store.ListUnownedRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("assign records: %w", err)
	}

	assigned := 0
	unmatched := make(map[string]int)
	for _, r := range records {
		userID, ok := byName[normalize.Normalize(r.TechnicianName)]
		if !ok || userID == "" {
			unmatched[r.TechnicianName]++
			continue
		}

		updated, err := a.store.SetRecordOwner(ctx, r.RecordID, userID)
		if err != nil {
			return assigned, fmt.Errorf("assign record %s: %w", r.RecordID, err)
		}
		if updated {
			assigned++
		}
	}

	a.logger.Info("assigned unowned records",
		zap.Int("unowned", len(records)),
		zap.Int("assigned", assigned),
		zap.Int("unmatched_technicians", len(unmatched)),
	)
	return assigned, nil
}

// indexUsers maps normalized full names to user ids. Names shared by more
// than one user map to "" so they are never used.
func (a *Assigner) indexUsers(users []domain.User) map[string]string {
	byName := make(map[string]string, len(users))
	for _, u := range users {
		key := normalize.Normalize(normalize.FullName(u.FirstName, u.LastName))
		if key == "" {
			continue
		}
		if _, dup := byName[key]; dup {
			a.logger.Warn("ambiguous user name, skipping", zap.String("name", key))
			byName[key] = ""
			continue
		}
		byName[key] = u.ID
	}
	return byName
}
