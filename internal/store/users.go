package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pbaille/workhours/internal/domain"
)

// CreateUser adds a user account
func (s *Store) CreateUser(ctx context.Context, firstName, lastName string) (*domain.User, error) {
	u := &domain.User{
		ID:        uuid.New().String(),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, first_name, last_name) VALUES (?, ?, ?)",
		u.ID, u.FirstName, u.LastName,
	)
	if err != nil {
		return nil, wrapErr("insert user", err)
	}

	return u, nil
}

// ListUsers returns all users
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, first_name, last_name FROM users ORDER BY id",
	)
	if err != nil {
		return nil, wrapErr("list users", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName); err != nil {
			return nil, wrapErr("scan user", err)
		}
		users = append(users, u)
	}

	return users, wrapErr("list users", rows.Err())
}
