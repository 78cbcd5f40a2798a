package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pbaille/workhours/internal/domain"
)

// ContactExists reports whether the client already has a contact with this normalized name
func (s *Store) ContactExists(ctx context.Context, clientID, normName string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contacts WHERE client_id = ? AND norm_name = ?",
		clientID, normName,
	).Scan(&n)
	if err != nil {
		return false, wrapErr("find contact", err)
	}
	return n > 0, nil
}

// InsertContact stores a new contact
func (s *Store) InsertContact(ctx context.Context, c *domain.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, client_id, first_name, last_name, norm_name,
			role_title, work_email, work_phone, mobile_phone, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.ClientID, c.FirstName, c.LastName, c.NormName,
		c.RoleTitle, c.WorkEmail, c.WorkPhone, c.MobilePhone, c.Notes,
	)
	return wrapErr("insert contact", err)
}

// ListContacts returns the contacts of a client
func (s *Store) ListContacts(ctx context.Context, clientID string) ([]domain.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, first_name, last_name, norm_name,
			role_title, work_email, work_phone, mobile_phone, notes
		FROM contacts WHERE client_id = ? ORDER BY norm_name
	`, clientID)
	if err != nil {
		return nil, wrapErr("list contacts", err)
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		var c domain.Contact
		err := rows.Scan(&c.ID, &c.ClientID, &c.FirstName, &c.LastName, &c.NormName,
			&c.RoleTitle, &c.WorkEmail, &c.WorkPhone, &c.MobilePhone, &c.Notes)
		if err != nil {
			return nil, wrapErr("scan contact", err)
		}
		contacts = append(contacts, c)
	}

	return contacts, wrapErr("list contacts", rows.Err())
}
