package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pbaille/workhours/internal/domain"
)

const recordColumns = `id, date, technician_id, client_id, task_type_id, modality_id,
	description, ticket_number, hours, free_text, month_bucket, owner_user_id`

func scanRecord(row interface{ Scan(...any) error }) (*domain.WorkRecord, error) {
	var r domain.WorkRecord
	var date string
	var owner sql.NullString
	err := row.Scan(&r.ID, &date, &r.TechnicianID, &r.ClientID, &r.TaskTypeID, &r.ModalityID,
		&r.Description, &r.TicketNumber, &r.Hours, &r.FreeText, &r.MonthBucket, &owner)
	if err != nil {
		return nil, err
	}
	r.Date, err = time.Parse(domain.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse record date %q: %w", date, err)
	}
	if owner.Valid {
		r.OwnerUserID = &owner.String
	}
	return &r, nil
}

// InsertRecord stores a new work record, assigning its ID and month bucket
func (s *Store) InsertRecord(ctx context.Context, r *domain.WorkRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.MonthBucket = domain.MonthBucketOf(r.Date)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_records (`+recordColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Date.Format(domain.DateLayout), r.TechnicianID, r.ClientID, r.TaskTypeID, r.ModalityID,
		r.Description, r.TicketNumber, r.Hours, r.FreeText, r.MonthBucket, r.OwnerUserID, time.Now(),
	)
	return wrapErr("insert record", err)
}

// RecordExists reports whether a record with the same natural key is stored
func (s *Store) RecordExists(ctx context.Context, r *domain.WorkRecord) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM work_records
		WHERE date = ? AND technician_id = ? AND client_id = ? AND task_type_id = ?
		  AND description = ? AND ticket_number = ? AND hours = ?
	`,
		r.Date.Format(domain.DateLayout), r.TechnicianID, r.ClientID, r.TaskTypeID,
		r.Description, r.TicketNumber, r.Hours,
	).Scan(&n)
	if err != nil {
		return false, wrapErr("find record", err)
	}
	return n > 0, nil
}

// GetRecord retrieves a work record by ID
func (s *Store) GetRecord(ctx context.Context, id string) (*domain.WorkRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM work_records WHERE id = ?",
		id,
	)
	r, err := scanRecord(row)
	if err != nil {
		return nil, wrapErr("get record", err)
	}
	return r, nil
}

// ListRecords returns records matching the filter, oldest first
func (s *Store) ListRecords(ctx context.Context, f domain.DateFilter, limit, offset int) ([]domain.WorkRecord, error) {
	where, args := filterClause("date", "month_bucket", f)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM work_records"+where+" ORDER BY date, id LIMIT ? OFFSET ?",
		args...,
	)
	if err != nil {
		return nil, wrapErr("list records", err)
	}
	defer rows.Close()

	var records []domain.WorkRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, wrapErr("scan record", err)
		}
		records = append(records, *r)
	}

	return records, wrapErr("list records", rows.Err())
}

// DeleteRecords removes the given records and returns how many existed
func (s *Store) DeleteRecords(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM work_records WHERE id IN ("+placeholders(len(ids))+")",
		args...,
	)
	if err != nil {
		return 0, wrapErr("delete records", err)
	}
	return res.RowsAffected()
}

// ListUnownedRecords returns every record whose owner is unset
func (s *Store) ListUnownedRecords(ctx context.Context) ([]domain.UnownedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, t.name
		FROM work_records r
		JOIN entities t ON t.id = r.technician_id
		WHERE r.owner_user_id IS NULL
		ORDER BY r.id
	`)
	if err != nil {
		return nil, wrapErr("list unowned records", err)
	}
	defer rows.Close()

	var out []domain.UnownedRecord
	for rows.Next() {
		var u domain.UnownedRecord
		if err := rows.Scan(&u.RecordID, &u.TechnicianName); err != nil {
			return nil, wrapErr("scan unowned record", err)
		}
		out = append(out, u)
	}

	return out, wrapErr("list unowned records", rows.Err())
}

// SetRecordOwner assigns an owner to a record that has none. It reports
// whether the record was updated.
func (s *Store) SetRecordOwner(ctx context.Context, recordID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE work_records SET owner_user_id = ? WHERE id = ? AND owner_user_id IS NULL",
		userID, recordID,
	)
	if err != nil {
		return false, wrapErr("set record owner", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("set record owner", err)
	}
	return n > 0, nil
}

// ScoredRecords joins every record matching the filter with the weights
// of its task type, client and client group. Unset weights read as 0.
func (s *Store) ScoredRecords(ctx context.Context, f domain.DateFilter) ([]domain.ScoredRecord, error) {
	where, args := filterClause("r.date", "r.month_bucket", f)

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, c.id, c.name, t.id, t.name,
		       COALESCE(g.id, ''), COALESCE(g.name, ''), r.hours,
		       COALESCE(wt.weight, 0), COALESCE(wc.weight, 0), COALESCE(wg.weight, 0)
		FROM work_records r
		JOIN entities c ON c.id = r.client_id
		JOIN entities t ON t.id = r.technician_id
		LEFT JOIN entities g ON g.id = c.group_id
		LEFT JOIN weights wt ON wt.entity_id = r.task_type_id
		LEFT JOIN weights wc ON wc.entity_id = r.client_id
		LEFT JOIN weights wg ON wg.entity_id = c.group_id
	`+where+`
		ORDER BY r.date, r.id
	`, args...)
	if err != nil {
		return nil, wrapErr("scored records", err)
	}
	defer rows.Close()

	var out []domain.ScoredRecord
	for rows.Next() {
		var r domain.ScoredRecord
		err := rows.Scan(&r.RecordID, &r.ClientID, &r.ClientName, &r.TechnicianID, &r.TechnicianName,
			&r.GroupID, &r.GroupName, &r.Hours, &r.TypeWeight, &r.ClientWeight, &r.GroupWeight)
		if err != nil {
			return nil, wrapErr("scan scored record", err)
		}
		out = append(out, r)
	}

	return out, wrapErr("scored records", rows.Err())
}

func filterClause(dateCol, monthCol string, f domain.DateFilter) (string, []any) {
	var conds []string
	var args []any
	if !f.From.IsZero() {
		conds = append(conds, dateCol+" >= ?")
		args = append(args, f.From.Format(domain.DateLayout))
	}
	if !f.To.IsZero() {
		conds = append(conds, dateCol+" <= ?")
		args = append(args, f.To.Format(domain.DateLayout))
	}
	if f.MonthBucket != "" {
		conds = append(conds, monthCol+" = ?")
		args = append(args, f.MonthBucket)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
