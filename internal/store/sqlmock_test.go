package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/pbaille/workhours/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestWrapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, domain.ErrNotFound},
		{"unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, domain.ErrConflict},
		{"primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, domain.ErrConflict},
		{"check", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}, domain.ErrConstraint},
		{"foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, domain.ErrConstraint},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, domain.ErrStorage},
		{"connection", sql.ErrConnDone, domain.ErrStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapErr("op", tt.err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "op: ")
		})
	}

	assert.NoError(t, wrapErr("op", nil))
}

func TestInsertRecord_StorageFailure(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO work_records`).
		WillReturnError(errors.New("disk I/O error"))

	err := s.InsertRecord(context.Background(), &domain.WorkRecord{
		Date:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Hours: 1,
	})
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExists_Query(t *testing.T) {
	s, mock := setupMockStore(t)
	r := &domain.WorkRecord{
		Date:         time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		TechnicianID: "t",
		ClientID:     "c",
		TaskTypeID:   "k",
		Description:  "Cambio de disco",
		TicketNumber: "55",
		Hours:        2,
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM work_records`).
		WithArgs("2024-03-05", "t", "c", "k", "Cambio de disco", "55", 2.0).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	ok, err := s.RecordExists(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEntities_StorageFailure(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM entities WHERE kind = \?`).
		WithArgs("client").
		WillReturnError(sql.ErrConnDone)

	_, err := s.ListEntities(context.Background(), domain.KindClient)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsers_ScanFailure(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT id, first_name, last_name FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name"}).
			AddRow("u1", "Juan", "Pérez").
			RowError(0, errors.New("connection reset")))

	_, err := s.ListUsers(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorage)
}
