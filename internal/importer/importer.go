// Package importer ingests spreadsheet rows into work records and contacts.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/normalize"
	"go.uber.org/zap"
)

// Resolver maps labels onto entity ids
type Resolver interface {
	ResolveOrCreate(ctx context.Context, kind domain.Kind, raw string) (string, error)
	ResolveFuzzy(ctx context.Context, kind domain.Kind, raw string) (string, bool, error)
	ResolveFuzzyOrCreate(ctx context.Context, kind domain.Kind, raw string) (string, error)
}

// DuplicateDetector finds records that are already stored
type DuplicateDetector interface {
	IsDuplicate(ctx context.Context, candidate *domain.WorkRecord) (bool, error)
}

// Store persists imported rows
type Store interface {
	InsertRecord(ctx context.Context, r *domain.WorkRecord) error
	ContactExists(ctx context.Context, clientID, normName string) (bool, error)
	InsertContact(ctx context.Context, c *domain.Contact) error
}

// Importer runs spreadsheet imports row by row
type Importer struct {
	store    Store
	resolver Resolver
	dupes    DuplicateDetector
	logger   *zap.Logger
}

// New creates an Importer
func New(store Store, resolver Resolver, dupes DuplicateDetector, logger *zap.Logger) *Importer {
	return &Importer{store: store, resolver: resolver, dupes: dupes, logger: logger}
}

// ImportRows imports work records. Rows are processed in order since later
// rows may reference entities created by earlier ones. Bad rows are counted
// and skipped. A storage failure stops the batch: the partial outcome is
// returned with Incomplete set, and rows already inserted stay.
func (im *Importer) ImportRows(ctx context.Context, rows []map[string]string) (*Outcome, error) {
	out := newOutcome()

	for i, raw := range rows {
		n := i + 1
		status, err := im.importRecord(ctx, raw)
		if err != nil {
			if !rowScoped(err) {
				out.Incomplete = true
				im.logger.Error("record import aborted", zap.Int("row", n), zap.Error(err))
				return out.finish(), fmt.Errorf("import row %d: %w", n, err)
			}
			im.logger.Debug("row rejected", zap.Int("row", n), zap.Error(err))
			out.rowError(n, err)
			continue
		}

		switch status.kind {
		case rowInserted:
			out.SuccessCount++
		case rowDuplicate:
			out.DuplicateCount++
		case rowMissingClient:
			im.logger.Debug("client not found", zap.Int("row", n), zap.String("client", status.client))
			out.missingClient(status.client)
		}
	}

	out.finish()
	im.logger.Info("record import finished",
		zap.Int("rows", len(rows)),
		zap.Int("success", out.SuccessCount),
		zap.Int("duplicates", out.DuplicateCount),
		zap.Int("errors", out.ErrorCount),
		zap.Strings("missing_clients", out.MissingClientNames),
	)
	if len(out.MissingClientNames) > 0 {
		im.logger.Warn("rows skipped for unknown clients", zap.Strings("clients", out.MissingClientNames))
	}
	return out, nil
}

type rowKind int

const (
	rowBlank rowKind = iota
	rowInserted
	rowDuplicate
	rowMissingClient
)

type rowStatus struct {
	kind   rowKind
	client string
}

func (im *Importer) importRecord(ctx context.Context, raw map[string]string) (rowStatus, error) {
	row, blank, err := decodeRecordRow(raw)
	if blank {
		return rowStatus{kind: rowBlank}, nil
	}
	if err != nil {
		return rowStatus{}, err
	}

	date, err := parseDate(row.Date)
	if err != nil {
		return rowStatus{}, err
	}
	hours, err := parseHours(row.Hours)
	if err != nil {
		return rowStatus{}, err
	}

	rec := &domain.WorkRecord{
		Date:         date,
		Description:  row.Description,
		TicketNumber: row.TicketNumber,
		Hours:        hours,
		FreeText:     row.FreeText,
	}

	if rec.TechnicianID, err = im.resolver.ResolveOrCreate(ctx, domain.KindTechnician, row.Technician); err != nil {
		return rowStatus{}, err
	}
	if rec.TaskTypeID, err = im.resolver.ResolveOrCreate(ctx, domain.KindTaskType, row.TaskType); err != nil {
		return rowStatus{}, err
	}
	if rec.ModalityID, err = im.resolver.ResolveOrCreate(ctx, domain.KindModality, row.Modality); err != nil {
		return rowStatus{}, err
	}

	clientID, found, err := im.resolver.ResolveFuzzy(ctx, domain.KindClient, row.Client)
	if err != nil {
		return rowStatus{}, err
	}
	if !found {
		return rowStatus{kind: rowMissingClient, client: row.Client}, nil
	}
	rec.ClientID = clientID

	dup, err := im.dupes.IsDuplicate(ctx, rec)
	if err != nil {
		return rowStatus{}, err
	}
	if dup {
		return rowStatus{kind: rowDuplicate}, nil
	}

	if err := im.store.InsertRecord(ctx, rec); err != nil {
		return rowStatus{}, err
	}
	return rowStatus{kind: rowInserted}, nil
}

// ImportContacts imports client contacts. The organization is matched
// fuzzily against known clients and created when nothing matches.
func (im *Importer) ImportContacts(ctx context.Context, rows []map[string]string) (*Outcome, error) {
	out := newOutcome()

	for i, raw := range rows {
		n := i + 1
		status, err := im.importContact(ctx, raw)
		if err != nil {
			if !rowScoped(err) {
				out.Incomplete = true
				im.logger.Error("contact import aborted", zap.Int("row", n), zap.Error(err))
				return out.finish(), fmt.Errorf("import contact row %d: %w", n, err)
			}
			im.logger.Debug("contact row rejected", zap.Int("row", n), zap.Error(err))
			out.rowError(n, err)
			continue
		}

		switch status {
		case rowInserted:
			out.SuccessCount++
		case rowDuplicate:
			out.DuplicateCount++
		}
	}

	im.logger.Info("contact import finished",
		zap.Int("rows", len(rows)),
		zap.Int("success", out.SuccessCount),
		zap.Int("duplicates", out.DuplicateCount),
		zap.Int("errors", out.ErrorCount),
	)
	return out.finish(), nil
}

func (im *Importer) importContact(ctx context.Context, raw map[string]string) (rowKind, error) {
	row, blank, err := decodeContactRow(raw)
	if blank {
		return rowBlank, nil
	}
	if err != nil {
		return 0, err
	}

	clientID, err := im.resolver.ResolveFuzzyOrCreate(ctx, domain.KindClient, row.Organization)
	if err != nil {
		return 0, err
	}

	c := &domain.Contact{
		ClientID:    clientID,
		FirstName:   normalize.Collapse(row.FirstName),
		LastName:    normalize.Collapse(row.LastName),
		RoleTitle:   row.RoleTitle,
		WorkEmail:   row.WorkEmail,
		WorkPhone:   row.WorkPhone,
		MobilePhone: row.MobilePhone,
		Notes:       row.Notes,
	}
	c.NormName = normalize.Normalize(normalize.FullName(c.FirstName, c.LastName))

	exists, err := im.store.ContactExists(ctx, clientID, c.NormName)
	if err != nil {
		return 0, err
	}
	if exists {
		return rowDuplicate, nil
	}

	if err := im.store.InsertContact(ctx, c); err != nil {
		return 0, err
	}
	return rowInserted, nil
}

// rowScoped reports whether err only concerns the row being processed.
// Anything else is treated as a storage failure that ends the batch.
func rowScoped(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe) ||
		errors.Is(err, domain.ErrEmptyLabel) ||
		errors.Is(err, domain.ErrConstraint) ||
		errors.Is(err, domain.ErrConflict)
}
