package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pbaille/workhours/internal/dedupe"
	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/resolver"
	"github.com/pbaille/workhours/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestImporter(t *testing.T) (*Importer, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := zap.NewNop()
	return New(s, resolver.New(s, logger), dedupe.New(s), logger), s
}

func seed(t *testing.T, s *store.Store, kind domain.Kind, name string) *domain.Entity {
	t.Helper()
	e, err := s.CreateEntity(context.Background(), kind, name)
	require.NoError(t, err)
	return e
}

func acmeRow() map[string]string {
	return map[string]string{
		"date":             "2024-03-05",
		"technician_name":  "Juan Pérez",
		"client_name":      "Acme S.A.",
		"task_type_name":   "Soporte",
		"modality_name":    "Remoto",
		"task_description": "Configuración de VPN",
		"ticket_number":    "TK-100",
		"hours":            "1,5",
		"free_text":        "",
	}
}

func TestImportRows_AcmeScenario(t *testing.T) {
	ctx := context.Background()
	im, s := newTestImporter(t)
	acme := seed(t, s, domain.KindClient, "Acme S.A.")
	remoto := seed(t, s, domain.KindModality, "Remoto")

	out, err := im.ImportRows(ctx, []map[string]string{acmeRow()})
	require.NoError(t, err)

	assert.Equal(t, 1, out.SuccessCount)
	assert.Zero(t, out.DuplicateCount)
	assert.Zero(t, out.ErrorCount)
	assert.Empty(t, out.MissingClientNames)
	assert.False(t, out.Incomplete)

	taskTypes, err := s.ListEntities(ctx, domain.KindTaskType)
	require.NoError(t, err)
	require.Len(t, taskTypes, 1)
	assert.Equal(t, "Soporte", taskTypes[0].Name)

	modalities, err := s.ListEntities(ctx, domain.KindModality)
	require.NoError(t, err)
	assert.Len(t, modalities, 1)

	records, err := s.ListRecords(ctx, domain.DateFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, acme.ID, rec.ClientID)
	assert.Equal(t, remoto.ID, rec.ModalityID)
	assert.Equal(t, taskTypes[0].ID, rec.TaskTypeID)
	assert.Equal(t, 1.5, rec.Hours)
	assert.Equal(t, "2024-03", rec.MonthBucket)
	assert.Nil(t, rec.OwnerUserID)

	t.Run("second import is all duplicates", func(t *testing.T) {
		out, err := im.ImportRows(ctx, []map[string]string{acmeRow()})
		require.NoError(t, err)
		assert.Zero(t, out.SuccessCount)
		assert.Equal(t, 1, out.DuplicateCount)
	})

	t.Run("branch name resolves to the existing client", func(t *testing.T) {
		row := acmeRow()
		row["client_name"] = "Acme S.A. Sucursal"
		row["ticket_number"] = "TK-101"

		out, err := im.ImportRows(ctx, []map[string]string{row})
		require.NoError(t, err)
		assert.Equal(t, 1, out.SuccessCount)

		clients, err := s.ListEntities(ctx, domain.KindClient)
		require.NoError(t, err)
		assert.Len(t, clients, 1)
	})
}

func TestImportRows_Idempotent(t *testing.T) {
	ctx := context.Background()
	im, s := newTestImporter(t)
	seed(t, s, domain.KindClient, "Acme S.A.")
	seed(t, s, domain.KindClient, "Globex")

	var rows []map[string]string
	for i := 0; i < 12; i++ {
		row := acmeRow()
		row["ticket_number"] = fmt.Sprintf("TK-%d", i)
		row["technician_name"] = []string{"Juan Pérez", "Ana Gómez", "Luis Díaz"}[i%3]
		if i%2 == 0 {
			row["client_name"] = "Globex"
		}
		rows = append(rows, row)
	}

	first, err := im.ImportRows(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, len(rows), first.SuccessCount)
	assert.Zero(t, first.DuplicateCount)

	second, err := im.ImportRows(ctx, rows)
	require.NoError(t, err)
	assert.Zero(t, second.SuccessCount)
	assert.Equal(t, len(rows), second.DuplicateCount)

	techs, err := s.ListEntities(ctx, domain.KindTechnician)
	require.NoError(t, err)
	assert.Len(t, techs, 3)
}

func TestImportRows_Outcomes(t *testing.T) {
	ctx := context.Background()
	im, s := newTestImporter(t)
	seed(t, s, domain.KindClient, "Acme S.A.")

	badHours := acmeRow()
	badHours["hours"] = "dos"
	zeroHours := acmeRow()
	zeroHours["hours"] = "0"
	badDate := acmeRow()
	badDate["date"] = "ayer"
	noTech := acmeRow()
	delete(noTech, "technician_name")
	unknown1 := acmeRow()
	unknown1["client_name"] = "Initech"
	unknown2 := acmeRow()
	unknown2["client_name"] = "  INITECH "
	noClient := acmeRow()
	noClient["client_name"] = ""
	blank := map[string]string{"date": " ", "hours": ""}
	ok := acmeRow()

	out, err := im.ImportRows(ctx, []map[string]string{
		badHours, zeroHours, badDate, noTech, unknown1, unknown2, noClient, blank, ok,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.SuccessCount)
	assert.Zero(t, out.DuplicateCount)
	assert.Equal(t, 4, out.ErrorCount)
	assert.Equal(t, 3, out.UnresolvedCount)
	assert.Equal(t, []string{"Initech"}, out.MissingClientNames)
	require.Len(t, out.RowErrors, 4)
	assert.Equal(t, 1, out.RowErrors[0].Row)
	assert.Contains(t, out.RowErrors[0].Err, "hours")
	assert.Contains(t, out.RowErrors[3].Err, "technician_name")

	clients, err := s.ListEntities(ctx, domain.KindClient)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestImportRows_SpanishHeaders(t *testing.T) {
	ctx := context.Background()
	im, s := newTestImporter(t)
	seed(t, s, domain.KindClient, "Acme S.A.")

	out, err := im.ImportRows(ctx, []map[string]string{{
		"Fecha":         "05/03/2024",
		"Técnico":       "Juan Pérez",
		"Cliente":       "ACME SA",
		"Tipo de tarea": "Soporte",
		"Modalidad":     "Presencial",
		"Descripción":   "Cambio de disco",
		"Ticket":        "55",
		"Horas":         "2",
		"Sin mapear":    "x",
	}})
	require.NoError(t, err)
	require.Equal(t, 1, out.SuccessCount, out.RowErrors)

	records, err := s.ListRecords(ctx, domain.DateFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-03-05", records[0].Date.Format(domain.DateLayout))
	assert.Equal(t, "Cambio de disco", records[0].Description)
}

// failingStore fails every insert after the first n
type failingStore struct {
	Store
	n       int
	inserts int
}

func (f *failingStore) InsertRecord(ctx context.Context, r *domain.WorkRecord) error {
	f.inserts++
	if f.inserts > f.n {
		return fmt.Errorf("insert record: %w", errors.Join(domain.ErrStorage, errors.New("database is locked")))
	}
	return f.Store.InsertRecord(ctx, r)
}

func TestImportRows_StorageFailureStopsBatch(t *testing.T) {
	ctx := context.Background()
	_, s := newTestImporter(t)
	seed(t, s, domain.KindClient, "Acme S.A.")

	logger := zap.NewNop()
	fs := &failingStore{Store: s, n: 1}
	im := New(fs, resolver.New(s, logger), dedupe.New(s), logger)

	var rows []map[string]string
	for i := 0; i < 4; i++ {
		row := acmeRow()
		row["ticket_number"] = fmt.Sprintf("TK-%d", i)
		rows = append(rows, row)
	}

	out, err := im.ImportRows(ctx, rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	require.NotNil(t, out)
	assert.True(t, out.Incomplete)
	assert.Equal(t, 1, out.SuccessCount)
	assert.Equal(t, 2, fs.inserts)

	records, err := s.ListRecords(ctx, domain.DateFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestImportContacts(t *testing.T) {
	ctx := context.Background()
	im, s := newTestImporter(t)
	acme := seed(t, s, domain.KindClient, "Acme S.A.")

	rows := []map[string]string{
		{"organization": "Acme S.A. Sucursal Norte", "first_name": "María", "last_name": "López", "work_email": "Maria@Acme.com"},
		{"Empresa": "ACME S.A.", "Nombre": "maria", "Apellido": "LOPEZ"},
		{"organization": "Initech", "first_name": "Peter", "last_name": "Gibbons", "role_title": "Engineer"},
		{"organization": "Initech", "first_name": "", "last_name": "Lumbergh"},
		{"organization": "Initech", "first_name": "Milton", "work_email": "not-an-email"},
		{"organization": "", "first_name": "", "notes": "   "},
	}

	out, err := im.ImportContacts(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, out.SuccessCount)
	assert.Equal(t, 1, out.DuplicateCount)
	assert.Equal(t, 2, out.ErrorCount)

	contacts, err := s.ListContacts(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "maria@acme.com", contacts[0].WorkEmail)

	initech, err := s.FindEntity(ctx, domain.KindClient, "initech")
	require.NoError(t, err)
	contacts, err = s.ListContacts(ctx, initech.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Peter", contacts[0].FirstName)
}
