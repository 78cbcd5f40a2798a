package assign

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/normalize"
	"github.com/pbaille/workhours/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	s      *store.Store
	client string
	task   string
	mode   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{s: s}
	for _, e := range []struct {
		kind domain.Kind
		name string
		dst  *string
	}{
		{domain.KindClient, "Acme", &f.client},
		{domain.KindTaskType, "Soporte", &f.task},
		{domain.KindModality, "Remoto", &f.mode},
	} {
		created, err := s.CreateEntity(ctx, e.kind, e.name)
		require.NoError(t, err)
		*e.dst = created.ID
	}
	return f
}

func (f *fixture) record(t *testing.T, technician string, day int) string {
	t.Helper()
	ctx := context.Background()

	tech, err := f.s.FindEntity(ctx, domain.KindTechnician, normalize.Normalize(technician))
	if err != nil {
		tech, err = f.s.CreateEntity(ctx, domain.KindTechnician, technician)
		require.NoError(t, err)
	}

	r := &domain.WorkRecord{
		Date:         time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		TechnicianID: tech.ID,
		ClientID:     f.client,
		TaskTypeID:   f.task,
		ModalityID:   f.mode,
		Hours:        1,
	}
	require.NoError(t, f.s.InsertRecord(ctx, r))
	return r.ID
}

func TestAssignUnownedRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	juan, err := f.s.CreateUser(ctx, "JUAN", "Perez")
	require.NoError(t, err)
	_, err = f.s.CreateUser(ctx, "Ana", "Gómez")
	require.NoError(t, err)
	_, err = f.s.CreateUser(ctx, "Ana", "Gomez")
	require.NoError(t, err)

	r1 := f.record(t, "Juan Pérez", 1)
	r2 := f.record(t, "juan pérez", 2)
	r3 := f.record(t, "Ana Gómez", 3)
	r4 := f.record(t, "Luis Díaz", 4)

	a := New(f.s, zap.NewNop())

	n, err := a.AssignUnownedRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{r1, r2} {
		rec, err := f.s.GetRecord(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec.OwnerUserID)
		assert.Equal(t, juan.ID, *rec.OwnerUserID)
	}
	for _, id := range []string{r3, r4} {
		rec, err := f.s.GetRecord(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, rec.OwnerUserID)
	}

	t.Run("running again assigns nothing", func(t *testing.T) {
		n, err := a.AssignUnownedRecords(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("new users pick up remaining records", func(t *testing.T) {
		luis, err := f.s.CreateUser(ctx, "Luis", "Díaz")
		require.NoError(t, err)

		n, err := a.AssignUnownedRecords(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		rec, err := f.s.GetRecord(ctx, r4)
		require.NoError(t, err)
		require.NotNil(t, rec.OwnerUserID)
		assert.Equal(t, luis.ID, *rec.OwnerUserID)
	})
}

func TestAssignUnownedRecords_NoUsers(t *testing.T) {
	f := newFixture(t)
	f.record(t, "Juan Pérez", 1)

	n, err := New(f.s, zap.NewNop()).AssignUnownedRecords(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
