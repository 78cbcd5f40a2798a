package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/importer"
	"github.com/pbaille/workhours/internal/scoring"
	"github.com/pbaille/workhours/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, zap.NewNop(), ":0").Handler(), s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func row(client, ticket string) map[string]string {
	return map[string]string{
		"date":            "2024-03-05",
		"technician_name": "Juan Pérez",
		"client_name":     client,
		"task_type_name":  "Soporte",
		"modality_name":   "Remoto",
		"ticket_number":   ticket,
		"hours":           "2",
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestImportAndReports(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/entities/client", NameRequest{Name: "acme  corp"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acme := decode[domain.Entity](t, rec)
	assert.Equal(t, "Acme Corp", acme.Name)

	rec = do(t, h, http.MethodPost, "/import/records", ImportRequest{Rows: []map[string]string{
		row("ACME CORP", "1"),
		row("Acme Corp. Sucursal", "2"),
		row("Initech", "3"),
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[importer.Outcome](t, rec)
	assert.Equal(t, 2, out.SuccessCount)
	assert.Equal(t, []string{"Initech"}, out.MissingClientNames)

	rec = do(t, h, http.MethodPost, "/users", domain.User{FirstName: "Juan", LastName: "Perez"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/assign", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"assigned": 2}, decode[map[string]int](t, rec))

	rec = do(t, h, http.MethodGet, "/efficiency?month=2024-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	eff := decode[scoring.Efficiency](t, rec)
	assert.False(t, eff.ThresholdDefined)
	require.Len(t, eff.Clients, 1)

	rec = do(t, h, http.MethodPut, "/weights/client", WeightRequest{Name: "acme corp", Weight: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPut, "/weights/task_type", WeightRequest{Name: "soporte", Weight: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/scores?group_by=client&from=2024-03-01&to=2024-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	scores := decode[struct {
		Scores []scoring.Score `json:"scores"`
	}](t, rec)
	require.Len(t, scores.Scores, 1)
	assert.Equal(t, acme.ID, scores.Scores[0].Key)
	assert.Equal(t, 24.0, scores.Scores[0].TotalScore)

	rec = do(t, h, http.MethodGet, "/efficiency", nil)
	eff = decode[scoring.Efficiency](t, rec)
	assert.True(t, eff.ThresholdDefined)
	assert.Equal(t, 3.0, eff.Threshold)
	assert.Empty(t, eff.Flagged)

	rec = do(t, h, http.MethodGet, "/export?group_by=technician", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}

func TestImportUpload(t *testing.T) {
	h, s := newTestServer(t)
	_, err := s.CreateEntity(t.Context(), domain.KindClient, "Acme")
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "horas.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Fecha;Técnico;Cliente;Tipo de tarea;Modalidad;Horas\n05/03/2024;Ana;Acme;Redes;Remoto;1,5\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/import/records", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[importer.Outcome](t, rec)
	assert.Equal(t, 1, out.SuccessCount, out.RowErrors)
}

func TestEntityAdmin(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/entities/technician", NameRequest{Name: "juan perez"})
	require.Equal(t, http.StatusOK, rec.Code)
	juan := decode[domain.Entity](t, rec)

	t.Run("rename keeps the id", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/entities/technician/"+juan.ID, NameRequest{Name: "Juan  Pérez García"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		renamed := decode[domain.Entity](t, rec)
		assert.Equal(t, juan.ID, renamed.ID)
		assert.Equal(t, "Juan Pérez García", renamed.Name)
	})

	t.Run("fuzzy resolve", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/entities/technician/resolve", NameRequest{Name: "Juan"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ResolveResponse{ID: juan.ID, Found: true}, decode[ResolveResponse](t, rec))

		rec = do(t, h, http.MethodPost, "/entities/technician/resolve", NameRequest{Name: "Luis"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[ResolveResponse](t, rec).Found)
	})

	t.Run("client groups", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/entities/client", NameRequest{Name: "Globex"})
		globex := decode[domain.Entity](t, rec)
		rec = do(t, h, http.MethodPost, "/entities/group", NameRequest{Name: "Norte"})
		norte := decode[domain.Entity](t, rec)

		rec = do(t, h, http.MethodPut, "/clients/"+globex.ID+"/group", GroupRequest{GroupID: &norte.ID})
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(t, h, http.MethodPut, "/clients/"+globex.ID+"/group", GroupRequest{GroupID: &globex.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name, method, path string
			body               any
			want               int
		}{
			{"unknown kind", http.MethodGet, "/entities/planet", nil, http.StatusBadRequest},
			{"weight out of range", http.MethodPut, "/weights/client", WeightRequest{Name: "Globex", Weight: 6}, http.StatusBadRequest},
			{"unweighted kind", http.MethodPut, "/weights/technician", WeightRequest{Name: "Juan", Weight: 1}, http.StatusBadRequest},
			{"unknown entity weight", http.MethodPut, "/weights/client", WeightRequest{Name: "Initech", Weight: 1}, http.StatusNotFound},
			{"empty name", http.MethodPost, "/entities/client", NameRequest{Name: " .. "}, http.StatusBadRequest},
			{"rename wrong kind", http.MethodPut, "/entities/client/" + juan.ID, NameRequest{Name: "x"}, http.StatusNotFound},
			{"bad month", http.MethodGet, "/scores?month=march", nil, http.StatusBadRequest},
			{"bad grouping", http.MethodGet, "/scores?group_by=modality", nil, http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(t, h, tt.method, tt.path, tt.body)
				assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			})
		}
	})
}

func TestDeleteRecords(t *testing.T) {
	h, s := newTestServer(t)
	_, err := s.CreateEntity(t.Context(), domain.KindClient, "Acme")
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/import/records", ImportRequest{Rows: []map[string]string{
		row("Acme", "1"), row("Acme", "2"),
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := s.ListRecords(t.Context(), domain.DateFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec = do(t, h, http.MethodDelete, "/records", DeleteRecordsRequest{IDs: []string{records[0].ID, "missing"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int64{"deleted": 1}, decode[map[string]int64](t, rec))

	rec = do(t, h, http.MethodGet, "/records", nil)
	list := decode[struct {
		Records []domain.WorkRecord `json:"records"`
	}](t, rec)
	assert.Len(t, list.Records, 1)
}
