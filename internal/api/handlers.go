package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/importer"
	"github.com/pbaille/workhours/internal/normalize"
	"github.com/pbaille/workhours/internal/scoring"
	"github.com/pbaille/workhours/internal/sheet"
)

const maxUploadSize = 32 << 20

// ImportRequest is the JSON body of an import
type ImportRequest struct {
	Rows []map[string]string `json:"rows"`
}

// readRows accepts either a JSON body of rows or a multipart upload in
// field "file"
func readRows(r *http.Request) ([]map[string]string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, fmt.Errorf("parse upload: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		defer file.Close()
		return sheet.Read(header.Filename, file)
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	return req.Rows, nil
}

func (s *Server) importRecords(w http.ResponseWriter, r *http.Request) {
	rows, err := readRows(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.importer.ImportRows(r.Context(), rows)
	s.writeOutcome(w, out, err)
}

func (s *Server) importContacts(w http.ResponseWriter, r *http.Request) {
	rows, err := readRows(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.importer.ImportContacts(r.Context(), rows)
	s.writeOutcome(w, out, err)
}

// writeOutcome reports an aborted import with its partial counts
func (s *Server) writeOutcome(w http.ResponseWriter, out *importer.Outcome, err error) {
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   err.Error(),
			"outcome": out,
		})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) assignRecords(w http.ResponseWriter, r *http.Request) {
	n, err := s.assigner.AssignUnownedRecords(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"assigned": n})
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 100
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	records, err := s.store.ListRecords(r.Context(), filter, limit, offset)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"limit":   limit,
		"offset":  offset,
	})
}

// DeleteRecordsRequest is the request body for a batch delete
type DeleteRecordsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) deleteRecords(w http.ResponseWriter, r *http.Request) {
	var req DeleteRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := s.store.DeleteRecords(r.Context(), req.IDs)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	entities, err := s.store.ListEntities(r.Context(), kind)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entities": entities})
}

// NameRequest is the request body for creating, resolving or renaming an entity
type NameRequest struct {
	Name   string `json:"name"`
	Create bool   `json:"create,omitempty"`
}

func (s *Server) createEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	var req NameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.resolver.ResolveOrCreate(r.Context(), kind, req.Name)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	entity, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// ResolveResponse is the outcome of a fuzzy lookup
type ResolveResponse struct {
	ID    string `json:"id,omitempty"`
	Found bool   `json:"found"`
}

func (s *Server) resolveEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	var req NameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var resp ResolveResponse
	if req.Create {
		resp.ID, err = s.resolver.ResolveFuzzyOrCreate(r.Context(), kind, req.Name)
		resp.Found = err == nil
	} else {
		resp.ID, resp.Found, err = s.resolver.ResolveFuzzy(r.Context(), kind, req.Name)
	}
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) renameEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	var req NameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := s.store.GetEntity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if current.Kind != kind {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no %s with id %s", kind, current.ID))
		return
	}

	entity, err := s.store.RenameEntity(r.Context(), current.ID, normalize.Collapse(req.Name))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// GroupRequest is the request body for moving a client into a group.
// A null group_id removes the client from its group.
type GroupRequest struct {
	GroupID *string `json:"group_id"`
}

func (s *Server) setClientGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.SetClientGroup(r.Context(), r.PathValue("id"), req.GroupID); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listWeights(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	weights, err := s.store.ListWeights(r.Context(), kind)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"weights": weights})
}

// WeightRequest is the request body for assigning a weight
type WeightRequest struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

func (s *Server) setWeight(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	var req WeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.SetWeight(r.Context(), kind, req.Name, req.Weight); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Weight{Kind: kind, EntityName: req.Name, Weight: req.Weight})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(u.FirstName) == "" {
		writeError(w, http.StatusBadRequest, "first_name is required")
		return
	}

	user, err := s.store.CreateUser(r.Context(), u.FirstName, u.LastName)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.store.ListContacts(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contacts": contacts})
}

// parseFilter reads from, to (YYYY-MM-DD) and month (YYYY-MM) query parameters
func parseFilter(r *http.Request) (domain.DateFilter, error) {
	var f domain.DateFilter
	q := r.URL.Query()

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(domain.DateLayout, v)
		if err != nil {
			return f, fmt.Errorf("%s must be YYYY-MM-DD", p.name)
		}
		*p.dst = t
	}

	if m := q.Get("month"); m != "" {
		if _, err := time.Parse("2006-01", m); err != nil {
			return f, errors.New("month must be YYYY-MM")
		}
		f.MonthBucket = m
	}
	return f, nil
}

func (s *Server) scores(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	groupBy := r.URL.Query().Get("group_by")
	if groupBy == "" {
		groupBy = string(scoring.ByClient)
	}
	g, err := scoring.ParseGroupBy(groupBy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scores, err := s.engine.ComputeScores(r.Context(), g, filter)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_by": g,
		"scores":   scores,
	})
}

func (s *Server) efficiency(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eff, err := s.engine.ComputeEfficiency(r.Context(), filter)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eff)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	groupBy := r.URL.Query().Get("group_by")
	if groupBy == "" {
		groupBy = string(scoring.ByClient)
	}
	g, err := scoring.ParseGroupBy(groupBy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scores, err := s.engine.ComputeScores(r.Context(), g, filter)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	eff, err := s.engine.ComputeEfficiency(r.Context(), filter)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="scores.xlsx"`)
	if err := sheet.ExportScores(w, scores, eff); err != nil {
		s.writeErr(w, err)
	}
}
