package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pbaille/workhours/internal/assign"
	"github.com/pbaille/workhours/internal/dedupe"
	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/importer"
	"github.com/pbaille/workhours/internal/resolver"
	"github.com/pbaille/workhours/internal/scoring"
	"github.com/pbaille/workhours/internal/store"
	"go.uber.org/zap"
)

// Server handles HTTP requests for the work hours API
type Server struct {
	store    *store.Store
	resolver *resolver.Resolver
	importer *importer.Importer
	assigner *assign.Assigner
	engine   *scoring.Engine
	logger   *zap.Logger
	addr     string
}

// New creates a new API server
func New(s *store.Store, logger *zap.Logger, addr string) *Server {
	res := resolver.New(s, logger)
	return &Server{
		store:    s,
		resolver: res,
		importer: importer.New(s, res, dedupe.New(s), logger),
		assigner: assign.New(s, logger),
		engine:   scoring.New(s, logger),
		logger:   logger,
		addr:     addr,
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Imports
	mux.HandleFunc("POST /import/records", s.importRecords)
	mux.HandleFunc("POST /import/contacts", s.importContacts)
	mux.HandleFunc("POST /assign", s.assignRecords)

	// Records
	mux.HandleFunc("GET /records", s.listRecords)
	mux.HandleFunc("DELETE /records", s.deleteRecords)

	// Entities
	mux.HandleFunc("GET /entities/{kind}", s.listEntities)
	mux.HandleFunc("POST /entities/{kind}", s.createEntity)
	mux.HandleFunc("POST /entities/{kind}/resolve", s.resolveEntity)
	mux.HandleFunc("PUT /entities/{kind}/{id}", s.renameEntity)
	mux.HandleFunc("PUT /clients/{id}/group", s.setClientGroup)

	// Weights
	mux.HandleFunc("GET /weights/{kind}", s.listWeights)
	mux.HandleFunc("PUT /weights/{kind}", s.setWeight)

	// Users and contacts
	mux.HandleFunc("GET /users", s.listUsers)
	mux.HandleFunc("POST /users", s.createUser)
	mux.HandleFunc("GET /clients/{id}/contacts", s.listContacts)

	// Reports
	mux.HandleFunc("GET /scores", s.scores)
	mux.HandleFunc("GET /efficiency", s.efficiency)
	mux.HandleFunc("GET /export", s.export)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return s.withLogging(withCORS(mux))
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.logger.Info("starting server", zap.String("addr", s.addr))
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErr picks the status code from the error's sentinel
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInvalidWeight),
		errors.Is(err, domain.ErrEmptyLabel),
		errors.Is(err, domain.ErrConstraint):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}
