package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Service is the accounting surface the server exposes. *pipeline.Pipeline
// implements it.
type Service interface {
	sharedobs.ReadinessChecker
	Units() []string
	CalculateConsumptiveUse(ctx context.Context, unitID string) (map[string]domain.PartitionSeries, error)
	Statement(ctx context.Context, a domain.Agreement, waterYear int, q domain.Quarter) (domain.Statement, error)
}

// Server exposes health, readiness, metrics, and the consumptive use API.
type Server struct {
	httpServer *http.Server
	svc        Service
	agreements map[string]domain.Agreement
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /v1 unit routes. agreements is keyed by agreement number.
func NewServer(addr string, svc Service, agreements map[string]domain.Agreement, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr: addr,
			Handler: cors.New(cors.Options{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{http.MethodGet},
			}).Handler(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:        svc,
		agreements: agreements,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/units", s.handleUnits)
	mux.HandleFunc("GET /v1/units/{unit}/consumptive-use", s.handleConsumptiveUse)
	mux.HandleFunc("GET /v1/units/{unit}/statement", s.handleStatement)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type unitsResponse struct {
	Units []string `json:"units"`
}

type consumptiveUseResponse struct {
	Unit string             `json:"unit"`
	Rows []domain.Partition `json:"rows"`
}

func (s *Server) handleUnits(w http.ResponseWriter, _ *http.Request) {
	units := s.svc.Units()
	if units == nil {
		units = []string{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, unitsResponse{Units: units})
}

func (s *Server) handleConsumptiveUse(w http.ResponseWriter, r *http.Request) {
	unit := r.PathValue("unit")
	results, err := s.svc.CalculateConsumptiveUse(r.Context(), unit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	series := results[unit]
	rows := series.Rows()
	if rows == nil {
		rows = []domain.Partition{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, consumptiveUseResponse{Unit: unit, Rows: rows})
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	unit := r.PathValue("unit")
	a, ok := s.agreements[unit]
	if !ok {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no agreement for unit %s", unit)})
		return
	}

	q := r.URL.Query()
	waterYear, err := strconv.Atoi(q.Get("water_year"))
	if err != nil {
		s.writeError(w, r, &domain.InputValidationError{
			Unit:   unit,
			Field:  "water_year",
			Reason: fmt.Sprintf("water_year must be an integer, got %q", q.Get("water_year")),
		})
		return
	}
	quarter, err := domain.ParseQuarter(q.Get("quarter"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.svc.Statement(r.Context(), a, waterYear, quarter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, st)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var (
		noData   *domain.NoDataError
		input    *domain.InputValidationError
		mismatch *domain.ConfigurationMismatchError
	)
	switch {
	case errors.As(err, &noData):
		return http.StatusNotFound
	case errors.As(err, &input):
		return http.StatusBadRequest
	case errors.As(err, &mismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
