// Package httpapi is the thin HTTP layer. Handlers decode, validate, and
// delegate to domain services; business logic never lives here.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kinerja/pkg/platform/httputil"
	dErrors "kinerja/pkg/domain-errors"
)

// HealthCheck reports readiness of one backing dependency.
type HealthCheck func(ctx context.Context) error

// Deps carries the services and probes the router binds.
type Deps struct {
	Indicators  IndicatorService
	Performance PerformanceService
	Assessments AssessmentService
	Reports     ReportService
	Compliance  ComplianceService
	Logger      *slog.Logger
	// Health checks by dependency name; nil entries are skipped.
	Health map[string]HealthCheck
}

// NewRouter wires all endpoints: the operational surface plus the domain
// API.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestContextMiddleware)

	r.Get("/healthz", healthHandler(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	(&indicatorHandler{service: deps.Indicators, logger: deps.Logger}).register(r)
	(&performanceHandler{service: deps.Performance, logger: deps.Logger}).register(r)
	(&assessmentHandler{service: deps.Assessments, logger: deps.Logger}).register(r)
	(&reportHandler{service: deps.Reports, logger: deps.Logger}).register(r)
	(&complianceHandler{service: deps.Compliance, logger: deps.Logger}).register(r)

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				http.Error(w, name+": "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

// pathUUID parses a UUID URL parameter, writing the error response itself
// on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "%s must be a valid UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses a required UUID query parameter.
func queryUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.URL.Query().Get(name))
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "query parameter %s must be a valid UUID", name))
		return uuid.Nil, false
	}
	return id, true
}
