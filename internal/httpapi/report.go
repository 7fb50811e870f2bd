package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kinerja/internal/report/models"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/httputil"
	"kinerja/pkg/requestcontext"
)

// ReportService is the slice of the report service the HTTP layer consumes.
type ReportService interface {
	Create(ctx context.Context, institutionID uuid.UUID, period domain.Period, title, summary string) (*models.Report, error)
	Submit(ctx context.Context, reportID uuid.UUID) (*models.Report, error)
	Review(ctx context.Context, reportID uuid.UUID, approved bool, notes string) (*models.Report, error)
	List(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.Report, error)
}

type reportHandler struct {
	service ReportService
	logger  *slog.Logger
}

func (h *reportHandler) register(r chi.Router) {
	r.Post("/reports", h.create)
	r.Get("/reports", h.list)
	r.Post("/reports/{reportID}/submit", h.submit)
	r.Post("/reports/{reportID}/review", h.review)
}

type createReportRequest struct {
	InstitutionID string `json:"institution_id"`
	Period        string `json:"period"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`

	parsedInstitutionID uuid.UUID
}

func (r *createReportRequest) Validate() error {
	institutionID, err := uuid.Parse(r.InstitutionID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "institution_id must be a valid UUID")
	}
	if !domain.Period(r.Period).IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid period %q", r.Period)
	}
	if strings.TrimSpace(r.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	r.parsedInstitutionID = institutionID
	return nil
}

func (h *reportHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createReportRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	report, err := h.service.Create(ctx, req.parsedInstitutionID, domain.Period(req.Period), req.Title, req.Summary)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "report created",
		"request_id", requestcontext.RequestID(ctx), "report_id", report.ID)
	httputil.WriteJSON(w, http.StatusCreated, report)
}

func (h *reportHandler) list(w http.ResponseWriter, r *http.Request) {
	institutionID, ok := queryUUID(w, r, "institution_id")
	if !ok {
		return
	}
	period := domain.Period(r.URL.Query().Get("period"))
	if !period.IsValid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "invalid period %q", period))
		return
	}
	out, err := h.service.List(r.Context(), institutionID, period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"reports": out})
}

func (h *reportHandler) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "reportID")
	if !ok {
		return
	}
	report, err := h.service.Submit(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "report submitted",
		"request_id", requestcontext.RequestID(ctx), "report_id", report.ID)
	httputil.WriteJSON(w, http.StatusOK, report)
}

type reviewReportRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

func (r *reviewReportRequest) Validate() error {
	if !r.Approved && strings.TrimSpace(r.Notes) == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection requires notes")
	}
	return nil
}

func (h *reportHandler) review(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "reportID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[reviewReportRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	report, err := h.service.Review(ctx, id, req.Approved, req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
