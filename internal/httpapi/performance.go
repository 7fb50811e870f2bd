package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kinerja/internal/performance/models"
	performanceservice "kinerja/internal/performance/service"
	"kinerja/internal/performance/validation"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/httputil"
	"kinerja/pkg/requestcontext"
)

// PerformanceService is the slice of the performance service the HTTP layer
// consumes.
type PerformanceService interface {
	Submit(ctx context.Context, req performanceservice.SubmitRequest) (*models.PerformanceData, error)
	Validate(ctx context.Context, submissionID uuid.UUID) (*models.PerformanceData, *validation.Result, error)
	AttachEvidence(ctx context.Context, submissionID uuid.UUID, fileName string, fileSize int64, storageRef string) (*models.EvidenceDocument, error)
	ReviewEvidence(ctx context.Context, evidenceID uuid.UUID, status models.EvidenceStatus) (*models.EvidenceDocument, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*models.PerformanceData, error)
	ListSubmissions(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.PerformanceData, error)
}

type performanceHandler struct {
	service PerformanceService
	logger  *slog.Logger
}

func (h *performanceHandler) register(r chi.Router) {
	r.Post("/performance-data", h.submit)
	r.Get("/performance-data", h.list)
	r.Get("/performance-data/{submissionID}", h.get)
	r.Post("/performance-data/{submissionID}/validate", h.validate)
	r.Post("/performance-data/{submissionID}/evidence", h.attachEvidence)
	r.Post("/evidence/{evidenceID}/review", h.reviewEvidence)
}

type submitPerformanceRequest struct {
	IndicatorID   string    `json:"indicator_id"`
	InstitutionID string    `json:"institution_id"`
	Period        string    `json:"period"`
	Actual        float64   `json:"actual"`
	DataSource    string    `json:"data_source"`
	CollectedAt   time.Time `json:"collected_at"`

	parsedIndicatorID   uuid.UUID
	parsedInstitutionID uuid.UUID
}

func (r *submitPerformanceRequest) Validate() error {
	indicatorID, err := uuid.Parse(r.IndicatorID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "indicator_id must be a valid UUID")
	}
	institutionID, err := uuid.Parse(r.InstitutionID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "institution_id must be a valid UUID")
	}
	if !domain.Period(r.Period).IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid period %q", r.Period)
	}
	if r.CollectedAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "collected_at is required")
	}
	r.parsedIndicatorID = indicatorID
	r.parsedInstitutionID = institutionID
	return nil
}

func (h *performanceHandler) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[submitPerformanceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.service.Submit(ctx, performanceservice.SubmitRequest{
		IndicatorID:   req.parsedIndicatorID,
		InstitutionID: req.parsedInstitutionID,
		Period:        domain.Period(req.Period),
		Actual:        req.Actual,
		DataSource:    req.DataSource,
		CollectedAt:   req.CollectedAt,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "performance data submitted",
		"request_id", requestcontext.RequestID(ctx), "submission_id", record.ID)
	httputil.WriteJSON(w, http.StatusCreated, record)
}

func (h *performanceHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "submissionID")
	if !ok {
		return
	}
	record, err := h.service.GetSubmission(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *performanceHandler) list(w http.ResponseWriter, r *http.Request) {
	institutionID, ok := queryUUID(w, r, "institution_id")
	if !ok {
		return
	}
	period := domain.Period(r.URL.Query().Get("period"))
	if !period.IsValid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "invalid period %q", period))
		return
	}
	out, err := h.service.ListSubmissions(r.Context(), institutionID, period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"submissions": out})
}

func (h *performanceHandler) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "submissionID")
	if !ok {
		return
	}
	record, result, err := h.service.Validate(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "submission validated",
		"request_id", requestcontext.RequestID(ctx),
		"submission_id", record.ID, "valid", result.IsValid, "quality_score", result.QualityScore)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"submission": record,
		"result":     result,
	})
}

type attachEvidenceRequest struct {
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	StorageRef string `json:"storage_ref"`
}

func (r *attachEvidenceRequest) Validate() error {
	if strings.TrimSpace(r.FileName) == "" {
		return dErrors.New(dErrors.CodeValidation, "file_name is required")
	}
	if r.FileSize <= 0 {
		return dErrors.New(dErrors.CodeValidation, "file_size must be positive")
	}
	return nil
}

func (h *performanceHandler) attachEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "submissionID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[attachEvidenceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	doc, err := h.service.AttachEvidence(ctx, id, req.FileName, req.FileSize, req.StorageRef)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

type reviewEvidenceRequest struct {
	Status string `json:"status"`
}

func (r *reviewEvidenceRequest) Validate() error {
	if strings.TrimSpace(r.Status) == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}

func (h *performanceHandler) reviewEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "evidenceID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[reviewEvidenceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	doc, err := h.service.ReviewEvidence(ctx, id, models.EvidenceStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}
