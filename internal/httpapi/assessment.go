package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kinerja/internal/assessment/models"
	assessmentservice "kinerja/internal/assessment/service"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/httputil"
	"kinerja/pkg/requestcontext"
)

// AssessmentService is the slice of the assessment service the HTTP layer
// consumes.
type AssessmentService interface {
	Create(ctx context.Context, institutionID uuid.UUID, period domain.Period) (*models.Assessment, []models.Criterion, error)
	UpdateScoring(ctx context.Context, id uuid.UUID, scores []assessmentservice.CriterionScore) (*models.Assessment, error)
	Submit(ctx context.Context, id uuid.UUID) (*models.Assessment, error)
	Review(ctx context.Context, id uuid.UUID, decision models.ReviewDecision, notes string) (*models.Assessment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Assessment, []models.Criterion, error)
}

type assessmentHandler struct {
	service AssessmentService
	logger  *slog.Logger
}

func (h *assessmentHandler) register(r chi.Router) {
	r.Post("/assessments", h.create)
	r.Get("/assessments/{assessmentID}", h.get)
	r.Delete("/assessments/{assessmentID}", h.delete)
	r.Post("/assessments/{assessmentID}/scores", h.updateScoring)
	r.Post("/assessments/{assessmentID}/submit", h.submit)
	r.Post("/assessments/{assessmentID}/review", h.review)
}

type createAssessmentRequest struct {
	InstitutionID string `json:"institution_id"`
	Period        string `json:"period"`

	parsedInstitutionID uuid.UUID
}

func (r *createAssessmentRequest) Validate() error {
	institutionID, err := uuid.Parse(r.InstitutionID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "institution_id must be a valid UUID")
	}
	if !domain.Period(r.Period).IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid period %q", r.Period)
	}
	r.parsedInstitutionID = institutionID
	return nil
}

type assessmentResponse struct {
	Assessment *models.Assessment `json:"assessment"`
	Criteria   []models.Criterion `json:"criteria"`
}

func (h *assessmentHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createAssessmentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, criteria, err := h.service.Create(ctx, req.parsedInstitutionID, domain.Period(req.Period))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "assessment opened",
		"request_id", requestcontext.RequestID(ctx), "assessment_id", a.ID, "criteria", len(criteria))
	httputil.WriteJSON(w, http.StatusCreated, assessmentResponse{Assessment: a, Criteria: criteria})
}

func (h *assessmentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "assessmentID")
	if !ok {
		return
	}
	a, criteria, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, assessmentResponse{Assessment: a, Criteria: criteria})
}

func (h *assessmentHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "assessmentID")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateScoringRequest struct {
	Scores []criterionScoreRequest `json:"scores"`

	parsed []assessmentservice.CriterionScore
}

type criterionScoreRequest struct {
	CriterionID string  `json:"criterion_id"`
	Score       float64 `json:"score"`
}

func (r *updateScoringRequest) Validate() error {
	if len(r.Scores) == 0 {
		return dErrors.New(dErrors.CodeValidation, "scores must not be empty")
	}
	r.parsed = make([]assessmentservice.CriterionScore, 0, len(r.Scores))
	for _, sc := range r.Scores {
		id, err := uuid.Parse(sc.CriterionID)
		if err != nil {
			return dErrors.Newf(dErrors.CodeValidation, "criterion_id %q is not a valid UUID", sc.CriterionID)
		}
		r.parsed = append(r.parsed, assessmentservice.CriterionScore{CriterionID: id, Score: sc.Score})
	}
	return nil
}

func (h *assessmentHandler) updateScoring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "assessmentID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[updateScoringRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.UpdateScoring(ctx, id, req.parsed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *assessmentHandler) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "assessmentID")
	if !ok {
		return
	}
	a, err := h.service.Submit(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "assessment submitted",
		"request_id", requestcontext.RequestID(ctx), "assessment_id", a.ID)
	httputil.WriteJSON(w, http.StatusOK, a)
}

type reviewAssessmentRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (r *reviewAssessmentRequest) Validate() error {
	if strings.TrimSpace(r.Decision) == "" {
		return dErrors.New(dErrors.CodeValidation, "decision is required")
	}
	return nil
}

func (h *assessmentHandler) review(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "assessmentID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[reviewAssessmentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.Review(ctx, id, models.ReviewDecision(req.Decision), req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "assessment reviewed",
		"request_id", requestcontext.RequestID(ctx), "assessment_id", a.ID, "status", a.Status)
	httputil.WriteJSON(w, http.StatusOK, a)
}
