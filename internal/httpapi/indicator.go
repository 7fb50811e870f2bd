package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kinerja/internal/indicator/models"
	indicatorservice "kinerja/internal/indicator/service"
	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/httputil"
	"kinerja/pkg/requestcontext"
)

// IndicatorService is the slice of the indicator service the HTTP layer
// consumes.
type IndicatorService interface {
	CreateIndicator(ctx context.Context, req indicatorservice.CreateIndicatorRequest) (*models.Indicator, error)
	UpdateIndicator(ctx context.Context, id uuid.UUID, req indicatorservice.UpdateIndicatorRequest) (*models.Indicator, error)
	GetIndicator(ctx context.Context, id uuid.UUID) (*models.Indicator, error)
	ListIndicators(ctx context.Context, institutionID uuid.UUID) ([]models.Indicator, error)
	CreateTarget(ctx context.Context, indicatorID uuid.UUID, period domain.Period, value, weight float64) (*models.Target, error)
	ReviewTarget(ctx context.Context, targetID uuid.UUID, decision models.ApprovalStatus) (*models.Target, error)
	GetTargetForPeriod(ctx context.Context, indicatorID uuid.UUID, period domain.Period) (*models.Target, error)
}

type indicatorHandler struct {
	service IndicatorService
	logger  *slog.Logger
}

func (h *indicatorHandler) register(r chi.Router) {
	r.Post("/indicators", h.create)
	r.Get("/indicators", h.list)
	r.Get("/indicators/{indicatorID}", h.get)
	r.Patch("/indicators/{indicatorID}", h.update)
	r.Post("/indicators/{indicatorID}/targets", h.createTarget)
	r.Get("/indicators/{indicatorID}/targets/{period}", h.getTarget)
	r.Post("/targets/{targetID}/review", h.reviewTarget)
}

type createIndicatorRequest struct {
	InstitutionID     string  `json:"institution_id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	MeasurementUnit   string  `json:"measurement_unit"`
	CollectionMethod  string  `json:"collection_method"`
	CalculationMethod string  `json:"calculation_method"`
	Category          string  `json:"category"`
	Weight            float64 `json:"weight"`
	Mandatory         bool    `json:"mandatory"`
	Frequency         string  `json:"frequency"`

	InitialTarget *initialTargetRequest `json:"initial_target,omitempty"`

	parsedInstitutionID uuid.UUID
}

type initialTargetRequest struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

func (r *createIndicatorRequest) Validate() error {
	institutionID, err := uuid.Parse(r.InstitutionID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "institution_id must be a valid UUID")
	}
	r.parsedInstitutionID = institutionID
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.InitialTarget != nil && !domain.Period(r.InitialTarget.Period).IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid initial target period %q", r.InitialTarget.Period)
	}
	return nil
}

func (h *indicatorHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createIndicatorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	domainReq := indicatorservice.CreateIndicatorRequest{
		InstitutionID:     req.parsedInstitutionID,
		Name:              req.Name,
		Description:       req.Description,
		Unit:              models.MeasurementUnit(req.MeasurementUnit),
		CollectionMethod:  req.CollectionMethod,
		CalculationMethod: scoring.CalculationMethod(req.CalculationMethod),
		Category:          models.Category(req.Category),
		Weight:            req.Weight,
		Mandatory:         req.Mandatory,
		Frequency:         models.Frequency(req.Frequency),
	}
	if req.InitialTarget != nil {
		domainReq.InitialTarget = &indicatorservice.InitialTarget{
			Period: domain.Period(req.InitialTarget.Period),
			Value:  req.InitialTarget.Value,
			Weight: req.InitialTarget.Weight,
		}
	}

	ind, err := h.service.CreateIndicator(ctx, domainReq)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "indicator created",
		"request_id", requestcontext.RequestID(ctx), "indicator_id", ind.ID)
	httputil.WriteJSON(w, http.StatusCreated, ind)
}

type updateIndicatorRequest struct {
	Name             *string  `json:"name,omitempty"`
	Description      *string  `json:"description,omitempty"`
	CollectionMethod *string  `json:"collection_method,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
	Mandatory        *bool    `json:"mandatory,omitempty"`
	Frequency        *string  `json:"frequency,omitempty"`
	Category         *string  `json:"category,omitempty"`
	MeasurementUnit  *string  `json:"measurement_unit,omitempty"`
}

func (r *updateIndicatorRequest) Validate() error { return nil }

func (h *indicatorHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(w, r, "indicatorID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[updateIndicatorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	domainReq := indicatorservice.UpdateIndicatorRequest{
		Name:             req.Name,
		Description:      req.Description,
		CollectionMethod: req.CollectionMethod,
		Weight:           req.Weight,
		Mandatory:        req.Mandatory,
	}
	if req.Frequency != nil {
		f := models.Frequency(*req.Frequency)
		domainReq.Frequency = &f
	}
	if req.Category != nil {
		c := models.Category(*req.Category)
		domainReq.Category = &c
	}
	if req.MeasurementUnit != nil {
		u := models.MeasurementUnit(*req.MeasurementUnit)
		domainReq.Unit = &u
	}

	ind, err := h.service.UpdateIndicator(ctx, id, domainReq)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ind)
}

func (h *indicatorHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "indicatorID")
	if !ok {
		return
	}
	ind, err := h.service.GetIndicator(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ind)
}

func (h *indicatorHandler) list(w http.ResponseWriter, r *http.Request) {
	institutionID, ok := queryUUID(w, r, "institution_id")
	if !ok {
		return
	}
	out, err := h.service.ListIndicators(r.Context(), institutionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"indicators": out})
}

type createTargetRequest struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

func (r *createTargetRequest) Validate() error {
	if !domain.Period(r.Period).IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid period %q", r.Period)
	}
	return nil
}

func (h *indicatorHandler) createTarget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	indicatorID, ok := pathUUID(w, r, "indicatorID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[createTargetRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	target, err := h.service.CreateTarget(ctx, indicatorID, domain.Period(req.Period), req.Value, req.Weight)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, target)
}

func (h *indicatorHandler) getTarget(w http.ResponseWriter, r *http.Request) {
	indicatorID, ok := pathUUID(w, r, "indicatorID")
	if !ok {
		return
	}
	period := domain.Period(chi.URLParam(r, "period"))
	if !period.IsValid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "invalid period %q", period))
		return
	}
	target, err := h.service.GetTargetForPeriod(r.Context(), indicatorID, period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if target == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no target for this period"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, target)
}

type reviewTargetRequest struct {
	Decision string `json:"decision"`
}

func (r *reviewTargetRequest) Validate() error {
	if strings.TrimSpace(r.Decision) == "" {
		return dErrors.New(dErrors.CodeValidation, "decision is required")
	}
	return nil
}

func (h *indicatorHandler) reviewTarget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID, ok := pathUUID(w, r, "targetID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[reviewTargetRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	target, err := h.service.ReviewTarget(ctx, targetID, models.ApprovalStatus(req.Decision))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, target)
}
