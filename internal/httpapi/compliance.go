package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kinerja/internal/compliance"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/httputil"
)

// ComplianceService runs a compliance aggregation for one institution and
// period.
type ComplianceService interface {
	Run(ctx context.Context, institutionID uuid.UUID, period domain.Period) (*compliance.Report, error)
}

type complianceHandler struct {
	service ComplianceService
	logger  *slog.Logger
}

func (h *complianceHandler) register(r chi.Router) {
	r.Get("/institutions/{institutionID}/compliance/{period}", h.report)
}

func (h *complianceHandler) report(w http.ResponseWriter, r *http.Request) {
	institutionID, ok := pathUUID(w, r, "institutionID")
	if !ok {
		return
	}
	period := domain.Period(chi.URLParam(r, "period"))
	if !period.IsValid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "invalid period %q", period))
		return
	}
	report, err := h.service.Run(r.Context(), institutionID, period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
