// Package service orchestrates performance-data submission and validation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"kinerja/internal/cache"
	indicatormodels "kinerja/internal/indicator/models"
	"kinerja/internal/performance/models"
	"kinerja/internal/performance/validation"
	"kinerja/internal/platform/metrics"
	"kinerja/internal/platform/notify"
	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/audit"
	"kinerja/pkg/platform/sentinel"
	"kinerja/pkg/requestcontext"
)

// historyLimit bounds how many prior validated submissions feed the
// validation engine's trailing checks.
const historyLimit = 3

type DataStore interface {
	Create(ctx context.Context, record *models.PerformanceData) error
	Update(ctx context.Context, record *models.PerformanceData) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PerformanceData, error)
	History(ctx context.Context, indicatorID uuid.UUID, before domain.Period, limit int) ([]models.PerformanceData, error)
	ListByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.PerformanceData, error)
}

type EvidenceStore interface {
	Create(ctx context.Context, doc *models.EvidenceDocument) error
	Update(ctx context.Context, doc *models.EvidenceDocument) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EvidenceDocument, error)
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]models.EvidenceDocument, error)
}

// IndicatorReader resolves the indicator and target context a validation
// runs against.
type IndicatorReader interface {
	GetIndicator(ctx context.Context, id uuid.UUID) (*indicatormodels.Indicator, error)
	GetTargetForPeriod(ctx context.Context, indicatorID uuid.UUID, period domain.Period) (*indicatormodels.Target, error)
}

type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Service owns the submission lifecycle: submit, attach evidence, validate.
type Service struct {
	data       DataStore
	evidence   EvidenceStore
	indicators IndicatorReader
	engine     *validation.Engine
	recorder   Recorder
	dispatcher notify.Dispatcher
	cache      cache.Cache
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithDispatcher(d notify.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(data DataStore, evidence EvidenceStore, indicators IndicatorReader, opts ...Option) *Service {
	s := &Service{
		data:       data,
		evidence:   evidence,
		indicators: indicators,
		engine:     validation.NewEngine(),
		dispatcher: notify.Noop{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitRequest carries a new actual value for an indicator and period.
type SubmitRequest struct {
	IndicatorID   uuid.UUID
	InstitutionID uuid.UUID
	Period        domain.Period
	Actual        float64
	DataSource    string
	CollectedAt   time.Time
}

// Submit records a pending submission and computes its provisional
// achievement against the period's target. A missing or unapproved target
// leaves the achievement unset; validation will surface the gap.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.PerformanceData, error) {
	ind, err := s.indicators.GetIndicator(ctx, req.IndicatorID)
	if err != nil {
		return nil, err
	}
	if ind.InstitutionID != req.InstitutionID {
		return nil, dErrors.New(dErrors.CodeForbidden, "indicator belongs to another institution")
	}

	now := requestcontext.Now(ctx)
	record, err := models.NewPerformanceData(uuid.New(), req.IndicatorID, req.InstitutionID,
		req.Period, req.Actual, req.CollectedAt, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	record.DataSource = strings.TrimSpace(req.DataSource)

	target, err := s.indicators.GetTargetForPeriod(ctx, req.IndicatorID, req.Period)
	if err != nil {
		return nil, err
	}
	if target != nil && target.Approval == indicatormodels.ApprovalApproved {
		result := scoring.Score(ind.CalculationMethod, req.Actual, target.Value)
		record.Achievement = result.Achievement
		record.Rating = result.Rating
	} else {
		record.Achievement = math.NaN()
	}

	if err := s.data.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "submission already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create submission")
	}

	s.invalidate(ctx, record.InstitutionID, record.Period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionDataSubmitted,
		InstitutionID: record.InstitutionID,
		Period:        record.Period.String(),
		Entity:        audit.EntityRef{Kind: "performance_data", ID: record.ID},
		After: map[string]any{
			"indicator_id": record.IndicatorID,
			"actual_value": record.Actual,
		},
	})
	return record, nil
}

// AttachEvidence links an uploaded document descriptor to a pending
// submission. Validated submissions no longer accept evidence.
func (s *Service) AttachEvidence(ctx context.Context, submissionID uuid.UUID, fileName string, fileSize int64, storageRef string) (*models.EvidenceDocument, error) {
	record, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if record.Validated() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "submission is already validated")
	}

	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "evidence file name is required")
	}
	if fileSize <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "evidence file size must be positive")
	}

	doc := &models.EvidenceDocument{
		ID:           uuid.New(),
		SubmissionID: record.ID,
		FileName:     fileName,
		FileSize:     fileSize,
		FileType:     strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), "."),
		StorageRef:   storageRef,
		Status:       models.EvidencePending,
		UploadedAt:   requestcontext.Now(ctx),
	}
	if err := s.evidence.Create(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store evidence")
	}

	s.invalidate(ctx, record.InstitutionID, record.Period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionEvidenceAdded,
		InstitutionID: record.InstitutionID,
		Period:        record.Period.String(),
		Entity:        audit.EntityRef{Kind: "evidence", ID: doc.ID},
		After:         map[string]any{"file_name": doc.FileName, "file_size": doc.FileSize},
	})
	return doc, nil
}

// ReviewEvidence finalizes a document's review outcome.
func (s *Service) ReviewEvidence(ctx context.Context, evidenceID uuid.UUID, status models.EvidenceStatus) (*models.EvidenceDocument, error) {
	doc, err := s.evidence.FindByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "evidence not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence")
	}
	before := map[string]any{"validation_status": string(doc.Status)}
	if err := doc.Review(status, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.evidence.Update(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update evidence")
	}

	institutionID := uuid.Nil
	if record, err := s.data.FindByID(ctx, doc.SubmissionID); err == nil {
		institutionID = record.InstitutionID
		s.invalidate(ctx, record.InstitutionID, record.Period)
	}
	s.record(ctx, audit.Event{
		Action:        audit.ActionEvidenceReviewed,
		InstitutionID: institutionID,
		Entity:        audit.EntityRef{Kind: "evidence", ID: doc.ID},
		Before:        before,
		After:         map[string]any{"validation_status": string(doc.Status)},
	})
	return doc, nil
}

// Validate runs the quality engine over a pending submission and finalizes
// the verdict. A validated submission is immutable; revalidation is a
// conflict, not a second chance.
func (s *Service) Validate(ctx context.Context, submissionID uuid.UUID) (*models.PerformanceData, *validation.Result, error) {
	record, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if record.Validated() {
		return nil, nil, dErrors.New(dErrors.CodeConflict, "submission is already validated")
	}

	ind, err := s.indicators.GetIndicator(ctx, record.IndicatorID)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.indicators.GetTargetForPeriod(ctx, record.IndicatorID, record.Period)
	if err != nil {
		return nil, nil, err
	}

	evidence, err := s.evidence.ListBySubmission(ctx, record.ID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence")
	}

	// History is advisory context. A store failure here degrades the
	// trailing checks instead of failing the whole validation.
	historyUnavailable := false
	history, err := s.data.History(ctx, record.IndicatorID, record.Period, historyLimit)
	if err != nil {
		historyUnavailable = true
		history = nil
		s.logger.WarnContext(ctx, "history read failed, skipping trailing checks",
			"submission_id", record.ID, "error", err)
	}

	now := requestcontext.Now(ctx)
	verdict := s.engine.Validate(ctx, validation.Input{
		Submission:         record,
		Indicator:          ind,
		Target:             target,
		Evidence:           evidence,
		History:            history,
		HistoryUnavailable: historyUnavailable,
		Now:                now,
	})
	result := &verdict
	s.observe(result)

	record.QualityScore = result.QualityScore
	if result.IsValid {
		record.Status = models.ValidationValidated
		record.ValidatedAt = &now
	}
	record.UpdatedAt = now
	if err := s.data.Update(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrImmutable) {
			return nil, nil, dErrors.New(dErrors.CodeConflict, "submission is already validated")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist validation result")
	}

	s.invalidate(ctx, record.InstitutionID, record.Period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionDataValidated,
		InstitutionID: record.InstitutionID,
		Period:        record.Period.String(),
		Entity:        audit.EntityRef{Kind: "performance_data", ID: record.ID},
		After: map[string]any{
			"is_valid":      result.IsValid,
			"quality_score": result.QualityScore,
			"errors":        len(result.Errors),
			"warnings":      len(result.Warnings),
		},
	})
	if result.IsValid {
		s.dispatcher.Dispatch(ctx, notify.Message{
			Kind:          notify.KindSubmissionValidated,
			InstitutionID: record.InstitutionID,
			Subject:       "Performance data validated",
			Body:          "Submission for indicator " + ind.Name + " passed validation for " + record.Period.String() + ".",
			OccurredAt:    now,
		})
	}
	return record, result, nil
}

// GetSubmission fetches one submission.
func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID) (*models.PerformanceData, error) {
	return s.getSubmission(ctx, id)
}

// ListSubmissions returns an institution's submissions in one period.
func (s *Service) ListSubmissions(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.PerformanceData, error) {
	out, err := s.data.ListByInstitutionPeriod(ctx, institutionID, period)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list submissions")
	}
	return out, nil
}

func (s *Service) getSubmission(ctx context.Context, id uuid.UUID) (*models.PerformanceData, error) {
	record, err := s.data.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "submission not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submission")
	}
	return record, nil
}

func (s *Service) observe(result *validation.Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.ValidationsRun.Inc()
	if !result.IsValid {
		s.metrics.ValidationsFailed.Inc()
	}
	s.metrics.QualityScore.Observe(result.QualityScore)
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.recorder != nil {
		s.recorder.Record(ctx, event)
	}
}

func (s *Service) invalidate(ctx context.Context, institutionID uuid.UUID, period domain.Period) {
	if s.cache == nil {
		return
	}
	scope := cache.Scope{InstitutionID: institutionID, Period: period}
	if err := s.cache.Invalidate(ctx, scope); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "scope", scope.String(), "error", err)
	}
}
