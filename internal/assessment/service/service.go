// Package service drives the assessment approval workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"kinerja/internal/assessment/models"
	"kinerja/internal/cache"
	indicatormodels "kinerja/internal/indicator/models"
	performancemodels "kinerja/internal/performance/models"
	"kinerja/internal/platform/metrics"
	"kinerja/internal/platform/notify"
	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/audit"
	"kinerja/pkg/platform/sentinel"
	"kinerja/pkg/requestcontext"
)

type Store interface {
	CreateIfScopeAvailable(ctx context.Context, a *models.Assessment, criteria []models.Criterion) error
	Update(ctx context.Context, a *models.Assessment) error
	UpdateCriteria(ctx context.Context, assessmentID uuid.UUID, criteria []models.Criterion) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Assessment, error)
	Criteria(ctx context.Context, assessmentID uuid.UUID) ([]models.Criterion, error)
	ListByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.Assessment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// IndicatorLister supplies the institution's indicator set for criterion
// derivation.
type IndicatorLister interface {
	ListIndicators(ctx context.Context, institutionID uuid.UUID) ([]indicatormodels.Indicator, error)
}

// SubmissionReader tells which optional indicators already have data in the
// assessed period.
type SubmissionReader interface {
	ListSubmissions(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]performancemodels.PerformanceData, error)
}

type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// PassthroughRunner runs the function without transactional guarantees.
type PassthroughRunner struct{}

func (PassthroughRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Service walks assessments through the approval state machine.
type Service struct {
	store       Store
	indicators  IndicatorLister
	submissions SubmissionReader
	txr         TxRunner
	recorder    Recorder
	dispatcher  notify.Dispatcher
	cache       cache.Cache
	metrics     *metrics.Metrics
	logger      *slog.Logger
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

func New(store Store, indicators IndicatorLister, submissions SubmissionReader, txr TxRunner, opts ...Option) *Service {
	s := &Service{
		store:       store,
		indicators:  indicators,
		submissions: submissions,
		txr:         txr,
		dispatcher:  notify.Noop{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a draft assessment for the institution and period. Criteria
// are derived from the indicator set: every mandatory indicator, plus any
// optional indicator that already has submitted data in the period. Only
// one active assessment may occupy the scope at a time.
func (s *Service) Create(ctx context.Context, institutionID uuid.UUID, period domain.Period) (*models.Assessment, []models.Criterion, error) {
	assessor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)

	a, err := models.New(uuid.New(), institutionID, assessor, period, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, nil, err
	}

	indicators, err := s.indicators.ListIndicators(ctx, institutionID)
	if err != nil {
		return nil, nil, err
	}
	if len(indicators) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "institution has no indicators to assess")
	}

	withData := make(map[uuid.UUID]bool)
	records, err := s.submissions.ListSubmissions(ctx, institutionID, period)
	if err != nil {
		return nil, nil, err
	}
	for _, record := range records {
		withData[record.IndicatorID] = true
	}

	var criteria []models.Criterion
	for _, ind := range indicators {
		if !ind.Mandatory && !withData[ind.ID] {
			continue
		}
		criteria = append(criteria, models.Criterion{
			ID:           uuid.New(),
			AssessmentID: a.ID,
			IndicatorID:  ind.ID,
			Weight:       ind.Weight,
		})
	}
	if len(criteria) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "no assessable indicators for this period")
	}

	if err := s.store.CreateIfScopeAvailable(ctx, a, criteria); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, dErrors.New(dErrors.CodeConflict, "an active assessment already exists for this institution and period")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create assessment")
	}

	s.observeTransition(models.StatusDraft)
	s.record(ctx, audit.Event{
		Action:        audit.ActionAssessmentCreated,
		InstitutionID: institutionID,
		Period:        period.String(),
		Entity:        audit.EntityRef{Kind: "assessment", ID: a.ID},
		After:         map[string]any{"status": string(a.Status), "criteria": len(criteria)},
	})
	return a, criteria, nil
}

// CriterionScore carries one criterion's assessed score.
type CriterionScore struct {
	CriterionID uuid.UUID
	Score       float64
}

// UpdateScoring applies criterion scores and recomputes the overall. The
// assessment moves to in_review; scoring a submitted or decided assessment
// is an invalid transition. Criterion and assessment rows commit together.
func (s *Service) UpdateScoring(ctx context.Context, assessmentID uuid.UUID, scores []CriterionScore) (*models.Assessment, error) {
	if len(scores) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one criterion score is required")
	}
	a, criteria, err := s.load(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.Criterion, len(criteria))
	for i := range criteria {
		byID[criteria[i].ID] = &criteria[i]
	}
	for _, sc := range scores {
		c, ok := byID[sc.CriterionID]
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeValidation, "criterion %s does not belong to this assessment", sc.CriterionID)
		}
		if sc.Score < 0 || sc.Score > 100 {
			return nil, dErrors.Newf(dErrors.CodeValidation, "criterion score %.2f out of range [0,100]", sc.Score)
		}
		v := sc.Score
		c.Score = &v
		c.Rating = scoring.RatingFor(v)
	}

	before := map[string]any{"status": string(a.Status), "overall_score": a.OverallScore}
	if err := a.BeginScoring(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	a.OverallScore, a.Rating = rollup(criteria)

	err = s.txr.Run(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateCriteria(ctx, a.ID, criteria); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update criteria")
		}
		if err := s.store.Update(ctx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update assessment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(a.Status)
	s.invalidate(ctx, a.InstitutionID, a.Period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionAssessmentScored,
		InstitutionID: a.InstitutionID,
		Period:        a.Period.String(),
		Entity:        audit.EntityRef{Kind: "assessment", ID: a.ID},
		Before:        before,
		After:         map[string]any{"status": string(a.Status), "overall_score": a.OverallScore},
	})
	return a, nil
}

// Submit locks scoring and hands the assessment to review. Every criterion
// must carry a score; a single unscored criterion blocks the transition.
func (s *Service) Submit(ctx context.Context, assessmentID uuid.UUID) (*models.Assessment, error) {
	a, criteria, err := s.load(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	for i := range criteria {
		if !criteria[i].Scored() {
			return nil, dErrors.Newf(dErrors.CodeInvalidState,
				"cannot submit: criterion for indicator %s has no score", criteria[i].IndicatorID)
		}
	}

	before := map[string]any{"status": string(a.Status)}
	if err := a.Submit(requestcontext.ActorID(ctx), requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update assessment")
	}

	s.observeTransition(a.Status)
	s.invalidate(ctx, a.InstitutionID, a.Period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionAssessmentSubmitted,
		InstitutionID: a.InstitutionID,
		Period:        a.Period.String(),
		Entity:        audit.EntityRef{Kind: "assessment", ID: a.ID},
		Before:        before,
		After:         map[string]any{"status": string(a.Status), "overall_score": a.OverallScore},
	})
	s.notifyTransition(ctx, a, "submitted for review")
	return a, nil
}

// Review records a reviewer decision on a submitted (or escalated)
// assessment.
func (s *Service) Review(ctx context.Context, assessmentID uuid.UUID, decision models.ReviewDecision, notes string) (*models.Assessment, error) {
	a, err := s.store.FindByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "assessment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assessment")
	}

	before := map[string]any{"status": string(a.Status)}
	if err := a.Review(decision, notes, requestcontext.ActorID(ctx), requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update assessment")
	}

	s.observeTransition(a.Status)
	s.invalidate(ctx, a.InstitutionID, a.Period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionAssessmentReviewed,
		InstitutionID: a.InstitutionID,
		Period:        a.Period.String(),
		Entity:        audit.EntityRef{Kind: "assessment", ID: a.ID},
		Before:        before,
		After:         map[string]any{"status": string(a.Status), "decision": string(decision)},
	})
	s.notifyTransition(ctx, a, fmt.Sprintf("reviewed: %s", decision))
	return a, nil
}

// Delete destroys a draft that never entered review.
func (s *Service) Delete(ctx context.Context, assessmentID uuid.UUID) error {
	a, err := s.store.FindByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "assessment not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assessment")
	}
	if !a.Deletable() {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot delete an assessment in status %q", a.Status)
	}
	if err := s.store.Delete(ctx, assessmentID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete assessment")
	}
	s.invalidate(ctx, a.InstitutionID, a.Period)
	return nil
}

// Get fetches an assessment with its criteria.
func (s *Service) Get(ctx context.Context, assessmentID uuid.UUID) (*models.Assessment, []models.Criterion, error) {
	a, criteria, err := s.load(ctx, assessmentID)
	if err != nil {
		return nil, nil, err
	}
	return a, criteria, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Assessment, []models.Criterion, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "assessment not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assessment")
	}
	criteria, err := s.store.Criteria(ctx, id)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load criteria")
	}
	return a, criteria, nil
}

// rollup folds scored criteria into the weighted overall. Unscored
// criteria are excluded; the overall is provisional until submission
// requires every criterion to carry a score.
func rollup(criteria []models.Criterion) (float64, scoring.Rating) {
	var scored []scoring.Criterion
	for i := range criteria {
		if criteria[i].Scored() {
			scored = append(scored, scoring.Criterion{Score: *criteria[i].Score, Weight: criteria[i].Weight})
		}
	}
	result := scoring.Overall(scored)
	return result.Achievement, result.Rating
}

func (s *Service) notifyTransition(ctx context.Context, a *models.Assessment, what string) {
	s.dispatcher.Dispatch(ctx, notify.Message{
		Kind:          notify.KindAssessmentTransition,
		InstitutionID: a.InstitutionID,
		Subject:       "Assessment " + string(a.Status),
		Body:          fmt.Sprintf("Assessment for period %s %s.", a.Period, what),
		OccurredAt:    requestcontext.Now(ctx),
	})
}

func (s *Service) observeTransition(to models.Status) {
	if s.metrics != nil {
		s.metrics.AssessmentTransitions.WithLabelValues(string(to)).Inc()
	}
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
