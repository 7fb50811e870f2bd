// Package service orchestrates indicator and target management.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"kinerja/internal/cache"
	"kinerja/internal/indicator/models"
	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/audit"
	"kinerja/pkg/platform/sentinel"
	"kinerja/pkg/requestcontext"
)

type IndicatorStore interface {
	Create(ctx context.Context, ind *models.Indicator) error
	Update(ctx context.Context, ind *models.Indicator) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Indicator, error)
	ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]models.Indicator, error)
}

type TargetStore interface {
	CreateIfScopeAvailable(ctx context.Context, t *models.Target) error
	Update(ctx context.Context, t *models.Target) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Target, error)
	FindByScope(ctx context.Context, indicatorID uuid.UUID, period domain.Period) (*models.Target, error)
}

// DataFlagger marks existing submissions of an indicator as requiring
// review after a critical indicator field changes.
type DataFlagger interface {
	FlagForReview(ctx context.Context, indicatorID uuid.UUID, reason string) (int, error)
}

// TxRunner executes a function atomically. The in-memory wiring uses a
// pass-through runner; production uses pkg/platform/tx.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// PassthroughRunner runs the function without transactional guarantees.
// Suitable for in-memory stores whose individual operations are atomic.
type PassthroughRunner struct{}

func (PassthroughRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Service orchestrates indicator and target lifecycles.
type Service struct {
	indicators IndicatorStore
	targets    TargetStore
	flagger    DataFlagger
	txr        TxRunner
	recorder   Recorder
	cache      cache.Cache
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithDataFlagger(f DataFlagger) Option {
	return func(s *Service) { s.flagger = f }
}

func New(indicators IndicatorStore, targets TargetStore, txr TxRunner, opts ...Option) *Service {
	s := &Service{
		indicators: indicators,
		targets:    targets,
		txr:        txr,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIndicatorRequest carries the fields for a new indicator, optionally
// with its first target so both commit atomically.
type CreateIndicatorRequest struct {
	InstitutionID     uuid.UUID
	Name              string
	Description       string
	Unit              models.MeasurementUnit
	CollectionMethod  string
	CalculationMethod scoring.CalculationMethod
	Category          models.Category
	Weight            float64
	Mandatory         bool
	Frequency         models.Frequency

	// InitialTarget, when set, is created in the same transaction.
	InitialTarget *InitialTarget
}

type InitialTarget struct {
	Period domain.Period
	Value  float64
	Weight float64
}

// CreateIndicator registers an indicator and, when requested, its first
// target. Either both commit or neither does.
func (s *Service) CreateIndicator(ctx context.Context, req CreateIndicatorRequest) (*models.Indicator, error) {
	now := requestcontext.Now(ctx)
	ind, err := models.NewIndicator(uuid.New(), req.InstitutionID, req.Name, req.Unit,
		req.CalculationMethod, req.Category, req.Weight, req.Mandatory, req.Frequency, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	ind.Description = strings.TrimSpace(req.Description)
	ind.CollectionMethod = strings.TrimSpace(req.CollectionMethod)

	var target *models.Target
	if req.InitialTarget != nil {
		target, err = models.NewTarget(uuid.New(), ind.ID, req.InitialTarget.Period,
			req.InitialTarget.Value, req.InitialTarget.Weight, now)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return nil, dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return nil, err
		}
	}

	err = s.txr.Run(ctx, func(ctx context.Context) error {
		if err := s.indicators.Create(ctx, ind); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create indicator")
		}
		if target != nil {
			if err := s.targets.CreateIfScopeAvailable(ctx, target); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "a target already exists for this indicator and period")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create initial target")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if target != nil {
		s.invalidate(ctx, ind.InstitutionID, target.Period)
	}
	s.record(ctx, audit.Event{
		Action:        audit.ActionIndicatorCreated,
		InstitutionID: ind.InstitutionID,
		Entity:        audit.EntityRef{Kind: "indicator", ID: ind.ID},
		After:         map[string]any{"name": ind.Name, "category": string(ind.Category)},
	})
	return ind, nil
}

// UpdateIndicatorRequest carries mutable descriptive fields. Nil pointers
// leave the field unchanged.
type UpdateIndicatorRequest struct {
	Name             *string
	Description      *string
	CollectionMethod *string
	Weight           *float64
	Mandatory        *bool
	Frequency        *models.Frequency

	// Category and Unit are critical fields: changing either flags existing
	// submissions for explicit re-review.
	Category *models.Category
	Unit     *models.MeasurementUnit
}

// UpdateIndicator applies descriptive changes. A category or measurement
// unit change never silently revalidates historical data; affected
// submissions are flagged requires_review inside the same transaction.
func (s *Service) UpdateIndicator(ctx context.Context, id uuid.UUID, req UpdateIndicatorRequest) (*models.Indicator, error) {
	ind, err := s.indicators.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "indicator not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load indicator")
	}

	before := map[string]any{"category": string(ind.Category), "measurement_unit": string(ind.Unit)}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "indicator name cannot be empty")
		}
		ind.Name = name
	}
	if req.Description != nil {
		ind.Description = strings.TrimSpace(*req.Description)
	}
	if req.CollectionMethod != nil {
		ind.CollectionMethod = strings.TrimSpace(*req.CollectionMethod)
	}
	if req.Weight != nil {
		if *req.Weight <= 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "indicator weight must be positive")
		}
		ind.Weight = *req.Weight
	}
	if req.Mandatory != nil {
		ind.Mandatory = *req.Mandatory
	}
	if req.Frequency != nil {
		if !req.Frequency.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "invalid frequency %q", *req.Frequency)
		}
		ind.Frequency = *req.Frequency
	}

	critical := false
	if req.Category != nil && *req.Category != ind.Category {
		if !req.Category.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "invalid category %q", *req.Category)
		}
		ind.Category = *req.Category
		critical = true
	}
	if req.Unit != nil && *req.Unit != ind.Unit {
		if !req.Unit.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "invalid measurement unit %q", *req.Unit)
		}
		ind.Unit = *req.Unit
		critical = true
	}
	ind.UpdatedAt = requestcontext.Now(ctx)

	flagged := 0
	err = s.txr.Run(ctx, func(ctx context.Context) error {
		if err := s.indicators.Update(ctx, ind); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update indicator")
		}
		if critical && s.flagger != nil {
			n, err := s.flagger.FlagForReview(ctx, ind.ID, "critical indicator field changed")
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to flag submissions for review")
			}
			flagged = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{
		Action:        audit.ActionIndicatorUpdated,
		InstitutionID: ind.InstitutionID,
		Entity:        audit.EntityRef{Kind: "indicator", ID: ind.ID},
		Before:        before,
		After:         map[string]any{"category": string(ind.Category), "measurement_unit": string(ind.Unit)},
	})
	if critical {
		s.logger.InfoContext(ctx, "flagged submissions for review",
			"indicator_id", ind.ID, "count", flagged, "log_type", "audit")
		s.record(ctx, audit.Event{
			Action:        audit.ActionIndicatorFlagged,
			InstitutionID: ind.InstitutionID,
			Entity:        audit.EntityRef{Kind: "indicator", ID: ind.ID},
			After:         map[string]any{"flagged_submissions": flagged},
		})
	}
	return ind, nil
}

// GetIndicator fetches one indicator.
func (s *Service) GetIndicator(ctx context.Context, id uuid.UUID) (*models.Indicator, error) {
	ind, err := s.indicators.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "indicator not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load indicator")
	}
	return ind, nil
}

// ListIndicators returns all indicators owned by an institution.
func (s *Service) ListIndicators(ctx context.Context, institutionID uuid.UUID) ([]models.Indicator, error) {
	out, err := s.indicators.ListByInstitution(ctx, institutionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list indicators")
	}
	return out, nil
}

// CreateTarget sets the planned value for an indicator and period. The
// store enforces the one-target-per-scope invariant atomically.
func (s *Service) CreateTarget(ctx context.Context, indicatorID uuid.UUID, period domain.Period, value, weight float64) (*models.Target, error) {
	ind, err := s.GetIndicator(ctx, indicatorID)
	if err != nil {
		return nil, err
	}

	target, err := models.NewTarget(uuid.New(), indicatorID, period, value, weight, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.targets.CreateIfScopeAvailable(ctx, target); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a target already exists for this indicator and period")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create target")
	}

	s.invalidate(ctx, ind.InstitutionID, period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionTargetCreated,
		InstitutionID: ind.InstitutionID,
		Period:        period.String(),
		Entity:        audit.EntityRef{Kind: "target", ID: target.ID},
		After:         map[string]any{"value": value, "period": period.String()},
	})
	return target, nil
}

// ReviewTarget approves or rejects a pending target.
func (s *Service) ReviewTarget(ctx context.Context, targetID uuid.UUID, decision models.ApprovalStatus) (*models.Target, error) {
	if decision != models.ApprovalApproved && decision != models.ApprovalRejected {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid target decision %q", decision)
	}
	target, err := s.targets.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "target not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load target")
	}
	if target.Approval != models.ApprovalPending {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "target already %s", target.Approval)
	}

	before := map[string]any{"approval_status": string(target.Approval)}
	target.Approval = decision
	target.UpdatedAt = requestcontext.Now(ctx)
	if err := s.targets.Update(ctx, target); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update target")
	}

	ind, err := s.GetIndicator(ctx, target.IndicatorID)
	institutionID := uuid.Nil
	if err == nil {
		institutionID = ind.InstitutionID
		s.invalidate(ctx, institutionID, target.Period)
	}
	s.record(ctx, audit.Event{
		Action:        audit.ActionTargetReviewed,
		InstitutionID: institutionID,
		Period:        target.Period.String(),
		Entity:        audit.EntityRef{Kind: "target", ID: target.ID},
		Before:        before,
		After:         map[string]any{"approval_status": string(decision)},
	})
	return target, nil
}

// GetTargetForPeriod looks up the target occupying a scope, nil when unset.
func (s *Service) GetTargetForPeriod(ctx context.Context, indicatorID uuid.UUID, period domain.Period) (*models.Target, error) {
	target, err := s.targets.FindByScope(ctx, indicatorID, period)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load target")
	}
	return target, nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.recorder != nil {
		s.recorder.Record(ctx, event)
	}
}

// invalidate drops cached aggregates in the mutation's scope before the
// operation returns.
func (s *Service) invalidate(ctx context.Context, institutionID uuid.UUID, period domain.Period) {
	if s.cache == nil {
		return
	}
	scope := cache.Scope{InstitutionID: institutionID, Period: period}
	if err := s.cache.Invalidate(ctx, scope); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "scope", scope.String(), "error", err)
	}
}
