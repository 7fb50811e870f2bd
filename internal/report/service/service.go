// Package service manages accountability report filings.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"kinerja/internal/cache"
	"kinerja/internal/report/models"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/audit"
	"kinerja/pkg/platform/sentinel"
	"kinerja/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, r *models.Report) error
	Update(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.Report, error)
}

type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

type Service struct {
	store    Store
	recorder Recorder
	cache    cache.Cache
	logger   *slog.Logger
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

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a draft report.
func (s *Service) Create(ctx context.Context, institutionID uuid.UUID, period domain.Period, title, summary string) (*models.Report, error) {
	r, err := models.New(uuid.New(), institutionID, period, title, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	r.Summary = summary
	if err := s.store.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report")
	}

	s.invalidate(ctx, r.InstitutionID, r.Period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionReportCreated,
		InstitutionID: r.InstitutionID,
		Period:        r.Period.String(),
		Entity:        audit.EntityRef{Kind: "report", ID: r.ID},
		After:         map[string]any{"title": r.Title, "status": string(r.Status)},
	})
	return r, nil
}

// Submit files a draft report for the period.
func (s *Service) Submit(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	r, err := s.get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := r.Submit(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update report")
	}

	s.invalidate(ctx, r.InstitutionID, r.Period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionReportSubmitted,
		InstitutionID: r.InstitutionID,
		Period:        r.Period.String(),
		Entity:        audit.EntityRef{Kind: "report", ID: r.ID},
		After:         map[string]any{"title": r.Title, "status": string(r.Status)},
	})
	return r, nil
}

// Review decides a submitted report.
func (s *Service) Review(ctx context.Context, reportID uuid.UUID, approved bool, notes string) (*models.Report, error) {
	r, err := s.get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	before := map[string]any{"status": string(r.Status)}
	if err := r.Review(approved, notes, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update report")
	}

	s.invalidate(ctx, r.InstitutionID, r.Period)
	s.record(ctx, audit.Event{
		Action:        audit.ActionReportReviewed,
		InstitutionID: r.InstitutionID,
		Period:        r.Period.String(),
		Entity:        audit.EntityRef{Kind: "report", ID: r.ID},
		Before:        before,
		After:         map[string]any{"status": string(r.Status)},
	})
	return r, nil
}

// List returns the institution's reports for one period.
func (s *Service) List(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.Report, error) {
	out, err := s.store.ListByInstitutionPeriod(ctx, institutionID, period)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report")
	}
	return r, nil
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
