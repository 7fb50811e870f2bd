package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kinerja/internal/cache"
	"kinerja/internal/indicator/models"
	indicatorstore "kinerja/internal/indicator/store/indicator"
	targetstore "kinerja/internal/indicator/store/target"
	"kinerja/internal/scoring"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/audit"
	"kinerja/pkg/requestcontext"
)

type recordingRecorder struct {
	events []audit.Event
}

func (r *recordingRecorder) Record(_ context.Context, event audit.Event) {
	r.events = append(r.events, event)
}

// recordingCache tracks which scopes mutations invalidate.
type recordingCache struct {
	invalidated []cache.Scope
}

func (c *recordingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *recordingCache) Set(context.Context, cache.Scope, string, []byte) error {
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, scope cache.Scope) error {
	c.invalidated = append(c.invalidated, scope)
	return nil
}

type ServiceSuite struct {
	suite.Suite

	ctx      context.Context
	recorder *recordingRecorder
	cache    *recordingCache
	svc      *Service

	institutionID uuid.UUID
	now           time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.recorder = &recordingRecorder{}
	s.cache = &recordingCache{}
	s.institutionID = uuid.New()
	s.svc = New(indicatorstore.NewInMemoryStore(), targetstore.NewInMemoryStore(),
		PassthroughRunner{}, WithRecorder(s.recorder), WithCache(s.cache))
}

func (s *ServiceSuite) createRequest() CreateIndicatorRequest {
	return CreateIndicatorRequest{
		InstitutionID:     s.institutionID,
		Name:              "Service coverage",
		Unit:              models.UnitPercent,
		CalculationMethod: scoring.MethodPercentage,
		Category:          models.CategoryInput,
		Weight:            1.0,
		Mandatory:         true,
		Frequency:         models.FrequencyQuarterly,
	}
}

func (s *ServiceSuite) TestCreateIndicatorWithoutTargetSkipsInvalidation() {
	_, err := s.svc.CreateIndicator(s.ctx, s.createRequest())
	s.Require().NoError(err)
	s.Empty(s.cache.invalidated)
}

func (s *ServiceSuite) TestCreateIndicatorWithInitialTargetDropsCachedAggregates() {
	// === The atomically created first target changes compliance inputs for
	// its period, so cached aggregates in that scope must be dropped ===
	req := s.createRequest()
	req.InitialTarget = &InitialTarget{Period: "2025-Q1", Value: 80, Weight: 1.0}

	ind, err := s.svc.CreateIndicator(s.ctx, req)
	s.Require().NoError(err)

	want := cache.Scope{InstitutionID: s.institutionID, Period: "2025-Q1"}
	s.Contains(s.cache.invalidated, want)

	target, err := s.svc.GetTargetForPeriod(s.ctx, ind.ID, "2025-Q1")
	s.Require().NoError(err)
	s.Require().NotNil(target)
	s.Equal(models.ApprovalPending, target.Approval)
}

func (s *ServiceSuite) TestCreateTargetConflictOnOccupiedScope() {
	req := s.createRequest()
	req.InitialTarget = &InitialTarget{Period: "2025-Q1", Value: 80, Weight: 1.0}
	ind, err := s.svc.CreateIndicator(s.ctx, req)
	s.Require().NoError(err)

	_, err = s.svc.CreateTarget(s.ctx, ind.ID, "2025-Q1", 90, 1.0)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
