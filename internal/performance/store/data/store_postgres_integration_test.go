//go:build integration

package data_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	indicatormodels "kinerja/internal/indicator/models"
	indicatorstore "kinerja/internal/indicator/store/indicator"
	"kinerja/internal/performance/models"
	"kinerja/internal/performance/store/data"
	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	"kinerja/pkg/platform/sentinel"
	"kinerja/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *data.PostgresStore
	indicator *indicatormodels.Indicator
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = data.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "performance_data", "targets", "indicators")
	s.Require().NoError(err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	ind, err := indicatormodels.NewIndicator(uuid.New(), uuid.New(), "Service coverage",
		indicatormodels.UnitPercent, scoring.MethodPercentage, indicatormodels.CategoryInput,
		1.0, true, indicatormodels.FrequencyQuarterly, now)
	s.Require().NoError(err)
	s.indicator = ind
	s.Require().NoError(indicatorstore.NewPostgresStore(s.postgres.DB).Create(ctx, ind))
}

func (s *PostgresStoreSuite) newRecord(period domain.Period) *models.PerformanceData {
	now := time.Now().UTC().Truncate(time.Microsecond)
	record, err := models.NewPerformanceData(uuid.New(), s.indicator.ID,
		s.indicator.InstitutionID, period, 72.5, now.Add(-24*time.Hour), now)
	s.Require().NoError(err)
	record.Achievement = 90.6
	record.DataSource = "quarterly census"
	return record
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundtrip() {
	ctx := context.Background()
	record := s.newRecord("2025-Q1")
	s.Require().NoError(s.store.Create(ctx, record))

	found, err := s.store.FindByID(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(record.Actual, found.Actual)
	s.Equal(record.Achievement, found.Achievement)
	s.Equal(models.ValidationPending, found.Status)
	s.Equal(record.DataSource, found.DataSource)
	s.WithinDuration(record.CollectedAt, found.CollectedAt, time.Second)
}

func (s *PostgresStoreSuite) TestValidatedRecordIsImmutable() {
	ctx := context.Background()
	record := s.newRecord("2025-Q1")
	s.Require().NoError(s.store.Create(ctx, record))

	now := time.Now().UTC()
	record.Status = models.ValidationValidated
	record.ValidatedAt = &now
	s.Require().NoError(s.store.Update(ctx, record))

	record.Actual = 99
	err := s.store.Update(ctx, record)
	s.Require().ErrorIs(err, sentinel.ErrImmutable)
}

func (s *PostgresStoreSuite) TestUpdateMissingRecordReturnsNotFound() {
	record := s.newRecord("2025-Q1")
	err := s.store.Update(context.Background(), record)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestHistoryReturnsOnlyValidatedPriorPeriods() {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, tc := range []struct {
		period    domain.Period
		validated bool
	}{
		{"2024-Q2", true},
		{"2024-Q3", true},
		{"2024-Q4", false}, // pending records never feed the trailing average
		{"2025-Q1", true},  // not prior to the probe period
	} {
		record := s.newRecord(tc.period)
		s.Require().NoError(s.store.Create(ctx, record))
		if tc.validated {
			record.Status = models.ValidationValidated
			record.ValidatedAt = &now
			s.Require().NoError(s.store.Update(ctx, record))
		}
	}

	history, err := s.store.History(ctx, s.indicator.ID, "2025-Q1", 3)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(domain.Period("2024-Q3"), history[0].Period)
	s.Equal(domain.Period("2024-Q2"), history[1].Period)
}
