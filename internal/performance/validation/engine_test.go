package validation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	indicatormodels "kinerja/internal/indicator/models"
	"kinerja/internal/performance/models"
	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
)

type EngineSuite struct {
	suite.Suite
	engine *Engine
	now    time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = NewEngine()
	s.now = time.Date(2024, time.April, 10, 9, 0, 0, 0, time.UTC)
}

// input builds a submission that passes every stage unless mutated.
func (s *EngineSuite) input() Input {
	indicator := &indicatormodels.Indicator{
		ID:                uuid.New(),
		InstitutionID:     uuid.New(),
		Name:              "service coverage",
		Unit:              indicatormodels.UnitPercent,
		CollectionMethod:  "administrative records",
		CalculationMethod: scoring.MethodPercentage,
		Category:          indicatormodels.CategoryInput,
		Weight:            1,
		Frequency:         indicatormodels.FrequencyQuarterly,
	}
	submission := &models.PerformanceData{
		ID:            uuid.New(),
		IndicatorID:   indicator.ID,
		InstitutionID: indicator.InstitutionID,
		Period:        domain.Period("2024-Q1"),
		Actual:        85,
		DataSource:    "ministry registry",
		CollectedAt:   time.Date(2024, time.March, 28, 0, 0, 0, 0, time.UTC),
	}
	return Input{
		Submission: submission,
		Indicator:  indicator,
		Target: &indicatormodels.Target{
			ID:          uuid.New(),
			IndicatorID: indicator.ID,
			Period:      submission.Period,
			Value:       90,
			Weight:      1,
		},
		Evidence: []models.EvidenceDocument{{
			ID:         uuid.New(),
			FileName:   "budget_report.pdf",
			FileSize:   1 << 20,
			UploadedAt: time.Date(2024, time.March, 29, 0, 0, 0, 0, time.UTC),
		}},
		History: []models.PerformanceData{
			{Actual: 82}, {Actual: 80}, {Actual: 84},
		},
		Now: s.now,
	}
}

// =============================================================================
// Verdict Shape Tests
// =============================================================================

func (s *EngineSuite) TestCleanSubmissionScoresExactly100() {
	result := s.engine.Validate(context.Background(), s.input())

	s.True(result.IsValid)
	s.Empty(result.Errors)
	s.Empty(result.Warnings)
	s.Equal(100.0, result.QualityScore)
}

func (s *EngineSuite) TestQualityScoreAlwaysInRange() {
	in := s.input()
	in.Submission.Actual = -5
	in.Submission.CollectedAt = s.now.Add(48 * time.Hour)
	in.Target.Value = -1
	in.Evidence = nil
	in.History = nil

	result := s.engine.Validate(context.Background(), in)
	s.GreaterOrEqual(result.QualityScore, 0.0)
	s.LessOrEqual(result.QualityScore, 100.0)
	s.False(result.IsValid)
}

func (s *EngineSuite) TestFailedStageNeverAbortsLaterStages() {
	in := s.input()
	in.Submission.Actual = 130                     // range error
	in.Submission.CollectedAt = s.now.Add(24 * time.Hour) // temporal error

	result := s.engine.Validate(context.Background(), in)
	// Both stages reported despite the first failing.
	s.Len(result.Errors, 2)
}

// =============================================================================
// Stage 1: Completeness
// =============================================================================

func (s *EngineSuite) TestCompleteness() {
	s.Run("missing actual value is an error", func() {
		in := s.input()
		in.Submission.Actual = math.NaN()
		result := s.engine.Validate(context.Background(), in)
		s.Contains(result.Errors[0], "actual value is missing")
	})

	s.Run("missing collection date is an error", func() {
		in := s.input()
		in.Submission.CollectedAt = time.Time{}
		result := s.engine.Validate(context.Background(), in)
		s.Contains(result.Errors[0], "collection date is missing")
	})

	s.Run("missing source and method is only a warning", func() {
		in := s.input()
		in.Submission.DataSource = ""
		in.Indicator.CollectionMethod = ""
		result := s.engine.Validate(context.Background(), in)
		s.Empty(result.Errors)
		s.Len(result.Warnings, 1)
	})
}

// =============================================================================
// Stage 2: Value Range
// =============================================================================

func (s *EngineSuite) TestValueRange() {
	s.Run("percentage outside bounds", func() {
		in := s.input()
		in.Submission.Actual = 101
		result := s.engine.Validate(context.Background(), in)
		s.Len(result.Errors, 1)
	})

	s.Run("negative ratio", func() {
		in := s.input()
		in.Indicator.Unit = indicatormodels.UnitRatio
		in.Submission.Actual = -0.5
		result := s.engine.Validate(context.Background(), in)
		s.Len(result.Errors, 1)
	})

	s.Run("fractional count is a warning, negative count an error", func() {
		in := s.input()
		in.Indicator.Unit = indicatormodels.UnitCount
		in.Submission.Actual = 12.5
		in.History = []models.PerformanceData{{Actual: 12}, {Actual: 13}}
		in.Target.Value = 13
		result := s.engine.Validate(context.Background(), in)
		s.Empty(result.Errors)
		s.Len(result.Warnings, 1)

		in.Submission.Actual = -3
		result = s.engine.Validate(context.Background(), in)
		s.NotEmpty(result.Errors)
	})

	s.Run("scale_100 index above 100", func() {
		in := s.input()
		in.Indicator.Unit = indicatormodels.UnitScale100
		in.Submission.Actual = 105
		result := s.engine.Validate(context.Background(), in)
		s.Len(result.Errors, 1)
	})

	s.Run("plain index above 100 is fine", func() {
		in := s.input()
		in.Indicator.Unit = indicatormodels.UnitIndex
		in.Submission.Actual = 140
		in.History = []models.PerformanceData{{Actual: 135}}
		in.Target.Value = 140
		result := s.engine.Validate(context.Background(), in)
		s.Empty(result.Errors)
	})
}

// =============================================================================
// Stage 3: Historical Deviation
// =============================================================================

func (s *EngineSuite) TestHistoricalDeviation() {
	s.Run("large swing warns but never blocks", func() {
		in := s.input()
		in.Submission.Actual = 20 // trailing average is 82
		in.Indicator.Unit = indicatormodels.UnitPercent
		result := s.engine.Validate(context.Background(), in)
		s.Empty(result.Errors)
		s.NotEmpty(result.Warnings)
		s.NotEmpty(result.Suggestions)
	})

	s.Run("only the last three periods count", func() {
		in := s.input()
		// Fourth entry would swing the average if consulted.
		in.History = []models.PerformanceData{
			{Actual: 84}, {Actual: 86}, {Actual: 85}, {Actual: 1},
		}
		result := s.engine.Validate(context.Background(), in)
		s.Empty(result.Warnings)
	})

	s.Run("unreadable history degrades gracefully", func() {
		in := s.input()
		in.History = nil
		in.HistoryUnavailable = true
		in.Submission.Actual = 20
		result := s.engine.Validate(context.Background(), in)
		s.Empty(result.Errors)
	})
}

// =============================================================================
// Stage 4: Evidence Minimum
// =============================================================================

func (s *EngineSuite) TestEvidenceMinimum() {
	s.Run("impact category expects four documents", func() {
		in := s.input()
		in.Indicator.Category = indicatormodels.CategoryImpact
		result := s.engine.Validate(context.Background(), in)
		s.Empty(result.Errors)
		s.Len(result.Warnings, 1)
		s.Contains(result.Suggestions[0], "impact_assessment")
		s.Contains(result.Suggestions[0], "third_party_evaluation")
	})

	s.Run("input category satisfied by one document", func() {
		result := s.engine.Validate(context.Background(), s.input())
		s.Empty(result.Warnings)
	})
}

// =============================================================================
// Stage 5: Target Consistency
// =============================================================================

func (s *EngineSuite) TestTargetConsistency() {
	s.Run("missing target is a warning, not fatal", func() {
		in := s.input()
		in.Target = nil
		result := s.engine.Validate(context.Background(), in)
		s.Empty(result.Errors)
		s.Len(result.Warnings, 1)
		s.True(result.IsValid)
	})

	s.Run("non-positive target is an error", func() {
		in := s.input()
		in.Target.Value = 0
		result := s.engine.Validate(context.Background(), in)
		s.Len(result.Errors, 1)
	})

	s.Run("too conservative target", func() {
		in := s.input()
		in.Target.Value = 40 // trailing average 82, floor 65.6
		result := s.engine.Validate(context.Background(), in)
		s.Contains(result.Warnings[0], "too conservative")
	})

	s.Run("too ambitious target", func() {
		in := s.input()
		in.Target.Value = 150 // ceiling 123
		result := s.engine.Validate(context.Background(), in)
		s.Contains(result.Warnings[0], "too ambitious")
	})
}

// =============================================================================
// Stage 6: Evidence Quality
// =============================================================================

func (s *EngineSuite) TestEvidenceQuality() {
	s.Run("oversized document", func() {
		in := s.input()
		in.Evidence[0].FileSize = 11 << 20
		result := s.engine.Validate(context.Background(), in)
		s.Contains(result.Warnings[0], "exceeds 10MB")
	})

	s.Run("disallowed extension", func() {
		in := s.input()
		in.Evidence[0].FileName = "payload.exe"
		result := s.engine.Validate(context.Background(), in)
		s.Contains(result.Warnings[0], "unsupported file type")
	})

	s.Run("document far outside the period window", func() {
		in := s.input()
		in.Evidence[0].UploadedAt = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
		result := s.engine.Validate(context.Background(), in)
		s.Contains(result.Warnings[0], "outdated")
	})
}

// =============================================================================
// Stage 7: Temporal Consistency
// =============================================================================

func (s *EngineSuite) TestTemporalConsistency() {
	s.Run("future collection date fails validation", func() {
		in := s.input()
		in.Submission.CollectedAt = s.now.Add(72 * time.Hour)
		result := s.engine.Validate(context.Background(), in)
		s.NotEmpty(result.Errors)
		s.False(result.IsValid)
	})

	s.Run("validation before collection is an error", func() {
		in := s.input()
		earlier := in.Submission.CollectedAt.Add(-24 * time.Hour)
		in.Submission.ValidatedAt = &earlier
		result := s.engine.Validate(context.Background(), in)
		s.Contains(result.Errors[0], "precedes collection")
	})

	s.Run("stale validation warns", func() {
		in := s.input()
		old := time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC)
		in.Submission.CollectedAt = time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC)
		in.Submission.Period = domain.Period("2023-Q1")
		in.Submission.ValidatedAt = &old
		in.Evidence[0].UploadedAt = time.Date(2023, time.January, 3, 0, 0, 0, 0, time.UTC)
		result := s.engine.Validate(context.Background(), in)
		s.Contains(result.Warnings[0], "older than 12 months")
	})
}

// =============================================================================
// Score Model
// =============================================================================

func (s *EngineSuite) TestScoreIsPureAdditive() {
	in := s.input()
	in.Target = nil            // +1 warning
	in.Evidence = nil          // +1 warning (input category minimum)
	in.Submission.Actual = 101 // +1 error

	result := s.engine.Validate(context.Background(), in)
	s.Len(result.Errors, 1)
	s.Len(result.Warnings, 2)
	s.Equal(70.0, result.QualityScore)
	s.False(result.IsValid, "any error invalidates regardless of score")
}

func (s *EngineSuite) TestWarningsAloneCanHoldTheFloor() {
	in := s.input()
	in.Target = nil                                  // missing target
	in.Submission.DataSource = ""                    // missing source+method
	in.Indicator.CollectionMethod = ""
	in.Indicator.Category = indicatormodels.CategoryImpact // minimum shortfall
	in.Evidence = []models.EvidenceDocument{{
		FileName:   "scan.bmp",                                       // bad extension
		FileSize:   12 << 20,                                         // oversized
		UploadedAt: time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC), // outdated
	}}

	result := s.engine.Validate(context.Background(), in)
	s.Empty(result.Errors)
	s.Len(result.Warnings, 6)
	s.Equal(70.0, result.QualityScore)
	s.True(result.IsValid, "warnings degrade quality but do not invalidate at the floor")
}
