package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kinerja/internal/assessment/models"
	assessmentstore "kinerja/internal/assessment/store/assessment"
	indicatormodels "kinerja/internal/indicator/models"
	performancemodels "kinerja/internal/performance/models"
	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/requestcontext"
)

type fakeIndicatorLister struct {
	indicators []indicatormodels.Indicator
}

func (f *fakeIndicatorLister) ListIndicators(context.Context, uuid.UUID) ([]indicatormodels.Indicator, error) {
	return f.indicators, nil
}

type fakeSubmissionReader struct {
	records []performancemodels.PerformanceData
}

func (f *fakeSubmissionReader) ListSubmissions(context.Context, uuid.UUID, domain.Period) ([]performancemodels.PerformanceData, error) {
	return f.records, nil
}

type WorkflowSuite struct {
	suite.Suite

	ctx         context.Context
	store       *assessmentstore.InMemoryStore
	lister      *fakeIndicatorLister
	submissions *fakeSubmissionReader
	svc         *Service

	institutionID uuid.UUID
	assessorID    uuid.UUID
	now           time.Time

	mandatory indicatormodels.Indicator
	optional  indicatormodels.Indicator
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.now = time.Date(2024, 10, 2, 14, 0, 0, 0, time.UTC)
	s.institutionID = uuid.New()
	s.assessorID = uuid.New()
	s.ctx = requestcontext.WithActorID(
		requestcontext.WithTime(context.Background(), s.now), s.assessorID)

	mandatory, err := indicatormodels.NewIndicator(uuid.New(), s.institutionID, "Budget absorption",
		indicatormodels.UnitPercent, scoring.MethodPercentage, indicatormodels.CategoryInput,
		1.0, true, indicatormodels.FrequencyQuarterly, s.now)
	s.Require().NoError(err)
	optional, err := indicatormodels.NewIndicator(uuid.New(), s.institutionID, "Citizen satisfaction",
		indicatormodels.UnitIndex, scoring.MethodIndex, indicatormodels.CategoryOutcome,
		3.0, false, indicatormodels.FrequencyQuarterly, s.now)
	s.Require().NoError(err)
	s.mandatory = *mandatory
	s.optional = *optional

	s.store = assessmentstore.NewInMemoryStore()
	s.lister = &fakeIndicatorLister{indicators: []indicatormodels.Indicator{*mandatory, *optional}}
	s.submissions = &fakeSubmissionReader{}
	s.svc = New(s.store, s.lister, s.submissions, PassthroughRunner{})
}

func (s *WorkflowSuite) addOptionalData() {
	record, err := performancemodels.NewPerformanceData(uuid.New(), s.optional.ID,
		s.institutionID, "2024-Q4", 0.95, s.now, s.now)
	s.Require().NoError(err)
	s.submissions.records = append(s.submissions.records, *record)
}

func (s *WorkflowSuite) create() (*models.Assessment, []models.Criterion) {
	a, criteria, err := s.svc.Create(s.ctx, s.institutionID, "2024-Q4")
	s.Require().NoError(err)
	return a, criteria
}

func (s *WorkflowSuite) scoreAll(a *models.Assessment, criteria []models.Criterion, score float64) *models.Assessment {
	scores := make([]CriterionScore, 0, len(criteria))
	for _, c := range criteria {
		scores = append(scores, CriterionScore{CriterionID: c.ID, Score: score})
	}
	updated, err := s.svc.UpdateScoring(s.ctx, a.ID, scores)
	s.Require().NoError(err)
	return updated
}

func (s *WorkflowSuite) TestCreateDerivesCriteriaFromIndicatorSet() {
	s.Run("mandatory only when the optional indicator has no data", func() {
		a, criteria := s.create()
		s.Equal(models.StatusDraft, a.Status)
		s.Equal(s.assessorID, a.AssessorID)
		s.Require().Len(criteria, 1)
		s.Equal(s.mandatory.ID, criteria[0].IndicatorID)
		s.False(criteria[0].Scored())
	})

	s.Run("optional indicators with submitted data join the criteria", func() {
		s.store = assessmentstore.NewInMemoryStore()
		s.svc = New(s.store, s.lister, s.submissions, PassthroughRunner{})
		s.addOptionalData()

		_, criteria := s.create()
		s.Len(criteria, 2)
	})
}

func (s *WorkflowSuite) TestCreateEnforcesOneActivePerScope() {
	s.create()
	_, _, err := s.svc.Create(s.ctx, s.institutionID, "2024-Q4")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// A different period is a different scope.
	_, _, err = s.svc.Create(s.ctx, s.institutionID, "2025-Q1")
	s.NoError(err)
}

func (s *WorkflowSuite) TestUpdateScoringRecomputesWeightedOverall() {
	// === Two criteria, weights 1 and 3, scores 80 and 90 -> 87.5 ===
	s.addOptionalData()
	a, criteria := s.create()
	s.Require().Len(criteria, 2)

	byIndicator := make(map[uuid.UUID]models.Criterion)
	for _, c := range criteria {
		byIndicator[c.IndicatorID] = c
	}
	updated, err := s.svc.UpdateScoring(s.ctx, a.ID, []CriterionScore{
		{CriterionID: byIndicator[s.mandatory.ID].ID, Score: 80},
		{CriterionID: byIndicator[s.optional.ID].ID, Score: 90},
	})
	s.Require().NoError(err)

	s.Equal(models.StatusInReview, updated.Status)
	s.InEpsilon(87.5, updated.OverallScore, 1e-9)
	s.Equal(scoring.RatingGood, updated.Rating)
}

func (s *WorkflowSuite) TestUpdateScoringRejectsBadInput() {
	a, criteria := s.create()

	s.Run("score out of range", func() {
		_, err := s.svc.UpdateScoring(s.ctx, a.ID, []CriterionScore{
			{CriterionID: criteria[0].ID, Score: 101},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("foreign criterion", func() {
		_, err := s.svc.UpdateScoring(s.ctx, a.ID, []CriterionScore{
			{CriterionID: uuid.New(), Score: 50},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *WorkflowSuite) TestSubmitRequiresEveryCriterionScored() {
	s.addOptionalData()
	a, criteria := s.create()

	// Score only one of the two criteria.
	_, err := s.svc.UpdateScoring(s.ctx, a.ID, []CriterionScore{
		{CriterionID: criteria[0].ID, Score: 75},
	})
	s.Require().NoError(err)

	_, err = s.svc.Submit(s.ctx, a.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *WorkflowSuite) TestSubmitFromDraftIsRefused() {
	a, _ := s.create()
	_, err := s.svc.Submit(s.ctx, a.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *WorkflowSuite) TestFullApprovalCycle() {
	a, criteria := s.create()
	s.scoreAll(a, criteria, 85)

	submitted, err := s.svc.Submit(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, submitted.Status)
	s.Require().NotNil(submitted.SubmittedAt)
	s.Equal(s.assessorID, submitted.SubmittedBy)

	escalated, err := s.svc.Review(s.ctx, a.ID, models.DecisionEscalated, "")
	s.Require().NoError(err)
	s.Equal(models.StatusInApproval, escalated.Status)

	approved, err := s.svc.Review(s.ctx, a.ID, models.DecisionApproved, "meets standards")
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, approved.Status)

	// A decided assessment frees the scope.
	_, _, err = s.svc.Create(s.ctx, s.institutionID, "2024-Q4")
	s.NoError(err)
}

func (s *WorkflowSuite) TestNeedsRevisionLoopsBackToDraft() {
	a, criteria := s.create()
	s.scoreAll(a, criteria, 60)
	_, err := s.svc.Submit(s.ctx, a.ID)
	s.Require().NoError(err)

	s.Run("revision without notes is refused", func() {
		_, err := s.svc.Review(s.ctx, a.ID, models.DecisionNeedsRevision, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	reworked, err := s.svc.Review(s.ctx, a.ID, models.DecisionNeedsRevision, "scores lack justification")
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, reworked.Status)

	// The loop continues: rescore, resubmit, approve.
	_, criteria2, err := s.svc.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.scoreAll(reworked, criteria2, 90)
	_, err = s.svc.Submit(s.ctx, a.ID)
	s.Require().NoError(err)
	final, err := s.svc.Review(s.ctx, a.ID, models.DecisionApproved, "")
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, final.Status)
}

func (s *WorkflowSuite) TestReviewGuards() {
	a, _ := s.create()

	s.Run("reviewing a draft is an invalid transition", func() {
		_, err := s.svc.Review(s.ctx, a.ID, models.DecisionApproved, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("rejection requires notes", func() {
		criteria, err := s.store.Criteria(s.ctx, a.ID)
		s.Require().NoError(err)
		s.scoreAll(a, criteria, 40)
		_, err = s.svc.Submit(s.ctx, a.ID)
		s.Require().NoError(err)

		_, err = s.svc.Review(s.ctx, a.ID, models.DecisionRejected, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		rejected, err := s.svc.Review(s.ctx, a.ID, models.DecisionRejected, "scores unsupported by evidence")
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, rejected.Status)
	})
}

func (s *WorkflowSuite) TestDeleteOnlyNeverSubmittedDrafts() {
	a, _ := s.create()

	s.Run("a draft that never entered review deletes", func() {
		err := s.svc.Delete(s.ctx, a.ID)
		s.NoError(err)
		_, _, err = s.svc.Get(s.ctx, a.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("a submitted assessment never deletes", func() {
		b, criteriaB, err := s.svc.Create(s.ctx, s.institutionID, "2024-Q4")
		s.Require().NoError(err)
		s.scoreAll(b, criteriaB, 70)
		_, err = s.svc.Submit(s.ctx, b.ID)
		s.Require().NoError(err)

		err = s.svc.Delete(s.ctx, b.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}
