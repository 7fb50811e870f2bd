package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	assessmentmodels "kinerja/internal/assessment/models"
	indicatormodels "kinerja/internal/indicator/models"
	performancemodels "kinerja/internal/performance/models"
	reportmodels "kinerja/internal/report/models"
	"kinerja/pkg/domain"
	"kinerja/pkg/requestcontext"
)

// fakeSources serves a fixed fact set.
type fakeSources struct {
	indicators  []indicatormodels.Indicator
	submissions []performancemodels.PerformanceData
	evidence    map[uuid.UUID]int
	assessments []assessmentmodels.Assessment
	reports     []reportmodels.Report
	auditCount  int
}

func (f *fakeSources) Indicators(context.Context, uuid.UUID) ([]indicatormodels.Indicator, error) {
	return f.indicators, nil
}

func (f *fakeSources) Submissions(context.Context, uuid.UUID, domain.Period) ([]performancemodels.PerformanceData, error) {
	return f.submissions, nil
}

func (f *fakeSources) EvidenceCounts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		counts[id] = f.evidence[id]
	}
	return counts, nil
}

func (f *fakeSources) Assessments(context.Context, uuid.UUID, domain.Period) ([]assessmentmodels.Assessment, error) {
	return f.assessments, nil
}

func (f *fakeSources) Reports(context.Context, uuid.UUID, domain.Period) ([]reportmodels.Report, error) {
	return f.reports, nil
}

func (f *fakeSources) AuditEventCount(context.Context, uuid.UUID, domain.Period) (int, error) {
	return f.auditCount, nil
}

type AggregatorSuite struct {
	suite.Suite

	ctx           context.Context
	sources       *fakeSources
	institutionID uuid.UUID
	period        domain.Period
	now           time.Time
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func (s *AggregatorSuite) SetupTest() {
	s.now = time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.institutionID = uuid.New()
	s.period = "2024-Q4"
	s.sources = &fakeSources{evidence: make(map[uuid.UUID]int)}
}

// populateCompliant builds a fact set where every check lands compliant:
// one mandatory indicator with an on-time, evidenced submission, an
// approved assessment, an approved report, and a saturated audit trail.
func (s *AggregatorSuite) populateCompliant() {
	ind, err := indicatormodels.NewIndicator(uuid.New(), s.institutionID, "Budget absorption",
		indicatormodels.UnitPercent, "percentage", indicatormodels.CategoryInput,
		1.0, true, indicatormodels.FrequencyQuarterly, s.now)
	s.Require().NoError(err)
	s.sources.indicators = []indicatormodels.Indicator{*ind}

	collected := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	record, err := performancemodels.NewPerformanceData(uuid.New(), ind.ID,
		s.institutionID, s.period, 80, collected, collected)
	s.Require().NoError(err)
	s.sources.submissions = []performancemodels.PerformanceData{*record}
	s.sources.evidence[record.ID] = 2

	a, err := assessmentmodels.New(uuid.New(), s.institutionID, uuid.New(), s.period, s.now)
	s.Require().NoError(err)
	a.Status = assessmentmodels.StatusApproved
	s.sources.assessments = []assessmentmodels.Assessment{*a}

	r, err := reportmodels.New(uuid.New(), s.institutionID, s.period, "Q4 report", s.now)
	s.Require().NoError(err)
	r.Status = reportmodels.StatusApproved
	s.sources.reports = []reportmodels.Report{*r}

	// Estimate: 2.5*1 + 3*1 + 5*1 = 10.5 expected events.
	s.sources.auditCount = 11
}

func (s *AggregatorSuite) TestAllChecksCompliantScoresHundred() {
	s.populateCompliant()
	agg := New(s.sources)

	report, err := agg.Run(s.ctx, s.institutionID, s.period)
	s.Require().NoError(err)

	s.Len(report.Checks, 6)
	for _, check := range report.Checks {
		s.Equal(StatusCompliant, check.Status, "check %s", check.Type)
	}
	s.InEpsilon(100.0, report.ComplianceScore, 1e-9)
	s.Equal(StatusCompliant, report.Status)
	s.Empty(report.Violations)
	s.Equal(s.now, report.GeneratedAt)
}

func (s *AggregatorSuite) TestEmptyInstitutionIsNotVacuouslyCompliant() {
	// === No indicators, no data, no assessment, no report ===
	agg := New(s.sources)
	report, err := agg.Run(s.ctx, s.institutionID, s.period)
	s.Require().NoError(err)

	byType := checksByType(report)
	// Nothing was required of data completeness, timeliness, or evidence.
	s.Equal(StatusCompliant, byType[CheckDataCompleteness].Status)
	s.Equal(StatusCompliant, byType[CheckDataTimeliness].Status)
	s.Equal(StatusCompliant, byType[CheckEvidenceRequirements].Status)
	s.Equal(StatusCompliant, byType[CheckAuditTrail].Status)
	// But the assessment and report obligations stand regardless.
	s.Equal(StatusNonCompliant, byType[CheckAssessmentCompleteness].Status)
	s.Equal(StatusNonCompliant, byType[CheckReportSubmission].Status)

	// 0.65*100 + 0.35*30 = 75.5
	s.InEpsilon(75.5, report.ComplianceScore, 1e-9)
	s.Equal(StatusPartial, report.Status)
	s.Len(report.Violations, 2)
	for _, v := range report.Violations {
		s.Equal(SeverityHigh, v.Severity)
		s.NotEmpty(v.Recommendation)
	}
}

func (s *AggregatorSuite) TestLateSubmissionDegradesTimeliness() {
	s.populateCompliant()
	// Collected 11 days after the period closed, one day past the default
	// grace window.
	s.sources.submissions[0].CollectedAt = time.Date(2025, 1, 11, 1, 0, 0, 0, time.UTC)

	agg := New(s.sources)
	report, err := agg.Run(s.ctx, s.institutionID, s.period)
	s.Require().NoError(err)

	byType := checksByType(report)
	s.Equal(StatusNonCompliant, byType[CheckDataTimeliness].Status)
	s.Require().Len(report.Violations, 1)
	s.Equal(CheckDataTimeliness, report.Violations[0].Check)
	s.Equal(SeverityHigh, report.Violations[0].Severity)

	// A wider grace window makes the same submission timely.
	lenient := New(s.sources, WithTimelinessGrace(30*24*time.Hour))
	report, err = lenient.Run(s.ctx, s.institutionID, s.period)
	s.Require().NoError(err)
	s.Equal(StatusCompliant, checksByType(report)[CheckDataTimeliness].Status)
}

func (s *AggregatorSuite) TestPendingReportIsPartial() {
	s.populateCompliant()
	s.sources.reports[0].Status = reportmodels.StatusSubmitted

	agg := New(s.sources)
	report, err := agg.Run(s.ctx, s.institutionID, s.period)
	s.Require().NoError(err)

	check := checksByType(report)[CheckReportSubmission]
	s.Equal(StatusPartial, check.Status)
	s.Require().Len(report.Violations, 1)
	s.Equal(SeverityMedium, report.Violations[0].Severity)

	// 0.85*100 + 0.15*70 = 95.5
	s.InEpsilon(95.5, report.ComplianceScore, 1e-9)
	s.Equal(StatusCompliant, report.Status)
}

func (s *AggregatorSuite) TestSparseAuditTrailFlagsRecorderHealth() {
	s.populateCompliant()
	// 8 of an estimated 10.5 events is ~76%, below the partial floor.
	s.sources.auditCount = 8

	agg := New(s.sources)
	report, err := agg.Run(s.ctx, s.institutionID, s.period)
	s.Require().NoError(err)
	s.Equal(StatusNonCompliant, checksByType(report)[CheckAuditTrail].Status)

	// Tuning the estimate down changes the verdict without touching data.
	tuned := New(s.sources, WithAuditEstimate(AuditEstimate{Data: 2, Assessments: 3, Reports: 3}))
	report, err = tuned.Run(s.ctx, s.institutionID, s.period)
	s.Require().NoError(err)
	s.Equal(StatusCompliant, checksByType(report)[CheckAuditTrail].Status)
}

func (s *AggregatorSuite) TestRepeatedRunsAreIdentical() {
	s.populateCompliant()
	s.sources.reports[0].Status = reportmodels.StatusSubmitted
	agg := New(s.sources)

	first, err := agg.Run(s.ctx, s.institutionID, s.period)
	s.Require().NoError(err)
	second, err := agg.Run(s.ctx, s.institutionID, s.period)
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *AggregatorSuite) TestInvalidInput() {
	agg := New(s.sources)
	_, err := agg.Run(s.ctx, uuid.Nil, s.period)
	s.Error(err)
	_, err = agg.Run(s.ctx, s.institutionID, "Q4")
	s.Error(err)
}

func checksByType(report *Report) map[CheckType]Check {
	out := make(map[CheckType]Check, len(report.Checks))
	for _, check := range report.Checks {
		out[check.Type] = check
	}
	return out
}
