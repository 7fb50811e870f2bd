package compliance

import (
	"context"

	"github.com/google/uuid"

	assessmentmodels "kinerja/internal/assessment/models"
	indicatormodels "kinerja/internal/indicator/models"
	performancemodels "kinerja/internal/performance/models"
	reportmodels "kinerja/internal/report/models"
	"kinerja/pkg/domain"
)

// Store-facing slices of the module stores. Each names only the read the
// aggregator performs.
type (
	IndicatorSource interface {
		ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]indicatormodels.Indicator, error)
	}
	SubmissionSource interface {
		ListByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]performancemodels.PerformanceData, error)
	}
	EvidenceSource interface {
		ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]performancemodels.EvidenceDocument, error)
	}
	AssessmentSource interface {
		ListByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]assessmentmodels.Assessment, error)
	}
	ReportSource interface {
		ListByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]reportmodels.Report, error)
	}
	AuditSource interface {
		CountByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period string) (int, error)
	}
)

// StoreSources adapts the module stores to the aggregator's Sources
// contract.
type StoreSources struct {
	IndicatorStore  IndicatorSource
	SubmissionStore SubmissionSource
	EvidenceStore   EvidenceSource
	AssessmentStore AssessmentSource
	ReportStore     ReportSource
	AuditStore      AuditSource
}

func (s StoreSources) Indicators(ctx context.Context, institutionID uuid.UUID) ([]indicatormodels.Indicator, error) {
	return s.IndicatorStore.ListByInstitution(ctx, institutionID)
}

func (s StoreSources) Submissions(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]performancemodels.PerformanceData, error) {
	return s.SubmissionStore.ListByInstitutionPeriod(ctx, institutionID, period)
}

func (s StoreSources) EvidenceCounts(ctx context.Context, submissionIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(submissionIDs))
	for _, id := range submissionIDs {
		docs, err := s.EvidenceStore.ListBySubmission(ctx, id)
		if err != nil {
			return nil, err
		}
		counts[id] = len(docs)
	}
	return counts, nil
}

func (s StoreSources) Assessments(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]assessmentmodels.Assessment, error) {
	return s.AssessmentStore.ListByInstitutionPeriod(ctx, institutionID, period)
}

func (s StoreSources) Reports(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]reportmodels.Report, error) {
	return s.ReportStore.ListByInstitutionPeriod(ctx, institutionID, period)
}

func (s StoreSources) AuditEventCount(ctx context.Context, institutionID uuid.UUID, period domain.Period) (int, error) {
	return s.AuditStore.CountByInstitutionPeriod(ctx, institutionID, period.String())
}
