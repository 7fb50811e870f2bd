package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	assessmentmodels "kinerja/internal/assessment/models"
	"kinerja/internal/cache"
	indicatormodels "kinerja/internal/indicator/models"
	performancemodels "kinerja/internal/performance/models"
	"kinerja/internal/platform/metrics"
	reportmodels "kinerja/internal/report/models"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
	"kinerja/pkg/platform/audit"
	"kinerja/pkg/requestcontext"
)

var tracer = otel.Tracer("kinerja/compliance")

// Sources supplies the raw facts the six checks are computed from. Reads
// are independent and the aggregator issues them concurrently.
type Sources interface {
	Indicators(ctx context.Context, institutionID uuid.UUID) ([]indicatormodels.Indicator, error)
	Submissions(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]performancemodels.PerformanceData, error)
	EvidenceCounts(ctx context.Context, submissionIDs []uuid.UUID) (map[uuid.UUID]int, error)
	Assessments(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]assessmentmodels.Assessment, error)
	Reports(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]reportmodels.Report, error)
	AuditEventCount(ctx context.Context, institutionID uuid.UUID, period domain.Period) (int, error)
}

type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Aggregator runs the weighted compliance checks. Given identical source
// data it always produces an identical report.
type Aggregator struct {
	sources  Sources
	estimate AuditEstimate
	grace    time.Duration
	recorder Recorder
	cache    cache.Cache
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(a *Aggregator) { a.recorder = recorder }
}

func WithCache(c cache.Cache) Option {
	return func(a *Aggregator) { a.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithAuditEstimate overrides the expected-audit-event multipliers.
func WithAuditEstimate(e AuditEstimate) Option {
	return func(a *Aggregator) { a.estimate = e }
}

// WithTimelinessGrace extends the period deadline before a submission
// counts as late.
func WithTimelinessGrace(d time.Duration) Option {
	return func(a *Aggregator) { a.grace = d }
}

func New(sources Sources, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:  sources,
		estimate: DefaultAuditEstimate(),
		grace:    10 * 24 * time.Hour,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// facts is the source snapshot one run computes over.
type facts struct {
	indicators     []indicatormodels.Indicator
	submissions    []performancemodels.PerformanceData
	evidenceCounts map[uuid.UUID]int
	assessments    []assessmentmodels.Assessment
	reports        []reportmodels.Report
	auditEvents    int
}

// Run computes the compliance report for an institution and period. A
// fresh report is served from cache when one exists; a cache failure only
// costs the recomputation.
func (a *Aggregator) Run(ctx context.Context, institutionID uuid.UUID, period domain.Period) (*Report, error) {
	ctx, span := tracer.Start(ctx, "compliance.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("institution_id", institutionID.String()),
		attribute.String("period", period.String()),
	)

	if institutionID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeValidation, "institution id is required")
	}
	if !period.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid period %q", period)
	}

	scope := cache.Scope{InstitutionID: institutionID, Period: period}
	key := cache.Key(scope, "compliance")
	if cached := a.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	f, err := a.gather(ctx, institutionID, period)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to gather compliance sources")
	}

	report := a.evaluate(institutionID, period, f, requestcontext.Now(ctx))

	a.observe(report)
	a.toCache(ctx, scope, key, report)
	if a.recorder != nil {
		a.recorder.Record(ctx, audit.Event{
			Action:        audit.ActionComplianceChecked,
			InstitutionID: institutionID,
			Period:        period.String(),
			Entity:        audit.EntityRef{Kind: "compliance_report", ID: institutionID},
			After: map[string]any{
				"compliance_score": report.ComplianceScore,
				"status":           string(report.Status),
				"violations":       len(report.Violations),
			},
		})
	}
	return report, nil
}

// gather issues the six source reads concurrently. Evidence counts depend
// on the submission list, so they follow it inside the same goroutine.
func (a *Aggregator) gather(ctx context.Context, institutionID uuid.UUID, period domain.Period) (*facts, error) {
	var f facts
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		f.indicators, err = a.sources.Indicators(ctx, institutionID)
		return err
	})
	g.Go(func() error {
		submissions, err := a.sources.Submissions(ctx, institutionID, period)
		if err != nil {
			return err
		}
		f.submissions = submissions
		ids := make([]uuid.UUID, len(submissions))
		for i := range submissions {
			ids[i] = submissions[i].ID
		}
		f.evidenceCounts, err = a.sources.EvidenceCounts(ctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		f.assessments, err = a.sources.Assessments(ctx, institutionID, period)
		return err
	})
	g.Go(func() error {
		var err error
		f.reports, err = a.sources.Reports(ctx, institutionID, period)
		return err
	})
	g.Go(func() error {
		var err error
		f.auditEvents, err = a.sources.AuditEventCount(ctx, institutionID, period)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &f, nil
}

// evaluate folds the facts into the six checks and the weighted verdict.
// Checks are emitted in a fixed order so repeated runs compare equal.
func (a *Aggregator) evaluate(institutionID uuid.UUID, period domain.Period, f *facts, now time.Time) *Report {
	checks := []Check{
		a.dataCompleteness(f),
		a.dataTimeliness(f, period),
		a.assessmentCompleteness(f),
		a.reportSubmission(f),
		a.evidenceRequirements(f),
		a.auditTrail(f),
	}

	var weightedSum, weightTotal float64
	var violations []Violation
	for _, check := range checks {
		weightedSum += check.Status.Contribution() * check.Weight
		weightTotal += check.Weight
		if check.Status == StatusCompliant {
			continue
		}
		severity := SeverityMedium
		if check.Status == StatusNonCompliant {
			severity = SeverityHigh
		}
		violations = append(violations, Violation{
			Check:          check.Type,
			Severity:       severity,
			Description:    check.Detail,
			Recommendation: recommendations[check.Type],
		})
	}

	score := 0.0
	if weightTotal > 0 {
		score = math.Round(weightedSum/weightTotal*100) / 100
	}

	status := StatusNonCompliant
	switch {
	case score >= 90:
		status = StatusCompliant
	case score >= 70:
		status = StatusPartial
	}

	return &Report{
		InstitutionID:   institutionID,
		Period:          period,
		Checks:          checks,
		Violations:      violations,
		ComplianceScore: score,
		Status:          status,
		GeneratedAt:     now,
	}
}

// dataCompleteness measures submitted against required (mandatory)
// indicators. An institution with no mandatory indicators is trivially
// compliant.
func (a *Aggregator) dataCompleteness(f *facts) Check {
	submitted := make(map[uuid.UUID]bool, len(f.submissions))
	for i := range f.submissions {
		submitted[f.submissions[i].IndicatorID] = true
	}
	required, covered := 0, 0
	for i := range f.indicators {
		if !f.indicators[i].Mandatory {
			continue
		}
		required++
		if submitted[f.indicators[i].ID] {
			covered++
		}
	}
	percent := ratioPercent(covered, required)
	return Check{
		Type:   CheckDataCompleteness,
		Status: ratioStatus(CheckDataCompleteness, percent),
		Weight: checkWeights[CheckDataCompleteness],
		Metric: percent,
		Detail: fmt.Sprintf("%d of %d required indicators have submitted data", covered, required),
	}
}

// dataTimeliness counts submissions collected within the period plus the
// grace window.
func (a *Aggregator) dataTimeliness(f *facts, period domain.Period) Check {
	_, end := period.Bounds()
	deadline := end.Add(a.grace)
	onTime := 0
	for i := range f.submissions {
		if !f.submissions[i].CollectedAt.After(deadline) {
			onTime++
		}
	}
	percent := ratioPercent(onTime, len(f.submissions))
	return Check{
		Type:   CheckDataTimeliness,
		Status: ratioStatus(CheckDataTimeliness, percent),
		Weight: checkWeights[CheckDataTimeliness],
		Metric: percent,
		Detail: fmt.Sprintf("%d of %d submissions collected on time", onTime, len(f.submissions)),
	}
}

// assessmentCompleteness measures approved against opened assessments. A
// period with no assessment at all is non-compliant, not vacuously clean.
func (a *Aggregator) assessmentCompleteness(f *facts) Check {
	required := len(f.assessments)
	completed := 0
	for i := range f.assessments {
		if f.assessments[i].Status == assessmentmodels.StatusApproved {
			completed++
		}
	}
	percent := 0.0
	if required > 0 {
		percent = ratioPercent(completed, required)
	}
	return Check{
		Type:   CheckAssessmentCompleteness,
		Status: ratioStatus(CheckAssessmentCompleteness, percent),
		Weight: checkWeights[CheckAssessmentCompleteness],
		Metric: percent,
		Detail: fmt.Sprintf("%d of %d assessments completed", completed, required),
	}
}

// reportSubmission checks approved-report presence: any approved report is
// compliant, a pending submission is partial, nothing filed is
// non-compliant.
func (a *Aggregator) reportSubmission(f *facts) Check {
	approved, filed := 0, 0
	for i := range f.reports {
		if f.reports[i].Filed() {
			filed++
		}
		if f.reports[i].Status == reportmodels.StatusApproved {
			approved++
		}
	}
	status := StatusNonCompliant
	switch {
	case approved > 0:
		status = StatusCompliant
	case filed > 0:
		status = StatusPartial
	}
	return Check{
		Type:   CheckReportSubmission,
		Status: status,
		Weight: checkWeights[CheckReportSubmission],
		Metric: float64(approved),
		Detail: fmt.Sprintf("%d reports approved, %d filed", approved, filed),
	}
}

// evidenceRequirements measures submissions carrying at least one evidence
// document.
func (a *Aggregator) evidenceRequirements(f *facts) Check {
	withEvidence := 0
	for i := range f.submissions {
		if f.evidenceCounts[f.submissions[i].ID] > 0 {
			withEvidence++
		}
	}
	percent := ratioPercent(withEvidence, len(f.submissions))
	return Check{
		Type:   CheckEvidenceRequirements,
		Status: ratioStatus(CheckEvidenceRequirements, percent),
		Weight: checkWeights[CheckEvidenceRequirements],
		Metric: percent,
		Detail: fmt.Sprintf("%d of %d submissions carry evidence", withEvidence, len(f.submissions)),
	}
}

// auditTrail compares recorded events against the heuristic estimate.
func (a *Aggregator) auditTrail(f *facts) Check {
	expected := a.estimate.Data*float64(len(f.submissions)) +
		a.estimate.Assessments*float64(len(f.assessments)) +
		a.estimate.Reports*float64(len(f.reports))
	percent := 100.0
	if expected > 0 {
		percent = math.Min(float64(f.auditEvents)/expected*100, 100)
	}
	return Check{
		Type:   CheckAuditTrail,
		Status: ratioStatus(CheckAuditTrail, percent),
		Weight: checkWeights[CheckAuditTrail],
		Metric: math.Round(percent*100) / 100,
		Detail: fmt.Sprintf("%d audit events recorded against an estimate of %.0f", f.auditEvents, expected),
	}
}

// ratioPercent treats an empty denominator as fully covered: there was
// nothing to miss.
func ratioPercent(part, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(part) / float64(total) * 100
}

func (a *Aggregator) fromCache(ctx context.Context, key string) *Report {
	if a.cache == nil {
		return nil
	}
	raw, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.WarnContext(ctx, "compliance cache read failed", "key", key, "error", err)
		return nil
	}
	if !ok {
		if a.metrics != nil {
			a.metrics.CacheMisses.Inc()
		}
		return nil
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		a.logger.WarnContext(ctx, "compliance cache entry corrupt", "key", key, "error", err)
		return nil
	}
	if a.metrics != nil {
		a.metrics.CacheHits.Inc()
	}
	return &report
}

func (a *Aggregator) toCache(ctx context.Context, scope cache.Scope, key string, report *Report) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, scope, key, raw); err != nil {
		a.logger.WarnContext(ctx, "compliance cache write failed", "key", key, "error", err)
	}
}

func (a *Aggregator) observe(report *Report) {
	if a.metrics == nil {
		return
	}
	a.metrics.ComplianceRuns.Inc()
	a.metrics.ComplianceScore.Observe(report.ComplianceScore)
}
