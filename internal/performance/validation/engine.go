// Package validation implements the performance-data quality engine.
//
// Validation runs a fixed set of additive stages over a submission and its
// context. Errors and warnings accumulate independently; stage order never
// affects the final score, and a failing stage never aborts later stages.
// The engine always returns a complete verdict.
package validation

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	indicatormodels "kinerja/internal/indicator/models"
	"kinerja/internal/performance/models"
	"kinerja/internal/scoring"
)

var tracer = otel.Tracer("kinerja/performance/validation")

// Policy constants for the individual stages.
const (
	// deviationThreshold flags actuals that stray more than 50% from the
	// trailing historical average. Advisory only.
	deviationThreshold = 0.5
	// historyWindow caps how many prior submissions feed the trailing average.
	historyWindow = 3
	// Target plausibility band relative to the trailing historical average.
	targetFloorFactor   = 0.8
	targetCeilingFactor = 1.5
	// Evidence descriptor limits.
	maxEvidenceSize = 10 << 20 // 10MB
	evidenceMaxAge  = 6 * 30 * 24 * time.Hour
	// Validations older than this are considered stale.
	validationMaxAge = 12 * 30 * 24 * time.Hour
)

// evidenceMinimums maps indicator category to the minimum number of
// supporting documents expected with a submission.
var evidenceMinimums = map[indicatormodels.Category]int{
	indicatormodels.CategoryInput:   1,
	indicatormodels.CategoryOutput:  2,
	indicatormodels.CategoryOutcome: 3,
	indicatormodels.CategoryImpact:  4,
}

// expectedEvidenceTypes names the document set reviewers look for per
// category; surfaced as a suggestion when the minimum is not met.
var expectedEvidenceTypes = map[indicatormodels.Category][]string{
	indicatormodels.CategoryInput:   {"budget_report", "procurement_record"},
	indicatormodels.CategoryOutput:  {"activity_report", "completion_certificate"},
	indicatormodels.CategoryOutcome: {"survey", "evaluation_report"},
	indicatormodels.CategoryImpact:  {"impact_assessment", "third_party_evaluation"},
}

// allowedExtensions is the evidence file-type allow-list.
var allowedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true,
	".xls": true, ".xlsx": true, ".csv": true,
	".jpg": true, ".jpeg": true, ".png": true,
}

// Input carries a submission plus the context the stages evaluate against.
type Input struct {
	Submission *models.PerformanceData
	Indicator  *indicatormodels.Indicator
	// Target may be nil; its absence is a warning, not an error.
	Target   *indicatormodels.Target
	Evidence []models.EvidenceDocument
	// History holds prior-period submissions, most recent first. Only the
	// first three are consulted.
	History []models.PerformanceData
	// HistoryUnavailable marks an infrastructure failure reading history.
	// The deviation and target-plausibility stages are skipped; the
	// validation itself still completes.
	HistoryUnavailable bool
	// Now anchors the temporal checks.
	Now time.Time
}

// Result is the complete multi-field verdict of a validation run.
type Result struct {
	IsValid      bool     `json:"is_valid"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
	Suggestions  []string `json:"suggestions"`
	QualityScore float64  `json:"quality_score"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) addSuggestion(format string, args ...any) {
	r.Suggestions = append(r.Suggestions, fmt.Sprintf(format, args...))
}

// Engine evaluates submissions. It is stateless and safe for concurrent use
// across unrelated submissions.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Validate runs every stage and derives the quality verdict:
// qualityScore = clamp(100 - 20*errors - 5*warnings, 0, 100). A submission
// is valid when the score reaches 70 and no stage reported an error; a
// future-dated collection can never be valid no matter how clean the rest
// of the record is.
func (e *Engine) Validate(ctx context.Context, in Input) Result {
	_, span := tracer.Start(ctx, "validation.Validate")
	defer span.End()

	result := Result{
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	e.checkCompleteness(in, &result)
	e.checkValueRange(in, &result)
	e.checkHistoricalDeviation(in, &result)
	e.checkEvidenceMinimum(in, &result)
	e.checkTargetConsistency(in, &result)
	e.checkEvidenceQuality(in, &result)
	e.checkTemporalConsistency(in, &result)

	result.QualityScore = scoring.QualityScore(len(result.Errors), len(result.Warnings))
	result.IsValid = len(result.Errors) == 0 && result.QualityScore >= scoring.QualityValidFloor

	span.SetAttributes(
		attribute.Bool("validation.is_valid", result.IsValid),
		attribute.Float64("validation.quality_score", result.QualityScore),
		attribute.Int("validation.error_count", len(result.Errors)),
		attribute.Int("validation.warning_count", len(result.Warnings)),
	)
	return result
}

// Stage 1: basic completeness.
func (e *Engine) checkCompleteness(in Input, r *Result) {
	if math.IsNaN(in.Submission.Actual) {
		r.addError("actual value is missing")
	}
	if in.Submission.CollectedAt.IsZero() {
		r.addError("collection date is missing")
	}
	if strings.TrimSpace(in.Submission.DataSource) == "" && strings.TrimSpace(in.Indicator.CollectionMethod) == "" {
		r.addWarning("data source and collection method are both unspecified")
	}
}

// Stage 2: value range by measurement unit.
func (e *Engine) checkValueRange(in Input, r *Result) {
	actual := in.Submission.Actual
	if math.IsNaN(actual) {
		return // already reported by completeness
	}
	switch in.Indicator.Unit {
	case indicatormodels.UnitPercent:
		if actual < 0 || actual > 100 {
			r.addError("percentage value %.2f outside [0,100]", actual)
		}
	case indicatormodels.UnitRatio:
		if actual < 0 {
			r.addError("ratio value %.2f cannot be negative", actual)
		}
	case indicatormodels.UnitCount:
		if actual < 0 {
			r.addError("count value %.2f cannot be negative", actual)
		}
		if actual != math.Trunc(actual) {
			r.addWarning("count value %.2f is not a whole number", actual)
		}
	case indicatormodels.UnitIndex, indicatormodels.UnitScale100:
		if actual < 0 {
			r.addError("index value %.2f cannot be negative", actual)
		}
		if in.Indicator.Unit == indicatormodels.UnitScale100 && actual > 100 {
			r.addError("scale_100 index value %.2f exceeds 100", actual)
		}
	}
}

// Stage 3: historical deviation. Advisory: large swings warrant a second
// look but never block a submission.
func (e *Engine) checkHistoricalDeviation(in Input, r *Result) {
	avg, ok := e.trailingAverage(in)
	if !ok || avg == 0 {
		return
	}
	deviation := math.Abs(in.Submission.Actual-avg) / math.Abs(avg)
	if deviation > deviationThreshold {
		r.addWarning("actual value deviates %.0f%% from the trailing average of %.2f", deviation*100, avg)
		r.addSuggestion("verify the source data for the reported value or document the cause of the swing")
	}
}

// Stage 4: category-specific evidence minimum.
func (e *Engine) checkEvidenceMinimum(in Input, r *Result) {
	minimum := evidenceMinimums[in.Indicator.Category]
	if minimum == 0 || len(in.Evidence) >= minimum {
		return
	}
	r.addWarning("%s indicators expect at least %d evidence documents, got %d",
		in.Indicator.Category, minimum, len(in.Evidence))
	r.addSuggestion("attach supporting documents such as: %s",
		strings.Join(expectedEvidenceTypes[in.Indicator.Category], ", "))
}

// Stage 5: target consistency.
func (e *Engine) checkTargetConsistency(in Input, r *Result) {
	if in.Target == nil {
		r.addWarning("no target is set for this period")
		return
	}
	if in.Target.Value <= 0 {
		r.addError("target value %.2f must be positive", in.Target.Value)
		return
	}
	avg, ok := e.trailingAverage(in)
	if !ok || avg <= 0 {
		return
	}
	switch {
	case in.Target.Value < targetFloorFactor*avg:
		r.addWarning("target %.2f looks too conservative against the trailing average of %.2f", in.Target.Value, avg)
	case in.Target.Value > targetCeilingFactor*avg:
		r.addWarning("target %.2f looks too ambitious against the trailing average of %.2f", in.Target.Value, avg)
	}
}

// Stage 6: evidence document quality. Descriptor metadata only.
func (e *Engine) checkEvidenceQuality(in Input, r *Result) {
	periodStart, periodEnd := in.Submission.Period.Bounds()
	for _, doc := range in.Evidence {
		if doc.FileSize > maxEvidenceSize {
			r.addWarning("evidence %q exceeds 10MB", doc.FileName)
		}
		ext := strings.ToLower(filepath.Ext(doc.FileName))
		if !allowedExtensions[ext] {
			r.addWarning("evidence %q has unsupported file type %q", doc.FileName, ext)
		}
		if !periodStart.IsZero() {
			if doc.UploadedAt.Before(periodStart.Add(-evidenceMaxAge)) || doc.UploadedAt.After(periodEnd.Add(evidenceMaxAge)) {
				r.addWarning("evidence %q is outdated for period %s", doc.FileName, in.Submission.Period)
			}
		}
	}
}

// Stage 7: temporal consistency.
func (e *Engine) checkTemporalConsistency(in Input, r *Result) {
	if !in.Submission.CollectedAt.IsZero() && in.Submission.CollectedAt.After(in.Now) {
		r.addError("collection date %s is in the future", in.Submission.CollectedAt.Format(time.RFC3339))
	}
	if in.Submission.ValidatedAt != nil {
		if in.Submission.ValidatedAt.Before(in.Submission.CollectedAt) {
			r.addError("validation date precedes collection date")
		}
		if in.Now.Sub(*in.Submission.ValidatedAt) > validationMaxAge {
			r.addWarning("previous validation is older than 12 months")
		}
	}
}

// trailingAverage computes the mean actual over at most the last three
// prior submissions. Returns false when history is absent or unreadable.
func (e *Engine) trailingAverage(in Input) (float64, bool) {
	if in.HistoryUnavailable || len(in.History) == 0 {
		return 0, false
	}
	n := len(in.History)
	if n > historyWindow {
		n = historyWindow
	}
	var sum float64
	for _, prior := range in.History[:n] {
		sum += prior.Actual
	}
	return sum / float64(n), true
}
