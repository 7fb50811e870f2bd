// Package compliance derives an institution-level compliance report from
// validated records, assessments, reports, and audit coverage.
package compliance

import (
	"time"

	"github.com/google/uuid"

	"kinerja/pkg/domain"
)

// CheckType names one of the six weighted compliance checks.
type CheckType string

const (
	CheckDataCompleteness       CheckType = "data_completeness"
	CheckDataTimeliness         CheckType = "data_timeliness"
	CheckAssessmentCompleteness CheckType = "assessment_completeness"
	CheckReportSubmission       CheckType = "report_submission"
	CheckEvidenceRequirements   CheckType = "evidence_requirements"
	CheckAuditTrail             CheckType = "audit_trail_completeness"
)

// CheckStatus is the verdict of one check.
type CheckStatus string

const (
	StatusCompliant    CheckStatus = "compliant"
	StatusPartial      CheckStatus = "partial"
	StatusNonCompliant CheckStatus = "non_compliant"
)

// Contribution maps a check status to its fixed numeric contribution.
func (s CheckStatus) Contribution() float64 {
	switch s {
	case StatusCompliant:
		return 100
	case StatusPartial:
		return 70
	default:
		return 30
	}
}

// checkWeights fixes each check's share of the compliance score.
var checkWeights = map[CheckType]float64{
	CheckDataCompleteness:       0.25,
	CheckDataTimeliness:         0.20,
	CheckAssessmentCompleteness: 0.20,
	CheckReportSubmission:       0.15,
	CheckEvidenceRequirements:   0.10,
	CheckAuditTrail:             0.10,
}

// thresholds holds the compliant/partial lower bounds of a ratio-metric
// check, in percent.
type thresholds struct {
	compliant float64
	partial   float64
}

var checkThresholds = map[CheckType]thresholds{
	CheckDataCompleteness:       {90, 70},
	CheckDataTimeliness:         {95, 80},
	CheckAssessmentCompleteness: {95, 80},
	CheckEvidenceRequirements:   {90, 70},
	CheckAuditTrail:             {95, 80},
}

// recommendations are the fixed remediation texts keyed by check type,
// attached to every violation.
var recommendations = map[CheckType]string{
	CheckDataCompleteness:       "Submit performance data for every required indicator before the period closes.",
	CheckDataTimeliness:         "Collect and submit performance data within the reporting period plus the configured grace window.",
	CheckAssessmentCompleteness: "Complete the approval cycle for the period's assessment.",
	CheckReportSubmission:       "File the periodic accountability report and follow up until it is approved.",
	CheckEvidenceRequirements:   "Attach supporting evidence documents to every performance data submission.",
	CheckAuditTrail:             "Review audit recorder health; recorded events fall short of the expected volume.",
}

// Severity grades a violation.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Check is one computed compliance check.
type Check struct {
	Type   CheckType   `json:"type"`
	Status CheckStatus `json:"status"`
	Weight float64     `json:"weight"`
	// Metric is the underlying ratio in percent (or a presence count for
	// the report check).
	Metric float64 `json:"metric"`
	Detail string  `json:"detail"`
}

// Violation records one failed or partially failed check.
type Violation struct {
	Check          CheckType `json:"check"`
	Severity       Severity  `json:"severity"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
}

// Report is the aggregated compliance verdict for an institution and
// period.
type Report struct {
	InstitutionID   uuid.UUID     `json:"institution_id"`
	Period          domain.Period `json:"period"`
	Checks          []Check       `json:"checks"`
	Violations      []Violation   `json:"violations"`
	ComplianceScore float64       `json:"compliance_score"`
	Status          CheckStatus   `json:"status"`
	GeneratedAt     time.Time     `json:"generated_at"`
}

// AuditEstimate weights the entity counts behind the expected-audit-event
// heuristic. The defaults reflect observed event volume per entity type;
// they are an estimate, not a hard requirement, and are tunable through
// configuration.
type AuditEstimate struct {
	Data        float64
	Assessments float64
	Reports     float64
}

func DefaultAuditEstimate() AuditEstimate {
	return AuditEstimate{Data: 2.5, Assessments: 3, Reports: 5}
}

// ratioStatus buckets a percent metric by the check's thresholds.
func ratioStatus(check CheckType, percent float64) CheckStatus {
	t := checkThresholds[check]
	switch {
	case percent >= t.compliant:
		return StatusCompliant
	case percent >= t.partial:
		return StatusPartial
	default:
		return StatusNonCompliant
	}
}
