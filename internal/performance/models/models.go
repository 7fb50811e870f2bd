// Package models defines performance-data submissions and their supporting
// evidence documents.
package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
)

// ValidationStatus tracks whether a submission passed the quality gate.
type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending"
	ValidationValidated ValidationStatus = "validated"
)

// PerformanceData is an institution's reported actual value for an
// indicator and period. Once validated the record is immutable; corrections
// require a new submission.
type PerformanceData struct {
	ID             uuid.UUID        `json:"id"`
	IndicatorID    uuid.UUID        `json:"indicator_id"`
	InstitutionID  uuid.UUID        `json:"institution_id"`
	Period         domain.Period    `json:"period"`
	Actual         float64          `json:"actual_value"`
	Achievement    float64          `json:"achievement"`
	Rating         scoring.Rating   `json:"rating,omitempty"`
	Status         ValidationStatus `json:"validation_status"`
	QualityScore   float64          `json:"quality_score"`
	RequiresReview bool             `json:"requires_review"`
	DataSource     string           `json:"data_source,omitempty"`
	CollectedAt    time.Time        `json:"collected_at"`
	ValidatedAt    *time.Time       `json:"validated_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Validated reports whether the record has been finalized.
func (p *PerformanceData) Validated() bool {
	return p.Status == ValidationValidated
}

// MarshalJSON drops the achievement field while it is unset, which is
// carried internally as NaN and has no JSON representation.
func (p PerformanceData) MarshalJSON() ([]byte, error) {
	type alias PerformanceData
	out := struct {
		alias
		Achievement *float64 `json:"achievement,omitempty"`
	}{alias: alias(p)}
	if !math.IsNaN(p.Achievement) {
		out.Achievement = &p.Achievement
	}
	return json.Marshal(out)
}

// NewPerformanceData constructs a pending submission.
func NewPerformanceData(id, indicatorID, institutionID uuid.UUID, period domain.Period, actual float64, collectedAt, now time.Time) (*PerformanceData, error) {
	switch {
	case id == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "submission id is required")
	case indicatorID == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "indicator id is required")
	case institutionID == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "institution id is required")
	case !period.IsValid():
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid period %q", period)
	}
	return &PerformanceData{
		ID:            id,
		IndicatorID:   indicatorID,
		InstitutionID: institutionID,
		Period:        period,
		Actual:        actual,
		Status:        ValidationPending,
		CollectedAt:   collectedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// EvidenceStatus tracks an evidence document's review outcome. The status
// transitions away from pending exactly once and is never reopened
// automatically.
type EvidenceStatus string

const (
	EvidencePending   EvidenceStatus = "pending"
	EvidenceValidated EvidenceStatus = "validated"
	EvidenceRejected  EvidenceStatus = "rejected"
)

// EvidenceDocument describes an uploaded supporting file. The core reads
// only descriptor metadata; file bytes live with the storage collaborator.
type EvidenceDocument struct {
	ID           uuid.UUID      `json:"id"`
	SubmissionID uuid.UUID      `json:"submission_id,omitempty"`
	AssessmentID uuid.UUID      `json:"assessment_id,omitempty"`
	FileName     string         `json:"file_name"`
	FileSize     int64          `json:"file_size"`
	FileType     string         `json:"file_type"`
	StorageRef   string         `json:"storage_ref"`
	Status       EvidenceStatus `json:"validation_status"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	ReviewedAt   *time.Time     `json:"reviewed_at,omitempty"`
}

// Review finalizes the document's validation status. Only the pending ->
// validated and pending -> rejected transitions exist.
func (d *EvidenceDocument) Review(status EvidenceStatus, at time.Time) error {
	if d.Status != EvidencePending {
		return dErrors.Newf(dErrors.CodeInvalidState, "evidence already %s", d.Status)
	}
	if status != EvidenceValidated && status != EvidenceRejected {
		return dErrors.Newf(dErrors.CodeValidation, "invalid evidence review status %q", status)
	}
	d.Status = status
	d.ReviewedAt = &at
	return nil
}
