// Package models defines assessments, their criteria, and the approval
// state machine that gates the lifecycle.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
)

// Status is the assessment lifecycle state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInReview   Status = "in_review"
	StatusSubmitted  Status = "submitted"
	StatusInApproval Status = "in_approval"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// Active reports whether the assessment still occupies its scope. Only one
// active assessment may exist per institution and period.
func (s Status) Active() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusSubmitted, StatusInApproval:
		return true
	}
	return false
}

// ReviewDecision is the outcome a reviewer records on a submitted
// assessment.
type ReviewDecision string

const (
	DecisionApproved      ReviewDecision = "approved"
	DecisionRejected      ReviewDecision = "rejected"
	DecisionNeedsRevision ReviewDecision = "needs_revision"
	// DecisionEscalated forwards a submitted assessment to the final
	// approver without deciding it.
	DecisionEscalated ReviewDecision = "escalated"
)

// Assessment scores an institution's indicators for one period. Criteria
// roll up into the overall score; the status field walks the approval state
// machine and nothing else mutates it.
type Assessment struct {
	ID            uuid.UUID      `json:"id"`
	InstitutionID uuid.UUID      `json:"institution_id"`
	Period        domain.Period  `json:"period"`
	AssessorID    uuid.UUID      `json:"assessor_id"`
	Status        Status         `json:"status"`
	OverallScore  float64        `json:"overall_score"`
	Rating        scoring.Rating `json:"rating,omitempty"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
	SubmittedBy   uuid.UUID      `json:"submitted_by,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	ReviewedBy    uuid.UUID      `json:"reviewed_by,omitempty"`
	ReviewNotes   string         `json:"review_notes,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Criterion is one scored, indicator-derived line item of an assessment.
// A nil Score means not yet assessed.
type Criterion struct {
	ID           uuid.UUID      `json:"id"`
	AssessmentID uuid.UUID      `json:"assessment_id"`
	IndicatorID  uuid.UUID      `json:"indicator_id"`
	Weight       float64        `json:"weight"`
	Score        *float64       `json:"score,omitempty"`
	Rating       scoring.Rating `json:"rating,omitempty"`
}

// Scored reports whether the criterion has been assessed.
func (c *Criterion) Scored() bool {
	return c.Score != nil
}

// New constructs a draft assessment.
func New(id, institutionID, assessorID uuid.UUID, period domain.Period, now time.Time) (*Assessment, error) {
	switch {
	case id == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "assessment id is required")
	case institutionID == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "institution id is required")
	case assessorID == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "assessor id is required")
	case !period.IsValid():
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid period %q", period)
	}
	return &Assessment{
		ID:            id,
		InstitutionID: institutionID,
		Period:        period,
		AssessorID:    assessorID,
		Status:        StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// transitionError reports an out-of-state request. No transition ever
// silently no-ops.
func transitionError(from Status, attempted string) error {
	return dErrors.Newf(dErrors.CodeInvalidState, "cannot %s an assessment in status %q", attempted, from)
}

// BeginScoring guards the updateScoring transition: permitted only from
// draft or in_review, and always lands in in_review.
func (a *Assessment) BeginScoring(now time.Time) error {
	if a.Status != StatusDraft && a.Status != StatusInReview {
		return transitionError(a.Status, "score")
	}
	a.Status = StatusInReview
	a.UpdatedAt = now
	return nil
}

// Submit finalizes scoring. Permitted only from in_review; callers must
// have verified every criterion is scored before invoking.
func (a *Assessment) Submit(actor uuid.UUID, now time.Time) error {
	if a.Status != StatusInReview {
		return transitionError(a.Status, "submit")
	}
	a.Status = StatusSubmitted
	a.SubmittedAt = &now
	a.SubmittedBy = actor
	a.UpdatedAt = now
	return nil
}

// Review applies a reviewer decision. Permitted from submitted or
// in_approval; escalation exists only from submitted. Rejections and
// revision requests require notes, and needs_revision loops the assessment
// back to draft for rework.
func (a *Assessment) Review(decision ReviewDecision, notes string, reviewer uuid.UUID, now time.Time) error {
	if a.Status != StatusSubmitted && a.Status != StatusInApproval {
		return transitionError(a.Status, "review")
	}
	notes = strings.TrimSpace(notes)

	switch decision {
	case DecisionApproved:
		a.Status = StatusApproved
	case DecisionRejected:
		if notes == "" {
			return dErrors.New(dErrors.CodeValidation, "rejection requires review notes")
		}
		a.Status = StatusRejected
	case DecisionNeedsRevision:
		if notes == "" {
			return dErrors.New(dErrors.CodeValidation, "a revision request requires review notes")
		}
		a.Status = StatusDraft
	case DecisionEscalated:
		if a.Status != StatusSubmitted {
			return transitionError(a.Status, "escalate")
		}
		a.Status = StatusInApproval
	default:
		return dErrors.Newf(dErrors.CodeValidation, "invalid review decision %q", decision)
	}

	a.ReviewedAt = &now
	a.ReviewedBy = reviewer
	a.ReviewNotes = notes
	a.UpdatedAt = now
	return nil
}

// Deletable reports whether the assessment may be destroyed: only drafts
// that never entered review.
func (a *Assessment) Deletable() bool {
	return a.Status == StatusDraft && a.SubmittedAt == nil
}
