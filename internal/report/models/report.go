// Package models defines periodic accountability reports.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Report is a periodic accountability document an institution files for a
// period. Submitted reports feed the report-submission compliance check.
type Report struct {
	ID            uuid.UUID     `json:"id"`
	InstitutionID uuid.UUID     `json:"institution_id"`
	Period        domain.Period `json:"period"`
	Title         string        `json:"title"`
	Summary       string        `json:"summary,omitempty"`
	Status        Status        `json:"status"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
	ReviewedAt    *time.Time    `json:"reviewed_at,omitempty"`
	ReviewNotes   string        `json:"review_notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Filed reports whether the report counts toward compliance: drafts do
// not, everything past submission does.
func (r *Report) Filed() bool {
	return r.Status != StatusDraft
}

func New(id, institutionID uuid.UUID, period domain.Period, title string, now time.Time) (*Report, error) {
	title = strings.TrimSpace(title)
	switch {
	case id == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report id is required")
	case institutionID == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "institution id is required")
	case !period.IsValid():
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid period %q", period)
	case title == "":
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report title is required")
	}
	return &Report{
		ID:            id,
		InstitutionID: institutionID,
		Period:        period,
		Title:         title,
		Status:        StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Submit files the report. Only drafts submit.
func (r *Report) Submit(now time.Time) error {
	if r.Status != StatusDraft {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot submit a report in status %q", r.Status)
	}
	r.Status = StatusSubmitted
	r.SubmittedAt = &now
	r.UpdatedAt = now
	return nil
}

// Review decides a submitted report.
func (r *Report) Review(approved bool, notes string, now time.Time) error {
	if r.Status != StatusSubmitted {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot review a report in status %q", r.Status)
	}
	notes = strings.TrimSpace(notes)
	if approved {
		r.Status = StatusApproved
	} else {
		if notes == "" {
			return dErrors.New(dErrors.CodeValidation, "rejection requires review notes")
		}
		r.Status = StatusRejected
	}
	r.ReviewedAt = &now
	r.ReviewNotes = notes
	r.UpdatedAt = now
	return nil
}
