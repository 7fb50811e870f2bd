package models

import (
	"time"

	"github.com/google/uuid"

	"kinerja/pkg/domain"
	dErrors "kinerja/pkg/domain-errors"
)

// ApprovalStatus tracks the review state of a target.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// IsValid checks if the approval status is one of the supported enum values.
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// Target is the planned value for an indicator in a given period. Exactly
// one target exists per (indicator, period); the store enforces the scope
// atomically at creation.
type Target struct {
	ID          uuid.UUID      `json:"id"`
	IndicatorID uuid.UUID      `json:"indicator_id"`
	Period      domain.Period  `json:"period"`
	Value       float64        `json:"value"`
	Baseline    float64        `json:"baseline,omitempty"`
	Stretch     float64        `json:"stretch,omitempty"`
	Min         float64        `json:"min,omitempty"`
	Max         float64        `json:"max,omitempty"`
	Weight      float64        `json:"weight"`
	Approval    ApprovalStatus `json:"approval_status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewTarget constructs a pending target, enforcing construction invariants.
func NewTarget(id, indicatorID uuid.UUID, period domain.Period, value, weight float64, now time.Time) (*Target, error) {
	switch {
	case id == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "target id is required")
	case indicatorID == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "indicator id is required")
	case !period.IsValid():
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid period %q", period)
	case value <= 0:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "target value must be positive")
	case weight <= 0:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "target weight must be positive")
	}
	return &Target{
		ID:          id,
		IndicatorID: indicatorID,
		Period:      period,
		Value:       value,
		Weight:      weight,
		Approval:    ApprovalPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
