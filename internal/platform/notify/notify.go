// Package notify dispatches fire-and-forget notifications about assessment
// transitions and compliance violations. Delivery (email, SMS, push) is an
// external collaborator; this package only hands messages to the broker.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindAssessmentTransition  Kind = "assessment_transition"
	KindComplianceViolation   Kind = "compliance_violation"
	KindSubmissionValidated   Kind = "submission_validated"
)

// Message is one outbound notification.
type Message struct {
	Kind          Kind      `json:"kind"`
	InstitutionID uuid.UUID `json:"institution_id"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Dispatcher sends messages best-effort. Implementations must never let a
// delivery failure surface to the calling business operation.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message)
}

// Noop discards all messages; used when no broker is configured.
type Noop struct{}

func (Noop) Dispatch(context.Context, Message) {}
