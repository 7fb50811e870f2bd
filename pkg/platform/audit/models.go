// Package audit records structured, append-only events for every
// state-changing operation in the core. Recording is observational:
// failures are logged and swallowed, never propagated to the caller.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
)

// Action names a recorded operation.
type Action string

const (
	// Indicator and target actions
	ActionIndicatorCreated Action = "indicator_created"
	ActionIndicatorUpdated Action = "indicator_updated"
	ActionIndicatorFlagged Action = "indicator_data_flagged_for_review"
	ActionTargetCreated    Action = "target_created"
	ActionTargetReviewed   Action = "target_reviewed"

	// Performance data actions
	ActionDataSubmitted    Action = "performance_data_submitted"
	ActionDataValidated    Action = "performance_data_validated"
	ActionEvidenceAdded    Action = "evidence_uploaded"
	ActionEvidenceReviewed Action = "evidence_reviewed"

	// Assessment actions
	ActionAssessmentCreated   Action = "assessment_created"
	ActionAssessmentScored    Action = "assessment_scored"
	ActionAssessmentSubmitted Action = "assessment_submitted"
	ActionAssessmentReviewed  Action = "assessment_reviewed"

	// Report actions
	ActionReportCreated   Action = "report_created"
	ActionReportSubmitted Action = "report_submitted"
	ActionReportReviewed  Action = "report_reviewed"

	// Compliance actions
	ActionComplianceChecked Action = "compliance_checked"
)

// EntityRef points an event at the entity it concerns.
type EntityRef struct {
	Kind string    `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// Event is one append-only audit record. Before and After snapshots are
// sanitized before the event reaches any store.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	ActorID       uuid.UUID      `json:"actor_id"`
	InstitutionID uuid.UUID      `json:"institution_id,omitempty"`
	Action        Action         `json:"action"`
	Entity        EntityRef      `json:"entity"`
	Before        map[string]any `json:"before,omitempty"`
	After         map[string]any `json:"after,omitempty"`
	Period        string         `json:"period,omitempty"`
	ClientIP      string         `json:"client_ip,omitempty"`
	Device        string         `json:"device,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	Module        string         `json:"module,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]Event, error)
	CountByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period string) (int, error)
}

// sensitiveKeys are redacted from before/after snapshots. Matching is
// case-insensitive on key substrings.
var sensitiveKeys = []string{
	"password", "token", "secret", "api_key", "apikey",
	"authorization", "credential", "private_key",
}

const redactedPlaceholder = "[REDACTED]"

// Sanitize returns a copy of the snapshot with sensitive values replaced.
// A nil snapshot stays nil.
func Sanitize(snapshot map[string]any) map[string]any {
	if snapshot == nil {
		return nil
	}
	clean := make(map[string]any, len(snapshot))
	for key, value := range snapshot {
		if isSensitiveKey(key) {
			clean[key] = redactedPlaceholder
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			clean[key] = Sanitize(nested)
			continue
		}
		clean[key] = value
	}
	return clean
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// DeviceSummary condenses a raw User-Agent header into "browser/os" for the
// audit trail, keeping events compact and free of full UA strings.
func DeviceSummary(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	parts := []string{}
	if name != "" {
		if version != "" {
			name += " " + version
		}
		parts = append(parts, name)
	}
	if os := ua.OS(); os != "" {
		parts = append(parts, os)
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, " / ")
}
