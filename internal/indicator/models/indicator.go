// Package models defines the indicator and target entities together with
// their construction invariants.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"kinerja/internal/scoring"
	dErrors "kinerja/pkg/domain-errors"
)

// Category classifies an indicator along the results chain. The category
// drives evidence requirements during validation.
type Category string

const (
	CategoryInput   Category = "input"
	CategoryOutput  Category = "output"
	CategoryOutcome Category = "outcome"
	CategoryImpact  Category = "impact"
)

// IsValid checks if the category is one of the supported enum values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryInput, CategoryOutput, CategoryOutcome, CategoryImpact:
		return true
	}
	return false
}

// MeasurementUnit determines the value-range policy applied to submissions.
type MeasurementUnit string

const (
	UnitPercent  MeasurementUnit = "percent"
	UnitRatio    MeasurementUnit = "ratio"
	UnitCount    MeasurementUnit = "count"
	UnitIndex    MeasurementUnit = "index"
	UnitScale100 MeasurementUnit = "scale_100"
)

// IsValid checks if the measurement unit is one of the supported enum values.
func (u MeasurementUnit) IsValid() bool {
	switch u {
	case UnitPercent, UnitRatio, UnitCount, UnitIndex, UnitScale100:
		return true
	}
	return false
}

// Frequency sets how often an indicator collects data.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencySemester  Frequency = "semester"
	FrequencyAnnual    Frequency = "annual"
)

// IsValid checks if the frequency is one of the supported enum values.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencySemester, FrequencyAnnual:
		return true
	}
	return false
}

// Indicator is a tracked performance metric owned by an institution.
// Identity is immutable; descriptive fields may change. Changing the
// category or measurement unit never silently revalidates historical data:
// the owning service flags affected submissions for explicit re-review.
type Indicator struct {
	ID                uuid.UUID                 `json:"id"`
	InstitutionID     uuid.UUID                 `json:"institution_id"`
	Name              string                    `json:"name"`
	Description       string                    `json:"description,omitempty"`
	Unit              MeasurementUnit           `json:"measurement_unit"`
	CollectionMethod  string                    `json:"collection_method,omitempty"`
	CalculationMethod scoring.CalculationMethod `json:"calculation_method"`
	Category          Category                  `json:"category"`
	Weight            float64                   `json:"weight"`
	Mandatory         bool                      `json:"mandatory"`
	Frequency         Frequency                 `json:"frequency"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// NewIndicator constructs an indicator, enforcing construction invariants.
func NewIndicator(id, institutionID uuid.UUID, name string, unit MeasurementUnit, method scoring.CalculationMethod, category Category, weight float64, mandatory bool, frequency Frequency, now time.Time) (*Indicator, error) {
	name = strings.TrimSpace(name)
	switch {
	case id == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "indicator id is required")
	case institutionID == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "institution id is required")
	case name == "":
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "indicator name is required")
	case !unit.IsValid():
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid measurement unit %q", unit)
	case !method.IsValid():
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid calculation method %q", method)
	case !category.IsValid():
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid category %q", category)
	case weight <= 0:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "indicator weight must be positive")
	case !frequency.IsValid():
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid frequency %q", frequency)
	}
	return &Indicator{
		ID:                id,
		InstitutionID:     institutionID,
		Name:              name,
		Unit:              unit,
		CalculationMethod: method,
		Category:          category,
		Weight:            weight,
		Mandatory:         mandatory,
		Frequency:         frequency,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
