package scoring

import "math"

// CalculationMethod selects how an actual value is compared to its target.
type CalculationMethod string

const (
	MethodPercentage CalculationMethod = "percentage"
	MethodRatio      CalculationMethod = "ratio"
	MethodAbsolute   CalculationMethod = "absolute"
	MethodIndex      CalculationMethod = "index"
)

// IsValid checks if the calculation method is one of the supported values.
func (m CalculationMethod) IsValid() bool {
	switch m {
	case MethodPercentage, MethodRatio, MethodAbsolute, MethodIndex:
		return true
	}
	return false
}

// ScoreResult pairs an achievement percentage with its rating label.
type ScoreResult struct {
	Achievement float64 `json:"achievement"`
	Rating      Rating  `json:"rating"`
}

// Criterion is one scored, weighted line item in a weighted aggregate.
type Criterion struct {
	Score  float64
	Weight float64
}

// Achievement computes the achievement percentage for an actual value
// against its target using the indicator's calculation method.
//
// A zero target never divides: actual > 0 counts as full achievement,
// otherwise zero, regardless of method.
func Achievement(method CalculationMethod, actual, target float64) float64 {
	if target == 0 {
		if actual > 0 {
			return 100
		}
		return 0
	}

	switch method {
	case MethodRatio:
		return round2((1 - math.Abs(1-actual/target)) * 100)
	case MethodAbsolute:
		if actual >= target {
			return 100
		}
		return round2(actual / target * 100)
	case MethodIndex:
		ratio := actual / target
		if ratio < 0 {
			return 0
		}
		for _, band := range indexBands {
			if ratio >= band.floor {
				return band.value
			}
		}
		return 0
	default: // MethodPercentage
		return round2(actual / target * 100)
	}
}

// Score computes achievement and rating in one step.
func Score(method CalculationMethod, actual, target float64) ScoreResult {
	achievement := Achievement(method, actual, target)
	return ScoreResult{Achievement: achievement, Rating: RatingFor(achievement)}
}

// Overall computes the weighted mean score of a set of criteria, rounded to
// two decimals. Zero total weight yields zero; no division by zero occurs.
func Overall(criteria []Criterion) ScoreResult {
	var weightedSum, totalWeight float64
	for _, c := range criteria {
		weightedSum += c.Score * c.Weight
		totalWeight += c.Weight
	}
	if totalWeight == 0 {
		return ScoreResult{Achievement: 0, Rating: RatingFor(0)}
	}
	overall := round2(weightedSum / totalWeight)
	return ScoreResult{Achievement: overall, Rating: RatingFor(overall)}
}

// QualityScore applies the shared data-quality penalty model and clamps the
// result into [0,100].
func QualityScore(errorCount, warningCount int) float64 {
	score := 100 - QualityErrorPenalty*float64(errorCount) - QualityWarningPenalty*float64(warningCount)
	return math.Min(100, math.Max(0, score))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
