// Package scoring computes achievement percentages, ratings, and weighted
// overall scores. All threshold constants live here so the same bucket
// boundaries apply everywhere a rating or compliance status is derived.
package scoring

// Rating labels an achievement or assessment score.
type Rating string

const (
	RatingExcellent Rating = "excellent"
	RatingGood      Rating = "good"
	RatingFair      Rating = "fair"
	RatingPoor      Rating = "poor"
	RatingVeryPoor  Rating = "very_poor"
)

// Rating bucket lower bounds. The buckets partition [0,100] without gaps:
// a score of exactly 90 is excellent, 89.99 is good.
const (
	ThresholdExcellent = 90.0
	ThresholdGood      = 80.0
	ThresholdFair      = 70.0
	ThresholdPoor      = 60.0
)

// RatingFor buckets a score into its rating label.
func RatingFor(score float64) Rating {
	switch {
	case score >= ThresholdExcellent:
		return RatingExcellent
	case score >= ThresholdGood:
		return RatingGood
	case score >= ThresholdFair:
		return RatingFair
	case score >= ThresholdPoor:
		return RatingPoor
	default:
		return RatingVeryPoor
	}
}

// indexBand maps an actual/target ratio floor to a fixed achievement value
// for index-method indicators.
type indexBand struct {
	floor float64
	value float64
}

// Bands are evaluated top-down; the first floor the ratio reaches wins.
var indexBands = []indexBand{
	{1.0, 100},
	{0.9, 90},
	{0.75, 75},
	{0.5, 50},
	{0, 25},
}

// Data-quality verdict policy shared with the validation engine.
const (
	QualityErrorPenalty   = 20.0
	QualityWarningPenalty = 5.0
	QualityValidFloor     = 70.0
)
