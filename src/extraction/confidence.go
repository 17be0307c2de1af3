package extraction

import "math"

const (
	baseConfidence        = 0.15
	correspondentBonus    = 0.3
	heuristicVendorBonus  = 0.2
	sameLinePositiveBonus = 0.1
	contextPositiveBonus  = 0.05
	scoreCeiling          = 80
	scoreDivisor          = 180.0
	reviewConfidenceCap   = 0.64
	maxConfidence         = 0.99
	minScoreWithoutReview = 25
)

// decide computes the bounded confidence and the review flag. published is false when
// the winner exists but its amount is withheld (negated).
func decide(winner *AmountCandidate, vendor VendorCandidate, published bool) (float64, bool) {
	confidence := baseConfidence
	switch vendor.Source {
	case VendorSourceCorrespondent:
		confidence += correspondentBonus
	case VendorSourceHeuristic:
		confidence += heuristicVendorBonus
	}

	needsReview := winner == nil || !published || vendor.Value == nil
	if winner != nil {
		score := winner.Score
		if score < 0 {
			score = 0
		}
		if score > scoreCeiling {
			score = scoreCeiling
		}
		confidence += float64(score) / scoreDivisor

		hasPositive := true
		switch {
		case len(winner.PositiveSameLine) > 0:
			confidence += sameLinePositiveBonus
		case len(winner.PositiveContext) > 0:
			confidence += contextPositiveBonus
		default:
			hasPositive = false
		}
		if winner.Score < minScoreWithoutReview || !hasPositive {
			needsReview = true
		}
	}

	if needsReview {
		confidence = math.Min(confidence, reviewConfidenceCap)
	}
	confidence = math.Min(confidence, maxConfidence)
	return math.Round(confidence*100) / 100, needsReview
}
