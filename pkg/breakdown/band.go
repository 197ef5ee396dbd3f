package breakdown

// Band is the presentation label derived from score/maxScore.
type Band string

const (
	BandExcellent        Band = "excellent"
	BandGood             Band = "good"
	BandNeedsImprovement Band = "needs-improvement"
	BandCritical         Band = "critical"
)

// BandThreshold maps a minimum score ratio to a band.
type BandThreshold struct {
	MinRatio float64
	Band     Band
}

// Bands is the per-node banding table, highest threshold first.
var Bands = []BandThreshold{
	{MinRatio: 0.9, Band: BandExcellent},
	{MinRatio: 0.7, Band: BandGood},
	{MinRatio: 0.5, Band: BandNeedsImprovement},
}

// BandFor classifies score against maxScore. It is recomputed on every call
// and never stored. A node with no budget is excellent: nothing can be lost.
func BandFor(score, maxScore float64) Band {
	if maxScore <= 0 {
		return BandExcellent
	}
	ratio := score / maxScore
	for _, b := range Bands {
		if ratio >= b.MinRatio {
			return b.Band
		}
	}
	return BandCritical
}
