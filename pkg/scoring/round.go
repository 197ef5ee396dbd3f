package scoring

import (
	"math"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
)

var categoryDescriptions = map[Category]string{
	CategoryProfit:     "Revenue generation and value creation efficiency",
	CategoryCashflow:   "Payment collection and outstanding invoice management",
	CategoryEfficiency: "How well work is converted to revenue",
	CategoryRisk:       "Business continuity and operational risk factors",
}

// round1 rounds half-up to one decimal.
func round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

func clamp0(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// noData is the single leaf of a category that could not be scored.
func noData(id, hint string) breakdown.Node {
	return breakdown.Leaf(id, "No Data Available", hint, breakdown.Calc{
		Label:  "No Data Available",
		Actual: "none",
		Target: "configured",
		Score:  0,
		Max:    CategoryMax,
		Value:  "n/a",
	})
}
