package breakdown

import (
	"fmt"
	"math"
	"strconv"
)

// Calc is one explicit formula application: the inputs as displayed and the
// points it produced.
type Calc struct {
	Label  string  // e.g. "Current Rate"
	Actual string  // formatted measured value
	Target string  // formatted goal
	Score  float64 // points earned
	Max    float64 // points available
	Value  string  // short headline, e.g. "85%"
}

// String renders the audit trail shown when a leaf is opened:
//
//	<label>: <actual> vs <target> → <score>/<max> pts
func (c Calc) String() string {
	return fmt.Sprintf("%s: %s vs %s → %s/%s pts", c.Label, c.Actual, c.Target, Points(c.Score), Points(c.Max))
}

// Points formats a score with at most two decimals and no trailing zeros.
func Points(v float64) string {
	return strconv.FormatFloat(roundTo(v, 2), 'f', -1, 64)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(v*p+0.5) / p
}
