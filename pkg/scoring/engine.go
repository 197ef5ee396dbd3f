package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/facts"
)

// Scorer is the interface that all category scorers implement.
type Scorer interface {
	// Key returns the machine-readable category identifier.
	Key() Category
	// Name returns the human-readable category name.
	Name() string
	// Evaluate computes the category score and its breakdown tree.
	Evaluate(snap *facts.Snapshot, clock Clock) CategoryResult
}

// ErrNilSnapshot is returned by Score when there is nothing to score.
var ErrNilSnapshot = errors.New("snapshot is nil")

// Engine runs all configured scorers against a snapshot and produces a Result.
// An Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	clock   Clock
	scorers []Scorer
}

// NewEngine creates a scoring engine. A nil clock means the system clock.
func NewEngine(clock Clock, scorers ...Scorer) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{clock: clock, scorers: scorers}
}

// Score evaluates all scorers and produces a complete Result. A snapshot
// with as_of set is scored as of that instant instead of the engine clock.
func (e *Engine) Score(snap *facts.Snapshot) (*Result, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	clock := e.clock
	if snap.AsOf.Known() {
		clock = FixedClock(snap.AsOf.Time)
	}

	result := &Result{
		Workspace: snap.Workspace,
		ScoredAt:  clock.Now(),
	}

	var total float64
	for _, s := range e.scorers {
		cr := s.Evaluate(snap, clock)
		cr.Score = round1(math.Min(clamp0(cr.Score), cr.MaxScore))
		total += cr.Score

		switch d := cr.Detail.(type) {
		case *ProfitBreakdown:
			result.Scores.Profit = cr.Score
			result.Breakdown.Profit = d
		case *CashflowBreakdown:
			result.Scores.Cashflow = cr.Score
			result.Breakdown.Cashflow = d
		case *EfficiencyBreakdown:
			result.Scores.Efficiency = cr.Score
			result.Breakdown.Efficiency = d
		case *RiskBreakdown:
			result.Scores.Risk = cr.Score
			result.Breakdown.Risk = d
		default:
			return nil, fmt.Errorf("scorer %s returned unknown breakdown %T", cr.Key, cr.Detail)
		}

		result.Trees = append(result.Trees, cr.Tree)
		result.Explanations = append(result.Explanations, explain(cr))
	}

	result.Total = round1(math.Min(total, 100))
	result.TotalRounded = int(math.Floor(result.Total + 0.5))
	result.Band = breakdown.BandFor(result.Total, 100)
	result.Recommendations = recommend(result.Trees)
	result.Insights = insights(result.Recommendations)

	return result, nil
}

// explain summarizes one category around its weakest calculation.
func explain(cr CategoryResult) Explanation {
	ex := Explanation{
		Category: cr.Key,
		Title:    cr.Name,
		Score:    cr.Score,
		MaxScore: cr.MaxScore,
		Band:     breakdown.BandFor(cr.Score, cr.MaxScore),
	}

	var weakest *breakdown.Node
	leaves := breakdown.Leaves(&cr.Tree)
	for i := range leaves {
		l := &leaves[i]
		ex.Details = append(ex.Details, l.CalculationDescription)
		if l.MaxScore <= 0 {
			continue
		}
		if weakest == nil || l.Score/l.MaxScore < weakest.Score/weakest.MaxScore {
			weakest = l
		}
	}

	ex.Summary = fmt.Sprintf("%s scores %s/%s (%s).", cr.Name, breakdown.Points(cr.Score), breakdown.Points(cr.MaxScore), ex.Band)
	if weakest != nil && weakest.Score < weakest.MaxScore {
		ex.Summary += fmt.Sprintf(" Weakest area: %s at %s/%s.", weakest.Name, breakdown.Points(weakest.Score), breakdown.Points(weakest.MaxScore))
	}
	return ex
}
