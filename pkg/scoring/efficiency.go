package scoring

import (
	"fmt"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/facts"
)

// EfficiencyScorer rates how quickly finished work becomes an invoice. It
// mirrors CashflowScorer over days ready to invoice and unbilled work.
type EfficiencyScorer struct {
	T Thresholds
}

func (s *EfficiencyScorer) Key() Category { return CategoryEfficiency }
func (s *EfficiencyScorer) Name() string  { return "Efficiency Health" }

func (s *EfficiencyScorer) Evaluate(snap *facts.Snapshot, _ Clock) CategoryResult {
	t := s.T
	e := snap.Efficiency
	b := &EfficiencyBreakdown{
		Kind:          CategoryEfficiency,
		AverageDRI:    clamp0(facts.Num(e.AverageDRI)),
		UnbilledCount: max(e.UnbilledCount, 0),
		UnbilledValue: clamp0(facts.Num(e.UnbilledValue)),
	}

	b.DRIScore = atMost(b.AverageDRI, t.DaySteps, 0)
	b.VolumeScore = atMost(float64(b.UnbilledCount), t.CountSteps, 0)
	b.AmountScore = atMost(b.UnbilledValue, t.AmountSteps, 0)

	score := round1(clamp0(b.DRIScore + b.VolumeScore + b.AmountScore))
	return CategoryResult{
		Key:      s.Key(),
		Name:     s.Name(),
		Score:    score,
		MaxScore: CategoryMax,
		Detail:   b,
		Tree:     s.buildTree(b, score),
	}
}

func (s *EfficiencyScorer) buildTree(b *EfficiencyBreakdown, score float64) breakdown.Node {
	t := s.T
	return breakdown.Root(string(CategoryEfficiency), s.Name(), categoryDescriptions[CategoryEfficiency], score, CategoryMax,
		breakdown.Leaf("invoicing_speed", "Days Ready to Invoice (DRI)",
			fmt.Sprintf("%s days average ready-to-invoice time", breakdown.Number(b.AverageDRI)),
			breakdown.Calc{
				Label:  "DRI",
				Actual: breakdown.Number(b.AverageDRI) + " days",
				Target: "0 days",
				Score:  b.DRIScore,
				Max:    maxPoints(t.DaySteps),
				Value:  breakdown.Number(b.AverageDRI) + "d",
			}),
		breakdown.Leaf("volume_efficiency_unbilled", "Volume Efficiency",
			fmt.Sprintf("%d clients with ready-to-invoice work", b.UnbilledCount),
			breakdown.Calc{
				Label:  "Unbilled Items",
				Actual: fmt.Sprint(b.UnbilledCount),
				Target: "0",
				Score:  b.VolumeScore,
				Max:    maxPoints(t.CountSteps),
				Value:  fmt.Sprint(b.UnbilledCount),
			}),
		breakdown.Leaf("absolute_amount_unbilled", "Absolute Amount Control",
			breakdown.Euro(b.UnbilledValue)+" ready to invoice",
			breakdown.Calc{
				Label:  "Unbilled Value",
				Actual: breakdown.Euro(b.UnbilledValue),
				Target: breakdown.Euro(0),
				Score:  b.AmountScore,
				Max:    maxPoints(t.AmountSteps),
				Value:  breakdown.Euro(b.UnbilledValue),
			}),
	)
}
