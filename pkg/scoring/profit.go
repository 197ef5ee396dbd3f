package scoring

import (
	"fmt"
	"math"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/facts"
)

// ProfitScorer rates revenue generation: hourly rate against target and
// how well tracked time is turned into billable hours.
type ProfitScorer struct {
	T Thresholds
}

func (s *ProfitScorer) Key() Category { return CategoryProfit }
func (s *ProfitScorer) Name() string  { return "Profit Health" }

func (s *ProfitScorer) Evaluate(snap *facts.Snapshot, _ Clock) CategoryResult {
	t := s.T
	p := snap.Profit
	b := &ProfitBreakdown{
		Kind:                CategoryProfit,
		CurrentRate:         facts.Num(p.CurrentRate),
		TargetRate:          facts.Num(p.TargetRate),
		CurrentHours:        facts.Num(p.CurrentHours),
		MTDTargetHours:      facts.Num(p.MTDTargetHours),
		ActualBillableRatio: facts.Num(p.ActualBillableRatio),
		TargetBillableRatio: orDefault(facts.Num(p.TargetBillableRatio), t.DefaultBillableRatio),
		ActualDailyHours:    facts.Num(p.ActualDailyHours),
		TargetDailyHours:    orDefault(facts.Num(p.TargetDailyHours), t.DefaultDailyHours),
	}

	res := CategoryResult{Key: s.Key(), Name: s.Name(), MaxScore: CategoryMax, Detail: b}

	if b.TargetRate <= 0 || b.MTDTargetHours <= 0 {
		res.Tree = breakdown.Root(string(CategoryProfit), s.Name(), categoryDescriptions[CategoryProfit], 0, CategoryMax,
			noData("profit_no_data", "Set a target hourly rate and monthly hours to enable profit scoring"),
		)
		return res
	}
	b.Configured = true

	b.RatePerformance = math.Min(b.CurrentRate/b.TargetRate, t.RatePerformanceCap)
	b.HourlyRateScore = round1(clamp0(math.Min(b.RatePerformance*4, 4) * t.RateMaxPoints / 4))

	b.HoursScore = round1(clamp0(math.Min(b.CurrentHours/math.Max(b.MTDTargetHours, 1)*t.HoursProgressMax, t.HoursProgressMax)))
	b.BillableScore = round1(clamp0(math.Min(b.ActualBillableRatio/b.TargetBillableRatio*t.BillableRatioMax, t.BillableRatioMax)))
	b.ConsistencyScore = round1(clamp0(math.Min(b.ActualDailyHours/b.TargetDailyHours*t.DailyConsistencyMax, t.DailyConsistencyMax)))
	b.TimeUtilizationScore = round1(b.HoursScore + b.BillableScore + b.ConsistencyScore)

	res.Score = round1(clamp0(math.Min(b.HourlyRateScore+b.TimeUtilizationScore, CategoryMax)))
	res.Tree = s.buildTree(b, res.Score)
	return res
}

func (s *ProfitScorer) buildTree(b *ProfitBreakdown, score float64) breakdown.Node {
	t := s.T
	utilMax := t.HoursProgressMax + t.BillableRatioMax + t.DailyConsistencyMax
	hoursDesc := fmt.Sprintf("%sh of %sh monthly target (rolling 30-day)", breakdown.Number(b.CurrentHours), breakdown.Number(b.MTDTargetHours))

	return breakdown.Root(string(CategoryProfit), s.Name(), categoryDescriptions[CategoryProfit], score, CategoryMax,
		breakdown.Leaf("hourly_rate_value", "Hourly Rate Value", "Current effective hourly rate vs target rate", breakdown.Calc{
			Label:  "Current Rate",
			Actual: breakdown.Euro(b.CurrentRate) + "/hr",
			Target: breakdown.Euro(b.TargetRate) + "/hr",
			Score:  b.HourlyRateScore,
			Max:    t.RateMaxPoints,
			Value:  breakdown.Percent(b.RatePerformance * 100),
		}),
		breakdown.Branch("time_utilization_efficiency", "Time Utilization Efficiency", hoursDesc, b.TimeUtilizationScore, utilMax,
			breakdown.Leaf("hours_progress", "Hours Progress", hoursDesc, breakdown.Calc{
				Label:  "Hours Tracked",
				Actual: breakdown.Number(b.CurrentHours) + "h",
				Target: breakdown.Number(b.MTDTargetHours) + "h",
				Score:  b.HoursScore,
				Max:    t.HoursProgressMax,
				Value:  breakdown.Number(b.CurrentHours) + "h",
			}),
			breakdown.Leaf("billable_ratio", "Billable Ratio",
				fmt.Sprintf("%s actual vs %s target (rolling 30-day)", breakdown.Percent(b.ActualBillableRatio), breakdown.Percent(b.TargetBillableRatio)),
				breakdown.Calc{
					Label:  "Billable Ratio",
					Actual: breakdown.Percent(b.ActualBillableRatio),
					Target: breakdown.Percent(b.TargetBillableRatio),
					Score:  b.BillableScore,
					Max:    t.BillableRatioMax,
					Value:  breakdown.Percent(b.ActualBillableRatio),
				}),
			breakdown.Leaf("daily_consistency", "Daily Consistency",
				fmt.Sprintf("%sh/day vs %sh target", breakdown.Number(b.ActualDailyHours), breakdown.Number(b.TargetDailyHours)),
				breakdown.Calc{
					Label:  "Daily Hours",
					Actual: breakdown.Number(b.ActualDailyHours) + "h",
					Target: breakdown.Number(b.TargetDailyHours) + "h",
					Score:  b.ConsistencyScore,
					Max:    t.DailyConsistencyMax,
					Value:  breakdown.Number(b.ActualDailyHours) + "h/day",
				}),
		),
	)
}
