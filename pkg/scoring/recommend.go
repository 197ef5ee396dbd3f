package scoring

import (
	"fmt"
	"sort"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
)

// advice is the static guidance attached to a calculation leaf.
type advice struct {
	Title     string
	Action    string
	Effort    Effort
	Timeframe Timeframe
}

var leafAdvice = map[string]advice{
	"profit_no_data": {"Set Up Profit Targets", "Configure a target hourly rate and monthly hours so profit can be measured.", EffortLow, TimeframeImmediate},
	"hourly_rate_value": {"Increase Hourly Rate Value", "Raise rates on new work or shift hours towards higher-value clients.", EffortMedium, TimeframeMonthly},
	"hours_progress": {"Increase Total Hours Tracked", "Log all worked time so monthly hours reach the target.", EffortLow, TimeframeWeekly},
	"billable_ratio": {"Improve Billable Ratio", "Move non-billable time into billable client work.", EffortMedium, TimeframeWeekly},
	"daily_consistency": {"Improve Daily Hour Consistency", "Plan working days around the daily hours target.", EffortLow, TimeframeWeekly},

	"collection_speed": {"Reduce Days Invoice Overdue (DIO)", "Send reminders as soon as invoices pass their due date.", EffortMedium, TimeframeImmediate},
	"volume_efficiency": {"Clear Overdue Invoices", "Follow up on every overdue invoice individually.", EffortLow, TimeframeWeekly},
	"absolute_amount_control": {"Clear Outstanding Amounts", "Prioritize collection of the largest overdue balances.", EffortMedium, TimeframeMonthly},
	"recurring_expense_coverage": {"Register Recurring Expenses", "Book due recurring expenses so costs stay complete.", EffortLow, TimeframeWeekly},

	"invoicing_speed": {"Reduce Days Ready to Invoice (DRI)", "Invoice finished work the day it is ready.", EffortLow, TimeframeWeekly},
	"volume_efficiency_unbilled": {"Reduce Unbilled Item Volume", "Batch ready-to-invoice work into invoices each week.", EffortMedium, TimeframeWeekly},
	"absolute_amount_unbilled": {"Reduce Unbilled Value", "Invoice the largest unbilled amounts first.", EffortMedium, TimeframeWeekly},

	"risk_no_data": {"Start Tracking Time and Revenue", "Record time entries and invoices so risk can be assessed.", EffortLow, TimeframeImmediate},
	"client_concentration_risk": {"Diversify Client Portfolio", "Win work from additional clients to reduce dependence on the largest one.", EffortHigh, TimeframeMonthly},
	"days_per_week_risk": {"Stabilize Working Days", "Work the planned number of days each week.", EffortMedium, TimeframeWeekly},
	"hours_per_day_risk": {"Stabilize Daily Hours", "Keep daily hours close to the target.", EffortMedium, TimeframeWeekly},
	"revenue_stability_risk": {"Stabilize Revenue Stream", "Secure follow-up work before current projects end.", EffortHigh, TimeframeMonthly},
	"client_concentration_trend_risk": {"Reverse Concentration Trend", "Grow revenue from smaller clients this month.", EffortHigh, TimeframeMonthly},
	"consistency_trend_risk": {"Restore Working Rhythm", "Bring daily hours back towards the target.", EffortMedium, TimeframeWeekly},
	"vat_compliance": {"Process VAT Return", "Complete VAT processing for the previous quarter.", EffortLow, TimeframeImmediate},
}

const maxInsights = 3

// recommend produces one recommendation per calculation leaf that is below
// its maximum, ordered by impact.
func recommend(trees []breakdown.Node) []Recommendation {
	var recs []Recommendation
	for i := range trees {
		cat := Category(trees[i].ID)
		for _, leaf := range breakdown.Leaves(&trees[i]) {
			gap := round2(leaf.MaxScore - leaf.Score)
			if gap <= 0 {
				continue
			}
			a, ok := leafAdvice[leaf.ID]
			if !ok {
				a = advice{Title: "Improve " + leaf.Name, Effort: EffortMedium, Timeframe: TimeframeMonthly}
			}
			recs = append(recs, Recommendation{
				ID:          fmt.Sprintf("%s.%s", cat, leaf.ID),
				Category:    cat,
				NodeID:      leaf.ID,
				Priority:    priorityFor(gap),
				Impact:      gap,
				Effort:      a.Effort,
				Timeframe:   a.Timeframe,
				Title:       a.Title,
				Description: describe(a, leaf),
				Metrics: RecommendationMetrics{
					Current:      breakdown.Points(leaf.Score) + " pts",
					Target:       breakdown.Points(leaf.MaxScore) + " pts",
					PointsToGain: gap,
				},
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Impact > recs[j].Impact
	})
	return recs
}

func describe(a advice, leaf breakdown.Node) string {
	if a.Action == "" {
		return leaf.CalculationDescription
	}
	return a.Action + " " + leaf.CalculationDescription
}

func priorityFor(gap float64) Priority {
	switch {
	case gap >= 3:
		return PriorityHigh
	case gap >= 1.5:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// insights condenses recommendations, which must already be sorted by
// impact, into short title lists.
func insights(recs []Recommendation) Insights {
	in := Insights{
		TopPriorities: []string{},
		QuickWins:     []string{},
		LongTermGoals: []string{},
	}
	for _, r := range recs {
		if r.Priority == PriorityHigh && len(in.TopPriorities) < maxInsights {
			in.TopPriorities = append(in.TopPriorities, r.Title)
		}
		if r.Effort == EffortLow && r.Impact >= 3 && len(in.QuickWins) < maxInsights {
			in.QuickWins = append(in.QuickWins, r.Title)
		}
		if r.Timeframe == TimeframeMonthly && len(in.LongTermGoals) < maxInsights {
			in.LongTermGoals = append(in.LongTermGoals, r.Title)
		}
	}
	return in
}
