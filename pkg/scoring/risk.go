package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/facts"
)

// Penalty ceilings of the risk components.
const (
	clientRiskCeiling     = 9.0
	continuityCeiling     = 8.0
	dailyRiskCeiling      = 8.0
	revenueStabilityMax   = 3.0
	concentrationTrendMax = 2.5
	consistencyTrendMax   = 2.5
	vatCeiling            = 5.0
)

// RiskScorer is penalty based: it starts from the full budget and deducts
// for client concentration, deteriorating trends, irregular working
// patterns and late VAT processing.
type RiskScorer struct {
	T Thresholds
}

func (s *RiskScorer) Key() Category { return CategoryRisk }
func (s *RiskScorer) Name() string  { return "Risk Management" }

func (s *RiskScorer) Evaluate(snap *facts.Snapshot, clock Clock) CategoryResult {
	t := s.T
	r := snap.Risk
	b := &RiskBreakdown{Kind: CategoryRisk}
	res := CategoryResult{Key: s.Key(), Name: s.Name(), MaxScore: CategoryMax, Detail: b}

	if r.Empty() {
		res.Tree = breakdown.Root(string(CategoryRisk), s.Name(), categoryDescriptions[CategoryRisk], 0, CategoryMax,
			noData("risk_no_data", "Track time and revenue to enable risk analysis"),
		)
		return res
	}
	b.HasData = true
	b.TopClientName = r.TopClientName
	b.TopClientShare = clamp0(facts.Num(r.TopClientShare))
	b.TargetDaysPerWeek = orDefault(facts.Num(r.TargetDaysPerWeek), t.DefaultDaysPerWeek)
	// No working days recorded means no signal, not a zero-day week.
	b.EstimatedDaysPerWeek = orDefault(facts.Num(r.EstimatedDaysPerWeek), b.TargetDaysPerWeek)
	b.ActualDailyHours = clamp0(facts.Num(r.ActualDailyHours))
	b.TargetDailyHours = orDefault(facts.Num(r.TargetDailyHours), t.DefaultDailyHours)

	p := &b.Penalties
	p.Client = atLeast(b.TopClientShare, t.ConcentrationTiers, 0)

	b.Continuity = ContinuityWindow{
		CurrentRevenue:      clamp0(facts.Num(r.Current30DBillableRevenue)),
		PreviousRevenue:     clamp0(facts.Num(r.Previous30DBillableRevenue)),
		CurrentClientShare:  clamp0(facts.Num(r.Current30DClientShare)),
		PreviousClientShare: clamp0(facts.Num(r.Previous30DClientShare)),
		CurrentDailyHours:   clamp0(facts.Num(r.Current30DDailyHours)),
		PreviousDailyHours:  clamp0(facts.Num(r.Previous30DDailyHours)),
	}
	s.continuity(b)
	p.BusinessContinuity = round1(p.RevenueStability + p.ConcentrationTrend + p.ConsistencyTrend)

	scale := t.DailyRiskScale
	p.Days = round1(math.Min(math.Abs(b.EstimatedDaysPerWeek-b.TargetDaysPerWeek)/math.Max(b.TargetDaysPerWeek, 1)*scale, scale))
	p.Hours = round1(math.Min(math.Abs(b.ActualDailyHours-b.TargetDailyHours)/math.Max(b.TargetDailyHours, 1)*scale, scale))
	p.DailyConsistency = round1(p.Days + p.Hours)

	if r.VAT != nil {
		b.VAT = vatStatus(r.VAT, clock.Now())
		p.VAT = above(float64(b.VAT.DaysOverdue), t.VATTiers, 0)
	}

	p.Total = round1(p.Client + p.BusinessContinuity + p.DailyConsistency + p.VAT)
	res.Score = round1(clamp0(CategoryMax - p.Total))
	res.Tree = s.buildTree(b, res.Score)
	return res
}

// continuity fills the three trend sub-penalties. A window without a
// previous value has no baseline and gets a fixed moderate penalty.
func (s *RiskScorer) continuity(b *RiskBreakdown) {
	t := s.T
	c := &b.Continuity
	p := &b.Penalties

	if c.PreviousRevenue > 0 {
		p.RevenueStability = atLeast(c.CurrentRevenue/c.PreviousRevenue, t.RevenueStabilityTiers, t.RevenueStabilityWorst)
	} else {
		p.RevenueStability = t.RevenueNoBaseline
	}

	if c.PreviousClientShare > 0 {
		p.ConcentrationTrend = atMost(c.CurrentClientShare-c.PreviousClientShare, t.ConcentrationTrendSteps, t.ConcentrationTrendWorst)
	} else {
		p.ConcentrationTrend = t.TrendNoBaseline
	}

	if c.PreviousDailyHours > 0 {
		target := math.Max(b.TargetDailyHours, 1)
		cur := math.Abs(c.CurrentDailyHours-target) / target
		prev := math.Abs(c.PreviousDailyHours-target) / target
		p.ConsistencyTrend = atMost(cur-prev, t.ConsistencyTrendSteps, t.ConsistencyTrendWorst)
	} else {
		p.ConsistencyTrend = t.TrendNoBaseline
	}

	c.RevenueDirection = direction(c.CurrentRevenue > c.PreviousRevenue, "Growing", "Declining")
	c.ShareDirection = direction(c.CurrentClientShare > c.PreviousClientShare, "Concentrating", "Diversifying")
	c.HoursDirection = direction(c.CurrentDailyHours > c.PreviousDailyHours, "Improving", "Deteriorating")
}

func direction(up bool, yes, no string) string {
	if up {
		return yes
	}
	return no
}

// vatDeadline returns the last day of the quarter before now.
func vatDeadline(now time.Time) time.Time {
	q := (int(now.Month()) - 1) / 3
	return time.Date(now.Year(), time.Month(q*3+1), 0, 0, 0, 0, 0, now.Location())
}

func vatStatus(v *facts.VATFacts, now time.Time) *VATStatus {
	st := &VATStatus{Deadline: vatDeadline(now)}
	if v.LastProcessedAt.Known() {
		last := v.LastProcessedAt.Time
		st.LastProcessedAt = &last
		if !last.Before(st.Deadline) {
			return st
		}
	}
	st.DaysOverdue = max(daysBetween(st.Deadline, now), 0)
	return st
}

func (s *RiskScorer) buildTree(b *RiskBreakdown, score float64) breakdown.Node {
	p := b.Penalties
	c := b.Continuity
	scale := s.T.DailyRiskScale

	concentration := breakdown.Leaf("client_concentration_risk", "Client Concentration Risk",
		fmt.Sprintf("Top client: %s of revenue (rolling 30 days)", breakdown.Percent(b.TopClientShare)),
		breakdown.Calc{
			Label:  "Top Client Share",
			Actual: breakdown.Percent(b.TopClientShare),
			Target: "< 40%",
			Score:  clamp0(clientRiskCeiling - p.Client),
			Max:    clientRiskCeiling,
			Value:  breakdown.Percent(b.TopClientShare),
		})

	daily := breakdown.Branch("daily_consistency_risk", "Daily Consistency Risk",
		fmt.Sprintf("%sh/day vs %sh target (rolling 30 days)", breakdown.Number(b.ActualDailyHours), breakdown.Number(b.TargetDailyHours)),
		clamp0(dailyRiskCeiling-p.DailyConsistency), dailyRiskCeiling,
		breakdown.Leaf("days_per_week_risk", "Days/Week",
			fmt.Sprintf("%s days/week vs %s target (rolling 30 days)", breakdown.Number(b.EstimatedDaysPerWeek), breakdown.Number(b.TargetDaysPerWeek)),
			breakdown.Calc{
				Label:  "Days per Week",
				Actual: breakdown.Number(b.EstimatedDaysPerWeek),
				Target: breakdown.Number(b.TargetDaysPerWeek),
				Score:  clamp0(scale - p.Days),
				Max:    scale,
				Value:  "-" + breakdown.Points(p.Days),
			}),
		breakdown.Leaf("hours_per_day_risk", "Hours/Day",
			fmt.Sprintf("%sh/day vs %sh target (rolling 30 days)", breakdown.Number(b.ActualDailyHours), breakdown.Number(b.TargetDailyHours)),
			breakdown.Calc{
				Label:  "Hours per Day",
				Actual: breakdown.Number(b.ActualDailyHours) + "h",
				Target: breakdown.Number(b.TargetDailyHours) + "h",
				Score:  clamp0(scale - p.Hours),
				Max:    scale,
				Value:  "-" + breakdown.Points(p.Hours),
			}),
	)

	continuity := breakdown.Branch("business_continuity_risk", "Business Continuity Risk",
		"Revenue and stability trend analysis (rolling 30 days)",
		clamp0(continuityCeiling-p.BusinessContinuity), continuityCeiling,
		breakdown.Leaf("revenue_stability_risk", "Revenue Stream Stability", c.RevenueDirection+" (rolling 30 days)", breakdown.Calc{
			Label:  "Billable Revenue",
			Actual: breakdown.Euro(c.CurrentRevenue),
			Target: breakdown.Euro(c.PreviousRevenue),
			Score:  clamp0(revenueStabilityMax - p.RevenueStability),
			Max:    revenueStabilityMax,
			Value:  c.RevenueDirection,
		}),
		breakdown.Leaf("client_concentration_trend_risk", "Client Concentration Trend", c.ShareDirection+" (rolling 30 days)", breakdown.Calc{
			Label:  "Top Client Share",
			Actual: breakdown.Percent(c.CurrentClientShare),
			Target: breakdown.Percent(c.PreviousClientShare),
			Score:  clamp0(concentrationTrendMax - p.ConcentrationTrend),
			Max:    concentrationTrendMax,
			Value:  c.ShareDirection,
		}),
		breakdown.Leaf("consistency_trend_risk", "Daily Consistency Trend", c.HoursDirection+" (rolling 30 days)", breakdown.Calc{
			Label:  "Daily Hours",
			Actual: breakdown.Number(c.CurrentDailyHours) + "h",
			Target: breakdown.Number(c.PreviousDailyHours) + "h",
			Score:  clamp0(consistencyTrendMax - p.ConsistencyTrend),
			Max:    consistencyTrendMax,
			Value:  c.HoursDirection,
		}),
	)

	children := []breakdown.Node{concentration, daily, continuity}
	if v := b.VAT; v != nil {
		last := "never"
		if v.LastProcessedAt != nil {
			last = v.LastProcessedAt.Format(time.DateOnly)
		}
		children = append(children, breakdown.Leaf("vat_compliance", "VAT Compliance",
			fmt.Sprintf("VAT processing is %d days overdue", v.DaysOverdue),
			breakdown.Calc{
				Label:  "Last VAT Processing",
				Actual: last,
				Target: v.Deadline.Format(time.DateOnly),
				Score:  clamp0(vatCeiling - p.VAT),
				Max:    vatCeiling,
				Value:  fmt.Sprintf("%dd", v.DaysOverdue),
			}))
	}

	return breakdown.Root(string(CategoryRisk), s.Name(), categoryDescriptions[CategoryRisk], score, CategoryMax, children...)
}
