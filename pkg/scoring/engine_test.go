package scoring_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/facts"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

var now = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

func newEngine() *scoring.Engine {
	return scoring.NewDefaultEngine(scoring.FixedClock(now))
}

func ptr(v float64) *float64 { return &v }

func fixture() *facts.Snapshot {
	return &facts.Snapshot{
		Workspace: "acme",
		Profit: facts.ProfitFacts{
			CurrentRate:         85,
			TargetRate:          100,
			CurrentHours:        120,
			MTDTargetHours:      160,
			ActualBillableRatio: 75,
			TargetBillableRatio: 90,
			ActualDailyHours:    6,
			TargetDailyHours:    8,
		},
		Cashflow: facts.CashflowFacts{
			DIOEquivalent: ptr(5),
			OverdueCount:  2,
			OverdueAmount: 2500,
		},
		Efficiency: facts.EfficiencyFacts{},
		Risk: facts.RiskFacts{
			TopClientName:              "Globex",
			TopClientShare:             45,
			Current30DBillableRevenue:  10000,
			Previous30DBillableRevenue: 9500,
			Current30DClientShare:      45,
			Previous30DClientShare:     50,
			Current30DDailyHours:       7.5,
			Previous30DDailyHours:      7,
			EstimatedDaysPerWeek:       5,
			TargetDaysPerWeek:          5,
			ActualDailyHours:           7.5,
			TargetDailyHours:           8,
		},
	}
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func score(t *testing.T, snap *facts.Snapshot) *scoring.Result {
	t.Helper()
	res, err := newEngine().Score(snap)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	return res
}

func TestEngineScoresFixture(t *testing.T) {
	res := score(t, fixture())

	want := scoring.Scores{Profit: 20.3, Cashflow: 18, Efficiency: 25, Risk: 21.7}
	for _, c := range []scoring.Category{scoring.CategoryProfit, scoring.CategoryCashflow, scoring.CategoryEfficiency, scoring.CategoryRisk} {
		if got := res.Scores.Get(c); !almost(got, want.Get(c)) {
			t.Errorf("%s score = %v, want %v", c, got, want.Get(c))
		}
	}
	if !almost(res.Total, 85) {
		t.Errorf("Total = %v, want 85", res.Total)
	}
	if res.TotalRounded != 85 {
		t.Errorf("TotalRounded = %d, want 85", res.TotalRounded)
	}
	if res.Band != breakdown.BandGood {
		t.Errorf("Band = %s, want good", res.Band)
	}
	if !res.ScoredAt.Equal(now) {
		t.Errorf("ScoredAt = %v, want %v", res.ScoredAt, now)
	}
	if res.Workspace != "acme" {
		t.Errorf("Workspace = %q", res.Workspace)
	}

	var ids []string
	for _, tree := range res.Trees {
		ids = append(ids, tree.ID)
	}
	if !reflect.DeepEqual(ids, []string{"profit", "cashflow", "efficiency", "risk"}) {
		t.Errorf("tree order = %v", ids)
	}
	if res.Breakdown.Profit == nil || res.Breakdown.Cashflow == nil || res.Breakdown.Efficiency == nil || res.Breakdown.Risk == nil {
		t.Fatal("expected all four breakdown variants")
	}
	if res.Breakdown.Risk.Category() != scoring.CategoryRisk || res.Breakdown.Risk.Kind != scoring.CategoryRisk {
		t.Error("risk breakdown is not tagged as risk")
	}
	if len(res.Explanations) != 4 {
		t.Errorf("expected 4 explanations, got %d", len(res.Explanations))
	}
}

func TestScoreNilSnapshot(t *testing.T) {
	_, err := newEngine().Score(nil)
	if !errors.Is(err, scoring.ErrNilSnapshot) {
		t.Errorf("Score(nil) error = %v, want ErrNilSnapshot", err)
	}
}

func TestProfitLeafValues(t *testing.T) {
	res := score(t, fixture())
	tree := res.Tree(scoring.CategoryProfit)

	tests := []struct {
		id   string
		want float64
	}{
		{"hourly_rate_value", 8.5},
		{"time_utilization_efficiency", 11.8},
		{"hours_progress", 4.5},
		{"billable_ratio", 5},
		{"daily_consistency", 2.3},
	}
	for _, tt := range tests {
		n := breakdown.Find(tree, tt.id)
		if n == nil {
			t.Errorf("node %s not found", tt.id)
			continue
		}
		if !almost(n.Score, tt.want) {
			t.Errorf("%s score = %v, want %v", tt.id, n.Score, tt.want)
		}
	}

	rate := breakdown.Find(tree, "hourly_rate_value")
	if want := "Current Rate: €85/hr vs €100/hr → 8.5/10 pts"; rate.CalculationDescription != want {
		t.Errorf("calculation = %q, want %q", rate.CalculationDescription, want)
	}
}

func TestScoresStayInRange(t *testing.T) {
	nan := math.NaN()
	snaps := map[string]*facts.Snapshot{
		"empty": {},
		"fixture": fixture(),
		"huge": {
			Profit:     facts.ProfitFacts{CurrentRate: 1e9, TargetRate: 1, CurrentHours: 1e6, MTDTargetHours: 1, ActualBillableRatio: 500, ActualDailyHours: 24},
			Cashflow:   facts.CashflowFacts{OverdueCount: 1000, OverdueAmount: 1e9},
			Efficiency: facts.EfficiencyFacts{AverageDRI: 1e6, UnbilledCount: 1e6, UnbilledValue: 1e9},
			Risk:       facts.RiskFacts{TopClientShare: 100, EstimatedDaysPerWeek: 7, ActualDailyHours: 24, VAT: &facts.VATFacts{}},
		},
		"negative": {
			Profit:     facts.ProfitFacts{CurrentRate: -50, TargetRate: 100, CurrentHours: -10, MTDTargetHours: 160, ActualBillableRatio: -5},
			Cashflow:   facts.CashflowFacts{DIOEquivalent: ptr(-3), OverdueCount: -1, OverdueAmount: -100},
			Efficiency: facts.EfficiencyFacts{AverageDRI: -1, UnbilledValue: -1},
			Risk:       facts.RiskFacts{TopClientShare: -10, Current30DBillableRevenue: -5},
		},
		"nan": {
			Profit:   facts.ProfitFacts{CurrentRate: nan, TargetRate: 100, CurrentHours: nan, MTDTargetHours: 160},
			Cashflow: facts.CashflowFacts{DIOEquivalent: ptr(nan), OverdueAmount: math.Inf(1)},
			Risk:     facts.RiskFacts{TopClientShare: nan, ActualDailyHours: 7},
		},
	}

	for name, snap := range snaps {
		t.Run(name, func(t *testing.T) {
			res := score(t, snap)
			for _, c := range []scoring.Category{scoring.CategoryProfit, scoring.CategoryCashflow, scoring.CategoryEfficiency, scoring.CategoryRisk} {
				v := res.Scores.Get(c)
				if math.IsNaN(v) || v < 0 || v > scoring.CategoryMax {
					t.Errorf("%s score %v out of range", c, v)
				}
			}
			if math.IsNaN(res.Total) || res.Total < 0 || res.Total > 100 {
				t.Errorf("total %v out of range", res.Total)
			}
			for _, tree := range res.Trees {
				if err := breakdown.Validate(tree); err != nil {
					t.Errorf("Validate(%s): %v", tree.ID, err)
				}
				breakdown.Walk(&tree, func(n, _ *breakdown.Node) bool {
					if math.IsNaN(n.Score) || math.IsNaN(n.Contribution) {
						t.Errorf("%s has NaN", n.ID)
					}
					return true
				})
			}
		})
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	snap := fixture()
	snap.Cashflow.Recurring = &facts.RecurringExpenseFacts{}
	snap.Risk.VAT = &facts.VATFacts{}

	a := score(t, snap)
	b := score(t, snap)
	if !reflect.DeepEqual(a, b) {
		t.Error("scoring the same snapshot twice gave different results")
	}
}

func TestHourlyRateIsMonotonic(t *testing.T) {
	prev := -1.0
	for rate := 0.0; rate <= 200; rate += 2.5 {
		snap := fixture()
		snap.Profit.CurrentRate = rate
		res := score(t, snap)
		got := res.Breakdown.Profit.HourlyRateScore
		if got < prev {
			t.Fatalf("hourly rate score dropped from %v to %v at rate %v", prev, got, rate)
		}
		if rate >= 100 && !almost(got, 10) {
			t.Errorf("rate %v: score = %v, want cap 10", rate, got)
		}
		prev = got
	}
}

func TestProfitRequiresTargets(t *testing.T) {
	snap := fixture()
	snap.Profit.TargetRate = 0

	res := score(t, snap)
	if res.Scores.Profit != 0 {
		t.Errorf("profit score = %v, want 0", res.Scores.Profit)
	}
	if res.Breakdown.Profit.Configured {
		t.Error("expected Configured=false")
	}
	tree := res.Tree(scoring.CategoryProfit)
	if len(tree.Children) != 1 || tree.Children[0].Name != "No Data Available" {
		t.Errorf("expected a single No Data leaf, got %+v", tree.Children)
	}
	if err := breakdown.Validate(*tree); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestCashflowEstimatesDIO(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		amount    float64
		wantDIO   float64
		wantScore float64
	}{
		{"small invoices", 2, 600, 24, 3 + 3 + 3},
		{"medium invoices", 2, 2000, 37.5, 0 + 3 + 3},
		{"large invoices", 2, 10000, 60, 0 + 3 + 0},
		{"nothing overdue", 0, 0, 0, 15 + 5 + 5},
		{"overdue count without amount", 2, 0, 0, 15 + 3 + 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := fixture()
			snap.Cashflow = facts.CashflowFacts{OverdueCount: tt.count, OverdueAmount: tt.amount}
			res := score(t, snap)
			b := res.Breakdown.Cashflow
			if !almost(b.DIOEquivalent, tt.wantDIO) {
				t.Errorf("DIO = %v, want %v", b.DIOEquivalent, tt.wantDIO)
			}
			if b.DIOEstimated != (tt.count > 0 && tt.amount > 0) {
				t.Errorf("DIOEstimated = %v", b.DIOEstimated)
			}
			if !almost(res.Scores.Cashflow, tt.wantScore) {
				t.Errorf("cashflow = %v, want %v", res.Scores.Cashflow, tt.wantScore)
			}
		})
	}
}

func TestCashflowRecurringPenalty(t *testing.T) {
	tests := []struct {
		name      string
		recurring *facts.RecurringExpenseFacts
		want      float64
	}{
		{"many due", &facts.RecurringExpenseFacts{DueCount: 5, DueAmount: 100}, 5},
		{"large amount due", &facts.RecurringExpenseFacts{DueCount: 1, DueAmount: 2500}, 5},
		{"some due", &facts.RecurringExpenseFacts{DueCount: 3, DueAmount: 100}, 3.5},
		{"one due", &facts.RecurringExpenseFacts{DueCount: 1, DueAmount: 100}, 2},
		{"unknown registration", &facts.RecurringExpenseFacts{}, 2},
		{"stale registration", &facts.RecurringExpenseFacts{LastRegisteredAt: facts.NewDate(now.AddDate(0, 0, -70))}, 5},
		{"late registration", &facts.RecurringExpenseFacts{LastRegisteredAt: facts.NewDate(now.AddDate(0, 0, -40))}, 3.5},
		{"recent registration", &facts.RecurringExpenseFacts{LastRegisteredAt: facts.NewDate(now.AddDate(0, 0, -10))}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := fixture()
			snap.Cashflow.Recurring = tt.recurring
			res := score(t, snap)
			if got := res.Breakdown.Cashflow.RecurringPenalty; !almost(got, tt.want) {
				t.Errorf("penalty = %v, want %v", got, tt.want)
			}
			if !almost(res.Scores.Cashflow, 18-tt.want) {
				t.Errorf("cashflow = %v, want %v", res.Scores.Cashflow, 18-tt.want)
			}
			leaf := breakdown.Find(res.Tree(scoring.CategoryCashflow), "recurring_expense_coverage")
			if leaf == nil {
				t.Fatal("expected recurring_expense_coverage leaf")
			}
			if !almost(leaf.Score, 5-tt.want) {
				t.Errorf("leaf score = %v, want %v", leaf.Score, 5-tt.want)
			}
		})
	}
}

func TestEfficiencyStepsMatchCashflow(t *testing.T) {
	tests := []struct {
		dri  float64
		want float64
	}{
		{0, 15}, {0.5, 12}, {7, 12}, {8, 8}, {15, 8}, {30, 3}, {31, 0},
	}
	for _, tt := range tests {
		snap := fixture()
		snap.Efficiency = facts.EfficiencyFacts{AverageDRI: tt.dri}
		res := score(t, snap)
		if got := res.Breakdown.Efficiency.DRIScore; got != tt.want {
			t.Errorf("DRI %v: score = %v, want %v", tt.dri, got, tt.want)
		}
	}
}

func TestRiskWithoutData(t *testing.T) {
	snap := fixture()
	snap.Risk = facts.RiskFacts{TargetDaysPerWeek: 5, TargetDailyHours: 8}

	res := score(t, snap)
	if res.Scores.Risk != 0 {
		t.Errorf("risk score = %v, want 0", res.Scores.Risk)
	}
	if res.Breakdown.Risk.HasData {
		t.Error("expected HasData=false")
	}
	tree := res.Tree(scoring.CategoryRisk)
	if len(tree.Children) != 1 || tree.Children[0].ID != "risk_no_data" {
		t.Errorf("expected a single No Data leaf, got %d children", len(tree.Children))
	}
}

func TestRiskContinuityPenalties(t *testing.T) {
	tests := []struct {
		name                  string
		mutate                func(r *facts.RiskFacts)
		revenue, share, hours float64
		revenueDir, shareDir  string
	}{
		{"stable", func(*facts.RiskFacts) {}, 0, 0, 0, "Growing", "Diversifying"},
		{"slight revenue dip", func(r *facts.RiskFacts) { r.Current30DBillableRevenue = 9000; r.Previous30DBillableRevenue = 10000 }, 0.5, 0, 0, "Declining", "Diversifying"},
		{"moderate revenue dip", func(r *facts.RiskFacts) { r.Current30DBillableRevenue = 8500; r.Previous30DBillableRevenue = 10000 }, 1.5, 0, 0, "Declining", "Diversifying"},
		{"revenue collapse", func(r *facts.RiskFacts) { r.Current30DBillableRevenue = 5000; r.Previous30DBillableRevenue = 10000 }, 3, 0, 0, "Declining", "Diversifying"},
		{"no revenue baseline", func(r *facts.RiskFacts) { r.Previous30DBillableRevenue = 0 }, 1.5, 0, 0, "Growing", "Diversifying"},
		{"slight concentration", func(r *facts.RiskFacts) { r.Current30DClientShare = 53 }, 0, 0.5, 0, "Growing", "Concentrating"},
		{"moderate concentration", func(r *facts.RiskFacts) { r.Current30DClientShare = 58 }, 0, 1.25, 0, "Growing", "Concentrating"},
		{"strong concentration", func(r *facts.RiskFacts) { r.Current30DClientShare = 70 }, 0, 2.5, 0, "Growing", "Concentrating"},
		{"no share baseline", func(r *facts.RiskFacts) { r.Previous30DClientShare = 0 }, 0, 0.5, 0, "Growing", "Concentrating"},
		{"hours drifting", func(r *facts.RiskFacts) { r.Current30DDailyHours = 6; r.Previous30DDailyHours = 7 }, 0, 0, 1.25, "Growing", "Diversifying"},
		{"no hours baseline", func(r *facts.RiskFacts) { r.Previous30DDailyHours = 0 }, 0, 0, 0.5, "Growing", "Diversifying"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := fixture()
			tt.mutate(&snap.Risk)
			res := score(t, snap)
			b := res.Breakdown.Risk
			if !almost(b.Penalties.RevenueStability, tt.revenue) {
				t.Errorf("revenue penalty = %v, want %v", b.Penalties.RevenueStability, tt.revenue)
			}
			if !almost(b.Penalties.ConcentrationTrend, tt.share) {
				t.Errorf("concentration penalty = %v, want %v", b.Penalties.ConcentrationTrend, tt.share)
			}
			if !almost(b.Penalties.ConsistencyTrend, tt.hours) {
				t.Errorf("consistency penalty = %v, want %v", b.Penalties.ConsistencyTrend, tt.hours)
			}
			if b.Continuity.RevenueDirection != tt.revenueDir || b.Continuity.ShareDirection != tt.shareDir {
				t.Errorf("directions = %s/%s, want %s/%s", b.Continuity.RevenueDirection, b.Continuity.ShareDirection, tt.revenueDir, tt.shareDir)
			}
		})
	}
}

func TestRiskDaysFallBackToTarget(t *testing.T) {
	snap := fixture()
	snap.Risk.EstimatedDaysPerWeek = 0

	res := score(t, snap)
	b := res.Breakdown.Risk
	if b.EstimatedDaysPerWeek != b.TargetDaysPerWeek {
		t.Errorf("days/week = %v, want target %v", b.EstimatedDaysPerWeek, b.TargetDaysPerWeek)
	}
	if b.Penalties.Days != 0 {
		t.Errorf("days penalty = %v, want 0", b.Penalties.Days)
	}
}

func TestRiskLeavesFloorAtZero(t *testing.T) {
	snap := fixture()
	snap.Risk = facts.RiskFacts{
		TopClientShare:             90,
		Current30DBillableRevenue:  5000,
		Previous30DBillableRevenue: 10000,
		Current30DClientShare:      90,
		Previous30DClientShare:     60,
		Current30DDailyHours:       2,
		Previous30DDailyHours:      8,
		EstimatedDaysPerWeek:       0.5,
		TargetDaysPerWeek:          5,
		ActualDailyHours:           0.5,
		TargetDailyHours:           8,
		VAT:                        &facts.VATFacts{},
	}

	res := score(t, snap)
	if res.Scores.Risk != 0 {
		t.Errorf("risk score = %v, want 0", res.Scores.Risk)
	}
	p := res.Breakdown.Risk.Penalties
	if !almost(p.Client, 9) || !almost(p.BusinessContinuity, 8) || !almost(p.VAT, 5) {
		t.Errorf("penalties = %+v", p)
	}
	tree := res.Tree(scoring.CategoryRisk)
	if err := breakdown.Validate(*tree); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, id := range []string{"client_concentration_risk", "business_continuity_risk", "revenue_stability_risk", "vat_compliance"} {
		n := breakdown.Find(tree, id)
		if n == nil {
			t.Fatalf("node %s not found", id)
		}
		if n.Score != 0 {
			t.Errorf("%s score = %v, want 0", id, n.Score)
		}
	}
}

func TestRiskVATCompliance(t *testing.T) {
	tests := []struct {
		name      string
		asOf      time.Time
		processed *facts.Date
		wantDays  int
		want      float64
	}{
		{"never processed, long overdue", now, nil, 40, 5},
		{"never processed, just overdue", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), nil, 10, 2},
		{"processed after deadline", now, facts.NewDate(time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)), 0, 0},
		{"processed last quarter", now, facts.NewDate(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)), 40, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := fixture()
			snap.AsOf = facts.NewDate(tt.asOf)
			snap.Risk.VAT = &facts.VATFacts{LastProcessedAt: tt.processed}
			res := score(t, snap)
			b := res.Breakdown.Risk
			if b.VAT == nil {
				t.Fatal("expected VAT status")
			}
			if want := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC); !b.VAT.Deadline.Equal(want) {
				t.Errorf("deadline = %v, want %v", b.VAT.Deadline, want)
			}
			if b.VAT.DaysOverdue != tt.wantDays {
				t.Errorf("days overdue = %d, want %d", b.VAT.DaysOverdue, tt.wantDays)
			}
			if !almost(b.Penalties.VAT, tt.want) {
				t.Errorf("VAT penalty = %v, want %v", b.Penalties.VAT, tt.want)
			}
		})
	}
}

func TestRecommendationsFollowLeafGaps(t *testing.T) {
	res := score(t, fixture())
	if len(res.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}

	for i, r := range res.Recommendations {
		if r.Impact <= 0 {
			t.Errorf("%s has non-positive impact %v", r.ID, r.Impact)
		}
		if i > 0 && r.Impact > res.Recommendations[i-1].Impact {
			t.Errorf("recommendations not ordered by impact at %d", i)
		}
		switch {
		case r.Impact >= 3 && r.Priority != scoring.PriorityHigh,
			r.Impact < 3 && r.Impact >= 1.5 && r.Priority != scoring.PriorityMedium,
			r.Impact < 1.5 && r.Priority != scoring.PriorityLow:
			t.Errorf("%s: priority %s does not match impact %v", r.ID, r.Priority, r.Impact)
		}
	}

	// Efficiency is perfect in the fixture.
	for _, r := range res.Recommendations {
		if r.Category == scoring.CategoryEfficiency {
			t.Errorf("unexpected efficiency recommendation %s", r.ID)
		}
	}

	// DIO and client concentration both miss 3 points; tree order breaks the tie.
	top := res.Recommendations[:2]
	if top[0].NodeID != "collection_speed" || top[1].NodeID != "client_concentration_risk" {
		t.Errorf("top recommendations = %s, %s", top[0].NodeID, top[1].NodeID)
	}
	want := []string{"Reduce Days Invoice Overdue (DIO)", "Diversify Client Portfolio"}
	if !reflect.DeepEqual(res.Insights.TopPriorities, want) {
		t.Errorf("TopPriorities = %v, want %v", res.Insights.TopPriorities, want)
	}
	for _, list := range [][]string{res.Insights.TopPriorities, res.Insights.QuickWins, res.Insights.LongTermGoals} {
		if len(list) > 3 {
			t.Errorf("insight list too long: %v", list)
		}
	}
}
