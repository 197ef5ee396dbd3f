package clienthealth

import (
	"fmt"
	"math"
	"sort"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/facts"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

// Rules holds every client scoring threshold and penalty.
type Rules struct {
	DefaultPaymentTerms int

	RevenueGrowthRatio float64 // above this: opportunity
	RevenueDropRatio   float64 // below this: penalty
	RevenuePenalty     int

	PaymentOnTimeRatio   float64 // averageDays/terms at or below: improving
	PaymentStableRatio   float64 // at or below: stable with a small penalty
	PaymentStablePenalty int
	PaymentSlowPenalty   int

	OverduePenaltyPerInvoice int
	OverduePenaltyCap        int

	NoProjectsPenalty       int
	MultipleProjectsAbove   int
	OnHoldPenaltyPerProject int

	InactiveAfterDays   int
	InactivePenalty     int
	HighEngagementHours float64

	PoorCommunicationBelow   float64 // on a 1-10 scale; 0 means not rated
	PoorCommunicationPenalty int
}

// DefaultRules returns the standard client scoring rules.
func DefaultRules() Rules {
	return Rules{
		DefaultPaymentTerms: 30,

		RevenueGrowthRatio: 1.1,
		RevenueDropRatio:   0.8,
		RevenuePenalty:     20,

		PaymentOnTimeRatio:   1.0,
		PaymentStableRatio:   1.1,
		PaymentStablePenalty: 5,
		PaymentSlowPenalty:   15,

		OverduePenaltyPerInvoice: 5,
		OverduePenaltyCap:        20,

		NoProjectsPenalty:       25,
		MultipleProjectsAbove:   2,
		OnHoldPenaltyPerProject: 5,

		InactiveAfterDays:   30,
		InactivePenalty:     15,
		HighEngagementHours: 40,

		PoorCommunicationBelow:   5,
		PoorCommunicationPenalty: 10,
	}
}

// Scorer computes client health scores. It is read-only after construction
// and safe for concurrent use.
type Scorer struct {
	rules Rules
	clock scoring.Clock
}

// New creates a Scorer. A nil clock means the system clock.
func New(rules Rules, clock scoring.Clock) *Scorer {
	if clock == nil {
		clock = scoring.SystemClock()
	}
	return &Scorer{rules: rules, clock: clock}
}

// Score evaluates one client. Signals are evaluated in a fixed order
// (revenue, payment, overdue, projects, engagement, communication) and that
// order is preserved in the risk factor and opportunity lists.
func (s *Scorer) Score(c facts.ClientFacts) HealthScore {
	r := s.rules
	h := HealthScore{
		Client:        c,
		RiskFactors:   []string{},
		Opportunities: []string{},
		Trends:        Trends{Revenue: TrendStable, Engagement: TrendStable, Payment: TrendStable},
	}
	penalty := 0

	// Revenue
	ratio := facts.Num(c.Revenue.ThisMonth) / math.Max(facts.Num(c.Revenue.LastMonth), 1)
	switch {
	case ratio > r.RevenueGrowthRatio:
		h.Trends.Revenue = TrendUp
		h.Opportunities = append(h.Opportunities, "Revenue growing - consider upselling")
	case ratio < r.RevenueDropRatio:
		h.Trends.Revenue = TrendDown
		penalty += r.RevenuePenalty
		h.RiskFactors = append(h.RiskFactors, fmt.Sprintf("Revenue down %d%% this month", roundInt((1-ratio)*100)))
	}

	// Payment, relative to the client's own terms.
	terms := c.Payment.PaymentTerms
	if terms <= 0 {
		terms = r.DefaultPaymentTerms
	}
	avgDays := math.Max(facts.Num(c.Payment.AverageDays), 0)
	payRatio := avgDays / float64(terms)
	switch {
	case payRatio <= r.PaymentOnTimeRatio:
		h.Trends.Payment = TrendImproving
	case payRatio <= r.PaymentStableRatio:
		h.Trends.Payment = TrendStable
		penalty += r.PaymentStablePenalty
	default:
		h.Trends.Payment = TrendDeclining
		penalty += r.PaymentSlowPenalty
		h.RiskFactors = append(h.RiskFactors, fmt.Sprintf("Slow payments (%s days average, %d%% over %d-day terms)",
			breakdown.Number(avgDays), roundInt((payRatio-1)*100), terms))
	}

	// Overdue
	if amount := facts.Num(c.Payment.OverdueAmount); amount > 0 {
		penalty += min(max(c.Payment.OverdueCount, 0)*r.OverduePenaltyPerInvoice, r.OverduePenaltyCap)
		h.Trends.Payment = TrendDeclining
		h.RiskFactors = append(h.RiskFactors, breakdown.Euro(amount)+" overdue")
	}

	// Projects
	switch {
	case c.Projects.Active <= 0:
		penalty += r.NoProjectsPenalty
		h.RiskFactors = append(h.RiskFactors, "No active projects")
	case c.Projects.Active > r.MultipleProjectsAbove:
		h.Opportunities = append(h.Opportunities, "Multiple active projects - stable relationship")
	}
	if c.Projects.OnHold > 0 {
		penalty += c.Projects.OnHold * r.OnHoldPenaltyPerProject
		h.RiskFactors = append(h.RiskFactors, fmt.Sprintf("%d projects on hold", c.Projects.OnHold))
	}

	// Engagement. A client with no recorded activity counts as inactive.
	inactive := true
	if c.Engagement.LastActivity.Known() {
		days := int(s.clock.Now().Sub(c.Engagement.LastActivity.Time).Hours() / 24)
		inactive = days > r.InactiveAfterDays
	}
	switch {
	case inactive:
		h.Trends.Engagement = TrendDown
		penalty += r.InactivePenalty
		h.RiskFactors = append(h.RiskFactors, fmt.Sprintf("No activity in %d+ days", r.InactiveAfterDays))
	case facts.Num(c.Engagement.HoursThisMonth) > r.HighEngagementHours:
		h.Trends.Engagement = TrendUp
		h.Opportunities = append(h.Opportunities, "High engagement this month")
	}

	if cs := facts.Num(c.Engagement.CommunicationScore); cs > 0 && cs < r.PoorCommunicationBelow {
		penalty += r.PoorCommunicationPenalty
		h.RiskFactors = append(h.RiskFactors, "Poor communication score")
	}

	h.Score = min(max(100-penalty, 0), 100)
	h.Status = StatusFor(h.Score)
	return h
}

// ScoreAll scores every client and orders the results. Ties keep input order.
func (s *Scorer) ScoreAll(clients []facts.ClientFacts, by SortBy) []HealthScore {
	out := make([]HealthScore, len(clients))
	for i, c := range clients {
		out[i] = s.Score(c)
	}
	Sort(out, by)
	return out
}

// Sort orders scores in place. Ties keep their relative order.
func Sort(scores []HealthScore, by SortBy) {
	switch by {
	case SortByRevenue:
		sort.SliceStable(scores, func(i, j int) bool {
			return scores[i].Client.Revenue.ThisMonth > scores[j].Client.Revenue.ThisMonth
		})
	case SortByRisk:
		sort.SliceStable(scores, func(i, j int) bool {
			return scores[i].Score < scores[j].Score
		})
	default:
		sort.SliceStable(scores, func(i, j int) bool {
			return scores[i].Score > scores[j].Score
		})
	}
}

// Summarize counts scores per status.
func Summarize(scores []HealthScore) Summary {
	sum := Summary{
		Total: len(scores),
		ByStatus: map[Status]int{
			StatusExcellent: 0,
			StatusGood:      0,
			StatusWarning:   0,
			StatusAtRisk:    0,
		},
	}
	if len(scores) == 0 {
		return sum
	}
	total := 0
	for _, h := range scores {
		sum.ByStatus[h.Status]++
		total += h.Score
	}
	sum.AverageScore = math.Floor(float64(total)/float64(len(scores))*10+0.5) / 10
	return sum
}

func roundInt(v float64) int {
	return int(math.Floor(v + 0.5))
}
