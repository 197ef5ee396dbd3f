package scoring

import (
	"fmt"
	"math"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/facts"
)

// CashflowScorer rates payment collection: how late invoices are, how many
// are overdue and how much money is outstanding.
type CashflowScorer struct {
	T Thresholds
}

func (s *CashflowScorer) Key() Category { return CategoryCashflow }
func (s *CashflowScorer) Name() string  { return "Cash Flow Health" }

func (s *CashflowScorer) Evaluate(snap *facts.Snapshot, clock Clock) CategoryResult {
	t := s.T
	c := snap.Cashflow
	b := &CashflowBreakdown{
		Kind:          CategoryCashflow,
		OverdueCount:  max(c.OverdueCount, 0),
		OverdueAmount: clamp0(facts.Num(c.OverdueAmount)),
		PaymentTerms:  c.PaymentTerms,
	}
	if b.PaymentTerms <= 0 {
		b.PaymentTerms = t.DefaultPaymentTermsInDays
	}

	switch {
	case c.DIOEquivalent != nil:
		b.DIOEquivalent = clamp0(facts.Num(*c.DIOEquivalent))
	case b.OverdueCount > 0 && b.OverdueAmount > 0:
		b.DIOEquivalent = round1(s.estimateDIO(b.OverdueAmount / float64(b.OverdueCount)))
		b.DIOEstimated = true
	}

	b.DIOScore = atMost(b.DIOEquivalent, t.DaySteps, 0)
	b.VolumeScore = atMost(float64(b.OverdueCount), t.CountSteps, 0)
	b.AmountScore = atMost(b.OverdueAmount, t.AmountSteps, 0)

	if c.Recurring != nil {
		b.Recurring = s.recurringPenalty(c.Recurring, clock)
		b.RecurringPenalty = b.Recurring.Penalty
	}

	score := round1(clamp0(b.DIOScore + b.VolumeScore + b.AmountScore - b.RecurringPenalty))
	return CategoryResult{
		Key:      s.Key(),
		Name:     s.Name(),
		Score:    score,
		MaxScore: CategoryMax,
		Detail:   b,
		Tree:     s.buildTree(b, score),
	}
}

// estimateDIO maps the average overdue amount per invoice to an equivalent
// number of days overdue. Larger invoices are assumed to be older.
func (s *CashflowScorer) estimateDIO(avg float64) float64 {
	t := s.T
	switch {
	case avg <= t.DIOEstimateLowAmount:
		return 15 + avg/t.DIOEstimateLowAmount*15
	case avg <= t.DIOEstimateMidAmount:
		return 30 + (avg-t.DIOEstimateLowAmount)/(t.DIOEstimateMidAmount-t.DIOEstimateLowAmount)*15
	default:
		return math.Min(45+(avg-t.DIOEstimateMidAmount)/1000*10, t.DIOEstimateCeiling)
	}
}

func (s *CashflowScorer) recurringPenalty(r *facts.RecurringExpenseFacts, clock Clock) *RecurringPenalty {
	t := s.T
	rp := &RecurringPenalty{DueCount: max(r.DueCount, 0), DueAmount: clamp0(facts.Num(r.DueAmount))}

	if rp.DueCount > 0 {
		switch {
		case rp.DueCount >= t.RecurringHighCount || rp.DueAmount >= t.RecurringHighAmount:
			rp.Penalty = t.RecurringPenalties[0]
		case rp.DueCount >= t.RecurringMediumCount || rp.DueAmount >= t.RecurringMediumAmount:
			rp.Penalty = t.RecurringPenalties[1]
		default:
			rp.Penalty = t.RecurringPenalties[2]
		}
	} else {
		if r.LastRegisteredAt.Known() {
			rp.DaysSinceRegistration = daysBetween(r.LastRegisteredAt.Time, clock.Now())
		} else {
			rp.DaysSinceRegistration = t.RecurringAssumedDays
			rp.Assumed = true
		}
		rp.Penalty = above(float64(rp.DaysSinceRegistration), t.RecurringStaleDays, 0)
	}

	switch {
	case rp.Penalty >= t.RecurringPenalties[0]:
		rp.Severity = PriorityHigh
	case rp.Penalty >= t.RecurringPenalties[1]:
		rp.Severity = PriorityMedium
	default:
		rp.Severity = PriorityLow
	}
	return rp
}

func (s *CashflowScorer) buildTree(b *CashflowBreakdown, score float64) breakdown.Node {
	t := s.T
	dioDesc := fmt.Sprintf("%s days average overdue (%d day terms)", breakdown.Number(b.DIOEquivalent), b.PaymentTerms)
	if b.DIOEstimated {
		dioDesc += ", estimated from average overdue amount"
	}
	noun := "invoices"
	if b.OverdueCount == 1 {
		noun = "invoice"
	}

	children := []breakdown.Node{
		breakdown.Leaf("collection_speed", "Days Invoices Overdue (DIO)", dioDesc, breakdown.Calc{
			Label:  "DIO",
			Actual: breakdown.Number(b.DIOEquivalent) + " days",
			Target: "0 days",
			Score:  b.DIOScore,
			Max:    maxPoints(t.DaySteps),
			Value:  breakdown.Number(b.DIOEquivalent) + "d",
		}),
		breakdown.Leaf("volume_efficiency", "Volume Efficiency", fmt.Sprintf("%d overdue %s", b.OverdueCount, noun), breakdown.Calc{
			Label:  "Overdue Invoices",
			Actual: fmt.Sprint(b.OverdueCount),
			Target: "0",
			Score:  b.VolumeScore,
			Max:    maxPoints(t.CountSteps),
			Value:  fmt.Sprint(b.OverdueCount),
		}),
		breakdown.Leaf("absolute_amount_control", "Absolute Amount Control", breakdown.Euro(b.OverdueAmount)+" total overdue", breakdown.Calc{
			Label:  "Overdue Amount",
			Actual: breakdown.Euro(b.OverdueAmount),
			Target: breakdown.Euro(0),
			Score:  b.AmountScore,
			Max:    maxPoints(t.AmountSteps),
			Value:  breakdown.Euro(b.OverdueAmount),
		}),
	}
	if r := b.Recurring; r != nil {
		ceiling := t.RecurringPenalties[0]
		actual := fmt.Sprintf("%d due (%s)", r.DueCount, breakdown.Euro(r.DueAmount))
		target := "0 due"
		if r.DueCount == 0 {
			actual = fmt.Sprintf("%d days since last registration", r.DaysSinceRegistration)
			target = fmt.Sprintf("%d days", t.RecurringTargetInDays)
		}
		children = append(children, breakdown.Leaf("recurring_expense_coverage", "Recurring Expense Coverage",
			"Recurring expenses registered on schedule", breakdown.Calc{
				Label:  "Recurring Expenses",
				Actual: actual,
				Target: target,
				Score:  clamp0(ceiling - r.Penalty),
				Max:    ceiling,
				Value:  "-" + breakdown.Points(r.Penalty),
			}))
	}

	return breakdown.Root(string(CategoryCashflow), s.Name(), categoryDescriptions[CategoryCashflow], score, CategoryMax, children...)
}

// maxPoints is the best score a step table can award.
func maxPoints(tiers []Tier) float64 {
	var m float64
	for _, t := range tiers {
		m = math.Max(m, t.Points)
	}
	return m
}
