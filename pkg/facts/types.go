// Package facts defines the aggregated business metrics consumed by the
// health scoring engine. A Snapshot is produced by an external aggregation
// layer and is treated as immutable once loaded.
package facts

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Snapshot is one scoring run's worth of input facts.
type Snapshot struct {
	Workspace  string          `json:"workspace,omitempty"` // business identifier, free-form
	AsOf       *Date           `json:"as_of,omitempty"`     // overrides the clock when set
	Profit     ProfitFacts     `json:"profit"`
	Cashflow   CashflowFacts   `json:"cashflow"`
	Efficiency EfficiencyFacts `json:"efficiency"`
	Risk       RiskFacts       `json:"risk"`
	Clients    []ClientFacts   `json:"clients,omitempty"`
}

// ProfitFacts are rolling 30-day revenue and time utilization figures.
type ProfitFacts struct {
	CurrentRate         float64 `json:"current_rate"`          // effective €/hour
	TargetRate          float64 `json:"target_rate"`           // €/hour
	CurrentHours        float64 `json:"current_hours"`         // hours logged, rolling 30 days
	MTDTargetHours      float64 `json:"mtd_target_hours"`      // monthly hours target
	ActualBillableRatio float64 `json:"actual_billable_ratio"` // percent 0-100
	TargetBillableRatio float64 `json:"target_billable_ratio"` // percent 0-100, 0 means default
	ActualDailyHours    float64 `json:"actual_daily_hours"`
	TargetDailyHours    float64 `json:"target_daily_hours"`
}

// CashflowFacts describe overdue receivables.
type CashflowFacts struct {
	// DIOEquivalent is the average days invoices sit past their due date.
	// Nil means unknown; the scorer then estimates it from the overdue amounts.
	DIOEquivalent *float64               `json:"dio_equivalent,omitempty"`
	OverdueCount  int                    `json:"overdue_count"`
	OverdueAmount float64                `json:"overdue_amount"`
	PaymentTerms  int                    `json:"payment_terms"` // days, 0 means default
	Recurring     *RecurringExpenseFacts `json:"recurring,omitempty"`
}

// RecurringExpenseFacts track whether recurring costs are being registered on time.
type RecurringExpenseFacts struct {
	DueCount         int     `json:"due_count"`
	DueAmount        float64 `json:"due_amount"`
	LastRegisteredAt *Date   `json:"last_registered_at,omitempty"`
}

// EfficiencyFacts describe work that is ready to invoice but not yet billed.
type EfficiencyFacts struct {
	AverageDRI    float64 `json:"average_dri"` // days ready to invoice
	UnbilledCount int     `json:"unbilled_count"`
	UnbilledValue float64 `json:"unbilled_value"`
}

// RiskFacts compare the current rolling 30-day window against the previous one.
type RiskFacts struct {
	TopClientName              string    `json:"top_client_name,omitempty"`
	TopClientShare             float64   `json:"top_client_share"` // percent of revenue
	Current30DBillableRevenue  float64   `json:"current_30d_billable_revenue"`
	Previous30DBillableRevenue float64   `json:"previous_30d_billable_revenue"`
	Current30DClientShare      float64   `json:"current_30d_client_share"`
	Previous30DClientShare     float64   `json:"previous_30d_client_share"`
	Current30DDailyHours       float64   `json:"current_30d_daily_hours"`
	Previous30DDailyHours      float64   `json:"previous_30d_daily_hours"`
	EstimatedDaysPerWeek       float64   `json:"estimated_days_per_week"`
	TargetDaysPerWeek          float64   `json:"target_days_per_week"`
	ActualDailyHours           float64   `json:"actual_daily_hours"`
	TargetDailyHours           float64   `json:"target_daily_hours"`
	VAT                        *VATFacts `json:"vat,omitempty"`
}

// Empty reports whether no risk signal was supplied at all. Targets and the
// VAT block do not count as signal.
func (r RiskFacts) Empty() bool {
	return r.TopClientShare == 0 &&
		r.Current30DBillableRevenue == 0 && r.Previous30DBillableRevenue == 0 &&
		r.Current30DClientShare == 0 && r.Previous30DClientShare == 0 &&
		r.Current30DDailyHours == 0 && r.Previous30DDailyHours == 0 &&
		r.EstimatedDaysPerWeek == 0 && r.ActualDailyHours == 0
}

// VATFacts record the last time a VAT return was processed.
type VATFacts struct {
	LastProcessedAt *Date `json:"last_processed_at,omitempty"`
}

// ClientFacts is the per-client record used by the client health scorer.
type ClientFacts struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Revenue    ClientRevenue  `json:"revenue"`
	Payment    ClientPayment  `json:"payment"`
	Projects   ClientProjects `json:"projects"`
	Engagement ClientEngage   `json:"engagement"`
}

type ClientRevenue struct {
	ThisMonth float64 `json:"this_month"`
	LastMonth float64 `json:"last_month"`
	Total     float64 `json:"total"`
}

type ClientPayment struct {
	AverageDays   float64 `json:"average_days"`
	OverdueAmount float64 `json:"overdue_amount"`
	OverdueCount  int     `json:"overdue_count"`
	PaymentTerms  int     `json:"payment_terms"` // days, 0 means default
	LastPayment   *Date   `json:"last_payment,omitempty"`
}

type ClientProjects struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	OnHold    int `json:"on_hold"`
}

type ClientEngage struct {
	LastActivity       *Date   `json:"last_activity,omitempty"`
	HoursThisMonth     float64 `json:"hours_this_month"`
	CommunicationScore float64 `json:"communication_score,omitempty"` // 1-10, 0 means not rated
}

// Date is a calendar timestamp that accepts both "2006-01-02" and RFC3339
// forms when decoded from JSON.
type Date struct {
	time.Time
}

// NewDate wraps t.
func NewDate(t time.Time) *Date {
	return &Date{Time: t}
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.Format(time.RFC3339))
}

// Known reports whether d carries a usable timestamp.
func (d *Date) Known() bool {
	return d != nil && !d.IsZero()
}

// Num replaces NaN and infinities with 0 so degraded inputs never propagate.
func Num(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
