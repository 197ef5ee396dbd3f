// Package scoring implements the four-category business health engine.
// It turns aggregated facts into explainable, tree-backed scores.
package scoring

import (
	"time"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
)

// Category identifies one of the four scored areas.
type Category string

const (
	CategoryProfit     Category = "profit"
	CategoryCashflow   Category = "cashflow"
	CategoryEfficiency Category = "efficiency"
	CategoryRisk       Category = "risk"
)

// CategoryMax is the ceiling of every category score.
const CategoryMax = 25.0

// Result is the complete output of one scoring run. Immutable once computed.
type Result struct {
	Workspace       string           `json:"workspace,omitempty"`
	Scores          Scores           `json:"scores"`
	Total           float64          `json:"total"`
	TotalRounded    int              `json:"total_rounded"`
	Band            breakdown.Band   `json:"band"`
	Breakdown       Breakdowns       `json:"breakdown"`
	Trees           []breakdown.Node `json:"trees"` // profit, cashflow, efficiency, risk
	Explanations    []Explanation    `json:"explanations"`
	Recommendations []Recommendation `json:"recommendations"`
	Insights        Insights         `json:"insights"`
	ScoredAt        time.Time        `json:"scored_at"`
}

// Scores holds the four category sub-scores, each in [0, 25].
type Scores struct {
	Profit     float64 `json:"profit"`
	Cashflow   float64 `json:"cashflow"`
	Efficiency float64 `json:"efficiency"`
	Risk       float64 `json:"risk"`
}

// Get returns the score for c.
func (s Scores) Get(c Category) float64 {
	switch c {
	case CategoryProfit:
		return s.Profit
	case CategoryCashflow:
		return s.Cashflow
	case CategoryEfficiency:
		return s.Efficiency
	case CategoryRisk:
		return s.Risk
	}
	return 0
}

// Tree returns the root node for c, or nil.
func (r *Result) Tree(c Category) *breakdown.Node {
	for i := range r.Trees {
		if r.Trees[i].ID == string(c) {
			return &r.Trees[i]
		}
	}
	return nil
}

// Breakdown is the tagged per-category detail record. Each variant has its
// own fixed field set.
type Breakdown interface {
	Category() Category
}

// Breakdowns groups the four variants for serialization.
type Breakdowns struct {
	Profit     *ProfitBreakdown     `json:"profit,omitempty"`
	Cashflow   *CashflowBreakdown   `json:"cashflow,omitempty"`
	Efficiency *EfficiencyBreakdown `json:"efficiency,omitempty"`
	Risk       *RiskBreakdown       `json:"risk,omitempty"`
}

// ProfitBreakdown details the Profit category.
type ProfitBreakdown struct {
	Kind                 Category `json:"category"`
	Configured           bool     `json:"configured"`
	CurrentRate          float64  `json:"current_rate"`
	TargetRate           float64  `json:"target_rate"`
	RatePerformance      float64  `json:"rate_performance"`
	CurrentHours         float64  `json:"current_hours"`
	MTDTargetHours       float64  `json:"mtd_target_hours"`
	ActualBillableRatio  float64  `json:"actual_billable_ratio"`
	TargetBillableRatio  float64  `json:"target_billable_ratio"`
	ActualDailyHours     float64  `json:"actual_daily_hours"`
	TargetDailyHours     float64  `json:"target_daily_hours"`
	HourlyRateScore      float64  `json:"hourly_rate_score"`
	TimeUtilizationScore float64  `json:"time_utilization_score"`
	HoursScore           float64  `json:"hours_score"`
	BillableScore        float64  `json:"billable_score"`
	ConsistencyScore     float64  `json:"consistency_score"`
}

func (ProfitBreakdown) Category() Category { return CategoryProfit }

// CashflowBreakdown details the Cashflow category.
type CashflowBreakdown struct {
	Kind             Category          `json:"category"`
	DIOEquivalent    float64           `json:"dio_equivalent"`
	DIOEstimated     bool              `json:"dio_estimated"`
	OverdueCount     int               `json:"overdue_count"`
	OverdueAmount    float64           `json:"overdue_amount"`
	PaymentTerms     int               `json:"payment_terms"`
	DIOScore         float64           `json:"dio_score"`
	VolumeScore      float64           `json:"volume_score"`
	AmountScore      float64           `json:"amount_score"`
	RecurringPenalty float64           `json:"recurring_penalty"`
	Recurring        *RecurringPenalty `json:"recurring,omitempty"`
}

func (CashflowBreakdown) Category() Category { return CategoryCashflow }

// RecurringPenalty explains a recurring-expense deduction.
type RecurringPenalty struct {
	Penalty               float64  `json:"penalty"`
	Severity              Priority `json:"severity"`
	DueCount              int      `json:"due_count"`
	DueAmount             float64  `json:"due_amount"`
	DaysSinceRegistration int      `json:"days_since_registration,omitempty"`
	Assumed               bool     `json:"assumed,omitempty"` // no registration date was known
}

// EfficiencyBreakdown details the Efficiency category.
type EfficiencyBreakdown struct {
	Kind          Category `json:"category"`
	AverageDRI    float64  `json:"average_dri"`
	UnbilledCount int      `json:"unbilled_count"`
	UnbilledValue float64  `json:"unbilled_value"`
	DRIScore      float64  `json:"dri_score"`
	VolumeScore   float64  `json:"volume_score"`
	AmountScore   float64  `json:"amount_score"`
}

func (EfficiencyBreakdown) Category() Category { return CategoryEfficiency }

// RiskBreakdown details the penalty-based Risk category.
type RiskBreakdown struct {
	Kind                 Category         `json:"category"`
	HasData              bool             `json:"has_data"`
	TopClientName        string           `json:"top_client_name,omitempty"`
	TopClientShare       float64          `json:"top_client_share"`
	Penalties            RiskPenalties    `json:"penalties"`
	Continuity           ContinuityWindow `json:"continuity"`
	EstimatedDaysPerWeek float64          `json:"estimated_days_per_week"`
	TargetDaysPerWeek    float64          `json:"target_days_per_week"`
	ActualDailyHours     float64          `json:"actual_daily_hours"`
	TargetDailyHours     float64          `json:"target_daily_hours"`
	VAT                  *VATStatus       `json:"vat,omitempty"`
}

func (RiskBreakdown) Category() Category { return CategoryRisk }

// RiskPenalties are the deductions subtracted from the Risk ceiling.
type RiskPenalties struct {
	Client             float64 `json:"client"`
	BusinessContinuity float64 `json:"business_continuity"`
	RevenueStability   float64 `json:"revenue_stability"`
	ConcentrationTrend float64 `json:"concentration_trend"`
	ConsistencyTrend   float64 `json:"consistency_trend"`
	DailyConsistency   float64 `json:"daily_consistency"`
	Days               float64 `json:"days"`
	Hours              float64 `json:"hours"`
	VAT                float64 `json:"vat"`
	Total              float64 `json:"total"`
}

// ContinuityWindow compares the current rolling 30 days with the previous 30.
type ContinuityWindow struct {
	CurrentRevenue      float64 `json:"current_revenue"`
	PreviousRevenue     float64 `json:"previous_revenue"`
	CurrentClientShare  float64 `json:"current_client_share"`
	PreviousClientShare float64 `json:"previous_client_share"`
	CurrentDailyHours   float64 `json:"current_daily_hours"`
	PreviousDailyHours  float64 `json:"previous_daily_hours"`
	RevenueDirection    string  `json:"revenue_direction"` // Growing or Declining
	ShareDirection      string  `json:"share_direction"`   // Concentrating or Diversifying
	HoursDirection      string  `json:"hours_direction"`   // Improving or Deteriorating
}

// VATStatus explains the VAT compliance deduction.
type VATStatus struct {
	Deadline        time.Time  `json:"deadline"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	DaysOverdue     int        `json:"days_overdue"`
}

// CategoryResult is what a single Scorer produces.
type CategoryResult struct {
	Key      Category       `json:"key"`
	Name     string         `json:"name"`
	Score    float64        `json:"score"`
	MaxScore float64        `json:"max_score"`
	Detail   Breakdown      `json:"detail"`
	Tree     breakdown.Node `json:"tree"`
}

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Effort estimates the work behind a recommendation.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Timeframe says when a recommendation pays off.
type Timeframe string

const (
	TimeframeImmediate Timeframe = "immediate"
	TimeframeWeekly    Timeframe = "weekly"
	TimeframeMonthly   Timeframe = "monthly"
)

// Recommendation is an action that would recover points on one leaf.
type Recommendation struct {
	ID          string                `json:"id"`
	Category    Category              `json:"category"`
	NodeID      string                `json:"node_id"`
	Priority    Priority              `json:"priority"`
	Impact      float64               `json:"impact"` // points to gain
	Effort      Effort                `json:"effort"`
	Timeframe   Timeframe             `json:"timeframe"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Metrics     RecommendationMetrics `json:"metrics"`
}

// RecommendationMetrics summarizes the gap a recommendation closes.
type RecommendationMetrics struct {
	Current      string  `json:"current"`
	Target       string  `json:"target"`
	PointsToGain float64 `json:"points_to_gain"`
}

// Explanation is a one-paragraph account of a category score.
type Explanation struct {
	Category Category       `json:"category"`
	Title    string         `json:"title"`
	Score    float64        `json:"score"`
	MaxScore float64        `json:"max_score"`
	Band     breakdown.Band `json:"band"`
	Summary  string         `json:"summary"`
	Details  []string       `json:"details"`
}

// Insights condenses recommendations into three short lists of titles.
type Insights struct {
	TopPriorities []string `json:"top_priorities"`
	QuickWins     []string `json:"quick_wins"`
	LongTermGoals []string `json:"long_term_goals"`
}
