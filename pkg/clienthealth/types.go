// Package clienthealth scores individual client relationships from 0 to 100.
// It runs independently of the four-category engine: every client starts at
// 100 and loses points for falling revenue, slow payment, idle projects and
// fading engagement.
package clienthealth

import "github.com/bizhealth/bizhealth/pkg/facts"

// Status classifies a client score.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusWarning   Status = "warning"
	StatusAtRisk    Status = "at_risk"
)

// StatusBand maps a minimum score to a status.
type StatusBand struct {
	MinScore int
	Status   Status
}

// StatusBands is the status table, highest threshold first. Scores below the
// last row are at risk.
var StatusBands = []StatusBand{
	{MinScore: 85, Status: StatusExcellent},
	{MinScore: 70, Status: StatusGood},
	{MinScore: 50, Status: StatusWarning},
}

// StatusFor classifies score.
func StatusFor(score int) Status {
	for _, b := range StatusBands {
		if score >= b.MinScore {
			return b.Status
		}
	}
	return StatusAtRisk
}

// Trend is a direction label.
type Trend string

const (
	TrendUp        Trend = "up"
	TrendDown      Trend = "down"
	TrendStable    Trend = "stable"
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
)

// Trends holds the direction of each client signal. Revenue and engagement
// use up/down/stable; payment uses improving/declining/stable.
type Trends struct {
	Revenue    Trend `json:"revenue"`
	Engagement Trend `json:"engagement"`
	Payment    Trend `json:"payment"`
}

// HealthScore is the result of scoring one client.
type HealthScore struct {
	Client facts.ClientFacts `json:"client"`
	Score  int               `json:"score"`
	Status Status            `json:"status"`
	// RiskFactors and Opportunities are in evaluation order. Consumers that
	// show a single entry show the first.
	RiskFactors   []string `json:"risk_factors"`
	Opportunities []string `json:"opportunities"`
	Trends        Trends   `json:"trends"`
}

// SortBy orders a batch of client scores.
type SortBy string

const (
	SortByScore   SortBy = "score"   // healthiest first
	SortByRevenue SortBy = "revenue" // highest this-month revenue first
	SortByRisk    SortBy = "risk"    // least healthy first
)

// ParseSortBy validates a sort key. The empty string means SortByScore.
func ParseSortBy(s string) (SortBy, bool) {
	switch SortBy(s) {
	case "", SortByScore:
		return SortByScore, true
	case SortByRevenue, SortByRisk:
		return SortBy(s), true
	}
	return "", false
}

// Summary counts a batch of scores per status.
type Summary struct {
	Total        int            `json:"total"`
	ByStatus     map[Status]int `json:"by_status"`
	AverageScore float64        `json:"average_score"`
}
