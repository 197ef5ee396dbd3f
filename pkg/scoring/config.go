package scoring

// Tier is one row of a threshold table: a limit and the points (or penalty)
// it maps to. Whether the limit is an upper or lower bound depends on the
// lookup that consumes the table.
type Tier struct {
	Limit  float64 `json:"limit" yaml:"limit"`
	Points float64 `json:"points" yaml:"points"`
}

// Thresholds holds every constant the category scorers use.
type Thresholds struct {
	// Profit
	RateMaxPoints             float64 // hourly rate value budget
	RatePerformanceCap        float64 // current/target is capped here before scaling
	HoursProgressMax          float64
	BillableRatioMax          float64
	DailyConsistencyMax       float64
	DefaultBillableRatio      float64 // percent, used when the target is unset
	DefaultDailyHours         float64
	DefaultPaymentTermsInDays int

	// Cashflow and efficiency. Days, counts and amounts are looked up as
	// "value <= Limit earns Points"; anything beyond the last row earns 0.
	DaySteps    []Tier
	CountSteps  []Tier
	AmountSteps []Tier

	// DIO estimation from average overdue amount per invoice.
	DIOEstimateLowAmount  float64
	DIOEstimateMidAmount  float64
	DIOEstimateCeiling    float64
	RecurringHighCount    int
	RecurringHighAmount   float64
	RecurringMediumCount  int
	RecurringMediumAmount float64
	RecurringPenalties    [3]float64 // high, medium, low
	// RecurringStaleDays is looked up as "days > Limit costs Points".
	RecurringStaleDays    []Tier
	RecurringAssumedDays  int
	RecurringTargetInDays int

	// Risk
	ConcentrationTiers      []Tier // share >= Limit costs Points
	RevenueStabilityTiers   []Tier // ratio >= Limit costs Points
	RevenueStabilityWorst   float64
	RevenueNoBaseline       float64
	ConcentrationTrendSteps []Tier // change <= Limit costs Points
	ConcentrationTrendWorst float64
	ConsistencyTrendSteps   []Tier // deviation change <= Limit costs Points
	ConsistencyTrendWorst   float64
	TrendNoBaseline         float64
	DefaultDaysPerWeek      float64
	DailyRiskScale          float64 // ceiling of each days/hours sub-penalty
	VATTiers                []Tier  // days overdue > Limit costs Points
}

// Defaults returns the default scoring thresholds.
func Defaults() Thresholds {
	return Thresholds{
		RateMaxPoints:             10,
		RatePerformanceCap:        1.5,
		HoursProgressMax:          6,
		BillableRatioMax:          6,
		DailyConsistencyMax:       3,
		DefaultBillableRatio:      90,
		DefaultDailyHours:         8,
		DefaultPaymentTermsInDays: 30,

		DaySteps:    []Tier{{0, 15}, {7, 12}, {15, 8}, {30, 3}},
		CountSteps:  []Tier{{0, 5}, {2, 3}, {4, 1}},
		AmountSteps: []Tier{{0, 5}, {3000, 3}, {6000, 1}},

		DIOEstimateLowAmount:  500,
		DIOEstimateMidAmount:  1500,
		DIOEstimateCeiling:    60,
		RecurringHighCount:    5,
		RecurringHighAmount:   2500,
		RecurringMediumCount:  3,
		RecurringMediumAmount: 1500,
		RecurringPenalties:    [3]float64{5, 3.5, 2},
		RecurringStaleDays:    []Tier{{60, 5}, {35, 3.5}, {21, 2}},
		RecurringAssumedDays:  35,
		RecurringTargetInDays: 21,

		ConcentrationTiers:      []Tier{{80, 9}, {60, 6}, {40, 3}},
		RevenueStabilityTiers:   []Tier{{1.0, 0}, {0.9, 0.5}, {0.8, 1.5}},
		RevenueStabilityWorst:   3,
		RevenueNoBaseline:       1.5,
		ConcentrationTrendSteps: []Tier{{0, 0}, {5, 0.5}, {10, 1.25}},
		ConcentrationTrendWorst: 2.5,
		ConsistencyTrendSteps:   []Tier{{0, 0}, {0.1, 0.5}, {0.2, 1.25}},
		ConsistencyTrendWorst:   2.5,
		TrendNoBaseline:         0.5,
		DefaultDaysPerWeek:      5,
		DailyRiskScale:          4,
		VATTiers:                []Tier{{21, 5}, {0, 2}},
	}
}

// atMost returns the points of the first tier whose limit is >= v.
func atMost(v float64, tiers []Tier, otherwise float64) float64 {
	for _, t := range tiers {
		if v <= t.Limit {
			return t.Points
		}
	}
	return otherwise
}

// atLeast returns the points of the first tier whose limit is <= v.
func atLeast(v float64, tiers []Tier, otherwise float64) float64 {
	for _, t := range tiers {
		if v >= t.Limit {
			return t.Points
		}
	}
	return otherwise
}

// above returns the points of the first tier whose limit is < v.
func above(v float64, tiers []Tier, otherwise float64) float64 {
	for _, t := range tiers {
		if v > t.Limit {
			return t.Points
		}
	}
	return otherwise
}
