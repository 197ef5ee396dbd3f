package scoring

// DefaultScorers returns the four category scorers in presentation order.
func DefaultScorers(t Thresholds) []Scorer {
	return []Scorer{
		&ProfitScorer{T: t},
		&CashflowScorer{T: t},
		&EfficiencyScorer{T: t},
		&RiskScorer{T: t},
	}
}

// NewDefaultEngine builds an engine with the default scorers and thresholds.
func NewDefaultEngine(clock Clock) *Engine {
	return NewEngine(clock, DefaultScorers(Defaults())...)
}
