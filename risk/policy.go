package risk

// Policy holds the hard trade constraints applied to every order before it
// reaches the ledger, whether it came from the oracle or a manual command.
type Policy struct {
	// Exposure limits
	MaxOpenPositions int // concurrent positions on the instrument

	// Trade constraints
	MinStopDistance float64 // minimum |entry - stop| in price units
	MinRR           float64 // take distance must be >= MinRR * stop distance

	// Execution
	ConfidenceThreshold float64 // oracle BUY/SELL below this are not executed
	DefaultVolume       float64 // used when the order omits volume
	MaxVolume           float64 // hard cap per order
}

// Default returns the stock gold-account policy: one position at a time,
// 5.0 price units (50 gold pips) minimum stop, 1.5x reward-to-risk,
// 0.70 confidence floor.
func Default() Policy {
	return Policy{
		MaxOpenPositions:    1,
		MinStopDistance:     5.0,
		MinRR:               1.5,
		ConfidenceThreshold: 0.70,
		DefaultVolume:       0.01,
		MaxVolume:           1.0,
	}
}

// Intent is a proposed order, normalized to direction-agnostic prices.
type Intent struct {
	Long       bool
	Entry      float64
	Volume     float64  // 0 means "use default"
	StopLoss   *float64 // nil when not requested
	TakeProfit *float64
}
