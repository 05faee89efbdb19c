package journal

// TradeRecord is written once per realized close.
type TradeRecord struct {
	Ticket     string
	Instrument string
	Side       string // "buy" or "sell"
	Volume     float64
	EntryPrice float64
	ExitPrice  float64
	OpenedAt   int64 // unix seconds
	ClosedAt   int64
	Profit     float64
	Reason     string // ManualClose, Oracle, StopLoss, TakeProfit
}

// EquityPoint is written after every ledger mutation to build an equity curve.
type EquityPoint struct {
	Time       int64 // unix seconds
	Balance    float64
	Equity     float64
	MarginUsed float64
	FreeMargin float64
	Profit     float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquityPoint) error
	Close() error
}

// Nop discards all records; used when journaling is disabled.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error  { return nil }
func (Nop) RecordEquity(EquityPoint) error { return nil }
func (Nop) Close() error                   { return nil }
