package market

// Candle represents OHLC (Open, High, Low, Close) candlestick data
// over one timeframe bucket. Immutable once produced.
type Candle struct {
	Time   int64   `json:"time"` // unix seconds, bucket open
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
