package market

// Tick is a single bid/ask observation for one instrument.
// It is replaced wholesale on each sample; nothing keeps tick history.
type Tick struct {
	Instrument string  `json:"symbol"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Time       int64   `json:"time"` // unix seconds
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// Valid reports whether the tick carries usable prices (ask >= bid > 0).
func (t Tick) Valid() bool {
	return t.Bid > 0 && t.Ask >= t.Bid
}
