// Package oracle wraps an external decision function behind a stable
// contract: given market context it always returns a well-formed Decision,
// falling back to a safe NO_ACTION on timeout, malformed output, or any
// internal failure.
package oracle

import (
	"sync"

	"auric/broker"
	"auric/market"
)

type Action string

const (
	Buy      Action = "BUY"
	Sell     Action = "SELL"
	CloseAll Action = "CLOSE"
	Hold     Action = "HOLD"
	NoAction Action = "NO_ACTION"
)

// Decision is the structured output of one oracle invocation. Never mutated
// after creation.
type Decision struct {
	Action     Action   `json:"action"`
	Confidence float64  `json:"confidence"` // in [0,1]
	StopLoss   *float64 `json:"sl,omitempty"`
	TakeProfit *float64 `json:"tp,omitempty"`
	Volume     *float64 `json:"volume,omitempty"`
	Rationale  string   `json:"reasoning"`
}

// Context is everything the oracle sees for one decision.
type Context struct {
	Candles   []market.Candle
	Tick      market.Tick
	Account   broker.AccountSnapshot
	Positions []broker.Position
	History   []HistoryEntry
}

// HistoryEntry is one past decision, kept for the oracle's own context
// building. Not authoritative state.
type HistoryEntry struct {
	Time       int64   `json:"time"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// History is a bounded rolling window of past decisions (most recent N).
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
	limit   int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 50
	}
	return &History{limit: limit}
}

func (h *History) Add(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Recent returns up to n entries, oldest first.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}
