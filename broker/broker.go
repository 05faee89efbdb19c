package broker

import (
	"context"
	"errors"

	"auric/market"
)

// Side is the direction of a position.
type Side string

const (
	Long  Side = "buy"
	Short Side = "sell"
)

// Mode distinguishes a simulated ledger from a live venue.
type Mode string

const (
	Simulated Mode = "simulated"
	Live      Mode = "live"
)

var (
	// ErrRejectedByPolicy means a risk invariant or position limit blocked the order.
	ErrRejectedByPolicy = errors.New("rejected by policy")
	// ErrNoPrice means no tick has been observed yet, so there is nothing to fill against.
	ErrNoPrice = errors.New("no price available")
	// ErrNotFound means the ticket does not reference an open position.
	ErrNotFound = errors.New("position not found")
)

// Position is owned exclusively by the ledger; it is mutated only through
// ledger operations (open, close, mark-to-market).
type Position struct {
	Ticket     string   `json:"ticket"`
	Instrument string   `json:"symbol"`
	Side       Side     `json:"type"`
	Volume     float64  `json:"volume"`
	EntryPrice float64  `json:"price_open"`
	Price      float64  `json:"price_current"`
	StopLoss   *float64 `json:"sl,omitempty"`
	TakeProfit *float64 `json:"tp,omitempty"`
	Profit     float64  `json:"profit"`
	OpenedAt   int64    `json:"time"` // unix seconds
}

// AccountSnapshot is derived from balance plus open positions marked to the
// latest tick. It is recomputed on every query, never stored.
type AccountSnapshot struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	MarginUsed float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Profit     float64 `json:"profit"` // unrealized
	Currency   string  `json:"currency"`
	Mode       Mode    `json:"mode"`
}

// OrderRequest asks the ledger to open a market order on its instrument.
// Volume <= 0 means "use the configured default volume".
type OrderRequest struct {
	Side       Side
	Volume     float64
	StopLoss   *float64
	TakeProfit *float64
}

// TradeResult is the user-visible outcome of a ledger operation attempt.
// Policy rejections come back as Success=false with a message, not an error.
type TradeResult struct {
	Success bool    `json:"success"`
	Action  string  `json:"action,omitempty"`
	Ticket  string  `json:"ticket,omitempty"`
	Price   float64 `json:"price,omitempty"`
	Profit  float64 `json:"profit,omitempty"`
	Message string  `json:"message,omitempty"`
}

// CloseResult reports a realized close.
type CloseResult struct {
	Ticket string  `json:"ticket"`
	Price  float64 `json:"price"`
	Profit float64 `json:"profit"`
}

type Broker interface {
	// Open fills at the current ask (long) or bid (short) from the latest tick.
	Open(ctx context.Context, req OrderRequest) (Position, error)

	// Close removes the position and realizes profit against the latest tick.
	Close(ctx context.Context, ticket string) (CloseResult, error)

	// CloseAll closes every open position on the instrument.
	CloseAll(ctx context.Context) ([]CloseResult, error)

	// MarkToMarket recomputes current price and profit for every open
	// position from the given tick. Pure function of (position, tick).
	MarkToMarket(ctx context.Context, tick market.Tick) error

	// Positions returns the open positions, marked to the last observed tick.
	Positions(ctx context.Context) []Position

	// Snapshot derives the account view; it never mutates ledger state.
	Snapshot(ctx context.Context) AccountSnapshot
}
